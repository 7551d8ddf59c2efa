// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by source adapters.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// SourceConfig describes one marketplace adapter.
type SourceConfig struct {
	// Name is the source identifier (case-insensitive).
	Name string `json:"name" yaml:"name"`

	// SearchURL is the search page template; "{query}" is replaced with the
	// URL-escaped native search string.
	SearchURL string `json:"search_url" yaml:"search_url"`

	// ItemSelector selects one listing element on the result page.
	ItemSelector string `json:"item_selector" yaml:"item_selector"`

	// TitleSelector, LinkSelector, PriceSelector and ImageSelector are
	// evaluated relative to each listing element.
	TitleSelector string `json:"title_selector" yaml:"title_selector"`
	LinkSelector  string `json:"link_selector" yaml:"link_selector"`
	PriceSelector string `json:"price_selector" yaml:"price_selector"`
	ImageSelector string `json:"image_selector" yaml:"image_selector"`

	// RequiresCookie marks sources that refuse anonymous searches.
	RequiresCookie bool `json:"requires_cookie" yaml:"requires_cookie"`

	// CookieSecret names the .secrets/ file holding the cookie header value
	// (default "<name>-cookie").
	CookieSecret string `json:"cookie_secret,omitempty" yaml:"cookie_secret,omitempty"`

	// SearchLinkFallback adds a degraded strategy that returns a single
	// placeholder item pointing at the search page.
	SearchLinkFallback bool `json:"search_link_fallback" yaml:"search_link_fallback"`
}

// AggregateConfig holds settings for the aggregation stage.
type AggregateConfig struct {
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// AdapterTimeout bounds one adapter call (default 60s).
	AdapterTimeout time.Duration `json:"adapter_timeout" yaml:"adapter_timeout"`

	// MaxConsecutiveTimeouts disables a source for the rest of a batch run
	// after this many timeouts in a row (default 3).
	MaxConsecutiveTimeouts int `json:"max_consecutive_timeouts" yaml:"max_consecutive_timeouts"`

	// Strict is the global per-source strictness. Missing sources are strict.
	Strict map[string]bool `json:"strict" yaml:"strict"`

	// Sources lists the configured adapters.
	Sources []SourceConfig `json:"sources" yaml:"sources"`
}

// ReconcileConfig holds the grace-period policy.
type ReconcileConfig struct {
	// Families maps a source family to its grace period.
	Families map[string]time.Duration `json:"families" yaml:"families"`

	// SourceFamilies maps a source to its family. Sources without a family
	// have no grace period.
	SourceFamilies map[string]string `json:"source_families" yaml:"source_families"`

	// PlaceholderPatterns are regular expressions matching synthetic titles
	// that never take part in grace-period accounting.
	PlaceholderPatterns []string `json:"placeholder_patterns" yaml:"placeholder_patterns"`
}

// QueryConfig holds the matching tables.
type QueryConfig struct {
	// Synonyms lists classes of interchangeable terms.
	Synonyms [][]string `json:"synonyms" yaml:"synonyms"`

	// KanaFold maps a kana variant to the form both sides are folded to.
	KanaFold map[string]string `json:"kana_fold" yaml:"kana_fold"`
}

// BatchConfig holds settings for batch runs over all watches.
type BatchConfig struct {
	// Concurrency is the number of watches processed at once (default 3).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Stagger delays the i-th watch of a chunk by i*Stagger (default 2s).
	Stagger time.Duration `json:"stagger" yaml:"stagger"`
}

// NotifyConfig holds notification settings.
type NotifyConfig struct {
	// TelegramChatID is the chat receiving new-item messages. Zero disables
	// Telegram delivery.
	TelegramChatID int64 `json:"telegram_chat_id" yaml:"telegram_chat_id"`

	// TelegramTokenSecret names the .secrets/ file holding the bot token.
	TelegramTokenSecret string `json:"telegram_token_secret" yaml:"telegram_token_secret"`
}

// Config groups all stage configurations.
type Config struct {
	// Database is the SQLite database path.
	Database string `json:"database" yaml:"database"`

	// PostgresDSN selects the PostgreSQL store when set.
	PostgresDSN string `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`

	Aggregate AggregateConfig `json:"aggregate" yaml:"aggregate"`
	Reconcile ReconcileConfig `json:"reconcile" yaml:"reconcile"`
	Query     QueryConfig     `json:"query" yaml:"query"`
	Batch     BatchConfig     `json:"batch" yaml:"batch"`
	Notify    NotifyConfig    `json:"notify" yaml:"notify"`
}

// Source families observed in the reference deployment.
const (
	FamilyFlea    = "flea"
	FamilyAuction = "auction"
	FamilyStock   = "stock"
)

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() Config {
	return Config{
		Database: "figure-watch.db",
		Aggregate: AggregateConfig{
			HTTP: HTTPConfig{
				Timeout:    30 * time.Second,
				UserAgent:  "figure-watch/0.1",
				MaxRetries: 5,
			},
			AdapterTimeout:         60 * time.Second,
			MaxConsecutiveTimeouts: 3,
			Strict:                 map[string]bool{},
		},
		Reconcile: ReconcileConfig{
			Families: map[string]time.Duration{
				FamilyFlea:    48 * time.Hour,
				FamilyAuction: 72 * time.Hour,
				FamilyStock:   14 * 24 * time.Hour,
			},
			SourceFamilies: map[string]string{
				"yahoo":     FamilyAuction,
				"mercari":   FamilyFlea,
				"rakuma":    FamilyFlea,
				"paypay":    FamilyFlea,
				"goofish":   FamilyFlea,
				"surugaya":  FamilyStock,
				"mandarake": FamilyStock,
			},
			PlaceholderPatterns: []string{
				`^\[検索リンク\]`,
				`(?i)^\[search link\]`,
			},
		},
		Batch: BatchConfig{
			Concurrency: 3,
			Stagger:     2 * time.Second,
		},
		Notify: NotifyConfig{
			TelegramTokenSecret: "telegram-bot-token",
		},
	}
}

// ApplyDefaults fills zero-valued settings from DefaultConfig.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Database == "" {
		c.Database = d.Database
	}
	if c.Aggregate.HTTP.Timeout <= 0 {
		c.Aggregate.HTTP.Timeout = d.Aggregate.HTTP.Timeout
	}
	if c.Aggregate.HTTP.UserAgent == "" {
		c.Aggregate.HTTP.UserAgent = d.Aggregate.HTTP.UserAgent
	}
	if c.Aggregate.HTTP.MaxRetries <= 0 {
		c.Aggregate.HTTP.MaxRetries = d.Aggregate.HTTP.MaxRetries
	}
	if c.Aggregate.AdapterTimeout <= 0 {
		c.Aggregate.AdapterTimeout = d.Aggregate.AdapterTimeout
	}
	if c.Aggregate.MaxConsecutiveTimeouts <= 0 {
		c.Aggregate.MaxConsecutiveTimeouts = d.Aggregate.MaxConsecutiveTimeouts
	}
	if c.Aggregate.Strict == nil {
		c.Aggregate.Strict = d.Aggregate.Strict
	}
	if len(c.Reconcile.Families) == 0 {
		c.Reconcile.Families = d.Reconcile.Families
	}
	if len(c.Reconcile.SourceFamilies) == 0 {
		c.Reconcile.SourceFamilies = d.Reconcile.SourceFamilies
	}
	if c.Reconcile.PlaceholderPatterns == nil {
		c.Reconcile.PlaceholderPatterns = d.Reconcile.PlaceholderPatterns
	}
	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = d.Batch.Concurrency
	}
	if c.Batch.Stagger < 0 {
		c.Batch.Stagger = 0
	}
	if c.Notify.TelegramTokenSecret == "" {
		c.Notify.TelegramTokenSecret = d.Notify.TelegramTokenSecret
	}
}
