// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/figure-watch/internal/adapter"
	"github.com/pdiddy/figure-watch/internal/aggregate"
	"github.com/pdiddy/figure-watch/internal/notify"
	"github.com/pdiddy/figure-watch/internal/orchestrate"
	"github.com/pdiddy/figure-watch/internal/pgstore"
	"github.com/pdiddy/figure-watch/internal/query"
	"github.com/pdiddy/figure-watch/internal/reconcile"
	"github.com/pdiddy/figure-watch/internal/store"
	"github.com/pdiddy/figure-watch/pkg/types"
)

// envKeys are settings that can come from the environment alone. Viper only
// decodes environment values for keys it already knows.
var envKeys = []string{
	"database",
	"postgres_dsn",
	"notify.telegram_chat_id",
	"batch.concurrency",
	"batch.stagger",
}

func bindEnv(v *viper.Viper) {
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
}

// decodeConfig reads the settings held by v into a Config, using the yaml
// struct tags, and fills unset values from the defaults. A zero stagger is a
// valid setting, so its default is registered with viper instead.
func decodeConfig(v *viper.Viper) (types.Config, error) {
	v.SetDefault("batch.stagger", types.DefaultConfig().Batch.Stagger)

	var cfg types.Config
	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// watchStore is the operation set shared by the SQLite and PostgreSQL stores.
type watchStore interface {
	orchestrate.Store
	CreateWatch(ctx context.Context, w types.Watch) (types.Watch, error)
	UpdateWatch(ctx context.Context, w types.Watch) error
	DeleteWatch(ctx context.Context, id string) error
	VisibleResults(ctx context.Context, watchID string) ([]types.Result, error)
	MarkSeen(ctx context.Context, watchID string) error
	MarkAllSeen(ctx context.Context) error
	MarkItemSeen(ctx context.Context, watchID, link string) error
	Close() error
}

var (
	_ watchStore = (*store.Store)(nil)
	_ watchStore = (*pgstore.Store)(nil)
)

func openStore(ctx context.Context, cfg types.Config) (watchStore, error) {
	if cfg.PostgresDSN != "" {
		return pgstore.Open(ctx, cfg.PostgresDSN)
	}
	return store.Open(cfg.Database)
}

// app bundles the configuration and services a command needs.
type app struct {
	cfg    types.Config
	logger *slog.Logger
	store  watchStore
}

// newApp loads the configuration. The store is opened only when withStore
// is set, so search and match work without a database.
func newApp(ctx context.Context, cmd *cobra.Command, withStore bool) (*app, error) {
	cfg, err := decodeConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	a := &app{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}

	if withStore {
		a.store, err = openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func (a *app) matcher() *query.Matcher { return query.NewMatcher(a.cfg.Query) }

func (a *app) aggregator() *aggregate.Aggregator {
	agg := a.cfg.Aggregate
	client := &http.Client{Timeout: agg.HTTP.Timeout}
	m := a.matcher()
	return aggregate.New(adapter.Build(agg, loadedSecrets, client, m), aggregate.Options{
		GlobalStrict: agg.Strict,
		Timeout:      agg.AdapterTimeout,
		Health:       adapter.NewHealth(agg.MaxConsecutiveTimeouts),
		Matcher:      m,
		Logger:       a.logger,
	})
}

// notifier always logs new items and also sends them to Telegram when a
// bot token and chat are configured.
func (a *app) notifier() notify.Notifier {
	notifiers := notify.Multi{notify.Log{Logger: a.logger}}

	token := loadedSecrets[strings.ToLower(a.cfg.Notify.TelegramTokenSecret)]
	if token == "" || a.cfg.Notify.TelegramChatID == 0 {
		return notifiers
	}
	tg, err := notify.NewTelegram(token, a.cfg.Notify.TelegramChatID)
	if err != nil {
		a.logger.Warn("notify: telegram disabled", "error", err)
		return notifiers
	}
	return append(notifiers, tg)
}

func (a *app) engine() (*reconcile.Engine, error) {
	p, err := reconcile.NewPolicy(a.cfg.Reconcile)
	if err != nil {
		return nil, fmt.Errorf("reconcile policy: %w", err)
	}
	return reconcile.NewEngine(p, a.logger), nil
}

func (a *app) runner() (*orchestrate.Runner, error) {
	eng, err := a.engine()
	if err != nil {
		return nil, err
	}
	agg := a.aggregator()
	return &orchestrate.Runner{
		Store:    a.store,
		Searcher: agg,
		Engine:   eng,
		Notifier: a.notifier(),
		Health:   agg.Health(),
		Batch:    a.cfg.Batch,
		Logger:   a.logger,
	}, nil
}
