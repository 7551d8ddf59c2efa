// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notify delivers newly reconciled items to the user.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/figure-watch/pkg/types"
)

// Notifier delivers the new items found for one watch.
type Notifier interface {
	Notify(ctx context.Context, w types.Watch, items []types.Item) error
}

// Log writes one structured log record per new item.
type Log struct {
	Logger *slog.Logger
}

// Notify logs items. It never fails.
func (l Log) Notify(_ context.Context, w types.Watch, items []types.Item) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, it := range items {
		logger.Info("notify: new item",
			"watch", w.DisplayName, "source", it.Source, "title", it.Title,
			"price", it.Price, "link", it.Link)
	}
	return nil
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

// Notify calls each notifier in order, even after one fails.
func (m Multi) Notify(ctx context.Context, w types.Watch, items []types.Item) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, w, items); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FormatMessage renders the plain-text notification for items.
func FormatMessage(w types.Watch, items []types.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d new\n", w.DisplayName, len(items))
	for _, it := range items {
		b.WriteString("\n")
		b.WriteString(it.Title)
		b.WriteString("\n")
		var meta []string
		if it.Price != "" {
			meta = append(meta, it.Price)
		}
		if it.Source != "" {
			meta = append(meta, it.Source)
		}
		if len(meta) > 0 {
			b.WriteString(strings.Join(meta, " / "))
			b.WriteString("\n")
		}
		b.WriteString(it.Link)
		b.WriteString("\n")
	}
	return b.String()
}
