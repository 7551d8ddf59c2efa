// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pdiddy/figure-watch/pkg/types"
)

const watchColumns = `id, display_name, search_terms, negative_filters, sources, strict,
	new_count, last_updated, created_at`

// CreateWatch inserts w, assigning a UUID when ID is empty.
func (s *Store) CreateWatch(ctx context.Context, w types.Watch) (types.Watch, error) {
	if err := w.Validate(); err != nil {
		return types.Watch{}, err
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	w.NewCount = 0
	w.LastUpdated = time.Time{}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO watches (id, display_name, search_terms, negative_filters, sources, strict, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.DisplayName, nonNil(w.SearchTerms), nonNil(w.NegativeFilters),
		normalizeSources(w.Sources), w.Strict, w.CreatedAt,
	)
	if err != nil {
		return types.Watch{}, fmt.Errorf("inserting watch: %w", err)
	}
	return w, nil
}

// GetWatch returns the watch with id.
func (s *Store) GetWatch(ctx context.Context, id string) (types.Watch, error) {
	w, err := scanWatch(s.pool.QueryRow(ctx, `SELECT `+watchColumns+` FROM watches WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Watch{}, fmt.Errorf("watch %s: %w", id, ErrNotFound)
	}
	return w, err
}

// ListWatches returns all watches in creation order.
func (s *Store) ListWatches(ctx context.Context) ([]types.Watch, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+watchColumns+` FROM watches ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying watches: %w", err)
	}
	defer rows.Close()

	var watches []types.Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		watches = append(watches, w)
	}
	return watches, rows.Err()
}

// UpdateWatch replaces the user-editable fields of w.
func (s *Store) UpdateWatch(ctx context.Context, w types.Watch) error {
	if err := w.Validate(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE watches SET display_name = $1, search_terms = $2, negative_filters = $3, sources = $4, strict = $5
		 WHERE id = $6`,
		w.DisplayName, nonNil(w.SearchTerms), nonNil(w.NegativeFilters),
		normalizeSources(w.Sources), w.Strict, w.ID,
	)
	if err != nil {
		return fmt.Errorf("updating watch: %w", err)
	}
	return requireAffected(tag, "watch "+w.ID)
}

// DeleteWatch removes the watch and its results.
func (s *Store) DeleteWatch(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM watches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting watch: %w", err)
	}
	return requireAffected(tag, "watch "+id)
}

func scanWatch(row pgx.Row) (types.Watch, error) {
	var (
		w           types.Watch
		lastUpdated *time.Time
	)
	err := row.Scan(&w.ID, &w.DisplayName, &w.SearchTerms, &w.NegativeFilters, &w.Sources,
		&w.Strict, &w.NewCount, &lastUpdated, &w.CreatedAt)
	if err != nil {
		return types.Watch{}, err
	}
	if lastUpdated != nil {
		w.LastUpdated = lastUpdated.UTC()
	}
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}

func normalizeSources(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[types.SourceKey(k)] = v
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func requireAffected(tag pgconn.CommandTag, what string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
