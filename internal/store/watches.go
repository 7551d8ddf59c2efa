// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/figure-watch/pkg/types"
)

const watchColumns = `id, display_name, search_terms, negative_filters, sources, strict,
	new_count, last_updated, created_at`

// CreateWatch inserts w. An empty ID is replaced with a new UUID and
// CreatedAt is stamped when unset. The stored watch is returned.
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

	terms, filters, sources, err := encodeWatch(w)
	if err != nil {
		return types.Watch{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO watches (id, display_name, search_terms, negative_filters, sources, strict, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.DisplayName, terms, filters, sources, boolInt(w.Strict), formatTime(w.CreatedAt),
	)
	if err != nil {
		return types.Watch{}, fmt.Errorf("inserting watch: %w", err)
	}
	return w, nil
}

// GetWatch returns the watch with id.
func (s *Store) GetWatch(ctx context.Context, id string) (types.Watch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+watchColumns+` FROM watches WHERE id = ?`, id)
	w, err := scanWatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Watch{}, fmt.Errorf("watch %s: %w", id, ErrNotFound)
	}
	return w, err
}

// ListWatches returns all watches in creation order.
func (s *Store) ListWatches(ctx context.Context) ([]types.Watch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+watchColumns+` FROM watches ORDER BY created_at, id`)
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
	terms, filters, sources, err := encodeWatch(w)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE watches SET display_name = ?, search_terms = ?, negative_filters = ?, sources = ?, strict = ?
		 WHERE id = ?`,
		w.DisplayName, terms, filters, sources, boolInt(w.Strict), w.ID,
	)
	if err != nil {
		return fmt.Errorf("updating watch: %w", err)
	}
	return requireAffected(res, "watch "+w.ID)
}

// DeleteWatch removes the watch and all of its results.
func (s *Store) DeleteWatch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting watch: %w", err)
	}
	return requireAffected(res, "watch "+id)
}

func encodeWatch(w types.Watch) (terms, filters, sources string, err error) {
	t, err := json.Marshal(nonNil(w.SearchTerms))
	if err != nil {
		return "", "", "", fmt.Errorf("encoding search terms: %w", err)
	}
	f, err := json.Marshal(nonNil(w.NegativeFilters))
	if err != nil {
		return "", "", "", fmt.Errorf("encoding negative filters: %w", err)
	}
	src := make(map[string]bool, len(w.Sources))
	for k, v := range w.Sources {
		src[types.SourceKey(k)] = v
	}
	sj, err := json.Marshal(src)
	if err != nil {
		return "", "", "", fmt.Errorf("encoding sources: %w", err)
	}
	return string(t), string(f), string(sj), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWatch(sc scanner) (types.Watch, error) {
	var (
		w                         types.Watch
		terms, filters, sources   string
		strict                    int
		lastUpdated, createdAtRaw sql.NullString
	)
	err := sc.Scan(&w.ID, &w.DisplayName, &terms, &filters, &sources, &strict,
		&w.NewCount, &lastUpdated, &createdAtRaw)
	if err != nil {
		return types.Watch{}, err
	}
	w.Strict = strict != 0
	w.LastUpdated = parseTime(lastUpdated)
	w.CreatedAt = parseTime(createdAtRaw)

	if err := json.Unmarshal([]byte(terms), &w.SearchTerms); err != nil {
		return types.Watch{}, fmt.Errorf("decoding search terms of %s: %w", w.ID, err)
	}
	if err := json.Unmarshal([]byte(filters), &w.NegativeFilters); err != nil {
		return types.Watch{}, fmt.Errorf("decoding negative filters of %s: %w", w.ID, err)
	}
	if err := json.Unmarshal([]byte(sources), &w.Sources); err != nil {
		return types.Watch{}, fmt.Errorf("decoding sources of %s: %w", w.ID, err)
	}
	return w, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
