// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/figure-watch/pkg/types"
)

// Chain tries its strategies in order and returns the first successful
// result. Only a failing strategy hands over to the next; a search that
// succeeds with zero hits ends the chain, so a trailing SearchLinkStrategy
// placeholder appears only when every real strategy failed.
// ErrAuthRequired stops the chain, since later strategies would only hide
// the missing credentials.
type Chain struct {
	Source     string
	Strategies []Adapter
}

// Name returns the source identifier.
func (c *Chain) Name() string { return c.Source }

// Search runs the strategies in order.
func (c *Chain) Search(ctx context.Context, req Request) ([]types.Item, error) {
	var errs []error

	for _, s := range c.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, err := s.Search(ctx, req)
		if err != nil {
			if errors.Is(err, ErrAuthRequired) {
				return nil, err
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if items == nil {
			items = []types.Item{}
		}
		for i := range items {
			if items[i].Source == "" {
				items[i].Source = c.Source
			}
		}
		return items, nil
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%s: %w", c.Source, ErrNoResults)
	}
	return nil, errors.Join(errs...)
}
