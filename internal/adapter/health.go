// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package adapter

import (
	"sync"

	"github.com/pdiddy/figure-watch/pkg/types"
)

// Health counts consecutive timeouts per source and disables a source once
// the threshold is reached. The orchestrator resets it at the start of every
// batch run. A nil *Health never disables anything.
type Health struct {
	mu        sync.Mutex
	threshold int
	timeouts  map[string]int
}

// NewHealth returns a Health that disables a source after threshold
// consecutive timeouts. A threshold of zero or less never disables.
func NewHealth(threshold int) *Health {
	return &Health{
		threshold: threshold,
		timeouts:  make(map[string]int),
	}
}

// RecordTimeout counts a timeout and reports whether the source is now disabled.
func (h *Health) RecordTimeout(source string) bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	key := types.SourceKey(source)
	h.timeouts[key]++
	return h.threshold > 0 && h.timeouts[key] >= h.threshold
}

// RecordSuccess clears the consecutive-timeout count for source.
func (h *Health) RecordSuccess(source string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.timeouts, types.SourceKey(source))
}

// Disabled reports whether source reached the timeout threshold.
func (h *Health) Disabled(source string) bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.threshold > 0 && h.timeouts[types.SourceKey(source)] >= h.threshold
}

// Reset clears all counters.
func (h *Health) Reset() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timeouts = make(map[string]int)
}
