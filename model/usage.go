package model

import (
	"context"
	"sync"
)

// UsageTracker accumulates token usage across all reasoning calls of a task.
// Safe for concurrent use.
type UsageTracker struct {
	mu    sync.Mutex
	total TokenUsage
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker { return &UsageTracker{} }

// Record adds a usage sample. Nil samples are ignored.
func (t *UsageTracker) Record(u *TokenUsage) {
	if u == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total.Add(*u)
}

// Total returns the accumulated usage.
func (t *UsageTracker) Total() TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Reset clears the accumulated counters.
func (t *UsageTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = TokenUsage{}
}

// trackedModel records usage of every successful generation into a tracker.
type trackedModel struct {
	inner   Model
	tracker *UsageTracker
}

// WithUsageTracking wraps a model so every successful response's token usage
// is recorded into tracker.
func WithUsageTracking(inner Model, tracker *UsageTracker) Model {
	return &trackedModel{inner: inner, tracker: tracker}
}

// Generate implements Model.
func (m *trackedModel) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := m.inner.Generate(ctx, req)
	if err == nil {
		m.tracker.Record(resp.Usage)
	}
	return resp, err
}

// Info implements Model.
func (m *trackedModel) Info() Info { return m.inner.Info() }
