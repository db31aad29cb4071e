package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forgeworks/devsquad/core"
)

// RetryOptions configures the transient-fault retry wrapper.
type RetryOptions struct {
	// MaxAttempts bounds how many times Generate is tried in total.
	MaxAttempts int
	// BaseDelay is the first backoff interval; it doubles per attempt.
	BaseDelay time.Duration
	// Sleep is swappable for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// retryModel wraps a Model with bounded exponential backoff. Provider errors
// are treated as transient and retried; context cancellation is not.
// Exhaustion surfaces as core.ErrReasoning so the orchestrator can escalate
// to a fatal agent fault.
type retryModel struct {
	inner Model
	opts  RetryOptions
}

// WithRetry wraps a model with bounded exponential backoff on transient
// provider failures. The retry budget is independent of the orchestrator's
// execution retry loop.
func WithRetry(inner Model, optFns ...func(o *RetryOptions)) Model {
	opts := RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Sleep:       sleepCtx,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &retryModel{inner: inner, opts: opts}
}

// WithMaxAttempts sets the total attempt bound.
func WithMaxAttempts(n int) func(o *RetryOptions) {
	return func(o *RetryOptions) { o.MaxAttempts = n }
}

// WithBaseDelay sets the initial backoff interval.
func WithBaseDelay(d time.Duration) func(o *RetryOptions) {
	return func(o *RetryOptions) { o.BaseDelay = d }
}

// Generate implements Model with retry semantics.
func (m *retryModel) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	delay := m.opts.BaseDelay
	for attempt := 1; attempt <= m.opts.MaxAttempts; attempt++ {
		resp, err := m.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		if attempt == m.opts.MaxAttempts {
			break
		}
		if err := m.opts.Sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}
	return nil, fmt.Errorf("%w: %d attempts failed: %v", core.ErrReasoning, m.opts.MaxAttempts, lastErr)
}

// Info implements Model.
func (m *retryModel) Info() Info { return m.inner.Info() }

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
