package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/devsquad/core"
)

// flakyModel fails a fixed number of times before succeeding.
type flakyModel struct {
	failures int
	calls    int
	err      error
}

func (m *flakyModel) Generate(ctx context.Context, req Request) (*Response, error) {
	m.calls++
	if m.calls <= m.failures {
		return nil, m.err
	}
	return &Response{Text: "ok", FinishReason: "stop"}, nil
}

func (m *flakyModel) Info() Info { return Info{Name: "flaky", Provider: "mock"} }

func noSleep(o *RetryOptions) {
	o.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
}

func TestWithRetry_EventualSuccess(t *testing.T) {
	inner := &flakyModel{failures: 2, err: errors.New("rate limited")}
	m := WithRetry(inner, WithMaxAttempts(3), noSleep)

	resp, err := m.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetry_ExhaustionWrapsReasoningFault(t *testing.T) {
	inner := &flakyModel{failures: 10, err: errors.New("upstream 500")}
	m := WithRetry(inner, WithMaxAttempts(3), noSleep)

	_, err := m.Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrReasoning)
	assert.Contains(t, err.Error(), "upstream 500")
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetry_NoRetryOnCancellation(t *testing.T) {
	inner := &flakyModel{failures: 10, err: context.Canceled}
	m := WithRetry(inner, WithMaxAttempts(3), noSleep)

	_, err := m.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls, "cancellation is never retried")
}

func TestWithRetry_BackoffDoubles(t *testing.T) {
	var delays []time.Duration
	inner := &flakyModel{failures: 10, err: errors.New("boom")}
	m := WithRetry(inner, WithMaxAttempts(3), WithBaseDelay(10*time.Millisecond),
		func(o *RetryOptions) {
			o.Sleep = func(ctx context.Context, d time.Duration) error {
				delays = append(delays, d)
				return nil
			}
		})

	_, err := m.Generate(context.Background(), Request{})
	require.Error(t, err)
	require.Len(t, delays, 2, "no sleep after the final attempt")
	assert.Equal(t, 10*time.Millisecond, delays[0])
	assert.Equal(t, 20*time.Millisecond, delays[1])
}

func TestUsageTracker(t *testing.T) {
	tr := NewUsageTracker()
	tr.Record(&TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	tr.Record(&TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})
	tr.Record(nil)

	total := tr.Total()
	assert.Equal(t, 11, total.PromptTokens)
	assert.Equal(t, 7, total.CompletionTokens)
	assert.Equal(t, 18, total.TotalTokens)

	tr.Reset()
	assert.Equal(t, TokenUsage{}, tr.Total())
}

func TestWithUsageTracking(t *testing.T) {
	tr := NewUsageTracker()
	inner := NewScriptedModel("s", "one", "two")
	m := WithUsageTracking(usageModel{inner, 7}, tr)

	_, err := m.Generate(context.Background(), Request{})
	require.NoError(t, err)
	_, err = m.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 14, tr.Total().TotalTokens)
}

// usageModel decorates a model's responses with fixed usage numbers.
type usageModel struct {
	inner Model
	total int
}

func (m usageModel) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := m.inner.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.Usage = &TokenUsage{TotalTokens: m.total}
	return resp, nil
}

func (m usageModel) Info() Info { return m.inner.Info() }

func TestScriptedModel(t *testing.T) {
	m := NewScriptedModel("script", "first", "second")

	resp, err := m.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Text)

	resp, err = m.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Text)
	assert.Equal(t, 2, m.Calls())

	_, err = m.Generate(context.Background(), Request{})
	assert.Error(t, err, "exhausted scripts fail loudly")
}

func TestMockModel(t *testing.T) {
	m := NewMockModel("mock")
	m.AddResponse("factorial", "use math.factorial")

	resp, err := m.Generate(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "compute factorial of 5"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "use math.factorial", resp.Text)

	resp, err = m.Generate(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "something else"}},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Mock response")

	_, err = m.Generate(context.Background(), Request{})
	assert.Error(t, err)
}
