// Package testutil provides shared fakes and builders for package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/forgeworks/devsquad/core"
)

// Msg builds a message with a fixed topic for transcript fixtures.
func Msg(sender core.Role, kind core.Kind, body string) core.Message {
	return core.NewMessage("task/test", sender, kind, body)
}

// FailedMsg builds a failing EXEC_RESULT or REVIEW message.
func FailedMsg(sender core.Role, kind core.Kind, body string) core.Message {
	return Msg(sender, kind, body).WithVerdict(core.VerdictFail)
}

// PassedMsg builds a passing EXEC_RESULT or REVIEW message.
func PassedMsg(sender core.Role, kind core.Kind, body string) core.Message {
	return Msg(sender, kind, body).WithVerdict(core.VerdictPass)
}

// FakeExecutor returns canned results in order and records every request.
type FakeExecutor struct {
	mu      sync.Mutex
	results []core.ExecutionResult
	errs    []error
	calls   []core.ExecutionRequest
}

var _ core.Executor = (*FakeExecutor)(nil)

// NewFakeExecutor creates an executor that replays results in order. The
// final result is repeated once the script runs out.
func NewFakeExecutor(results ...core.ExecutionResult) *FakeExecutor {
	return &FakeExecutor{results: results, errs: make([]error, len(results))}
}

// FailWith appends an error outcome to the script.
func (f *FakeExecutor) FailWith(err error) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, core.ExecutionResult{})
	f.errs = append(f.errs, err)
	return f
}

func (f *FakeExecutor) Run(ctx context.Context, req core.ExecutionRequest) (core.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	i := len(f.calls) - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	if i < 0 {
		return core.ExecutionResult{}, nil
	}
	return f.results[i], f.errs[i]
}

// Calls returns a copy of the recorded execution requests.
func (f *FakeExecutor) Calls() []core.ExecutionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.ExecutionRequest, len(f.calls))
	copy(out, f.calls)
	return out
}

// RecordingStore is a MemoryStore that records queries and serves fixed
// snippets.
type RecordingStore struct {
	mu       sync.Mutex
	Snippets []core.Snippet
	queries  []string
	ks       []int
}

var _ core.MemoryStore = (*RecordingStore)(nil)

func (s *RecordingStore) Add(ctx context.Context, content string, metadata map[string]string) error {
	return nil
}

func (s *RecordingStore) Query(ctx context.Context, text string, k int) ([]core.Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, text)
	s.ks = append(s.ks, k)
	if len(s.Snippets) > k {
		return s.Snippets[:k], nil
	}
	return s.Snippets, nil
}

// Queries returns a copy of the recorded query texts.
func (s *RecordingStore) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queries))
	copy(out, s.queries)
	return out
}

// Ks returns a copy of the recorded per-query snippet counts.
func (s *RecordingStore) Ks() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.ks))
	copy(out, s.ks)
	return out
}
