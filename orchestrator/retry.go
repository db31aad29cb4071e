package orchestrator

// RetryState is the single mechanism bounding the self-healing loop: one
// budget shared by execution failures and review failures, preventing two
// agents from indefinitely rewriting and re-testing the same artifact. It is
// created when a task begins and becomes terminal when the task reaches DONE,
// is cancelled, or the budget is spent.
type RetryState struct {
	TaskID      string
	Attempts    int
	MaxAttempts int
	LastError   string

	cancelled bool
}

// NewRetryState creates a fresh budget for a task.
func NewRetryState(taskID string, maxAttempts int) *RetryState {
	return &RetryState{TaskID: taskID, MaxAttempts: maxAttempts}
}

// RecordFailure increments the attempt counter and remembers the error text.
// It reports whether budget remains for another attempt.
func (r *RetryState) RecordFailure(errText string) bool {
	if r.Attempts < r.MaxAttempts {
		r.Attempts++
	}
	r.LastError = errText
	return r.Attempts < r.MaxAttempts
}

// Cancel marks the state terminal so the router selects no further role.
func (r *RetryState) Cancel() { r.cancelled = true }

// Exhausted reports whether the task may issue no further attempts.
func (r *RetryState) Exhausted() bool {
	return r.cancelled || r.Attempts >= r.MaxAttempts
}
