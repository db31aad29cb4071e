package orchestrator

// TaskState is the orchestrator's position in the turn-loop state machine.
type TaskState int

const (
	// StatePlanning awaits the manager's task breakdown.
	StatePlanning TaskState = iota
	// StateImplementing awaits a code artifact from a developer.
	StateImplementing
	// StateExecuting awaits the sandbox outcome for the current artifact.
	StateExecuting
	// StateReviewing awaits the QA verdict and the manager's confirmation.
	StateReviewing
	// StateDone is terminal: the task completed successfully.
	StateDone
	// StateFailed is terminal: a fault or an exhausted budget ended the task.
	StateFailed
)

// String returns the state's canonical name.
func (s TaskState) String() string {
	switch s {
	case StatePlanning:
		return "PLANNING"
	case StateImplementing:
		return "IMPLEMENTING"
	case StateExecuting:
		return "EXECUTING"
	case StateReviewing:
		return "REVIEWING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further turns are accepted.
func (s TaskState) Terminal() bool {
	return s == StateDone || s == StateFailed
}
