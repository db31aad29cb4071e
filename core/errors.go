package core

import "errors"

// Error taxonomy for the orchestration loop. Script faults are not errors at
// all (they are fail-verdict results recovered by the retry loop); these
// sentinels cover the fault classes that escalate.
var (
	// ErrProvision marks an infrastructure fault: the sandbox could not be
	// created or the workspace could not be mounted. Never retried by the
	// code loop; escalates directly to FAILED.
	ErrProvision = errors.New("sandbox provisioning failed")

	// ErrReasoning marks exhaustion of the reasoning service's own bounded
	// retry budget (independent of the execution retry budget).
	ErrReasoning = errors.New("reasoning service unavailable")

	// ErrNoEligibleRole marks a routing fault: the handoff table yields no
	// eligible next role for the current message kind. A configuration
	// defect, surfaced immediately rather than silently stalling.
	ErrNoEligibleRole = errors.New("no eligible role for current conversation state")

	// ErrAttemptsExhausted reports that the self-healing retry budget is
	// spent and the task has been terminated.
	ErrAttemptsExhausted = errors.New("retry attempts exhausted")

	// ErrTurnBudget reports that the task exceeded its maximum turn count.
	ErrTurnBudget = errors.New("turn budget exhausted")
)
