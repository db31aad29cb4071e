package core

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a Message within the orchestration protocol. The set is
// closed: the router and the turn loop dispatch on it.
type Kind string

const (
	// KindPlan is a task breakdown or instruction authored by a planning role.
	KindPlan Kind = "PLAN"
	// KindCode is a message whose body contains an executable code artifact.
	KindCode Kind = "CODE"
	// KindExecResult reports the outcome of a sandboxed execution.
	KindExecResult Kind = "EXEC_RESULT"
	// KindReview is a quality verdict on the current artifact.
	KindReview Kind = "REVIEW"
	// KindDone terminates a task successfully.
	KindDone Kind = "DONE"
	// KindError terminates a task with a fatal or budget-exhausting failure.
	KindError Kind = "ERROR"
)

// Verdict qualifies result-bearing kinds (EXEC_RESULT, REVIEW) as pass or
// fail. Other kinds carry VerdictNone.
type Verdict string

const (
	VerdictNone Verdict = ""
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// Message is the unit of communication on the event bus. After publication it
// must be treated as immutable; the bus owns the published copy and agents
// hold only read references. Ordering is the publish order per topic.
type Message struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Sender    Role      `json:"sender_role"`
	Kind      Kind      `json:"kind"`
	Verdict   Verdict   `json:"verdict,omitempty"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	ParentID  string    `json:"causal_parent_id,omitempty"`
}

// NewMessage creates a message with a fresh ID and UTC timestamp.
func NewMessage(topic string, sender Role, kind Kind, body string) Message {
	return Message{
		ID:        NewID(),
		Topic:     topic,
		Sender:    sender,
		Kind:      kind,
		Body:      body,
		Timestamp: time.Now().UTC(),
	}
}

// WithVerdict returns a copy of the message carrying the given verdict.
func (m Message) WithVerdict(v Verdict) Message {
	m.Verdict = v
	return m
}

// WithParent returns a copy of the message linked to its causal parent.
func (m Message) WithParent(parentID string) Message {
	m.ParentID = parentID
	return m
}

// IsTerminal reports whether this message ends the task.
func (m Message) IsTerminal() bool {
	return m.Kind == KindDone || m.Kind == KindError
}

// Failed reports whether a result-bearing message carries a fail verdict.
func (m Message) Failed() bool {
	return (m.Kind == KindExecResult || m.Kind == KindReview) && m.Verdict == VerdictFail
}

// NewID generates a unique identifier for messages and tasks.
func NewID() string { return uuid.NewString() }
