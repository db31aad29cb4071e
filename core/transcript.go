package core

import "sync"

// Transcript is the append-only conversation state of one task: the single
// source of truth the router consults. It is owned by the orchestrator and
// mutated only by appending published messages. Reads return defensive
// copies so callers always observe a stable snapshot.
type Transcript struct {
	mu   sync.RWMutex
	msgs []Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript { return &Transcript{} }

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(m Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, m)
}

// Snapshot returns a copy of the full message sequence.
func (t *Transcript) Snapshot() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Last returns the most recent message, if any.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.msgs) == 0 {
		return Message{}, false
	}
	return t.msgs[len(t.msgs)-1], true
}

// Len returns the number of messages appended so far.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}

// LastSpoke returns the index of the most recent message authored by role,
// or -1 if the role has not spoken.
func LastSpoke(msgs []Message, role Role) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == role {
			return i
		}
	}
	return -1
}

// LastArtifactAuthor walks the transcript backwards and returns the developer
// role that authored the most recent code artifact. The boolean is false when
// no developer has produced code yet.
func LastArtifactAuthor(msgs []Message) (Role, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == KindCode && msgs[i].Sender.IsDeveloper() {
			return msgs[i].Sender, true
		}
	}
	return RoleNone, false
}
