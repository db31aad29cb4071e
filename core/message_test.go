package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	before := time.Now().UTC()
	m := NewMessage("task/1", RoleManager, KindPlan, "split into backend and frontend")

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "task/1", m.Topic)
	assert.Equal(t, RoleManager, m.Sender)
	assert.Equal(t, KindPlan, m.Kind)
	assert.Equal(t, "split into backend and frontend", m.Body)
	assert.Empty(t, m.Verdict)
	assert.Empty(t, m.ParentID)
	assert.False(t, m.Timestamp.Before(before))

	other := NewMessage("task/1", RoleManager, KindPlan, "again")
	assert.NotEqual(t, m.ID, other.ID)
}

func TestMessage_WithVerdictAndParent(t *testing.T) {
	m := NewMessage("task/1", RoleExecutor, KindExecResult, "exit code: 0")

	passed := m.WithVerdict(VerdictPass)
	require.Equal(t, VerdictPass, passed.Verdict)
	assert.Empty(t, m.Verdict, "original must be untouched")

	child := passed.WithParent(m.ID)
	require.Equal(t, m.ID, child.ParentID)
	assert.Empty(t, passed.ParentID)
}

func TestMessage_IsTerminal(t *testing.T) {
	tests := []struct {
		kind     Kind
		terminal bool
	}{
		{KindPlan, false},
		{KindCode, false},
		{KindExecResult, false},
		{KindReview, false},
		{KindDone, true},
		{KindError, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			m := NewMessage("task/1", RoleManager, tt.kind, "x")
			assert.Equal(t, tt.terminal, m.IsTerminal())
		})
	}
}

func TestMessage_Failed(t *testing.T) {
	execFail := NewMessage("t", RoleExecutor, KindExecResult, "exit code: 1").WithVerdict(VerdictFail)
	assert.True(t, execFail.Failed())

	reviewFail := NewMessage("t", RoleQAEngineer, KindReview, "FAIL: wrong output").WithVerdict(VerdictFail)
	assert.True(t, reviewFail.Failed())

	execPass := NewMessage("t", RoleExecutor, KindExecResult, "exit code: 0").WithVerdict(VerdictPass)
	assert.False(t, execPass.Failed())

	// A failing verdict on a non-attempt kind is not a budget event.
	plan := NewMessage("t", RoleManager, KindPlan, "plan").WithVerdict(VerdictFail)
	assert.False(t, plan.Failed())
}
