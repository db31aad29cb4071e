package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/forgeworks/devsquad/core"
	"github.com/forgeworks/devsquad/logging"
	"github.com/forgeworks/devsquad/model"
)

// ReasoningAgent produces messages by delegating generation to an opaque
// model and classifying the reply into the message protocol. The persona is
// loaded once at startup and never mutated; retrieved memory snippets (when
// the descriptor enables retrieval) augment only the instructions of a
// single call and never appear in the transcript.
type ReasoningAgent struct {
	BaseAgent
	persona string
	model   model.Model
}

var _ core.Agent = (*ReasoningAgent)(nil)

// NewReasoningAgent constructs a model-backed agent for a role.
func NewReasoningAgent(desc core.AgentDescriptor, persona string, m model.Model, logger logging.Logger) *ReasoningAgent {
	return &ReasoningAgent{
		BaseAgent: NewBaseAgent(desc, logger),
		persona:   persona,
		model:     m,
	}
}

// Persona returns the agent's static role prompt.
func (a *ReasoningAgent) Persona() string { return a.persona }

// Produce implements core.Agent.
func (a *ReasoningAgent) Produce(ctx context.Context, transcript []core.Message, snippets []core.Snippet) (core.Message, error) {
	if len(transcript) == 0 {
		return core.Message{}, fmt.Errorf("agent %s: empty transcript", a.Role())
	}
	last := transcript[len(transcript)-1]

	req := model.Request{
		Instructions: a.instructions(snippets),
		Messages:     a.conversation(transcript),
	}

	resp, err := a.model.Generate(ctx, req)
	if err != nil {
		return core.Message{}, fmt.Errorf("agent %s: %w", a.Role(), err)
	}
	a.Logger().Debug("agent produced reply", "role", string(a.Role()), "chars", len(resp.Text))

	kind, verdict := Classify(a.Role(), resp.Text)
	msg := core.NewMessage(last.Topic, a.Role(), kind, resp.Text).
		WithVerdict(verdict).
		WithParent(last.ID)
	return msg, nil
}

// instructions assembles the persona plus an optional retrieved-knowledge
// block. The block exists only in this request; other agents never see it.
func (a *ReasoningAgent) instructions(snippets []core.Snippet) string {
	if len(snippets) == 0 {
		return a.persona
	}
	var b strings.Builder
	b.WriteString(a.persona)
	b.WriteString("\n\nRelevant knowledge:\n")
	for _, s := range snippets {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(s.Content))
		b.WriteString("\n")
	}
	return b.String()
}

// conversation renders the transcript for the model: this agent's own turns
// become assistant messages, everyone else's become attributed user messages.
func (a *ReasoningAgent) conversation(transcript []core.Message) []model.Message {
	msgs := make([]model.Message, 0, len(transcript))
	for _, m := range transcript {
		if m.Sender == a.Role() {
			msgs = append(msgs, model.Message{Role: "assistant", Content: m.Body})
			continue
		}
		msgs = append(msgs, model.Message{
			Role:    "user",
			Content: fmt.Sprintf("[%s] %s", m.Sender, m.Body),
		})
	}
	return msgs
}

var terminalWordRe = regexp.MustCompile(`\b(DONE|TERMINATE)\b`)

// Classify maps a reasoning reply to its protocol kind and verdict based on
// the author's role and the reply's surface markers: a code fence from a
// developer forces CODE, the manager's terminal word ends the task, and the
// QA engineer's PASS/FAIL words carry the review verdict.
func Classify(role core.Role, text string) (core.Kind, core.Verdict) {
	if role.IsDeveloper() && HasCodeFence(text) {
		return core.KindCode, core.VerdictNone
	}

	switch role {
	case core.RoleManager:
		if terminalWordRe.MatchString(text) {
			return core.KindDone, core.VerdictNone
		}
		return core.KindPlan, core.VerdictNone

	case core.RoleQAEngineer:
		if strings.Contains(text, "PASS") && !strings.Contains(text, "FAIL") {
			return core.KindReview, core.VerdictPass
		}
		// Commentary without an approval is a change request.
		return core.KindReview, core.VerdictFail

	default:
		return core.KindPlan, core.VerdictNone
	}
}
