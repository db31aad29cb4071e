// Package model defines the opaque reasoning capability consumed by agents:
// a normalized request/response contract that provider adapters (openai,
// anthropic) implement. The orchestration core treats generation as a black
// box; transient provider failures are handled by the Retry wrapper with a
// budget independent of the execution retry loop.
package model

import (
	"context"
	"fmt"
	"strings"
)

// Message is one conversational turn in a normalized request.
type Message struct {
	// Role is "system", "user" or "assistant".
	Role string `json:"role"`
	// Content is the plain text of the turn.
	Content string `json:"content"`
}

// Request captures the normalized model input produced by agents.
type Request struct {
	// Instructions is the role persona plus any injected memory snippets.
	Instructions string    `json:"instructions"`
	Messages     []Message `json:"messages"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage sample.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Response is the final completion for a request.
type Response struct {
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface required by agents to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples. It
// matches canned responses by substring of the last user message, falling
// back to an echo reply.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion keyed by a
// substring of the prompt.
func (m *MockModel) AddResponse(promptContains, response string) {
	m.responses[promptContains] = response
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	last := req.Messages[len(req.Messages)-1].Content
	for key, resp := range m.responses {
		if strings.Contains(last, key) {
			return &Response{Text: resp, FinishReason: "stop", Usage: &TokenUsage{}}, nil
		}
	}
	return &Response{
		Text:         fmt.Sprintf("Mock response to: %s", last),
		FinishReason: "stop",
		Usage:        &TokenUsage{},
	}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// ScriptedModel replays a fixed sequence of replies in order, one per
// Generate call. It is the workhorse for deterministic turn-loop tests.
type ScriptedModel struct {
	info    Info
	replies []string
	next    int
}

// NewScriptedModel constructs a ScriptedModel over the given replies.
func NewScriptedModel(name string, replies ...string) *ScriptedModel {
	return &ScriptedModel{info: Info{Name: name, Provider: "mock"}, replies: replies}
}

// Generate implements Model, returning the next scripted reply.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.next >= len(m.replies) {
		return nil, fmt.Errorf("scripted model %s: no reply for call %d", m.info.Name, m.next+1)
	}
	text := m.replies[m.next]
	m.next++
	return &Response{Text: text, FinishReason: "stop", Usage: &TokenUsage{}}, nil
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

// Calls reports how many scripted replies have been consumed.
func (m *ScriptedModel) Calls() int { return m.next }
