// Package chat holds the conversation model shared by both transports.
//
// types.go - Turn, Part, and the tool-invocation lifecycle
//
// This file contains:
// - Role, PartType, and ToolState enums
// - Part and Turn types making up a Conversation
// - Helpers for the legacy separate-confirmation wire shape
//
// A tool invocation moves through a single conceptual lifecycle
// regardless of which historical wire shape produced it:
//
//	input-streaming -> input-available -> approval-requested ->
//	approval-responded -> {output-available | output-error | output-denied}
//
// A part never regresses to an earlier state, and a part in a terminal
// state must never trigger a new approval-response dispatch.
package chat

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartType discriminates the part variants within a turn.
type PartType string

const (
	PartText           PartType = "text"
	PartToolInvocation PartType = "tool-invocation"
)

// ToolState is the lifecycle state of a tool invocation part.
type ToolState string

const (
	StateInputStreaming    ToolState = "input-streaming"
	StateInputAvailable    ToolState = "input-available"
	StateApprovalRequested ToolState = "approval-requested"
	StateApprovalResponded ToolState = "approval-responded"
	StateOutputAvailable   ToolState = "output-available"
	StateOutputError       ToolState = "output-error"
	StateOutputDenied      ToolState = "output-denied"
)

// stateRank orders lifecycle states so regressions can be rejected.
var stateRank = map[ToolState]int{
	StateInputStreaming:    1,
	StateInputAvailable:    2,
	StateApprovalRequested: 3,
	StateApprovalResponded: 4,
	StateOutputAvailable:   5,
	StateOutputError:       5,
	StateOutputDenied:      5,
}

// Terminal reports whether the state ends the invocation lifecycle.
func (s ToolState) Terminal() bool {
	switch s {
	case StateOutputAvailable, StateOutputError, StateOutputDenied:
		return true
	}
	return false
}

// before reports whether s precedes other in the lifecycle.
// Unknown states never precede anything, so malformed input cannot
// force a transition.
func (s ToolState) before(other ToolState) bool {
	a, ok := stateRank[s]
	if !ok {
		return false
	}
	b, ok := stateRank[other]
	if !ok {
		return false
	}
	return a < b
}

// Approval records one approval cycle on a tool invocation part.
type Approval struct {
	ID       string `json:"id"`
	Approved *bool  `json:"approved,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Part is one content unit within a turn: a text span or a tool
// invocation, discriminated by Type.
type Part struct {
	Type PartType `json:"type"`

	// Text fields
	Text string `json:"text,omitempty"`
	// TextID correlates streaming text deltas to this part.
	TextID string `json:"textId,omitempty"`

	// Tool invocation fields
	ToolCallID string         `json:"toolCallId,omitempty"`
	ToolName   string         `json:"toolName,omitempty"`
	Input      map[string]any `json:"input,omitempty"`
	State      ToolState      `json:"state,omitempty"`
	Approval   *Approval      `json:"approval,omitempty"`

	// Terminal result payload. Output and ErrorText are mutually
	// exclusive.
	Output    any    `json:"output,omitempty"`
	ErrorText string `json:"errorText,omitempty"`
}

// Turn is one message in the conversation. Parts are mutated in place
// while the assistant is responding and become immutable once the turn
// completes.
type Turn struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`

	// Error is set when the transport surfaces a connection or
	// protocol error during this turn. An errored turn is terminal
	// for resend purposes.
	Error string `json:"error,omitempty"`
}

// Conversation is an ordered sequence of turns, append-only except for
// in-place mutation of the most recent assistant turn.
type Conversation []Turn

// ToolRequestConfirmation is the confirmation tool of the legacy
// separate-confirmation wire shape: a dedicated tool part that
// references the real tool call it gates.
const ToolRequestConfirmation = "request_confirmation"

// keyOriginalFunctionCall is the Input key carrying the gated call under
// the legacy shape.
const keyOriginalFunctionCall = "originalFunctionCall"

// OriginalCall identifies the real tool call referenced by a legacy
// confirmation part.
type OriginalCall struct {
	ID   string
	Name string
	Args map[string]any
}

// IsConfirmation reports whether the part is a legacy confirmation tool
// invocation.
func (p *Part) IsConfirmation() bool {
	return p != nil && p.Type == PartToolInvocation && p.ToolName == ToolRequestConfirmation
}

// OriginalCall extracts the gated call from a legacy confirmation part.
// Returns false when the part carries no usable originalFunctionCall;
// malformed input never panics.
func (p *Part) OriginalCall() (OriginalCall, bool) {
	if p == nil || p.Input == nil {
		return OriginalCall{}, false
	}
	raw, ok := p.Input[keyOriginalFunctionCall].(map[string]any)
	if !ok {
		return OriginalCall{}, false
	}

	var call OriginalCall
	call.ID, _ = raw["id"].(string)
	call.Name, _ = raw["name"].(string)
	call.Args, _ = raw["args"].(map[string]any)

	if call.ID == "" || call.Name == "" {
		return OriginalCall{}, false
	}
	return call, true
}

// AdvanceState moves the part to next unless that would regress the
// lifecycle. Returns whether the state changed.
func (p *Part) AdvanceState(next ToolState) bool {
	if p == nil || p.Type != PartToolInvocation {
		return false
	}
	if p.State == next {
		return false
	}
	if p.State != "" && !p.State.before(next) {
		return false
	}
	p.State = next
	return true
}

// LastTurn returns the most recent turn, or nil for an empty
// conversation.
func (c Conversation) LastTurn() *Turn {
	if len(c) == 0 {
		return nil
	}
	return &c[len(c)-1]
}

// FindToolPart returns the first tool invocation part with the given
// call id, or nil.
func (t *Turn) FindToolPart(toolCallID string) *Part {
	if t == nil {
		return nil
	}
	for i := range t.Parts {
		p := &t.Parts[i]
		if p.Type == PartToolInvocation && p.ToolCallID == toolCallID {
			return p
		}
	}
	return nil
}
