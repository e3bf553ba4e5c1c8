// Package testutil provides conversation builders shared by tests.
package testutil

import (
	"testing"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/chat"
)

// ptr returns a pointer to the given value.
func ptr[T any](v T) *T {
	return &v
}

// PartOption mutates a part under construction.
type PartOption func(*chat.Part)

// TextPart builds a text part.
func TextPart(text string) chat.Part {
	return chat.Part{Type: chat.PartText, Text: text}
}

// ToolPart builds a tool invocation part in the given state.
func ToolPart(callID, toolName string, state chat.ToolState, opts ...PartOption) chat.Part {
	p := chat.Part{
		Type:       chat.PartToolInvocation,
		ToolCallID: callID,
		ToolName:   toolName,
		State:      state,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithInput sets the part's input arguments.
func WithInput(input map[string]any) PartOption {
	return func(p *chat.Part) { p.Input = input }
}

// WithApproval attaches an approval record, optionally decided.
func WithApproval(id string, approved ...bool) PartOption {
	return func(p *chat.Part) {
		p.Approval = &chat.Approval{ID: id}
		if len(approved) > 0 {
			p.Approval.Approved = ptr(approved[0])
		}
	}
}

// WithOriginalCall marks the part as a legacy confirmation shim gating
// the given call.
func WithOriginalCall(callID, toolName string, args map[string]any) PartOption {
	return func(p *chat.Part) {
		if p.Input == nil {
			p.Input = map[string]any{}
		}
		p.Input["originalFunctionCall"] = map[string]any{
			"id":   callID,
			"name": toolName,
			"args": args,
		}
	}
}

// WithOutput sets a terminal output payload.
func WithOutput(output any) PartOption {
	return func(p *chat.Part) { p.Output = output }
}

// WithError sets the part's error text.
func WithError(msg string) PartOption {
	return func(p *chat.Part) { p.ErrorText = msg }
}

// UserTurn builds a user turn with one text part.
func UserTurn(t *testing.T, text string) chat.Turn {
	t.Helper()
	return chat.Turn{
		ID:    uuid.NewString(),
		Role:  chat.RoleUser,
		Parts: []chat.Part{TextPart(text)},
	}
}

// AssistantTurn builds an assistant turn from the given parts.
func AssistantTurn(t *testing.T, parts ...chat.Part) chat.Turn {
	t.Helper()
	return chat.Turn{
		ID:    uuid.NewString(),
		Role:  chat.RoleAssistant,
		Parts: parts,
	}
}

// Conversation builds a conversation from turns.
func Conversation(turns ...chat.Turn) chat.Conversation {
	return chat.Conversation(turns)
}
