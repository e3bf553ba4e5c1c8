package emulator

import (
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/transport"
)

// Fixture builders for common backend behaviors. Phases that resume an
// interrupted turn deliberately omit the start marker; the backend
// continues the same assistant message after an approval round-trip.

// TextReply is a plain assistant turn with one text span.
func TextReply(text string) []*transport.Event {
	return []*transport.Event{
		{Type: transport.EventStart},
		{Type: transport.EventStartStep},
		{Type: transport.EventTextStart, ID: "t1"},
		{Type: transport.EventTextDelta, ID: "t1", Delta: text},
		{Type: transport.EventTextEnd, ID: "t1"},
		{Type: transport.EventFinishStep},
		{Type: transport.EventFinish},
	}
}

// ApprovalRequest opens an assistant turn that pauses on an inline
// approval request for one tool call.
func ApprovalRequest(callID, toolName, approvalID string, input map[string]any) []*transport.Event {
	return []*transport.Event{
		{Type: transport.EventStart},
		{Type: transport.EventStartStep},
		{Type: transport.EventToolInputStart, ToolCallID: callID, ToolName: toolName},
		{Type: transport.EventToolInputAvailable, ToolCallID: callID, ToolName: toolName, Input: input},
		{Type: transport.EventToolApprovalReq, ToolCallID: callID, ApprovalID: approvalID},
		{Type: transport.EventFinishStep},
	}
}

// ApprovedResult resumes the turn with the tool's output and a closing
// text span.
func ApprovedResult(callID string, output any, text string) []*transport.Event {
	return []*transport.Event{
		{Type: transport.EventStartStep},
		{Type: transport.EventToolOutputAvail, ToolCallID: callID, Output: output},
		{Type: transport.EventTextStart, ID: "t2"},
		{Type: transport.EventTextDelta, ID: "t2", Delta: text},
		{Type: transport.EventTextEnd, ID: "t2"},
		{Type: transport.EventFinishStep},
		{Type: transport.EventFinish},
	}
}

// DeniedResult resumes the turn with a denial marker and an
// acknowledgment text span.
func DeniedResult(callID, text string) []*transport.Event {
	return []*transport.Event{
		{Type: transport.EventStartStep},
		{Type: transport.EventToolOutputDenied, ToolCallID: callID},
		{Type: transport.EventTextStart, ID: "t2"},
		{Type: transport.EventTextDelta, ID: "t2", Delta: text},
		{Type: transport.EventTextEnd, ID: "t2"},
		{Type: transport.EventFinishStep},
		{Type: transport.EventFinish},
	}
}

// LegacyConfirmationRequest opens (or continues) a turn that gates a
// tool call behind a separate confirmation tool part, the legacy wire
// shape.
func LegacyConfirmationRequest(opening bool, callID, toolName string, args map[string]any, confID, approvalID string) []*transport.Event {
	events := []*transport.Event{}
	if opening {
		events = append(events, &transport.Event{Type: transport.EventStart})
	}
	events = append(events,
		&transport.Event{Type: transport.EventStartStep},
		&transport.Event{Type: transport.EventToolInputStart, ToolCallID: callID, ToolName: toolName},
		&transport.Event{Type: transport.EventToolInputAvailable, ToolCallID: callID, ToolName: toolName, Input: args},
		&transport.Event{Type: transport.EventToolInputStart, ToolCallID: confID, ToolName: chat.ToolRequestConfirmation},
		&transport.Event{Type: transport.EventToolInputAvailable, ToolCallID: confID, ToolName: chat.ToolRequestConfirmation,
			Input: map[string]any{
				"originalFunctionCall": map[string]any{
					"id":   callID,
					"name": toolName,
					"args": args,
				},
			}},
		&transport.Event{Type: transport.EventToolApprovalReq, ToolCallID: confID, ApprovalID: approvalID},
		&transport.Event{Type: transport.EventFinishStep},
	)
	return events
}

// LegacyStepResult resolves a confirmed tool call and its confirmation
// shim, followed by any extra events (for chaining the next
// confirmation or closing the turn).
func LegacyStepResult(callID string, output any, confID string, extra ...*transport.Event) []*transport.Event {
	events := []*transport.Event{
		{Type: transport.EventStartStep},
		{Type: transport.EventToolOutputAvail, ToolCallID: callID, Output: output},
		{Type: transport.EventToolOutputAvail, ToolCallID: confID, Output: map[string]any{"confirmed": true}},
	}
	return append(events, extra...)
}

// ClosingText ends a resumed turn with a text span.
func ClosingText(text string) []*transport.Event {
	return []*transport.Event{
		{Type: transport.EventTextStart, ID: "t9"},
		{Type: transport.EventTextDelta, ID: "t9", Delta: text},
		{Type: transport.EventTextEnd, ID: "t9"},
		{Type: transport.EventFinishStep},
		{Type: transport.EventFinish},
	}
}
