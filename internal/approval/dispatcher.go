// Package approval dispatches the user's approve/deny decision through
// the correct transport.
//
// Transport selection follows a fixed priority: the persistent stream
// when its send primitive is available, otherwise the request/response
// output-submission path. Exactly one network send happens per call;
// retries are a transport concern, not the dispatcher's.
//
// Transports hand the dispatcher already-bound function values (method
// values), never interfaces whose methods get extracted by the caller,
// so the connection context travels with the function.
package approval

import (
	"fmt"

	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/metrics"
)

// Mode identifies which transport carried (or failed to carry) the
// decision.
type Mode string

const (
	ModeWebsocket Mode = "websocket"
	ModeSSE       Mode = "sse"
	ModeNone      Mode = "none"
)

// Result is the dispatch outcome. Validation failures are returned as
// data, never thrown past this boundary.
type Result struct {
	Success bool
	Mode    Mode
	Err     error
}

// Transports carries the available transport send primitives as bound
// function values. A nil field means the transport is absent.
type Transports struct {
	// SendDecision is the persistent stream's decision primitive
	// (Conn.SendDecision as a method value).
	SendDecision func(callID, toolName string, approved bool, userMessage string) error
	// SubmitToolOutput is the request/response path's output-submission
	// primitive (Session.AddToolOutput as a method value).
	SubmitToolOutput func(output chat.ToolOutput) error
}

// Dispatch relays the user's decision on a confirmation part. The part
// must name the recognized confirmation tool; anything else fails with
// no side effect.
func Dispatch(part *chat.Part, confirmed bool, t Transports) Result {
	if part == nil || !part.IsConfirmation() {
		name := ""
		if part != nil {
			name = part.ToolName
		}
		return fail(ModeNone, fmt.Errorf("not a recognized confirmation tool: %q", name))
	}

	if t.SendDecision != nil {
		return dispatchWebsocket(part, confirmed, t.SendDecision)
	}
	if t.SubmitToolOutput != nil {
		return dispatchSSE(part, confirmed, t.SubmitToolOutput)
	}

	logger.Slog().Error("no transport available for approval decision",
		"tool_call_id", part.ToolCallID,
		"confirmed", confirmed)
	return fail(ModeNone, fmt.Errorf("no transport available for approval decision"))
}

// dispatchWebsocket sends the decision keyed by the ORIGINAL tool call,
// not the confirmation shim that gated it.
func dispatchWebsocket(part *chat.Part, confirmed bool, send func(string, string, bool, string) error) Result {
	orig, ok := part.OriginalCall()
	if !ok {
		return fail(ModeNone, fmt.Errorf("confirmation part %s carries no originalFunctionCall", part.ToolCallID))
	}

	verb := "denied"
	if confirmed {
		verb = "approved"
	}
	userMessage := fmt.Sprintf("User %s the %s tool call.", verb, orig.Name)

	if err := send(orig.ID, orig.Name, confirmed, userMessage); err != nil {
		metrics.RecordDispatch(string(ModeWebsocket), "error")
		return Result{Success: false, Mode: ModeWebsocket, Err: fmt.Errorf("failed to send decision: %w", err)}
	}

	metrics.RecordDispatch(string(ModeWebsocket), "ok")
	logger.Slog().Info("approval decision dispatched",
		"mode", ModeWebsocket,
		"original_call_id", orig.ID,
		"original_tool", orig.Name,
		"approved", confirmed)
	return Result{Success: true, Mode: ModeWebsocket}
}

func dispatchSSE(part *chat.Part, confirmed bool, submit func(chat.ToolOutput) error) Result {
	output := chat.ToolOutput{
		Tool:       part.ToolName,
		ToolCallID: part.ToolCallID,
		Output:     map[string]any{"confirmed": confirmed},
	}

	if err := submit(output); err != nil {
		metrics.RecordDispatch(string(ModeSSE), "error")
		return Result{Success: false, Mode: ModeSSE, Err: fmt.Errorf("failed to submit decision output: %w", err)}
	}

	metrics.RecordDispatch(string(ModeSSE), "ok")
	logger.Slog().Info("approval decision dispatched",
		"mode", ModeSSE,
		"tool_call_id", part.ToolCallID,
		"approved", confirmed)
	return Result{Success: true, Mode: ModeSSE}
}

func fail(mode Mode, err error) Result {
	metrics.RecordDispatch(string(mode), "rejected")
	return Result{Success: false, Mode: mode, Err: err}
}
