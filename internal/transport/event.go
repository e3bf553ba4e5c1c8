// Package transport defines the wire contract shared by both
// transports.
//
// event.go - incoming event records
//
// Both transports deliver events as `data: <json>` lines with the same
// payload shape, so decoding is shared. Unknown event types pass
// through as opaque records rather than errors; fixtures and backend
// versions mix protocol generations.
package transport

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/metrics"
)

// EventType discriminates incoming event records.
type EventType string

const (
	EventStart              EventType = "start"
	EventFinish             EventType = "finish"
	EventStartStep          EventType = "start-step"
	EventFinishStep         EventType = "finish-step"
	EventTextStart          EventType = "text-start"
	EventTextDelta          EventType = "text-delta"
	EventTextEnd            EventType = "text-end"
	EventToolInputStart     EventType = "tool-input-start"
	EventToolInputAvailable EventType = "tool-input-available"
	EventToolApprovalReq    EventType = "tool-approval-request"
	EventToolOutputAvail    EventType = "tool-output-available"
	EventToolOutputError    EventType = "tool-output-error"
	EventToolOutputDenied   EventType = "tool-output-denied"
	EventError              EventType = "error"
)

// Event is one incoming protocol event, discriminated by Type. Fields
// are populated per type; absent fields stay zero.
type Event struct {
	Type EventType `json:"type"`

	// text-start / text-delta / text-end
	ID    string `json:"id,omitempty"`
	Delta string `json:"delta,omitempty"`

	// tool-* events
	ToolCallID string         `json:"toolCallId,omitempty"`
	ToolName   string         `json:"toolName,omitempty"`
	Input      map[string]any `json:"input,omitempty"`
	ApprovalID string         `json:"approvalId,omitempty"`
	Output     any            `json:"output,omitempty"`

	// tool-output-error / error
	ErrorText string `json:"error,omitempty"`
}

const (
	dataPrefix = "data:"
	// DoneSentinel terminates a request/response event stream.
	DoneSentinel = "[DONE]"
)

// ParseLine decodes one SSE-framed line. Returns (nil, false, nil) for
// blank or non-data lines, (nil, true, nil) for the done sentinel, and
// the decoded event otherwise. Malformed payloads return an error so
// callers can skip them.
func ParseLine(line string) (*Event, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, dataPrefix) {
		return nil, false, nil
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return nil, false, nil
	}
	if payload == DoneSentinel {
		return nil, true, nil
	}

	ev, err := DecodeEvent([]byte(payload))
	if err != nil {
		return nil, false, err
	}
	return ev, false, nil
}

// DecodeEvent decodes one event payload.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("event missing type tag")
	}
	metrics.RecordEvent(string(ev.Type))
	return &ev, nil
}

// EncodeLine frames an event as a `data: <json>` record. Used by the
// protocol emulator and kept next to ParseLine so the two sides of the
// framing cannot drift.
func EncodeLine(ev *Event) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}
	return dataPrefix + " " + string(data) + "\n\n", nil
}

// DoneLine returns the framed stream-end sentinel.
func DoneLine() string {
	return dataPrefix + " " + DoneSentinel + "\n\n"
}
