// Package transport - outgoing framing.
//
// envelope.go - outgoing envelopes and history truncation
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/metrics"
)

// Envelope frame types for the persistent stream.
const (
	FrameMessage          = "message"
	FramePing             = "ping"
	FrameFunctionResponse = "function_response"
)

// Envelope is the discriminated wrapper for outgoing persistent-stream
// frames.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MessageData is the payload of a message frame and of a
// request/response exchange body.
type MessageData struct {
	Messages chat.Conversation `json:"messages"`
}

// DecisionData is the payload of a function-response frame. It is keyed
// by the original tool call, not by the confirmation shim that gated
// it.
type DecisionData struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Response DecisionResponse `json:"response"`
}

// DecisionResponse carries the user's decision.
type DecisionResponse struct {
	Approved    bool   `json:"approved"`
	UserMessage string `json:"user_message"`
}

// NewMessageEnvelope frames a conversation as a message envelope.
func NewMessageEnvelope(msgs chat.Conversation) (*Envelope, error) {
	data, err := json.Marshal(MessageData{Messages: msgs})
	if err != nil {
		return nil, fmt.Errorf("failed to encode messages: %w", err)
	}
	return &Envelope{Type: FrameMessage, Data: data}, nil
}

// NewPingEnvelope frames a heartbeat.
func NewPingEnvelope() *Envelope {
	return &Envelope{Type: FramePing}
}

// NewDecisionEnvelope frames an approval decision as a
// function-response envelope.
func NewDecisionEnvelope(d DecisionData) (*Envelope, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode decision: %w", err)
	}
	return &Envelope{Type: FrameFunctionResponse, Data: data}, nil
}

// TruncateHistory bounds the outgoing history to the most recent max
// turns, dropping the oldest first. Ordering of the retained tail is
// preserved; drops are logged and counted.
func TruncateHistory(msgs chat.Conversation, max int) chat.Conversation {
	if max <= 0 || len(msgs) <= max {
		return msgs
	}

	dropped := len(msgs) - max
	logger.Slog().Info("truncated outgoing history",
		"dropped_turns", dropped,
		"kept_turns", max)
	metrics.RecordTruncation(dropped)

	return msgs[dropped:]
}

// CheckPayloadSize applies the advisory size thresholds. Above the soft
// threshold a warning is logged with boundary message identities; above
// the hard threshold an error is logged. The send proceeds either way.
func CheckPayloadSize(transportName string, payload []byte, msgs chat.Conversation, soft, hard int) {
	size := len(payload)
	metrics.RecordPayload(transportName, size)

	if hard > 0 && size > hard {
		logger.Slog().Error("payload exceeds hard size threshold, sending anyway",
			"transport", transportName,
			"bytes", size,
			"hard_limit", hard,
			"first_turn", boundaryID(msgs, 0),
			"last_turn", boundaryID(msgs, len(msgs)-1))
		return
	}
	if soft > 0 && size > soft {
		logger.Slog().Warn("payload exceeds soft size threshold",
			"transport", transportName,
			"bytes", size,
			"soft_limit", soft,
			"first_turn", boundaryID(msgs, 0),
			"last_turn", boundaryID(msgs, len(msgs)-1))
	}
}

func boundaryID(msgs chat.Conversation, i int) string {
	if i < 0 || i >= len(msgs) {
		return ""
	}
	return msgs[i].ID
}
