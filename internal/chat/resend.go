// Package chat - auto-resend decision function.
//
// resend.go - decides whether the conversation must be resubmitted
//
// The decider is invoked after every state mutation of the
// conversation. Returning true more than once per genuine user decision
// is the failure mode to prevent: the state-based idempotence guard
// bounds auto-sends to exactly one per approval or denial. Any panic
// during evaluation resolves to false, so a malformed conversation can
// never cause a request loop.
package chat

import (
	"fmt"

	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/metrics"
)

// ResendDecider evaluates whether the frontend must immediately
// resubmit the conversation without further user input. One instance
// exists per transport; the name labels log records and metrics so
// decision provenance stays visible.
type ResendDecider struct {
	name string
}

// NewResendDecider returns a decider labeled with the transport name.
func NewResendDecider(name string) *ResendDecider {
	return &ResendDecider{name: name}
}

// Name returns the decider's transport label.
func (d *ResendDecider) Name() string {
	return d.name
}

// ShouldResend reports whether the conversation must be resubmitted to
// the backend right now. Synchronous, side-effect-free on the
// conversation, and fail-safe: evaluation errors resolve to false.
func (d *ResendDecider) ShouldResend(msgs Conversation) (resend bool) {
	defer func() {
		if r := recover(); r != nil {
			resend = false
			logger.Slog().Error("resend decider recovered from panic",
				"decider", d.name,
				"panic", fmt.Sprint(r))
		}
		metrics.RecordResendDecision(d.name, resend)
		logger.Slog().Debug("resend decision",
			"decider", d.name,
			"turns", len(msgs),
			"decision", resend)
	}()

	return shouldResend(msgs)
}

func shouldResend(msgs Conversation) bool {
	last := msgs.LastTurn()
	if last == nil || last.Role != RoleAssistant {
		return false
	}
	// A turn that errored is terminal; resending would loop on the
	// same failure.
	if last.Error != "" {
		return false
	}

	parts := ExtractParts(last)
	conf, shape := FindConfirmation(parts)
	if shape == ShapeNone {
		return false
	}

	// Idempotence guard: any sibling tool part already terminal or
	// error-flagged means the backend has answered a previously-sent
	// decision. Under the inline shape the target's own subsequent
	// output blocks a resend the same way.
	for i := range parts {
		p := &parts[i]
		if p.Type != PartToolInvocation {
			continue
		}
		if p == conf {
			if shape == ShapeInline && (p.Output != nil || p.ErrorText != "") {
				return false
			}
			continue
		}
		if p.State.Terminal() || p.ErrorText != "" {
			return false
		}
	}

	return true
}
