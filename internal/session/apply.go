// Package session - incoming event reducer.
//
// apply.go - folds wire events into the conversation model
//
// The reducer is total: events referencing unknown parts or arriving
// out of order resolve to "no change" rather than an error, and a part
// already in a terminal state is never regressed.
package session

import (
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/transport"

	"github.com/google/uuid"
)

// applyEvent mutates the conversation for one incoming event and
// reports whether any state changed (a render-triggering update).
func applyEvent(c *chat.Conversation, ev *transport.Event) bool {
	if ev == nil {
		return false
	}

	switch ev.Type {
	case transport.EventStart:
		*c = append(*c, chat.Turn{
			ID:    uuid.NewString(),
			Role:  chat.RoleAssistant,
			Parts: []chat.Part{},
		})
		return true

	case transport.EventStartStep, transport.EventFinishStep,
		transport.EventTextEnd, transport.EventFinish:
		// Phase markers carry no part state of their own.
		return false

	case transport.EventTextStart:
		turn := assistantTurn(c)
		turn.Parts = append(turn.Parts, chat.Part{
			Type:   chat.PartText,
			TextID: ev.ID,
		})
		return true

	case transport.EventTextDelta:
		turn := assistantTurn(c)
		if p := findTextPart(turn, ev.ID); p != nil {
			p.Text += ev.Delta
			return true
		}
		return false

	case transport.EventToolInputStart:
		turn := assistantTurn(c)
		if turn.FindToolPart(ev.ToolCallID) != nil {
			return false
		}
		turn.Parts = append(turn.Parts, chat.Part{
			Type:       chat.PartToolInvocation,
			ToolCallID: ev.ToolCallID,
			ToolName:   ev.ToolName,
			State:      chat.StateInputStreaming,
		})
		return true

	case transport.EventToolInputAvailable:
		turn := assistantTurn(c)
		p := turn.FindToolPart(ev.ToolCallID)
		if p == nil {
			turn.Parts = append(turn.Parts, chat.Part{
				Type:       chat.PartToolInvocation,
				ToolCallID: ev.ToolCallID,
			})
			p = &turn.Parts[len(turn.Parts)-1]
		}
		if ev.ToolName != "" {
			p.ToolName = ev.ToolName
		}
		p.Input = ev.Input
		p.AdvanceState(chat.StateInputAvailable)
		return true

	case transport.EventToolApprovalReq:
		p := c.LastTurn().FindToolPart(ev.ToolCallID)
		if p == nil || !p.AdvanceState(chat.StateApprovalRequested) {
			return false
		}
		p.Approval = &chat.Approval{ID: ev.ApprovalID}
		return true

	case transport.EventToolOutputAvail:
		p := c.LastTurn().FindToolPart(ev.ToolCallID)
		if p == nil || !p.AdvanceState(chat.StateOutputAvailable) {
			return false
		}
		p.Output = ev.Output
		return true

	case transport.EventToolOutputError:
		p := c.LastTurn().FindToolPart(ev.ToolCallID)
		if p == nil || !p.AdvanceState(chat.StateOutputError) {
			return false
		}
		p.ErrorText = ev.ErrorText
		return true

	case transport.EventToolOutputDenied:
		p := c.LastTurn().FindToolPart(ev.ToolCallID)
		if p == nil {
			return false
		}
		return p.AdvanceState(chat.StateOutputDenied)

	case transport.EventError:
		turn := c.LastTurn()
		if turn == nil {
			return false
		}
		turn.Error = ev.ErrorText
		return true
	}

	// Unknown event types pass through without effect.
	return false
}

// assistantTurn returns the last turn if it is an open assistant turn,
// creating one otherwise. Streams that omit the start marker still
// land somewhere sane.
func assistantTurn(c *chat.Conversation) *chat.Turn {
	last := c.LastTurn()
	if last != nil && last.Role == chat.RoleAssistant {
		return last
	}
	*c = append(*c, chat.Turn{
		ID:    uuid.NewString(),
		Role:  chat.RoleAssistant,
		Parts: []chat.Part{},
	})
	return c.LastTurn()
}

// findTextPart locates the text part matching the delta's id, falling
// back to the most recent text part for streams without text ids.
func findTextPart(t *chat.Turn, id string) *chat.Part {
	var lastText *chat.Part
	for i := range t.Parts {
		p := &t.Parts[i]
		if p.Type != chat.PartText {
			continue
		}
		if id != "" && p.TextID == id {
			return p
		}
		lastText = p
	}
	if id == "" {
		return lastText
	}
	return nil
}
