// Package chat - user-facing action surface.
//
// actions.go - mutations induced by approval and tool-output actions
//
// These two actions are the only way the UI layer mutates tool parts.
// Both operate on the most recent turn and respect the no-regression
// rule, so replaying an action against an already-answered part is a
// no-op rather than a second lifecycle transition.
package chat

// ApprovalResponse is the user's decision on a pending approval.
type ApprovalResponse struct {
	ID       string `json:"id"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// ToolOutput is a frontend-supplied tool result.
type ToolOutput struct {
	Tool       string `json:"tool"`
	ToolCallID string `json:"toolCallId"`
	Output     any    `json:"output"`
}

// ApplyApprovalResponse records the decision on the matching
// approval-requested part of the last turn. Returns whether any state
// changed.
func (c Conversation) ApplyApprovalResponse(r ApprovalResponse) bool {
	last := c.LastTurn()
	if last == nil {
		return false
	}

	for i := range last.Parts {
		p := &last.Parts[i]
		if p.Type != PartToolInvocation || p.Approval == nil || p.Approval.ID != r.ID {
			continue
		}
		if !p.AdvanceState(StateApprovalResponded) {
			return false
		}
		approved := r.Approved
		p.Approval.Approved = &approved
		p.Approval.Reason = r.Reason
		return true
	}
	return false
}

// ApplyToolOutput records a frontend-computed tool result on the
// matching part of the last turn. Returns whether any state changed.
func (c Conversation) ApplyToolOutput(o ToolOutput) bool {
	last := c.LastTurn()
	if last == nil {
		return false
	}

	p := last.FindToolPart(o.ToolCallID)
	if p == nil {
		return false
	}
	if !p.AdvanceState(StateOutputAvailable) {
		return false
	}
	p.Output = o.Output
	return true
}
