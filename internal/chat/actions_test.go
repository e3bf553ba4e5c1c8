package chat

import "testing"

func pendingApproval(callID, approvalID string) Part {
	p := toolPart(callID, "process_payment", StateApprovalRequested)
	p.Approval = &Approval{ID: approvalID}
	return p
}

func TestApplyApprovalResponse(t *testing.T) {
	tests := []struct {
		name     string
		msgs     Conversation
		resp     ApprovalResponse
		want     bool
		wantDone *bool
	}{
		{
			name: "approve pending",
			msgs: Conversation{assistantTurn(pendingApproval("c1", "appr1"))},
			resp: ApprovalResponse{ID: "appr1", Approved: true},
			want: true, wantDone: boolPtr(true),
		},
		{
			name: "deny pending with reason",
			msgs: Conversation{assistantTurn(pendingApproval("c1", "appr1"))},
			resp: ApprovalResponse{ID: "appr1", Approved: false, Reason: "too expensive"},
			want: true, wantDone: boolPtr(false),
		},
		{
			name: "unknown approval id",
			msgs: Conversation{assistantTurn(pendingApproval("c1", "appr1"))},
			resp: ApprovalResponse{ID: "other", Approved: true},
			want: false,
		},
		{
			name: "empty conversation",
			msgs: nil,
			resp: ApprovalResponse{ID: "appr1", Approved: true},
			want: false,
		},
		{
			name: "already responded is a no-op",
			msgs: Conversation{assistantTurn(func() Part {
				p := respondedPart("c1", "process_payment")
				p.Approval.ID = "appr1"
				return p
			}())},
			resp: ApprovalResponse{ID: "appr1", Approved: false},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.msgs.ApplyApprovalResponse(tt.resp)
			if got != tt.want {
				t.Fatalf("changed = %v, want %v", got, tt.want)
			}
			if tt.wantDone == nil {
				return
			}
			p := tt.msgs.LastTurn().Parts[0]
			if p.State != StateApprovalResponded {
				t.Errorf("state = %s, want %s", p.State, StateApprovalResponded)
			}
			if p.Approval.Approved == nil || *p.Approval.Approved != *tt.wantDone {
				t.Errorf("approved = %v, want %v", p.Approval.Approved, *tt.wantDone)
			}
			if tt.resp.Reason != "" && p.Approval.Reason != tt.resp.Reason {
				t.Errorf("reason = %q, want %q", p.Approval.Reason, tt.resp.Reason)
			}
		})
	}
}

func TestApplyApprovalResponseOnlyLastTurn(t *testing.T) {
	msgs := Conversation{
		assistantTurn(pendingApproval("c1", "appr1")),
		userTurn("actually wait"),
	}
	if msgs.ApplyApprovalResponse(ApprovalResponse{ID: "appr1", Approved: true}) {
		t.Error("approval on a non-last turn was applied")
	}
}

func TestApplyToolOutput(t *testing.T) {
	tests := []struct {
		name string
		msgs Conversation
		out  ToolOutput
		want bool
	}{
		{
			name: "record output",
			msgs: Conversation{assistantTurn(respondedPart("c1", "process_payment"))},
			out:  ToolOutput{Tool: "process_payment", ToolCallID: "c1", Output: map[string]any{"confirmed": true}},
			want: true,
		},
		{
			name: "missing call id",
			msgs: Conversation{assistantTurn(respondedPart("c1", "process_payment"))},
			out:  ToolOutput{Tool: "process_payment", ToolCallID: "c9", Output: "x"},
			want: false,
		},
		{
			name: "already terminal is a no-op",
			msgs: Conversation{assistantTurn(toolPart("c1", "search", StateOutputAvailable))},
			out:  ToolOutput{Tool: "search", ToolCallID: "c1", Output: "x"},
			want: false,
		},
		{
			name: "empty conversation",
			msgs: nil,
			out:  ToolOutput{Tool: "search", ToolCallID: "c1"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.msgs.ApplyToolOutput(tt.out)
			if got != tt.want {
				t.Fatalf("changed = %v, want %v", got, tt.want)
			}
			if got {
				p := tt.msgs.LastTurn().FindToolPart(tt.out.ToolCallID)
				if p.State != StateOutputAvailable {
					t.Errorf("state = %s, want %s", p.State, StateOutputAvailable)
				}
				if p.Output == nil {
					t.Error("output not recorded")
				}
			}
		})
	}
}
