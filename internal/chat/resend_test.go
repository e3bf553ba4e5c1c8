package chat

import "testing"

func boolPtr(b bool) *bool { return &b }

func userTurn(text string) Turn {
	return Turn{ID: "u1", Role: RoleUser, Parts: []Part{{Type: PartText, Text: text}}}
}

func assistantTurn(parts ...Part) Turn {
	return Turn{ID: "a1", Role: RoleAssistant, Parts: parts}
}

func respondedPart(callID, name string) Part {
	p := toolPart(callID, name, StateApprovalResponded)
	p.Approval = &Approval{ID: "appr-" + callID, Approved: boolPtr(true)}
	return p
}

func legacyConfirmation(confID, callID, name string, state ToolState) Part {
	p := toolPart(confID, ToolRequestConfirmation, state)
	p.Input = map[string]any{
		"originalFunctionCall": map[string]any{
			"id":   callID,
			"name": name,
			"args": map[string]any{},
		},
	}
	return p
}

func TestShouldResend(t *testing.T) {
	tests := []struct {
		name string
		msgs Conversation
		want bool
	}{
		{
			name: "empty conversation",
			msgs: nil,
			want: false,
		},
		{
			name: "last turn is user",
			msgs: Conversation{userTurn("hi")},
			want: false,
		},
		{
			name: "errored turn never resends",
			msgs: Conversation{
				userTurn("hi"),
				Turn{Role: RoleAssistant, Error: "connection reset",
					Parts: []Part{respondedPart("c1", "pay")}},
			},
			want: false,
		},
		{
			name: "no confirmation present",
			msgs: Conversation{
				userTurn("hi"),
				assistantTurn(Part{Type: PartText, Text: "hello"}),
			},
			want: false,
		},
		{
			name: "inline approval responded",
			msgs: Conversation{
				userTurn("pay the invoice"),
				assistantTurn(respondedPart("c1", "process_payment")),
			},
			want: true,
		},
		{
			name: "inline target already produced output",
			msgs: Conversation{
				userTurn("pay the invoice"),
				assistantTurn(func() Part {
					p := respondedPart("c1", "process_payment")
					p.Output = map[string]any{"status": "done"}
					return p
				}()),
			},
			want: false,
		},
		{
			name: "inline target carries error text",
			msgs: Conversation{
				userTurn("pay the invoice"),
				assistantTurn(func() Part {
					p := respondedPart("c1", "process_payment")
					p.ErrorText = "declined upstream"
					return p
				}()),
			},
			want: false,
		},
		{
			name: "legacy confirmation answered",
			msgs: Conversation{
				userTurn("book it"),
				assistantTurn(
					toolPart("c1", "book_flight", StateInputAvailable),
					func() Part {
						p := legacyConfirmation("conf1", "c1", "book_flight", StateOutputAvailable)
						p.Output = map[string]any{"confirmed": true}
						return p
					}(),
				),
			},
			want: true,
		},
		{
			name: "legacy blocked by terminal sibling",
			msgs: Conversation{
				userTurn("book both"),
				assistantTurn(
					toolPart("c1", "book_flight", StateOutputAvailable),
					toolPart("c2", "book_hotel", StateInputAvailable),
					func() Part {
						p := legacyConfirmation("conf2", "c2", "book_hotel", StateOutputAvailable)
						p.Output = map[string]any{"confirmed": true}
						return p
					}(),
				),
			},
			want: false,
		},
		{
			name: "inline blocked by errored sibling",
			msgs: Conversation{
				userTurn("run both"),
				assistantTurn(
					func() Part {
						p := toolPart("c1", "search", StateInputAvailable)
						p.ErrorText = "tool crashed"
						return p
					}(),
					respondedPart("c2", "process_payment"),
				),
			},
			want: false,
		},
		{
			name: "pending approval not yet responded",
			msgs: Conversation{
				userTurn("pay"),
				assistantTurn(toolPart("c1", "process_payment", StateApprovalRequested)),
			},
			want: false,
		},
	}

	decider := NewResendDecider("test")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decider.ShouldResend(tt.msgs); got != tt.want {
				t.Errorf("ShouldResend = %v, want %v", got, tt.want)
			}
		})
	}
}

// A second evaluation of the same conversation after the backend
// answered must flip to false, bounding auto-sends to one per decision.
func TestShouldResendIdempotence(t *testing.T) {
	decider := NewResendDecider("test")

	msgs := Conversation{
		userTurn("pay the invoice"),
		assistantTurn(respondedPart("c1", "process_payment")),
	}
	if !decider.ShouldResend(msgs) {
		t.Fatal("first evaluation should resend")
	}

	// Backend answers; the part becomes terminal.
	target := msgs.LastTurn().FindToolPart("c1")
	target.AdvanceState(StateOutputAvailable)
	target.Output = map[string]any{"status": "done"}

	if decider.ShouldResend(msgs) {
		t.Error("second evaluation after output must not resend")
	}
}

func TestShouldResendRecoversFromPanic(t *testing.T) {
	decider := NewResendDecider("test")

	// A tool part with a non-map originalFunctionCall value exercises
	// the defensive type assertions; deeper corruption is covered by
	// the recover path which must resolve to false.
	msgs := Conversation{
		assistantTurn(func() Part {
			p := toolPart("conf1", ToolRequestConfirmation, StateOutputAvailable)
			p.Input = map[string]any{"originalFunctionCall": "not a map"}
			p.Output = map[string]any{"confirmed": true}
			return p
		}()),
	}

	// Must not panic regardless of outcome.
	_ = decider.ShouldResend(msgs)
}

func TestDeciderName(t *testing.T) {
	if got := NewResendDecider("sse").Name(); got != "sse" {
		t.Errorf("Name = %q, want sse", got)
	}
}
