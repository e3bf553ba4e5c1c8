package transport

import (
	"strings"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantType EventType
		wantDone bool
		wantErr  bool
		wantNil  bool
	}{
		{
			name:     "text delta",
			line:     `data: {"type":"text-delta","id":"t1","delta":"hel"}`,
			wantType: EventTextDelta,
		},
		{
			name:     "tool input available",
			line:     `data: {"type":"tool-input-available","toolCallId":"c1","toolName":"search","input":{"q":"go"}}`,
			wantType: EventToolInputAvailable,
		},
		{
			name:     "approval request",
			line:     `data: {"type":"tool-approval-request","toolCallId":"c1","approvalId":"appr1"}`,
			wantType: EventToolApprovalReq,
		},
		{
			name:     "done sentinel",
			line:     "data: [DONE]",
			wantDone: true,
			wantNil:  true,
		},
		{
			name:    "blank line",
			line:    "   \n",
			wantNil: true,
		},
		{
			name:    "comment line",
			line:    ": keepalive",
			wantNil: true,
		},
		{
			name:    "empty data payload",
			line:    "data:",
			wantNil: true,
		},
		{
			name:    "malformed json",
			line:    `data: {"type":`,
			wantErr: true,
			wantNil: true,
		},
		{
			name:    "missing type tag",
			line:    `data: {"delta":"x"}`,
			wantErr: true,
			wantNil: true,
		},
		{
			name:     "unknown type passes through",
			line:     `data: {"type":"future-thing"}`,
			wantType: EventType("future-thing"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, done, err := ParseLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if done != tt.wantDone {
				t.Fatalf("done = %v, want %v", done, tt.wantDone)
			}
			if tt.wantNil {
				if ev != nil {
					t.Fatalf("expected nil event, got %+v", ev)
				}
				return
			}
			if ev == nil || ev.Type != tt.wantType {
				t.Errorf("event = %+v, want type %s", ev, tt.wantType)
			}
		})
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	in := &Event{
		Type:       EventToolOutputAvail,
		ToolCallID: "c1",
		Output:     map[string]any{"confirmed": true},
	}

	line, err := EncodeLine(in)
	if err != nil {
		t.Fatalf("EncodeLine: %v", err)
	}
	if !strings.HasPrefix(line, "data: ") || !strings.HasSuffix(line, "\n\n") {
		t.Fatalf("framing = %q", line)
	}

	out, done, err := ParseLine(line)
	if err != nil || done {
		t.Fatalf("ParseLine: err=%v done=%v", err, done)
	}
	if out.Type != in.Type || out.ToolCallID != in.ToolCallID {
		t.Errorf("round trip lost fields: %+v", out)
	}
}

func TestDoneLine(t *testing.T) {
	_, done, err := ParseLine(DoneLine())
	if err != nil || !done {
		t.Errorf("DoneLine not recognized: err=%v done=%v", err, done)
	}
}
