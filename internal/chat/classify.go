// Package chat - event classifier.
//
// classify.go - pure part-matching helpers
//
// Classification is pure and total: malformed or partial input resolves
// to "no match", never to a panic or an error. Both historical wire
// shapes (inline-approval and legacy separate-confirmation) are
// resolved through a single chain so mixed fixtures stay supported
// without a protocol-version flag.
package chat

// ExtractParts returns the turn's parts, or an empty slice when the
// turn has none. Never fails.
func ExtractParts(t *Turn) []Part {
	if t == nil || t.Parts == nil {
		return []Part{}
	}
	return t.Parts
}

// FindPart returns the first part whose type matches typ, or nil.
// First-match semantics over slice order break ties between duplicate
// entries.
func FindPart(parts []Part, typ PartType) *Part {
	for i := range parts {
		if parts[i].Type == typ {
			return &parts[i]
		}
	}
	return nil
}

// FindPartInState returns the first part matching both typ and state,
// or nil.
func FindPartInState(parts []Part, typ PartType, state ToolState) *Part {
	for i := range parts {
		if parts[i].Type == typ && parts[i].State == state {
			return &parts[i]
		}
	}
	return nil
}

// IsApprovalRequested reports whether the part awaits a user decision,
// regardless of which wire shape produced it.
func IsApprovalRequested(p *Part) bool {
	return p != nil && p.Type == PartToolInvocation && p.State == StateApprovalRequested
}

// IsApprovalResponded reports whether a user decision has been recorded
// on the part.
func IsApprovalResponded(p *Part) bool {
	return p != nil && p.Type == PartToolInvocation && p.State == StateApprovalResponded
}

// ConfirmationShape identifies which wire shape produced a
// confirmation-bearing part.
type ConfirmationShape string

const (
	ShapeNone   ConfirmationShape = "none"
	ShapeInline ConfirmationShape = "inline"
	ShapeLegacy ConfirmationShape = "legacy"
)

// FindConfirmation locates a confirmation-bearing part in resolution
// order: the inline-approval shape first (any tool part in
// approval-responded), then the legacy separate-confirmation shape (a
// dedicated confirmation-tool part in output-available). Returns the
// part and the shape that matched, or (nil, ShapeNone).
func FindConfirmation(parts []Part) (*Part, ConfirmationShape) {
	if p := FindPartInState(parts, PartToolInvocation, StateApprovalResponded); p != nil {
		return p, ShapeInline
	}
	for i := range parts {
		p := &parts[i]
		if p.IsConfirmation() && p.State == StateOutputAvailable {
			return p, ShapeLegacy
		}
	}
	return nil, ShapeNone
}
