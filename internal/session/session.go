// Package session orchestrates one conversation against the agent
// backend.
//
// session.go - conversation ownership and the decide-then-resend loop
//
// The session owns the conversation state. UI actions (send, approve,
// deny, report tool output) and network events both funnel through the
// same path: mutate state, evaluate the transport's resend decider, and
// resubmit automatically when it fires. The decider's idempotence guard
// is the correctness guarantee; a rate limiter bounds the blast radius
// of any regression and logs loudly if it ever trips.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/parleyhq/parley/internal/approval"
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/history"
	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/transport"
	"github.com/parleyhq/parley/internal/transport/live"
	"github.com/parleyhq/parley/internal/transport/sse"
)

// Mode selects the transport the session speaks.
type Mode string

const (
	// ModeStream uses one request/response exchange per turn.
	ModeStream Mode = "sse"
	// ModeLive uses the persistent bidirectional stream.
	ModeLive Mode = "live"
)

// Session owns one conversation and its transport handles.
type Session struct {
	id   string
	mode Mode

	mu           sync.Mutex
	conversation chat.Conversation
	turnOpen     bool
	savedTurns   int

	decider *chat.ResendDecider
	limiter *rate.Limiter

	stream  *sse.Client
	factory *live.Factory
	conn    *live.Conn

	store *history.Store
}

// Option configures a Session.
type Option func(*Session)

// WithStreamClient supplies the request/response transport.
func WithStreamClient(c *sse.Client) Option {
	return func(s *Session) { s.stream = c }
}

// WithLiveFactory supplies the persistent-stream connection factory.
func WithLiveFactory(f *live.Factory) Option {
	return func(s *Session) { s.factory = f }
}

// WithHistory supplies a persistence store for completed turns.
func WithHistory(store *history.Store) Option {
	return func(s *Session) { s.store = store }
}

// WithResendLimit overrides the defense-in-depth resend throttle.
func WithResendLimit(r rate.Limit, burst int) Option {
	return func(s *Session) { s.limiter = rate.NewLimiter(r, burst) }
}

// New creates a session for the given transport mode.
func New(mode Mode, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		mode:    mode,
		decider: chat.NewResendDecider(string(mode)),
		limiter: rate.NewLimiter(1, 5),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Mode returns the session's transport mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// Conversation returns a snapshot of the conversation.
func (s *Session) Conversation() chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() chat.Conversation {
	out := make(chat.Conversation, len(s.conversation))
	copy(out, s.conversation)
	return out
}

// SendText appends a user turn and submits the conversation.
func (s *Session) SendText(ctx context.Context, text string) error {
	s.mu.Lock()
	s.conversation = append(s.conversation, chat.Turn{
		ID:    uuid.NewString(),
		Role:  chat.RoleUser,
		Parts: []chat.Part{{Type: chat.PartText, Text: text}},
	})
	s.mu.Unlock()

	return s.submit(ctx)
}

// submit sends the conversation through the session's transport.
func (s *Session) submit(ctx context.Context) error {
	switch s.mode {
	case ModeLive:
		return s.submitLive(ctx)
	case ModeStream:
		return s.runExchanges(ctx)
	}
	return fmt.Errorf("unknown session mode %q", s.mode)
}

// submitLive sends a message frame on the persistent stream. A new
// message while a turn is still streaming closes and reopens the
// connection rather than attempting a half-duplex cancel.
func (s *Session) submitLive(ctx context.Context) error {
	if s.factory == nil {
		return fmt.Errorf("no persistent-stream factory configured")
	}

	var (
		conn *live.Conn
		err  error
	)
	if s.turnOpen && s.conn != nil {
		logger.Slog().Info("interrupting in-progress turn, reopening connection",
			"session_id", s.id)
		conn, err = s.factory.Fresh(ctx)
	} else {
		conn, err = s.factory.Get(ctx)
	}
	if err != nil {
		s.markError(err)
		return err
	}
	s.conn = conn

	if err := conn.SendMessages(s.Conversation()); err != nil {
		s.markError(err)
		return err
	}
	s.turnOpen = true
	return nil
}

// runExchanges issues one request/response exchange, then keeps going
// while the resend decider fires. The decider's idempotence guard
// bounds the loop to one round per user decision.
func (s *Session) runExchanges(ctx context.Context) error {
	if s.stream == nil {
		return fmt.Errorf("no request/response client configured")
	}

	for {
		ex, err := s.stream.Exchange(ctx, s.Conversation())
		if err != nil {
			s.markError(err)
			return err
		}

		if err := ex.Drain(ctx, s.applyIncoming); err != nil {
			s.markError(err)
			return err
		}

		s.persistTurns()

		if !s.shouldResendNow() {
			return nil
		}
		logger.Slog().Info("auto-resend triggered", "session_id", s.id, "mode", s.mode)
	}
}

// Pump processes incoming persistent-stream events until the turn
// finishes or an approval sub-phase pauses for user input.
func (s *Session) Pump(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("no open persistent-stream connection")
	}

	for {
		select {
		case ev, ok := <-s.conn.Events():
			if !ok {
				s.turnOpen = false
				return fmt.Errorf("persistent stream ended mid-turn")
			}
			s.applyIncoming(ev)

			switch ev.Type {
			case transport.EventFinish:
				s.turnOpen = false
				s.persistTurns()
				return nil
			case transport.EventFinishStep:
				if s.hasPendingApproval() {
					return nil
				}
			}

		case err := <-s.conn.Errors():
			s.turnOpen = false
			s.markError(err)
			return err

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// applyIncoming folds one event into the conversation and evaluates
// the resend decider on every state change, as the backend contract
// requires. Mid-stream the decision is observational only; the
// submit paths re-evaluate before any actual send.
func (s *Session) applyIncoming(ev *transport.Event) {
	s.mu.Lock()
	changed := applyEvent(&s.conversation, ev)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.decider.ShouldResend(snapshot)
	}
}

// AddToolApprovalResponse records the user's decision on a pending
// approval and resubmits if the decider fires.
func (s *Session) AddToolApprovalResponse(ctx context.Context, r chat.ApprovalResponse) error {
	s.mu.Lock()
	changed := s.conversation.ApplyApprovalResponse(r)
	s.mu.Unlock()

	if !changed {
		return fmt.Errorf("no pending approval with id %q", r.ID)
	}
	return s.resubmitIfNeeded(ctx)
}

// AddToolOutput records a frontend-computed tool result and resubmits
// if the decider fires.
func (s *Session) AddToolOutput(ctx context.Context, out chat.ToolOutput) error {
	s.mu.Lock()
	changed := s.conversation.ApplyToolOutput(out)
	s.mu.Unlock()

	if !changed {
		return fmt.Errorf("no tool part for call %q", out.ToolCallID)
	}
	return s.resubmitIfNeeded(ctx)
}

// DispatchApproval relays a decision on a legacy confirmation part
// through the approval dispatcher. Transport handles are passed as
// bound function values; the request/response path closes over ctx at
// construction time.
func (s *Session) DispatchApproval(ctx context.Context, toolCallID string, confirmed bool) approval.Result {
	s.mu.Lock()
	var part chat.Part
	found := false
	if p := s.conversation.LastTurn().FindToolPart(toolCallID); p != nil {
		part = *p
		found = true
	}
	s.mu.Unlock()

	if !found {
		return approval.Result{
			Success: false,
			Mode:    approval.ModeNone,
			Err:     fmt.Errorf("no tool part for call %q", toolCallID),
		}
	}

	var transports approval.Transports
	if s.mode == ModeLive && s.conn != nil {
		transports.SendDecision = s.conn.SendDecision
	} else if s.mode == ModeStream {
		transports.SubmitToolOutput = func(out chat.ToolOutput) error {
			return s.AddToolOutput(ctx, out)
		}
	}

	return approval.Dispatch(&part, confirmed, transports)
}

// resubmitIfNeeded runs the decide-then-resend step after a user
// action.
func (s *Session) resubmitIfNeeded(ctx context.Context) error {
	if !s.shouldResendNow() {
		return nil
	}
	logger.Slog().Info("auto-resend triggered", "session_id", s.id, "mode", s.mode)

	switch s.mode {
	case ModeLive:
		if s.conn == nil {
			return fmt.Errorf("no open persistent-stream connection")
		}
		return s.conn.SendMessages(s.Conversation())
	case ModeStream:
		return s.runExchanges(ctx)
	}
	return fmt.Errorf("unknown session mode %q", s.mode)
}

// shouldResendNow combines the decider with the throttle. The throttle
// never fires in correct operation; if it does, that is a bug worth a
// loud log line, not a silent loop.
func (s *Session) shouldResendNow() bool {
	if !s.decider.ShouldResend(s.Conversation()) {
		return false
	}
	if !s.limiter.Allow() {
		logger.Slog().Error("auto-resend throttled, decision loop suspected",
			"session_id", s.id, "mode", s.mode)
		return false
	}
	return true
}

func (s *Session) hasPendingApproval() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := s.conversation.LastTurn()
	for _, p := range chat.ExtractParts(last) {
		p := p
		if chat.IsApprovalRequested(&p) {
			return true
		}
	}
	return false
}

// markError surfaces a transport failure as an error state on the
// active turn. The decider treats an errored turn as terminal.
func (s *Session) markError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last := s.conversation.LastTurn(); last != nil && last.Role == chat.RoleAssistant {
		last.Error = err.Error()
	}
	logger.Slog().Error("turn failed", "session_id", s.id, "error", err)
}

// persistTurns appends newly completed turns to the history store.
func (s *Session) persistTurns() {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	pending := s.snapshotLocked()[s.savedTurns:]
	base := s.savedTurns
	s.mu.Unlock()

	for i, turn := range pending {
		if err := s.store.SaveTurn(s.id, base+i, turn); err != nil {
			logger.Slog().Warn("failed to persist turn",
				"session_id", s.id, "turn_id", turn.ID, "error", err)
			return
		}
	}

	s.mu.Lock()
	s.savedTurns = base + len(pending)
	s.mu.Unlock()
}

// Close releases the session's transport resources.
func (s *Session) Close() error {
	if s.factory != nil {
		return s.factory.Close()
	}
	return nil
}
