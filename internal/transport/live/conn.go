// Package live implements the persistent-stream transport.
//
// conn.go - long-lived bidirectional connection
//
// One connection exists per active conversation. Outgoing turns,
// approval decisions, and heartbeats are framed as discriminated
// envelopes; incoming frames carry the same `data: <json>` records as
// the request/response transport, so decoding is shared.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/transport"
)

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateClosed       State = "closed"
)

// Conn is one persistent bidirectional connection. Only the Conn's own
// send methods may write to the underlying socket.
type Conn struct {
	url string

	ws      *websocket.Conn
	writeMu sync.Mutex

	mu    sync.RWMutex
	state State

	events chan *transport.Event
	errs   chan error
	done   chan struct{}
	cancel context.CancelFunc

	maxTurns     int
	softBytes    int
	hardBytes    int
	pingInterval time.Duration
}

// Option configures a connection.
type Option func(*Conn)

// WithMaxHistoryTurns bounds the history included in message frames.
func WithMaxHistoryTurns(n int) Option {
	return func(c *Conn) { c.maxTurns = n }
}

// WithSizeThresholds sets the advisory soft/hard payload thresholds.
func WithSizeThresholds(soft, hard int) Option {
	return func(c *Conn) {
		c.softBytes = soft
		c.hardBytes = hard
	}
}

// WithPingInterval sets the heartbeat interval. Zero disables the
// heartbeat (used by tests).
func WithPingInterval(d time.Duration) Option {
	return func(c *Conn) { c.pingInterval = d }
}

// Dial opens a connection and starts its read pump.
func Dial(ctx context.Context, url string, opts ...Option) (*Conn, error) {
	c := &Conn{
		url:          url,
		state:        StateConnecting,
		events:       make(chan *transport.Event, 100),
		errs:         make(chan error, 10),
		done:         make(chan struct{}),
		maxTurns:     50,
		pingInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		c.state = StateDisconnected
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	c.ws = ws
	c.state = StateOpen
	metrics.ConnectionsOpen.Inc()

	pumpCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.readPump(pumpCtx)
	if c.pingInterval > 0 {
		go c.pingLoop(pumpCtx)
	}

	logger.Slog().Info("persistent stream open", "url", url)
	return c, nil
}

// State returns the connection lifecycle state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Events returns the channel of decoded incoming events.
func (c *Conn) Events() <-chan *transport.Event {
	return c.events
}

// Errors returns the channel of connection errors.
func (c *Conn) Errors() <-chan error {
	return c.errs
}

// Done returns a channel that closes when the connection ends.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// SendMessages frames the conversation as a message envelope and sends
// it. History is truncated to the configured bound before framing.
func (c *Conn) SendMessages(msgs chat.Conversation) error {
	msgs = transport.TruncateHistory(msgs, c.maxTurns)

	env, err := transport.NewMessageEnvelope(msgs)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	transport.CheckPayloadSize("live", payload, msgs, c.softBytes, c.hardBytes)

	return c.write(transport.FrameMessage, payload)
}

// SendDecision sends a function-response frame carrying the user's
// decision, keyed by the original tool call's id and name.
func (c *Conn) SendDecision(callID, toolName string, approved bool, userMessage string) error {
	env, err := transport.NewDecisionEnvelope(transport.DecisionData{
		ID:   callID,
		Name: toolName,
		Response: transport.DecisionResponse{
			Approved:    approved,
			UserMessage: userMessage,
		},
	})
	if err != nil {
		return err
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode decision envelope: %w", err)
	}

	return c.write(transport.FrameFunctionResponse, payload)
}

// Ping sends one heartbeat frame.
func (c *Conn) Ping() error {
	payload, err := json.Marshal(transport.NewPingEnvelope())
	if err != nil {
		return fmt.Errorf("failed to encode ping: %w", err)
	}
	return c.write(transport.FramePing, payload)
}

func (c *Conn) write(frameType string, payload []byte) error {
	if c.State() != StateOpen {
		return fmt.Errorf("connection is %s, not open", c.State())
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send %s frame: %w", frameType, err)
	}
	metrics.RecordFrame(frameType)
	return nil
}

// Close shuts the connection down. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.mu.Unlock()

	metrics.ConnectionsOpen.Dec()
	c.cancel()
	err := c.ws.Close()
	logger.Slog().Info("persistent stream closed", "url", c.url)
	return err
}

// readPump reads frames until the connection closes. Frames may carry
// several `data:` records; each decodes through the shared parser.
func (c *Conn) readPump(ctx context.Context) {
	defer func() {
		close(c.events)
		close(c.errs)
		close(c.done)
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.State() != StateClosed && ctx.Err() == nil {
				c.errs <- fmt.Errorf("persistent stream read failed: %w", err)
			}
			return
		}

		for _, line := range strings.Split(string(data), "\n") {
			event, doneMark, err := transport.ParseLine(line)
			if err != nil {
				logger.Slog().Warn("skipping malformed frame line", "error", err)
				continue
			}
			if doneMark || event == nil {
				continue
			}

			select {
			case c.events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Conn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				logger.Slog().Warn("heartbeat failed", "error", err)
				return
			}
		}
	}
}
