// Package sse implements the request/response transport.
//
// client.go - one self-contained exchange per turn
//
// Each turn is one POST of the full (truncated) history; the server
// streams back `data: <json>` records terminated by a literal
// `data: [DONE]` sentinel, then the connection closes. No mid-exchange
// frontend-to-backend signaling is possible in this mode.
package sse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/transport"
)

// Client issues streaming exchanges against the backend's chat
// endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	maxTurns   int
	softBytes  int
	hardBytes  int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxHistoryTurns bounds the history replayed per exchange.
func WithMaxHistoryTurns(n int) Option {
	return func(c *Client) { c.maxTurns = n }
}

// WithSizeThresholds sets the advisory soft/hard payload thresholds.
func WithSizeThresholds(soft, hard int) Option {
	return func(c *Client) {
		c.softBytes = soft
		c.hardBytes = hard
	}
}

// New creates a request/response transport client.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 0}, // streaming; per-exchange ctx governs
		maxTurns:   50,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange is one in-flight request/response stream.
type Exchange struct {
	events chan *transport.Event
	errs   chan error
	done   chan struct{}
	body   io.ReadCloser
	cancel context.CancelFunc
}

// Exchange posts the conversation and starts reading the streamed
// response. The returned Exchange's channels deliver events until the
// done sentinel arrives or ctx is canceled.
func (c *Client) Exchange(ctx context.Context, msgs chat.Conversation) (*Exchange, error) {
	msgs = transport.TruncateHistory(msgs, c.maxTurns)

	payload, err := json.Marshal(transport.MessageData{Messages: msgs})
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	transport.CheckPayloadSize("sse", payload, msgs, c.softBytes, c.hardBytes)

	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("exchange failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("exchange returned %d: %s", resp.StatusCode, string(body))
	}

	ex := &Exchange{
		events: make(chan *transport.Event, 100),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
		body:   resp.Body,
		cancel: cancel,
	}
	go ex.process(ctx)

	logger.Slog().Debug("exchange started",
		"endpoint", c.endpoint,
		"turns", len(msgs),
		"bytes", len(payload))

	return ex, nil
}

// Events returns the channel of decoded incoming events.
func (ex *Exchange) Events() <-chan *transport.Event {
	return ex.events
}

// Errors returns the channel of stream errors.
func (ex *Exchange) Errors() <-chan error {
	return ex.errs
}

// Done returns a channel that closes when the stream ends.
func (ex *Exchange) Done() <-chan struct{} {
	return ex.done
}

// Close aborts the in-flight exchange.
func (ex *Exchange) Close() error {
	ex.cancel()
	return ex.body.Close()
}

// process reads framed lines until the done sentinel, EOF, or
// cancellation.
func (ex *Exchange) process(ctx context.Context) {
	defer func() {
		_ = ex.body.Close()
		close(ex.events)
		close(ex.errs)
		close(ex.done)
	}()

	reader := bufio.NewReader(ex.body)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				ex.errs <- fmt.Errorf("error reading exchange stream: %w", err)
			}
			return
		}

		event, doneMark, err := transport.ParseLine(line)
		if err != nil {
			// Skip malformed records; the stream itself is still live.
			logger.Slog().Warn("skipping malformed event", "error", err)
			continue
		}
		if doneMark {
			return
		}
		if event == nil {
			continue
		}

		select {
		case ex.events <- event:
		case <-ctx.Done():
			return
		}
	}
}

// Drain reads all remaining events from the exchange, invoking apply
// for each, and returns when the stream ends. The deadline guards tests
// against a stalled emulator.
func (ex *Exchange) Drain(ctx context.Context, apply func(*transport.Event)) error {
	for {
		select {
		case ev, ok := <-ex.events:
			if !ok {
				// Surface any error queued before the stream closed.
				if err, pending := <-ex.errs; pending {
					return err
				}
				return nil
			}
			apply(ev)
		case err := <-ex.errs:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(30 * time.Second):
			return fmt.Errorf("exchange stalled")
		}
	}
}
