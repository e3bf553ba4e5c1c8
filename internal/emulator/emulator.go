// Package emulator replays captured backend event sequences over both
// transports for tests.
//
// A Script is an ordered list of phases. Each client submission (POST
// exchange, message frame, or decision frame) advances one phase and
// replays that phase's events. Phase state lives on the Emulator
// instance, constructed fresh per test, so fixtures cannot leak across
// tests.
package emulator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/internal/transport"
)

// Script holds the event phases of one recorded backend session.
type Script [][]*transport.Event

// Emulator serves a script over an SSE endpoint, a websocket endpoint,
// or both.
type Emulator struct {
	script Script

	mu        sync.Mutex
	phase     int
	requests  []transport.MessageData
	decisions []transport.DecisionData
	pings     int

	upgrader websocket.Upgrader
}

// New creates an emulator for the given script.
func New(script Script) *Emulator {
	return &Emulator{script: script}
}

// StreamServer returns an httptest server emulating the
// request/response endpoint. Callers own the server's lifetime.
func (e *Emulator) StreamServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(e.handleStream))
}

// LiveServer returns an httptest server emulating the persistent
// stream endpoint, plus the ws:// URL to dial.
func (e *Emulator) LiveServer() (*httptest.Server, string) {
	srv := httptest.NewServer(http.HandlerFunc(e.handleLive))
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// Requests returns the message payloads received so far.
func (e *Emulator) Requests() []transport.MessageData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]transport.MessageData(nil), e.requests...)
}

// Decisions returns the function-response payloads received so far.
func (e *Emulator) Decisions() []transport.DecisionData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]transport.DecisionData(nil), e.decisions...)
}

// Pings returns the number of heartbeat frames received.
func (e *Emulator) Pings() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pings
}

func (e *Emulator) handleStream(w http.ResponseWriter, r *http.Request) {
	var body transport.MessageData
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("bad body: %v", err), http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.requests = append(e.requests, body)
	events := e.nextPhaseLocked()
	e.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)

	for _, ev := range events {
		line, err := transport.EncodeLine(ev)
		if err != nil {
			continue
		}
		_, _ = fmt.Fprint(w, line)
		if flusher != nil {
			flusher.Flush()
		}
	}
	_, _ = fmt.Fprint(w, transport.DoneLine())
}

func (e *Emulator) handleLive(w http.ResponseWriter, r *http.Request) {
	ws, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = ws.Close() }()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var env transport.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Type {
		case transport.FramePing:
			e.mu.Lock()
			e.pings++
			e.mu.Unlock()
			continue

		case transport.FrameMessage:
			var md transport.MessageData
			if err := json.Unmarshal(env.Data, &md); err != nil {
				continue
			}
			e.mu.Lock()
			e.requests = append(e.requests, md)
			events := e.nextPhaseLocked()
			e.mu.Unlock()
			e.replay(ws, events)

		case transport.FrameFunctionResponse:
			var dd transport.DecisionData
			if err := json.Unmarshal(env.Data, &dd); err != nil {
				continue
			}
			e.mu.Lock()
			e.decisions = append(e.decisions, dd)
			events := e.nextPhaseLocked()
			e.mu.Unlock()
			e.replay(ws, events)
		}
	}
}

func (e *Emulator) nextPhaseLocked() []*transport.Event {
	if e.phase >= len(e.script) {
		return nil
	}
	events := e.script[e.phase]
	e.phase++
	return events
}

func (e *Emulator) replay(ws *websocket.Conn, events []*transport.Event) {
	for _, ev := range events {
		line, err := transport.EncodeLine(ev)
		if err != nil {
			continue
		}
		if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}
}
