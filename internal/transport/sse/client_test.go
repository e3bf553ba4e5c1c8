package sse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/emulator"
	"github.com/parleyhq/parley/internal/testutil"
	"github.com/parleyhq/parley/internal/transport"
)

func drainAll(t *testing.T, ex *Exchange) []*transport.Event {
	t.Helper()
	var got []*transport.Event
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ex.Drain(ctx, func(ev *transport.Event) {
		got = append(got, ev)
	}); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	return got
}

func TestExchangeStreamsUntilDone(t *testing.T) {
	em := emulator.New(emulator.Script{emulator.TextReply("hello there")})
	srv := em.StreamServer()
	defer srv.Close()

	client := New(srv.URL)
	msgs := chat.Conversation{testutil.UserTurn(t, "hi")}

	ex, err := client.Exchange(context.Background(), msgs)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	events := drainAll(t, ex)

	if len(events) != 7 {
		t.Fatalf("got %d events, want 7", len(events))
	}
	if events[0].Type != transport.EventStart || events[len(events)-1].Type != transport.EventFinish {
		t.Errorf("unexpected framing: first=%s last=%s", events[0].Type, events[len(events)-1].Type)
	}

	reqs := em.Requests()
	if len(reqs) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(reqs))
	}
	if len(reqs[0].Messages) != 1 || reqs[0].Messages[0].Role != chat.RoleUser {
		t.Errorf("request body lost the conversation: %+v", reqs[0].Messages)
	}
}

func TestExchangeTruncatesHistory(t *testing.T) {
	em := emulator.New(emulator.Script{emulator.TextReply("ok")})
	srv := em.StreamServer()
	defer srv.Close()

	client := New(srv.URL, WithMaxHistoryTurns(3))

	var msgs chat.Conversation
	for i := 0; i < 6; i++ {
		msgs = append(msgs, testutil.UserTurn(t, fmt.Sprintf("turn %d", i)))
	}

	ex, err := client.Exchange(context.Background(), msgs)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	drainAll(t, ex)

	reqs := em.Requests()
	if len(reqs) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(reqs))
	}
	sent := reqs[0].Messages
	if len(sent) != 3 {
		t.Fatalf("sent %d turns, want 3", len(sent))
	}
	// Most recent turns survive.
	if sent[2].Parts[0].Text != "turn 5" {
		t.Errorf("last sent turn = %q, want turn 5", sent[2].Parts[0].Text)
	}
}

func TestExchangeNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(srv.URL)
	_, err := client.Exchange(context.Background(), chat.Conversation{testutil.UserTurn(t, "hi")})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestExchangeSkipsMalformedLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {broken\n\n")
		fmt.Fprint(w, "data: {\"type\":\"text-start\",\"id\":\"t1\"}\n\n")
		fmt.Fprint(w, transport.DoneLine())
	}))
	defer srv.Close()

	client := New(srv.URL)
	ex, err := client.Exchange(context.Background(), chat.Conversation{testutil.UserTurn(t, "hi")})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	events := drainAll(t, ex)

	if len(events) != 1 || events[0].Type != transport.EventTextStart {
		t.Errorf("events = %+v, want one text-start", events)
	}
}

func TestExchangeContextCancel(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		if f, ok := w.(http.Flusher); ok {
			fmt.Fprint(w, "data: {\"type\":\"start\"}\n\n")
			f.Flush()
		}
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	client := New(srv.URL)
	ex, err := client.Exchange(ctx, chat.Conversation{testutil.UserTurn(t, "hi")})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	cancel()

	select {
	case <-ex.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("exchange did not stop after cancel")
	}
}
