package live

import (
	"context"
	"sync"

	"github.com/parleyhq/parley/internal/logger"
)

// Factory owns at most one connection at a time. Fresh discards the
// prior connection so stale server-side turn state cannot bleed into a
// new context (mode switches in the surrounding application).
type Factory struct {
	url  string
	opts []Option

	mu      sync.Mutex
	current *Conn
}

// NewFactory creates a connection factory for the given endpoint.
func NewFactory(url string, opts ...Option) *Factory {
	return &Factory{url: url, opts: opts}
}

// Get returns the current open connection, dialing one if needed.
func (f *Factory) Get(ctx context.Context) (*Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil && f.current.State() == StateOpen {
		return f.current, nil
	}

	conn, err := Dial(ctx, f.url, f.opts...)
	if err != nil {
		return nil, err
	}
	f.current = conn
	return conn, nil
}

// Fresh force-creates a new connection, closing any prior one first.
func (f *Factory) Fresh(ctx context.Context) (*Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil {
		if err := f.current.Close(); err != nil {
			logger.Slog().Warn("failed to close prior connection", "error", err)
		}
		f.current = nil
	}

	conn, err := Dial(ctx, f.url, f.opts...)
	if err != nil {
		return nil, err
	}
	f.current = conn
	return conn, nil
}

// Close shuts down the current connection, if any.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current == nil {
		return nil
	}
	err := f.current.Close()
	f.current = nil
	return err
}
