package conn

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/quantora/feedcache/internal/feed"
	"github.com/quantora/feedcache/internal/model"
)

// ErrReleased is returned by Handle methods after Release.
var ErrReleased = errors.New("connection handle already released")

// DialFunc produces a connected feed client. The default dials the real
// feed; tests inject fakes.
type DialFunc func(ctx context.Context) (feed.Client, error)

// Manager hands out reference-counted access to a single shared feed
// session.
type Manager interface {
	// Acquire returns a handle to the shared session, dialing it if no
	// other handle is live.
	Acquire(ctx context.Context) (*Handle, error)

	// Active reports whether a session is currently held open.
	Active() bool
}

// Handle is one caller's reference to the shared session. Release it when
// done; the session closes once every handle is released.
type Handle struct {
	mgr *manager

	mu       sync.Mutex
	released bool
}

// Query forwards one request over the shared session. Concurrent queries
// from different handles are safe; correlation happens inside the client.
func (h *Handle) Query(ctx context.Context, req feed.Request) ([]model.Row, error) {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil, ErrReleased
	}
	h.mu.Unlock()

	h.mgr.mu.Lock()
	client := h.mgr.client
	h.mgr.mu.Unlock()

	if client == nil {
		return nil, feed.ErrNotConnected
	}
	return client.Query(ctx, req)
}

// Release drops this reference. The last release closes the session.
// Releasing twice is a no-op.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.mu.Unlock()

	h.mgr.release()
}

// manager implements the Manager interface.
type manager struct {
	dial   DialFunc
	logger *slog.Logger

	mu     sync.Mutex
	client feed.Client
	refs   int
}

// NewManager creates a connection manager around the given dial function.
func NewManager(dial DialFunc, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &manager{
		dial:   dial,
		logger: logger,
	}
}

// NewFeedManager creates a manager that dials the real feed with cfg.
func NewFeedManager(cfg feed.Config, logger *slog.Logger) Manager {
	dial := func(ctx context.Context) (feed.Client, error) {
		c := feed.NewClient(cfg, logger)
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
	return NewManager(dial, logger)
}

// Acquire returns a handle to the shared session.
func (m *manager) Acquire(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		client, err := m.dial(ctx)
		if err != nil {
			return nil, err
		}
		m.client = client
		m.logger.Debug("feed session opened")
	}

	m.refs++
	m.logger.Debug("session reference acquired", "refs", m.refs)
	return &Handle{mgr: m}, nil
}

// Active reports whether a session is currently held open.
func (m *manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil
}

// release decrements the reference count and closes the session when it
// reaches zero.
func (m *manager) release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs == 0 {
		return
	}
	m.refs--
	m.logger.Debug("session reference released", "refs", m.refs)

	if m.refs == 0 && m.client != nil {
		if err := m.client.Close(); err != nil {
			m.logger.Warn("failed to close feed session", "error", err)
		}
		m.client = nil
		m.logger.Debug("feed session closed")
	}
}
