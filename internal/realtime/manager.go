package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/cambio/internal/chat"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}

	return "disconnected"
}

const DefaultReconnectDelay = 3 * time.Second

var errClosed = errors.New("connection closed")

// Manager owns the chat session. It reconnects after a fixed delay until
// Disconnect is called and never returns connection failures to callers;
// they are available from Err.
type Manager struct {
	dialer   Dialer
	registry *Registry
	delay    time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	state     State
	conn      Conn
	cancel    context.CancelFunc
	err       error
	listeners []func(State)
}

type Option func(*Manager)

func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) {
		m.delay = d
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

func NewManager(dialer Dialer, registry *Registry, opts ...Option) *Manager {
	m := &Manager{
		dialer:   dialer,
		registry: registry,
		delay:    DefaultReconnectDelay,
		log:      slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// OnStateChange registers fn to be called after every state change. fn runs
// on the connection goroutine and must not block.
func (m *Manager) OnStateChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners = append(m.listeners, fn)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.err
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

// Connect starts the session loop. It does nothing while a loop is running.
func (m *Manager) Connect(credential string) {
	m.mu.Lock()

	if m.cancel != nil {
		m.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.err = nil
	m.mu.Unlock()

	go m.run(ctx, credential)
}

// Disconnect stops the loop, closes the session and forgets every
// subscription. It is safe to call at any time.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}

	conn := m.conn
	m.cancel, m.conn = nil, nil
	m.mu.Unlock()

	m.registry.Reset()

	if conn != nil {
		if err := conn.Close(); err != nil {
			m.log.Debug("failed to close chat connection", "error", err)
		}
	}

	m.mu.Lock()
	m.err = nil
	changed := m.state != StateDisconnected
	m.state = StateDisconnected
	listeners := m.listeners
	m.mu.Unlock()

	if changed {
		notify(listeners, StateDisconnected)
	}
}

// Subscribe opens the transaction's chat on the current session.
func (m *Manager) Subscribe(transactionID int64) error {
	return m.registry.Subscribe(transactionID)
}

func (m *Manager) Unsubscribe(transactionID int64) {
	m.registry.Unsubscribe(transactionID)
}

// Send publishes content to the transaction's chat.
func (m *Manager) Send(transactionID int64, content string) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		m.setErr(ErrNotConnected)
		return ErrNotConnected
	}

	err := conn.Publish(chat.SendAddressFor(transactionID), chat.SendPayload{Content: content})
	if err != nil {
		err = fmt.Errorf("sending message: %w", err)
		m.setErr(err)

		return err
	}

	return nil
}

func (m *Manager) run(ctx context.Context, credential string) {
	for {
		m.setState(ctx, StateConnecting, nil)

		err := m.session(ctx, credential)
		if ctx.Err() != nil {
			return
		}

		m.log.Warn("chat connection lost", "error", err, "retry_in", m.delay)
		m.setState(ctx, StateDisconnected, err)

		timer := time.NewTimer(m.delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session dials, serves one connection until it ends and reports why.
func (m *Manager) session(ctx context.Context, credential string) error {
	conn, err := m.dialer.Dial(ctx, credential)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		_ = conn.Close()

		return ctx.Err()
	}

	m.conn = conn
	m.mu.Unlock()

	m.registry.Restore(ctx, conn)
	m.setState(ctx, StateConnected, nil)
	m.log.Info("chat connected")

	select {
	case <-ctx.Done():
		m.release(conn)
		_ = conn.Close()

		return ctx.Err()
	case <-conn.Done():
	}

	m.release(conn)

	m.registry.Drop(conn)

	if err := conn.Err(); err != nil {
		return err
	}

	return errClosed
}

func (m *Manager) release(conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == conn {
		m.conn = nil
	}
}

// setState records s unless the loop that owns ctx has been stopped.
func (m *Manager) setState(ctx context.Context, s State, err error) {
	m.mu.Lock()

	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}

	changed := m.state != s
	m.state = s

	if err != nil {
		m.err = err
	} else if s == StateConnected {
		m.err = nil
	}

	listeners := m.listeners
	m.mu.Unlock()

	if changed {
		notify(listeners, s)
	}
}

func (m *Manager) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err
}

func notify(listeners []func(State), s State) {
	for _, fn := range listeners {
		fn(s)
	}
}
