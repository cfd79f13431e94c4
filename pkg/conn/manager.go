// Package conn owns the persistent duplex connection to the concierge
// service: its lifecycle state, the fixed-delay reconnection policy and the
// guarded outbound send path.
package conn

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultReconnectDelay is the fixed wait between a close and the next dial.
const DefaultReconnectDelay = 2 * time.Second

// State is the lifecycle state of the managed connection.
type State int

// Connection states.
const (
	Closed State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

// Indicator values published for status displays.
const (
	IndicatorConnected    = "connected"
	IndicatorDisconnected = "disconnected"
)

// Indicator maps a state to the status display value.
func (s State) Indicator() string {
	if s == Open {
		return IndicatorConnected
	}
	return IndicatorDisconnected
}

// Conn is one live duplex connection. ReadMessage is only ever called from a
// single goroutine; WriteMessage calls are serialized by the Manager.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a new Conn to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithReconnectDelay overrides DefaultReconnectDelay (for testing).
func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) { m.delay = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithMessageHandler sets the callback for inbound frames. Frames from one
// connection are delivered sequentially, in arrival order.
func WithMessageHandler(fn func([]byte)) Option {
	return func(m *Manager) { m.onMessage = fn }
}

// WithStateObserver registers a callback invoked on every transition.
// Observers run with the manager locked and must not call back into it.
func WithStateObserver(fn func(State)) Option {
	return func(m *Manager) { m.observers = append(m.observers, fn) }
}

// Manager is the connection state machine. It holds at most one Conn and at
// most one pending reconnect timer at any time.
type Manager struct {
	url       string
	dialer    Dialer
	delay     time.Duration
	log       *slog.Logger
	onMessage func([]byte)
	observers []func(State)

	mu      sync.Mutex
	state   State
	conn    Conn
	gen     uint64 // bumped whenever the owned connection is replaced or dropped
	timer   *time.Timer
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc

	writeMu sync.Mutex
}

// New creates a Manager for url. Nothing is dialed until Connect or Run.
func New(url string, dialer Dialer, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		url:       url,
		dialer:    dialer,
		delay:     DefaultReconnectDelay,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		onMessage: func([]byte) {},
		state:     Closed,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Indicator returns "connected" when open and "disconnected" otherwise.
func (m *Manager) Indicator() string {
	return m.State().Indicator()
}

// Run connects and blocks until ctx is done, then shuts the manager down.
func (m *Manager) Run(ctx context.Context) error {
	m.Connect()
	<-ctx.Done()
	m.Shutdown()
	return nil
}

// Connect starts a dial. It is a no-op while a dial is pending, while a
// connection is open, and after Shutdown, so two live connections can never
// compete for the same session.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || m.state != Closed {
		return
	}
	m.stopTimerLocked()
	m.gen++
	m.setStateLocked(Connecting)
	go m.dial(m.ctx, m.gen)
}

// Close drops the current connection. The manager then follows the normal
// closed path and redials after the reconnect delay.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Closed {
		return
	}
	m.closeLocked()
}

// Shutdown closes the connection and stops reconnecting for good.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true
	m.cancel()
	m.stopTimerLocked()
	m.gen++
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.setStateLocked(Closed)
}

// Send marshals v and writes it when the connection is open. Otherwise the
// envelope is dropped and Send returns false. A true result only means the
// frame was written; delivery is confirmed by status_update envelopes.
func (m *Manager) Send(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.Error("marshal outbound envelope", "error", err)
		return false
	}

	m.mu.Lock()
	if m.state != Open || m.conn == nil {
		m.mu.Unlock()
		m.log.Debug("send dropped, connection not open")
		return false
	}
	c, gen := m.conn, m.gen
	m.mu.Unlock()

	m.writeMu.Lock()
	err = c.WriteMessage(data)
	m.writeMu.Unlock()
	if err != nil {
		m.drop(gen, err)
		return false
	}
	return true
}

func (m *Manager) dial(ctx context.Context, gen uint64) {
	c, err := m.dialer.Dial(ctx, m.url)

	m.mu.Lock()
	if gen != m.gen || m.stopped {
		m.mu.Unlock()
		if c != nil {
			_ = c.Close()
		}
		return
	}
	if err != nil {
		m.log.Warn("dial failed", "url", m.url, "error", err)
		m.closeLocked()
		m.mu.Unlock()
		return
	}
	m.conn = c
	m.setStateLocked(Open)
	m.mu.Unlock()

	m.log.Info("connected", "url", m.url)
	m.readLoop(gen, c)
}

func (m *Manager) readLoop(gen uint64, c Conn) {
	for {
		data, err := c.ReadMessage()
		if err != nil {
			m.drop(gen, err)
			return
		}
		m.onMessage(data)
	}
}

// drop handles a transport error on the connection of generation gen.
// Errors from a connection that has already been replaced are ignored.
func (m *Manager) drop(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.state == Closed {
		return
	}
	m.log.Info("connection closed", "error", err)
	m.closeLocked()
}

// closeLocked moves to Closed and arms the reconnect timer.
func (m *Manager) closeLocked() {
	m.gen++
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.setStateLocked(Closed)
	if m.stopped {
		return
	}
	m.stopTimerLocked()
	m.timer = time.AfterFunc(m.delay, m.Connect)
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	for _, fn := range m.observers {
		fn(s)
	}
}
