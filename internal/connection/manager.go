package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultClientID  = "downstairs"
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 60 * time.Second
	writeTimeout     = 10 * time.Second
)

var (
	// ErrNotConnected is returned by Flush when no transport is open.
	ErrNotConnected = errors.New("not connected")
	// ErrMissingURL indicates an empty endpoint URL.
	ErrMissingURL = errors.New("websocket url is required")
)

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Conn is the transport used by Manager. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// keepaliveConn is implemented by *websocket.Conn; other transports skip
// deadlines and pings.
type keepaliveConn interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

// DialFunc opens a transport to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// FrameHandler receives inbound text frames.
type FrameHandler func(ctx context.Context, frame []byte)

type stopper interface {
	Stop() bool
}

// Options configures a Manager.
type Options struct {
	URL              string
	ClientID         string
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	QueueLimit       int
}

func (o Options) normalize() Options {
	if o.ClientID == "" {
		o.ClientID = defaultClientID
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = defaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = defaultMaxDelay
	}
	if o.MaxDelay < o.BaseDelay {
		o.MaxDelay = o.BaseDelay
	}
	return o
}

// Status is a point-in-time view of the manager for diagnostics.
type Status struct {
	State            State      `json:"state"`
	URL              string     `json:"url"`
	RetryCount       int        `json:"retry_count"`
	ReconnectPending bool       `json:"reconnect_pending"`
	QueueLength      int        `json:"queue_length"`
	QueueDropped     uint64     `json:"queue_dropped"`
	LastError        string     `json:"last_error,omitempty"`
	ConnectedAt      *time.Time `json:"connected_at,omitempty"`
	Stopped          bool       `json:"stopped"`
}

// Manager keeps one websocket connection to the remote endpoint alive.
//
// Every failure (dial error, read error, write error, close) goes through the
// same path: the transport is dropped, the retry counter grows by one and a
// single reconnect timer is armed with Backoff(retryCount). State, queue and
// all transport writes are serialised by mu, so frames reach the wire in the
// order Send was called and queued frames always precede later sends.
type Manager struct {
	opts    Options
	queue   *Queue
	onFrame FrameHandler
	logger  *slog.Logger

	dialFn    DialFunc
	afterFunc func(d time.Duration, f func()) stopper
	nowFn     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	conn        Conn
	retryCount  int
	timer       stopper
	stopped     bool
	lastErr     error
	connectedAt time.Time
}

// New creates a manager using the gorilla websocket dialer.
func New(opts Options, onFrame FrameHandler, logger *slog.Logger) (*Manager, error) {
	if opts.URL == "" {
		return nil, ErrMissingURL
	}
	opts = opts.normalize()
	return newManager(opts, NewDialer(opts.HandshakeTimeout), onFrame, logger), nil
}

func newManager(opts Options, dial DialFunc, onFrame FrameHandler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:    opts.normalize(),
		queue:   NewQueue(opts.QueueLimit),
		onFrame: onFrame,
		logger:  logger,
		dialFn:  dial,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		nowFn:  time.Now,
		ctx:    ctx,
		cancel: cancel,
		state:  StateDisconnected,
	}
}

// Backoff returns the reconnect delay after retry consecutive failures:
// retry*base, capped at max.
func Backoff(retry int, base, max time.Duration) time.Duration {
	if retry < 1 {
		retry = 1
	}
	if base <= 0 || retry > int(max/base) {
		return max
	}
	return time.Duration(retry) * base
}

// Start begins connecting in the background.
func (m *Manager) Start() {
	go m.Connect()
}

// Connect makes one connection attempt. It is a no-op when the manager is
// stopped or a connection is already open or in progress.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.stopped || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	attempt := m.retryCount
	m.mu.Unlock()

	m.logger.Info("connecting", "url", m.opts.URL, "retry", attempt)
	conn, err := m.dialFn(m.ctx, m.opts.URL)
	if err != nil {
		m.fail(nil, fmt.Errorf("dial %s: %w", m.opts.URL, err))
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		_ = conn.Close()
		m.logger.Info("connection established after stop; closed")
		return
	}
	m.conn = conn
	m.state = StateConnected
	m.retryCount = 0
	m.lastErr = nil
	m.connectedAt = m.nowFn().UTC()
	m.logger.Info("connected", "url", m.opts.URL)

	if err := m.writeLocked(conn, m.opts.ClientID); err != nil {
		m.failLocked(conn, fmt.Errorf("write identification: %w", err))
		m.mu.Unlock()
		return
	}
	_ = m.flushLocked()
	live := m.conn == conn
	m.mu.Unlock()

	if live {
		m.startReader(conn)
	}
}

// Send writes msg when connected and queues it otherwise.
func (m *Manager) Send(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected || m.conn == nil {
		m.enqueueLocked(msg)
		return
	}
	conn := m.conn
	if err := m.writeLocked(conn, msg); err != nil {
		m.enqueueLocked(msg)
		m.failLocked(conn, fmt.Errorf("write: %w", err))
	}
}

// Flush drains the queue to the open transport. It returns ErrNotConnected
// when called without one.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked()
}

// Stop shuts the manager down for good: it cancels a pending reconnect and an
// in-flight dial and closes the open transport.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	m.cancel()
	if conn != nil {
		if kc, ok := conn.(keepaliveConn); ok {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = kc.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		}
		_ = conn.Close()
	}
	m.logger.Info("connection manager stopped", "queued", m.queue.Len())
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns a diagnostic snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		State:            m.state,
		URL:              m.opts.URL,
		RetryCount:       m.retryCount,
		ReconnectPending: m.timer != nil,
		QueueLength:      m.queue.Len(),
		QueueDropped:     m.queue.Dropped(),
		Stopped:          m.stopped,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	if m.state == StateConnected {
		at := m.connectedAt
		st.ConnectedAt = &at
	}
	return st
}

func (m *Manager) flushLocked() error {
	if m.state != StateConnected || m.conn == nil {
		m.logger.Error("not connected; cannot flush queue", "queued", m.queue.Len())
		return ErrNotConnected
	}
	conn := m.conn
	sent, err := m.queue.Drain(func(msg string) error {
		return m.writeLocked(conn, msg)
	})
	if sent > 0 {
		m.logger.Info("flushed queued messages", "count", sent)
	}
	if err != nil {
		m.failLocked(conn, fmt.Errorf("flush: %w", err))
		return err
	}
	return nil
}

func (m *Manager) enqueueLocked(msg string) {
	if m.queue.Enqueue(msg) {
		m.logger.Warn("outbound queue full; dropped oldest message", "dropped_total", m.queue.Dropped())
	}
	m.logger.Debug("message queued", "queue_length", m.queue.Len())
}

func (m *Manager) writeLocked(conn Conn, msg string) error {
	if kc, ok := conn.(keepaliveConn); ok {
		_ = kc.SetWriteDeadline(time.Now().Add(writeTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (m *Manager) fail(conn Conn, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLocked(conn, err)
}

// failLocked handles a transport failure. conn is the transport that failed,
// or nil for a dial failure. Reports from a transport that is no longer
// current are ignored so one outage arms exactly one timer.
func (m *Manager) failLocked(conn Conn, err error) {
	if m.stopped {
		return
	}
	if conn == nil {
		if m.state != StateConnecting {
			return
		}
	} else {
		if conn != m.conn {
			return
		}
		_ = conn.Close()
		m.conn = nil
	}

	m.state = StateDisconnected
	m.lastErr = err
	m.retryCount++
	m.scheduleLocked()
}

func (m *Manager) scheduleLocked() {
	if m.stopped || m.timer != nil {
		return
	}
	delay := Backoff(m.retryCount, m.opts.BaseDelay, m.opts.MaxDelay)
	m.logger.Warn("connection unavailable; reconnect scheduled", "err", m.lastErr, "retry", m.retryCount, "delay", delay)
	m.timer = m.afterFunc(delay, m.onTimer)
}

func (m *Manager) onTimer() {
	m.mu.Lock()
	m.timer = nil
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return
	}
	m.Connect()
}

func (m *Manager) startReader(conn Conn) {
	done := make(chan struct{})
	kc, keepalive := conn.(keepaliveConn)
	if keepalive && m.opts.ReadTimeout > 0 {
		_ = kc.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))
		kc.SetPongHandler(func(string) error {
			return kc.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))
		})
	}
	if keepalive && m.opts.PingInterval > 0 {
		go m.pingLoop(kc, done)
	}
	go m.readLoop(conn, done)
}

func (m *Manager) readLoop(conn Conn, done chan struct{}) {
	defer close(done)
	kc, keepalive := conn.(keepaliveConn)
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if m.ctx.Err() == nil {
				m.fail(conn, fmt.Errorf("read: %w", err))
			}
			return
		}
		if keepalive && m.opts.ReadTimeout > 0 {
			_ = kc.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))
		}
		m.logger.Debug("received message", "bytes", len(frame))
		if m.onFrame != nil {
			m.onFrame(m.ctx, frame)
		}
	}
}

func (m *Manager) pingLoop(kc keepaliveConn, done <-chan struct{}) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if err := kc.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				m.logger.Debug("ping failed", "err", err)
				return
			}
		}
	}
}
