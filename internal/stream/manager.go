// Package stream owns the lifecycle of the single logical push-channel
// subscription: connect, receive, detect loss, back off, resume. The manager
// never gives up; it retries forever at the capped interval and exposes its
// state so the UI can tell the user what is going on.
package stream

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parsaabbasian/unispot-sync/internal/models"
	"github.com/parsaabbasian/unispot-sync/internal/telemetry"
)

// Conn is the minimal surface the manager needs from a live channel. The
// gorilla adapter in ws.go satisfies it; tests substitute fakes.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens a channel to the given URL.
type Dialer func(ctx context.Context, url string) (Conn, error)

// Config wires the manager's collaborators and backoff timing.
type Config struct {
	URL       string
	BaseDelay time.Duration
	MaxDelay  time.Duration

	Dialer    Dialer
	Decode    func([]byte) (models.Message, error)
	OnMessage func(models.Message)
	OnState   func(models.ConnStatus)

	Metrics *telemetry.Metrics
	Logger  *zap.Logger
}

// Manager is the connection state machine. At most one live channel exists at
// any time; every transition that opens a new one first discards the prior
// handle.
type Manager struct {
	cfg     Config
	dial    Dialer
	decode  func([]byte) (models.Message, error)
	metrics *telemetry.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	started bool
	status  models.ConnStatus
	attempt int
	conn    Conn
	dialing bool
	timer   *time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager builds a manager. Dialer defaults to the gorilla dialer and
// Decode to the push-channel envelope decoder.
func NewManager(cfg Config) *Manager {
	if cfg.Dialer == nil {
		cfg.Dialer = GorillaDialer
	}
	if cfg.Decode == nil {
		cfg.Decode = models.DecodeMessage
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{
		cfg:     cfg,
		dial:    cfg.Dialer,
		decode:  cfg.Decode,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		status:  models.ConnStatus{State: models.StateDisconnected},
	}
}

// Status returns the current connection status.
func (m *Manager) Status() models.ConnStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Start begins the subscription lifecycle. Safe to call once; subsequent
// calls are no-ops until Stop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.connect()
}

// Resume is the foreground-visibility signal: if no channel is open and no
// dial is in flight, cancel the pending retry timer and attempt immediately.
// The attempt counter resets so a follow-up failure restarts the schedule.
func (m *Manager) Resume() {
	m.mu.Lock()
	if !m.started || m.ctx.Err() != nil || m.conn != nil || m.dialing {
		m.mu.Unlock()
		return
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.attempt = 0
	m.mu.Unlock()

	m.logger.Info("resuming push channel on foreground signal")
	m.connect()
}

// Stop tears the subscription down: cancels any pending retry timer, closes
// the live channel, and waits for goroutines to exit. No reconnection
// attempts occur afterwards.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.cancel()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.status = models.ConnStatus{State: models.StateDisconnected}
	st := m.status
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	m.wg.Wait()
	m.notifyState(st)
}

// connect transitions to Connecting and dials asynchronously. It refuses to
// run while a channel is live or a dial is already in flight.
func (m *Manager) connect() {
	m.mu.Lock()
	if !m.started || m.ctx.Err() != nil || m.conn != nil || m.dialing {
		m.mu.Unlock()
		return
	}
	m.dialing = true
	m.status = models.ConnStatus{State: models.StateConnecting}
	st := m.status
	ctx := m.ctx
	m.mu.Unlock()
	m.notifyState(st)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		conn, err := m.dial(ctx, m.cfg.URL)

		m.mu.Lock()
		m.dialing = false
		if !m.started || ctx.Err() != nil {
			m.mu.Unlock()
			if err == nil {
				_ = conn.Close()
			}
			return
		}
		if err != nil {
			m.scheduleRetryLocked()
			st := m.status
			m.mu.Unlock()
			m.logger.Warn("push channel dial failed",
				zap.String("url", m.cfg.URL),
				zap.Int("attempt", st.Attempt),
				zap.Duration("retry_in", st.RetryIn),
				zap.Error(err))
			m.notifyState(st)
			return
		}

		m.conn = conn
		m.attempt = 0
		m.status = models.ConnStatus{State: models.StateConnected}
		st := m.status
		m.mu.Unlock()
		m.logger.Info("push channel connected", zap.String("url", m.cfg.URL))
		m.notifyState(st)

		m.wg.Add(1)
		go m.readLoop(conn)
	}()
}

// readLoop consumes frames until the channel errors. Malformed payloads are
// logged and dropped; they never count as connection failures.
func (m *Manager) readLoop(conn Conn) {
	defer m.wg.Done()

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		msg, derr := m.decode(raw)
		if derr != nil {
			m.logger.Warn("dropping malformed frame", zap.Error(derr))
			m.metrics.ObserveMalformed()
			continue
		}

		m.metrics.ObserveMessage(msg.Action())
		if m.cfg.OnMessage != nil {
			m.cfg.OnMessage(msg)
		}
	}

	_ = conn.Close()

	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	if !m.started || m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.scheduleRetryLocked()
	st := m.status
	m.mu.Unlock()

	m.logger.Warn("push channel closed",
		zap.Int("attempt", st.Attempt),
		zap.Duration("retry_in", st.RetryIn))
	m.notifyState(st)
}

// scheduleRetryLocked advances the attempt counter, arms the retry timer,
// and moves to AwaitingRetry. Callers hold m.mu.
func (m *Manager) scheduleRetryLocked() {
	m.attempt++
	delay := NextDelay(m.attempt, m.cfg.BaseDelay, m.cfg.MaxDelay)
	m.status = models.ConnStatus{
		State:   models.StateAwaitingRetry,
		Attempt: m.attempt,
		RetryIn: delay,
	}
	m.metrics.ObserveReconnect()
	m.timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.timer = nil
		m.mu.Unlock()
		m.connect()
	})
}

// notifyState fans a state change out to the caller and metrics. Invoked
// outside m.mu so callbacks may safely call back into the manager.
func (m *Manager) notifyState(st models.ConnStatus) {
	m.metrics.SetConnState(st.State)
	if m.cfg.OnState != nil {
		m.cfg.OnState(st)
	}
}
