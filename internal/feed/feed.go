// Package feed implements the subscription manager: a single websocket
// connection to the chain's parsed-transaction firehose, filtered to a
// snapshot of tracked addresses, with connect-timeout, keepalive ping, and
// reconnect-with-backoff (§4.1). It is modeled after the teacher's
// backend.Backend client lifecycle (Connect/Close/IsConnected on a live
// socket) adapted from a raw TCP Electrum client to a JSON-RPC websocket.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

// State is the subscription manager's connection state machine (§4.1).
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateOpen         State = "OPEN"
	StateSubscribed   State = "SUBSCRIBED"
	StateClosed       State = "CLOSED"
	StateError        State = "ERROR"
	StateReconnectWait State = "RECONNECT_WAIT"
)

// Config configures the subscription manager.
type Config struct {
	URL            string        // upstream websocket URL, including API key query param
	ConnectTimeout time.Duration // default 15s
	BaseDelay      time.Duration // default 5s
	MaxDelay       time.Duration // default 60s
	BackoffFactor  float64       // default 1.5
	PingInterval   time.Duration // default 30s
	BatchSize      int           // default 50 addresses per batched subscription group
	BatchStagger   time.Duration // default 100ms
}

// DefaultConfig returns the configuration defaults from §4.1.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 15 * time.Second,
		BaseDelay:      5 * time.Second,
		MaxDelay:       60 * time.Second,
		BackoffFactor:  1.5,
		PingInterval:   30 * time.Second,
		BatchSize:      50,
		BatchStagger:   100 * time.Millisecond,
	}
}

// Handler receives notifications accepted by the pre-check.
type Handler interface {
	HandleNotification(ctx context.Context, tx *model.RawTxNotification)
}

// Manager owns one live subscription and drives the reconnect state
// machine.
type Manager struct {
	cfg     Config
	handler Handler
	log     *logging.Logger

	mu       sync.RWMutex
	state    State
	conn     *websocket.Conn
	attempt  int
	tracked  map[string]bool

	ctx    context.Context
	cancel context.CancelFunc

	nextID int64
}

// New creates a subscription Manager. tracked is the snapshot of addresses
// to subscribe to; changes require a new Manager, per §3's
// "changes require re-subscription" lifecycle note.
func New(cfg Config, tracked []string, handler Handler) *Manager {
	d := DefaultConfig()
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = d.ConnectTimeout
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = d.BaseDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = d.MaxDelay
	}
	if cfg.BackoffFactor == 0 {
		cfg.BackoffFactor = d.BackoffFactor
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = d.PingInterval
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.BatchStagger == 0 {
		cfg.BatchStagger = d.BatchStagger
	}

	set := make(map[string]bool, len(tracked))
	for _, a := range tracked {
		set[a] = true
	}

	return &Manager{
		cfg:     cfg,
		handler: handler,
		log:     logging.GetDefault().Component("feed"),
		state:   StateDisconnected,
		tracked: set,
	}
}

// TrackedSet returns the manager's snapshot of tracked addresses.
func (m *Manager) TrackedSet() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.tracked))
	for k, v := range m.tracked {
		out[k] = v
	}
	return out
}

// State returns the manager's current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Start begins the connect/subscribe/reconnect loop in the background. It
// never returns an error for connection failures — those are handled by
// the reconnect loop per §4.1's failure semantics ("connection drops ...
// never terminate the process").
func (m *Manager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	go m.run()
}

// Stop tears down the manager: detaches handlers and closes the socket,
// per §4.9 step 1.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.state = StateClosed
}

func (m *Manager) run() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		if err := m.connectAndServe(); err != nil {
			m.log.Warn("feed connection ended", "error", err, "attempt", m.attempt)
		}

		select {
		case <-m.ctx.Done():
			return
		default:
		}

		delay := reconnectDelay(m.cfg, m.attempt)
		m.attempt++
		m.setState(StateReconnectWait)
		m.log.Info("reconnecting", "delay", delay, "attempt", m.attempt)

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (m *Manager) connectAndServe() error {
	m.setState(StateConnecting)

	connectCtx, cancel := context.WithTimeout(m.ctx, m.cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(connectCtx, m.cfg.URL, nil)
	if err != nil {
		m.setState(StateError)
		return fmt.Errorf("dial: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.attempt = 0
	m.mu.Unlock()
	m.setState(StateOpen)
	m.log.Info("feed connected", "url", redactURL(m.cfg.URL))

	if err := m.subscribeAll(conn); err != nil {
		conn.Close()
		m.setState(StateError)
		return fmt.Errorf("subscribe: %w", err)
	}
	m.setState(StateSubscribed)

	pingDone := make(chan struct{})
	defer close(pingDone)
	go m.pingLoop(conn, pingDone)

	return m.readLoop(conn)
}

func (m *Manager) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				m.log.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

func (m *Manager) readLoop(conn *websocket.Conn) error {
	for {
		select {
		case <-m.ctx.Done():
			return nil
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		m.handleMessage(data)
	}
}

func (m *Manager) handleMessage(data []byte) {
	defer func() {
		// A malformed message must never take the subscription manager
		// down; log and move on (§4.1 failure semantics).
		if r := recover(); r != nil {
			m.log.Error("panic handling feed message", "recover", r)
		}
	}()

	var ack struct {
		Result json.RawMessage `json:"result"`
		ID     json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &ack); err == nil && ack.ID != nil {
		m.log.Debug("subscription ack", "id", string(ack.ID))
		return
	}

	tx, err := parseNotification(data)
	if err != nil {
		m.log.Debug("failed to parse feed message", "error", err)
		return
	}
	if tx == nil {
		return
	}

	if reason, rejected := precheck(tx, m.TrackedSet()); rejected {
		m.log.Debug("notification pre-check rejected", "reason", reason, "sig", tx.Signature)
		return
	}

	if m.handler != nil {
		m.handler.HandleNotification(m.ctx, tx)
	}
}

func redactURL(u string) string {
	for i := 0; i < len(u); i++ {
		if u[i] == '?' {
			return u[:i] + "?<redacted>"
		}
	}
	return u
}
