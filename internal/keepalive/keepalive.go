package keepalive

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"
)

// Config holds keepalive configuration
type Config struct {
	PingInterval time.Duration // Interval to send pings
	PongWaitTime time.Duration // Max time to wait for pong response
}

// DefaultConfig returns default keepalive configuration
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		PongWaitTime: 60 * time.Second,
	}
}

// Monitor tracks WebSocket liveness with ping/pong control frames. Pings are
// handed to sendPing rather than written directly: the session owns a single
// writer goroutine and all frames must go through it.
type Monitor struct {
	logger       logging.LeveledLogger
	config       Config
	sendPing     func() error
	onStale      func()
	done         chan struct{}
	lastPongTime atomic.Value // time.Time
	alive        atomic.Bool
}

// NewMonitor creates a keepalive monitor for conn. sendPing must enqueue a
// ping control frame on the connection's writer; onStale is invoked once
// when the peer stops answering.
func NewMonitor(conn *websocket.Conn, logger logging.LeveledLogger, cfg Config, sendPing func() error, onStale func()) *Monitor {
	m := &Monitor{
		logger:   logger,
		config:   cfg,
		sendPing: sendPing,
		onStale:  onStale,
		done:     make(chan struct{}),
	}

	m.lastPongTime.Store(time.Now())
	m.alive.Store(true)

	conn.SetPongHandler(func(appData string) error {
		m.lastPongTime.Store(time.Now())
		m.logger.Debugf("Received pong")
		return nil
	})

	return m
}

// Start begins the keepalive ping loop
func (m *Monitor) Start() {
	go m.pingLoop()
	go m.monitorLoop()
}

// Stop stops the keepalive monitor
func (m *Monitor) Stop() {
	if m.alive.CompareAndSwap(true, false) {
		close(m.done)
	}
}

// IsAlive returns true if the connection is responding to pings
func (m *Monitor) IsAlive() bool {
	return m.alive.Load()
}

// pingLoop sends periodic pings
func (m *Monitor) pingLoop() {
	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if err := m.sendPing(); err != nil {
				m.logger.Warnf("Failed to send ping: %v", err)
				m.markStale()
				return
			}
			m.logger.Debugf("Sent ping")
		}
	}
}

// monitorLoop checks for stale connections
func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.PongWaitTime)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			lastPong := m.lastPongTime.Load().(time.Time)
			sinceLastPong := time.Since(lastPong)

			// Browsers answer ping frames automatically; three missed
			// windows means the transport is gone, not just idle.
			if sinceLastPong > m.config.PongWaitTime*3 {
				m.logger.Warnf("No pong received for %v, marking connection as stale", sinceLastPong)
				m.markStale()
				return
			}
		}
	}
}

func (m *Monitor) markStale() {
	if m.alive.CompareAndSwap(true, false) {
		close(m.done)
		if m.onStale != nil {
			m.onStale()
		}
	}
}
