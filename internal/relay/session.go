// Package relay implements the connection lifecycle and the message-routing
// engine sitting between the websocket transport and the conversation store.
package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/courierchat/internal/identity"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// State is the lifecycle state of a session.
type State int

const (
	StateConnected State = iota // transport open, identity not yet bound
	StateAuthenticated
	StateClosed
)

// Conn is the write side of one live socket. *websocket.Conn satisfies it;
// tests substitute a fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// SessionConfig carries per-session tunables.
type SessionConfig struct {
	SendQueueSize int
	RateLimit     float64 // send_message ops per second
	RateBurst     int
}

// Session is the live connection handle: one transport socket plus the
// identity bound to it after authentication. Outbound writes go through a
// buffered channel drained by a single write loop, so Send is safe from any
// goroutine.
type Session struct {
	ID string

	conn    Conn
	send    chan []byte
	closed  chan struct{}
	once    sync.Once
	limiter *rate.Limiter

	mu    sync.Mutex
	state State
	ident identity.Identity
}

// NewSession constructs a Session in the Connected state.
func NewSession(conn Conn, cfg SessionConfig) *Session {
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 128
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = int(cfg.RateLimit) * 2
	}

	return &Session{
		ID:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, cfg.SendQueueSize),
		closed:  make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		state:   StateConnected,
	}
}

// Start launches the write loop. It must be called exactly once per session.
func (s *Session) Start() {
	go s.writeLoop()
}

// Send enqueues payload for delivery. If the client is slow and the buffer
// is full, the session is closed to keep backpressure bounded.
func (s *Session) Send(payload []byte) error {
	select {
	case <-s.closed:
		return errors.New("session closed")
	case s.send <- payload:
		return nil
	default:
		s.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("session buffer exceeded")
	}
}

// Close terminates the session and stops the write loop. Safe to call more
// than once.
func (s *Session) Close(code int, reason string) {
	s.once.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		close(s.closed)
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = s.conn.Close()
	})
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the bound identity. ok is false until the session has
// authenticated. The identity survives Close so a disconnect can still run
// its conditional directory unbind.
func (s *Session) Identity() (identity.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ident.Email == "" {
		return identity.Identity{}, false
	}
	return s.ident, true
}

// AllowSend reports whether the per-session rate limiter admits another
// send_message right now.
func (s *Session) AllowSend() bool {
	return s.limiter.Allow()
}

// bindIdentity transitions Connected → Authenticated. It fails once the
// session is closed, which covers a disconnect racing a slow verifier, and it
// fails on an already-authenticated session: a connection authenticates at
// most once, so the directory entry for the first identity stays intact.
func (s *Session) bindIdentity(id identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		return errors.New("session closed during authentication")
	case StateAuthenticated:
		return ErrAlreadyAuthenticated
	}
	s.state = StateAuthenticated
	s.ident = id
	return nil
}

// clearIdentity reverts a bind that could not be registered in the presence
// directory (reject duplicate policy).
func (s *Session) clearIdentity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAuthenticated {
		s.state = StateConnected
		s.ident = identity.Identity{}
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case msg := <-s.send:
			if err := s.writeMessage(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.writePing(); err != nil {
				return
			}
		}
	}
}

func (s *Session) writeMessage(payload []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Session) writePing() error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}
