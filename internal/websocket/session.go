package websocket

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the session connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Envelope is one queued outbound event awaiting delivery.
type Envelope struct {
	Event   string
	Payload map[string]interface{}
}

// Handler receives an inbound event payload.
type Handler func(payload map[string]interface{})

// Observer receives session lifecycle notifications.
// Methods must be safe to call from any goroutine.
type Observer interface {
	OnConnected()
	OnDisconnected(reason string)
	OnReconnectGaveUp()
}

// SessionConfig controls a Session.
type SessionConfig struct {
	// Dialer opens connections to the server.
	Dialer Dialer

	// MaxReconnectAttempts bounds automatic reconnection.
	MaxReconnectAttempts int

	// ReconnectBaseDelay is the first reconnect delay; each further attempt
	// doubles it. There is no ceiling other than the attempt budget.
	ReconnectBaseDelay time.Duration

	// Observer receives lifecycle notifications. Optional.
	Observer Observer
}

// Session owns one logical connection to the server.
//
// It queues outbound events while disconnected, flushes them in FIFO order on
// connect, and reconnects with exponential backoff after connection loss.
// Sends never fail synchronously; failures surface through missing responses
// or, after the attempt budget is exhausted, through Observer.OnReconnectGaveUp.
type Session struct {
	mu sync.Mutex

	dialer      Dialer
	maxAttempts int
	baseDelay   time.Duration
	observer    Observer

	state    State
	conn     Conn
	gen      uint64
	queue    []Envelope
	attempts int
	gaveUp   bool

	handlers map[string][]*subscription

	reconnectTimer *time.Timer

	// afterFunc schedules reconnect attempts; replaced in tests.
	afterFunc func(d time.Duration, fn func()) *time.Timer
}

type subscription struct {
	handler Handler
}

// NewSession creates a Session. It starts disconnected; call Connect or Send
// to bring the connection up.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		dialer:      cfg.Dialer,
		maxAttempts: cfg.MaxReconnectAttempts,
		baseDelay:   cfg.ReconnectBaseDelay,
		observer:    cfg.Observer,
		handlers:    make(map[string][]*subscription),
		afterFunc:   time.AfterFunc,
	}
}

// Connect brings the connection up. It is a no-op while already connected or
// connecting. An explicit Connect after reconnection gave up resets the
// attempt budget.
func (s *Session) Connect() {
	s.mu.Lock()
	if s.gaveUp {
		s.gaveUp = false
		s.attempts = 0
	}
	s.mu.Unlock()
	s.tryConnect()
}

// IsConnected reports whether the session is currently connected. Never blocks.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QueueLen returns the number of envelopes awaiting delivery.
func (s *Session) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Send emits the event immediately when connected. Otherwise the event is
// queued in FIFO order and a connection attempt is started. Send never fails
// synchronously.
func (s *Session) Send(event string, payload map[string]interface{}) {
	s.mu.Lock()
	if s.state == StateConnected && s.conn != nil {
		conn := s.conn
		s.mu.Unlock()
		if err := conn.Emit(event, payload); err != nil {
			logrus.WithFields(logrus.Fields{
				"event": event,
			}).WithError(err).Warn("emit failed")
		}
		return
	}
	s.queue = append(s.queue, Envelope{Event: event, Payload: payload})
	queued := len(s.queue)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"event":  event,
		"queued": queued,
	}).Warn("not connected, queuing event")
	s.tryConnect()
}

// Subscribe registers a handler for an inbound event. The returned cancel
// function removes it. Multiple handlers per event are allowed and run in
// registration order.
func (s *Session) Subscribe(event string, h func(payload map[string]interface{})) (cancel func()) {
	sub := &subscription{handler: h}
	s.mu.Lock()
	s.handlers[event] = append(s.handlers[event], sub)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.handlers[event]
		for i, candidate := range subs {
			if candidate == sub {
				s.handlers[event] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Close tears the session down. It does not trigger reconnection.
func (s *Session) Close() {
	s.mu.Lock()
	s.gaveUp = true
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	conn := s.conn
	s.conn = nil
	s.gen++
	s.state = StateDisconnected
	s.mu.Unlock()

	if conn != nil {
		conn.Disconnect()
	}
}

// tryConnect starts a connection attempt unless one is already underway or
// reconnection has given up. Send uses this path so exhaustion stays terminal
// until an explicit Connect.
func (s *Session) tryConnect() {
	s.mu.Lock()
	if s.gaveUp || s.state != StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	old := s.conn
	s.conn = nil
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if old != nil {
		old.Disconnect()
	}

	logrus.WithField("attempt", s.currentAttempt()).Debug("dialing server")
	conn, err := s.dialer.Dial(boundSink{s: s, gen: gen})
	if err != nil {
		s.handleConnectError(gen, err)
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		// A newer attempt superseded this dial.
		s.mu.Unlock()
		conn.Disconnect()
		return
	}
	s.conn = conn
	s.mu.Unlock()
}

func (s *Session) currentAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// boundSink forwards transport callbacks for one dial generation, so a
// superseded connection cannot mutate session state.
type boundSink struct {
	s   *Session
	gen uint64
}

func (b boundSink) HandleConnect()                  { b.s.handleConnect(b.gen) }
func (b boundSink) HandleDisconnect(reason string)  { b.s.handleDisconnect(b.gen, reason) }
func (b boundSink) HandleConnectError(err error)    { b.s.handleConnectError(b.gen, err) }
func (b boundSink) HandleEvent(event string, p map[string]interface{}) {
	b.s.handleEvent(b.gen, event, p)
}

func (s *Session) handleConnect(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state == StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateConnected
	s.attempts = 0
	s.gaveUp = false
	flush := s.queue
	s.queue = nil
	conn := s.conn
	observer := s.observer
	s.mu.Unlock()

	logrus.WithField("flushing", len(flush)).Info("session connected")
	for _, env := range flush {
		if conn == nil {
			break
		}
		if err := conn.Emit(env.Event, env.Payload); err != nil {
			logrus.WithField("event", env.Event).WithError(err).Warn("flush emit failed")
		}
	}

	if observer != nil {
		observer.OnConnected()
	}
}

func (s *Session) handleDisconnect(gen uint64, reason string) {
	s.mu.Lock()
	if s.gen != gen || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer.OnDisconnected(reason)
	}
	s.scheduleReconnect()
}

func (s *Session) handleConnectError(gen uint64, err error) {
	s.mu.Lock()
	if s.gen != gen || s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	logrus.WithError(err).Warn("connection attempt failed")
	s.scheduleReconnect()
}

func (s *Session) handleEvent(gen uint64, event string, payload map[string]interface{}) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	subs := make([]*subscription, len(s.handlers[event]))
	copy(subs, s.handlers[event])
	s.mu.Unlock()

	for _, sub := range subs {
		sub.handler(payload)
	}
}

// scheduleReconnect increments the attempt counter and either schedules the
// next attempt after baseDelay*2^(attempts-1) or, once the budget is
// exhausted, gives up until an explicit Connect.
func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	if s.gaveUp {
		s.mu.Unlock()
		return
	}
	s.attempts++
	if s.attempts > s.maxAttempts {
		s.gaveUp = true
		observer := s.observer
		s.mu.Unlock()

		logrus.WithField("attempts", s.maxAttempts).Error("max reconnect attempts reached, giving up")
		if observer != nil {
			observer.OnReconnectGaveUp()
		}
		return
	}
	delay := s.baseDelay << (s.attempts - 1)
	attempt := s.attempts
	s.reconnectTimer = s.afterFunc(delay, s.tryConnect)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"attempt": attempt,
		"delay":   delay,
	}).Info("scheduling reconnect")
}
