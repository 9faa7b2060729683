// Package request turns the unordered event channel into a call/response
// abstraction with timeout-based bounded retry.
package request

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrRetriesExhausted is delivered when a request chain runs out of attempts
// without ever seeing its response event.
var ErrRetriesExhausted = errors.New("request failed, retries exhausted")

// Transport is the subset of the websocket session the correlator needs.
type Transport interface {
	Send(event string, payload map[string]interface{})
	Subscribe(event string, h func(payload map[string]interface{})) (cancel func())
}

// Callback delivers the final outcome of one request chain: the response
// payload, or an error once retries are exhausted. It is invoked exactly once.
type Callback func(payload map[string]interface{}, err error)

// Config controls a Correlator.
type Config struct {
	Transport Transport

	// Timeout is how long each attempt waits for the response event.
	Timeout time.Duration

	// MaxAttempts is the default per-request attempt budget.
	MaxAttempts int
}

// Correlator pairs request emissions with single-shot response listeners.
//
// Every attempt carries a generated requestId; a response that echoes a
// different id is ignored so concurrent requests of the same kind cannot
// cross-deliver. Responses without an id are accepted, which keeps servers
// that do not echo the field working.
type Correlator struct {
	transport   Transport
	timeout     time.Duration
	maxAttempts int

	// afterFunc schedules attempt timeouts; replaced in tests.
	afterFunc func(d time.Duration, fn func()) *time.Timer
}

// New creates a Correlator.
func New(cfg Config) *Correlator {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Correlator{
		transport:   cfg.Transport,
		timeout:     cfg.Timeout,
		maxAttempts: maxAttempts,
		afterFunc:   time.AfterFunc,
	}
}

// Request starts a correlated exchange with the default attempt budget.
// It returns immediately; the outcome arrives through cb.
func (c *Correlator) Request(requestEvent, responseEvent string, payload map[string]interface{}, cb Callback) {
	c.RequestWithRetry(requestEvent, responseEvent, payload, c.maxAttempts, cb)
}

// RequestWithRetry starts a correlated exchange that emits requestEvent up to
// maxAttempts times, re-emitting whenever the per-attempt timeout elapses
// without a matching responseEvent. At most one timeout is pending per chain
// at any instant.
func (c *Correlator) RequestWithRetry(requestEvent, responseEvent string, payload map[string]interface{}, maxAttempts int, cb Callback) {
	if maxAttempts < 1 {
		maxAttempts = c.maxAttempts
	}
	p := &pending{
		c:             c,
		requestEvent:  requestEvent,
		responseEvent: responseEvent,
		payload:       payload,
		remaining:     maxAttempts,
		cb:            cb,
	}
	p.attempt()
}

// pending is the bookkeeping for one in-flight request chain.
type pending struct {
	c             *Correlator
	requestEvent  string
	responseEvent string
	payload       map[string]interface{}
	cb            Callback

	mu        sync.Mutex
	remaining int
	done      bool
	requestID string
	timer     *time.Timer
	cancelSub func()
}

func (p *pending) attempt() {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.remaining--
	p.requestID = uuid.NewString()
	attemptID := p.requestID

	body := make(map[string]interface{}, len(p.payload)+1)
	for k, v := range p.payload {
		body[k] = v
	}
	body["requestId"] = attemptID

	p.cancelSub = p.c.transport.Subscribe(p.responseEvent, func(resp map[string]interface{}) {
		p.resolve(attemptID, resp)
	})
	p.timer = p.c.afterFunc(p.c.timeout, p.onTimeout)
	remaining := p.remaining
	p.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"event":      p.requestEvent,
		"request_id": attemptID,
		"remaining":  remaining,
	}).Debug("emitting request")
	p.c.transport.Send(p.requestEvent, body)
}

func (p *pending) resolve(attemptID string, resp map[string]interface{}) {
	p.mu.Lock()
	if p.done || attemptID != p.requestID {
		p.mu.Unlock()
		return
	}
	if echoed, ok := resp["requestId"].(string); ok && echoed != "" && echoed != attemptID {
		p.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"event":      p.responseEvent,
			"request_id": echoed,
		}).Debug("ignoring response for another request")
		return
	}
	p.done = true
	timer := p.timer
	cancelSub := p.cancelSub
	p.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if cancelSub != nil {
		cancelSub()
	}
	p.cb(resp, nil)
}

func (p *pending) onTimeout() {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	cancelSub := p.cancelSub
	p.cancelSub = nil
	if p.remaining <= 0 {
		p.done = true
		p.mu.Unlock()
		if cancelSub != nil {
			cancelSub()
		}
		logrus.WithField("event", p.requestEvent).Warn("request failed, retries exhausted")
		p.cb(nil, ErrRetriesExhausted)
		return
	}
	remaining := p.remaining
	p.mu.Unlock()

	if cancelSub != nil {
		cancelSub()
	}
	logrus.WithFields(logrus.Fields{
		"event":     p.requestEvent,
		"remaining": remaining,
	}).Warn("request timed out, retrying")
	p.attempt()
}
