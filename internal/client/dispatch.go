package client

import (
	"errors"
	"sync"
)

// errDispatcherStopped is returned by do and call once the dispatcher has
// been shut down.
var errDispatcherStopped = errors.New("dispatcher stopped")

type dispatchResult struct {
	value interface{}
	err   error
}

// dispatcher serializes work onto a single goroutine.
//
// The client runs two of these: one owning all client state so transport
// callbacks, correlator callbacks and API calls never race, and one
// delivering listener callbacks so a slow listener cannot stall the core.
type dispatcher struct {
	mu      sync.Mutex
	stopped bool
	q       chan func()

	quitOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

func newDispatcher(queueSize int) *dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &dispatcher{
		q:    make(chan func(), queueSize),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case fn := <-d.q:
			if fn != nil {
				fn()
			}
		case <-d.quit:
			// Drain work accepted before shutdown, then exit.
			for {
				select {
				case fn := <-d.q:
					if fn != nil {
						fn()
					}
				default:
					return
				}
			}
		}
	}
}

func (d *dispatcher) do(fn func()) error {
	if d == nil {
		return errors.New("dispatcher not initialized")
	}
	if fn == nil {
		return nil
	}
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return errDispatcherStopped
	}
	d.q <- fn
	d.mu.Unlock()
	return nil
}

func (d *dispatcher) call(fn func() (interface{}, error)) (interface{}, error) {
	if d == nil {
		return nil, errors.New("dispatcher not initialized")
	}
	if fn == nil {
		return nil, nil
	}
	result := make(chan dispatchResult, 1)
	err := d.do(func() {
		value, err := fn()
		result <- dispatchResult{value: value, err: err}
	})
	if err != nil {
		return nil, err
	}
	res := <-result
	return res.value, res.err
}

// shutdown stops the dispatch goroutine after draining already queued work.
// It blocks until the goroutine has exited and is safe to call repeatedly.
func (d *dispatcher) shutdown() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.quitOnce.Do(func() { close(d.quit) })
	<-d.done
}
