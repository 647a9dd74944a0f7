// Package circuitbreaker implements a consecutive-failure circuit breaker.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker.
type State int

const (
	// Closed is the initial state where requests are allowed.
	Closed State = iota
	// Open state is when the circuit has tripped and requests are blocked.
	Open
	// HalfOpen allows trial requests to test whether the downstream has recovered.
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "Half-Open"
	default:
		return "Unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is in the Open state.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker is the interface for the circuit breaker pattern.
type CircuitBreaker interface {
	// Execute runs the given request if the circuit breaker is closed or half-open.
	Execute(req func() (interface{}, error)) (interface{}, error)
	// State returns the current state of the circuit breaker.
	State() State
}

// StateChangeFunc is called after every state transition, outside the breaker's lock.
type StateChangeFunc func(from, to State)

// Option configures a breaker.
type Option func(*breaker)

// WithStateChange registers a hook for state transitions.
func WithStateChange(fn StateChangeFunc) Option {
	return func(b *breaker) { b.onStateChange = fn }
}

type breaker struct {
	failureThreshold uint32
	successThreshold uint32
	timeout          time.Duration
	onStateChange    StateChangeFunc
	now              func() time.Time

	mutex     sync.Mutex
	state     State
	successes uint32
	failures  uint32
	openedAt  time.Time
}

// New creates a circuit breaker.
// failureThreshold consecutive failures open the circuit; after timeout it turns half-open,
// and successThreshold consecutive successes close it again.
func New(failureThreshold, successThreshold uint32, timeout time.Duration, opts ...Option) CircuitBreaker {
	if failureThreshold == 0 {
		failureThreshold = 1
	}
	if successThreshold == 0 {
		successThreshold = 1
	}
	b := &breaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		now:              time.Now,
		state:            Closed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

func (b *breaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	b.mutex.Lock()
	var changed []transition
	if b.state == Open && b.now().Sub(b.openedAt) > b.timeout {
		changed = append(changed, b.setState(HalfOpen))
	}
	if b.state == Open {
		b.mutex.Unlock()
		b.notify(changed)
		return nil, ErrCircuitOpen
	}
	b.mutex.Unlock()
	b.notify(changed)

	res, err := req()

	b.mutex.Lock()
	var t transition
	if err != nil {
		t = b.onFailure()
	} else {
		t = b.onSuccess()
	}
	b.mutex.Unlock()
	b.notify([]transition{t})

	if err != nil {
		return nil, err
	}
	return res, nil
}

type transition struct {
	from, to State
}

func (b *breaker) setState(s State) transition {
	t := transition{from: b.state, to: s}
	b.state = s
	b.successes = 0
	b.failures = 0
	if s == Open {
		b.openedAt = b.now()
	}
	return t
}

func (b *breaker) onSuccess() transition {
	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			return b.setState(Closed)
		}
	case Closed:
		b.failures = 0
	}
	return transition{}
}

func (b *breaker) onFailure() transition {
	switch b.state {
	case HalfOpen:
		return b.setState(Open)
	case Closed:
		b.failures++
		if b.failures >= b.failureThreshold {
			return b.setState(Open)
		}
	}
	return transition{}
}

func (b *breaker) notify(ts []transition) {
	if b.onStateChange == nil {
		return
	}
	for _, t := range ts {
		if t.from != t.to {
			b.onStateChange(t.from, t.to)
		}
	}
}
