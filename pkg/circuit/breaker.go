// Package circuit guards calls to an unreliable dependency. After Threshold
// consecutive failures the breaker opens and rejects calls for Timeout, then
// lets a few trial calls through before closing again.
package circuit

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

type Config struct {
	Threshold        int           // consecutive failures before opening
	Timeout          time.Duration // how long to stay open
	SuccessThreshold int           // trial successes needed to close
	MaxHalfOpen      int           // trial calls admitted while half-open
}

func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		Timeout:          30 * time.Second,
		SuccessThreshold: 2,
		MaxHalfOpen:      2,
	}
}

// Option customizes a Breaker
type Option func(*Breaker)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// OnStateChange registers a callback run (under the breaker lock) on every transition
func OnStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

type Breaker struct {
	name   string
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	trials    int
	openedAt  time.Time
	onChange  func(name string, from, to State)
}

func NewBreaker(name string, config Config, logger *zap.Logger, opts ...Option) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultConfig().Threshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.MaxHalfOpen < config.SuccessThreshold {
		config.MaxHalfOpen = config.SuccessThreshold
	}

	b := &Breaker{
		name:   name,
		config: config,
		logger: logger,
		now:    time.Now,
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute runs fn when the breaker admits the call and records its outcome
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}

	err := fn()
	b.Record(err)
	return err
}

// Allow reports whether a call may proceed right now
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Timeout {
			return ErrCircuitOpen
		}
		b.transitionTo(StateHalfOpen)
		b.trials = 1
		return nil

	case StateHalfOpen:
		if b.trials >= b.config.MaxHalfOpen {
			return ErrTooManyRequests
		}
		b.trials++
		return nil
	}
	return nil
}

// Record feeds the outcome of an admitted call back into the breaker
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.successes++
			if b.successes >= b.config.SuccessThreshold {
				b.transitionTo(StateClosed)
			}
		}
		return
	}

	b.failures++
	b.successes = 0
	switch {
	case b.state == StateHalfOpen:
		b.transitionTo(StateOpen)
	case b.state == StateClosed && b.failures >= b.config.Threshold:
		b.transitionTo(StateOpen)
	}
}

// must hold b.mu
func (b *Breaker) transitionTo(next State) {
	prev := b.state
	b.state = next
	b.trials = 0
	b.successes = 0

	switch next {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed:
		b.failures = 0
	}

	b.logger.Info("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", prev.String()),
		zap.String("to", next.String()),
	)
	if b.onChange != nil {
		b.onChange(b.name, prev, next)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Name() string {
	return b.name
}

// Reset closes the breaker and clears its counters
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateClosed {
		b.transitionTo(StateClosed)
	}
	b.failures = 0
}
