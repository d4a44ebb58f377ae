package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the position of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cool-down has passed.
	BreakerOpen
	// BreakerHalfOpen lets one trial call through at a time.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText lets states appear by name in JSON maps.
func (s BreakerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrArchiveUnavailable is returned while a breaker is open. It is transient:
// a later run may succeed.
var ErrArchiveUnavailable = NewTransientError(eris.New("archive temporarily unavailable"), 0)

// BreakerConfig controls when a Breaker opens and recovers.
type BreakerConfig struct {
	// Threshold is the number of consecutive transient failures that open
	// the breaker. Default: 5.
	Threshold int
	// CoolDown is how long the breaker stays open before a trial. Default: 30s.
	CoolDown time.Duration
	// Trips reports whether err counts as a failure. Default: IsTransient, so
	// answers such as "no observations" never open the breaker.
	Trips func(err error) bool
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.CoolDown <= 0 {
		c.CoolDown = 30 * time.Second
	}
	if c.Trips == nil {
		c.Trips = IsTransient
	}
	return c
}

// Breaker stops calling an archive service after repeated transient failures.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu       sync.Mutex
	state    BreakerState
	failures int
	inTrial  bool
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker creates a closed breaker for the named service.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	return &Breaker{name: name, cfg: cfg.withDefaults(), now: time.Now}
}

// Call runs fn through b. While b is open fn is not called and
// ErrArchiveUnavailable is returned.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if b == nil {
		return fn(ctx)
	}
	trial, err := b.admit()
	if err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	b.record(err, trial)
	return v, err
}

// State returns the current state. An open breaker whose cool-down has
// passed reports half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.CoolDown {
		return BreakerHalfOpen
	}
	return b.state
}

// admit reports whether the call may proceed and whether it is the
// half-open trial.
func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return false, nil
	case BreakerHalfOpen:
		if b.inTrial {
			return false, eris.Wrapf(ErrArchiveUnavailable, "%s: trial in flight", b.name)
		}
	default:
		if b.now().Sub(b.openedAt) < b.cfg.CoolDown {
			return false, eris.Wrapf(ErrArchiveUnavailable, "%s", b.name)
		}
		b.set(BreakerHalfOpen)
	}
	b.inTrial = true
	return true, nil
}

// record applies the outcome of an admitted call. Only the trial moves a
// half-open breaker.
func (b *Breaker) record(err error, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if trial {
		b.inTrial = false
	} else if b.state != BreakerClosed {
		return
	}

	if err == nil || !b.cfg.Trips(err) {
		b.failures = 0
		if b.state == BreakerHalfOpen {
			b.set(BreakerClosed)
		}
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		b.set(BreakerOpen)
	}
}

func (b *Breaker) set(to BreakerState) {
	if b.state == to {
		return
	}
	zap.L().Warn("resilience: breaker state change",
		zap.String("service", b.name),
		zap.String("from", b.state.String()),
		zap.String("to", to.String()),
	)
	b.state = to
}

// Breakers holds one breaker per archive service.
type Breakers struct {
	cfg BreakerConfig

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakers creates an empty set sharing cfg.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// For returns the breaker for service, creating it on first use. A nil set
// returns nil, which Call treats as always closed.
func (s *Breakers) For(service string) *Breaker {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[service]
	if !ok {
		b = NewBreaker(service, s.cfg)
		s.breakers[service] = b
	}
	return b
}

// States returns the state of every breaker created so far, by service.
func (s *Breakers) States() map[string]BreakerState {
	out := make(map[string]BreakerState)
	if s == nil {
		return out
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, b := range s.breakers {
		out[name] = b.State()
	}
	return out
}
