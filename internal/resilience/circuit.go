package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned by Do while the breaker refuses calls.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is a breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	}
	return "unknown"
}

// Settings configures a Breaker. Zero values pick the defaults noted below.
type Settings struct {
	// Name labels metrics and log lines ("default").
	Name string
	// MinRequests is how many outcomes the closed breaker needs before the
	// failure ratio is considered (5).
	MinRequests int
	// FailureRatio at or above which the breaker opens (0.5).
	FailureRatio float64
	// OpenFor is how long calls are refused before a probe is let through (30s).
	OpenFor time.Duration
	// Interval clears the closed-state counts so old failures age out (1m).
	Interval time.Duration
	// Logger receives transition events; nil discards them.
	Logger *zerolog.Logger
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// Breaker guards a flaky dependency. While closed it counts outcomes per
// Interval; once open it refuses calls for OpenFor, then admits exactly one
// probe whose outcome closes or re-opens it. A nil *Breaker admits everything.
type Breaker struct {
	cfg    Settings
	logger zerolog.Logger

	mu          sync.Mutex
	state       State
	successes   int
	failures    int
	windowStart time.Time
	openedAt    time.Time
	probing     bool
}

// New returns a closed breaker.
func New(cfg Settings) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = 5
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = 0.5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	b := &Breaker{cfg: cfg, logger: zerolog.Nop(), windowStart: cfg.Now()}
	if cfg.Logger != nil {
		b.logger = *cfg.Logger
	}
	setStateGauge(cfg.Name, Closed)
	return b
}

// Do runs fn if the breaker admits the call and records its outcome. A
// cancelled caller context says nothing about the dependency and is not
// counted.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if b == nil {
		return fn(ctx)
	}
	probe, err := b.admit(ctx)
	if err != nil {
		return err
	}
	err = fn(ctx)
	if errors.Is(err, context.Canceled) {
		b.release(probe)
		return err
	}
	b.record(ctx, probe, err == nil)
	return err
}

// State reports the state as of now; an open breaker whose cool-off has
// passed reads as half-open.
func (b *Breaker) State() State {
	if b == nil {
		return Closed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.cooledOffLocked() {
		return HalfOpen
	}
	return b.state
}

func (b *Breaker) admit(ctx context.Context) (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		if now := b.cfg.Now(); now.Sub(b.windowStart) >= b.cfg.Interval {
			b.successes, b.failures, b.windowStart = 0, 0, now
		}
		return false, nil
	case Open:
		if !b.cooledOffLocked() {
			return false, ErrOpenCircuit
		}
		b.transitionLocked(ctx, HalfOpen)
	}
	if b.probing {
		return false, ErrOpenCircuit
	}
	b.probing = true
	return true, nil
}

func (b *Breaker) release(probe bool) {
	if !probe {
		return
	}
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

func (b *Breaker) record(ctx context.Context, probe, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
		if ok {
			b.transitionLocked(ctx, Closed)
		} else {
			b.transitionLocked(ctx, Open)
		}
		return
	}
	if b.state != Closed {
		return
	}
	if ok {
		b.successes++
		return
	}
	b.failures++
	total := b.successes + b.failures
	if total >= b.cfg.MinRequests && float64(b.failures)/float64(total) >= b.cfg.FailureRatio {
		b.transitionLocked(ctx, Open)
	}
}

func (b *Breaker) cooledOffLocked() bool {
	return b.cfg.Now().Sub(b.openedAt) >= b.cfg.OpenFor
}

func (b *Breaker) transitionLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	b.successes, b.failures = 0, 0
	switch next {
	case Open:
		b.openedAt = b.cfg.Now()
	case Closed:
		b.windowStart = b.cfg.Now()
	}
	setStateGauge(b.cfg.Name, next)
	countTransition(b.cfg.Name, prev, next)

	evt := b.logger.Warn()
	if next == Closed {
		evt = b.logger.Info()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Str("breaker", b.cfg.Name).
		Stringer("from", prev).
		Stringer("to", next).
		Msg("breaker_transition")
}
