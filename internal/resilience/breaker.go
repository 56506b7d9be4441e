package resilience

import (
	"log/slog"
	"sync"
	"time"

	"github.com/klhsieh/punchd/internal/metrics"
)

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
}

// Breaker blocks a guarded operation after sustained consecutive failures,
// until a cooldown elapses. It is independent of the retry policy: retries
// happen within one invocation, the breaker decides whether the invocation
// happens at all.
type Breaker struct {
	mu          sync.Mutex
	cfg         BreakerConfig
	state       State
	failures    int
	lastFailure time.Time
	now         func() time.Time
}

// NewBreaker creates a circuit breaker in the closed state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	return &Breaker{
		cfg: cfg,
		now: time.Now,
	}
}

// CanExecute reports whether the guarded operation may run. While open, it
// returns false until the recovery timeout has elapsed, after which it
// transitions to half-open and returns true exactly once for the probe.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.cfg.RecoveryTimeout {
			b.setState(StateHalfOpen)
			slog.Info("Circuit breaker half-open, allowing probe")
			return true
		}
		return false
	default:
		// Half-open: the single probe has already been granted.
		return false
	}
}

// RecordSuccess resets the failure count and closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != StateClosed {
		slog.Info("Circuit breaker recovered", "state", b.state.String())
	}
	b.setState(StateClosed)
}

// RecordFailure counts a failure of the guarded operation. A failure while
// half-open reopens immediately and restarts the recovery timer.
func (b *Breaker) RecordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	if b.state == StateHalfOpen {
		slog.Warn("Circuit breaker probe failed, reopening", "error", err)
		b.setState(StateOpen)
		return
	}

	if b.failures >= b.cfg.FailureThreshold {
		slog.Error("Circuit breaker tripped",
			"consecutive_failures", b.failures,
			"threshold", b.cfg.FailureThreshold,
			"error", err,
		)
		b.setState(StateOpen)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// setState must be called with b.mu held.
func (b *Breaker) setState(s State) {
	b.state = s
	metrics.BreakerState.Set(float64(s))
}
