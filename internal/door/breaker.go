package door

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// BreakerSettings configures the actuator circuit breaker.
type BreakerSettings struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration
}

// BreakerActuator wraps an Actuator with a circuit breaker. When the
// accessory server wedges, commands fail fast instead of eating the whole
// actuator timeout every cycle, so the decision loop stays on schedule.
type BreakerActuator struct {
	inner   Actuator
	breaker *gobreaker.CircuitBreaker[LockState]
	logger  *slog.Logger
}

// NewBreakerActuator wraps inner with a circuit breaker.
// Zero-valued settings fall back to defaults.
func NewBreakerActuator(inner Actuator, cfg BreakerSettings, logger *slog.Logger) *BreakerActuator {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[LockState](gobreaker.Settings{
		Name:        "actuator",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &BreakerActuator{inner: inner, breaker: cb, logger: logger}
}

// SetLockState implements Actuator. Calls are routed through the breaker.
func (a *BreakerActuator) SetLockState(ctx context.Context, state LockState) error {
	_, err := a.breaker.Execute(func() (LockState, error) {
		return state, a.inner.SetLockState(ctx, state)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("actuator circuit open: %w", err)
	}
	return err
}

// LockState implements Actuator.
func (a *BreakerActuator) LockState(ctx context.Context) (LockState, error) {
	state, err := a.breaker.Execute(func() (LockState, error) {
		return a.inner.LockState(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return state, fmt.Errorf("actuator circuit open: %w", err)
	}
	return state, err
}

// BreakerState returns the current circuit state for monitoring.
func (a *BreakerActuator) BreakerState() gobreaker.State {
	return a.breaker.State()
}

var _ Actuator = (*BreakerActuator)(nil)
