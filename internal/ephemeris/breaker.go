package ephemeris

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/metrics"
	"github.com/star/skywatch/internal/observer"
	"github.com/star/skywatch/internal/skyerr"
)

// BreakerConfig controls when the breaker opens.
type BreakerConfig struct {
	MaxFailures uint32        // consecutive failures before opening (default: 20)
	OpenTimeout time.Duration // how long to stay open before probing (default: 30s)
}

// Breaker wraps a Provider with a circuit breaker. While open, calls fail
// fast with skyerr.ErrProviderUnavailable. Circumpolar and invalid-input
// results, and calls whose own context ended, never count as failures.
type Breaker struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next.
func NewBreaker(next Provider, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 20
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	maxFailures := cfg.MaxFailures

	settings := gobreaker.Settings{
		Name:        "ephemeris",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.SetBreakerState(int(to))
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) PositionAt(ctx context.Context, obs observer.Observer, bd body.Body, t time.Time) (Horizontal, error) {
	var h Horizontal
	err := b.run(ctx, func() error {
		var err error
		h, err = b.next.PositionAt(ctx, obs, bd, t)
		return err
	})
	return h, err
}

func (b *Breaker) NextRising(ctx context.Context, obs observer.Observer, bd body.Body, after time.Time) (time.Time, error) {
	var out time.Time
	err := b.run(ctx, func() error {
		var err error
		out, err = b.next.NextRising(ctx, obs, bd, after)
		return err
	})
	return out, err
}

func (b *Breaker) NextSetting(ctx context.Context, obs observer.Observer, bd body.Body, after time.Time) (time.Time, error) {
	var out time.Time
	err := b.run(ctx, func() error {
		var err error
		out, err = b.next.NextSetting(ctx, obs, bd, after)
		return err
	})
	return out, err
}

// run executes call through the breaker. Outcomes that say nothing about the
// provider's health are reported to the breaker as successes and handed back
// to the caller unchanged.
func (b *Breaker) run(ctx context.Context, call func() error) error {
	var passed error
	_, err := b.cb.Execute(func() (interface{}, error) {
		err := call()
		if err == nil {
			return nil, nil
		}
		if errors.Is(err, skyerr.ErrCircumpolar) || errors.Is(err, skyerr.ErrInvalidInput) || ctx.Err() != nil {
			passed = err
			return nil, nil
		}
		return nil, err
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return skyerr.Unavailable(err)
	case err != nil:
		return err
	}
	return passed
}
