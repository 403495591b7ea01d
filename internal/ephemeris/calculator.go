package ephemeris

import (
	"context"
	"errors"
	"time"

	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/metrics"
	"github.com/star/skywatch/internal/observer"
	"github.com/star/skywatch/internal/skyerr"
	"github.com/star/skywatch/internal/transform"
)

// Config tunes the rise/set search.
type Config struct {
	CoarseStep time.Duration // scan step (default: 10m)
	SearchSpan time.Duration // how far ahead to look (default: 36h)
	Precision  time.Duration // bisection stops at this width (default: 1s)
}

// DefaultConfig returns the default search parameters.
func DefaultConfig() Config {
	return Config{
		CoarseStep: 10 * time.Minute,
		SearchSpan: 36 * time.Hour,
		Precision:  time.Second,
	}
}

// Calculator is the in-process Provider. It holds only configuration.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a Calculator. Zero fields in cfg take their defaults.
func NewCalculator(cfg Config) *Calculator {
	def := DefaultConfig()
	if cfg.CoarseStep <= 0 {
		cfg.CoarseStep = def.CoarseStep
	}
	if cfg.SearchSpan <= 0 {
		cfg.SearchSpan = def.SearchSpan
	}
	if cfg.Precision <= 0 {
		cfg.Precision = def.Precision
	}
	return &Calculator{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Calculator) Config() Config { return c.cfg }

// PositionAt returns the topocentric position of b for obs at t.
func (c *Calculator) PositionAt(ctx context.Context, obs observer.Observer, b body.Body, t time.Time) (Horizontal, error) {
	start := time.Now()
	if err := check(ctx, b); err != nil {
		metrics.ObserveProviderCall("position", outcome(err), time.Since(start))
		return Horizontal{}, err
	}
	h := horizontal(obs, b, t)
	metrics.ObserveProviderCall("position", "ok", time.Since(start))
	return h, nil
}

// NextRising returns the first instant after `after` at which b crosses
// altitude 0 going up.
func (c *Calculator) NextRising(ctx context.Context, obs observer.Observer, b body.Body, after time.Time) (time.Time, error) {
	return c.timed(ctx, "rising", obs, b, after, true)
}

// NextSetting returns the first instant after `after` at which b crosses
// altitude 0 going down.
func (c *Calculator) NextSetting(ctx context.Context, obs observer.Observer, b body.Body, after time.Time) (time.Time, error) {
	return c.timed(ctx, "setting", obs, b, after, false)
}

func (c *Calculator) timed(ctx context.Context, op string, obs observer.Observer, b body.Body, after time.Time, rising bool) (time.Time, error) {
	start := time.Now()
	t, err := c.nextCrossing(ctx, obs, b, after, rising)
	metrics.ObserveProviderCall(op, outcome(err), time.Since(start))
	return t, err
}

// nextCrossing scans forward at CoarseStep for a sign change of the altitude
// and refines the bracket by bisection.
func (c *Calculator) nextCrossing(ctx context.Context, obs observer.Observer, b body.Body, after time.Time, rising bool) (time.Time, error) {
	if err := check(ctx, b); err != nil {
		return time.Time{}, err
	}

	altAt := func(t time.Time) float64 { return horizontal(obs, b, t).AltitudeDeg }
	crossed := func(prev, next float64) bool {
		if rising {
			return prev <= 0 && next > 0
		}
		return prev > 0 && next <= 0
	}

	end := after.Add(c.cfg.SearchSpan)
	startAlt := altAt(after)
	prev := startAlt

	for t := after; t.Before(end); {
		if err := ctx.Err(); err != nil {
			return time.Time{}, skyerr.Unavailable(err)
		}
		next := t.Add(c.cfg.CoarseStep)
		if next.After(end) {
			next = end
		}
		alt := altAt(next)
		if crossed(prev, alt) {
			return c.bisect(altAt, t, next, rising), nil
		}
		prev = alt
		t = next
	}

	cond := skyerr.NeverUp
	if startAlt > 0 {
		cond = skyerr.AlwaysUp
	}
	return time.Time{}, &skyerr.CircumpolarError{Body: b.Name(), Condition: cond}
}

// bisect narrows [lo, hi] around the horizon crossing and returns the first
// instant on the far side of it.
func (c *Calculator) bisect(altAt func(time.Time) float64, lo, hi time.Time, rising bool) time.Time {
	for hi.Sub(lo) > c.cfg.Precision {
		mid := lo.Add(hi.Sub(lo) / 2)
		above := altAt(mid) > 0
		if above == rising {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}

// horizontal converts b's apparent place at t into obs's horizon frame.
// Bodies at a finite distance get diurnal parallax applied.
func horizontal(obs observer.Observer, b body.Body, t time.Time) Horizontal {
	eq := b.Equatorial(transform.JulianDate(t))
	la := transform.EquatorialToHorizontal(obs, eq.RA, eq.Dec, transform.GMST(t))
	la = transform.ApplyParallax(la, eq.DistanceKm)
	return Horizontal{AltitudeDeg: la.AltitudeDeg, AzimuthDeg: la.AzimuthDeg}
}

func check(ctx context.Context, b body.Body) error {
	if err := ctx.Err(); err != nil {
		return skyerr.Unavailable(err)
	}
	if b == nil {
		return skyerr.Invalid("nil body")
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, skyerr.ErrCircumpolar):
		return "circumpolar"
	case errors.Is(err, skyerr.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, skyerr.ErrProviderUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
