package dailypath

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/ephemeris"
	"github.com/star/skywatch/internal/metrics"
	"github.com/star/skywatch/internal/observer"
	"github.com/star/skywatch/internal/skyerr"
)

// Policy selects how much of the day is sampled.
type Policy int

const (
	// PolicyVisible brackets the body's rise and set and keeps only samples
	// above the horizon.
	PolicyVisible Policy = iota
	// PolicyFullDay samples all 24 hours and keeps every sample.
	PolicyFullDay
)

func (p Policy) String() string {
	if p == PolicyFullDay {
		return "full_day"
	}
	return "visible"
}

// Config holds sampler settings.
type Config struct {
	GranularityMinutes int    `validate:"min=1,max=60"` // must divide 60 (default: 30)
	MarginHours        int    `validate:"min=0,max=12"` // padding around rise/set (default: 1)
	Policy             Policy `validate:"oneof=0 1"`
}

// DefaultConfig returns the reference sampling settings.
func DefaultConfig() Config {
	return Config{GranularityMinutes: 30, MarginHours: 1, Policy: PolicyVisible}
}

var validate = validator.New()

// Sampler computes daily paths. It holds no per-call state and is safe for
// concurrent use.
type Sampler struct {
	provider ephemeris.Provider
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewSampler validates cfg and returns a Sampler backed by provider.
func NewSampler(provider ephemeris.Provider, cfg Config, logger *slog.Logger) (*Sampler, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, skyerr.Invalid("sampler config: %v", err)
	}
	if 60%cfg.GranularityMinutes != 0 {
		return nil, skyerr.Invalid("sampler granularity %d does not divide 60", cfg.GranularityMinutes)
	}
	return &Sampler{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("github.com/star/skywatch/internal/dailypath"),
	}, nil
}

// Config returns the sampler's settings.
func (s *Sampler) Config() Config { return s.cfg }

// Sample returns b's path over the local calendar day containing day.
//
// Circumpolar bodies and rise/set failures fall back to sampling the whole
// day; individual failed samples are skipped. Only ErrInvalidInput, or every
// sample failing with ErrProviderUnavailable, is returned as an error.
func (s *Sampler) Sample(ctx context.Context, obs observer.Observer, b body.Body, day time.Time) (Path, error) {
	if b == nil {
		return nil, skyerr.Invalid("nil body")
	}
	midnight := obs.StartOfDay(day)

	ctx, span := s.tracer.Start(ctx, "dailypath.Sample", trace.WithAttributes(
		attribute.String("body", b.Name()),
		attribute.String("day", midnight.Format(time.DateOnly)),
		attribute.String("policy", s.cfg.Policy.String()),
	))
	defer span.End()

	hours, filter, err := s.window(ctx, obs, b, midnight)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var (
		path        Path
		evaluated   int
		failed      int
		unavailable int
		lastErr     error
	)
	for _, h := range hours {
		for m := 0; m < 60; m += s.cfg.GranularityMinutes {
			t := obs.At(midnight, h, m)
			evaluated++

			pos, err := s.provider.PositionAt(ctx, obs, b, t)
			if err != nil {
				if errors.Is(err, skyerr.ErrInvalidInput) {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
					return nil, err
				}
				failed++
				if errors.Is(err, skyerr.ErrProviderUnavailable) {
					unavailable++
				}
				lastErr = err
				continue
			}
			if filter && pos.AltitudeDeg <= 0 {
				continue
			}
			path = append(path, Position{Time: t, Altitude: pos.AltitudeDeg, Azimuth: pos.AzimuthDeg})
		}
	}

	metrics.AddSamplerSamples("retained", len(path))
	metrics.AddSamplerSamples("below_horizon", evaluated-failed-len(path))
	metrics.AddSamplerSamples("error", failed)
	span.SetAttributes(
		attribute.Int("samples.evaluated", evaluated),
		attribute.Int("samples.retained", len(path)),
		attribute.Int("samples.failed", failed),
	)

	if evaluated > 0 && unavailable == evaluated {
		err := fmt.Errorf("sampling %s: all %d samples failed: %w", b.Name(), evaluated, lastErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider unavailable")
		return nil, err
	}
	if failed > 0 {
		s.logger.Debug("skipped failed samples", "body", b.Name(), "failed", failed, "error", lastErr)
	}

	return sortUnique(path), nil
}

// fullDay lists every hour of the day.
func fullDay() []int {
	h := make([]int, 24)
	for i := range h {
		h[i] = i
	}
	return h
}

// window decides which local hours to sample and whether to drop samples
// below the horizon.
func (s *Sampler) window(ctx context.Context, obs observer.Observer, b body.Body, midnight time.Time) ([]int, bool, error) {
	if s.cfg.Policy == PolicyFullDay {
		return fullDay(), false, nil
	}

	fallback := func(reason string, err error) ([]int, bool, error) {
		if errors.Is(err, skyerr.ErrInvalidInput) {
			return nil, false, err
		}
		metrics.IncSamplerFallback(reason)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("fallback", reason))
		s.logger.Debug("sampling full day", "body", b.Name(), "reason", reason, "error", err)
		return fullDay(), true, nil
	}

	ref, err := s.provider.PositionAt(ctx, obs, b, midnight)
	if err != nil {
		return fallback(fallbackReason(err), err)
	}

	rise, err := s.provider.NextRising(ctx, obs, b, midnight)
	if err != nil {
		return fallback(fallbackReason(err), err)
	}
	set, err := s.provider.NextSetting(ctx, obs, b, midnight)
	if err != nil {
		return fallback(fallbackReason(err), err)
	}

	if rise.After(set) {
		// Already up at midnight: take the rise that led to this set.
		rise, err = s.provider.NextRising(ctx, obs, b, midnight.Add(-24*time.Hour))
		if err != nil {
			return fallback(fallbackReason(err), err)
		}
		if !rise.Before(set) {
			return fallback("indeterminate", nil)
		}
	}

	dayEnd := midnight.AddDate(0, 0, 1)
	if !rise.Before(dayEnd) {
		if ref.AltitudeDeg <= 0 {
			// Below the horizon for the whole local day.
			return nil, true, nil
		}
		return fallback("indeterminate", nil)
	}

	return hourWindow(rise.In(obs.Location()), set.In(obs.Location()), s.cfg.MarginHours), true, nil
}

// hourWindow returns the distinct local hours in [riseHour-margin,
// setHour+margin]. When the set falls on a later wall-clock hour than the
// rise the window wraps past midnight and hours are folded modulo 24 onto
// the same calendar date.
func hourWindow(rise, set time.Time, margin int) []int {
	if set.Sub(rise) >= 23*time.Hour {
		return fullDay()
	}
	riseHour, setHour := rise.Hour(), set.Hour()
	start := riseHour - margin
	end := setHour + margin

	wraps := setHour < riseHour || (setHour == riseHour && set.Sub(rise) > time.Hour)
	if wraps {
		end += 24
	}
	if start < 0 {
		start = 0
	}
	if !wraps && end > 23 {
		end = 23
	}
	if end-start >= 23 {
		return fullDay()
	}

	var seen [24]bool
	hours := make([]int, 0, end-start+1)
	for h := start; h <= end; h++ {
		hh := h % 24
		if seen[hh] {
			continue
		}
		seen[hh] = true
		hours = append(hours, hh)
	}
	return hours
}

func fallbackReason(err error) string {
	var ce *skyerr.CircumpolarError
	switch {
	case errors.As(err, &ce) && ce.Condition == skyerr.AlwaysUp:
		return "always_up"
	case errors.As(err, &ce):
		return "never_up"
	case errors.Is(err, skyerr.ErrProviderUnavailable):
		return "provider_unavailable"
	default:
		return "provider_error"
	}
}
