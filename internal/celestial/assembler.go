package celestial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/dailypath"
	"github.com/star/skywatch/internal/ephemeris"
	"github.com/star/skywatch/internal/observer"
	"github.com/star/skywatch/internal/skyerr"
	"github.com/star/skywatch/internal/transform"
	"github.com/star/skywatch/internal/visibility"
)

// Assembler builds CelestialObjects. It is stateless apart from its
// collaborators and safe for concurrent use.
type Assembler struct {
	provider ephemeris.Provider
	sampler  *dailypath.Sampler
	workers  int
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewAssembler creates an Assembler. workers bounds ComputeAll's fan-out;
// zero or less means runtime.NumCPU().
func NewAssembler(provider ephemeris.Provider, sampler *dailypath.Sampler, workers int, logger *slog.Logger) *Assembler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Assembler{
		provider: provider,
		sampler:  sampler,
		workers:  workers,
		logger:   logger,
		tracer:   otel.Tracer("github.com/star/skywatch/internal/celestial"),
	}
}

// Compute builds the record for b: visibility at `at`, the daily path for
// at's local day, and base data at `at`.
func (a *Assembler) Compute(ctx context.Context, obs observer.Observer, b body.Body, at time.Time) (CelestialObject, error) {
	if b == nil {
		return CelestialObject{}, skyerr.Invalid("nil body")
	}
	ctx, span := a.tracer.Start(ctx, "celestial.Compute", trace.WithAttributes(attribute.String("body", b.Name())))
	defer span.End()

	pos, err := a.provider.PositionAt(ctx, obs, b, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CelestialObject{}, fmt.Errorf("position of %s: %w", b.Name(), err)
	}

	path, err := a.sampler.Sample(ctx, obs, b, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CelestialObject{}, fmt.Errorf("daily path of %s: %w", b.Name(), err)
	}
	if path == nil {
		path = dailypath.Path{}
	}

	return CelestialObject{
		Name:       b.Name(),
		Type:       b.Kind(),
		BaseData:   b.BaseData(transform.JulianDate(at)),
		Visibility: visibility.Classify(pos.AltitudeDeg),
		DailyPath:  path,
	}, nil
}

// ComputeAll computes every body concurrently, at most a.workers at a time.
// Results are in input order; a failed body carries its error in Result.Err
// and does not affect the others.
func (a *Assembler) ComputeAll(ctx context.Context, obs observer.Observer, bodies []body.Body, at time.Time) []Result {
	results := make([]Result, len(bodies))
	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup

	for i, b := range bodies {
		wg.Add(1)
		go func(idx int, b body.Body) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = Result{Name: b.Name(), Err: skyerr.Unavailable(ctx.Err())}
				return
			}

			obj, err := a.Compute(ctx, obs, b, at)
			if err != nil {
				a.logger.Warn("celestial object failed", "body", b.Name(), "error", err)
				results[idx] = Result{Name: b.Name(), Err: err}
				return
			}
			results[idx] = Result{Name: b.Name(), Object: obj}
		}(i, b)
	}

	wg.Wait()
	return results
}

// Realtime returns each body's position at `at`, keyed by name. Bodies whose
// position cannot be computed are left out; ErrInvalidInput aborts, and an
// error is returned if no body could be placed.
func (a *Assembler) Realtime(ctx context.Context, obs observer.Observer, bodies []body.Body, at time.Time) (map[string]dailypath.Position, error) {
	out := make(map[string]dailypath.Position, len(bodies))
	var lastErr error
	for _, b := range bodies {
		pos, err := a.provider.PositionAt(ctx, obs, b, at)
		if err != nil {
			if errors.Is(err, skyerr.ErrInvalidInput) {
				return nil, err
			}
			a.logger.Warn("realtime position failed", "body", b.Name(), "error", err)
			lastErr = err
			continue
		}
		out[b.Name()] = dailypath.Position{Time: at, Altitude: pos.AltitudeDeg, Azimuth: pos.AzimuthDeg}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}
