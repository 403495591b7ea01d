// Package ephemeris answers positional questions about a body for an
// observer: where it is at an instant, and when it next rises or sets.
package ephemeris

import (
	"context"
	"time"

	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/observer"
)

// Horizontal is a topocentric position.
type Horizontal struct {
	AltitudeDeg float64 // [-90, 90]
	AzimuthDeg  float64 // [0, 360), clockwise from North
}

// Provider is the celestial mechanics contract the sampler and assembler
// depend on. Implementations must be safe for concurrent use; every call
// carries its observer and instant explicitly.
//
// NextRising and NextSetting return a *skyerr.CircumpolarError when the
// event does not occur within the implementation's search span. Cancelled
// or failing calls return an error wrapping skyerr.ErrProviderUnavailable.
type Provider interface {
	PositionAt(ctx context.Context, obs observer.Observer, b body.Body, t time.Time) (Horizontal, error)
	NextRising(ctx context.Context, obs observer.Observer, b body.Body, after time.Time) (time.Time, error)
	NextSetting(ctx context.Context, obs observer.Observer, b body.Body, after time.Time) (time.Time, error)
}
