// Package observer holds the immutable ground location that every position
// query is made from.
package observer

import (
	"errors"
	"fmt"
	"math"
	"time"
	_ "time/tzdata" // IANA zones must resolve in minimal containers.

	"github.com/go-playground/validator/v10"

	"github.com/star/skywatch/internal/skyerr"
)

// Reference location (Cambridge, Ontario).
const (
	DefaultLatitude  = 43.397221
	DefaultLongitude = -80.311386
	DefaultTimezone  = "America/Toronto"
)

var validate = validator.New()

// Config is the user-facing description of an observer.
type Config struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
	Elevation float64 `validate:"gte=-500,lte=9000"` // meters above sea level
	Timezone  string  `validate:"omitempty,timezone"`
}

// Observer is a validated geodetic location plus the time zone used to
// derive local calendar days. Trig terms are precomputed once so they can be
// reused across many position lookups. Values are never mutated after New.
type Observer struct {
	lat, lon, elevation float64
	sinLat, cosLat      float64
	loc                 *time.Location
}

// New validates cfg and builds an Observer. Validation failures wrap
// skyerr.ErrInvalidInput.
func New(cfg Config) (Observer, error) {
	if math.IsNaN(cfg.Latitude) || math.IsNaN(cfg.Longitude) || math.IsNaN(cfg.Elevation) {
		return Observer{}, skyerr.Invalid("observer coordinates must be finite")
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return Observer{}, skyerr.Invalid("observer %s fails %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return Observer{}, skyerr.Invalid("observer: %v", err)
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return Observer{}, skyerr.Invalid("observer timezone %q: %v", cfg.Timezone, err)
		}
		loc = l
	}

	latRad := cfg.Latitude * math.Pi / 180.0
	return Observer{
		lat:       cfg.Latitude,
		lon:       cfg.Longitude,
		elevation: cfg.Elevation,
		sinLat:    math.Sin(latRad),
		cosLat:    math.Cos(latRad),
		loc:       loc,
	}, nil
}

// Default returns the reference observer.
func Default() Observer {
	obs, err := New(Config{
		Latitude:  DefaultLatitude,
		Longitude: DefaultLongitude,
		Timezone:  DefaultTimezone,
	})
	if err != nil {
		panic(fmt.Sprintf("default observer: %v", err))
	}
	return obs
}

// Latitude in degrees, positive north.
func (o Observer) Latitude() float64 { return o.lat }

// Longitude in degrees, positive east.
func (o Observer) Longitude() float64 { return o.lon }

// Elevation in meters.
func (o Observer) Elevation() float64 { return o.elevation }

// LatRad returns latitude in radians.
func (o Observer) LatRad() float64 { return o.lat * math.Pi / 180.0 }

// LonRad returns longitude in radians.
func (o Observer) LonRad() float64 { return o.lon * math.Pi / 180.0 }

// SinCosLat returns the precomputed sine and cosine of the latitude.
func (o Observer) SinCosLat() (float64, float64) { return o.sinLat, o.cosLat }

// Location returns the observer's time zone. The zero Observer reports UTC.
func (o Observer) Location() *time.Location {
	if o.loc == nil {
		return time.UTC
	}
	return o.loc
}

// StartOfDay returns local midnight of t's calendar date in the observer's zone.
func (o Observer) StartOfDay(t time.Time) time.Time {
	return o.At(t, 0, 0)
}

// At returns the wall-clock instant hour:minute on t's local calendar date.
func (o Observer) At(t time.Time, hour, minute int) time.Time {
	loc := o.Location()
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
}

// String renders the observer for logs.
func (o Observer) String() string {
	return fmt.Sprintf("%.6f,%.6f@%.0fm %s", o.lat, o.lon, o.elevation, o.Location())
}
