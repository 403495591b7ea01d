// Package body defines the closed set of sky objects the engine can place:
// the Sun, the Moon, the major planets and catalog stars.
//
// Every variant reports apparent geocentric equatorial coordinates for a
// Julian date. Converting those to an observer's horizon is the job of the
// ephemeris package.
package body

import "math"

// Kind is the reported type of a body.
type Kind string

const (
	KindPlanet Kind = "planet"
	KindStar   Kind = "star"
	KindMoon   Kind = "moon"
	KindSun    Kind = "sun"
)

// AUKm is one astronomical unit in kilometres.
const AUKm = 149597870.7

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// EqPosition is a geocentric equatorial position.
type EqPosition struct {
	RA         float64 // radians, [0, 2π)
	Dec        float64 // radians
	DistanceKm float64 // 0 means effectively infinite (stars)
}

// BaseData is the static-ish descriptive data attached to a body.
// Fields are nil when the body has no such data.
type BaseData struct {
	Magnitude     *float64 `json:"magnitude,omitempty"`
	Constellation *string  `json:"constellation,omitempty"`
}

// Body is implemented only by the variants in this package.
type Body interface {
	Name() string
	Kind() Kind
	// Equatorial returns the apparent position at Julian date jd (UT is
	// used in place of TT).
	Equatorial(jd float64) EqPosition
	// BaseData returns magnitude and constellation at jd.
	BaseData(jd float64) BaseData

	sealed()
}

func newBaseData(mag float64, constellation string) BaseData {
	return BaseData{Magnitude: &mag, Constellation: &constellation}
}

// roundTo rounds v to n decimal places.
func roundTo(v float64, n int) float64 {
	p := math.Pow(10, float64(n))
	return math.Round(v*p) / p
}

func normRad(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
