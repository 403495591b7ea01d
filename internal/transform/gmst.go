package transform

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/soniakeys/meeus/v3/julian"
)

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// JulianDate converts a time.Time to Julian Date (UT).
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// GMST returns Greenwich Mean Sidereal Time in radians, [0, 2π).
//
// go-satellite evaluates the IAU-82 model at whole seconds; the sub-second
// remainder is advanced at Earth's rotation rate.
func GMST(t time.Time) float64 {
	t = t.UTC()
	gmst := satellite.GSTimeFromDate(
		t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
	)
	gmst += OmegaEarth * float64(t.Nanosecond()) / 1e9
	return NormalizeRadians(gmst)
}

// NormalizeRadians wraps an angle to [0, 2π).
func NormalizeRadians(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// NormalizeDegrees wraps an angle to [0, 360).
func NormalizeDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	// math.Mod can return exactly 360 after the add for tiny negatives.
	if a >= 360 {
		a -= 360
	}
	return a
}
