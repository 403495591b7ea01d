package body

import (
	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/solar"
)

// Sun is the Sun.
type Sun struct{}

func (Sun) Name() string { return "Sun" }
func (Sun) Kind() Kind   { return KindSun }
func (Sun) sealed()      {}

func (Sun) Equatorial(jd float64) EqPosition {
	ra, dec := solar.ApparentEquatorial(jd)
	r := solar.Radius(base.J2000Century(jd))
	return EqPosition{
		RA:         normRad(ra.Rad()),
		Dec:        dec.Rad(),
		DistanceKm: r * AUKm,
	}
}

// BaseData is empty for the Sun.
func (Sun) BaseData(float64) BaseData { return BaseData{} }

// sunEcliptic returns the Sun's apparent ecliptic longitude in radians and
// its distance in kilometres.
func sunEcliptic(jd float64) (lon, distKm float64) {
	t := base.J2000Century(jd)
	return solar.ApparentLongitude(t).Rad(), solar.Radius(t) * AUKm
}
