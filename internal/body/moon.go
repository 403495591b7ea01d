package body

import (
	"math"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
)

// Moon is Earth's Moon.
type Moon struct{}

func (Moon) Name() string { return "Moon" }
func (Moon) Kind() Kind   { return KindMoon }
func (Moon) sealed()      {}

func (Moon) Equatorial(jd float64) EqPosition {
	lon, lat, dist := moonposition.Position(jd)
	dPsi, dEps := nutation.Nutation(jd)
	eps := nutation.MeanObliquity(jd) + dEps
	ra, dec := coord.EclToEq(lon+dPsi, lat, math.Sin(eps.Rad()), math.Cos(eps.Rad()))
	return EqPosition{
		RA:         normRad(ra.Rad()),
		Dec:        dec.Rad(),
		DistanceKm: dist,
	}
}

func (Moon) BaseData(jd float64) BaseData {
	lon, lat, dist := moonposition.Position(jd)
	sunLon, sunDist := sunEcliptic(jd)

	// Geocentric elongation, then phase angle (Meeus 48.2, 48.3).
	psi := math.Acos(math.Cos(lat.Rad()) * math.Cos(lon.Rad()-sunLon))
	i := math.Atan2(sunDist*math.Sin(psi), dist-sunDist*math.Cos(psi)) * rad2deg
	i = math.Abs(i)
	mag := -12.73 + 0.026*i + 4e-9*math.Pow(i, 4)

	// Ecliptic of date back to J2000 for the boundary table.
	lon2000 := lon.Deg() - 1.3969713*base.J2000Century(jd)
	return newBaseData(roundTo(mag, 2), ZodiacConstellation(lon2000))
}
