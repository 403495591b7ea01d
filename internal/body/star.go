package body

import (
	"math"

	"github.com/star/skywatch/internal/catalog"
)

// Star is a catalog star. Its position is the J2000 catalog position carried
// forward by proper motion; parallax and aberration are ignored.
type Star struct {
	Entry catalog.Star
}

func (s Star) Name() string { return s.Entry.Name }
func (Star) Kind() Kind     { return KindStar }
func (Star) sealed()        {}

func (s Star) Equatorial(jd float64) EqPosition {
	years := (jd - 2451545.0) / 365.25
	dec := s.Entry.DecDeg + s.Entry.PMDec*years/3.6e6
	cosDec := math.Cos(s.Entry.DecDeg * deg2rad)
	ra := s.Entry.RAHours * 15
	if cosDec > 1e-9 {
		ra += s.Entry.PMRA * years / 3.6e6 / cosDec
	}
	return EqPosition{
		RA:  normRad(ra * deg2rad),
		Dec: math.Max(-math.Pi/2, math.Min(math.Pi/2, dec*deg2rad)),
	}
}

func (s Star) BaseData(float64) BaseData {
	return newBaseData(s.Entry.Magnitude, s.Entry.Constellation)
}
