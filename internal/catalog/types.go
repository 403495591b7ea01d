package catalog

import "time"

// Star is one catalog entry. Proper motion in right ascension already
// includes the cos(declination) factor, as in Hipparcos.
type Star struct {
	HIP           int
	Name          string
	RAHours       float64 // J2000
	DecDeg        float64 // J2000
	PMRA          float64 // mas/yr
	PMDec         float64 // mas/yr
	ParallaxMas   float64
	Magnitude     float64
	Constellation string
}

// Dataset is a complete star catalog from one source.
type Dataset struct {
	Source   string
	LoadedAt time.Time
	Stars    []Star
}

// Brighter returns the stars with magnitude <= limit, keeping order.
func (d *Dataset) Brighter(limit float64) []Star {
	if d == nil {
		return nil
	}
	out := make([]Star, 0, len(d.Stars))
	for _, s := range d.Stars {
		if s.Magnitude <= limit {
			out = append(out, s)
		}
	}
	return out
}

// ByName returns the first star with the given proper name.
func (d *Dataset) ByName(name string) (Star, bool) {
	if d == nil {
		return Star{}, false
	}
	for _, s := range d.Stars {
		if s.Name == name {
			return s, true
		}
	}
	return Star{}, false
}
