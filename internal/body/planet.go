package body

import (
	"math"

	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/unit"
)

// PlanetID names one of the major planets.
type PlanetID int

const (
	Mercury PlanetID = iota
	Venus
	Mars
	Jupiter
	Saturn
	Uranus
	Neptune
)

var planetNames = [...]string{"Mercury", "Venus", "Mars", "Jupiter", "Saturn", "Uranus", "Neptune"}

func (id PlanetID) String() string {
	if id < 0 || int(id) >= len(planetNames) {
		return "Unknown"
	}
	return planetNames[id]
}

// Planets lists every PlanetID in heliocentric order.
var Planets = []PlanetID{Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune}

// elements are mean Keplerian elements referred to the J2000 ecliptic and
// equinox, with linear rates per Julian century (Standish, JPL, valid
// 1800-2050). Angles in degrees, a in AU.
type elements struct {
	a, e, i, l, peri, node                   float64
	aDot, eDot, iDot, lDot, periDot, nodeDot float64
}

var earthElements = elements{
	1.00000261, 0.01671123, -0.00001531, 100.46457166, 102.93768193, 0.0,
	0.00000562, -0.00004392, -0.01294668, 35999.37244981, 0.32327364, 0.0,
}

var planetElements = [...]elements{
	Mercury: {0.38709927, 0.20563593, 7.00497902, 252.25032350, 77.45779628, 48.33076593,
		0.00000037, 0.00001906, -0.00594749, 149472.67411175, 0.16047689, -0.12534081},
	Venus: {0.72333566, 0.00677672, 3.39467605, 181.97909950, 131.60246718, 76.67984255,
		0.00000390, -0.00004107, -0.00078890, 58517.81538729, 0.00268329, -0.27769418},
	Mars: {1.52371034, 0.09339410, 1.84969142, -4.55343205, -23.94362959, 49.55953891,
		0.00001847, 0.00007882, -0.00813131, 19140.30268499, 0.44441088, -0.29257343},
	Jupiter: {5.20288700, 0.04838624, 1.30439695, 34.39644051, 14.72847983, 100.47390909,
		-0.00011607, -0.00013253, -0.00183714, 3034.74612775, 0.21252668, 0.20469106},
	Saturn: {9.53667594, 0.05386179, 2.48599187, 49.95424423, 92.59887831, 113.66242448,
		-0.00125060, -0.00050991, 0.00193609, 1222.49362201, -0.41897216, -0.28867794},
	Uranus: {19.18916464, 0.04725744, 0.77263783, 313.23810451, 170.95427630, 74.01692503,
		-0.00196176, -0.00004397, -0.00242939, 428.48202785, 0.40805281, 0.04240589},
	Neptune: {30.06992276, 0.00859048, 1.77004347, -55.12002969, 44.96476227, 131.78422574,
		0.00026291, 0.00005105, 0.00035372, 218.45945325, -0.32241464, -0.00508664},
}

// magnitude model: V = h + 5 log10(r Δ) + c1 i + c2 i² + c3 i³, i in degrees.
type magModel struct{ h, c1, c2, c3 float64 }

var planetMagnitudes = [...]magModel{
	Mercury: {-0.42, 0.0380, -0.000273, 0.000002},
	Venus:   {-4.40, 0.0009, 0.000239, -0.00000065},
	Mars:    {-1.52, 0.016, 0, 0},
	Jupiter: {-9.40, 0.005, 0, 0},
	Saturn:  {-8.88, 0, 0, 0},
	Uranus:  {-7.19, 0, 0, 0},
	Neptune: {-6.87, 0, 0, 0},
}

// obliquityJ2000 is the mean obliquity of the ecliptic at J2000.
var obliquityJ2000 = unit.AngleFromDeg(23.43928)

type vec3 struct{ x, y, z float64 }

func (v vec3) sub(o vec3) vec3 { return vec3{v.x - o.x, v.y - o.y, v.z - o.z} }
func (v vec3) norm() float64   { return math.Sqrt(v.x*v.x + v.y*v.y + v.z*v.z) }

// heliocentric returns the J2000 ecliptic position in AU.
func (el elements) heliocentric(t float64) vec3 {
	a := el.a + el.aDot*t
	e := el.e + el.eDot*t
	inc := (el.i + el.iDot*t) * deg2rad
	l := el.l + el.lDot*t
	peri := el.peri + el.periDot*t
	node := el.node + el.nodeDot*t

	w := (peri - node) * deg2rad
	m := math.Mod(l-peri, 360)
	if m > 180 {
		m -= 360
	} else if m < -180 {
		m += 360
	}
	E := solveKepler(m*deg2rad, e)

	xp := a * (math.Cos(E) - e)
	yp := a * math.Sqrt(1-e*e) * math.Sin(E)

	cw, sw := math.Cos(w), math.Sin(w)
	cn, sn := math.Cos(node*deg2rad), math.Sin(node*deg2rad)
	ci, si := math.Cos(inc), math.Sin(inc)

	return vec3{
		x: (cw*cn-sw*sn*ci)*xp + (-sw*cn-cw*sn*ci)*yp,
		y: (cw*sn+sw*cn*ci)*xp + (-sw*sn+cw*cn*ci)*yp,
		z: (sw*si)*xp + (cw*si)*yp,
	}
}

// solveKepler solves E - e sin E = M by Newton iteration.
func solveKepler(m, e float64) float64 {
	E := m + e*math.Sin(m)
	for range 30 {
		dE := (E - e*math.Sin(E) - m) / (1 - e*math.Cos(E))
		E -= dE
		if math.Abs(dE) < 1e-12 {
			break
		}
	}
	return E
}

// Planet is one of the major planets.
type Planet struct {
	ID PlanetID
}

func (p Planet) Name() string { return p.ID.String() }
func (Planet) Kind() Kind     { return KindPlanet }
func (Planet) sealed()        {}

// geometry returns heliocentric planet and Earth vectors for jd.
func (p Planet) geometry(jd float64) (planet, earth vec3) {
	t := (jd - 2451545.0) / 36525.0
	return planetElements[p.ID].heliocentric(t), earthElements.heliocentric(t)
}

func (p Planet) Equatorial(jd float64) EqPosition {
	planet, earth := p.geometry(jd)
	g := planet.sub(earth)
	lon := unit.Angle(math.Atan2(g.y, g.x))
	lat := unit.Angle(math.Atan2(g.z, math.Hypot(g.x, g.y)))
	ra, dec := coord.EclToEq(lon, lat, math.Sin(obliquityJ2000.Rad()), math.Cos(obliquityJ2000.Rad()))
	return EqPosition{
		RA:         normRad(ra.Rad()),
		Dec:        dec.Rad(),
		DistanceKm: g.norm() * AUKm,
	}
}

func (p Planet) BaseData(jd float64) BaseData {
	planet, earth := p.geometry(jd)
	g := planet.sub(earth)
	r, delta, R := planet.norm(), g.norm(), earth.norm()

	cosI := (r*r + delta*delta - R*R) / (2 * r * delta)
	i := math.Acos(math.Max(-1, math.Min(1, cosI))) * rad2deg

	m := planetMagnitudes[p.ID]
	mag := m.h + 5*math.Log10(r*delta) + m.c1*i + m.c2*i*i + m.c3*i*i*i

	lon := math.Atan2(g.y, g.x) * rad2deg
	return newBaseData(roundTo(mag, 2), ZodiacConstellation(lon))
}
