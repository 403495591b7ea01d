package transform

import (
	"math"

	"github.com/star/skywatch/internal/observer"
)

// EarthRadiusKm is the equatorial radius used for diurnal parallax.
const EarthRadiusKm = 6378.14

// LookAngles holds azimuth and altitude from an observer to a body.
type LookAngles struct {
	AzimuthDeg  float64 // 0 = North, clockwise, [0, 360)
	AltitudeDeg float64 // 0 = horizon, 90 = zenith
}

// EquatorialToHorizontal converts apparent geocentric right ascension and
// declination (radians) to horizontal coordinates for obs, given Greenwich
// sidereal time in radians.
//
// Azimuth is measured clockwise from North, so a body rising due east reads 90.
func EquatorialToHorizontal(obs observer.Observer, ra, dec, gmst float64) LookAngles {
	sinLat, cosLat := obs.SinCosLat()

	// Local hour angle, positive west of the meridian.
	h := gmst + obs.LonRad() - ra

	sinDec := math.Sin(dec)
	cosDec := math.Cos(dec)
	cosH := math.Cos(h)

	sinAlt := sinLat*sinDec + cosLat*cosDec*cosH
	if sinAlt > 1 {
		sinAlt = 1
	} else if sinAlt < -1 {
		sinAlt = -1
	}
	alt := math.Asin(sinAlt)

	az := math.Atan2(-cosDec*math.Sin(h), sinDec*cosLat-cosDec*sinLat*cosH)

	return LookAngles{
		AzimuthDeg:  NormalizeDegrees(az * 180.0 / math.Pi),
		AltitudeDeg: alt * 180.0 / math.Pi,
	}
}

// ApplyParallax lowers a geocentric altitude to the topocentric value for a
// body at distanceKm. Bodies with no finite distance are returned unchanged.
func ApplyParallax(la LookAngles, distanceKm float64) LookAngles {
	if distanceKm <= 0 || math.IsInf(distanceKm, 0) {
		return la
	}
	sinPi := EarthRadiusKm / distanceKm
	alt := la.AltitudeDeg * math.Pi / 180.0
	p := math.Asin(sinPi * math.Cos(alt))
	la.AltitudeDeg -= p * 180.0 / math.Pi
	if la.AltitudeDeg < -90 {
		la.AltitudeDeg = -90
	}
	return la
}
