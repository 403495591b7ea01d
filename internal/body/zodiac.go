package body

import "sort"

type zodiacBoundary struct {
	start float64 // J2000 ecliptic longitude, degrees
	name  string
}

// zodiac lists where each constellation begins along the ecliptic.
var zodiac = []zodiacBoundary{
	{28.0, "Aries"},
	{53.5, "Taurus"},
	{90.1, "Gemini"},
	{117.9, "Cancer"},
	{138.0, "Leo"},
	{173.9, "Virgo"},
	{217.8, "Libra"},
	{241.0, "Scorpius"},
	{247.7, "Ophiuchus"},
	{266.3, "Sagittarius"},
	{299.7, "Capricornus"},
	{327.9, "Aquarius"},
	{351.6, "Pisces"},
}

// ZodiacConstellation returns the constellation crossed by the ecliptic at
// the given J2000 longitude. Ecliptic latitude is ignored, so bodies well off
// the ecliptic get the nearest zodiacal name.
func ZodiacConstellation(lonDeg float64) string {
	lonDeg = normDeg(lonDeg)
	i := sort.Search(len(zodiac), func(k int) bool { return zodiac[k].start > lonDeg })
	if i == 0 {
		return "Pisces"
	}
	return zodiac[i-1].name
}

func normDeg(a float64) float64 {
	for a < 0 {
		a += 360
	}
	for a >= 360 {
		a -= 360
	}
	return a
}
