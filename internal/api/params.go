package api

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/observer"
	"github.com/star/skywatch/internal/skyerr"
)

// query is the parsed form of the parameters shared by the position routes.
type query struct {
	obs    observer.Observer
	custom bool      // observer differs from the server default
	at     time.Time // reference instant
}

func (h *handlers) parseQuery(r *http.Request) (query, error) {
	obs, custom, err := parseObserver(r.URL.Query(), h.deps.Observer)
	if err != nil {
		return query{}, err
	}
	at, err := parseDate(r.URL.Query().Get("date"), obs, h.now())
	if err != nil {
		return query{}, err
	}
	return query{obs: obs, custom: custom, at: at}, nil
}

// parseObserver overrides def with any of lat, lon, elevation and tz.
// custom is false when none was given.
func parseObserver(v url.Values, def observer.Observer) (observer.Observer, bool, error) {
	cfg := observer.Config{
		Latitude:  def.Latitude(),
		Longitude: def.Longitude(),
		Elevation: def.Elevation(),
		Timezone:  def.Location().String(),
	}
	custom := false

	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"lat", &cfg.Latitude},
		{"lon", &cfg.Longitude},
		{"elevation", &cfg.Elevation},
	} {
		raw := v.Get(p.name)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsInf(f, 0) {
			return observer.Observer{}, false, skyerr.Invalid("%s must be a number, got %q", p.name, raw)
		}
		*p.dst = f
		custom = true
	}
	if tz := v.Get("tz"); tz != "" {
		cfg.Timezone = tz
		custom = true
	}

	if !custom {
		return def, false, nil
	}
	obs, err := observer.New(cfg)
	if err != nil {
		return observer.Observer{}, false, err
	}
	return obs, true, nil
}

// parseDate turns date=YYYY-MM-DD into a reference instant. The observer's
// current day, or an empty value, yields now; another day yields the same
// wall-clock time on that day.
func parseDate(raw string, obs observer.Observer, now time.Time) (time.Time, error) {
	if raw == "" {
		return now, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, obs.Location())
	if err != nil {
		return time.Time{}, skyerr.Invalid("date must be YYYY-MM-DD, got %q", raw)
	}
	local := now.In(obs.Location())
	if day.Year() == local.Year() && day.YearDay() == local.YearDay() {
		return now, nil
	}
	return obs.At(day, local.Hour(), local.Minute()), nil
}

// parseBodies resolves a comma-separated bodies parameter, falling back to def.
func parseBodies(raw string, registry *body.Registry, def []body.Body) ([]body.Body, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return registry.Resolve(strings.Split(raw, ","))
}

// parseMagnitude reads max_magnitude, falling back to def.
func parseMagnitude(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < -2 || f > 8 {
		return 0, skyerr.Invalid("max_magnitude must be between -2 and 8, got %q", raw)
	}
	return f, nil
}
