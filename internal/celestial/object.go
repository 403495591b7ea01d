// Package celestial assembles named sky-object records from the ephemeris,
// the daily path sampler and the visibility classifier.
package celestial

import (
	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/dailypath"
	"github.com/star/skywatch/internal/visibility"
)

// CelestialObject is the record served for one body on one day.
type CelestialObject struct {
	Name       string                `json:"name"`
	Type       body.Kind             `json:"type"`
	BaseData   body.BaseData         `json:"base_data"`
	Visibility visibility.Visibility `json:"visibility"`
	DailyPath  dailypath.Path        `json:"daily_path"`
}

// Result is one body's outcome from a batch computation.
type Result struct {
	Name   string
	Object CelestialObject
	Err    error
}

// Collect splits batch results into objects keyed by name and error
// messages keyed by name.
func Collect(results []Result) (map[string]CelestialObject, map[string]string) {
	objects := make(map[string]CelestialObject, len(results))
	var failed map[string]string
	for _, r := range results {
		if r.Err != nil {
			if failed == nil {
				failed = make(map[string]string)
			}
			failed[r.Name] = r.Err.Error()
			continue
		}
		objects[r.Name] = r.Object
	}
	return objects, failed
}

// MergeRealtime returns a copy of objects in which each body with a live
// reading has that reading merged into its daily path. Bodies without a
// live reading, and readings without an object, are left alone.
func MergeRealtime(objects map[string]CelestialObject, live map[string]dailypath.Position) map[string]CelestialObject {
	out := make(map[string]CelestialObject, len(objects))
	for name, obj := range objects {
		if pos, ok := live[name]; ok {
			obj.DailyPath = dailypath.Merge(obj.DailyPath, pos)
		}
		out[name] = obj
	}
	return out
}

// RefreshVisibility returns a copy of objects whose visibility is
// reclassified from the live altitude. Used when serving records computed
// earlier in the day.
func RefreshVisibility(objects map[string]CelestialObject, live map[string]dailypath.Position) map[string]CelestialObject {
	out := make(map[string]CelestialObject, len(objects))
	for name, obj := range objects {
		if pos, ok := live[name]; ok {
			obj.Visibility = visibility.Classify(pos.Altitude)
		}
		out[name] = obj
	}
	return out
}
