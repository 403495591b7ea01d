// Package dailypath samples a body's positions over a local day and splices
// live readings into a sampled path.
package dailypath

import (
	"slices"
	"sort"
	"time"
)

// Position is one sampled topocentric position.
type Position struct {
	Time     time.Time `json:"time"`
	Altitude float64   `json:"altitude"`
	Azimuth  float64   `json:"azimuth"`
}

// Path is a day's positions, ascending by Time with no repeated instants.
type Path []Position

// Clone returns a copy of p that shares no backing array with it.
func (p Path) Clone() Path {
	return slices.Clone(p)
}

// Merge replaces the slot whose interval contains s.Time with s and returns
// the result as a new Path; p is left untouched. The slot is the last entry
// strictly before s.Time, provided the next entry (if any) is strictly after
// it. An empty path, a sample before the first entry, and a sample whose
// instant already exists leave the path unchanged, so merging the same sample
// twice is the same as merging it once. The length never changes.
//
// p must be sorted ascending by Time.
func Merge(p Path, s Position) Path {
	if len(p) == 0 {
		return p
	}
	idx := sort.Search(len(p), func(k int) bool { return !p[k].Time.Before(s.Time) })
	i := idx - 1
	if i < 0 {
		return p.Clone()
	}
	if idx < len(p) && p[idx].Time.Equal(s.Time) {
		return p.Clone()
	}
	out := p.Clone()
	out[i] = s
	return out
}

// sortUnique sorts p by time and drops entries that repeat an instant,
// keeping the first.
func sortUnique(p Path) Path {
	sort.SliceStable(p, func(a, b int) bool { return p[a].Time.Before(p[b].Time) })
	return slices.CompactFunc(p, func(a, b Position) bool { return a.Time.Equal(b.Time) })
}
