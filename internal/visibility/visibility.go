// Package visibility classifies a topocentric altitude.
package visibility

import "fmt"

// Visibility reports whether a body is above the horizon.
type Visibility struct {
	IsVisible bool   `json:"isVisible"`
	Message   string `json:"message"`
}

// Classify returns the visibility for an altitude in degrees. A body exactly
// on the horizon is not visible.
func Classify(altitudeDeg float64) Visibility {
	if altitudeDeg > 0 {
		return Visibility{
			IsVisible: true,
			Message:   fmt.Sprintf("Visible at %.1f° altitude", altitudeDeg),
		}
	}
	return Visibility{IsVisible: false, Message: "Below horizon"}
}
