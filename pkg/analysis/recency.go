// Package analysis provides the purchase-pattern analysis pipeline:
// recency weighting, frequency/recency aggregation, association-rule
// mining, and the brief composer for the generation service.
package analysis

import (
	"math"
	"time"
)

// DefaultHalfLifeDays is the default half-life for recency decay.
const DefaultHalfLifeDays = 30.0

// Weighter converts a timestamp into an exponentially decayed weight.
//
// The weight is exp(-age_days / half_life_days), so an event happening
// right now weighs 1.0 and older events decay smoothly toward 0.
// Pure computation, safe for concurrent use.
type Weighter struct {
	halfLifeDays float64
}

// NewWeighter creates a Weighter with the given half-life in days.
//
// A non-positive half-life falls back to DefaultHalfLifeDays.
func NewWeighter(halfLifeDays float64) *Weighter {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	return &Weighter{halfLifeDays: halfLifeDays}
}

// Weight returns the decayed weight of an event at occurredAt as seen from now.
//
// Events stamped in the future are treated as age 0, never as negative age,
// so the result is always in (0, 1].
func (w *Weighter) Weight(occurredAt, now time.Time) float64 {
	ageDays := now.Sub(occurredAt).Hours() / 24.0
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-ageDays / w.halfLifeDays)
}
