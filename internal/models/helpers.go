package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh record ID.
func NewID() string {
	return uuid.New().String()
}

// Now returns the current time truncated to microseconds in UTC,
// the precision both stores round-trip.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// InRange reports whether lo <= v <= hi.
func InRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}
