package catalog

import "strings"

// Step is one labeled instruction in the posture workflow catalog.
type Step struct {
	ID               int64
	Ordinal          int
	Label            string
	DisplayName      string
	Instructions     string
	CountdownSeconds int
	DurationMillis   int
	Active           bool
}

// Distance is one of the fixed camera-distance conditions repeated across
// the full step catalog.
type Distance string

const (
	DistanceNominal Distance = "nom"
	DistanceClose   Distance = "close"
	DistanceFar     Distance = "far"
)

// distanceOrder is the fixed recording sequence. Consumers display and
// persist this order; it is not configurable at runtime.
var distanceOrder = []Distance{DistanceNominal, DistanceClose, DistanceFar}

// Distances returns the ordered list of distance variants.
func Distances() []Distance {
	cp := make([]Distance, len(distanceOrder))
	copy(cp, distanceOrder)
	return cp
}

// FirstDistance returns the variant a new session starts at.
func FirstDistance() Distance {
	return distanceOrder[0]
}

// LastDistance returns the final variant in the sequence.
func LastDistance() Distance {
	return distanceOrder[len(distanceOrder)-1]
}

// NextDistance returns the variant after d, or false when d is the last.
func NextDistance(d Distance) (Distance, bool) {
	for i, candidate := range distanceOrder {
		if candidate == d && i+1 < len(distanceOrder) {
			return distanceOrder[i+1], true
		}
	}
	return d, false
}

// ParseDistance validates a wire value against the known variants.
func ParseDistance(value string) (Distance, bool) {
	normalized := Distance(strings.ToLower(strings.TrimSpace(value)))
	for _, candidate := range distanceOrder {
		if candidate == normalized {
			return normalized, true
		}
	}
	return "", false
}
