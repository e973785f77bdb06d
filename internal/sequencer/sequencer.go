// Package sequencer decides which (step, distance) combination a session
// records next. It is pure over its inputs; callers load the catalog and the
// captured set and act on the answer.
package sequencer

import (
	"posturesync/internal/catalog"
	"posturesync/internal/recording"
)

// Position is one concrete combination in the workflow.
type Position struct {
	Step     *catalog.Step
	Distance catalog.Distance
}

// Next returns the combination to record after finishing excludeLabel at the
// given distance. Within the current distance it picks the first catalog
// step without a captured clip pair, skipping the step just finished even
// when its uploads have not counted yet. When the current distance is
// exhausted the walk restarts from the first step at the following distance.
// The second return is false once every combination is captured.
func Next(steps []*catalog.Step, captured map[string]struct{}, from catalog.Distance, excludeLabel string) (Position, bool) {
	if len(steps) == 0 {
		return Position{}, false
	}

	distance := from
	exclude := excludeLabel
	for {
		for _, step := range steps {
			if step.Label == exclude {
				continue
			}
			if _, done := captured[recording.CombinationKey(step.Label, string(distance))]; done {
				continue
			}
			return Position{Step: step, Distance: distance}, true
		}

		next, ok := catalog.NextDistance(distance)
		if !ok {
			return Position{}, false
		}
		distance = next
		// The finished step is a fresh combination at the new distance.
		exclude = ""
	}
}

// First returns the opening combination of a session.
func First(steps []*catalog.Step) (Position, bool) {
	return Next(steps, nil, catalog.FirstDistance(), "")
}

// Total returns how many combinations a full session records.
func Total(steps []*catalog.Step) int {
	return len(steps) * len(catalog.Distances())
}

// Complete reports whether every combination has a captured clip pair.
func Complete(steps []*catalog.Step, captured map[string]struct{}) bool {
	for _, distance := range catalog.Distances() {
		for _, step := range steps {
			if _, done := captured[recording.CombinationKey(step.Label, string(distance))]; !done {
				return false
			}
		}
	}
	return true
}
