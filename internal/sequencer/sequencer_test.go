package sequencer_test

import (
	"testing"

	"posturesync/internal/catalog"
	"posturesync/internal/recording"
	"posturesync/internal/sequencer"
)

func steps(labels ...string) []*catalog.Step {
	out := make([]*catalog.Step, 0, len(labels))
	for i, label := range labels {
		out = append(out, &catalog.Step{Ordinal: i + 1, Label: label, Active: true})
	}
	return out
}

func captured(keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}

func TestFirstOpensAtFirstStepAndDistance(t *testing.T) {
	pos, ok := sequencer.First(steps("sit_straight", "slouch"))
	if !ok {
		t.Fatal("expected an opening combination")
	}
	if pos.Step.Label != "sit_straight" || pos.Distance != catalog.DistanceNominal {
		t.Fatalf("unexpected opening position %s/%s", pos.Step.Label, pos.Distance)
	}
}

func TestNextSkipsCapturedAndJustFinished(t *testing.T) {
	all := steps("sit_straight", "slouch", "stand_neutral")
	done := captured(recording.CombinationKey("sit_straight", "nom"))

	pos, ok := sequencer.Next(all, done, catalog.DistanceNominal, "slouch")
	if !ok {
		t.Fatal("expected a next combination")
	}
	if pos.Step.Label != "stand_neutral" || pos.Distance != catalog.DistanceNominal {
		t.Fatalf("unexpected position %s/%s", pos.Step.Label, pos.Distance)
	}
}

func TestNextAdvancesDistanceWhenCurrentExhausted(t *testing.T) {
	all := steps("sit_straight", "slouch")
	done := captured(
		recording.CombinationKey("sit_straight", "nom"),
		recording.CombinationKey("slouch", "nom"),
	)

	pos, ok := sequencer.Next(all, done, catalog.DistanceNominal, "slouch")
	if !ok {
		t.Fatal("expected a next combination")
	}
	if pos.Distance != catalog.DistanceClose {
		t.Fatalf("expected advance to close, got %s", pos.Distance)
	}
	if pos.Step.Label != "sit_straight" {
		t.Fatalf("expected walk restart at first step, got %s", pos.Step.Label)
	}
}

func TestNextDistanceAdvanceClearsExclusion(t *testing.T) {
	// Only one step in the catalog: finishing it at nom must still offer it
	// again at close, because that is a new combination.
	all := steps("sit_straight")
	done := captured(recording.CombinationKey("sit_straight", "nom"))

	pos, ok := sequencer.Next(all, done, catalog.DistanceNominal, "sit_straight")
	if !ok {
		t.Fatal("expected a next combination")
	}
	if pos.Step.Label != "sit_straight" || pos.Distance != catalog.DistanceClose {
		t.Fatalf("unexpected position %s/%s", pos.Step.Label, pos.Distance)
	}
}

func TestNextReportsWorkflowEnd(t *testing.T) {
	all := steps("sit_straight")
	done := captured(
		recording.CombinationKey("sit_straight", "nom"),
		recording.CombinationKey("sit_straight", "close"),
		recording.CombinationKey("sit_straight", "far"),
	)

	if _, ok := sequencer.Next(all, done, catalog.DistanceFar, "sit_straight"); ok {
		t.Fatal("expected no next combination at the end of the workflow")
	}
	if !sequencer.Complete(all, done) {
		t.Fatal("expected workflow complete")
	}
}

func TestTotalCountsFullGrid(t *testing.T) {
	if got := sequencer.Total(steps("a", "b", "c")); got != 9 {
		t.Fatalf("expected 9 combinations, got %d", got)
	}
}

func TestNextWithEmptyCatalog(t *testing.T) {
	if _, ok := sequencer.Next(nil, nil, catalog.DistanceNominal, ""); ok {
		t.Fatal("expected no combination for an empty catalog")
	}
}
