// Package catalog reads the posture step catalog and defines the fixed
// distance variant sequence.
//
// The catalog is static ordered data: steps carry an ordinal position, a
// unique label, display/instruction text, and countdown/recording durations.
// Distance variants are a hardcoded ordered list (nom, close, far) that the
// sequencer walks after each full pass over the steps.
package catalog
