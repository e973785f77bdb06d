package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"posturesync/internal/services"
	"posturesync/internal/store"
)

// Catalog reads the posture step catalog. The catalog is admin-seeded and
// immutable during a session's lifetime; the coordinator only reads it.
type Catalog struct {
	store *store.Store
}

// New wraps the shared store with catalog accessors.
func New(st *store.Store) *Catalog {
	return &Catalog{store: st}
}

const stepColumns = "id, ordinal, label, display_name, instructions, countdown_seconds, duration_ms, active"

func scanStep(scanner interface{ Scan(dest ...any) error }) (*Step, error) {
	var (
		step   Step
		active int
	)
	if err := scanner.Scan(
		&step.ID,
		&step.Ordinal,
		&step.Label,
		&step.DisplayName,
		&step.Instructions,
		&step.CountdownSeconds,
		&step.DurationMillis,
		&active,
	); err != nil {
		return nil, err
	}
	step.Active = active != 0
	return &step, nil
}

// ActiveSteps returns the active catalog steps in ordinal order. Ordinal
// order is the sole ordering key for sequencing.
func (c *Catalog) ActiveSteps(ctx context.Context) ([]*Step, error) {
	rows, err := c.store.Query(ctx,
		`SELECT `+stepColumns+` FROM posture_steps WHERE active = 1 ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("query active steps: %w", err)
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// StepByLabel fetches one catalog step.
func (c *Catalog) StepByLabel(ctx context.Context, label string) (*Step, error) {
	row := c.store.QueryRow(ctx,
		`SELECT `+stepColumns+` FROM posture_steps WHERE label = ?`, label)
	step, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "step", label, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get step: %w", err)
	}
	return step, nil
}

// Count returns the number of active catalog steps.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.store.QueryRow(ctx,
		"SELECT COUNT(1) FROM posture_steps WHERE active = 1").Scan(&count); err != nil {
		return 0, fmt.Errorf("count steps: %w", err)
	}
	return count, nil
}
