package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// seedStep is one default catalog entry applied by Seed.
type seedStep struct {
	label            string
	instructions     string
	countdownSeconds int
	durationMillis   int
}

var defaultSteps = []seedStep{
	{"sit_straight", "Sit upright with your back against the chair and look ahead.", 5, 10000},
	{"lean_forward", "Lean your upper body forward over the desk.", 5, 10000},
	{"lean_backward", "Recline against the backrest with your shoulders dropped.", 5, 10000},
	{"slouch", "Let your spine round and your shoulders slump.", 5, 10000},
	{"head_forward", "Push your chin toward the screen while keeping your torso still.", 5, 10000},
	{"head_tilt_left", "Tilt your head toward your left shoulder.", 5, 10000},
	{"head_tilt_right", "Tilt your head toward your right shoulder.", 5, 10000},
	{"shoulders_raised", "Raise both shoulders toward your ears and hold.", 5, 10000},
	{"stand_neutral", "Stand next to the chair in a relaxed neutral pose.", 5, 10000},
}

// Seed inserts the default posture steps. Existing labels are updated in
// place, so reseeding after an edit is safe and idempotent.
func (c *Catalog) Seed(ctx context.Context) (int, error) {
	titler := cases.Title(language.English)
	applied := 0

	err := c.store.WithTx(ctx, func(tx *sql.Tx) error {
		for ordinal, step := range defaultSteps {
			display := titler.String(strings.ReplaceAll(step.label, "_", " "))
			res, err := tx.ExecContext(ctx,
				`INSERT INTO posture_steps (ordinal, label, display_name, instructions, countdown_seconds, duration_ms, active)
                 VALUES (?, ?, ?, ?, ?, ?, 1)
                 ON CONFLICT(label) DO UPDATE SET
                     ordinal = excluded.ordinal,
                     display_name = excluded.display_name,
                     instructions = excluded.instructions,
                     countdown_seconds = excluded.countdown_seconds,
                     duration_ms = excluded.duration_ms,
                     active = 1`,
				ordinal+1,
				step.label,
				display,
				step.instructions,
				step.countdownSeconds,
				step.durationMillis,
			)
			if err != nil {
				return fmt.Errorf("seed step %s: %w", step.label, err)
			}
			if rows, err := res.RowsAffected(); err == nil && rows > 0 {
				applied++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}
