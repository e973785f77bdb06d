package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"posturesync/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for _, table := range []string{"sessions", "devices", "posture_steps", "recordings"} {
		var count int
		row := st.QueryRow(ctx, "SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := row.Scan(&count); err != nil {
			t.Fatalf("scan table check: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, join_code, status, created_at) VALUES (?, ?, ?, ?)`,
			"tx-test", "ZZZZ99", "CREATED", "2026-01-01T00:00:00Z"); err != nil {
			t.Fatalf("insert inside tx: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error returned, got %v", err)
	}

	var count int
	if err := st.QueryRow(ctx, "SELECT COUNT(1) FROM sessions WHERE id = ?", "tx-test").Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 0 {
		t.Fatal("expected insert rolled back")
	}
}

func TestOpenTwiceSameSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	st2 := testsupport.MustOpenStore(t, cfg)
	if st2.Path() == "" {
		t.Fatal("expected database path")
	}
}
