package recording_test

import (
	"context"
	"errors"
	"testing"

	"posturesync/internal/recording"
	"posturesync/internal/services"
	"posturesync/internal/session"
	"posturesync/internal/testsupport"
)

type ledgerFixture struct {
	ledger   *recording.Ledger
	registry *session.Registry
	sess     *session.Session
	devices  []*session.Device
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	reg := session.NewRegistry(st, cfg.Session.JoinCodeLength)
	sess := testsupport.NewSession(t, reg)

	ctx := context.Background()
	desktop, _, err := reg.AttachDevice(ctx, sess.ID, session.RoleDesktop, "conn-d", "")
	if err != nil {
		t.Fatalf("attach desktop: %v", err)
	}
	mobile, _, err := reg.AttachDevice(ctx, sess.ID, session.RoleMobile, "conn-m", "")
	if err != nil {
		t.Fatalf("attach mobile: %v", err)
	}

	return &ledgerFixture{
		ledger:   recording.NewLedger(st, cfg.Session.RolesPerSession),
		registry: reg,
		sess:     sess,
		devices:  []*session.Device{desktop, mobile},
	}
}

func TestOpenCaptureSharesStartTimestamp(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	const startMs = int64(1756400000000)
	recs, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "sit_straight", "nom", startMs, fx.devices)
	if err != nil {
		t.Fatalf("OpenCapture: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected one row per device, got %d", len(recs))
	}
	roles := map[session.Role]bool{}
	for _, rec := range recs {
		if rec.StartedAtMs != startMs {
			t.Fatalf("expected shared start %d, got %d", startMs, rec.StartedAtMs)
		}
		if rec.UploadStatus != recording.UploadPending {
			t.Fatalf("expected PENDING, got %s", rec.UploadStatus)
		}
		roles[rec.Role] = true
	}
	if !roles[session.RoleDesktop] || !roles[session.RoleMobile] {
		t.Fatalf("expected one row per role, got %v", roles)
	}
}

func TestOpenCaptureRequiresDevices(t *testing.T) {
	fx := newLedgerFixture(t)
	_, err := fx.ledger.OpenCapture(context.Background(), fx.sess.ID, "sit_straight", "nom", 1, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCloseCaptureStampsStopAndDuration(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	const startMs = int64(1756400000000)
	recs, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "sit_straight", "nom", startMs, fx.devices)
	if err != nil {
		t.Fatalf("OpenCapture: %v", err)
	}

	affected, err := fx.ledger.CloseCapture(ctx, fx.sess.ID, "sit_straight", "nom", startMs+10000)
	if err != nil {
		t.Fatalf("CloseCapture: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected both rows closed, got %d", affected)
	}

	rec, err := fx.ledger.Get(ctx, recs[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.StoppedAtMs == nil || *rec.StoppedAtMs != startMs+10000 {
		t.Fatalf("unexpected stop timestamp: %v", rec.StoppedAtMs)
	}
	if rec.DurationMs == nil || *rec.DurationMs != 10000 {
		t.Fatalf("unexpected duration: %v", rec.DurationMs)
	}

	// Closing again is a no-op, not an error.
	affected, err = fx.ledger.CloseCapture(ctx, fx.sess.ID, "sit_straight", "nom", startMs+99999)
	if err != nil {
		t.Fatalf("second CloseCapture: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected no rows re-closed, got %d", affected)
	}
}

func TestUploadLifecycle(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	recs, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "sit_straight", "nom", 1, fx.devices)
	if err != nil {
		t.Fatalf("OpenCapture: %v", err)
	}

	uploading, err := fx.ledger.MarkUploading(ctx, recs[0].ID)
	if err != nil {
		t.Fatalf("MarkUploading: %v", err)
	}
	if uploading.UploadStatus != recording.UploadUploading {
		t.Fatalf("expected UPLOADING, got %s", uploading.UploadStatus)
	}

	done, err := fx.ledger.MarkCompleted(ctx, recs[0].ID, 2048, "sessions/s/sit_straight_nom_front.webm")
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if done.UploadStatus != recording.UploadCompleted {
		t.Fatalf("expected COMPLETED, got %s", done.UploadStatus)
	}
	if done.SizeBytes == nil || *done.SizeBytes != 2048 {
		t.Fatalf("unexpected size: %v", done.SizeBytes)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}

	failed, err := fx.ledger.MarkFailed(ctx, recs[1].ID, "network reset")
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if failed.UploadStatus != recording.UploadFailed {
		t.Fatalf("expected FAILED, got %s", failed.UploadStatus)
	}
	if failed.ErrorMessage != "network reset" {
		t.Fatalf("unexpected error message: %q", failed.ErrorMessage)
	}

	if _, err := fx.ledger.MarkUploading(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown recording, got %v", err)
	}
}

func TestCombinationCapturedCountsDistinctRoles(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	recs, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "sit_straight", "nom", 1, fx.devices)
	if err != nil {
		t.Fatalf("OpenCapture: %v", err)
	}

	captured, err := fx.ledger.CombinationCaptured(ctx, fx.sess.ID, "sit_straight", "nom")
	if err != nil {
		t.Fatalf("CombinationCaptured: %v", err)
	}
	if captured {
		t.Fatal("pending clips must not count as captured")
	}

	if _, err := fx.ledger.MarkUploading(ctx, recs[0].ID); err != nil {
		t.Fatalf("MarkUploading: %v", err)
	}
	captured, err = fx.ledger.CombinationCaptured(ctx, fx.sess.ID, "sit_straight", "nom")
	if err != nil {
		t.Fatalf("CombinationCaptured: %v", err)
	}
	if captured {
		t.Fatal("one of two roles must not count as captured")
	}

	if _, err := fx.ledger.MarkCompleted(ctx, recs[1].ID, 1, "p"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	captured, err = fx.ledger.CombinationCaptured(ctx, fx.sess.ID, "sit_straight", "nom")
	if err != nil {
		t.Fatalf("CombinationCaptured: %v", err)
	}
	if !captured {
		t.Fatal("both roles counted should mark the combination captured")
	}

	combos, err := fx.ledger.CapturedCombinations(ctx, fx.sess.ID)
	if err != nil {
		t.Fatalf("CapturedCombinations: %v", err)
	}
	if _, ok := combos[recording.CombinationKey("sit_straight", "nom")]; !ok {
		t.Fatalf("expected sit_straight/nom in %v", combos)
	}
	if len(combos) != 1 {
		t.Fatalf("expected exactly one captured combination, got %d", len(combos))
	}
}

func TestPairCompleteRequiresEveryRoleCompleted(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	recs, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "sit_straight", "nom", 1, fx.devices)
	if err != nil {
		t.Fatalf("OpenCapture: %v", err)
	}

	complete, err := fx.ledger.PairComplete(ctx, fx.sess.ID, "sit_straight", "nom")
	if err != nil {
		t.Fatalf("PairComplete: %v", err)
	}
	if complete {
		t.Fatal("pending rows must not be pair-complete")
	}

	if _, err := fx.ledger.MarkCompleted(ctx, recs[0].ID, 1, "a"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	complete, err = fx.ledger.PairComplete(ctx, fx.sess.ID, "sit_straight", "nom")
	if err != nil {
		t.Fatalf("PairComplete: %v", err)
	}
	if complete {
		t.Fatal("one completed role is not a complete pair")
	}

	if _, err := fx.ledger.MarkCompleted(ctx, recs[1].ID, 1, "b"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	complete, err = fx.ledger.PairComplete(ctx, fx.sess.ID, "sit_straight", "nom")
	if err != nil {
		t.Fatalf("PairComplete: %v", err)
	}
	if !complete {
		t.Fatal("both roles completed should be pair-complete")
	}
}

func TestPairCompleteRejectsExtraRows(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	recs, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "sit_straight", "nom", 1, fx.devices)
	if err != nil {
		t.Fatalf("OpenCapture: %v", err)
	}
	for _, rec := range recs {
		if _, err := fx.ledger.MarkCompleted(ctx, rec.ID, 1, "p"); err != nil {
			t.Fatalf("MarkCompleted: %v", err)
		}
	}

	complete, err := fx.ledger.PairComplete(ctx, fx.sess.ID, "sit_straight", "nom")
	if err != nil {
		t.Fatalf("PairComplete: %v", err)
	}
	if !complete {
		t.Fatal("two completed roles should be pair-complete")
	}

	// A stray third row for the same combination breaks the one-per-role
	// shape even when it is itself completed.
	extra, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "sit_straight", "nom", 2, fx.devices[:1])
	if err != nil {
		t.Fatalf("OpenCapture extra: %v", err)
	}
	if _, err := fx.ledger.MarkCompleted(ctx, extra[0].ID, 1, "q"); err != nil {
		t.Fatalf("MarkCompleted extra: %v", err)
	}

	complete, err = fx.ledger.PairComplete(ctx, fx.sess.ID, "sit_straight", "nom")
	if err != nil {
		t.Fatalf("PairComplete: %v", err)
	}
	if complete {
		t.Fatal("more rows than roles must not be pair-complete")
	}
}

func TestLatestInSessionTracksCurrentDistance(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	if _, err := fx.ledger.LatestInSession(ctx, fx.sess.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no recordings, got %v", err)
	}

	if _, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "sit_straight", "nom", 1, fx.devices); err != nil {
		t.Fatalf("OpenCapture: %v", err)
	}
	if _, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "sit_straight", "close", 2, fx.devices); err != nil {
		t.Fatalf("OpenCapture close: %v", err)
	}

	latest, err := fx.ledger.LatestInSession(ctx, fx.sess.ID)
	if err != nil {
		t.Fatalf("LatestInSession: %v", err)
	}
	if latest.Distance != "close" {
		t.Fatalf("expected latest distance close, got %s", latest.Distance)
	}
}

func TestMarkCombinationUploadingScopedToCombination(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	if _, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "sit_straight", "nom", 1, fx.devices); err != nil {
		t.Fatalf("OpenCapture: %v", err)
	}
	if _, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "slouch", "nom", 2, fx.devices); err != nil {
		t.Fatalf("OpenCapture slouch: %v", err)
	}

	moved, err := fx.ledger.MarkCombinationUploading(ctx, fx.sess.ID, "sit_straight", "nom")
	if err != nil {
		t.Fatalf("MarkCombinationUploading: %v", err)
	}
	if moved != 2 {
		t.Fatalf("expected the combination's two rows moved, got %d", moved)
	}

	pending, err := fx.ledger.PendingCount(ctx, fx.sess.ID)
	if err != nil {
		t.Fatalf("PendingCount: %v", err)
	}
	if pending != 2 {
		t.Fatalf("expected the other combination untouched, got %d pending", pending)
	}
}

func TestMarkSessionUploadingMovesOnlyPending(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	recs, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "sit_straight", "nom", 1, fx.devices)
	if err != nil {
		t.Fatalf("OpenCapture: %v", err)
	}
	if _, err := fx.ledger.MarkCompleted(ctx, recs[0].ID, 1, "p"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	moved, err := fx.ledger.MarkSessionUploading(ctx, fx.sess.ID)
	if err != nil {
		t.Fatalf("MarkSessionUploading: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected only the pending row moved, got %d", moved)
	}

	still, err := fx.ledger.Get(ctx, recs[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if still.UploadStatus != recording.UploadCompleted {
		t.Fatalf("completed row must not regress, got %s", still.UploadStatus)
	}

	pending, err := fx.ledger.PendingCount(ctx, fx.sess.ID)
	if err != nil {
		t.Fatalf("PendingCount: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected no pending rows, got %d", pending)
	}
}

func TestDiscardCombinationClearsHistory(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	if _, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "sit_straight", "nom", 1, fx.devices); err != nil {
		t.Fatalf("OpenCapture: %v", err)
	}
	if _, err := fx.ledger.OpenCapture(ctx, fx.sess.ID, "slouch", "nom", 2, fx.devices); err != nil {
		t.Fatalf("OpenCapture slouch: %v", err)
	}

	removed, err := fx.ledger.DiscardCombination(ctx, fx.sess.ID, "sit_straight", "nom")
	if err != nil {
		t.Fatalf("DiscardCombination: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected both rows removed, got %d", removed)
	}

	recs, err := fx.ledger.ListBySession(ctx, fx.sess.ID)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected the other combination untouched, got %d rows", len(recs))
	}
	for _, rec := range recs {
		if rec.StepLabel != "slouch" {
			t.Fatalf("unexpected surviving row %s/%s", rec.StepLabel, rec.Distance)
		}
	}
}
