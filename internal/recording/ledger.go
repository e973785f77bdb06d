package recording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"posturesync/internal/services"
	"posturesync/internal/session"
	"posturesync/internal/store"
)

// Ledger owns recording rows. It never derives workflow decisions itself;
// the coordinator asks it progress questions and acts on the answers.
type Ledger struct {
	store           *store.Store
	rolesPerSession int
}

// NewLedger constructs a ledger over the shared store. rolesPerSession is
// the number of distinct device roles whose clips make a combination count
// as captured.
func NewLedger(st *store.Store, rolesPerSession int) *Ledger {
	if rolesPerSession <= 0 {
		rolesPerSession = 2
	}
	return &Ledger{store: st, rolesPerSession: rolesPerSession}
}

const recordingColumns = "id, session_id, device_id, role, step_label, distance, started_at_ms, stopped_at_ms, duration_ms, upload_status, size_bytes, storage_path, error_message, created_at, completed_at"

func scanRecording(scanner interface{ Scan(dest ...any) error }) (*Recording, error) {
	var (
		rec        Recording
		roleStr    string
		statusStr  string
		stopped    sql.NullInt64
		duration   sql.NullInt64
		size       sql.NullInt64
		path       sql.NullString
		errMsg     sql.NullString
		createdRaw string
		doneRaw    sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.DeviceID,
		&roleStr,
		&rec.StepLabel,
		&rec.Distance,
		&rec.StartedAtMs,
		&stopped,
		&duration,
		&statusStr,
		&size,
		&path,
		&errMsg,
		&createdRaw,
		&doneRaw,
	); err != nil {
		return nil, err
	}
	rec.Role = session.Role(roleStr)
	rec.UploadStatus = UploadStatus(statusStr)
	if stopped.Valid {
		value := stopped.Int64
		rec.StoppedAtMs = &value
	}
	if duration.Valid {
		value := duration.Int64
		rec.DurationMs = &value
	}
	if size.Valid {
		value := size.Int64
		rec.SizeBytes = &value
	}
	rec.StoragePath = path.String
	rec.ErrorMessage = errMsg.String
	if created, err := store.ParseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if doneRaw.Valid {
		if done, err := store.ParseTimeString(doneRaw.String); err == nil {
			rec.CompletedAt = &done
		}
	}
	return &rec, nil
}

// OpenCapture inserts one pending recording row per attached device for the
// given combination, all sharing the same server-issued start timestamp. The
// rows land in a single transaction so a capture is never half-recorded.
func (l *Ledger) OpenCapture(ctx context.Context, sessionID, stepLabel, distance string, startedAtMs int64, devices []*session.Device) ([]*Recording, error) {
	if len(devices) == 0 {
		return nil, services.Wrap(services.ErrValidation, "ledger", "open", "no devices attached", nil)
	}

	ids := make([]string, 0, len(devices))
	createdAt := store.FormatTime(time.Now().UTC())
	err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, device := range devices {
			id := uuid.New().String()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO recordings (id, session_id, device_id, role, step_label, distance, started_at_ms, upload_status, created_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id,
				sessionID,
				device.ID,
				string(device.Role),
				stepLabel,
				distance,
				startedAtMs,
				UploadPending,
				createdAt,
			); err != nil {
				return fmt.Errorf("insert recording for role %s: %w", device.Role, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordings := make([]*Recording, 0, len(ids))
	for _, id := range ids {
		rec, err := l.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}
	return recordings, nil
}

// CloseCapture stamps the shared stop timestamp and derived duration on
// every open row of the combination.
func (l *Ledger) CloseCapture(ctx context.Context, sessionID, stepLabel, distance string, stoppedAtMs int64) (int64, error) {
	result, err := l.store.Exec(ctx,
		`UPDATE recordings
            SET stopped_at_ms = ?, duration_ms = ? - started_at_ms
          WHERE session_id = ? AND step_label = ? AND distance = ? AND stopped_at_ms IS NULL`,
		stoppedAtMs, stoppedAtMs, sessionID, stepLabel, distance)
	if err != nil {
		return 0, fmt.Errorf("close capture: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("close capture rows: %w", err)
	}
	return affected, nil
}

// Get fetches a recording by id.
func (l *Ledger) Get(ctx context.Context, id string) (*Recording, error) {
	row := l.store.QueryRow(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "ledger", "recording", id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// Latest returns the newest recording row for the device role within the
// given combination.
func (l *Ledger) Latest(ctx context.Context, sessionID string, role session.Role, stepLabel, distance string) (*Recording, error) {
	row := l.store.QueryRow(ctx,
		`SELECT `+recordingColumns+` FROM recordings
          WHERE session_id = ? AND role = ? AND step_label = ? AND distance = ?
          ORDER BY created_at DESC LIMIT 1`,
		sessionID, string(role), stepLabel, distance)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "ledger", "latest recording", stepLabel+"/"+distance, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("latest recording: %w", err)
	}
	return rec, nil
}

// LatestInSession returns the newest recording row across the whole
// session. Its distance tells callers where the workflow currently stands.
func (l *Ledger) LatestInSession(ctx context.Context, sessionID string) (*Recording, error) {
	row := l.store.QueryRow(ctx,
		`SELECT `+recordingColumns+` FROM recordings
          WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, sessionID)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "ledger", "latest recording", sessionID, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("latest in session: %w", err)
	}
	return rec, nil
}

// MarkUploading transitions a pending recording into UPLOADING.
func (l *Ledger) MarkUploading(ctx context.Context, id string) (*Recording, error) {
	return l.transition(ctx, id, UploadUploading,
		`UPDATE recordings SET upload_status = ? WHERE id = ?`,
		UploadUploading, id)
}

// MarkCompleted finalizes a recording's upload with its stored size and path.
func (l *Ledger) MarkCompleted(ctx context.Context, id string, sizeBytes int64, storagePath string) (*Recording, error) {
	return l.transition(ctx, id, UploadCompleted,
		`UPDATE recordings
            SET upload_status = ?, size_bytes = ?, storage_path = ?, error_message = NULL, completed_at = ?
          WHERE id = ?`,
		UploadCompleted, sizeBytes, store.NullableString(storagePath), store.FormatTime(time.Now().UTC()), id)
}

// MarkFailed records an upload failure and its reason.
func (l *Ledger) MarkFailed(ctx context.Context, id, reason string) (*Recording, error) {
	return l.transition(ctx, id, UploadFailed,
		`UPDATE recordings SET upload_status = ?, error_message = ? WHERE id = ?`,
		UploadFailed, store.NullableString(reason), id)
}

func (l *Ledger) transition(ctx context.Context, id string, status UploadStatus, query string, args ...any) (*Recording, error) {
	result, err := l.store.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mark %s: %w", status, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mark %s rows: %w", status, err)
	}
	if affected == 0 {
		return nil, services.Wrap(services.ErrNotFound, "ledger", "recording", id, nil)
	}
	return l.Get(ctx, id)
}

// MarkCombinationUploading flips the combination's pending recordings to
// UPLOADING and returns how many rows moved.
func (l *Ledger) MarkCombinationUploading(ctx context.Context, sessionID, stepLabel, distance string) (int64, error) {
	result, err := l.store.Exec(ctx,
		`UPDATE recordings SET upload_status = ?
          WHERE session_id = ? AND step_label = ? AND distance = ? AND upload_status = ?`,
		UploadUploading, sessionID, stepLabel, distance, UploadPending)
	if err != nil {
		return 0, fmt.Errorf("mark combination uploading: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark combination uploading rows: %w", err)
	}
	return affected, nil
}

// MarkSessionUploading flips every pending recording in the session to
// UPLOADING and returns how many rows moved. It backs the coarse
// whole-session confirmation path.
func (l *Ledger) MarkSessionUploading(ctx context.Context, sessionID string) (int64, error) {
	result, err := l.store.Exec(ctx,
		`UPDATE recordings SET upload_status = ? WHERE session_id = ? AND upload_status = ?`,
		UploadUploading, sessionID, UploadPending)
	if err != nil {
		return 0, fmt.Errorf("mark session uploading: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark session uploading rows: %w", err)
	}
	return affected, nil
}

// DiscardCombination deletes every recording row for the combination so a
// re-record starts from a clean slate.
func (l *Ledger) DiscardCombination(ctx context.Context, sessionID, stepLabel, distance string) (int64, error) {
	result, err := l.store.Exec(ctx,
		`DELETE FROM recordings WHERE session_id = ? AND step_label = ? AND distance = ?`,
		sessionID, stepLabel, distance)
	if err != nil {
		return 0, fmt.Errorf("discard combination: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("discard combination rows: %w", err)
	}
	return affected, nil
}

// PairComplete reports whether the combination holds one fully uploaded
// clip per expected role and nothing else.
func (l *Ledger) PairComplete(ctx context.Context, sessionID, stepLabel, distance string) (bool, error) {
	var total, completed, roles int
	row := l.store.QueryRow(ctx,
		`SELECT COUNT(1),
                COUNT(CASE WHEN upload_status = ? THEN 1 END),
                COUNT(DISTINCT CASE WHEN upload_status = ? THEN role END)
           FROM recordings
          WHERE session_id = ? AND step_label = ? AND distance = ?`,
		UploadCompleted, UploadCompleted, sessionID, stepLabel, distance)
	if err := row.Scan(&total, &completed, &roles); err != nil {
		return false, fmt.Errorf("pair complete: %w", err)
	}
	// Exactly one completed row per expected role; stray extra rows for the
	// combination disqualify it.
	return total == l.rolesPerSession && completed == total && roles == l.rolesPerSession, nil
}

// CombinationCaptured reports whether every expected role has a counted
// clip for the combination.
func (l *Ledger) CombinationCaptured(ctx context.Context, sessionID, stepLabel, distance string) (bool, error) {
	var roles int
	row := l.store.QueryRow(ctx,
		`SELECT COUNT(DISTINCT role) FROM recordings
          WHERE session_id = ? AND step_label = ? AND distance = ?
            AND upload_status IN (?, ?)`,
		sessionID, stepLabel, distance, UploadUploading, UploadCompleted)
	if err := row.Scan(&roles); err != nil {
		return false, fmt.Errorf("combination captured: %w", err)
	}
	return roles >= l.rolesPerSession, nil
}

// CapturedCombinations returns the set of (step, distance) combinations for
// which every expected role has a counted clip. Keys use the form
// "step/distance".
func (l *Ledger) CapturedCombinations(ctx context.Context, sessionID string) (map[string]struct{}, error) {
	rows, err := l.store.Query(ctx,
		`SELECT step_label, distance FROM recordings
          WHERE session_id = ? AND upload_status IN (?, ?)
          GROUP BY step_label, distance
         HAVING COUNT(DISTINCT role) >= ?`,
		sessionID, UploadUploading, UploadCompleted, l.rolesPerSession)
	if err != nil {
		return nil, fmt.Errorf("captured combinations: %w", err)
	}
	defer rows.Close()

	captured := make(map[string]struct{})
	for rows.Next() {
		var stepLabel, distance string
		if err := rows.Scan(&stepLabel, &distance); err != nil {
			return nil, fmt.Errorf("scan combination: %w", err)
		}
		captured[CombinationKey(stepLabel, distance)] = struct{}{}
	}
	return captured, rows.Err()
}

// CombinationKey builds the map key CapturedCombinations uses.
func CombinationKey(stepLabel, distance string) string {
	return stepLabel + "/" + distance
}

// ListBySession returns every recording row for a session, oldest first.
func (l *Ledger) ListBySession(ctx context.Context, sessionID string) ([]*Recording, error) {
	rows, err := l.store.Query(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE session_id = ? ORDER BY created_at, role`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var recordings []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		recordings = append(recordings, rec)
	}
	return recordings, rows.Err()
}

// PendingCount returns how many recordings in the session have not started
// uploading yet.
func (l *Ledger) PendingCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	row := l.store.QueryRow(ctx,
		`SELECT COUNT(1) FROM recordings WHERE session_id = ? AND upload_status = ?`,
		sessionID, UploadPending)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return count, nil
}
