package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"posturesync/internal/services"
	"posturesync/internal/store"
)

const codeRetryAttempts = 5

// Registry owns Session and Device aggregate state. It is the exclusive
// owner of session status transitions; the coordinator drives it but never
// writes session rows directly.
type Registry struct {
	store       *store.Store
	codeLength  int
	attachLocks *keyedMutex
}

// NewRegistry constructs a registry over the shared store.
func NewRegistry(st *store.Store, joinCodeLength int) *Registry {
	if joinCodeLength <= 0 {
		joinCodeLength = 6
	}
	return &Registry{
		store:       st,
		codeLength:  joinCodeLength,
		attachLocks: newKeyedMutex(),
	}
}

const sessionColumns = "id, join_code, status, desktop_connected, mobile_connected, metadata_json, created_at, started_at, completed_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		sess       Session
		statusStr  string
		desktop    int
		mobile     int
		metadata   sql.NullString
		createdRaw string
		startedRaw sql.NullString
		doneRaw    sql.NullString
	)
	if err := scanner.Scan(
		&sess.ID,
		&sess.JoinCode,
		&statusStr,
		&desktop,
		&mobile,
		&metadata,
		&createdRaw,
		&startedRaw,
		&doneRaw,
	); err != nil {
		return nil, err
	}
	sess.Status = Status(statusStr)
	sess.DesktopConnected = desktop != 0
	sess.MobileConnected = mobile != 0
	sess.MetadataJSON = metadata.String
	if created, err := store.ParseTimeString(createdRaw); err == nil {
		sess.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := store.ParseTimeString(startedRaw.String); err == nil {
			sess.StartedAt = &started
		}
	}
	if doneRaw.Valid {
		if done, err := store.ParseTimeString(doneRaw.String); err == nil {
			sess.CompletedAt = &done
		}
	}
	return &sess, nil
}

const deviceColumns = "id, session_id, role, view, connection_id, user_agent, connected_at, disconnected_at"

func scanDevice(scanner interface{ Scan(dest ...any) error }) (*Device, error) {
	var (
		dev       Device
		roleStr   string
		viewStr   string
		connID    sql.NullString
		userAgent sql.NullString
		connRaw   sql.NullString
		disconRaw sql.NullString
	)
	if err := scanner.Scan(
		&dev.ID,
		&dev.SessionID,
		&roleStr,
		&viewStr,
		&connID,
		&userAgent,
		&connRaw,
		&disconRaw,
	); err != nil {
		return nil, err
	}
	dev.Role = Role(roleStr)
	dev.View = View(viewStr)
	if connID.Valid && connID.String != "" {
		value := connID.String
		dev.ConnectionID = &value
	}
	dev.UserAgent = userAgent.String
	if connRaw.Valid {
		if connected, err := store.ParseTimeString(connRaw.String); err == nil {
			dev.ConnectedAt = &connected
		}
	}
	if disconRaw.Valid {
		if disconnected, err := store.ParseTimeString(disconRaw.String); err == nil {
			dev.DisconnectedAt = &disconnected
		}
	}
	return &dev, nil
}

// CreateSession generates a unique join code, persists a new session in the
// initial state, and returns it. Code collisions are retried a bounded
// number of times before reporting a conflict.
func (r *Registry) CreateSession(ctx context.Context, metadataJSON string) (*Session, error) {
	for attempt := 0; attempt < codeRetryAttempts; attempt++ {
		code, err := generateJoinCode(r.codeLength)
		if err != nil {
			return nil, err
		}

		id := uuid.New().String()
		now := time.Now().UTC()
		_, err = r.store.Exec(ctx,
			`INSERT INTO sessions (id, join_code, status, desktop_connected, mobile_connected, metadata_json, created_at)
             VALUES (?, ?, ?, 0, 0, ?, ?)`,
			id,
			code,
			StatusCreated,
			store.NullableString(metadataJSON),
			store.FormatTime(now),
		)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, fmt.Errorf("insert session: %w", err)
		}
		return r.GetSession(ctx, id)
	}
	return nil, services.Wrap(services.ErrConflict, "registry", "create", "join code collisions exhausted retries", nil)
}

// GetSession fetches a session by id.
func (r *Registry) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.store.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "registry", "session", id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// GetSessionByCode fetches a session by its join code.
func (r *Registry) GetSessionByCode(ctx context.Context, code string) (*Session, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	row := r.store.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE join_code = ?`, normalized)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "registry", "session code", normalized, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get session by code: %w", err)
	}
	return sess, nil
}

// ListSessions returns sessions ordered by creation time, newest first.
func (r *Registry) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.store.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// AttachDevice binds a connection to the session's device row for the given
// role, creating the row on first join and atomically replacing the live
// connection on reconnect. The read-check-write sequence is serialized per
// (session, role) key.
func (r *Registry) AttachDevice(ctx context.Context, sessionID string, role Role, connectionID, userAgent string) (*Device, *Session, error) {
	if _, ok := ParseRole(string(role)); !ok {
		return nil, nil, services.Wrap(services.ErrValidation, "registry", "attach", fmt.Sprintf("unknown role %q", role), nil)
	}
	if strings.TrimSpace(connectionID) == "" {
		return nil, nil, services.Wrap(services.ErrValidation, "registry", "attach", "connection id required", nil)
	}

	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, nil, err
	}

	unlock := r.attachLocks.Lock(sessionID + "/" + string(role))
	defer unlock()

	now := time.Now().UTC()
	existing, err := r.deviceByRole(ctx, sessionID, role)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return nil, nil, err
	}

	var deviceID string
	if existing != nil {
		deviceID = existing.ID
		if _, err := r.store.Exec(ctx,
			`UPDATE devices SET connection_id = ?, user_agent = ?, connected_at = ?, disconnected_at = NULL WHERE id = ?`,
			connectionID,
			store.NullableString(userAgent),
			store.FormatTime(now),
			deviceID,
		); err != nil {
			return nil, nil, fmt.Errorf("reattach device: %w", err)
		}
	} else {
		deviceID = uuid.New().String()
		if _, err := r.store.Exec(ctx,
			`INSERT INTO devices (id, session_id, role, view, connection_id, user_agent, connected_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			deviceID,
			sessionID,
			string(role),
			string(ViewForRole(role)),
			connectionID,
			store.NullableString(userAgent),
			store.FormatTime(now),
		); err != nil {
			if isUniqueViolation(err) {
				// Lost a race that the keyed lock does not cover (e.g. a
				// second registry instance); fall back to reattach.
				return nil, nil, services.Wrap(services.ErrConflict, "registry", "attach", "concurrent device creation", err)
			}
			return nil, nil, fmt.Errorf("insert device: %w", err)
		}
	}

	sess, err := r.recomputeConnectionState(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	device, err := r.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, nil, err
	}
	return device, sess, nil
}

// DetachDevice clears the device's live connection and stamps disconnect
// time. Detaching an already-detached device is a no-op.
func (r *Registry) DetachDevice(ctx context.Context, deviceID string) (*Device, *Session, error) {
	device, err := r.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, nil, err
	}

	unlock := r.attachLocks.Lock(device.SessionID + "/" + string(device.Role))
	defer unlock()

	if device.Connected() {
		now := time.Now().UTC()
		if _, err := r.store.Exec(ctx,
			`UPDATE devices SET connection_id = NULL, disconnected_at = ? WHERE id = ?`,
			store.FormatTime(now),
			deviceID,
		); err != nil {
			return nil, nil, fmt.Errorf("detach device: %w", err)
		}
	}

	sess, err := r.recomputeConnectionState(ctx, device.SessionID)
	if err != nil {
		return nil, nil, err
	}

	device, err = r.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, nil, err
	}
	return device, sess, nil
}

// GetDevice fetches a device by id.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	row := r.store.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "registry", "device", id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return device, nil
}

// ListDevices returns every device row for a session in role order.
func (r *Registry) ListDevices(ctx context.Context, sessionID string) ([]*Device, error) {
	rows, err := r.store.Query(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE session_id = ? ORDER BY role`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

// AttachedDevices returns the devices currently holding a live connection.
func (r *Registry) AttachedDevices(ctx context.Context, sessionID string) ([]*Device, error) {
	devices, err := r.ListDevices(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	attached := devices[:0]
	for _, device := range devices {
		if device.Connected() {
			attached = append(attached, device)
		}
	}
	return attached, nil
}

// SetStatus transitions the session to the given status, stamping start and
// completion times on first entry into RECORDING and COMPLETED/FAILED.
func (r *Registry) SetStatus(ctx context.Context, sessionID string, status Status) (*Session, error) {
	sess, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	switch {
	case status == StatusRecording && sess.StartedAt == nil:
		_, err = r.store.Exec(ctx,
			`UPDATE sessions SET status = ?, started_at = ? WHERE id = ?`,
			status, store.FormatTime(now), sessionID)
	case status.Terminal() && sess.CompletedAt == nil:
		_, err = r.store.Exec(ctx,
			`UPDATE sessions SET status = ?, completed_at = ? WHERE id = ?`,
			status, store.FormatTime(now), sessionID)
	default:
		_, err = r.store.Exec(ctx,
			`UPDATE sessions SET status = ? WHERE id = ?`, status, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	return r.GetSession(ctx, sessionID)
}

func (r *Registry) deviceByRole(ctx context.Context, sessionID string, role Role) (*Device, error) {
	row := r.store.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE session_id = ? AND role = ?`, sessionID, string(role))
	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "registry", "device role", string(role), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get device by role: %w", err)
	}
	return device, nil
}

// recomputeConnectionState refreshes the session's connection flags and,
// while no recording is in flight, its connection-derived status.
func (r *Registry) recomputeConnectionState(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	devices, err := r.ListDevices(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	desktop, mobile := false, false
	for _, device := range devices {
		if !device.Connected() {
			continue
		}
		switch device.Role {
		case RoleDesktop:
			desktop = true
		case RoleMobile:
			mobile = true
		}
	}

	status := sess.Status
	if status.ConnectionDriven() {
		status = deriveConnectionStatus(desktop, mobile)
	}

	if _, err := r.store.Exec(ctx,
		`UPDATE sessions SET desktop_connected = ?, mobile_connected = ?, status = ? WHERE id = ?`,
		store.BoolToInt(desktop),
		store.BoolToInt(mobile),
		status,
		sessionID,
	); err != nil {
		return nil, fmt.Errorf("update connection state: %w", err)
	}

	return r.GetSession(ctx, sessionID)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed")
}
