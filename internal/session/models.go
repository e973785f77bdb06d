package session

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a coordinated session.
type Status string

const (
	StatusCreated          Status = "CREATED"
	StatusWaitingForMobile Status = "WAITING_FOR_MOBILE"
	StatusReady            Status = "READY"
	StatusRecording        Status = "RECORDING"
	StatusUploading        Status = "UPLOADING"
	StatusCompleted        Status = "COMPLETED"
	StatusFailed           Status = "FAILED"
)

var allStatuses = []Status{
	StatusCreated,
	StatusWaitingForMobile,
	StatusReady,
	StatusRecording,
	StatusUploading,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ConnectionDriven reports whether the status is recomputed from device
// connection flags. Recording/upload progress and terminal states are never
// downgraded by connection churn.
func (s Status) ConnectionDriven() bool {
	switch s {
	case StatusCreated, StatusWaitingForMobile, StatusReady:
		return true
	default:
		return false
	}
}

// Terminal reports whether the session has finished.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// deriveConnectionStatus maps device connection flags to the status the
// session holds while no recording is in flight.
func deriveConnectionStatus(desktopConnected, mobileConnected bool) Status {
	switch {
	case desktopConnected && mobileConnected:
		return StatusReady
	case desktopConnected:
		return StatusWaitingForMobile
	default:
		return StatusCreated
	}
}

// Role identifies which side of the pairing a device occupies.
type Role string

const (
	RoleDesktop Role = "desktop"
	RoleMobile  Role = "mobile"
)

// View is the fixed camera view assigned to a role.
type View string

const (
	ViewFront View = "front"
	ViewSide  View = "side"
)

// Roles returns the fixed role list in pairing order.
func Roles() []Role {
	return []Role{RoleDesktop, RoleMobile}
}

// ParseRole validates a wire value against the known roles.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleDesktop:
		return RoleDesktop, true
	case RoleMobile:
		return RoleMobile, true
	default:
		return "", false
	}
}

// ViewForRole returns the camera view a role records.
func ViewForRole(role Role) View {
	if role == RoleMobile {
		return ViewSide
	}
	return ViewFront
}

// Session is one coordinated pairing of a desktop and a mobile device
// collecting one participant's data.
type Session struct {
	ID               string
	JoinCode         string
	Status           Status
	DesktopConnected bool
	MobileConnected  bool
	MetadataJSON     string
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// Device is one connected client occupying one fixed role within a session.
// ConnectionID is nil while the device is disconnected; the row itself is
// never deleted so history and reconnection remain possible.
type Device struct {
	ID             string
	SessionID      string
	Role           Role
	View           View
	ConnectionID   *string
	UserAgent      string
	ConnectedAt    *time.Time
	DisconnectedAt *time.Time
}

// Connected reports whether the device currently holds a live connection.
func (d *Device) Connected() bool {
	return d != nil && d.ConnectionID != nil && *d.ConnectionID != ""
}
