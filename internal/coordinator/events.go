package coordinator

import (
	"encoding/json"

	"posturesync/internal/api"
)

// Inbound event types (client to server).
const (
	EventJoin             = "join"
	EventBeginRecording   = "begin_recording"
	EventStopRecording    = "stop_recording"
	EventUploadStarted    = "upload_started"
	EventUploadCompleted  = "upload_completed"
	EventUploadFailed     = "upload_failed"
	EventConfirmUpload    = "confirm_upload"
	EventConfirmRerecord  = "confirm_rerecord"
	EventRequestNextStep  = "request_next_step"
	EventRequestUploadURL = "request_upload_url"
	EventPreviewFrame     = "preview_frame"
)

// Outbound event types (server to client).
const (
	EventJoined                = "joined"
	EventDeviceJoined          = "device_joined"
	EventDeviceDisconnected    = "device_disconnected"
	EventRecordingStarted      = "recording_started"
	EventRecordingStopped      = "recording_stopped"
	EventUploadURL             = "upload_url"
	EventStepRecordingUploaded = "step_recording_uploaded"
	EventUploadingConfirmed    = "uploading_confirmed"
	EventNextStepReady         = "next_step_ready"
	EventRerecordConfirmed     = "rerecord_confirmed"
	EventSessionCompleted      = "session_completed"
	EventSessionFailed         = "session_failed"
	EventError                 = "error"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Audience selects who receives an outbound event.
type Audience int

const (
	// AudienceSender delivers to the originating connection only.
	AudienceSender Audience = iota
	// AudienceSession delivers to every subscriber of the session room.
	AudienceSession
	// AudienceOthers delivers to the session room minus the sender.
	AudienceOthers
)

// Outbound is one (event, audience) pair produced by a handler. The
// dispatcher marshals the payload exactly once, so every recipient of a
// broadcast sees byte-identical content.
type Outbound struct {
	Audience   Audience
	Type       string
	Payload    any
	BestEffort bool
}

// Inbound payloads.

type joinPayload struct {
	SessionID string `json:"session_id"`
	JoinCode  string `json:"join_code"`
	Role      string `json:"role"`
	UserAgent string `json:"user_agent"`
}

type beginRecordingPayload struct {
	StepLabel  string `json:"step_label"`
	Distance   string `json:"distance"`
	DurationMs int64  `json:"duration_ms"`
}

type stopRecordingPayload struct {
	StepLabel string `json:"step_label"`
	Distance  string `json:"distance"`
}

type uploadProgressPayload struct {
	RecordingID string `json:"recording_id"`
	SizeBytes   int64  `json:"size_bytes"`
	Reason      string `json:"reason"`
}

type confirmUploadPayload struct {
	StepLabel string `json:"step_label"`
	Distance  string `json:"distance"`
}

type confirmRerecordPayload struct {
	RecordingID string `json:"recording_id"`
}

type requestNextStepPayload struct {
	CurrentStepLabel string `json:"current_step_label"`
}

type requestUploadURLPayload struct {
	RecordingID string `json:"recording_id"`
	ContentType string `json:"content_type"`
}

// Outbound payloads.

type joinedPayload struct {
	DeviceID string              `json:"device_id"`
	Role     string              `json:"role"`
	View     string              `json:"view"`
	Session  api.SessionSnapshot `json:"session"`
}

type devicePresencePayload struct {
	DeviceID string              `json:"device_id"`
	Role     string              `json:"role"`
	Session  api.SessionSnapshot `json:"session"`
}

type recordingStartedPayload struct {
	StepLabel    string            `json:"step_label"`
	Distance     string            `json:"distance"`
	DurationMs   int64             `json:"duration_ms"`
	StartedAtMs  int64             `json:"started_at_ms"`
	RecordingIDs map[string]string `json:"recording_ids"`
}

type recordingStoppedPayload struct {
	StepLabel   string `json:"step_label"`
	Distance    string `json:"distance"`
	StoppedAtMs int64  `json:"stopped_at_ms"`
}

type uploadURLPayload struct {
	RecordingID string `json:"recording_id"`
	Method      string `json:"method"`
	URL         string `json:"url"`
	StoragePath string `json:"storage_path"`
	ExpiresAt   string `json:"expires_at"`
}

type stepUploadedPayload struct {
	StepLabel string `json:"step_label"`
	Distance  string `json:"distance"`
}

type uploadingConfirmedPayload struct {
	StepLabel string `json:"step_label,omitempty"`
	Distance  string `json:"distance,omitempty"`
	Moved     int64  `json:"moved"`
}

type nextStepPayload struct {
	Step     *api.StepInfo `json:"step"`
	Distance string        `json:"distance"`
	Finished bool          `json:"finished"`
}

type rerecordConfirmedPayload struct {
	StepLabel string `json:"step_label"`
	Distance  string `json:"distance"`
}

type sessionCompletedPayload struct {
	Session api.SessionSnapshot `json:"session"`
}

type sessionFailedPayload struct {
	Session api.SessionSnapshot `json:"session"`
	Reason  string              `json:"reason"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
