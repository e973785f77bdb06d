package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"posturesync/internal/api"
	"posturesync/internal/catalog"
	"posturesync/internal/logging"
	"posturesync/internal/notifications"
	"posturesync/internal/objectstore"
	"posturesync/internal/recording"
	"posturesync/internal/sequencer"
	"posturesync/internal/services"
	"posturesync/internal/session"
)

// Coordinator drives the session state machine in response to inbound
// client events. Handlers return outbound (event, audience) pairs and never
// talk to connections directly; Dispatch delivers them through the hub.
type Coordinator struct {
	hub      *Hub
	registry *session.Registry
	ledger   *recording.Ledger
	catalog  *catalog.Catalog
	storage  objectstore.Provider
	notifier notifications.Service
	logger   *slog.Logger
}

// Options bundle the coordinator's collaborators.
type Options struct {
	Hub      *Hub
	Registry *session.Registry
	Ledger   *recording.Ledger
	Catalog  *catalog.Catalog
	Storage  objectstore.Provider
	Notifier notifications.Service
	Logger   *slog.Logger
}

// New constructs a coordinator.
func New(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		hub:      opts.Hub,
		registry: opts.Registry,
		ledger:   opts.Ledger,
		catalog:  opts.Catalog,
		storage:  opts.Storage,
		notifier: opts.Notifier,
		logger:   logger.With(logging.String(logging.FieldComponent, "coordinator")),
	}
}

// Hub exposes the live-connection hub for the transport layer.
func (c *Coordinator) Hub() *Hub {
	return c.hub
}

// HandleMessage processes one inbound frame from a connection. Failures are
// reported to the originating connection only; a panic in a handler is
// recovered and surfaced as a fault so one bad event can never take the
// process down.
func (c *Coordinator) HandleMessage(ctx context.Context, connID string, raw []byte) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.sendError(connID, services.Wrap(services.ErrValidation, "coordinator", "decode", "malformed event envelope", err))
		return
	}

	ctx = services.WithConnID(ctx, connID)
	ctx = services.WithEvent(ctx, envelope.Type)

	outbound, err := c.dispatchEvent(ctx, connID, envelope)
	if err != nil {
		c.logger.Warn("event failed",
			logging.String(logging.FieldConnID, connID),
			logging.String(logging.FieldEvent, envelope.Type),
			logging.Error(err))
		c.sendError(connID, err)
		return
	}
	c.Dispatch(connID, outbound)
}

func (c *Coordinator) dispatchEvent(ctx context.Context, connID string, envelope Envelope) (outbound []Outbound, err error) {
	defer func() {
		if r := recover(); r != nil {
			outbound = nil
			err = fmt.Errorf("handler panic for %s: %v", envelope.Type, r)
			c.logger.Error("recovered handler panic",
				logging.String(logging.FieldEvent, envelope.Type),
				logging.Any("panic", r))
		}
	}()

	switch envelope.Type {
	case EventJoin:
		return c.handleJoin(ctx, connID, envelope.Payload)
	case EventBeginRecording:
		return c.handleBeginRecording(ctx, connID, envelope.Payload)
	case EventStopRecording:
		return c.handleStopRecording(ctx, connID, envelope.Payload)
	case EventUploadStarted:
		return c.handleUploadStarted(ctx, connID, envelope.Payload)
	case EventUploadCompleted:
		return c.handleUploadCompleted(ctx, connID, envelope.Payload)
	case EventUploadFailed:
		return c.handleUploadFailed(ctx, connID, envelope.Payload)
	case EventConfirmUpload:
		return c.handleConfirmUpload(ctx, connID, envelope.Payload)
	case EventConfirmRerecord:
		return c.handleConfirmRerecord(ctx, connID, envelope.Payload)
	case EventRequestNextStep:
		return c.handleRequestNextStep(ctx, connID, envelope.Payload)
	case EventRequestUploadURL:
		return c.handleRequestUploadURL(ctx, connID, envelope.Payload)
	case EventPreviewFrame:
		return c.handlePreviewFrame(ctx, connID, envelope.Payload)
	default:
		return nil, services.Wrap(services.ErrValidation, "coordinator", "dispatch", fmt.Sprintf("unknown event type %q", envelope.Type), nil)
	}
}

// Dispatch marshals each outbound event exactly once and routes it by
// audience relative to the originating connection.
func (c *Coordinator) Dispatch(connID string, outbound []Outbound) {
	if len(outbound) == 0 {
		return
	}
	sessionID, _, _, bound := c.hub.Lookup(connID)
	for _, out := range outbound {
		msg, err := encodeEvent(out.Type, out.Payload)
		if err != nil {
			c.logger.Error("encode outbound event",
				logging.String(logging.FieldEvent, out.Type),
				logging.Error(err))
			continue
		}
		switch out.Audience {
		case AudienceSender:
			c.hub.Send(connID, msg, out.BestEffort)
		case AudienceSession:
			if bound {
				c.hub.Broadcast(sessionID, msg, "", out.BestEffort)
			}
		case AudienceOthers:
			if bound {
				c.hub.Broadcast(sessionID, msg, connID, out.BestEffort)
			}
		}
	}
}

func encodeEvent(eventType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: body})
}

func (c *Coordinator) sendError(connID string, err error) {
	msg, encodeErr := encodeEvent(EventError, errorPayload{
		Code:    string(services.Classify(err)),
		Message: err.Error(),
	})
	if encodeErr != nil {
		return
	}
	c.hub.Send(connID, msg, false)
}

func (c *Coordinator) handleJoin(ctx context.Context, connID string, raw json.RawMessage) ([]Outbound, error) {
	var payload joinPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "join", "malformed payload", err)
	}

	role, ok := session.ParseRole(payload.Role)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "join", fmt.Sprintf("unknown role %q", payload.Role), nil)
	}

	sess, err := c.resolveSession(ctx, payload.SessionID, payload.JoinCode)
	if err != nil {
		return nil, err
	}

	device, sess, err := c.registry.AttachDevice(ctx, sess.ID, role, connID, payload.UserAgent)
	if err != nil {
		return nil, err
	}

	c.hub.Bind(connID, sess.ID, device.ID, role)

	devices, err := c.registry.ListDevices(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	snapshot := api.Snapshot(sess, devices)

	c.logger.Info("device joined",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldDeviceID, device.ID),
		logging.String(logging.FieldRole, string(role)))

	return []Outbound{
		{Audience: AudienceSender, Type: EventJoined, Payload: joinedPayload{
			DeviceID: device.ID,
			Role:     string(device.Role),
			View:     string(device.View),
			Session:  snapshot,
		}},
		{Audience: AudienceSession, Type: EventDeviceJoined, Payload: devicePresencePayload{
			DeviceID: device.ID,
			Role:     string(device.Role),
			Session:  snapshot,
		}},
	}, nil
}

// HandleDisconnect reacts to a transport-level connection drop. It is not a
// client-sent event; the transport calls it once the read loop ends.
func (c *Coordinator) HandleDisconnect(ctx context.Context, connID string) {
	sessionID, deviceID, role, bound := c.hub.Lookup(connID)
	c.hub.Unregister(connID)
	if !bound {
		return
	}

	device, sess, err := c.registry.DetachDevice(ctx, deviceID)
	if err != nil {
		c.logger.Warn("detach on disconnect failed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.String(logging.FieldDeviceID, deviceID),
			logging.Error(err))
		return
	}

	devices, err := c.registry.ListDevices(ctx, sessionID)
	if err != nil {
		c.logger.Warn("list devices on disconnect failed",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err))
		return
	}

	msg, err := encodeEvent(EventDeviceDisconnected, devicePresencePayload{
		DeviceID: device.ID,
		Role:     string(role),
		Session:  api.Snapshot(sess, devices),
	})
	if err != nil {
		return
	}
	c.hub.Broadcast(sessionID, msg, "", false)

	c.logger.Info("device disconnected",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldDeviceID, deviceID),
		logging.String(logging.FieldRole, string(role)))
}

func (c *Coordinator) handleBeginRecording(ctx context.Context, connID string, raw json.RawMessage) ([]Outbound, error) {
	sessionID, err := c.requireBinding(connID)
	if err != nil {
		return nil, err
	}
	var payload beginRecordingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "begin", "malformed payload", err)
	}

	step, err := c.catalog.StepByLabel(ctx, payload.StepLabel)
	if err != nil {
		return nil, err
	}
	distance, ok := catalog.ParseDistance(payload.Distance)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "begin", fmt.Sprintf("unknown distance %q", payload.Distance), nil)
	}

	sess, err := c.registry.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusReady {
		return nil, services.Wrap(services.ErrInvalidState, "coordinator", "begin", fmt.Sprintf("cannot start recording from %s", sess.Status), nil)
	}

	devices, err := c.registry.AttachedDevices(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	durationMs := payload.DurationMs
	if durationMs <= 0 {
		durationMs = int64(step.DurationMillis)
	}

	// One authoritative clock reading shared by every recipient.
	startedAtMs := time.Now().UnixMilli()

	recordings, err := c.ledger.OpenCapture(ctx, sessionID, step.Label, string(distance), startedAtMs, devices)
	if err != nil {
		return nil, err
	}

	firstRecording := sess.StartedAt == nil
	if _, err := c.registry.SetStatus(ctx, sessionID, session.StatusRecording); err != nil {
		return nil, err
	}
	if firstRecording {
		if err := c.notifier.NotifySessionStarted(ctx, sess.JoinCode); err != nil {
			c.logger.Warn("session started notification failed", logging.Error(err))
		}
	}

	recordingIDs := make(map[string]string, len(recordings))
	for _, rec := range recordings {
		recordingIDs[string(rec.Role)] = rec.ID
	}

	c.logger.Info("recording started",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldStep, step.Label),
		logging.String(logging.FieldDistance, string(distance)),
		logging.Int64("started_at_ms", startedAtMs))

	return []Outbound{
		{Audience: AudienceSession, Type: EventRecordingStarted, Payload: recordingStartedPayload{
			StepLabel:    step.Label,
			Distance:     string(distance),
			DurationMs:   durationMs,
			StartedAtMs:  startedAtMs,
			RecordingIDs: recordingIDs,
		}},
	}, nil
}

func (c *Coordinator) handleStopRecording(ctx context.Context, connID string, raw json.RawMessage) ([]Outbound, error) {
	sessionID, err := c.requireBinding(connID)
	if err != nil {
		return nil, err
	}
	var payload stopRecordingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "stop", "malformed payload", err)
	}

	sess, err := c.registry.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusRecording {
		return nil, services.Wrap(services.ErrInvalidState, "coordinator", "stop", fmt.Sprintf("no recording open in status %s", sess.Status), nil)
	}

	stepLabel := strings.TrimSpace(payload.StepLabel)
	distance := strings.TrimSpace(payload.Distance)
	if stepLabel == "" || distance == "" {
		latest, err := c.ledger.LatestInSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		stepLabel = latest.StepLabel
		distance = latest.Distance
	}

	stoppedAtMs := time.Now().UnixMilli()
	if _, err := c.ledger.CloseCapture(ctx, sessionID, stepLabel, distance, stoppedAtMs); err != nil {
		return nil, err
	}
	if _, err := c.registry.SetStatus(ctx, sessionID, session.StatusUploading); err != nil {
		return nil, err
	}

	return []Outbound{
		{Audience: AudienceSession, Type: EventRecordingStopped, Payload: recordingStoppedPayload{
			StepLabel:   stepLabel,
			Distance:    distance,
			StoppedAtMs: stoppedAtMs,
		}},
	}, nil
}

func (c *Coordinator) handleUploadStarted(ctx context.Context, _ string, raw json.RawMessage) ([]Outbound, error) {
	var payload uploadProgressPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "upload started", "malformed payload", err)
	}
	rec, err := c.ledger.MarkUploading(ctx, payload.RecordingID)
	if err != nil {
		return nil, err
	}

	// Per-device upload starts can drain the last pending row without an
	// operator confirm; recompute the session status when that happens.
	pending, err := c.ledger.PendingCount(ctx, rec.SessionID)
	if err != nil {
		return nil, err
	}
	if pending == 0 {
		sess, err := c.registry.GetSession(ctx, rec.SessionID)
		if err != nil {
			return nil, err
		}
		if sess.Status == session.StatusUploading {
			if _, err := c.registry.SetStatus(ctx, rec.SessionID, session.StatusReady); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func (c *Coordinator) handleUploadCompleted(ctx context.Context, _ string, raw json.RawMessage) ([]Outbound, error) {
	var payload uploadProgressPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "upload completed", "malformed payload", err)
	}

	rec, err := c.ledger.Get(ctx, payload.RecordingID)
	if err != nil {
		return nil, err
	}
	storagePath := rec.StoragePath
	if storagePath == "" {
		storagePath = objectstore.ObjectPath(rec.SessionID, rec.StepLabel, rec.Distance, rec.Role)
	}
	if _, err := c.ledger.MarkCompleted(ctx, rec.ID, payload.SizeBytes, storagePath); err != nil {
		return nil, err
	}

	var outbound []Outbound
	complete, err := c.ledger.PairComplete(ctx, rec.SessionID, rec.StepLabel, rec.Distance)
	if err != nil {
		return nil, err
	}
	if complete {
		outbound = append(outbound, Outbound{
			Audience: AudienceSession,
			Type:     EventStepRecordingUploaded,
			Payload:  stepUploadedPayload{StepLabel: rec.StepLabel, Distance: rec.Distance},
		})
	}

	finishedOut, err := c.completeSessionIfDone(ctx, rec.SessionID)
	if err != nil {
		return nil, err
	}
	return append(outbound, finishedOut...), nil
}

func (c *Coordinator) handleUploadFailed(ctx context.Context, _ string, raw json.RawMessage) ([]Outbound, error) {
	var payload uploadProgressPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "upload failed", "malformed payload", err)
	}
	rec, err := c.ledger.MarkFailed(ctx, payload.RecordingID, payload.Reason)
	if err != nil {
		return nil, err
	}
	c.logger.Warn("upload failed",
		logging.String(logging.FieldSessionID, rec.SessionID),
		logging.String(logging.FieldStep, rec.StepLabel),
		logging.String(logging.FieldDistance, rec.Distance),
		logging.String("reason", payload.Reason))
	if err := c.notifier.NotifyError(ctx, errors.New(payload.Reason), "upload"); err != nil {
		c.logger.Warn("upload failure notification failed", logging.Error(err))
	}
	return nil, nil
}

func (c *Coordinator) handleConfirmUpload(ctx context.Context, connID string, raw json.RawMessage) ([]Outbound, error) {
	sessionID, err := c.requireBinding(connID)
	if err != nil {
		return nil, err
	}
	var payload confirmUploadPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "confirm upload", "malformed payload", err)
	}

	stepLabel := strings.TrimSpace(payload.StepLabel)
	distance := strings.TrimSpace(payload.Distance)

	var moved int64
	if stepLabel != "" && distance != "" {
		moved, err = c.ledger.MarkCombinationUploading(ctx, sessionID, stepLabel, distance)
	} else {
		// Imprecise legacy path; flips every pending row in the session.
		c.logger.Warn("confirm upload without step and distance",
			logging.String(logging.FieldSessionID, sessionID))
		moved, err = c.ledger.MarkSessionUploading(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}

	outbound := []Outbound{
		{Audience: AudienceSession, Type: EventUploadingConfirmed, Payload: uploadingConfirmedPayload{
			StepLabel: stepLabel,
			Distance:  distance,
			Moved:     moved,
		}},
	}

	sess, err := c.registry.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == session.StatusUploading {
		if _, err := c.registry.SetStatus(ctx, sessionID, session.StatusReady); err != nil {
			return nil, err
		}
	}

	nextOut, err := c.nextStepOutbound(ctx, sessionID, stepLabel, distance)
	if err != nil {
		return nil, err
	}
	return append(outbound, nextOut...), nil
}

func (c *Coordinator) handleConfirmRerecord(ctx context.Context, connID string, raw json.RawMessage) ([]Outbound, error) {
	sessionID, err := c.requireBinding(connID)
	if err != nil {
		return nil, err
	}
	var payload confirmRerecordPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "confirm rerecord", "malformed payload", err)
	}

	rec, err := c.ledger.Get(ctx, payload.RecordingID)
	if err != nil {
		return nil, err
	}
	if rec.SessionID != sessionID {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "confirm rerecord", "recording belongs to another session", nil)
	}
	if _, err := c.ledger.DiscardCombination(ctx, sessionID, rec.StepLabel, rec.Distance); err != nil {
		return nil, err
	}

	sess, err := c.registry.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Status.ConnectionDriven() && !sess.Status.Terminal() {
		if _, err := c.registry.SetStatus(ctx, sessionID, session.StatusReady); err != nil {
			return nil, err
		}
	}

	return []Outbound{
		{Audience: AudienceSession, Type: EventRerecordConfirmed, Payload: rerecordConfirmedPayload{
			StepLabel: rec.StepLabel,
			Distance:  rec.Distance,
		}},
	}, nil
}

func (c *Coordinator) handleRequestNextStep(ctx context.Context, connID string, raw json.RawMessage) ([]Outbound, error) {
	sessionID, err := c.requireBinding(connID)
	if err != nil {
		return nil, err
	}
	var payload requestNextStepPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "next step", "malformed payload", err)
	}
	return c.nextStepOutbound(ctx, sessionID, strings.TrimSpace(payload.CurrentStepLabel), "")
}

func (c *Coordinator) handleRequestUploadURL(ctx context.Context, connID string, raw json.RawMessage) ([]Outbound, error) {
	if _, err := c.requireBinding(connID); err != nil {
		return nil, err
	}
	var payload requestUploadURLPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "upload url", "malformed payload", err)
	}

	rec, err := c.ledger.Get(ctx, payload.RecordingID)
	if err != nil {
		return nil, err
	}
	storagePath := objectstore.ObjectPath(rec.SessionID, rec.StepLabel, rec.Distance, rec.Role)
	contentType := payload.ContentType
	if contentType == "" {
		contentType = "video/webm"
	}
	cred, err := c.storage.IssueUploadCredential(ctx, storagePath, contentType)
	if err != nil {
		return nil, err
	}

	return []Outbound{
		{Audience: AudienceSender, Type: EventUploadURL, Payload: uploadURLPayload{
			RecordingID: rec.ID,
			Method:      cred.Method,
			URL:         cred.URL,
			StoragePath: cred.StoragePath,
			ExpiresAt:   cred.ExpiresAt.UTC().Format(time.RFC3339),
		}},
	}, nil
}

func (c *Coordinator) handlePreviewFrame(_ context.Context, connID string, raw json.RawMessage) ([]Outbound, error) {
	if _, err := c.requireBinding(connID); err != nil {
		return nil, err
	}
	// Pure relay; no state is touched and frames may be dropped.
	return []Outbound{
		{Audience: AudienceOthers, Type: EventPreviewFrame, Payload: raw, BestEffort: true},
	}, nil
}

// nextStepOutbound runs the sequencer and builds the next-step broadcast,
// appending session completion when the workflow is finished.
func (c *Coordinator) nextStepOutbound(ctx context.Context, sessionID, excludeLabel, distanceHint string) ([]Outbound, error) {
	steps, err := c.catalog.ActiveSteps(ctx)
	if err != nil {
		return nil, err
	}
	captured, err := c.ledger.CapturedCombinations(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	currentDistance := catalog.FirstDistance()
	if parsed, ok := catalog.ParseDistance(distanceHint); ok {
		currentDistance = parsed
	} else if latest, err := c.ledger.LatestInSession(ctx, sessionID); err == nil {
		if parsed, ok := catalog.ParseDistance(latest.Distance); ok {
			currentDistance = parsed
		}
	} else if !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}

	position, ok := sequencer.Next(steps, captured, currentDistance, excludeLabel)
	if !ok {
		outbound := []Outbound{
			{Audience: AudienceSession, Type: EventNextStepReady, Payload: nextStepPayload{
				Step:     nil,
				Distance: string(catalog.LastDistance()),
				Finished: true,
			}},
		}
		finishedOut, err := c.completeSessionIfDone(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return append(outbound, finishedOut...), nil
	}

	return []Outbound{
		{Audience: AudienceSession, Type: EventNextStepReady, Payload: nextStepPayload{
			Step:     api.StepPayload(position.Step),
			Distance: string(position.Distance),
		}},
	}, nil
}

// completeSessionIfDone transitions the session to COMPLETED and builds the
// completion broadcast once every combination is captured. It is safe to
// call repeatedly; an already completed session produces nothing.
func (c *Coordinator) completeSessionIfDone(ctx context.Context, sessionID string) ([]Outbound, error) {
	sess, err := c.registry.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, nil
	}

	steps, err := c.catalog.ActiveSteps(ctx)
	if err != nil {
		return nil, err
	}
	captured, err := c.ledger.CapturedCombinations(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 || !sequencer.Complete(steps, captured) {
		return nil, nil
	}

	sess, err = c.registry.SetStatus(ctx, sessionID, session.StatusCompleted)
	if err != nil {
		return nil, err
	}
	devices, err := c.registry.ListDevices(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	recordings, err := c.ledger.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.notifier.NotifySessionCompleted(ctx, sess.JoinCode, len(recordings)); err != nil {
		c.logger.Warn("session completed notification failed", logging.Error(err))
	}

	c.logger.Info("session completed",
		logging.String(logging.FieldSessionID, sessionID),
		logging.Int("clips", len(recordings)))

	return []Outbound{
		{Audience: AudienceSession, Type: EventSessionCompleted, Payload: sessionCompletedPayload{
			Session: api.Snapshot(sess, devices),
		}},
	}, nil
}

// FailSession marks a session FAILED after an unrecoverable fault, notifies
// the operator channel and broadcasts the terminal state to every connected
// device. It is the operator-driven escape hatch out of any non-terminal
// status; an already terminal session is rejected.
func (c *Coordinator) FailSession(ctx context.Context, sessionID, reason string) (*session.Session, error) {
	sess, err := c.registry.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, services.Wrap(services.ErrInvalidState, "coordinator", "fail", fmt.Sprintf("session already %s", sess.Status), nil)
	}

	sess, err = c.registry.SetStatus(ctx, sessionID, session.StatusFailed)
	if err != nil {
		return nil, err
	}
	devices, err := c.registry.ListDevices(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := c.notifier.NotifySessionFailed(ctx, sess.JoinCode, reason); err != nil {
		c.logger.Warn("session failed notification failed", logging.Error(err))
	}
	c.logger.Warn("session failed",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String("reason", reason))

	msg, err := encodeEvent(EventSessionFailed, sessionFailedPayload{
		Session: api.Snapshot(sess, devices),
		Reason:  reason,
	})
	if err == nil {
		c.hub.Broadcast(sessionID, msg, "", false)
	}
	return sess, nil
}

func (c *Coordinator) requireBinding(connID string) (string, error) {
	sessionID, _, _, ok := c.hub.Lookup(connID)
	if !ok {
		return "", services.Wrap(services.ErrInvalidState, "coordinator", "binding", "connection has not joined a session", nil)
	}
	return sessionID, nil
}

func (c *Coordinator) resolveSession(ctx context.Context, sessionID, joinCode string) (*session.Session, error) {
	switch {
	case strings.TrimSpace(sessionID) != "":
		return c.registry.GetSession(ctx, sessionID)
	case strings.TrimSpace(joinCode) != "":
		return c.registry.GetSessionByCode(ctx, joinCode)
	default:
		return nil, services.Wrap(services.ErrValidation, "coordinator", "join", "session_id or join_code required", nil)
	}
}
