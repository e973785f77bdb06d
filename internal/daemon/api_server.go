package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"posturesync/internal/api"
	"posturesync/internal/catalog"
	"posturesync/internal/config"
	"posturesync/internal/logging"
	"posturesync/internal/objectstore"
	"posturesync/internal/services"
	"posturesync/internal/session"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("paths.api_bind must not be empty")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger.With(logging.String(logging.FieldComponent, "api")),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", srv.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", srv.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", srv.handleGetSession)
	mux.HandleFunc("GET /api/sessions/code/{code}", srv.handleGetSessionByCode)
	mux.HandleFunc("GET /api/sessions/{id}/recordings", srv.handleListRecordings)
	mux.HandleFunc("GET /api/recordings/{id}/download", srv.handleDownload)
	mux.HandleFunc("GET /api/catalog", srv.handleCatalog)
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /ws", d.coord.ServeWS)
	mux.HandleFunc("PUT /storage/{path...}", srv.handleStoragePut)
	mux.HandleFunc("GET /storage/{path...}", srv.handleStorageGet)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Metadata json.RawMessage `json:"metadata"`
	}
	if r.Body != nil {
		// An empty body creates a session without metadata.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	sess, err := s.daemon.registry.CreateSession(r.Context(), string(body.Metadata))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.logger.Info("session created",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String("join_code", sess.JoinCode))
	s.writeSnapshot(w, http.StatusCreated, r.Context(), sess)
}

func (s *apiServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.daemon.registry.ListSessions(r.Context(), 100)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	snapshots := make([]api.SessionSnapshot, 0, len(sessions))
	for _, sess := range sessions {
		devices, err := s.daemon.registry.ListDevices(r.Context(), sess.ID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		snapshots = append(snapshots, api.Snapshot(sess, devices))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": snapshots})
}

func (s *apiServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.daemon.registry.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSnapshot(w, http.StatusOK, r.Context(), sess)
}

func (s *apiServer) handleGetSessionByCode(w http.ResponseWriter, r *http.Request) {
	sess, err := s.daemon.registry.GetSessionByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSnapshot(w, http.StatusOK, r.Context(), sess)
}

func (s *apiServer) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := s.daemon.registry.GetSession(r.Context(), sessionID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	recordings, err := s.daemon.ledger.ListBySession(r.Context(), sessionID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	payload := make([]api.RecordingInfo, 0, len(recordings))
	for _, rec := range recordings {
		payload = append(payload, api.RecordingPayload(rec))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"recordings": payload})
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	rec, err := s.daemon.ledger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	storagePath := rec.StoragePath
	if storagePath == "" {
		storagePath = objectstore.ObjectPath(rec.SessionID, rec.StepLabel, rec.Distance, rec.Role)
	}
	cred, err := s.daemon.storage.IssueDownloadCredential(r.Context(), storagePath)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cred)
}

func (s *apiServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	steps, err := s.daemon.catalog.ActiveSteps(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	payload := make([]api.StepInfo, 0, len(steps))
	for _, step := range steps {
		payload = append(payload, *api.StepPayload(step))
	}
	distances := make([]string, 0, len(catalog.Distances()))
	for _, distance := range catalog.Distances() {
		distances = append(distances, string(distance))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"steps":     payload,
		"distances": distances,
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

// handleStoragePut receives object bodies for the local provider. The HMAC
// token minted by IssueUploadCredential is the sole admission check.
func (s *apiServer) handleStoragePut(w http.ResponseWriter, r *http.Request) {
	local, ok := s.daemon.storage.(*objectstore.Local)
	if !ok {
		s.writeError(w, http.StatusNotFound, "local storage not enabled")
		return
	}
	storagePath := r.PathValue("path")
	query := r.URL.Query()
	if err := local.VerifyToken(http.MethodPut, storagePath, query.Get("exp"), query.Get("sig")); err != nil {
		s.writeError(w, http.StatusForbidden, err.Error())
		return
	}
	written, err := local.Store(storagePath, r.Body)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"size_bytes": written})
}

func (s *apiServer) handleStorageGet(w http.ResponseWriter, r *http.Request) {
	local, ok := s.daemon.storage.(*objectstore.Local)
	if !ok {
		s.writeError(w, http.StatusNotFound, "local storage not enabled")
		return
	}
	storagePath := r.PathValue("path")
	query := r.URL.Query()
	if err := local.VerifyToken(http.MethodGet, storagePath, query.Get("exp"), query.Get("sig")); err != nil {
		s.writeError(w, http.StatusForbidden, err.Error())
		return
	}
	reader, err := local.Open(storagePath)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer reader.Close()
	w.Header().Set("Content-Type", "video/webm")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Warn("stream object failed", logging.Error(err))
	}
}

func (s *apiServer) writeSnapshot(w http.ResponseWriter, status int, ctx context.Context, sess *session.Session) {
	devices, err := s.daemon.registry.ListDevices(ctx, sess.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, status, api.Snapshot(sess, devices))
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	code := services.Classify(err)
	status := http.StatusInternalServerError
	switch code {
	case services.CodeNotFound:
		status = http.StatusNotFound
	case services.CodeConflict:
		status = http.StatusConflict
	case services.CodeInvalidState, services.CodeValidation:
		status = http.StatusBadRequest
	case services.CodeTransient:
		status = http.StatusServiceUnavailable
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response failed", logging.Error(err))
	}
}
