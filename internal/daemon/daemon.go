package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"posturesync/internal/api"
	"posturesync/internal/catalog"
	"posturesync/internal/config"
	"posturesync/internal/coordinator"
	"posturesync/internal/logging"
	"posturesync/internal/notifications"
	"posturesync/internal/objectstore"
	"posturesync/internal/recording"
	"posturesync/internal/session"
	"posturesync/internal/store"
)

// Version is reported over the status surfaces.
const Version = "0.1.0"

// Daemon owns the long-lived coordinating process: the SQLite store, the
// WebSocket hub, the HTTP session API and the storage provider. It enforces
// single-instance execution through a file lock.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	registry *session.Registry
	ledger   *recording.Ledger
	catalog  *catalog.Catalog
	coord    *coordinator.Coordinator
	notifier notifications.Service
	storage  objectstore.Provider
	api      *apiServer

	lockPath  string
	lock      *flock.Flock
	startedAt time.Time

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	storage, err := objectstore.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure storage provider: %w", err)
	}

	registry := session.NewRegistry(st, cfg.Session.JoinCodeLength)
	ledger := recording.NewLedger(st, cfg.Session.RolesPerSession)
	cat := catalog.New(st)
	notifier := notifications.NewService(cfg)

	coord := coordinator.New(coordinator.Options{
		Hub:      coordinator.NewHub(logger),
		Registry: registry,
		Ledger:   ledger,
		Catalog:  cat,
		Storage:  storage,
		Notifier: notifier,
		Logger:   logger,
	})

	d := &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    st,
		registry: registry,
		ledger:   ledger,
		catalog:  cat,
		coord:    coord,
		notifier: notifier,
		storage:  storage,
		lockPath: filepath.Join(cfg.Paths.LogDir, "posturesyncd.lock"),
	}
	d.lock = flock.New(d.lockPath)

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = server
	return d, nil
}

// Start acquires the instance lock and begins serving the HTTP surface.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another posturesync daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("posturesync daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.Paths.APIBind))
	return nil
}

// Stop shuts down the HTTP surface and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("posturesync daemon stopped")
}

// Close stops the daemon and releases its store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Addr returns the HTTP listener address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Registry exposes the session registry for control surfaces.
func (d *Daemon) Registry() *session.Registry {
	return d.registry
}

// Ledger exposes the recording ledger for control surfaces.
func (d *Daemon) Ledger() *recording.Ledger {
	return d.ledger
}

// Catalog exposes the workflow catalog for control surfaces.
func (d *Daemon) Catalog() *catalog.Catalog {
	return d.catalog
}

// FailSession marks a session FAILED on an operator's behalf, resolving the
// target by id when given, otherwise by join code.
func (d *Daemon) FailSession(ctx context.Context, id, joinCode, reason string) (*session.Session, error) {
	var (
		sess *session.Session
		err  error
	)
	if id != "" {
		sess, err = d.registry.GetSession(ctx, id)
	} else {
		sess, err = d.registry.GetSessionByCode(ctx, joinCode)
	}
	if err != nil {
		return nil, err
	}
	return d.coord.FailSession(ctx, sess.ID, reason)
}

// Notifier exposes the notification service for control surfaces.
func (d *Daemon) Notifier() notifications.Service {
	return d.notifier
}

// Status assembles the daemon's runtime snapshot.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:         d.running.Load(),
		Version:         Version,
		PID:             os.Getpid(),
		DatabasePath:    d.store.Path(),
		StorageProvider: d.cfg.Storage.Provider,
		Connections:     d.coord.Hub().Connections(),
	}
	if !d.startedAt.IsZero() {
		status.StartedAt = d.startedAt.Format(time.RFC3339)
	}

	row := d.store.QueryRow(ctx, `SELECT COUNT(1) FROM sessions`)
	if err := row.Scan(&status.TotalSessions); err != nil {
		d.logger.Warn("count sessions failed", logging.Error(err))
	}
	row = d.store.QueryRow(ctx,
		`SELECT COUNT(1) FROM sessions WHERE status NOT IN (?, ?)`,
		session.StatusCompleted, session.StatusFailed)
	if err := row.Scan(&status.ActiveSessions); err != nil {
		d.logger.Warn("count active sessions failed", logging.Error(err))
	}
	return status
}
