package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"posturesync/internal/api"
	"posturesync/internal/daemon"
	"posturesync/internal/logging"
	"posturesync/internal/session"
)

// ServiceName is the JSON-RPC service prefix on the control socket.
const ServiceName = "PostureSync"

// SocketName is the control socket filename under the log directory.
const SocketName = "posturesyncd.sock"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. shutdown is
// invoked when a client requests daemon stop.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, shutdown func(), logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "ipc"))

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, shutdown: shutdown, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon   *daemon.Daemon
	shutdown func()
	logger   *slog.Logger
	ctx      context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested via ipc")
	resp.Stopped = true
	if s.shutdown != nil {
		// Deferred so the RPC response reaches the client first.
		go s.shutdown()
	}
	return nil
}

func (s *service) SessionList(req SessionListRequest, resp *SessionListResponse) error {
	sessions, err := s.daemon.Registry().ListSessions(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Sessions = make([]api.SessionSnapshot, 0, len(sessions))
	for _, sess := range sessions {
		devices, err := s.daemon.Registry().ListDevices(s.ctx, sess.ID)
		if err != nil {
			return err
		}
		resp.Sessions = append(resp.Sessions, api.Snapshot(sess, devices))
	}
	return nil
}

func (s *service) SessionDescribe(req SessionDescribeRequest, resp *SessionDescribeResponse) error {
	registry := s.daemon.Registry()

	var (
		sess *session.Session
		err  error
	)
	if req.ID != "" {
		sess, err = registry.GetSession(s.ctx, req.ID)
	} else {
		sess, err = registry.GetSessionByCode(s.ctx, req.JoinCode)
	}
	if err != nil {
		return err
	}

	devices, err := registry.ListDevices(s.ctx, sess.ID)
	if err != nil {
		return err
	}
	resp.Session = api.Snapshot(sess, devices)

	recordings, err := s.daemon.Ledger().ListBySession(s.ctx, sess.ID)
	if err != nil {
		return err
	}
	resp.Recordings = make([]api.RecordingInfo, 0, len(recordings))
	for _, rec := range recordings {
		resp.Recordings = append(resp.Recordings, api.RecordingPayload(rec))
	}
	return nil
}

func (s *service) SessionFail(req SessionFailRequest, resp *SessionFailResponse) error {
	sess, err := s.daemon.FailSession(s.ctx, req.ID, req.JoinCode, req.Reason)
	if err != nil {
		return err
	}
	devices, err := s.daemon.Registry().ListDevices(s.ctx, sess.ID)
	if err != nil {
		return err
	}
	resp.Session = api.Snapshot(sess, devices)
	return nil
}

func (s *service) CatalogList(_ CatalogListRequest, resp *CatalogListResponse) error {
	steps, err := s.daemon.Catalog().ActiveSteps(s.ctx)
	if err != nil {
		return err
	}
	resp.Steps = make([]api.StepInfo, 0, len(steps))
	for _, step := range steps {
		resp.Steps = append(resp.Steps, *api.StepPayload(step))
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.Notifier().TestNotification(s.ctx); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	resp.Message = "test notification sent"
	return nil
}
