package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"posturesync/internal/catalog"
	"posturesync/internal/config"
	"posturesync/internal/daemon"
	"posturesync/internal/ipc"
	"posturesync/internal/logging"
	"posturesync/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	seeded, err := catalog.New(st).Seed(ctx)
	if err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	if seeded > 0 {
		logger.Info("posture catalog seeded", logging.Int("steps", seeded))
	}

	d, err := daemon.New(cfg, st, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	socketPath := buildSocketPath(cfg)
	ipcServer, err := ipc.NewServer(ctx, socketPath, d, cancel, logger)
	if err != nil {
		log.Fatalf("start IPC server: %v", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("posturesyncd shutting down")
}

func buildSocketPath(cfg *config.Config) string {
	if cfg == nil {
		return ipc.SocketName
	}
	return filepath.Join(cfg.Paths.LogDir, ipc.SocketName)
}
