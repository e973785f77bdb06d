package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"posturesync/internal/config"
	"posturesync/internal/daemonctl"
)

const daemonBinary = "posturesyncd"

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the posturesync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath()},
				10*time.Second,
			)
			if err != nil {
				return err
			}

			switch {
			case result.AlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case result.Launched:
				fmt.Fprintln(stdout, "Daemon started")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the posturesync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the posturesync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			_, stopErr := daemonctl.StopAndTerminate(ctx.socketPath(), 5*time.Second)
			if stopErr != nil && !errors.Is(stopErr, daemonctl.ErrDaemonNotRunning) {
				return stopErr
			}
			if stopErr == nil {
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath()},
				10*time.Second,
			)
			if err != nil {
				return err
			}
			if result.Launched || result.AlreadyRunning {
				fmt.Fprintln(stdout, "Daemon restarted")
			}
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			fmt.Fprintln(stdout, renderSectionHeader("System Status", colorize))

			client, err := ctx.dialClient()
			if err != nil {
				fmt.Fprintln(stdout, renderStatusLine("PostureSync", statusWarn, "Not running (run `posturesync start`)", colorize))
				printConfigLines(stdout, cfg, colorize)
				return nil
			}
			defer client.Close()

			status, err := client.Status()
			if err != nil {
				return fmt.Errorf("query daemon status: %w", err)
			}

			fmt.Fprintln(stdout, renderStatusLine("PostureSync", statusOK, fmt.Sprintf("Running (v%s, pid %d)", status.Version, status.PID), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Database", statusOK, status.DatabasePath, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Storage", statusOK, status.StorageProvider, colorize))
			printConfigLines(stdout, cfg, colorize)

			fmt.Fprintln(stdout)
			fmt.Fprintln(stdout, renderSectionHeader("Sessions", colorize))
			fmt.Fprintln(stdout, sessionMetricsTable(status))
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func printConfigLines(stdout io.Writer, cfg *config.Config, colorize bool) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		fmt.Fprintln(stdout, renderStatusLine("Notifications", statusOK, "Configured", colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Notifications", statusInfo, "Not configured", colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("API bind", statusInfo, cfg.Paths.APIBind, colorize))
}

func daemonExecutable() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	sibling := filepath.Join(filepath.Dir(self), daemonBinary)
	if info, statErr := os.Stat(sibling); statErr == nil && !info.IsDir() {
		return sibling, nil
	}
	path, lookErr := exec.LookPath(daemonBinary)
	if lookErr != nil {
		return "", fmt.Errorf("locate %s: %w", daemonBinary, lookErr)
	}
	return path, nil
}
