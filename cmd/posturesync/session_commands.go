package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"posturesync/internal/ipc"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recording sessions",
	}

	var listLimit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				sessions, err := client.SessionList(listLimit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(stdout, "No sessions")
					return nil
				}
				fmt.Fprintln(stdout, sessionTable(sessions))
				return nil
			})
		},
	}
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of sessions to list")

	showCmd := &cobra.Command{
		Use:   "show <id-or-code>",
		Short: "Show one session and its recordings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := describeSession(client, args[0])
				if err != nil {
					return err
				}
				printSessionDetail(cmd, resp)
				return nil
			})
		},
	}

	var failReason string
	failCmd := &cobra.Command{
		Use:   "fail <id-or-code>",
		Short: "Mark a session failed after an unrecoverable fault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				id, joinCode := splitSessionArg(args[0])
				resp, err := client.SessionFail(id, joinCode, failReason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s marked %s\n", resp.Session.JoinCode, resp.Session.Status)
				return nil
			})
		},
	}
	failCmd.Flags().StringVar(&failReason, "reason", "", "Why the session failed")

	sessionsCmd.AddCommand(listCmd)
	sessionsCmd.AddCommand(showCmd)
	sessionsCmd.AddCommand(failCmd)
	return sessionsCmd
}

// splitSessionArg treats short arguments as join codes and longer ones as
// session IDs. Join codes are fixed-length and never collide with UUIDs.
func splitSessionArg(arg string) (id, joinCode string) {
	trimmed := strings.TrimSpace(arg)
	if len(trimmed) <= 8 {
		return "", trimmed
	}
	return trimmed, ""
}

func describeSession(client *ipc.Client, arg string) (*ipc.SessionDescribeResponse, error) {
	id, joinCode := splitSessionArg(arg)
	return client.SessionDescribe(id, joinCode)
}

func printSessionDetail(cmd *cobra.Command, resp *ipc.SessionDescribeResponse) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)
	sess := resp.Session

	fmt.Fprintln(stdout, renderSectionHeader("Session "+sess.JoinCode, colorize))
	fmt.Fprintln(stdout, renderStatusLine("ID", statusInfo, sess.ID, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Status", sessionStatusKind(sess.Status), sess.Status, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Desktop", connectionKind(sess.DesktopConnected), connectionDetail(sess.DesktopConnected), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Mobile", connectionKind(sess.MobileConnected), connectionDetail(sess.MobileConnected), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Created", statusInfo, sess.CreatedAt.Local().Format(time.DateTime), colorize))
	if sess.CompletedAt != nil {
		kind := statusOK
		if sess.Status == "FAILED" {
			kind = statusError
		}
		fmt.Fprintln(stdout, renderStatusLine("Ended", kind, sess.CompletedAt.Local().Format(time.DateTime), colorize))
	}

	if len(resp.Recordings) == 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "No recordings yet")
		return
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, renderSectionHeader("Recordings", colorize))
	fmt.Fprintln(stdout, recordingTable(resp.Recordings))
}
