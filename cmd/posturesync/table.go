package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"posturesync/internal/api"
)

// tableColumn describes one rendered column. Numeric columns are
// right-aligned; long free-form values are capped with maxWidth.
type tableColumn struct {
	title    string
	numeric  bool
	maxWidth int
}

func renderTable(columns []tableColumn, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, 0, len(columns))
	for i, col := range columns {
		header[i] = col.title
		cfg := table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft}
		if col.numeric {
			cfg.Align = text.AlignRight
		}
		if col.maxWidth > 0 {
			cfg.WidthMax = col.maxWidth
		}
		configs = append(configs, cfg)
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	return tw.Render()
}

// sessionTable renders the sessions list, the join code leading since that
// is what operators type.
func sessionTable(sessions []api.SessionSnapshot) string {
	columns := []tableColumn{
		{title: "Code"},
		{title: "Status"},
		{title: "Desktop"},
		{title: "Mobile"},
		{title: "Created"},
		{title: "ID", maxWidth: 36},
	}
	rows := make([][]string, 0, len(sessions))
	for _, sess := range sessions {
		rows = append(rows, []string{
			sess.JoinCode,
			sess.Status,
			yesNo(sess.DesktopConnected),
			yesNo(sess.MobileConnected),
			sess.CreatedAt.Local().Format(time.DateTime),
			sess.ID,
		})
	}
	return renderTable(columns, rows)
}

// recordingTable renders one session's ledger rows, one clip per line.
func recordingTable(recordings []api.RecordingInfo) string {
	columns := []tableColumn{
		{title: "Step"},
		{title: "Distance"},
		{title: "Role"},
		{title: "Upload"},
		{title: "Duration", numeric: true},
		{title: "Size", numeric: true},
	}
	rows := make([][]string, 0, len(recordings))
	for _, rec := range recordings {
		rows = append(rows, []string{
			rec.StepLabel,
			rec.Distance,
			rec.Role,
			rec.UploadStatus,
			formatMillis(rec.DurationMs),
			formatBytes(rec.SizeBytes),
		})
	}
	return renderTable(columns, rows)
}

// catalogTable renders the active posture steps in workflow order.
func catalogTable(steps []api.StepInfo) string {
	columns := []tableColumn{
		{title: "#", numeric: true},
		{title: "Label"},
		{title: "Name", maxWidth: 40},
		{title: "Countdown", numeric: true},
		{title: "Duration", numeric: true},
	}
	rows := make([][]string, 0, len(steps))
	for _, step := range steps {
		rows = append(rows, []string{
			strconv.Itoa(step.Ordinal),
			step.Label,
			step.DisplayName,
			strconv.Itoa(step.CountdownSeconds) + "s",
			(time.Duration(step.DurationMillis) * time.Millisecond).String(),
		})
	}
	return renderTable(columns, rows)
}

// sessionMetricsTable renders the daemon status counters.
func sessionMetricsTable(status api.DaemonStatus) string {
	columns := []tableColumn{
		{title: "Metric"},
		{title: "Count", numeric: true},
	}
	rows := [][]string{
		{"Active", strconv.Itoa(status.ActiveSessions)},
		{"Total", strconv.Itoa(status.TotalSessions)},
		{"WebSocket connections", strconv.Itoa(status.Connections)},
	}
	return renderTable(columns, rows)
}

func formatMillis(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return (time.Duration(*ms) * time.Millisecond).Truncate(100 * time.Millisecond).String()
}

func formatBytes(size *int64) string {
	if size == nil {
		return "-"
	}
	const unit = 1024
	value := *size
	if value < unit {
		return fmt.Sprintf("%d B", value)
	}
	div, exp := int64(unit), 0
	for n := value / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(value)/float64(div), "KMGTPE"[exp])
}
