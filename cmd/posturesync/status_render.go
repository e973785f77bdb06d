package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 14
	statusIndent     = "  "
)

func (k statusKind) tag() string {
	switch k {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (k statusKind) color() string {
	switch k {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ansiBlue
	}
}

// renderStatusLine formats one "Label:  [TAG] message" line. Only the tag
// carries color so copied terminal output stays readable.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag := "[" + kind.tag() + "]"
	if colorize {
		tag = kind.color() + tag + ansiReset
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", tag)
	if message != "" {
		line += " " + message
	}
	return line
}

// sessionStatusKind maps a session status onto a render kind: a failed
// session is an error, anything in flight or finished renders OK, and the
// connection-driven waiting states stay informational.
func sessionStatusKind(status string) statusKind {
	switch status {
	case "FAILED":
		return statusError
	case "READY", "RECORDING", "UPLOADING", "COMPLETED":
		return statusOK
	default:
		return statusInfo
	}
}

func connectionKind(connected bool) statusKind {
	if connected {
		return statusOK
	}
	return statusWarn
}

func connectionDetail(connected bool) string {
	if connected {
		return "Connected"
	}
	return "Disconnected"
}

func renderSectionHeader(title string, colorize bool) string {
	line := "== " + strings.TrimSpace(title) + " =="
	if colorize {
		line = ansiBlue + line + ansiReset
	}
	return line
}

// shouldColorize enables ANSI output on real terminals only, honoring the
// NO_COLOR convention.
func shouldColorize(writer io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
