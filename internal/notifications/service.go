package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"posturesync/internal/config"
)

const userAgent = "PostureSync-Go/0.1.0"

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifySessionStarted(ctx context.Context, joinCode string) error
	NotifySessionCompleted(ctx context.Context, joinCode string, clips int) error
	NotifySessionFailed(ctx context.Context, joinCode, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:         topic,
		client:           &http.Client{Timeout: timeout},
		sessionStarted:   cfg.Notifications.SessionStarted,
		sessionCompleted: cfg.Notifications.SessionCompleted,
		errors:           cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint         string
	client           *http.Client
	sessionStarted   bool
	sessionCompleted bool
	errors           bool
}

func (n *ntfyService) NotifySessionStarted(ctx context.Context, joinCode string) error {
	if !n.sessionStarted {
		return nil
	}
	data := payload{
		title:   "PostureSync - Session Started",
		message: fmt.Sprintf("Recording started for session %s", strings.TrimSpace(joinCode)),
		tags:    []string{"posturesync", "session", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySessionCompleted(ctx context.Context, joinCode string, clips int) error {
	if !n.sessionCompleted {
		return nil
	}
	data := payload{
		title:    "PostureSync - Session Complete",
		message:  fmt.Sprintf("Session %s finished with %d clips", strings.TrimSpace(joinCode), clips),
		tags:     []string{"posturesync", "session", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySessionFailed(ctx context.Context, joinCode, reason string) error {
	if !n.errors {
		return nil
	}
	message := fmt.Sprintf("Session %s failed", strings.TrimSpace(joinCode))
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s: %s", message, reason)
	}
	data := payload{
		title:    "PostureSync - Session Failed",
		message:  message,
		tags:     []string{"posturesync", "session", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "PostureSync - Error",
		message:  builder.String(),
		tags:     []string{"posturesync", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "PostureSync - Test",
		message:  "Notification system test",
		tags:     []string{"posturesync", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySessionStarted(context.Context, string) error        { return nil }
func (noopService) NotifySessionCompleted(context.Context, string, int) error { return nil }
func (noopService) NotifySessionFailed(context.Context, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error          { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
