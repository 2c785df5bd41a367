package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"dropcast/internal/config"
)

const userAgent = "dropcast/0.1.0"

// Service defines the notification surface exposed to the workers.
type Service interface {
	NotifyPosted(ctx context.Context, path, kind string) error
	NotifyFrozen(ctx context.Context, reason string, duration time.Duration) error
	NotifyAuthFailed(ctx context.Context, provider string, err error) error
	NotifyIngested(ctx context.Context, count int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		events:   cfg.Notifications,
	}
}

// notice is one ntfy message. Title gets the "dropcast - " prefix and tags
// always start with "dropcast".
type notice struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	events   config.Notifications
}

func (n *ntfyService) NotifyPosted(ctx context.Context, path, kind string) error {
	kind = orDefault(kind, "media")
	return n.post(ctx, n.events.Posted, notice{
		title: "Posted",
		body:  fmt.Sprintf("📤 Posted %s: %s", kind, filepath.Base(path)),
		tags:  []string{"posted", kind},
	})
}

func (n *ntfyService) NotifyFrozen(ctx context.Context, reason string, duration time.Duration) error {
	return n.post(ctx, n.events.Freeze, notice{
		title:    "Publishing Paused",
		body:     fmt.Sprintf("🧊 Publishing frozen for %s: %s", duration.Round(time.Second), orDefault(reason, "unknown reason")),
		tags:     []string{"freeze"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyAuthFailed(ctx context.Context, provider string, err error) error {
	return n.post(ctx, n.events.Errors, notice{
		title:    "Login Required",
		body:     fmt.Sprintf("🔑 %s login failed, publishing stopped: %s", provider, errText(err, "credentials rejected")),
		tags:     []string{"auth", "alert"},
		priority: "urgent",
	})
}

func (n *ntfyService) NotifyIngested(ctx context.Context, count int) error {
	noun := "files"
	if count == 1 {
		noun = "file"
	}
	return n.post(ctx, n.events.Ingest && count > 0, notice{
		title:    "Queued",
		body:     fmt.Sprintf("Queued %d new %s", count, noun),
		tags:     []string{"ingest"},
		priority: "low",
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	body := "❌ Error"
	if label := strings.TrimSpace(contextLabel); label != "" {
		body += " with " + label
	}
	return n.post(ctx, n.events.Errors, notice{
		title:    "Error",
		body:     body + ": " + errText(err, "unknown"),
		tags:     []string{"error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.post(ctx, true, notice{
		title:    "Test",
		body:     "🧪 Notification system test",
		tags:     []string{"test"},
		priority: "low",
	})
}

// post publishes msg to the topic when enabled. Any non-2xx answer is an
// error carrying the start of the response body.
func (n *ntfyService) post(ctx context.Context, enabled bool, msg notice) error {
	if !enabled || n == nil || n.client == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", "dropcast - "+msg.title)
	req.Header.Set("Tags", strings.Join(append([]string{"dropcast"}, msg.tags...), ","))
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy publish: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

func errText(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return orDefault(err.Error(), fallback)
}

type noopService struct{}

func (noopService) NotifyPosted(context.Context, string, string) error        { return nil }
func (noopService) NotifyFrozen(context.Context, string, time.Duration) error { return nil }
func (noopService) NotifyAuthFailed(context.Context, string, error) error     { return nil }
func (noopService) NotifyIngested(context.Context, int) error                 { return nil }
func (noopService) NotifyError(context.Context, error, string) error          { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
