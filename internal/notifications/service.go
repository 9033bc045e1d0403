package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mpdgrab/internal/config"
	"mpdgrab/internal/services"
	"mpdgrab/internal/textutil"
)

const userAgent = "mpdgrab/0.1.0"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyJobStarted(ctx context.Context, name, source string) error
	NotifyJobCompleted(ctx context.Context, name string, sizeBytes int64, elapsed time.Duration) error
	NotifyJobFailed(ctx context.Context, name string, err error) error
	NotifyDocumentsCompleted(ctx context.Context, fetched, failed int) error
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

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyJobStarted(ctx context.Context, name, source string) error {
	name = strings.TrimSpace(name)
	message := fmt.Sprintf("⬇️ Acquiring: %s", name)
	if host := hostOf(source); host != "" {
		message = fmt.Sprintf("%s (%s)", message, host)
	}
	data := payload{
		title:   "mpdgrab - Job Started",
		message: message,
		tags:    []string{"mpdgrab", "job", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, name string, sizeBytes int64, elapsed time.Duration) error {
	elapsed = elapsed.Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	data := payload{
		title:   "mpdgrab - Delivered",
		message: fmt.Sprintf("✅ Delivered: %s (%s in %s)", strings.TrimSpace(name), textutil.HumanReadableSize(sizeBytes), elapsed),
		tags:    []string{"mpdgrab", "job", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, name string, err error) error {
	var builder strings.Builder
	builder.WriteString("❌ Failed")
	if name = strings.TrimSpace(name); name != "" {
		builder.WriteString(": ")
		builder.WriteString(name)
	}
	builder.WriteString("\n")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown error")
	}

	kind := string(services.KindOf(err))
	if kind == "" {
		kind = string(services.KindUnknown)
	}
	data := payload{
		title:    "mpdgrab - Job Failed",
		message:  builder.String(),
		tags:     []string{"mpdgrab", "error", kind},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDocumentsCompleted(ctx context.Context, fetched, failed int) error {
	title := "mpdgrab - Documents Delivered"
	message := fmt.Sprintf("📄 %d documents delivered", fetched)
	if failed > 0 {
		title = "mpdgrab - Documents Delivered (with errors)"
		message = fmt.Sprintf("📄 %d delivered, %d failed", fetched, failed)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"mpdgrab", "pdf", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "mpdgrab - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"mpdgrab", "test"},
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

// hostOf returns the host of a source URL so notifications never carry tokens
// embedded in paths or query strings.
func hostOf(source string) string {
	source = strings.TrimSpace(source)
	if _, rest, ok := strings.Cut(source, "://"); ok {
		host, _, _ := strings.Cut(rest, "/")
		host, _, _ = strings.Cut(host, "?")
		return host
	}
	return ""
}

type noopService struct{}

func (noopService) NotifyJobStarted(context.Context, string, string) error                 { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, int64, time.Duration) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, error) error                   { return nil }
func (noopService) NotifyDocumentsCompleted(context.Context, int, int) error               { return nil }
func (noopService) TestNotification(context.Context) error                                 { return nil }
