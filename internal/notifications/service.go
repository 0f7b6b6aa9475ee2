// Package notifications pushes job completion events to ntfy.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const userAgent = "Shorts-Worker/1.0"

// Service is the notification surface used by the pipeline.
type Service interface {
	NotifyJobCompleted(ctx context.Context, jobID uuid.UUID, userRef string, fragments int) error
	NotifyJobFailed(ctx context.Context, jobID uuid.UUID, userRef, message string) error
}

// NewService returns an ntfy-backed service, or a noop when topic is empty.
func NewService(topic string, timeout time.Duration) Service {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return noopService{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
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

func userTags(base []string, userRef string) []string {
	if userRef = strings.TrimSpace(userRef); userRef != "" {
		return append(base, "user-"+strings.ReplaceAll(userRef, ",", "_"))
	}
	return base
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, jobID uuid.UUID, userRef string, fragments int) error {
	return n.send(ctx, payload{
		title:    "Shorts ready",
		message:  fmt.Sprintf("%d fragments for job %s", fragments, jobID),
		tags:     userTags([]string{"shorts", "completed"}, userRef),
		priority: "high",
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobID uuid.UUID, userRef, message string) error {
	return n.send(ctx, payload{
		title:   "Shorts failed",
		message: fmt.Sprintf("Job %s failed: %s", jobID, strings.TrimSpace(message)),
		tags:    userTags([]string{"shorts", "failed"}, userRef),
	})
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

func (noopService) NotifyJobCompleted(context.Context, uuid.UUID, string, int) error { return nil }
func (noopService) NotifyJobFailed(context.Context, uuid.UUID, string, string) error { return nil }
