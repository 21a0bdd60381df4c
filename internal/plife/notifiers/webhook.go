package notifiers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/daniacca/particlelife/internal/plife"
)

const (
	defaultWebhookTimeout = 5 * time.Second

	// maxErrorBody caps how much of a failed response ends up in the error.
	maxErrorBody = 256

	headerWorldID = "X-Plife-World"
	headerStep    = "X-Plife-Step"
)

// WebhookNotifier delivers each stats event as a JSON POST. Requests carry
// the world ID and step in X-Plife-World and X-Plife-Step so receivers can
// route without decoding the body.
type WebhookNotifier struct {
	id      string
	url     string
	client  *http.Client
	headers http.Header
}

func NewWebhookNotifier(id, url string) *WebhookNotifier {
	return &WebhookNotifier{
		id:      id,
		url:     url,
		client:  &http.Client{Timeout: defaultWebhookTimeout},
		headers: make(http.Header),
	}
}

// SetHeader adds a static header sent with every delivery. It must be called
// before the notifier is registered.
func (wn *WebhookNotifier) SetHeader(key, value string) {
	wn.headers.Set(key, value)
}

// SetTimeout replaces the per-request timeout. Non-positive values keep the
// default.
func (wn *WebhookNotifier) SetTimeout(d time.Duration) {
	if d > 0 {
		wn.client.Timeout = d
	}
}

func (wn *WebhookNotifier) URL() string  { return wn.url }
func (wn *WebhookNotifier) ID() string   { return wn.id }
func (wn *WebhookNotifier) Type() string { return "webhook" }

func (wn *WebhookNotifier) newRequest(ctx context.Context, event plife.StatsEvent) (*http.Request, error) {
	body, err := event.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range wn.headers {
		req.Header[key] = append([]string(nil), values...)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerWorldID, string(event.WorldID))
	req.Header.Set(headerStep, strconv.FormatInt(event.Step, 10))
	return req, nil
}

// Notify posts event and fails on any non-2xx status, quoting the start of
// the response body.
func (wn *WebhookNotifier) Notify(ctx context.Context, event plife.StatsEvent) error {
	req, err := wn.newRequest(ctx, event)
	if err != nil {
		return err
	}

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", wn.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		return fmt.Errorf("webhook %s: status %d", wn.id, resp.StatusCode)
	}
	return fmt.Errorf("webhook %s: status %d: %s", wn.id, resp.StatusCode, msg)
}

// Close has nothing to release.
func (wn *WebhookNotifier) Close() error {
	return nil
}
