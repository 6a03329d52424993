package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

// ErrInvalidToken is returned by a Provider when the delivery token is
// definitively dead (unregistered device, revoked token). The worker
// prunes such tokens from the registration set.
var ErrInvalidToken = errors.New("notify: invalid device token")

// Provider delivers one notification to one device token.
type Provider interface {
	Push(ctx context.Context, token string, n *Job) error
}

// LogProvider writes deliveries to the log instead of a push service.
// Used in development and as the fallback when no gateway is configured.
type LogProvider struct{}

// Push logs the delivery and always succeeds.
func (LogProvider) Push(_ context.Context, token string, n *Job) error {
	log.Printf("[push] (log provider) token=%s title=%q body=%q", token, n.Title, n.Body)
	return nil
}

// HTTPProvider posts deliveries to a push gateway endpoint. A 404 or 410
// response marks the token invalid; other non-2xx responses are transient
// failures.
type HTTPProvider struct {
	URL    string
	client *http.Client
}

// NewHTTPProvider creates a provider posting to the given gateway URL.
func NewHTTPProvider(url string) *HTTPProvider {
	return &HTTPProvider{
		URL:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Push delivers the notification to the gateway.
func (p *HTTPProvider) Push(ctx context.Context, token string, n *Job) error {
	payload, err := json.Marshal(struct {
		Token     string `json:"token"`
		Type      string `json:"type"`
		Title     string `json:"title"`
		Body      string `json:"body"`
		RelatedID string `json:"related_id"`
	}{token, n.Type, n.Title, n.Body, n.RelatedID})
	if err != nil {
		return fmt.Errorf("notify: push marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: push send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrInvalidToken
	default:
		return fmt.Errorf("notify: push gateway status %d", resp.StatusCode)
	}
}
