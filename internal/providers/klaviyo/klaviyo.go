package klaviyo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the Klaviyo JSON:API: profile imports and event triggers.
// Both calls are best-effort side channels; callers log failures and move on.

const (
	defaultBaseURL = "https://a.klaviyo.com"
	apiRevision    = "2024-10-15"
)

const providerTimeout = 10 * time.Second

type Config struct {
	APIKey string

	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: providerTimeout}
	}
	return &Client{cfg: cfg, http: hc}
}

// UpdateProfileOutcome records the latest recovery-call outcome on the
// customer's profile.
func (c *Client) UpdateProfileOutcome(ctx context.Context, email, outcome string, calledAt time.Time) error {
	payload := map[string]any{
		"data": map[string]any{
			"type": "profile",
			"attributes": map[string]any{
				"email": email,
				"properties": map[string]any{
					"last_recovery_call_outcome": outcome,
					"last_recovery_call_date":    calledAt.UTC().Format(time.RFC3339),
				},
			},
		},
	}
	return c.post(ctx, "/api/profile-import/", payload)
}

// TriggerEvent fires a named metric event against the customer's profile.
func (c *Client) TriggerEvent(ctx context.Context, email, eventName string, properties map[string]any) error {
	if properties == nil {
		properties = map[string]any{}
	}
	payload := map[string]any{
		"data": map[string]any{
			"type": "event",
			"attributes": map[string]any{
				"metric": map[string]any{
					"data": map[string]any{
						"type":       "metric",
						"attributes": map[string]any{"name": eventName},
					},
				},
				"profile": map[string]any{
					"data": map[string]any{
						"type":       "profile",
						"attributes": map[string]any{"email": email},
					},
				},
				"properties": properties,
			},
		},
	}
	return c.post(ctx, "/api/events/", payload)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Klaviyo-API-Key "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("revision", apiRevision)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("klaviyo: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("klaviyo: %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(text)))
	}
	return nil
}
