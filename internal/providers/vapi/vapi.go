package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cart-recovery/internal/calls"
)

// Client talks to the Vapi REST API to place outbound voice calls.
// No Vapi payloads leak above this adapter; business logic sees
// OutboundCallRequest and Call only.

const defaultBaseURL = "https://api.vapi.ai"

// providerTimeout bounds every outbound provider request. A timeout is
// treated exactly like a provider failure at the call site.
const providerTimeout = 10 * time.Second

type Config struct {
	APIKey        string
	AssistantID   string
	PhoneNumberID string

	// BaseURL overrides the API host, for tests.
	BaseURL string

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

// OutboundCallRequest carries the customer and cart context rendered into
// the assistant's variable set.
type OutboundCallRequest struct {
	CustomerPhone string
	CustomerName  string
	CartItems     []calls.CartItem
	CartTotal     float64
	CheckoutURL   string
}

// Call is the subset of the Vapi call object we track.
type Call struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// ItemsSummary renders the cart snapshot the way the assistant speaks it:
// "Rice Toner ($18.00 x1), Snail Essence ($24.99 x2)".
func ItemsSummary(items []calls.CartItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s ($%s x%d)", it.Title, it.Price, it.Quantity))
	}
	return strings.Join(parts, ", ")
}

func (c *Client) CreateCall(ctx context.Context, req OutboundCallRequest) (Call, error) {
	if req.CustomerPhone == "" {
		return Call{}, fmt.Errorf("vapi: customer phone required")
	}

	payload := map[string]any{
		"assistantId":   c.cfg.AssistantID,
		"phoneNumberId": c.cfg.PhoneNumberID,
		"customer": map[string]any{
			"number": req.CustomerPhone,
		},
		"assistantOverrides": map[string]any{
			"variableValues": map[string]any{
				"customerName": req.CustomerName,
				"cartItems":    ItemsSummary(req.CartItems),
				"cartTotal":    fmt.Sprintf("$%.2f", req.CartTotal),
				"checkoutUrl":  req.CheckoutURL,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Call{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return Call{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Call{}, fmt.Errorf("vapi: create call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Call{}, fmt.Errorf("vapi: create call: status %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var call Call
	if err := json.NewDecoder(resp.Body).Decode(&call); err != nil {
		return Call{}, fmt.Errorf("vapi: decode call: %w", err)
	}
	return call, nil
}
