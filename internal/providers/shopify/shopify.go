package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client talks to the Shopify Admin REST API. Discount codes are created in
// two steps: a single-use price rule, then a code attached to it.

const apiVersion = "2025-01"

const providerTimeout = 10 * time.Second

type Config struct {
	// StoreURL is the myshopify host, e.g. "example.myshopify.com".
	StoreURL    string
	AccessToken string

	// CodePrefix leads every generated discount code.
	CodePrefix string

	// BaseURL overrides the scheme+host, for tests.
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.CodePrefix == "" {
		cfg.CodePrefix = "CART"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.StoreURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: providerTimeout}
	}
	return &Client{cfg: cfg, http: hc}
}

// CapPercent clamps a requested discount to the cart-total tier:
// carts of $100+ allow up to 20%, $75+ up to 15%, $50+ up to 12%,
// anything smaller 10%. Requests are also floored at 5%.
func CapPercent(cartTotal float64, requested int) int {
	if requested < 5 {
		requested = 5
	}
	max := 10
	switch {
	case cartTotal >= 100:
		max = 20
	case cartTotal >= 75:
		max = 15
	case cartTotal >= 50:
		max = 12
	}
	if requested > max {
		return max
	}
	return requested
}

// GenerateCode builds a unique single-use code like "CART-3F9A2C1B".
func (c *Client) GenerateCode() string {
	noise := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return c.cfg.CodePrefix + "-" + noise
}

// CreateDiscountCode creates a single-use percentage-off code and returns it.
func (c *Client) CreateDiscountCode(ctx context.Context, percentOff int) (string, error) {
	code := c.GenerateCode()

	rulePayload := map[string]any{
		"price_rule": map[string]any{
			"title":              code,
			"target_type":        "line_item",
			"target_selection":   "all",
			"allocation_method":  "across",
			"value_type":         "percentage",
			"value":              fmt.Sprintf("-%d.0", percentOff),
			"customer_selection": "all",
			"usage_limit":        1,
			"starts_at":          time.Now().UTC().Format(time.RFC3339),
		},
	}
	var ruleResp struct {
		PriceRule struct {
			ID int64 `json:"id"`
		} `json:"price_rule"`
	}
	if err := c.post(ctx, "/price_rules.json", rulePayload, &ruleResp); err != nil {
		return "", err
	}

	codePayload := map[string]any{
		"discount_code": map[string]any{"code": code},
	}
	endpoint := fmt.Sprintf("/price_rules/%d/discount_codes.json", ruleResp.PriceRule.ID)
	if err := c.post(ctx, endpoint, codePayload, nil); err != nil {
		return "", err
	}
	return code, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := c.cfg.BaseURL + "/admin/api/" + apiVersion + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("shopify: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("shopify: %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(text)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("shopify: decode %s: %w", endpoint, err)
	}
	return nil
}
