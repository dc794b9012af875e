package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client sends SMS through the Twilio Messages REST API.

const defaultBaseURL = "https://api.twilio.com"

const providerTimeout = 10 * time.Second

type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string

	// StoreName appears in the checkout-link message body.
	StoreName string

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

// Message is the subset of the Twilio message resource we track.
type Message struct {
	SID    string `json:"sid"`
	Status string `json:"status,omitempty"`
}

// SendCheckoutLink texts the customer their checkout URL.
func (c *Client) SendCheckoutLink(ctx context.Context, toPhone, checkoutURL string) (Message, error) {
	body := fmt.Sprintf("Here's your checkout link from %s! Complete your order here: %s", c.cfg.StoreName, checkoutURL)
	return c.send(ctx, toPhone, body)
}

func (c *Client) send(ctx context.Context, toPhone, body string) (Message, error) {
	if toPhone == "" {
		return Message{}, fmt.Errorf("twilio: destination phone required")
	}

	form := url.Values{}
	form.Set("To", toPhone)
	form.Set("From", c.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.cfg.BaseURL, c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Message{}, err
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return Message{}, fmt.Errorf("twilio: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Message{}, fmt.Errorf("twilio: send message: status %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return Message{}, fmt.Errorf("twilio: decode message: %w", err)
	}
	return msg, nil
}
