package vapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cart-recovery/internal/calls"
)

func TestItemsSummary(t *testing.T) {
	items := []calls.CartItem{
		{Title: "Rice Toner", Quantity: 1, Price: "18.00"},
		{Title: "Snail Essence", Quantity: 2, Price: "24.99"},
	}
	got := ItemsSummary(items)
	want := "Rice Toner ($18.00 x1), Snail Essence ($24.99 x2)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if ItemsSummary(nil) != "" {
		t.Fatalf("empty cart should render empty summary")
	}
}

func TestCreateCall_SendsVariableValues(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key_test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "call_123", "status": "queued"})
	}))
	defer srv.Close()

	c := New(Config{APIKey: "key_test", AssistantID: "asst_1", PhoneNumberID: "pn_1", BaseURL: srv.URL})
	call, err := c.CreateCall(context.Background(), OutboundCallRequest{
		CustomerPhone: "+15551234567",
		CustomerName:  "Jane",
		CartItems:     []calls.CartItem{{Title: "Rice Toner", Quantity: 1, Price: "18.00"}},
		CartTotal:     18,
		CheckoutURL:   "https://shop.example/checkout/abc",
	})
	if err != nil {
		t.Fatalf("create call: %v", err)
	}
	if call.ID != "call_123" {
		t.Fatalf("unexpected call id %q", call.ID)
	}

	if captured["assistantId"] != "asst_1" {
		t.Fatalf("assistantId not sent: %v", captured)
	}
	overrides := captured["assistantOverrides"].(map[string]any)
	vars := overrides["variableValues"].(map[string]any)
	if vars["customerName"] != "Jane" || vars["cartTotal"] != "$18.00" {
		t.Fatalf("unexpected variable values: %v", vars)
	}
	if vars["checkoutUrl"] != "https://shop.example/checkout/abc" {
		t.Fatalf("checkout url missing: %v", vars)
	}
}

func TestCreateCall_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	if _, err := c.CreateCall(context.Background(), OutboundCallRequest{CustomerPhone: "+1555"}); err == nil {
		t.Fatalf("expected error on 401")
	}
}

func TestCreateCall_RequiresPhone(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:0"})
	if _, err := c.CreateCall(context.Background(), OutboundCallRequest{}); err == nil {
		t.Fatalf("expected error without phone")
	}
}
