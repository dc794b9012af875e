package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cart-recovery/internal/audit"
	"cart-recovery/internal/auth"
	"cart-recovery/internal/calls"
	"cart-recovery/internal/carts"
	"cart-recovery/internal/config"
	"cart-recovery/internal/reporting"
	"cart-recovery/internal/rules"

	"github.com/gin-gonic/gin"
)

type fixture struct {
	calls     *calls.MemoryRepo
	carts     *carts.MemoryRepo
	rules     *rules.MemoryRepo
	auditRepo *audit.MemoryRepo
	h         Handlers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:         "secret",
		AccessTokenTTL:    15 * time.Minute,
		RefreshTokenTTL:   24 * time.Hour,
		DashboardPassword: "hunter2",
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	f := &fixture{
		calls:     calls.NewMemoryRepo(),
		carts:     carts.NewMemoryRepo(),
		rules:     rules.NewMemoryRepo(),
		auditRepo: audit.NewMemoryRepo(),
	}
	f.h = Handlers{
		Auth:    m,
		Calls:   f.calls,
		Carts:   f.carts,
		Rules:   f.rules,
		Reports: reporting.NewService(f.calls, f.carts),
		Audit:   audit.NewService(f.auditRepo),
	}
	return f
}

func perform(t *testing.T, handler gin.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	return performID(t, handler, method, target, body, "")
}

func performID(t *testing.T, handler gin.HandlerFunc, method, target, body, id string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if id != "" {
		c.Params = gin.Params{{Key: "id", Value: id}}
	}
	handler(c)

	var resp map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response not json: %v: %s", err, w.Body.String())
		}
	}
	return w, resp
}

func respString(resp map[string]any, key string) string {
	s, _ := resp[key].(string)
	return s
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	w, resp := perform(t, f.h.Login, http.MethodPost, "/auth/login", `{"password":"hunter2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if respString(resp, "access_token") == "" || respString(resp, "refresh_token") == "" {
		t.Fatalf("expected token pair, got %v", resp)
	}
	if evs := f.auditRepo.Events(); len(evs) != 1 || evs[0].Type != audit.EventTypeLogin {
		t.Fatalf("login must be audited: %+v", evs)
	}

	w, _ = perform(t, f.h.Login, http.MethodPost, "/auth/login", `{"password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", w.Code)
	}
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	pair, err := f.h.Auth.IssuePair(time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w, resp := perform(t, f.h.Refresh, http.MethodPost, "/auth/refresh",
		`{"refresh_token":"`+pair.RefreshToken+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if respString(resp, "access_token") == "" {
		t.Fatalf("expected fresh pair, got %v", resp)
	}

	if w, _ := perform(t, f.h.Refresh, http.MethodPost, "/auth/refresh", `{"refresh_token":"garbage"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}
}

func seedCompletedCall(t *testing.T, f *fixture, vapiID string, outcome calls.Outcome) calls.CallRecord {
	t.Helper()
	rec, err := f.calls.Create(context.Background(), calls.NewCallRecord{CustomerPhone: "+1555" + vapiID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.calls.UpdateStatus(context.Background(), rec.ID, calls.StatusInProgress, vapiID); err != nil {
		t.Fatalf("status: %v", err)
	}
	if _, _, err := f.calls.CompleteByProviderID(context.Background(), vapiID, outcome, "t", 30); err != nil {
		t.Fatalf("complete: %v", err)
	}
	return rec
}

func TestListCalls_FilterByOutcome(t *testing.T) {
	f := newFixture(t)
	seedCompletedCall(t, f, "v1", calls.OutcomeSaleRecovered)
	seedCompletedCall(t, f, "v2", calls.OutcomeNoAnswer)

	w, resp := perform(t, f.h.ListCalls, http.MethodGet, "/api/calls?outcome=no_answer", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["count"] != 1.0 {
		t.Fatalf("expected one filtered call, got %v", resp["count"])
	}
}

func TestListCalls_RejectsBadDate(t *testing.T) {
	f := newFixture(t)
	w, _ := perform(t, f.h.ListCalls, http.MethodGet, "/api/calls?dateFrom=yesterday", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetCall(t *testing.T) {
	f := newFixture(t)
	rec := seedCompletedCall(t, f, "v1", calls.OutcomeVoicemail)

	w, resp := performID(t, f.h.GetCall, http.MethodGet, "/api/calls/1", "", "1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["id"] != float64(rec.ID) || resp["outcome"] != string(calls.OutcomeVoicemail) {
		t.Fatalf("unexpected call: %v", resp)
	}

	if w, _ := performID(t, f.h.GetCall, http.MethodGet, "/api/calls/999", "", "999"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDashboardStats(t *testing.T) {
	f := newFixture(t)
	seedCompletedCall(t, f, "v1", calls.OutcomeSaleRecovered)

	w, resp := perform(t, f.h.DashboardStats, http.MethodGet, "/api/dashboard/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["totalCalls"] != 1.0 {
		t.Fatalf("unexpected stats: %v", resp)
	}
}

func TestPatchCartCall(t *testing.T) {
	f := newFixture(t)
	cart, err := f.carts.Create(context.Background(), carts.AbandonedCart{
		CustomerEmail: "jane@example.com",
		CartTotal:     50,
		AbandonedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	w, resp := performID(t, f.h.PatchCartCall, http.MethodPatch, "/api/carts/1/call",
		`{"call_status":"called","call_notes":"left message"}`, "1")
	_ = cart
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["success"] != true {
		t.Fatalf("unexpected response: %v", resp)
	}
	got, _ := f.carts.GetByID(context.Background(), 1)
	if got.CallStatus != "called" || got.CallNotes != "left message" {
		t.Fatalf("patch not applied: %+v", got)
	}
	if evs := f.auditRepo.Events(); len(evs) != 1 || evs[0].Type != audit.EventTypeCartUpdate {
		t.Fatalf("cart update must be audited: %+v", evs)
	}

	if w, _ := performID(t, f.h.PatchCartCall, http.MethodPatch, "/api/carts/1/call", `{}`, "1"); w.Code != http.StatusBadRequest {
		t.Fatalf("empty patch must 400, got %d", w.Code)
	}
}

func TestRules_RoundTrip(t *testing.T) {
	f := newFixture(t)

	w, _ := perform(t, f.h.SetRules, http.MethodPut, "/api/rules",
		`{"outbound_calls_enabled":"true"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	_, resp := perform(t, f.h.GetRules, http.MethodGet, "/api/rules", "")
	got, ok := resp["rules"].(map[string]any)
	if !ok || got[rules.KeyOutboundCalls] != "true" {
		t.Fatalf("rule not persisted: %v", resp)
	}
	if evs := f.auditRepo.Events(); len(evs) != 1 || evs[0].Type != audit.EventTypeRuleChange {
		t.Fatalf("rule change must be audited: %+v", evs)
	}
}

func TestSetRules_RejectsUnknownKey(t *testing.T) {
	f := newFixture(t)
	w, _ := perform(t, f.h.SetRules, http.MethodPut, "/api/rules", `{"bogus":"1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(f.auditRepo.Events()) != 0 {
		t.Fatalf("rejected update must not be audited")
	}
}
