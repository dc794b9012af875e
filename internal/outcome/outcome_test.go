package outcome

import (
	"context"
	"errors"
	"testing"
	"time"

	"cart-recovery/internal/calls"
	"cart-recovery/internal/providers/twilio"
)

func TestClassify_Precedence(t *testing.T) {
	cases := []struct {
		name string
		rep  Report
		want calls.Outcome
	}{
		{"success eval wins", Report{SuccessEvaluation: "true", EndedReason: "voicemail"}, calls.OutcomeSaleRecovered},
		{"no answer", Report{EndedReason: "no-answer"}, calls.OutcomeNoAnswer},
		{"busy counts as no answer", Report{EndedReason: "busy"}, calls.OutcomeNoAnswer},
		{"voicemail", Report{EndedReason: "voicemail"}, calls.OutcomeVoicemail},
		{"default", Report{EndedReason: "customer-ended-call"}, calls.OutcomeNotInterested},
		{"empty report", Report{}, calls.OutcomeNotInterested},
		{"false eval is not success", Report{SuccessEvaluation: "false", EndedReason: "busy"}, calls.OutcomeNoAnswer},
	}
	for _, tc := range cases {
		if got := Classify(tc.rep); got != tc.want {
			t.Fatalf("%s: Classify(%+v) = %q, want %q", tc.name, tc.rep, got, tc.want)
		}
	}
}

type fakeSMS struct {
	sent []string // checkout URLs
	err  error
}

func (f *fakeSMS) SendCheckoutLink(_ context.Context, _, checkoutURL string) (twilio.Message, error) {
	if f.err != nil {
		return twilio.Message{}, f.err
	}
	f.sent = append(f.sent, checkoutURL)
	return twilio.Message{SID: "SM_test"}, nil
}

type fakeMarketing struct {
	profileUpdates []string // outcomes
	events         []string // event names
	eventProps     map[string]any
	err            error
}

func (f *fakeMarketing) UpdateProfileOutcome(_ context.Context, _, outcome string, _ time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.profileUpdates = append(f.profileUpdates, outcome)
	return nil
}

func (f *fakeMarketing) TriggerEvent(_ context.Context, _, name string, props map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, name)
	f.eventProps = props
	return nil
}

func setupResolver(t *testing.T) (*Resolver, *calls.MemoryRepo, *fakeSMS, *fakeMarketing, calls.CallRecord) {
	t.Helper()
	repo := calls.NewMemoryRepo()
	rec, err := repo.Create(context.Background(), calls.NewCallRecord{
		CustomerPhone: "+15551234567",
		CustomerEmail: "jane@example.com",
		CheckoutURL:   "https://shop.example/checkout/abc",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.UpdateStatus(context.Background(), rec.ID, calls.StatusInProgress, "vapi_abc"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	sms := &fakeSMS{}
	mkt := &fakeMarketing{}
	r := &Resolver{Repo: repo, SMS: sms, Marketing: mkt}
	return r, repo, sms, mkt, rec
}

func TestResolve_NoAnswerFiresFallbackOnce(t *testing.T) {
	r, repo, sms, mkt, rec := setupResolver(t)

	res, err := r.Resolve(context.Background(), "vapi_abc", Report{EndedReason: "no-answer"}, "", 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Matched || res.Outcome != calls.OutcomeNoAnswer || res.CallID != rec.ID {
		t.Fatalf("unexpected resolution: %+v", res)
	}

	if len(sms.sent) != 1 || sms.sent[0] != "https://shop.example/checkout/abc" {
		t.Fatalf("expected exactly one SMS with the checkout URL, got %v", sms.sent)
	}
	if len(mkt.events) != 1 || mkt.events[0] != FallbackEventName {
		t.Fatalf("expected fallback event, got %v", mkt.events)
	}
	if mkt.eventProps["call_outcome"] != "no_answer" {
		t.Fatalf("event props missing outcome: %v", mkt.eventProps)
	}

	got, _ := repo.GetByID(context.Background(), rec.ID)
	if got.Status != calls.StatusCompleted || got.Outcome != calls.OutcomeNoAnswer {
		t.Fatalf("record not completed: %+v", got)
	}
}

func TestResolve_VoicemailFiresFallback(t *testing.T) {
	r, _, sms, mkt, _ := setupResolver(t)
	if _, err := r.Resolve(context.Background(), "vapi_abc", Report{EndedReason: "voicemail"}, "beep", 30); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(sms.sent) != 1 || len(mkt.events) != 1 {
		t.Fatalf("expected fallback on voicemail, sms=%d events=%d", len(sms.sent), len(mkt.events))
	}
}

func TestResolve_SaleRecoveredSkipsFallback(t *testing.T) {
	r, repo, sms, mkt, rec := setupResolver(t)

	res, err := r.Resolve(context.Background(), "vapi_abc",
		Report{SuccessEvaluation: "true", EndedReason: "customer-ended-call"}, "great call", 95)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Outcome != calls.OutcomeSaleRecovered {
		t.Fatalf("unexpected outcome %q", res.Outcome)
	}
	if len(sms.sent) != 0 || len(mkt.events) != 0 {
		t.Fatalf("fallback must not fire on sale_recovered")
	}
	// Profile still records the latest outcome.
	if len(mkt.profileUpdates) != 1 || mkt.profileUpdates[0] != "sale_recovered" {
		t.Fatalf("expected profile update, got %v", mkt.profileUpdates)
	}

	got, _ := repo.GetByID(context.Background(), rec.ID)
	if got.Transcript != "great call" || got.DurationSeconds != 95 {
		t.Fatalf("transcript/duration not persisted: %+v", got)
	}
}

func TestResolve_UnknownCallIDIsNoOp(t *testing.T) {
	r, repo, sms, _, rec := setupResolver(t)

	res, err := r.Resolve(context.Background(), "vapi_missing", Report{EndedReason: "no-answer"}, "", 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Matched {
		t.Fatalf("expected no match")
	}
	if len(sms.sent) != 0 {
		t.Fatalf("no side effects for unmatched reports")
	}
	got, _ := repo.GetByID(context.Background(), rec.ID)
	if got.Status != calls.StatusInProgress {
		t.Fatalf("record must be untouched, got %q", got.Status)
	}
}

func TestResolve_SideEffectFailuresAreSwallowed(t *testing.T) {
	r, repo, sms, mkt, rec := setupResolver(t)
	sms.err = errors.New("twilio down")
	mkt.err = errors.New("klaviyo down")

	res, err := r.Resolve(context.Background(), "vapi_abc", Report{EndedReason: "no-answer"}, "", 0)
	if err != nil {
		t.Fatalf("side-effect failures must not surface: %v", err)
	}
	if !res.Matched {
		t.Fatalf("expected match")
	}
	got, _ := repo.GetByID(context.Background(), rec.ID)
	if got.Status != calls.StatusCompleted {
		t.Fatalf("persistence must still happen, got %q", got.Status)
	}
}
