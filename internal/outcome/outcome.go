package outcome

import (
	"context"
	"log/slog"
	"time"

	"cart-recovery/internal/calls"
	"cart-recovery/internal/providers/twilio"
)

// Resolution of a provider-delivered end-of-call report: classify, persist,
// and fire the multi-channel fallback for customers the call never reached.

// FallbackEventName is the marketing metric fired when a call goes
// unanswered.
const FallbackEventName = "Recovery Call Failed"

// Report is the classification-relevant subset of the end-of-call report.
type Report struct {
	EndedReason       string
	SuccessEvaluation string
}

// Classify maps a report to exactly one outcome. Total: every report maps,
// and the success evaluation wins over the ended reason.
func Classify(r Report) calls.Outcome {
	if r.SuccessEvaluation == "true" {
		return calls.OutcomeSaleRecovered
	}
	switch r.EndedReason {
	case "no-answer", "busy":
		return calls.OutcomeNoAnswer
	case "voicemail":
		return calls.OutcomeVoicemail
	}
	return calls.OutcomeNotInterested
}

// SMSSender is the checkout-link side channel. Satisfied by *twilio.Client.
type SMSSender interface {
	SendCheckoutLink(ctx context.Context, toPhone, checkoutURL string) (twilio.Message, error)
}

// Marketing is the profile/event side channel. Satisfied by *klaviyo.Client.
type Marketing interface {
	UpdateProfileOutcome(ctx context.Context, email, outcome string, calledAt time.Time) error
	TriggerEvent(ctx context.Context, email, eventName string, properties map[string]any) error
}

type Resolver struct {
	Repo      calls.Repo
	SMS       SMSSender
	Marketing Marketing

	Now func() time.Time
	Log *slog.Logger
}

// Resolution reports what Resolve did.
type Resolution struct {
	Outcome calls.Outcome
	Matched bool
	CallID  int64
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Resolver) log() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// Resolve classifies the report and closes the matching record. An unknown
// provider call id is a no-op. Fallback side effects are best-effort: their
// failures are logged and never surfaced.
func (r *Resolver) Resolve(ctx context.Context, vapiCallID string, rep Report, transcript string, durationSeconds int) (Resolution, error) {
	out := Classify(rep)

	rec, ok, err := r.Repo.CompleteByProviderID(ctx, vapiCallID, out, transcript, durationSeconds)
	if err != nil {
		return Resolution{}, err
	}
	if !ok {
		r.log().Warn("end-of-call report for unknown call", "vapi_call_id", vapiCallID, "outcome", out)
		return Resolution{Outcome: out}, nil
	}

	r.log().Info("call completed",
		"call_id", rec.ID, "vapi_call_id", vapiCallID,
		"outcome", out, "duration_seconds", durationSeconds)

	if rec.CustomerEmail != "" && r.Marketing != nil {
		if err := r.Marketing.UpdateProfileOutcome(ctx, rec.CustomerEmail, string(out), r.now()); err != nil {
			r.log().Error("marketing profile update failed", "call_id", rec.ID, "err", err)
		}
	}

	if out == calls.OutcomeNoAnswer || out == calls.OutcomeVoicemail {
		r.fallback(ctx, rec, out)
	}

	return Resolution{Outcome: out, Matched: true, CallID: rec.ID}, nil
}

// fallback re-engages an unreached customer over SMS and marketing email.
func (r *Resolver) fallback(ctx context.Context, rec calls.CallRecord, out calls.Outcome) {
	if rec.CustomerPhone != "" && rec.CheckoutURL != "" && r.SMS != nil {
		if _, err := r.SMS.SendCheckoutLink(ctx, rec.CustomerPhone, rec.CheckoutURL); err != nil {
			r.log().Error("fallback sms failed", "call_id", rec.ID, "err", err)
		}
	}
	if rec.CustomerEmail != "" && r.Marketing != nil {
		props := map[string]any{
			"call_outcome": string(out),
			"checkout_url": rec.CheckoutURL,
		}
		if err := r.Marketing.TriggerEvent(ctx, rec.CustomerEmail, FallbackEventName, props); err != nil {
			r.log().Error("fallback marketing event failed", "call_id", rec.ID, "err", err)
		}
	}
}
