package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cart-recovery/internal/bizhours"
	"cart-recovery/internal/calls"
	"cart-recovery/internal/providers/vapi"
)

// VoiceProvider places outbound calls. Satisfied by *vapi.Client; tests
// inject fakes.
type VoiceProvider interface {
	CreateCall(ctx context.Context, req vapi.OutboundCallRequest) (vapi.Call, error)
}

// Dispatcher decides whether a queued record is called now or deferred to
// the next calling window. A dispatch failure marks the record failed and is
// surfaced to the caller; records are not retried on this path.
type Dispatcher struct {
	Repo   calls.Repo
	Voice  VoiceProvider
	Window bizhours.Window

	Now func() time.Time
	Log *slog.Logger
}

// Result reports what Dispatch did with the record.
type Result struct {
	CallID       int64      `json:"callId"`
	Scheduled    bool       `json:"scheduled,omitempty"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	Timezone     string     `json:"timezone,omitempty"`
	VapiCallID   string     `json:"vapiCallId,omitempty"`
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) log() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// Dispatch handles a freshly ingested record. The customer's timezone is
// derived from the order's region code, falling back to the default zone.
func (d *Dispatcher) Dispatch(ctx context.Context, rec calls.CallRecord, region string) (Result, error) {
	zone := bizhours.ZoneForRegion(region)
	now := d.now()

	if !d.Window.Within(zone, now) {
		at := d.Window.NextStart(zone, now)
		if err := d.Repo.Schedule(ctx, rec.ID, at, zone); err != nil {
			return Result{}, fmt.Errorf("schedule call %d: %w", rec.ID, err)
		}
		d.log().Info("call scheduled for next window",
			"call_id", rec.ID, "scheduled_for", at, "timezone", zone)
		return Result{CallID: rec.ID, Scheduled: true, ScheduledFor: &at, Timezone: zone}, nil
	}

	return d.placeCall(ctx, rec)
}

// placeCall invokes the voice provider and records the transition. Shared
// by the immediate path and the scheduler loop.
func (d *Dispatcher) placeCall(ctx context.Context, rec calls.CallRecord) (Result, error) {
	call, err := d.Voice.CreateCall(ctx, vapi.OutboundCallRequest{
		CustomerPhone: rec.CustomerPhone,
		CustomerName:  rec.CustomerName,
		CartItems:     rec.Items(),
		CartTotal:     rec.CartTotal,
		CheckoutURL:   rec.CheckoutURL,
	})
	if err != nil {
		if uerr := d.Repo.UpdateStatus(ctx, rec.ID, calls.StatusFailed, ""); uerr != nil {
			d.log().Error("failed to mark call failed", "call_id", rec.ID, "err", uerr)
		}
		return Result{}, fmt.Errorf("dispatch call %d: %w", rec.ID, err)
	}

	if err := d.Repo.UpdateStatus(ctx, rec.ID, calls.StatusInProgress, call.ID); err != nil {
		return Result{}, fmt.Errorf("record dispatch of call %d: %w", rec.ID, err)
	}
	d.log().Info("call initiated", "call_id", rec.ID, "vapi_call_id", call.ID)
	return Result{CallID: rec.ID, VapiCallID: call.ID}, nil
}
