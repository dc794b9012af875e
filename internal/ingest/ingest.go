package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"cart-recovery/internal/calls"
	"cart-recovery/internal/dispatch"
	"cart-recovery/internal/rules"
)

// Service turns normalized leads into call records: dedup, persist, and —
// when outbound calling is enabled — hand off to the dispatcher.

// ErrNoContact rejects events without any customer identifier.
var ErrNoContact = errors.New("ingest: lead has no phone or email")

// Skip reasons reported to webhook callers.
const (
	SkipNoContact = "no_contact_info"
	SkipDuplicate = "already_called_recently"
)

// DefaultDedupWindow suppresses repeat records per phone.
const DefaultDedupWindow = 24 * time.Hour

type Service struct {
	Repo  calls.Repo
	Rules rules.Repo   // optional runtime override of the calling switch
	Guard *DedupGuard  // optional Redis fast-path dedup

	Dispatcher *dispatch.Dispatcher

	// OutboundCalls is the configured default for the calling switch.
	OutboundCalls bool
	DedupWindow   time.Duration

	Now func() time.Time
	Log *slog.Logger
}

// Result reports what Ingest did with a lead.
type Result struct {
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`

	Record      calls.CallRecord `json:"-"`
	CollectOnly bool             `json:"collectOnly,omitempty"`
	Dispatch    *dispatch.Result `json:"-"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Service) dedupWindow() time.Duration {
	if s.DedupWindow > 0 {
		return s.DedupWindow
	}
	return DefaultDedupWindow
}

// Ingest runs the full pipeline for one lead. The record is persisted as
// queued even when no call will be placed (collect-only). A dispatch failure
// returns the persisted record alongside the error so callers can report the
// record id.
func (s *Service) Ingest(ctx context.Context, lead Lead) (Result, error) {
	if !lead.HasContact() {
		return Result{Skipped: true, Reason: SkipNoContact}, ErrNoContact
	}

	if lead.Phone != "" {
		dup, err := s.isDuplicate(ctx, lead.Phone)
		if err != nil {
			return Result{}, err
		}
		if dup {
			s.log().Info("duplicate lead skipped", "phone", lead.Phone)
			return Result{Skipped: true, Reason: SkipDuplicate}, nil
		}
	}

	rec, err := s.Repo.Create(ctx, lead.Record())
	if err != nil {
		// The guard claim must not outlive a failed insert.
		s.Guard.Release(ctx, lead.Phone)
		return Result{}, err
	}

	if lead.CollectOnly || !s.outboundEnabled(ctx) {
		s.log().Info("cart collected",
			"call_id", rec.ID, "name", rec.CustomerName, "total", rec.CartTotal)
		return Result{Record: rec, CollectOnly: true}, nil
	}

	res, err := s.Dispatcher.Dispatch(ctx, rec, lead.Region)
	if err != nil {
		return Result{Record: rec}, err
	}
	return Result{Record: rec, Dispatch: &res}, nil
}

// isDuplicate layers the Redis guard over the durable DB recency check.
func (s *Service) isDuplicate(ctx context.Context, phone string) (bool, error) {
	acquired, err := s.Guard.Acquire(ctx, phone)
	if err != nil {
		// Guard unavailable; fall through to the DB check.
		s.log().Warn("dedup guard unavailable", "err", err)
	} else if !acquired {
		return true, nil
	}

	_, found, err := s.Repo.RecentByPhone(ctx, phone, s.now().Add(-s.dedupWindow()))
	if err != nil {
		return false, err
	}
	return found, nil
}

// outboundEnabled resolves the calling switch: the stored rule wins over the
// configured default so the switch can be flipped without a redeploy.
func (s *Service) outboundEnabled(ctx context.Context) bool {
	if s.Rules == nil {
		return s.OutboundCalls
	}
	def := strconv.FormatBool(s.OutboundCalls)
	v, err := s.Rules.Get(ctx, rules.KeyOutboundCalls, def)
	if err != nil {
		s.log().Warn("rules lookup failed", "err", err)
		return s.OutboundCalls
	}
	return v == "true"
}
