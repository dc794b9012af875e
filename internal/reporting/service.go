package reporting

import (
	"context"
	"errors"
	"time"

	"cart-recovery/internal/calls"
	"cart-recovery/internal/carts"
)

// Service composes the dashboard overview from the calls and carts tables.
// Pure aggregation: all writes happen elsewhere.

// Overview is the recovery summary shown on the dashboard landing page.
type Overview struct {
	calls.Stats

	// RecoveryRate is recovered/completed as a percentage.
	RecoveryRate float64 `json:"recoveryRate"`
	// AverageRecoveredOrder is revenue/recovered.
	AverageRecoveredOrder float64 `json:"averageRecoveredOrder"`

	// Outcomes counts completed calls per outcome.
	Outcomes map[calls.Outcome]int `json:"outcomes"`
}

type Service struct {
	Calls calls.Repo
	Carts carts.Repo
}

func NewService(callsRepo calls.Repo, cartsRepo carts.Repo) *Service {
	return &Service{Calls: callsRepo, Carts: cartsRepo}
}

// Overview builds the call-side summary.
func (s *Service) Overview(ctx context.Context, now time.Time) (Overview, error) {
	if s.Calls == nil {
		return Overview{}, errors.New("reporting: calls repo not configured")
	}

	stats, err := s.Calls.Stats(ctx, now)
	if err != nil {
		return Overview{}, err
	}

	out := Overview{Stats: stats, Outcomes: map[calls.Outcome]int{}}
	recs, err := s.Calls.List(ctx, calls.ListFilter{})
	if err != nil {
		return Overview{}, err
	}
	for _, r := range recs {
		if r.Outcome != "" {
			out.Outcomes[r.Outcome]++
		}
	}

	if stats.CompletedCalls > 0 {
		out.RecoveryRate = float64(stats.RecoveredCalls) / float64(stats.CompletedCalls) * 100
	}
	if stats.RecoveredCalls > 0 {
		out.AverageRecoveredOrder = stats.RevenueRecovered / float64(stats.RecoveredCalls)
	}
	return out, nil
}

// CartFollowUp builds the operator follow-up summary over the carts table.
func (s *Service) CartFollowUp(ctx context.Context) (carts.DailyStats, error) {
	if s.Carts == nil {
		return carts.DailyStats{}, errors.New("reporting: carts repo not configured")
	}
	return s.Carts.Stats(ctx)
}
