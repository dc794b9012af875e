package reporting

import (
	"context"
	"testing"
	"time"

	"cart-recovery/internal/calls"
	"cart-recovery/internal/carts"
)

func seedCall(t *testing.T, repo *calls.MemoryRepo, vapiID string, outcome calls.Outcome, revenue float64) {
	t.Helper()
	rec, err := repo.Create(context.Background(), calls.NewCallRecord{CustomerPhone: "+1555" + vapiID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.UpdateStatus(context.Background(), rec.ID, calls.StatusInProgress, vapiID); err != nil {
		t.Fatalf("status: %v", err)
	}
	if _, _, err := repo.CompleteByProviderID(context.Background(), vapiID, outcome, "", 30); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if revenue > 0 {
		if err := repo.StampConversion(context.Background(), rec.ID, revenue, repo.Now()); err != nil {
			t.Fatalf("stamp: %v", err)
		}
	}
}

func TestOverview(t *testing.T) {
	now := time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)
	repo := calls.NewMemoryRepo()
	repo.Now = func() time.Time { return now }

	seedCall(t, repo, "v1", calls.OutcomeSaleRecovered, 80)
	seedCall(t, repo, "v2", calls.OutcomeSaleRecovered, 120)
	seedCall(t, repo, "v3", calls.OutcomeNoAnswer, 0)
	seedCall(t, repo, "v4", calls.OutcomeNotInterested, 0)

	svc := NewService(repo, carts.NewMemoryRepo())
	ov, err := svc.Overview(context.Background(), now)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}

	if ov.TotalCalls != 4 || ov.CompletedCalls != 4 {
		t.Fatalf("unexpected totals: %+v", ov.Stats)
	}
	if ov.RecoveredCalls != 2 || ov.RevenueRecovered != 200 {
		t.Fatalf("unexpected recovery: %+v", ov.Stats)
	}
	if ov.RecoveryRate != 50 {
		t.Fatalf("expected 50%% recovery rate, got %v", ov.RecoveryRate)
	}
	if ov.AverageRecoveredOrder != 100 {
		t.Fatalf("expected $100 average order, got %v", ov.AverageRecoveredOrder)
	}
	if ov.Outcomes[calls.OutcomeNoAnswer] != 1 || ov.Outcomes[calls.OutcomeSaleRecovered] != 2 {
		t.Fatalf("unexpected outcome counts: %v", ov.Outcomes)
	}
}

func TestOverviewEmpty(t *testing.T) {
	repo := calls.NewMemoryRepo()
	svc := NewService(repo, carts.NewMemoryRepo())
	ov, err := svc.Overview(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.RecoveryRate != 0 || ov.AverageRecoveredOrder != 0 {
		t.Fatalf("rates must be zero with no calls: %+v", ov)
	}
}

func TestCartFollowUp(t *testing.T) {
	cartsRepo := carts.NewMemoryRepo()
	if _, err := cartsRepo.Create(context.Background(), carts.AbandonedCart{
		CustomerEmail: "jane@example.com",
		CartTotal:     50,
		AbandonedAt:   time.Now(),
	}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	svc := NewService(calls.NewMemoryRepo(), cartsRepo)
	st, err := svc.CartFollowUp(context.Background())
	if err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	if len(st.CartsPerDay) != 1 {
		t.Fatalf("expected one day bucket, got %+v", st)
	}
}
