package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo for tests and early development.
// Behavior mirrors PostgresRepo, including the no-match semantics.

type MemoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	Records []CallRecord

	// Now lets tests pin creation timestamps.
	Now func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{nextID: 1, Now: time.Now}
}

func (m *MemoryRepo) Create(_ context.Context, n NewCallRecord) (CallRecord, error) {
	if err := n.Validate(); err != nil {
		return CallRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	r := CallRecord{
		ID:            m.nextID,
		CustomerPhone: n.CustomerPhone,
		CustomerEmail: n.CustomerEmail,
		CustomerName:  n.CustomerName,
		CartTotal:     n.CartTotal,
		ItemsJSON:     n.ItemsJSON,
		CheckoutURL:   n.CheckoutURL,
		Status:        StatusQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.nextID++
	m.Records = append(m.Records, r)
	return r, nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id int64) (CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Records {
		if r.ID == id {
			return r, nil
		}
	}
	return CallRecord{}, ErrNotFound
}

func (m *MemoryRepo) RecentByPhone(_ context.Context, phone string, since time.Time) (CallRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		best  CallRecord
		found bool
	)
	for _, r := range m.Records {
		if r.CustomerPhone != phone || r.CreatedAt.Before(since) {
			continue
		}
		if !found || r.CreatedAt.After(best.CreatedAt) {
			best = r
			found = true
		}
	}
	return best, found, nil
}

func (m *MemoryRepo) RecentByContact(_ context.Context, email, phone string, since time.Time) ([]CallRecord, error) {
	if email == "" && phone == "" {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallRecord, 0)
	for _, r := range m.Records {
		if r.CreatedAt.Before(since) {
			continue
		}
		if (email != "" && r.CustomerEmail == email) || (phone != "" && r.CustomerPhone == phone) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepo) UpdateStatus(_ context.Context, id int64, status Status, vapiCallID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Records {
		if m.Records[i].ID == id {
			m.Records[i].Status = status
			m.Records[i].VapiCallID = vapiCallID
			m.Records[i].UpdatedAt = m.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryRepo) Schedule(_ context.Context, id int64, at time.Time, timezone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Records {
		if m.Records[i].ID == id {
			t := at
			m.Records[i].Status = StatusScheduled
			m.Records[i].ScheduledFor = &t
			m.Records[i].CustomerTimezone = timezone
			m.Records[i].UpdatedAt = m.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryRepo) CompleteByProviderID(_ context.Context, vapiCallID string, outcome Outcome, transcript string, durationSeconds int) (CallRecord, bool, error) {
	if vapiCallID == "" {
		return CallRecord{}, false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Records {
		if m.Records[i].VapiCallID != vapiCallID {
			continue
		}
		m.Records[i].Status = StatusCompleted
		m.Records[i].Outcome = outcome
		m.Records[i].Transcript = transcript
		m.Records[i].DurationSeconds = durationSeconds
		m.Records[i].UpdatedAt = m.Now()
		return m.Records[i], true, nil
	}
	return CallRecord{}, false, nil
}

func (m *MemoryRepo) StampConversion(_ context.Context, id int64, revenue float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Records {
		if m.Records[i].ID == id {
			v := revenue
			t := at
			m.Records[i].RevenueRecovered = &v
			m.Records[i].ConvertedAt = &t
			m.Records[i].UpdatedAt = m.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryRepo) DueScheduled(_ context.Context, now time.Time) ([]CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallRecord, 0)
	for _, r := range m.Records {
		if r.Status == StatusScheduled && r.ScheduledFor != nil && !r.ScheduledFor.After(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(*out[j].ScheduledFor) })
	return out, nil
}

func (m *MemoryRepo) List(_ context.Context, f ListFilter) ([]CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]CallRecord, 0)
	for _, r := range m.Records {
		if f.Outcome != "" && r.Outcome != f.Outcome {
			continue
		}
		if !f.DateFrom.IsZero() && r.CreatedAt.Before(f.DateFrom) {
			continue
		}
		if !f.DateTo.IsZero() && r.CreatedAt.After(f.DateTo) {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if f.Offset >= len(matched) {
		return []CallRecord{}, nil
	}
	matched = matched[f.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MemoryRepo) Stats(_ context.Context, now time.Time) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	daily := map[string]int{}
	var s Stats
	for _, r := range m.Records {
		s.TotalCalls++
		if r.Status == StatusCompleted {
			s.CompletedCalls++
		}
		if r.Outcome == OutcomeSaleRecovered {
			s.RecoveredCalls++
		}
		if r.RevenueRecovered != nil {
			s.RevenueRecovered += *r.RevenueRecovered
		}
		if !r.CreatedAt.Before(dayStart) {
			s.CallsToday++
		}
		if !r.CreatedAt.Before(dayStart.AddDate(0, 0, -30)) {
			daily[r.CreatedAt.Format("2006-01-02")]++
		}
	}
	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		s.DailyCalls = append(s.DailyCalls, DailyCount{Day: d, Count: daily[d]})
	}
	return s, nil
}
