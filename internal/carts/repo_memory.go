package carts

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo backs handler tests; behavior mirrors PostgresRepo.
type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	Carts  []AbandonedCart
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{nextID: 1} }

func (m *MemoryRepo) Create(_ context.Context, c AbandonedCart) (AbandonedCart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if c.AbandonedAt.IsZero() {
		c.AbandonedAt = now
	}
	if c.CallStatus == "" {
		c.CallStatus = "pending"
	}
	c.ID = m.nextID
	c.CreatedAt = now
	c.UpdatedAt = now
	m.nextID++
	m.Carts = append(m.Carts, c)
	return c, nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id int64) (AbandonedCart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Carts {
		if c.ID == id {
			return c, nil
		}
	}
	return AbandonedCart{}, ErrNotFound
}

func (m *MemoryRepo) List(_ context.Context) ([]AbandonedCart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]AbandonedCart(nil), m.Carts...)
	sort.Slice(out, func(i, j int) bool { return out[i].AbandonedAt.After(out[j].AbandonedAt) })
	return out, nil
}

func (m *MemoryRepo) UpdateCallStatus(_ context.Context, id int64, patch StatusPatch) (AbandonedCart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Carts {
		if m.Carts[i].ID != id {
			continue
		}
		if patch.CallStatus != nil {
			m.Carts[i].CallStatus = *patch.CallStatus
		}
		if patch.CallNotes != nil {
			m.Carts[i].CallNotes = *patch.CallNotes
		}
		if patch.CallDuration != nil {
			m.Carts[i].CallDuration = *patch.CallDuration
		}
		m.Carts[i].UpdatedAt = time.Now()
		return m.Carts[i], nil
	}
	return AbandonedCart{}, ErrNotFound
}

func (m *MemoryRepo) Stats(_ context.Context) (DailyStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s DailyStats
	buckets := map[string]*DayBucket{}
	for _, c := range m.Carts {
		day := c.AbandonedAt.Format("2006-01-02")
		b, ok := buckets[day]
		if !ok {
			b = &DayBucket{Day: day}
			buckets[day] = b
		}
		b.Count++
		b.Value += c.CartTotal
		if c.CallStatus != "pending" {
			s.CallsMade++
		}
		if c.CallStatus == "converted" {
			s.Conversions++
		}
	}
	days := make([]string, 0, len(buckets))
	for d := range buckets {
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	for _, d := range days {
		s.CartsPerDay = append(s.CartsPerDay, *buckets[d])
	}
	return s, nil
}
