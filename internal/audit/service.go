package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs operator actions. Callers should treat audit logging as
// best-effort: a failure is returned but should not abort the action.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogRuleChange records a recovery-rule update.
func (s *Service) LogRuleChange(ctx context.Context, actor, ip, metadata string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeRuleChange,
		Actor:     actor,
		IPAddress: ip,
		Message:   "recovery rules updated",
		Metadata:  metadata,
	})
}

// LogCartUpdate records a manual follow-up status change.
func (s *Service) LogCartUpdate(ctx context.Context, actor, ip string, cartID int64, metadata string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeCartUpdate,
		Actor:     actor,
		IPAddress: ip,
		CartID:    cartID,
		Message:   "cart call status updated",
		Metadata:  metadata,
	})
}

// LogBulkImport records a historical cart import.
func (s *Service) LogBulkImport(ctx context.Context, actor, ip string, imported, total int) error {
	return s.Append(ctx, Event{
		Type:      EventTypeBulkImport,
		Actor:     actor,
		IPAddress: ip,
		Message:   "historical carts imported",
		Metadata:  fmt.Sprintf(`{"imported":%d,"total":%d}`, imported, total),
	})
}

// LogLogin records a successful dashboard login.
func (s *Service) LogLogin(ctx context.Context, actor, ip string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeLogin,
		Actor:     actor,
		IPAddress: ip,
		Message:   "dashboard login",
	})
}
