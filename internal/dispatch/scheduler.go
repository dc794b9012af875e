package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cart-recovery/internal/bizhours"

	"github.com/robfig/cron/v3"
)

// Scheduler is the recurring task that re-evaluates deferred call records.
// Ticks run serially (cron's default), and a failure on one record never
// aborts the rest of the batch.

const DefaultInterval = 5 * time.Minute

type Scheduler struct {
	Dispatcher *Dispatcher
	Interval   time.Duration
	Log        *slog.Logger

	cron *cron.Cron
}

func NewScheduler(d *Dispatcher, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{Dispatcher: d, Interval: interval, Log: log}
}

func (s *Scheduler) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Start begins the recurring tick. Safe to call once; Stop tears it down.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.Interval), func() {
		s.ProcessDue(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	c.Start()
	s.cron = c
	s.log().Info("scheduler started", "interval", s.Interval.String())
	return nil
}

// Stop halts the tick and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.log().Info("scheduler stopped")
}

// ProcessDue dispatches every scheduled record whose time has come and whose
// stored timezone is now inside the calling window. Records still outside
// the window stay scheduled for a later tick. Never panics or returns an
// error; failures are logged per record.
func (s *Scheduler) ProcessDue(ctx context.Context) {
	d := s.Dispatcher
	now := d.now()

	due, err := d.Repo.DueScheduled(ctx, now)
	if err != nil {
		s.log().Error("scheduler query failed", "err", err)
		return
	}

	for _, rec := range due {
		zone := rec.CustomerTimezone
		if zone == "" {
			zone = bizhours.DefaultZone
		}
		// Defensive re-check: a record can be pulled slightly early.
		if !d.Window.Within(zone, now) {
			continue
		}
		if _, err := d.placeCall(ctx, rec); err != nil {
			s.log().Error("scheduled dispatch failed", "call_id", rec.ID, "err", err)
			continue
		}
	}
}
