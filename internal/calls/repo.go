package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repo is the persistence boundary for call records. The Postgres
// implementation is authoritative; MemoryRepo backs unit tests.
type Repo interface {
	Create(ctx context.Context, n NewCallRecord) (CallRecord, error)
	GetByID(ctx context.Context, id int64) (CallRecord, error)

	// RecentByPhone returns the newest record for a phone created at or
	// after since. ok=false means no match (normal control flow).
	RecentByPhone(ctx context.Context, phone string, since time.Time) (CallRecord, bool, error)

	// RecentByContact returns records matching email or phone created at or
	// after since, newest first. Empty identifiers are skipped.
	RecentByContact(ctx context.Context, email, phone string, since time.Time) ([]CallRecord, error)

	UpdateStatus(ctx context.Context, id int64, status Status, vapiCallID string) error
	Schedule(ctx context.Context, id int64, at time.Time, timezone string) error

	// CompleteByProviderID closes the record matching the provider call id.
	// ok=false means no record carries that id (a no-op, not an error).
	CompleteByProviderID(ctx context.Context, vapiCallID string, outcome Outcome, transcript string, durationSeconds int) (CallRecord, bool, error)

	StampConversion(ctx context.Context, id int64, revenue float64, at time.Time) error

	// DueScheduled returns records with status=scheduled and
	// scheduled_for <= now.
	DueScheduled(ctx context.Context, now time.Time) ([]CallRecord, error)

	List(ctx context.Context, f ListFilter) ([]CallRecord, error)
	Stats(ctx context.Context, now time.Time) (Stats, error)
}

// NOTE: this repository assumes the calls table from schema.sql exists.
// Text columns default to '' so only scheduled_for, revenue_recovered and
// converted_at scan through sql.Null* types.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const callColumns = `
id, customer_phone, customer_email, customer_name, customer_timezone,
cart_total, items_json, checkout_url, vapi_call_id, status, outcome,
transcript, duration_seconds, scheduled_for, revenue_recovered, converted_at,
created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (CallRecord, error) {
	var (
		r            CallRecord
		scheduledFor sql.NullTime
		revenue      sql.NullFloat64
		convertedAt  sql.NullTime
	)
	err := row.Scan(
		&r.ID,
		&r.CustomerPhone,
		&r.CustomerEmail,
		&r.CustomerName,
		&r.CustomerTimezone,
		&r.CartTotal,
		&r.ItemsJSON,
		&r.CheckoutURL,
		&r.VapiCallID,
		&r.Status,
		&r.Outcome,
		&r.Transcript,
		&r.DurationSeconds,
		&scheduledFor,
		&revenue,
		&convertedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return CallRecord{}, err
	}
	if scheduledFor.Valid {
		t := scheduledFor.Time
		r.ScheduledFor = &t
	}
	if revenue.Valid {
		v := revenue.Float64
		r.RevenueRecovered = &v
	}
	if convertedAt.Valid {
		t := convertedAt.Time
		r.ConvertedAt = &t
	}
	return r, nil
}

func collectRecords(rows *sql.Rows) ([]CallRecord, error) {
	defer rows.Close()
	out := make([]CallRecord, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresRepo) Create(ctx context.Context, n NewCallRecord) (CallRecord, error) {
	if err := n.Validate(); err != nil {
		return CallRecord{}, err
	}
	q := `
INSERT INTO calls (customer_phone, customer_email, customer_name, cart_total, items_json, checkout_url)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING ` + callColumns
	return scanRecord(p.db.QueryRowContext(ctx, q,
		n.CustomerPhone,
		n.CustomerEmail,
		n.CustomerName,
		n.CartTotal,
		n.ItemsJSON,
		n.CheckoutURL,
	))
}

func (p *PostgresRepo) GetByID(ctx context.Context, id int64) (CallRecord, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	r, err := scanRecord(p.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	return r, err
}

func (p *PostgresRepo) RecentByPhone(ctx context.Context, phone string, since time.Time) (CallRecord, bool, error) {
	q := `
SELECT ` + callColumns + `
FROM calls
WHERE customer_phone = $1 AND created_at >= $2
ORDER BY created_at DESC
LIMIT 1`
	r, err := scanRecord(p.db.QueryRowContext(ctx, q, phone, since))
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, false, nil
	}
	if err != nil {
		return CallRecord{}, false, err
	}
	return r, true, nil
}

func (p *PostgresRepo) RecentByContact(ctx context.Context, email, phone string, since time.Time) ([]CallRecord, error) {
	conds := make([]string, 0, 2)
	args := []any{since}
	if email != "" {
		args = append(args, email)
		conds = append(conds, fmt.Sprintf("customer_email = $%d", len(args)))
	}
	if phone != "" {
		args = append(args, phone)
		conds = append(conds, fmt.Sprintf("customer_phone = $%d", len(args)))
	}
	if len(conds) == 0 {
		return nil, nil
	}
	q := `
SELECT ` + callColumns + `
FROM calls
WHERE created_at >= $1 AND (` + strings.Join(conds, " OR ") + `)
ORDER BY created_at DESC`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (p *PostgresRepo) UpdateStatus(ctx context.Context, id int64, status Status, vapiCallID string) error {
	const q = `
UPDATE calls
SET status = $2, vapi_call_id = $3, updated_at = now()
WHERE id = $1`
	res, err := p.db.ExecContext(ctx, q, id, status, vapiCallID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresRepo) Schedule(ctx context.Context, id int64, at time.Time, timezone string) error {
	const q = `
UPDATE calls
SET status = 'scheduled', scheduled_for = $2, customer_timezone = $3, updated_at = now()
WHERE id = $1`
	res, err := p.db.ExecContext(ctx, q, id, at, timezone)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresRepo) CompleteByProviderID(ctx context.Context, vapiCallID string, outcome Outcome, transcript string, durationSeconds int) (CallRecord, bool, error) {
	if vapiCallID == "" {
		return CallRecord{}, false, nil
	}
	q := `
UPDATE calls
SET status = 'completed', outcome = $2, transcript = $3, duration_seconds = $4, updated_at = now()
WHERE vapi_call_id = $1
RETURNING ` + callColumns
	r, err := scanRecord(p.db.QueryRowContext(ctx, q, vapiCallID, outcome, transcript, durationSeconds))
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, false, nil
	}
	if err != nil {
		return CallRecord{}, false, err
	}
	return r, true, nil
}

func (p *PostgresRepo) StampConversion(ctx context.Context, id int64, revenue float64, at time.Time) error {
	const q = `
UPDATE calls
SET revenue_recovered = $2, converted_at = $3, updated_at = now()
WHERE id = $1`
	res, err := p.db.ExecContext(ctx, q, id, revenue, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresRepo) DueScheduled(ctx context.Context, now time.Time) ([]CallRecord, error) {
	q := `
SELECT ` + callColumns + `
FROM calls
WHERE status = 'scheduled' AND scheduled_for <= $1
ORDER BY scheduled_for ASC`
	rows, err := p.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (p *PostgresRepo) List(ctx context.Context, f ListFilter) ([]CallRecord, error) {
	var (
		conds []string
		args  []any
	)
	if f.Outcome != "" {
		args = append(args, f.Outcome)
		conds = append(conds, fmt.Sprintf("outcome = $%d", len(args)))
	}
	if !f.DateFrom.IsZero() {
		args = append(args, f.DateFrom)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !f.DateTo.IsZero() {
		args = append(args, f.DateTo)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	limitPos := len(args)
	args = append(args, f.Offset)
	offsetPos := len(args)

	q := fmt.Sprintf(`
SELECT %s
FROM calls
%s
ORDER BY created_at DESC
LIMIT $%d OFFSET $%d`, callColumns, where, limitPos, offsetPos)

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (p *PostgresRepo) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var s Stats

	const q = `
SELECT
  COUNT(*),
  COUNT(*) FILTER (WHERE status = 'completed'),
  COUNT(*) FILTER (WHERE outcome = 'sale_recovered'),
  COALESCE(SUM(revenue_recovered), 0),
  COUNT(*) FILTER (WHERE created_at >= $1)
FROM calls`
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := p.db.QueryRowContext(ctx, q, dayStart).Scan(
		&s.TotalCalls,
		&s.CompletedCalls,
		&s.RecoveredCalls,
		&s.RevenueRecovered,
		&s.CallsToday,
	); err != nil {
		return Stats{}, err
	}

	const daily = `
SELECT to_char(created_at::date, 'YYYY-MM-DD'), COUNT(*)
FROM calls
WHERE created_at >= $1
GROUP BY created_at::date
ORDER BY created_at::date`
	rows, err := p.db.QueryContext(ctx, daily, dayStart.AddDate(0, 0, -30))
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return Stats{}, err
		}
		s.DailyCalls = append(s.DailyCalls, d)
	}
	return s, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
