package carts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AbandonedCart is the per-cart projection used by the Shopify ingestion
// variant: a cart snapshot plus a free-form call status and operator notes.
// CallRecord tracks per-attempt state; this table tracks per-cart follow-up.

var ErrNotFound = errors.New("carts: not found")

type AbandonedCart struct {
	ID int64 `json:"id"`

	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`

	CartTotal   float64 `json:"cart_total"`
	ItemsJSON   string  `json:"items_json,omitempty"`
	CheckoutURL string  `json:"checkout_url,omitempty"`

	AbandonedAt time.Time `json:"abandoned_at"`

	CallStatus   string `json:"call_status"`
	CallNotes    string `json:"call_notes,omitempty"`
	CallDuration int    `json:"call_duration,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusPatch updates operator-tracked call fields. Nil fields are left
// untouched.
type StatusPatch struct {
	CallStatus   *string `json:"call_status,omitempty"`
	CallNotes    *string `json:"call_notes,omitempty"`
	CallDuration *int    `json:"call_duration,omitempty"`
}

// DayBucket is one row of the carts-per-day series.
type DayBucket struct {
	Day   string  `json:"day"`
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// DailyStats summarizes operator follow-up over the carts table.
type DailyStats struct {
	CartsPerDay []DayBucket `json:"cartsPerDay"`
	CallsMade   int         `json:"callsMade"`
	Conversions int         `json:"conversions"`
}

type Repo interface {
	Create(ctx context.Context, c AbandonedCart) (AbandonedCart, error)
	GetByID(ctx context.Context, id int64) (AbandonedCart, error)
	List(ctx context.Context) ([]AbandonedCart, error)
	UpdateCallStatus(ctx context.Context, id int64, patch StatusPatch) (AbandonedCart, error)
	Stats(ctx context.Context) (DailyStats, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const cartColumns = `
id, customer_name, customer_email, customer_phone, cart_total, items_json,
checkout_url, abandoned_at, call_status, call_notes, call_duration,
created_at, updated_at`

func scanCart(row interface{ Scan(...any) error }) (AbandonedCart, error) {
	var c AbandonedCart
	err := row.Scan(
		&c.ID,
		&c.CustomerName,
		&c.CustomerEmail,
		&c.CustomerPhone,
		&c.CartTotal,
		&c.ItemsJSON,
		&c.CheckoutURL,
		&c.AbandonedAt,
		&c.CallStatus,
		&c.CallNotes,
		&c.CallDuration,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (p *PostgresRepo) Create(ctx context.Context, c AbandonedCart) (AbandonedCart, error) {
	if c.AbandonedAt.IsZero() {
		c.AbandonedAt = time.Now()
	}
	if c.CallStatus == "" {
		c.CallStatus = "pending"
	}
	q := `
INSERT INTO abandoned_carts (customer_name, customer_email, customer_phone, cart_total, items_json, checkout_url, abandoned_at, call_status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING ` + cartColumns
	return scanCart(p.db.QueryRowContext(ctx, q,
		c.CustomerName, c.CustomerEmail, c.CustomerPhone,
		c.CartTotal, c.ItemsJSON, c.CheckoutURL,
		c.AbandonedAt, c.CallStatus,
	))
}

func (p *PostgresRepo) GetByID(ctx context.Context, id int64) (AbandonedCart, error) {
	q := `SELECT ` + cartColumns + ` FROM abandoned_carts WHERE id = $1`
	c, err := scanCart(p.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return AbandonedCart{}, ErrNotFound
	}
	return c, err
}

func (p *PostgresRepo) List(ctx context.Context) ([]AbandonedCart, error) {
	q := `SELECT ` + cartColumns + ` FROM abandoned_carts ORDER BY abandoned_at DESC`
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AbandonedCart, 0)
	for rows.Next() {
		c, err := scanCart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresRepo) UpdateCallStatus(ctx context.Context, id int64, patch StatusPatch) (AbandonedCart, error) {
	sets := make([]string, 0, 3)
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.CallStatus != nil {
		add("call_status", *patch.CallStatus)
	}
	if patch.CallNotes != nil {
		add("call_notes", *patch.CallNotes)
	}
	if patch.CallDuration != nil {
		add("call_duration", *patch.CallDuration)
	}
	if len(sets) == 0 {
		return p.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at = now()")

	q := `UPDATE abandoned_carts SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + cartColumns
	c, err := scanCart(p.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return AbandonedCart{}, ErrNotFound
	}
	return c, err
}

func (p *PostgresRepo) Stats(ctx context.Context) (DailyStats, error) {
	var s DailyStats

	const perDay = `
SELECT to_char(abandoned_at::date, 'YYYY-MM-DD'), COUNT(*), COALESCE(SUM(cart_total), 0)
FROM abandoned_carts
GROUP BY abandoned_at::date
ORDER BY abandoned_at::date DESC
LIMIT 30`
	rows, err := p.db.QueryContext(ctx, perDay)
	if err != nil {
		return DailyStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var b DayBucket
		if err := rows.Scan(&b.Day, &b.Count, &b.Value); err != nil {
			return DailyStats{}, err
		}
		s.CartsPerDay = append(s.CartsPerDay, b)
	}
	if err := rows.Err(); err != nil {
		return DailyStats{}, err
	}

	const counts = `
SELECT
  COUNT(*) FILTER (WHERE call_status <> 'pending'),
  COUNT(*) FILTER (WHERE call_status = 'converted')
FROM abandoned_carts`
	if err := p.db.QueryRowContext(ctx, counts).Scan(&s.CallsMade, &s.Conversions); err != nil {
		return DailyStats{}, err
	}
	return s, nil
}
