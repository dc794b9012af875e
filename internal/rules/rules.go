package rules

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"cart-recovery/pkg/utils"
)

// Recovery rules are operator-editable key/value settings consulted at
// runtime: the outbound-calling switch and discount caps live here so they
// can be flipped without a redeploy. Env config provides the defaults.

// Keys understood by the rest of the system.
const (
	KeyOutboundCalls      = "outbound_calls_enabled" // "true" / "false"
	KeyMaxDiscountPercent = "max_discount_percent"
)

type Repo interface {
	// Get returns the value for key, or def when the key is unset.
	Get(ctx context.Context, key, def string) (string, error)
	GetAll(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, values map[string]string) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (p *PostgresRepo) Get(ctx context.Context, key, def string) (string, error) {
	const q = `SELECT rule_value FROM cart_rules WHERE rule_key = $1`
	var v string
	err := p.db.QueryRowContext(ctx, q, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (p *PostgresRepo) GetAll(ctx context.Context) (map[string]string, error) {
	const q = `SELECT rule_key, rule_value FROM cart_rules`
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Set upserts all given rules in one transaction so a multi-key update is
// never observed half-applied.
func (p *PostgresRepo) Set(ctx context.Context, values map[string]string) error {
	const q = `
INSERT INTO cart_rules (rule_key, rule_value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (rule_key)
DO UPDATE SET rule_value = EXCLUDED.rule_value, updated_at = now()`
	return utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for k, v := range values {
			if _, err := tx.ExecContext(ctx, q, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// MemoryRepo backs tests.
type MemoryRepo struct {
	mu     sync.Mutex
	Values map[string]string
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{Values: map[string]string{}} }

func (m *MemoryRepo) Get(_ context.Context, key, def string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.Values[key]; ok {
		return v, nil
	}
	return def, nil
}

func (m *MemoryRepo) GetAll(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.Values))
	for k, v := range m.Values {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryRepo) Set(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.Values[k] = v
	}
	return nil
}
