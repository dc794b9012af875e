package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends to the audit_events table. INSERT-only: the schema
// grants no UPDATE or DELETE on this table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (p *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, event_type, actor, ip_address, call_id, cart_id, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := p.db.ExecContext(ctx, q,
		e.ID, string(e.Type), e.Actor, e.IPAddress,
		nullInt64(e.CallID), nullInt64(e.CartID),
		e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}

func nullInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
