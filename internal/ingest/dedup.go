package ingest

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupGuard is the fast path of ingestion dedup: an atomic SET NX keyed by
// phone closes the window between two concurrent deliveries that would both
// pass the DB recency check. The DB check remains the durable backstop, so
// a lost key (or no Redis at all) only degrades to best-effort dedup.
type DedupGuard struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewDedupGuard(rdb *redis.Client, ttl time.Duration) *DedupGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DedupGuard{RDB: rdb, TTL: ttl}
}

// Acquire claims the phone for the dedup window. ok=false means another
// delivery already holds it.
func (g *DedupGuard) Acquire(ctx context.Context, phone string) (bool, error) {
	if g == nil || g.RDB == nil || phone == "" {
		return true, nil
	}
	return g.RDB.SetNX(ctx, "cartrecovery:dedup:"+phone, 1, g.TTL).Result()
}

// Release frees the claim so a failed ingestion does not suppress a retry.
func (g *DedupGuard) Release(ctx context.Context, phone string) {
	if g == nil || g.RDB == nil || phone == "" {
		return
	}
	g.RDB.Del(ctx, "cartrecovery:dedup:"+phone)
}
