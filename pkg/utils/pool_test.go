package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolDefaults(t *testing.T) {
	c := PostgresPoolConfig{}.withDefaults()
	if c.MaxOpenConns != 25 || c.MaxIdleConns != 25 {
		t.Fatalf("unexpected conn defaults: %+v", c)
	}
	if c.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected ping timeout: %s", c.PingTimeout)
	}

	c = PostgresPoolConfig{MaxOpenConns: 3, PingTimeout: time.Second}.withDefaults()
	if c.MaxOpenConns != 3 || c.PingTimeout != time.Second {
		t.Fatalf("explicit values must win: %+v", c)
	}
}

func TestRedisDefaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.PoolSize != 20 || c.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected ping timeout: %s", c.PingTimeout)
	}
}
