package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "cartrecovery"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret", DashboardPassword: "hunter2"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Recovery.DedupWindow != 24*time.Hour {
		t.Fatalf("expected 24h dedup default, got %s", c.Recovery.DedupWindow)
	}
	if c.Recovery.SchedulerInterval != 5*time.Minute {
		t.Fatalf("expected 5m scheduler default, got %s", c.Recovery.SchedulerInterval)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected access ttl default, got %s", c.Auth.AccessTokenTTL)
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "cart-recovery"
	c.Auth.JWTAudience = "dashboard"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_OutboundCallsRequireVapiCredentials(t *testing.T) {
	c := validConfig()
	c.Recovery.OutboundCalls = true
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error for outbound calls without provider credentials")
	}
	if !strings.Contains(err.Error(), "VAPI_API_KEY") {
		t.Fatalf("unexpected error: %v", err)
	}

	c = validConfig()
	c.Recovery.OutboundCalls = true
	c.Vapi = VapiConfig{APIKey: "k", AssistantID: "a", PhoneNumberID: "p"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_RejectsShortSchedulerInterval(t *testing.T) {
	c := validConfig()
	c.Recovery.SchedulerInterval = 5 * time.Second
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for sub-minute scheduler interval")
	}
}

func TestValidate_DashboardPasswordRequired(t *testing.T) {
	c := validConfig()
	c.Auth.DashboardPassword = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing dashboard password")
	}
}
