package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Vapi     VapiConfig
	Twilio   TwilioConfig
	Shopify  ShopifyConfig
	Klaviyo  KlaviyoConfig
	Recovery RecoveryConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// DashboardPassword is the single operator credential.
	DashboardPassword string
}

type VapiConfig struct {
	APIKey        string
	AssistantID   string
	PhoneNumberID string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

type ShopifyConfig struct {
	StoreURL      string
	AccessToken   string
	WebhookSecret string
}

type KlaviyoConfig struct {
	APIKey        string
	WebhookSecret string
}

// RecoveryConfig tunes the recovery pipeline itself.
type RecoveryConfig struct {
	// OutboundCalls is the default calling switch; a stored rule can
	// override it at runtime.
	OutboundCalls bool

	DedupWindow       time.Duration
	SchedulerInterval time.Duration

	StoreName    string
	ImportSecret string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optDuration("JWT_REFRESH_TTL")
	c.Auth.DashboardPassword = os.Getenv("DASHBOARD_PASSWORD")

	c.Vapi.APIKey = os.Getenv("VAPI_API_KEY")
	c.Vapi.AssistantID = strings.TrimSpace(os.Getenv("VAPI_ASSISTANT_ID"))
	c.Vapi.PhoneNumberID = strings.TrimSpace(os.Getenv("VAPI_PHONE_NUMBER_ID"))

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.FromNumber = strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER"))

	c.Shopify.StoreURL = strings.TrimSpace(os.Getenv("SHOPIFY_STORE_URL"))
	c.Shopify.AccessToken = os.Getenv("SHOPIFY_ACCESS_TOKEN")
	c.Shopify.WebhookSecret = os.Getenv("SHOPIFY_WEBHOOK_SECRET")

	c.Klaviyo.APIKey = os.Getenv("KLAVIYO_API_KEY")
	c.Klaviyo.WebhookSecret = os.Getenv("KLAVIYO_WEBHOOK_SECRET")

	c.Recovery.OutboundCalls = os.Getenv("ENABLE_OUTBOUND_CALLS") == "true"
	c.Recovery.DedupWindow = optDuration("DEDUP_WINDOW")
	c.Recovery.SchedulerInterval = optDuration("SCHEDULER_INTERVAL")
	c.Recovery.StoreName = strings.TrimSpace(os.Getenv("STORE_NAME"))
	c.Recovery.ImportSecret = os.Getenv("IMPORT_SECRET")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.DashboardPassword == "" {
		errs = append(errs, errors.New("DASHBOARD_PASSWORD is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	// Provider credentials are only enforced when outbound calling is on;
	// collect-only deployments run without a voice provider.
	if c.Recovery.OutboundCalls {
		if c.Vapi.APIKey == "" {
			errs = append(errs, errors.New("VAPI_API_KEY is required when ENABLE_OUTBOUND_CALLS=true"))
		}
		if c.Vapi.AssistantID == "" {
			errs = append(errs, errors.New("VAPI_ASSISTANT_ID is required when ENABLE_OUTBOUND_CALLS=true"))
		}
		if c.Vapi.PhoneNumberID == "" {
			errs = append(errs, errors.New("VAPI_PHONE_NUMBER_ID is required when ENABLE_OUTBOUND_CALLS=true"))
		}
	}

	if c.Recovery.DedupWindow < 0 {
		errs = append(errs, errors.New("DEDUP_WINDOW must not be negative"))
	}
	if c.Recovery.DedupWindow == 0 {
		c.Recovery.DedupWindow = 24 * time.Hour
	}
	if c.Recovery.SchedulerInterval == 0 {
		c.Recovery.SchedulerInterval = 5 * time.Minute
	}
	if c.Recovery.SchedulerInterval < time.Minute {
		errs = append(errs, fmt.Errorf("SCHEDULER_INTERVAL must be at least 1m, got %s", c.Recovery.SchedulerInterval))
	}
	if c.Recovery.StoreName == "" {
		c.Recovery.StoreName = "our store"
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
