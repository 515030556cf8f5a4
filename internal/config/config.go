package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// All values come from env; a local .env file is loaded first when present.
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	VoiceAI   VoiceAIConfig
	Functions FunctionsConfig
	Pipeline  PipelineConfig
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

	// SSLMode is kept explicit for AWS-ready posture.
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
}

type VoiceAIConfig struct {
	// WebhookSecret enables HMAC verification of call webhooks when set.
	WebhookSecret string
}

// FunctionsConfig points at the sibling serverless functions notified after each call.
// An empty BaseURL disables dispatch.
type FunctionsConfig struct {
	BaseURL       string
	ServiceKey    string
	Timeout       time.Duration
	RetryAttempts int
}

type PipelineConfig struct {
	// WorkflowTimezone is the IANA zone used for time_of_day snapping.
	WorkflowTimezone string
	LeadLockTTL      time.Duration
	LeadLockWait     time.Duration
	CreditsPerMinute int64
}

func Load() (Config, error) {
	_ = godotenv.Load()

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
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.VoiceAI.WebhookSecret = os.Getenv("VOICEAI_WEBHOOK_SECRET")

	c.Functions.BaseURL = strings.TrimSpace(os.Getenv("FUNCTIONS_BASE_URL"))
	c.Functions.ServiceKey = os.Getenv("FUNCTIONS_SERVICE_KEY")
	c.Functions.Timeout = mustDuration("FUNCTIONS_TIMEOUT")
	{
		n, err := optionalInt("FUNCTIONS_RETRY_ATTEMPTS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Functions.RetryAttempts = n
	}

	c.Pipeline.WorkflowTimezone = strings.TrimSpace(os.Getenv("WORKFLOW_TIMEZONE"))
	c.Pipeline.LeadLockTTL = mustDuration("LEAD_LOCK_TTL")
	c.Pipeline.LeadLockWait = mustDuration("LEAD_LOCK_WAIT")
	{
		n, err := optionalInt("CREDITS_PER_MINUTE")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Pipeline.CreditsPerMinute = int64(n)
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
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
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			// Allowed values are enforced below.
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
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		// Default: short-lived access tokens.
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		// Default: longer-lived refresh tokens.
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.IsProduction() && c.VoiceAI.WebhookSecret == "" {
		errs = append(errs, errors.New("VOICEAI_WEBHOOK_SECRET is required in production"))
	}

	if c.Functions.Timeout <= 0 {
		c.Functions.Timeout = 10 * time.Second
	}
	if c.Functions.RetryAttempts <= 0 {
		c.Functions.RetryAttempts = 3
	}
	if c.Functions.BaseURL != "" && c.Functions.ServiceKey == "" {
		errs = append(errs, errors.New("FUNCTIONS_SERVICE_KEY is required when FUNCTIONS_BASE_URL is set"))
	}

	if c.Pipeline.WorkflowTimezone == "" {
		c.Pipeline.WorkflowTimezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Pipeline.WorkflowTimezone); err != nil {
		errs = append(errs, fmt.Errorf("WORKFLOW_TIMEZONE is not a valid IANA zone: %q", c.Pipeline.WorkflowTimezone))
	}
	if c.Pipeline.LeadLockTTL <= 0 {
		c.Pipeline.LeadLockTTL = 30 * time.Second
	}
	if c.Pipeline.LeadLockWait <= 0 {
		c.Pipeline.LeadLockWait = 5 * time.Second
	}
	if c.Pipeline.CreditsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("CREDITS_PER_MINUTE must not be negative, got %d", c.Pipeline.CreditsPerMinute))
	} else if c.Pipeline.CreditsPerMinute == 0 {
		c.Pipeline.CreditsPerMinute = 1
	}

	return joinErrors(errs)
}

// WorkflowLocation resolves the workflow time zone, falling back to UTC.
func (c Config) WorkflowLocation() *time.Location {
	loc, err := time.LoadLocation(c.Pipeline.WorkflowTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

func optionalInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
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
