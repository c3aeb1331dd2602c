package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// TokenValidity is the fixed lifetime of a bearer token.
	TokenValidity = 24 * time.Hour
	// OTPValidity is the fixed lifetime of an emailed one-time code.
	OTPValidity = 10 * time.Minute
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Email    EmailConfig
	OAuth    OAuthConfig
	Outbox   OutboxConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	MigrateOnStart    bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret                  string
	TokenExpiry                time.Duration
	OTPExpiry                  time.Duration
	TimingDelayBaseMs          int
	TimingDelayRandomMs        int
	AllowAdminSelfRegistration bool
	AuthRequestsPerMinute      int
}

type EmailConfig struct {
	Provider    string // "ses" or "log"
	AWSRegion   string
	FromAddress string
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	ClientURL          string
}

// GoogleEnabled reports whether federated login with Google is configured.
func (c OAuthConfig) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleCallbackURL != ""
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Retention    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "taskdesk"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			MigrateOnStart:    getEnvAsBool("DB_MIGRATE_ON_START", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "5000"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:                  jwtSecret,
			TokenExpiry:                TokenValidity,
			OTPExpiry:                  OTPValidity,
			TimingDelayBaseMs:          getEnvAsInt("AUTH_TIMING_DELAY_BASE_MS", 250),
			TimingDelayRandomMs:        getEnvAsInt("AUTH_TIMING_DELAY_RANDOM_MS", 100),
			AllowAdminSelfRegistration: getEnvAsBool("ALLOW_ADMIN_SELF_REGISTRATION", false),
			AuthRequestsPerMinute:      getEnvAsInt("AUTH_RATE_LIMIT_PER_MINUTE", 10),
		},
		Email: EmailConfig{
			Provider:    strings.ToLower(getEnv("EMAIL_PROVIDER", "log")),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			GoogleCallbackURL:  getEnv("GOOGLE_CALLBACK_URL", ""),
			ClientURL:          strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:3000"), "/"),
		},
		Outbox: OutboxConfig{
			PollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 15*time.Second),
			BatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 20),
			MaxAttempts:  getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 8),
			Retention:    getEnvAsDuration("OUTBOX_RETENTION", 7*24*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := validateEmail(&cfg.Email); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func validateEmail(c *EmailConfig) error {
	switch c.Provider {
	case "log":
		return nil
	case "ses":
		if c.FromAddress == "" {
			return fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_PROVIDER=ses")
		}
		return nil
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be one of ses, log (got %q)", c.Provider)
	}
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *ServerConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return parseList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5000",
		"http://127.0.0.1:5173",
	}
}
