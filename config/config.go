package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	API      APIConfig
	Auth     AuthConfig
	Stripe   StripeConfig
	MySQL    MySQLConfig
	Redis    RedisConfig
	Log      LogConfig
	Checkout CheckoutConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host               string
	Port               string
	CORSAllowedOrigins []string
}

type APIConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// AuthConfig configures the bearer token used when no end-user token is forwarded
// (CLI commands). Either StaticToken or client credentials may be set.
type AuthConfig struct {
	StaticToken  string
	IssuerURL    string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

type StripeConfig struct {
	SecretKey   string
	APIBaseURL  string
	HTTPTimeout time.Duration
}

// MySQLConfig is optional; an empty DSN disables the mismatch ledger.
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is optional; an empty Addr keeps tab state in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level string
}

type CheckoutConfig struct {
	SuccessRedirect string
	TabTTL          time.Duration
	FlowIdleTTL     time.Duration
}

type JobsConfig struct {
	MismatchReportInterval time.Duration
	BatchSize              int32
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	src := source{k: k}

	baseURL := strings.TrimSpace(src.get("BILLING_API_BASE_URL", ""))
	if baseURL == "" {
		return nil, errors.New("BILLING_API_BASE_URL environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: src.get("APP_SERVICE_NAME", "billing-bff"),
		},
		HTTP: ServerConfig{
			Host:               src.get("HTTP_HOST", "0.0.0.0"),
			Port:               src.get("HTTP_PORT", "8080"),
			CORSAllowedOrigins: src.list("HTTP_CORS_ALLOWED_ORIGINS"),
		},
		API: APIConfig{
			BaseURL:  baseURL,
			Timeout:  src.seconds("BILLING_API_TIMEOUT_SECONDS", 15*time.Second),
			CacheTTL: src.seconds("CACHE_TTL", 60*time.Second),
		},
		Auth: AuthConfig{
			StaticToken:  src.get("AUTH_STATIC_TOKEN", ""),
			IssuerURL:    src.get("AUTH_ISSUER_URL", ""),
			TokenURL:     src.get("AUTH_TOKEN_URL", ""),
			ClientID:     src.get("AUTH_CLIENT_ID", ""),
			ClientSecret: src.get("AUTH_CLIENT_SECRET", ""),
			Scopes:       src.list("AUTH_SCOPES"),
		},
		Stripe: StripeConfig{
			SecretKey:   src.get("STRIPE_SECRET_KEY", ""),
			APIBaseURL:  src.get("STRIPE_API_BASE_URL", ""),
			HTTPTimeout: src.seconds("STRIPE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		MySQL: MySQLConfig{
			DSN:             src.get("MYSQL_DSN", ""),
			MaxOpenConns:    src.int("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    src.int("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: src.minutes("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     src.get("REDIS_ADDR", ""),
			Password: src.get("REDIS_PASSWORD", ""),
			DB:       src.int("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level: src.get("LOG_LEVEL", "info"),
		},
		Checkout: CheckoutConfig{
			SuccessRedirect: src.get("CHECKOUT_SUCCESS_REDIRECT", "/account?payment=success"),
			TabTTL:          src.minutes("CHECKOUT_TAB_TTL_MINUTES", 12*time.Hour),
			FlowIdleTTL:     src.minutes("CHECKOUT_FLOW_IDLE_TTL_MINUTES", 30*time.Minute),
		},
		Jobs: JobsConfig{
			MismatchReportInterval: src.minutes("JOBS_MISMATCH_REPORT_INTERVAL_MINUTES", 15*time.Minute),
			BatchSize:              int32(src.int("JOBS_BATCH_SIZE", 100)),
		},
	}, nil
}

type source struct {
	k *koanf.Koanf
}

func (s source) get(key, defaultValue string) string {
	if value := s.k.String(key); value != "" {
		return value
	}
	return defaultValue
}

func (s source) int(key string, defaultValue int) int {
	if value := s.k.String(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func (s source) minutes(key string, defaultValue time.Duration) time.Duration {
	if value := s.k.String(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

// seconds accepts a bare number of seconds or a Go duration ("90s", "2m").
func (s source) seconds(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(s.k.String(key))
	if value == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func (s source) list(key string) []string {
	value := s.k.String(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
