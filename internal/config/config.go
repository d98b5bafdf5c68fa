// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration. It is loaded once at startup and
// passed into component constructors.
type Config struct {
	LogLevel  string          `envconfig:"LOG_LEVEL" default:"info"`
	Server    ServerConfig    `ignored:"true"`
	Database  DatabaseConfig  `ignored:"true"`
	Auth      AuthConfig      `ignored:"true"`
	Mail      MailConfig      `ignored:"true"`
	Events    EventsConfig    `ignored:"true"`
	RateLimit RateLimitConfig `ignored:"true"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	ReadTimeout        time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout       time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	CORSAllowedOrigins string        `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds PostgreSQL connection settings. Variable names follow
// the libpq PG* convention.
type DatabaseConfig struct {
	Host           string        `envconfig:"PGHOST" default:"localhost"`
	Port           int           `envconfig:"PGPORT" default:"5432"`
	User           string        `envconfig:"PGUSER" default:"postgres"`
	Password       string        `envconfig:"PGPASSWORD"`
	DBName         string        `envconfig:"PGDATABASE" default:"postgres"`
	SSLMode        string        `envconfig:"PGSSLMODE" default:"require"`
	ConnectTimeout time.Duration `envconfig:"PG_CONNECT_TIMEOUT" default:"5s"`
	QueryTimeout   time.Duration `envconfig:"DB_QUERY_TIMEOUT" default:"10s"`
}

// AuthConfig selects and configures the identity verifier.
type AuthConfig struct {
	Mode              string `envconfig:"AUTH_MODE" default:"supabase"`
	SupabaseURL       string `envconfig:"SUPABASE_URL"`
	SupabaseAnonKey   string `envconfig:"SUPABASE_ANON_KEY"`
	JWTSecret         string `envconfig:"SUPABASE_JWT_SECRET"`
	EnforcePartyCheck bool   `envconfig:"ENFORCE_PARTY_CHECK" default:"false"`
}

// MailConfig holds Microsoft Graph mail settings.
type MailConfig struct {
	TenantID     string `envconfig:"M365_TENANT_ID"`
	ClientID     string `envconfig:"M365_CLIENT_ID"`
	ClientSecret string `envconfig:"M365_CLIENT_SECRET"`
	FromUser     string `envconfig:"M365_FROM_USER"`
	TokenURL     string `envconfig:"M365_TOKEN_URL"`
	GraphBaseURL string `envconfig:"GRAPH_BASE_URL" default:"https://graph.microsoft.com/v1.0"`
	Brand        string `envconfig:"MAIL_BRAND" default:"DiveInSTEAM"`
}

// Enabled reports whether enough is configured to send real mail.
func (m MailConfig) Enabled() bool {
	return m.TenantID != "" && m.ClientID != "" && m.ClientSecret != "" && m.FromUser != ""
}

// ResolvedTokenURL returns the OAuth2 token endpoint for the tenant unless
// an explicit override is configured.
func (m MailConfig) ResolvedTokenURL() string {
	if m.TokenURL != "" {
		return m.TokenURL
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(m.TenantID))
}

// EventsConfig holds RabbitMQ settings. An empty URL disables publishing.
type EventsConfig struct {
	AMQPURL  string `envconfig:"AMQP_URL"`
	Exchange string `envconfig:"AMQP_EXCHANGE" default:"booking.exchange"`
}

// RateLimitConfig holds Redis rate limiter settings. An empty address
// disables limiting.
type RateLimitConfig struct {
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	Requests      int           `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`
	Window        time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DSN builds a libpq keyword/value connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		c.Host, c.Port, c.User, quote(c.Password), c.DBName, c.SSLMode, int(c.ConnectTimeout.Seconds()),
	)
}

// quote escapes a libpq value so passwords with spaces or quotes survive.
func quote(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Load reads configuration from the environment, with an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	// Sections are processed one by one so nested fields keep their bare
	// variable names instead of SERVER_PORT style prefixes.
	var cfg Config
	sections := []any{&cfg, &cfg.Server, &cfg.Database, &cfg.Auth, &cfg.Mail, &cfg.Events, &cfg.RateLimit}
	for _, s := range sections {
		if err := envconfig.Process("", s); err != nil {
			return nil, fmt.Errorf("process env: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Auth.Mode {
	case "supabase", "jwt":
	default:
		return fmt.Errorf("AUTH_MODE must be supabase or jwt, got %q", c.Auth.Mode)
	}
	if c.RateLimit.Requests < 1 {
		c.RateLimit.Requests = 1
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	return nil
}
