package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Session    SessionConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	Google     GoogleConfig
	Billing    BillingConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	BaseURL        string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver     string // postgres or sqlite
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	Enabled  bool
}

type SessionConfig struct {
	Secret    string
	TTLHours  int
	Secure    bool
	CookieKey string
}

type EncryptionConfig struct {
	Key string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

type GoogleConfig struct {
	AuthMode              string // google or dev
	PlatformClientID      string
	PlatformClientSecret  string
	RedirectPath          string
	ArchiveBucket         string
	ArchiveCredentialFile string
	RequestTimeoutSeconds int
}

type BillingConfig struct {
	Provider string // none or manual
}

type LogConfig struct {
	File string
}

func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s *SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

// RedirectURL is the absolute OAuth callback registered with Google.
func (g *GoogleConfig) RedirectURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + g.RedirectPath
}

func (g *GoogleConfig) RequestTimeout() time.Duration {
	return time.Duration(g.RequestTimeoutSeconds) * time.Second
}

// HasPlatformCredentials reports whether the managed_api tier can fall back
// to platform-owned OAuth client credentials.
func (g *GoogleConfig) HasPlatformCredentials() bool {
	return g.PlatformClientID != "" && g.PlatformClientSecret != ""
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 5000)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("SERVER_BASE_URL", "http://localhost:5000")
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "projectflow")
	v.SetDefault("DATABASE_PASSWORD", "projectflow_secret")
	v.SetDefault("DATABASE_NAME", "projectflow")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_SQLITE_PATH", "projectflow.db")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("SESSION_SECRET", "change-me-in-production")
	v.SetDefault("SESSION_TTL_HOURS", 24*7)
	v.SetDefault("SESSION_SECURE", false)
	v.SetDefault("SESSION_COOKIE_NAME", "pf_session")
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("GOOGLE_AUTH_MODE", "google")
	v.SetDefault("GOOGLE_REDIRECT_PATH", "/api/auth/callback")
	v.SetDefault("GOOGLE_REQUEST_TIMEOUT_SECONDS", 15)
	v.SetDefault("BILLING_PROVIDER", "none")

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			BaseURL:        v.GetString("SERVER_BASE_URL"),
			AllowedOrigins: splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Driver:     v.GetString("DATABASE_DRIVER"),
			Host:       v.GetString("DATABASE_HOST"),
			Port:       v.GetInt("DATABASE_PORT"),
			User:       v.GetString("DATABASE_USER"),
			Password:   v.GetString("DATABASE_PASSWORD"),
			Name:       v.GetString("DATABASE_NAME"),
			SSLMode:    v.GetString("DATABASE_SSLMODE"),
			SQLitePath: v.GetString("DATABASE_SQLITE_PATH"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			Enabled:  v.GetBool("REDIS_ENABLED"),
		},
		Session: SessionConfig{
			Secret:    v.GetString("SESSION_SECRET"),
			TTLHours:  v.GetInt("SESSION_TTL_HOURS"),
			Secure:    v.GetBool("SESSION_SECURE"),
			CookieKey: v.GetString("SESSION_COOKIE_NAME"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Google: GoogleConfig{
			AuthMode:              v.GetString("GOOGLE_AUTH_MODE"),
			PlatformClientID:      v.GetString("GOOGLE_PLATFORM_CLIENT_ID"),
			PlatformClientSecret:  v.GetString("GOOGLE_PLATFORM_CLIENT_SECRET"),
			RedirectPath:          v.GetString("GOOGLE_REDIRECT_PATH"),
			ArchiveBucket:         v.GetString("GOOGLE_ARCHIVE_BUCKET"),
			ArchiveCredentialFile: v.GetString("GOOGLE_ARCHIVE_CREDENTIALS_FILE"),
			RequestTimeoutSeconds: v.GetInt("GOOGLE_REQUEST_TIMEOUT_SECONDS"),
		},
		Billing: BillingConfig{
			Provider: v.GetString("BILLING_PROVIDER"),
		},
		Log: LogConfig{
			File: v.GetString("LOG_FILE"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	switch c.Google.AuthMode {
	case "google", "dev":
	default:
		return fmt.Errorf("unsupported GOOGLE_AUTH_MODE %q", c.Google.AuthMode)
	}
	switch c.Billing.Provider {
	case "none", "manual":
	default:
		return fmt.Errorf("unsupported BILLING_PROVIDER %q", c.Billing.Provider)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
