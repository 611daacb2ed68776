package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Server.Env)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "google", cfg.Google.AuthMode)
	assert.Equal(t, "none", cfg.Billing.Provider)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL())
	assert.Equal(t, "http://localhost:5000/api/auth/callback", cfg.Google.RedirectURL(cfg.Server.BaseURL))
	assert.False(t, cfg.Google.HasPlatformCredentials())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_SQLITE_PATH", "/tmp/pf.db")
	t.Setenv("GOOGLE_AUTH_MODE", "dev")
	t.Setenv("BILLING_PROVIDER", "manual")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/pf.db", cfg.Database.DSN())
	assert.Equal(t, "dev", cfg.Google.AuthMode)
	assert.Equal(t, "manual", cfg.Billing.Provider)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestLoad_RejectsUnknownBackends(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"DATABASE_DRIVER", "mysql"},
		{"GOOGLE_AUTH_MODE", "replit"},
		{"BILLING_PROVIDER", "stripe"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_PostgresDSN(t *testing.T) {
	d := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", d.DSN())
}
