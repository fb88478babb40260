package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "test")
}

func TestServerConfig_Timeouts_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestServerConfig_Timeouts_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_READ_TIMEOUT", "30s")
	t.Setenv("SERVER_WRITE_TIMEOUT", "45s")
	t.Setenv("SERVER_IDLE_TIMEOUT", "120s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 30 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 45 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 120 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestServerConfig_Timeouts_InvalidDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	// Invalid duration should fall back to default
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout with invalid value: got %v, want %v", cfg.Server.ReadTimeout, 15*time.Second)
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	os.Unsetenv("JWT_SECRET")
	t.Setenv("DB_PASSWORD", "test")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_MissingDBPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Unsetenv("DB_PASSWORD")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_WeakSecretRejectedInProduction(t *testing.T) {
	t.Setenv("JWT_SECRET", "only-twenty-chars-ok")
	t.Setenv("DB_PASSWORD", "test")
	t.Setenv("ENV", "production")

	_, err := Load()

	assert.Error(t, err)
}

func TestSiteConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.Site.SiteAdmins)
	assert.Equal(t, []string{"editingteacher"}, cfg.Site.CourseContactRoles)
	assert.Empty(t, cfg.Site.HiddenUserFields)
	assert.Equal(t, "http://localhost", cfg.Site.WWWRoot)
	assert.True(t, cfg.Site.ManualEnrolEnabled)
	assert.Equal(t, 1000, cfg.Site.MaxPageSize)
	assert.Equal(t, "digitalis", cfg.Database.Name)
	assert.False(t, cfg.Database.AutoMigrate)
}

func TestSiteConfig_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SITE_ADMINS", "2, 5,,9")
	t.Setenv("COURSE_CONTACT_ROLES", "editingteacher,teacher")
	t.Setenv("HIDDEN_USER_FIELDS", "city, country")
	t.Setenv("WWWROOT", "https://lms.example.com/")
	t.Setenv("ENROL_MANUAL_ENABLED", "false")
	t.Setenv("LOOKUP_MAX_PAGE_SIZE", "200")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int64{2, 5, 9}, cfg.Site.SiteAdmins)
	assert.True(t, cfg.Site.IsSiteAdmin(5))
	assert.False(t, cfg.Site.IsSiteAdmin(3))
	assert.Equal(t, []string{"editingteacher", "teacher"}, cfg.Site.CourseContactRoles)
	assert.Equal(t, []string{"city", "country"}, cfg.Site.HiddenUserFields)
	assert.Equal(t, "https://lms.example.com", cfg.Site.WWWRoot)
	assert.False(t, cfg.Site.ManualEnrolEnabled)
	assert.Equal(t, 200, cfg.Site.MaxPageSize)
}

func TestSiteConfig_InvalidSiteAdmins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SITE_ADMINS", "2,admin")

	_, err := Load()

	assert.Error(t, err)
}

func TestServerConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := ServerConfig{LogLevel: tt.level}
		if got := cfg.SlogLevel(); got != tt.expected {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.expected)
		}
	}
}

func TestServerConfig_TrustedProxies(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.0.0/16,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, cfg.Server.TrustedProxies)
}
