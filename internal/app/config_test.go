package app

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "too-short")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://inventory.example.com,https://procurement.example.com")
	t.Setenv("JWT_TTL", "2h")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 2*time.Hour, cfg.JWTTTL)
	require.Equal(t, []string{"https://inventory.example.com", "https://procurement.example.com"}, cfg.CORSAllowedOrigins)
	require.False(t, cfg.IsProduction())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel(&Config{LogLevel: "DEBUG"}))
	require.Equal(t, slog.LevelInfo, parseLevel(nil))
	require.Equal(t, slog.LevelWarn, parseLevel(&Config{LogLevel: "warn"}))
}

func TestRefreshTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}
