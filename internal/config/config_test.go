package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, DefaultDBPath, cfg.DBPath)
	require.Equal(t, DefaultBaseURL, cfg.BaseURL)
	require.Equal(t, DefaultPageSize, cfg.PageSize)
	require.Equal(t, DefaultWindowDays, cfg.WindowDays)
	require.Equal(t, DefaultReferenceZone, cfg.ReferenceZone)
	require.Equal(t, 2*time.Second, cfg.PageDelay)
	require.True(t, cfg.AutoFetch)
	require.False(t, cfg.CategorizeEnabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HNPULSE_PORT", "9999")
	t.Setenv("HNPULSE_MAX_PAGES", "2")
	t.Setenv("HNPULSE_CATEGORIZE", "true")
	t.Setenv("HNPULSE_REFRESH_INTERVAL", "90s")
	t.Setenv("HNPULSE_FULL_REFRESH_INTERVAL", "45")
	t.Setenv("HNPULSE_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	require.Equal(t, 9999, cfg.ServerPort)
	require.Equal(t, 2, cfg.MaxPages)
	require.True(t, cfg.CategorizeEnabled)
	require.Equal(t, 90*time.Second, cfg.RefreshInterval)
	// Unit-less interval values are read as minutes.
	require.Equal(t, 45*time.Minute, cfg.FullRefreshInterval)
	require.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("HNPULSE_PORT", "not-a-port")
	t.Setenv("HNPULSE_AUTO_FETCH", "maybe")
	t.Setenv("HNPULSE_LOG_LEVEL", "shouting")

	cfg := DefaultConfig()
	require.Equal(t, DefaultServerPort, cfg.ServerPort)
	require.True(t, cfg.AutoFetch)
	require.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
}

func TestListenAddr(t *testing.T) {
	cfg := &Config{ServerHost: "127.0.0.1", ServerPort: 3001}
	require.Equal(t, "127.0.0.1:3001", cfg.ListenAddr())
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{ReferenceZone: "America/New_York"}
	loc := cfg.Location()
	require.Equal(t, "America/New_York", loc.String())

	cfg.ReferenceZone = "Not/A_Zone"
	require.Equal(t, time.UTC, cfg.Location())
}
