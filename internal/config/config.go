package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// Storage
	DBPath string

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string

	// Scrape settings
	BaseURL   string
	PageSize  int
	MaxPages  int
	PageDelay time.Duration

	// Periodic triggering
	AutoFetch           bool
	RefreshInterval     time.Duration // single-page freshness pass
	FullRefreshInterval time.Duration // multi-page pass

	// Categorization settings
	CategorizeEnabled bool
	GeminiAPIKey      string
	GeminiEndpoint    string
	GeminiModel       string
	BatchSize         int
	ClassifyDelay     time.Duration

	// Listing window
	WindowDays    int
	ReferenceZone string

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults,
// overlaid with values from the environment.
func DefaultConfig() *Config {
	logLevel := GetEnvLogLevel("HNPULSE_LOG_LEVEL", mustParseLevel(DefaultLogLevel))

	return &Config{
		DBPath:              GetEnvString("HNPULSE_DB_PATH", DefaultDBPath),
		ServerHost:          GetEnvString("HNPULSE_HOST", DefaultServerHost),
		ServerPort:          GetEnvInt("HNPULSE_PORT", DefaultServerPort),
		APIKey:              GetEnvString("HNPULSE_API_KEY", ""),
		BaseURL:             GetEnvString("HNPULSE_BASE_URL", DefaultBaseURL),
		PageSize:            DefaultPageSize,
		MaxPages:            GetEnvInt("HNPULSE_MAX_PAGES", DefaultMaxPages),
		PageDelay:           time.Duration(GetEnvInt("HNPULSE_PAGE_DELAY", DefaultPageDelaySec)) * time.Second,
		AutoFetch:           GetEnvBool("HNPULSE_AUTO_FETCH", true),
		RefreshInterval:     GetEnvDuration("HNPULSE_REFRESH_INTERVAL", time.Duration(DefaultRefreshMinutes)*time.Minute),
		FullRefreshInterval: GetEnvDuration("HNPULSE_FULL_REFRESH_INTERVAL", time.Duration(DefaultFullRefreshMinutes)*time.Minute),
		CategorizeEnabled:   GetEnvBool("HNPULSE_CATEGORIZE", false),
		GeminiAPIKey:        GetEnvString("GEMINI_API_KEY", ""),
		GeminiEndpoint:      GetEnvString("HNPULSE_GEMINI_ENDPOINT", DefaultGeminiEndpoint),
		GeminiModel:         GetEnvString("HNPULSE_GEMINI_MODEL", DefaultGeminiModel),
		BatchSize:           GetEnvInt("HNPULSE_BATCH_SIZE", DefaultBatchSize),
		ClassifyDelay:       time.Duration(GetEnvInt("HNPULSE_CLASSIFY_DELAY", DefaultClassifyDelaySec)) * time.Second,
		WindowDays:          GetEnvInt("HNPULSE_WINDOW_DAYS", DefaultWindowDays),
		ReferenceZone:       GetEnvString("HNPULSE_REFERENCE_ZONE", DefaultReferenceZone),
		LogLevel:            logLevel,
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// Location resolves the configured reference civil calendar zone used for
// the listing window. Falls back to UTC if the zone name is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReferenceZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func mustParseLevel(s string) zerolog.Level {
	level, _ := zerolog.ParseLevel(s)
	return level
}
