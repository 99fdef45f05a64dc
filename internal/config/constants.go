package config

// Constants defining default values for application configuration
const (
	DefaultDBPath = "./hn.db"

	DefaultBaseURL = "https://news.ycombinator.com"

	DefaultServerPort = 3001
	DefaultServerHost = "" // Empty string means all interfaces

	// The site lists a fixed number of stories per page; global rank is
	// reconstructed from this.
	DefaultPageSize = 30

	DefaultMaxPages         = 5
	DefaultPageDelaySec     = 2 // Seconds between listing page fetches
	DefaultClassifyDelaySec = 2 // Seconds between classification calls
	DefaultBatchSize        = 10

	DefaultRefreshMinutes     = 5  // Single-page freshness refresh
	DefaultFullRefreshMinutes = 30 // Full multi-page refresh

	DefaultWindowDays    = 4
	DefaultReferenceZone = "America/New_York"

	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel    = "gemini-2.0-flash"

	DefaultLogLevel = "debug"
)
