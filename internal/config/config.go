package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	RedisAddr     string
	ClickHouseDSN string
	PostgresDSN   string
	GeoIPDB       string
	DebugTrace    bool
	ServiceName   string
	// ReloadInterval drives both the catalog refresh and the anti-targeting
	// resource poll.
	ReloadInterval time.Duration

	// Anti-targeting resource
	ComponentsDir                string
	AntiTargetingResourceID      string
	AntiTargetingManifestVersion string

	// Eligibility
	EligibilityStrategy string
	TopSegments         int
	HistoryMaxCount     int
	HistoryMaxDays      int
	AdEventRetention    time.Duration
	ProfileID           string

	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8787")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)
	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	// empty disables the analytics archive
	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "")
	cfg.PostgresDSN = getenv("POSTGRES_DSN", "postgres://postgres@127.0.0.1:5432/postgres?sslmode=disable")
	cfg.GeoIPDB = getenv("GEOIP_DB", "internal/geoip/testdata/geoip.json")
	cfg.DebugTrace = envBool("DEBUG_TRACE", false)
	cfg.ServiceName = getenv("SERVICE_NAME", "eligibleads")
	cfg.ReloadInterval = envDuration("RELOAD_INTERVAL", 30*time.Second)

	cfg.ComponentsDir = getenv("COMPONENTS_DIR", "components")
	cfg.AntiTargetingResourceID = getenv("ANTI_TARGETING_RESOURCE_ID", "anti-targeting")
	cfg.AntiTargetingManifestVersion = getenv("ANTI_TARGETING_MANIFEST_VERSION", "")

	cfg.EligibilityStrategy = getenv("ELIGIBILITY_STRATEGY", "tiered")
	cfg.TopSegments = envInt("TOP_SEGMENTS", 3)
	cfg.HistoryMaxCount = envInt("HISTORY_MAX_COUNT", 5000)
	cfg.HistoryMaxDays = envInt("HISTORY_MAX_DAYS", 30)
	// frequency windows reach back 28 days; keep a little more than that
	cfg.AdEventRetention = envDuration("AD_EVENT_RETENTION", 90*24*time.Hour)
	cfg.ProfileID = getenv("PROFILE_ID", "default")

	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration accepts a duration string ("5s") or a number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func envBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}

func envInt(key string, def int) int {
	if i, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return i
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return def
}
