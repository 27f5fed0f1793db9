package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json", "text" or "pretty"

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// DatabaseURL empty means the volatile in-memory store with demo seeds.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBSchema    string

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("TRAQ_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("TRAQ_LOG_LEVEL", "info"),
		LogFormat: EnvString("TRAQ_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("TRAQ_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("TRAQ_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("TRAQ_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("TRAQ_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("TRAQ_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("TRAQ_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("TRAQ_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("TRAQ_DB_MIN_CONNS", 0),
		DBSchema:    EnvString("TRAQ_DB_SCHEMA", "traq"),

		ReadinessRequireDB: EnvBool("TRAQ_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvStrings("TRAQ_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("TRAQ_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("TRAQ_CORS_MAX_AGE_SECONDS", 600),
	}
}
