package authapi

import (
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	// MaxBodyBytes bounds request bodies before JSON decoding.
	MaxBodyBytes int64

	// OpenRegistration exposes POST /auth/register. Deployments that
	// provision users out of band can turn it off.
	OpenRegistration bool
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes:     envInt64("TRAQ_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		OpenRegistration: envBool("TRAQ_AUTH_OPEN_REGISTRATION", true),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
