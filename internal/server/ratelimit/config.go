package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Exact path, or a prefix when it ends in "/"
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window; 0 means unlimited
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig loads rate limiting configuration from environment variables:
// RATE_LIMIT_ENABLED, RATE_LIMIT_DEFAULT_LIMIT, RATE_LIMIT_DEFAULT_WINDOW,
// RATE_LIMIT_CLEANUP_INTERVAL, RATE_LIMIT_WHITELIST, RATE_LIMIT_BLACKLIST and
// RATE_LIMIT_STEP_LIMIT (step mutations per minute).
func LoadConfig() *Config {
	if !envOr("RATE_LIMIT_ENABLED", true, strconv.ParseBool) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    envOr("RATE_LIMIT_DEFAULT_LIMIT", 1000, strconv.Atoi),
		DefaultWindow:   envOr("RATE_LIMIT_DEFAULT_WINDOW", time.Minute, time.ParseDuration),
		CleanupInterval: envOr("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute, time.ParseDuration),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: DefaultEndpointConfigs(envOr("RATE_LIMIT_STEP_LIMIT", 300, strconv.Atoi)),
	}
}

// DefaultEndpointConfigs returns the onboarding tiers. stepLimit is the
// per-minute allowance for step mutations, transitions and submission.
func DefaultEndpointConfigs(stepLimit int) []EndpointConfig {
	return []EndpointConfig{
		// Opening and deleting applications
		{Path: "/applications", Method: "POST", Limit: 30, Window: time.Minute, Burst: 5},
		{Path: "/applications/", Method: "DELETE", Limit: 30, Window: time.Minute, Burst: 5},

		// Step mutations arrive in bursts while a form is filled in
		{Path: "/applications/", Method: "POST", Limit: stepLimit, Window: time.Minute, Burst: max(stepLimit/10, 1)},

		// Reads use the default limit; /health and /registry are exempt in MatchEndpoint
	}
}

// envOr parses the environment variable key, falling back to def when it is
// unset or does not parse.
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

// parseIPList parses a comma-separated list of client ids into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
