// Package config loads the environment-driven settings this module
// needs: the debug admin bootstrap, the non-registered-user synthesis
// flag, and the ambient Redis/logging/metrics settings.
package config

import (
	"os"
	"strconv"
)

// Config is the process-wide configuration snapshot, loaded once at
// startup via FromEnv.
type Config struct {
	// AllowNonRegisteredUsers toggles synthesis of a default profile
	// for a signer with a known public key but no stored UserProfile.
	AllowNonRegisteredUsers bool `json:"allowNonRegisteredUsers"`

	// DevAdminPublicKey and DevAdminUserID back the debug-mode admin
	// recovery affordance. Both empty disables it.
	DevAdminPublicKey string `json:"devAdminPublicKey,omitempty"`
	DevAdminUserID    string `json:"devAdminUserId,omitempty"`

	RedisAddr string `json:"redisAddr"`
	RedisDB   int    `json:"redisDb"`

	// UseRedisReplay selects the anti-replay uniqueKey store: Redis-backed
	// when true, in-process when false (the demo CLI's default).
	UseRedisReplay bool `json:"useRedisReplay"`

	LogLevel string `json:"logLevel"`

	MetricsNamespace string `json:"metricsNamespace"`
}

// FromEnv loads Config from the process environment, applying the same
// defaults DefaultServiceConfigFromEnv historically has.
func FromEnv() *Config {
	return &Config{
		AllowNonRegisteredUsers: envBool("ALLOW_NON_REGISTERED_USERS", false),
		DevAdminPublicKey:       os.Getenv("DEV_ADMIN_PUBLIC_KEY"),
		DevAdminUserID:          os.Getenv("DEV_ADMIN_USER_ID"),
		RedisAddr:               envString("MSIG_REDIS_ADDR", "localhost:6379"),
		RedisDB:                 envInt("MSIG_REDIS_DB", 0),
		UseRedisReplay:          envBool("MSIG_REPLAY_USE_REDIS", false),
		LogLevel:                envString("MSIG_LOG_LEVEL", "info"),
		MetricsNamespace:        envString("MSIG_METRICS_NAMESPACE", "msig_auth"),
	}
}

// DefaultServiceConfigFromEnv is retained for callers migrating from
// the older name; it is exactly FromEnv.
func DefaultServiceConfigFromEnv() *Config {
	return FromEnv()
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}
