// Package config reads process configuration from the environment once at startup.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultCatalogDSN        = "lifestory.db"
	defaultRedisAddr         = "localhost:6379"
	defaultSessionTTLMinutes = 24 * 60
	defaultTraceLogPath      = "/tmp/lifestory/trace.log"
	defaultProvider          = "primary"
)

type Config struct {
	StateTable   string
	ParamPrefix  string
	CatalogDSN   string
	RedisAddr    string
	SessionTTL   time.Duration
	TraceLogPath string
	LLMProvider  string
	LogLevel     slog.Level
}

// Load reads the environment. STATE_TABLE and PARAM_PREFIX are required.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	var missing []string
	mustEnv := func(key string) string {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		StateTable:   mustEnv("STATE_TABLE"),
		ParamPrefix:  strings.TrimRight(mustEnv("PARAM_PREFIX"), "/"),
		CatalogDSN:   envString(getenv, "CATALOG_DSN", defaultCatalogDSN),
		RedisAddr:    envString(getenv, "REDIS_ADDR", defaultRedisAddr),
		SessionTTL:   time.Duration(envInt(getenv, "SESSION_TTL_MINUTES", defaultSessionTTLMinutes)) * time.Minute,
		TraceLogPath: envString(getenv, "TRACE_LOG_PATH", defaultTraceLogPath),
		LLMProvider:  envString(getenv, "LLM_PROVIDER", defaultProvider),
		LogLevel:     envLevel(getenv, "LOG_LEVEL", slog.LevelInfo),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: required environment variables not set: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func envString(getenv func(string) string, key, def string) string {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(getenv func(string) string, key string, def int) int {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envLevel(getenv func(string) string, key string, def slog.Level) slog.Level {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return def
	}
	return lvl
}
