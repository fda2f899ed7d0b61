package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: ATLAS_[SECTION]_[KEY] (e.g., ATLAS_GITHUB_TOKEN).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.GitHub.Token, "ATLAS_GITHUB_TOKEN")
	setEnvString(&cfg.GitHub.APIBase, "ATLAS_GITHUB_API_BASE")
	setEnvString(&cfg.GitHub.RawBase, "ATLAS_GITHUB_RAW_BASE")
	setEnvBool(&cfg.GitHub.UseArchive, "ATLAS_GITHUB_USE_ARCHIVE")

	setEnvString(&cfg.Cache.Dir, "ATLAS_CACHE_DIR")
	setEnvString(&cfg.Cache.Path, "ATLAS_CACHE_PATH")
	setEnvDuration(&cfg.Cache.TTL, "ATLAS_CACHE_TTL")
	setEnvInt64(&cfg.Cache.MaxBytes, "ATLAS_CACHE_MAX_BYTES")

	if val, ok := os.LookupEnv("ATLAS_PACING_EVERY_N"); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", "ATLAS_PACING_EVERY_N")
			cfg.Pacing.EveryN = &i
		}
	}

	setEnvString(&cfg.Server.Address, "ATLAS_SERVER_ADDRESS")
	setEnvString(&cfg.Server.ObservabilityAddress, "ATLAS_SERVER_OBSERVABILITY_ADDRESS")

	setEnvBool(&cfg.Observability.EnableTracing, "ATLAS_OBSERVABILITY_ENABLE_TRACING")
	setEnvString(&cfg.Observability.OTLPEndpoint, "ATLAS_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key)
		*target = val
	}
}

func setEnvInt64(target *int64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			slog.Debug("applying env override", "key", key)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key)
			*target = d
		}
	}
}
