package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: RELOCATE_[SECTION]_[KEY] (e.g., RELOCATE_RUN_WORKERS).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Project.Root, "RELOCATE_PROJECT_ROOT")

	setEnvString(&cfg.Move.Alias, "RELOCATE_MOVE_ALIAS")
	if val, ok := os.LookupEnv("RELOCATE_MOVE_AUTOMOVE"); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", "RELOCATE_MOVE_AUTOMOVE", "value", val)
			cfg.Move.Automove = &b
		}
	}

	setEnvInt(&cfg.Run.Workers, "RELOCATE_RUN_WORKERS")
	setEnvBool(&cfg.Run.DryRun, "RELOCATE_RUN_DRY_RUN")

	setEnvString(&cfg.Log.Level, "RELOCATE_LOG_LEVEL")

	setEnvString(&cfg.Observability.MetricsFile, "RELOCATE_OBSERVABILITY_METRICS_FILE")
	setEnvString(&cfg.Observability.OTLPEndpoint, "RELOCATE_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}
