package config

import (
	"os"
	"path/filepath"
	"strings"

	"relocate/internal/core/errors"

	"github.com/BurntSushi/toml"
)

var (
	defaultExcludeDirs  = []string{".git", "__pycache__", ".venv", "venv", "node_modules", "genfiles", ".tox"}
	defaultKeepMarkers  = []string{"@nolint", "@unusedimport", "noqa"}
	defaultAliasMode    = "auto"
	defaultLogLevel     = "info"
	defaultServiceName  = "relocate"
	defaultSourceRoots  = []string{"."}
	defaultConfigSearch = []string{DefaultFileName, filepath.Join(".config", DefaultFileName)}
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "decode config"), errors.CtxPath, path)
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateMove(&cfg); err != nil {
		return nil, err
	}
	if err := validateRun(&cfg); err != nil {
		return nil, err
	}
	if err := validateLog(&cfg); err != nil {
		return nil, err
	}
	if err := validateExclude(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromDir loads the first config file found under dir, or defaults.
func LoadFromDir(dir string) (*Config, string, error) {
	for _, name := range defaultConfigSearch {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			cfg, err := Load(candidate)
			return cfg, candidate, err
		}
	}
	cfg := Default()
	ApplyEnvOverrides(cfg)
	return cfg, "", nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if len(cfg.Project.SourceRoots) == 0 {
		cfg.Project.SourceRoots = append([]string(nil), defaultSourceRoots...)
	}
	if cfg.Project.Exclude.Dirs == nil {
		cfg.Project.Exclude.Dirs = append([]string(nil), defaultExcludeDirs...)
	}

	if strings.TrimSpace(cfg.Move.Alias) == "" {
		cfg.Move.Alias = defaultAliasMode
	}
	if cfg.Move.KeepMarkers == nil {
		cfg.Move.KeepMarkers = append([]string(nil), defaultKeepMarkers...)
	}

	if cfg.Run.Workers <= 0 {
		cfg.Run.Workers = defaultWorkers()
	}

	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = defaultServiceName
	}
}
