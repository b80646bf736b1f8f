package config

import (
	"fmt"
	"strings"

	"relocate/internal/core/errors"

	"github.com/gobwas/glob"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return errors.Newf(errors.CodeValidationError, "unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateMove(cfg *Config) error {
	alias := strings.TrimSpace(cfg.Move.Alias)
	if !ValidAlias(alias) {
		return errors.Newf(errors.CodeValidationError, "move.alias must be auto, from, none, relative or a python identifier, got %q", cfg.Move.Alias)
	}
	for i, marker := range cfg.Move.KeepMarkers {
		if strings.TrimSpace(marker) == "" {
			return errors.Newf(errors.CodeValidationError, "move.keep_markers[%d] must not be empty", i)
		}
	}
	return nil
}

func validateRun(cfg *Config) error {
	if cfg.Run.Workers > 1024 {
		return errors.Newf(errors.CodeValidationError, "run.workers must be <= 1024, got %d", cfg.Run.Workers)
	}
	return nil
}

func validateLog(cfg *Config) error {
	if !validLogLevels[strings.ToLower(strings.TrimSpace(cfg.Log.Level))] {
		return errors.Newf(errors.CodeValidationError, "log.level must be one of debug, info, warn, error, got %q", cfg.Log.Level)
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for _, group := range []struct {
		name     string
		patterns []string
	}{
		{"project.exclude.dirs", cfg.Project.Exclude.Dirs},
		{"project.exclude.files", cfg.Project.Exclude.Files},
	} {
		for i, pattern := range group.patterns {
			if _, err := glob.Compile(pattern); err != nil {
				return errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("%s[%d] is not a valid glob %q", group.name, i, pattern))
			}
		}
	}
	return nil
}

// IsAliasMode reports whether value names one of the built-in alias modes.
func IsAliasMode(value string) bool {
	switch value {
	case "auto", "from", "none", "relative":
		return true
	}
	return false
}

// ValidAlias accepts a built-in alias mode or a python identifier.
func ValidAlias(value string) bool {
	return IsAliasMode(value) || isIdentifier(value)
}

func isIdentifier(value string) bool {
	if value == "" {
		return false
	}
	for i, r := range value {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
