package config

import (
	"runtime"
)

// DefaultFileName is looked up in the project root when no --config is given.
const DefaultFileName = "relocate.toml"

type Config struct {
	Version       int           `toml:"version"`
	Project       Project       `toml:"project"`
	Move          Move          `toml:"move"`
	Run           Run           `toml:"run"`
	Log           Log           `toml:"log"`
	Observability Observability `toml:"observability"`
}

type Project struct {
	Root string `toml:"root"`
	// SourceRoots are the directories module paths are computed from.
	SourceRoots []string `toml:"source_roots"`
	Exclude     Exclude  `toml:"exclude"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Move struct {
	// Alias is one of auto, from, none, relative, or a literal local name.
	Alias       string   `toml:"alias"`
	Automove    *bool    `toml:"automove"`
	KeepMarkers []string `toml:"keep_markers"`
}

type Run struct {
	Workers int  `toml:"workers"`
	DryRun  bool `toml:"dry_run"`
	Diff    bool `toml:"diff"`
}

type Log struct {
	Level string `toml:"level"`
}

type Observability struct {
	MetricsFile  string `toml:"metrics_file"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// AutomoveEnabled reports whether definitions are relocated along with references.
func (c *Config) AutomoveEnabled() bool {
	return c.Move.Automove == nil || *c.Move.Automove
}

func defaultWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}
