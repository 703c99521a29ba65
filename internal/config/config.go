// Package config loads and validates mizan configuration.
// Configuration lives in .mizan/config.yaml; the empirically tuned world model
// constants (damping, thresholds, cache TTLs) are defaults here, not literals
// scattered through the engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all mizan configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// SQLite store configuration
	Store StoreConfig `yaml:"store"`

	// Framework ontology configuration
	Framework FrameworkConfig `yaml:"framework"`

	// World model engine configuration
	WorldModel WorldModelConfig `yaml:"world_model"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the SQLite knowledge store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	BusyTimeout  string `yaml:"busy_timeout"`
}

// FrameworkConfig configures the pillar/value ontology layer.
type FrameworkConfig struct {
	SeedPath  string `yaml:"seed_path"`  // YAML seed for pillars/values/mechanisms
	WatchSeed bool   `yaml:"watch_seed"` // re-seed on file change
}

// WorldModelConfig configures the causal reasoning engine.
// The numeric constants are tuned values, not derived ones; treat them as
// knobs with safe defaults.
type WorldModelConfig struct {
	// Cycle detection caps (bounded search, see worldmodel.DetectLoops)
	MaxCycles      int `yaml:"max_cycles"`
	MaxCycleLength int `yaml:"max_cycle_length"`
	MaxLoops       int `yaml:"max_loops"`

	// Intervention planner
	MaxTraceDepth int `yaml:"max_trace_depth"`
	MinPlanSteps  int `yaml:"min_plan_steps"`

	// Simulator
	MaxPropagationSteps int     `yaml:"max_propagation_steps"`
	DampingFactor       float64 `yaml:"damping_factor"`
	MinDeltaThreshold   float64 `yaml:"min_delta_threshold"`

	// Cache TTLs
	LoopCacheTTL  string `yaml:"loop_cache_ttl"`
	StatsCacheTTL string `yaml:"stats_cache_ttl"`
	QueryCacheTTL string `yaml:"query_cache_ttl"`

	// Plan builder targets
	TargetLoopCount         int `yaml:"target_loop_count"`
	TargetInterventionCount int `yaml:"target_intervention_count"`

	// Extra forbidden terms for the medical claims gate (merged with the
	// built-in list, never replacing it)
	ExtraForbiddenTerms []string `yaml:"extra_forbidden_terms"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "mizan",
		Version: "0.3.0",

		Store: StoreConfig{
			DatabasePath: "data/mizan.db",
			BusyTimeout:  "5s",
		},

		Framework: FrameworkConfig{
			SeedPath:  "data/framework.yaml",
			WatchSeed: false,
		},

		WorldModel: WorldModelConfig{
			MaxCycles:               200,
			MaxCycleLength:          6,
			MaxLoops:                50,
			MaxTraceDepth:           4,
			MinPlanSteps:            3,
			MaxPropagationSteps:     10,
			DampingFactor:           0.7,
			MinDeltaThreshold:       0.01,
			LoopCacheTTL:            "300s",
			StatsCacheTTL:           "600s",
			QueryCacheTTL:           "60s",
			TargetLoopCount:         3,
			TargetInterventionCount: 2,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "mizan.log",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults if the config file doesn't exist; env still applies.
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("MIZAN_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if path := os.Getenv("MIZAN_SEED"); path != "" {
		c.Framework.SeedPath = path
	}
	if level := os.Getenv("MIZAN_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	wm := c.WorldModel
	if wm.MaxCycles <= 0 {
		return fmt.Errorf("world_model.max_cycles must be positive, got %d", wm.MaxCycles)
	}
	if wm.MaxCycleLength < 2 {
		return fmt.Errorf("world_model.max_cycle_length must be >= 2, got %d", wm.MaxCycleLength)
	}
	if wm.MaxTraceDepth <= 0 {
		return fmt.Errorf("world_model.max_trace_depth must be positive, got %d", wm.MaxTraceDepth)
	}
	if wm.MaxPropagationSteps <= 0 {
		return fmt.Errorf("world_model.max_propagation_steps must be positive, got %d", wm.MaxPropagationSteps)
	}
	if wm.DampingFactor <= 0 || wm.DampingFactor > 1 {
		return fmt.Errorf("world_model.damping_factor must be in (0,1], got %v", wm.DampingFactor)
	}
	if wm.MinDeltaThreshold < 0 || wm.MinDeltaThreshold >= 1 {
		return fmt.Errorf("world_model.min_delta_threshold must be in [0,1), got %v", wm.MinDeltaThreshold)
	}
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path is required")
	}
	return nil
}

// GetLoopCacheTTL returns the loop cache TTL as a duration.
func (c *Config) GetLoopCacheTTL() time.Duration {
	return parseDurationOr(c.WorldModel.LoopCacheTTL, 300*time.Second)
}

// GetStatsCacheTTL returns the stats cache TTL as a duration.
func (c *Config) GetStatsCacheTTL() time.Duration {
	return parseDurationOr(c.WorldModel.StatsCacheTTL, 600*time.Second)
}

// GetQueryCacheTTL returns the keyed query cache TTL as a duration.
func (c *Config) GetQueryCacheTTL() time.Duration {
	return parseDurationOr(c.WorldModel.QueryCacheTTL, 60*time.Second)
}

// GetBusyTimeout returns the SQLite busy timeout as a duration.
func (c *Config) GetBusyTimeout() time.Duration {
	return parseDurationOr(c.Store.BusyTimeout, 5*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
