// Package config loads diffctx's run configuration in layers: defaults,
// then an optional .diffctx.yaml file, then environment-variable
// overrides, with CLI flags applied last by the caller.
//
// The core pipeline (fragment/graph/ppr/utility/selector) never reads a
// Config itself — it takes explicit parameters — so this package exists
// purely to get those parameters from disk/env/flags into the driver and
// CLI layers.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FileName is the project-level config file Load looks for.
const FileName = ".diffctx.yaml"

// Config holds the tunable parameters of a diff-context-selection run.
type Config struct {
	Budget       int     `yaml:"budget"`
	Alpha        float64 `yaml:"alpha"`
	Tau          float64 `yaml:"tau"`
	Full         bool    `yaml:"full"`
	NoContent    bool    `yaml:"no_content"`
	HubThreshold int     `yaml:"hub_threshold"`
	Output       string  `yaml:"output"`
}

// DefaultConfig returns diffctx's built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Budget:       50000,
		Alpha:        0.55,
		Tau:          0.0,
		Full:         false,
		NoContent:    false,
		HubThreshold: 6,
		Output:       "json",
	}
}

// Load reads path (typically .diffctx.yaml) over DefaultConfig, then
// applies DIFFCTX_* environment overrides. A missing file is not an
// error: it yields defaults plus any env overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies DIFFCTX_* environment variables over whatever
// Load has resolved so far. Only the CLI entry point calls Load; the core
// packages never read the environment themselves.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DIFFCTX_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Budget = n
		}
	}
	if v := os.Getenv("DIFFCTX_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Alpha = f
		}
	}
	if v := os.Getenv("DIFFCTX_TAU"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Tau = f
		}
	}
	if v := os.Getenv("DIFFCTX_FULL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Full = b
		}
	}
	if v := os.Getenv("DIFFCTX_NO_CONTENT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.NoContent = b
		}
	}
	if v := os.Getenv("DIFFCTX_HUB_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HubThreshold = n
		}
	}
	if v := os.Getenv("DIFFCTX_OUTPUT"); v != "" {
		c.Output = v
	}
}

// Validate rejects parameter combinations the selection pipeline cannot
// run with.
func (c *Config) Validate() error {
	if c.Alpha < 0 || c.Alpha >= 1 {
		return fmt.Errorf("config: alpha must be in [0, 1), got %v", c.Alpha)
	}
	if c.Tau < 0 {
		return fmt.Errorf("config: tau must be >= 0, got %v", c.Tau)
	}
	if c.Budget < 1 {
		return fmt.Errorf("config: budget must be >= 1, got %v", c.Budget)
	}
	return nil
}
