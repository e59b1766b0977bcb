package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths, in
// order of increasing precedence: defaults, global, project. Missing
// files are not errors; malformed JSON is.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}
	return cfg, nil
}

// LoadDefault loads from conventional paths: ~/.loc/config.json (global)
// and .loc/config.json (project, relative to cwd).
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	globalPath := filepath.Join(homeDir, ".loc", "config.json")
	projectPath := filepath.Join(".loc", "config.json")
	return Load(globalPath, projectPath)
}

// mergeConfigFile reads path as JSON and overlays non-zero fields onto
// base. A missing file is silently skipped.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(loaded.ValidDomains) > 0 {
		base.ValidDomains = mergeDomains(base.ValidDomains, loaded.ValidDomains)
	}
	mergeSchedulerConfig(&base.Scheduler, loaded.Scheduler)
	mergeRetryConfig(&base.Retry, loaded.Retry)
	for id, rc := range loaded.Resources {
		base.Resources[id] = rc
	}
	if loaded.Persistence.DSN != "" || loaded.Persistence.Enabled {
		base.Persistence = loaded.Persistence
	}

	return nil
}

func mergeDomains(base, overlay []string) []string {
	seen := make(map[string]bool, len(base))
	out := append([]string(nil), base...)
	for _, d := range base {
		seen[d] = true
	}
	for _, d := range overlay {
		if !seen[d] {
			out = append(out, d)
			seen[d] = true
		}
	}
	return out
}

func mergeSchedulerConfig(base *SchedulerConfig, overlay SchedulerConfig) {
	if overlay.TickIntervalMS != 0 {
		base.TickIntervalMS = overlay.TickIntervalMS
	}
	if overlay.ConcurrencyLimit != 0 {
		base.ConcurrencyLimit = overlay.ConcurrencyLimit
	}
	if overlay.MaxRetries != 0 {
		base.MaxRetries = overlay.MaxRetries
	}
	if overlay.LowConfidenceThreshold != 0 {
		base.LowConfidenceThreshold = overlay.LowConfidenceThreshold
	}
	if overlay.MinResultConfidence != 0 {
		base.MinResultConfidence = overlay.MinResultConfidence
	}
	if overlay.DispatchTimeoutMS != 0 {
		base.DispatchTimeoutMS = overlay.DispatchTimeoutMS
	}
}

func mergeRetryConfig(base *RetryConfig, overlay RetryConfig) {
	if overlay.InitialIntervalMS != 0 {
		base.InitialIntervalMS = overlay.InitialIntervalMS
	}
	if overlay.MaxIntervalMS != 0 {
		base.MaxIntervalMS = overlay.MaxIntervalMS
	}
	if overlay.MaxElapsedTimeMS != 0 {
		base.MaxElapsedTimeMS = overlay.MaxElapsedTimeMS
	}
	if overlay.Multiplier != 0 {
		base.Multiplier = overlay.Multiplier
	}
	if overlay.RandomizationFactor != 0 {
		base.RandomizationFactor = overlay.RandomizationFactor
	}
}
