// Package config is the layered configuration loader: built-in defaults,
// merged with an optional global file, merged with an optional
// project-local file (project wins), grounded on the teacher's
// internal/config/types.go + loader.go + defaults.go (aristath-orchestrator).
package config

// SchedulerConfig tunes the tick loop.
type SchedulerConfig struct {
	TickIntervalMS         int     `json:"tick_interval_ms"`
	ConcurrencyLimit       int     `json:"concurrency_limit"`
	MaxRetries             int     `json:"max_retries"`
	LowConfidenceThreshold float64 `json:"low_confidence_threshold"`
	MinResultConfidence    float64 `json:"min_result_confidence"`
	DispatchTimeoutMS      int     `json:"dispatch_timeout_ms"`
}

// RetryConfig tunes the resilience wrapper's exponential backoff.
type RetryConfig struct {
	InitialIntervalMS   int     `json:"initial_interval_ms"`
	MaxIntervalMS       int     `json:"max_interval_ms"`
	MaxElapsedTimeMS    int     `json:"max_elapsed_time_ms"`
	Multiplier          float64 `json:"multiplier"`
	RandomizationFactor float64 `json:"randomization_factor"`
}

// ResourceConfig declares one named resource's lease semantics.
type ResourceConfig struct {
	Mode     string `json:"mode"` // "exclusive" or "parallel"
	Capacity int    `json:"capacity"`
}

// PersistenceConfig configures the optional Performance Store.
type PersistenceConfig struct {
	Enabled bool   `json:"enabled"`
	DSN     string `json:"dsn"` // modernc.org/sqlite data source name
}

// Config is the engine's top-level configuration.
type Config struct {
	ValidDomains []string                  `json:"valid_domains"`
	Scheduler    SchedulerConfig           `json:"scheduler"`
	Retry        RetryConfig               `json:"retry"`
	Resources    map[string]ResourceConfig `json:"resources"`
	Persistence  PersistenceConfig         `json:"persistence"`
}

// DomainValidator returns a predicate over c.ValidDomains, suitable for
// injection into task.Store and agent.Registry.
func (c *Config) DomainValidator() func(domain string) bool {
	valid := make(map[string]bool, len(c.ValidDomains))
	for _, d := range c.ValidDomains {
		valid[d] = true
	}
	return func(domain string) bool { return valid[domain] }
}
