package config

// DefaultConfig returns the built-in configuration: a general-purpose
// domain set and the scheduler/retry defaults used throughout the engine.
func DefaultConfig() *Config {
	return &Config{
		ValidDomains: []string{"general", "backend", "frontend", "data", "testing", "infra"},
		Scheduler: SchedulerConfig{
			TickIntervalMS:         1000,
			ConcurrencyLimit:       4,
			MaxRetries:             3,
			LowConfidenceThreshold: 0.65,
			MinResultConfidence:    0.6,
			DispatchTimeoutMS:      120000,
		},
		Retry: RetryConfig{
			InitialIntervalMS:   100,
			MaxIntervalMS:       2000,
			MaxElapsedTimeMS:    5000,
			Multiplier:          2.0,
			RandomizationFactor: 0.5,
		},
		Resources:   map[string]ResourceConfig{},
		Persistence: PersistenceConfig{Enabled: false},
	}
}
