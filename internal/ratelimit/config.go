package ratelimit

import (
	"time"

	"gopkg.in/yaml.v3"
)

// unsetRetries marks a YAML entry that did not name max_retries, so an
// explicit zero is kept.
const unsetRetries = -1

// Config holds rate limiter configuration.
type Config struct {
	Strategy          Strategy      `yaml:"strategy" json:"strategy"`
	RequestsPerSec    float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	FixedDelay        time.Duration `yaml:"fixed_delay" json:"fixed_delay"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" json:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
}

// UnmarshalYAML decodes an entry, keeping max_retries: 0 distinct from an
// absent key.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type plain Config
	p := plain{MaxRetries: unsetRetries}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Config(p)
	return nil
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:          StrategyTokenBucket,
		RequestsPerSec:    3.0,
		Burst:             3,
		FixedDelay:        1 * time.Second,
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// DefaultSourceConfigs returns the limits published by each upstream service.
func DefaultSourceConfigs() SourceConfigs {
	hgnc := DefaultConfig()
	hgnc.RequestsPerSec = 10
	hgnc.Burst = 10

	mygene := DefaultConfig()
	mygene.RequestsPerSec = 10
	mygene.Burst = 5

	// The public BERN2 endpoint is a shared GPU box.
	bern2 := DefaultConfig()
	bern2.Strategy = StrategyFixedDelay
	bern2.FixedDelay = 500 * time.Millisecond
	bern2.MaxBackoff = 30 * time.Second

	return SourceConfigs{RateLimits: map[string]Config{
		"bioc":   DefaultConfig(),
		"bern2":  bern2,
		"hgnc":   hgnc,
		"mygene": mygene,
	}}
}

func applyDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = def.RequestsPerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	if cfg.FixedDelay <= 0 {
		cfg.FixedDelay = def.FixedDelay
	}
	return cfg
}
