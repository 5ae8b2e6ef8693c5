// Package config loads the extractor configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkoziy/genome/extractor/internal/errs"
	"github.com/mkoziy/genome/extractor/internal/ratelimit"
	"github.com/mkoziy/genome/extractor/internal/sources/bern2"
	"github.com/mkoziy/genome/extractor/internal/sources/bioc"
	"github.com/mkoziy/genome/extractor/internal/sources/hgnc"
	"github.com/mkoziy/genome/extractor/internal/sources/mygene"
)

// DefaultPMID is the article processed when none is given.
const DefaultPMID = "38790019"

// Parse error policies.
const (
	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

// Config is the full extractor configuration.
type Config struct {
	PMID     string   `yaml:"pmid"`
	Sources  Sources  `yaml:"sources"`
	Pipeline Pipeline `yaml:"pipeline"`
	Database Database `yaml:"database"`
	Cache    Cache    `yaml:"cache"`
	Graph    Graph    `yaml:"graph"`
	Log      Log      `yaml:"log"`
	Metrics  Metrics  `yaml:"metrics"`

	ratelimit.SourceConfigs `yaml:",inline"`
}

// Source locates one upstream service.
type Source struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Sources struct {
	BioC   Source `yaml:"bioc"`
	BERN2  Source `yaml:"bern2"`
	HGNC   Source `yaml:"hgnc"`
	MyGene Source `yaml:"mygene"`
}

type Pipeline struct {
	AnnotationWorkers int           `yaml:"annotation_workers"`
	ValidationWorkers int           `yaml:"validation_workers"`
	GeneTimeout       time.Duration `yaml:"gene_timeout"`
	ParseErrorPolicy  string        `yaml:"parse_error_policy"`
	MemoSize          int           `yaml:"memo_size"`
}

type Database struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

// Cache selects the stage cache backend. RedisURL takes precedence over Dir.
type Cache struct {
	Dir      string        `yaml:"dir"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// Graph enables the neo4j export when URI is set.
type Graph struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Metrics struct {
	File string `yaml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		PMID: DefaultPMID,
		Sources: Sources{
			BioC:   Source{BaseURL: bioc.DefaultBaseURL, Timeout: 30 * time.Second},
			BERN2:  Source{BaseURL: bern2.DefaultBaseURL, Timeout: 120 * time.Second},
			HGNC:   Source{BaseURL: hgnc.DefaultBaseURL, Timeout: 30 * time.Second},
			MyGene: Source{BaseURL: mygene.DefaultBaseURL, Timeout: 30 * time.Second},
		},
		Pipeline: Pipeline{
			AnnotationWorkers: 4,
			ValidationWorkers: 4,
			GeneTimeout:       60 * time.Second,
			ParseErrorPolicy:  PolicyAbort,
			MemoSize:          1024,
		},
		Database: Database{DSN: "file:genes.db"},
		Cache:    Cache{Dir: ".cache", TTL: 7 * 24 * time.Hour},
		Log:      Log{Level: "info", Format: "text"},

		SourceConfigs: ratelimit.DefaultSourceConfigs(),
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, &errs.ConfigError{Path: path, Err: err}
		default:
			if err := Parse(data, cfg); err != nil {
				return nil, &errs.ConfigError{Path: path, Err: err}
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, &errs.ConfigError{Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &errs.ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Keys absent from data keep their value; rate
// limits are merged per source and defaulted as they are loaded.
func Parse(data []byte, cfg *Config) error {
	defaults := cfg.RateLimits
	cfg.RateLimits = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}

	loaded, err := ratelimit.LoadSourceConfigs(data)
	if err != nil {
		return fmt.Errorf("decode rate_limits: %w", err)
	}
	merged := make(map[string]ratelimit.Config, len(defaults)+len(loaded.RateLimits))
	for name, rl := range defaults {
		merged[name] = rl
	}
	for name, rl := range loaded.RateLimits {
		merged[name] = rl
	}
	cfg.RateLimits = merged
	return nil
}

// Validate rejects values no run could use.
func (c *Config) Validate() error {
	if c.PMID == "" {
		return errors.New("pmid is required")
	}
	switch c.Pipeline.ParseErrorPolicy {
	case PolicyAbort, PolicySkip:
	default:
		return fmt.Errorf("parse_error_policy must be %q or %q, got %q", PolicyAbort, PolicySkip, c.Pipeline.ParseErrorPolicy)
	}
	if c.Pipeline.AnnotationWorkers <= 0 || c.Pipeline.ValidationWorkers <= 0 {
		return errors.New("worker counts must be positive")
	}
	if c.Pipeline.GeneTimeout <= 0 {
		return errors.New("gene_timeout must be positive")
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.PMID = getenv("EXTRACTOR_PMID", c.PMID)
	c.Database.DSN = getenv("EXTRACTOR_DB_DSN", c.Database.DSN)
	c.Cache.Dir = getenv("EXTRACTOR_CACHE_DIR", c.Cache.Dir)
	c.Cache.RedisURL = getenv("EXTRACTOR_REDIS_URL", c.Cache.RedisURL)
	c.Graph.URI = getenv("EXTRACTOR_NEO4J_URI", c.Graph.URI)
	c.Graph.User = getenv("EXTRACTOR_NEO4J_USER", c.Graph.User)
	c.Graph.Password = getenv("EXTRACTOR_NEO4J_PASSWORD", c.Graph.Password)
	c.Log.Level = getenv("EXTRACTOR_LOG_LEVEL", c.Log.Level)
	c.Sources.BERN2.BaseURL = getenv("EXTRACTOR_BERN2_URL", c.Sources.BERN2.BaseURL)

	var err error
	if c.Pipeline.AnnotationWorkers, err = getenvInt("EXTRACTOR_ANNOTATION_WORKERS", c.Pipeline.AnnotationWorkers); err != nil {
		return err
	}
	if c.Pipeline.ValidationWorkers, err = getenvInt("EXTRACTOR_VALIDATION_WORKERS", c.Pipeline.ValidationWorkers); err != nil {
		return err
	}
	return nil
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}
