// Package config loads engine configuration from YAML and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Benny93/taxon-go/internal/graph"
	"github.com/Benny93/taxon-go/internal/parsers"
)

// ErrInvalidConfig marks a configuration that cannot be used to load a snapshot.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds load-time settings. Environment variables override YAML values;
// command-line flags override both.
type Config struct {
	// Snapshot is the path to the RF2 relationship snapshot (optionally .gz/.zst/.lz4).
	Snapshot string `yaml:"snapshot" env:"TAXON_SNAPSHOT" env-default:""`

	// RootConcept is always a node of the hierarchy.
	RootConcept string `yaml:"root_concept" env:"TAXON_ROOT_CONCEPT" env-default:"138875005"`

	// RelationTypes are the relationship type ids treated as hierarchical.
	// "all" disables the filter.
	RelationTypes []string `yaml:"relation_types" env:"TAXON_RELATION_TYPES" env-separator:"," env-default:"116680003"`

	// Parser error budget
	MaxMalformedRatio float64 `yaml:"max_malformed_ratio" env:"TAXON_MAX_MALFORMED_RATIO" env-default:"0.01"`
	MaxMalformed      int     `yaml:"max_malformed" env:"TAXON_MAX_MALFORMED" env-default:"0"`

	// Logging
	LogLevel  string `yaml:"log_level" env:"TAXON_LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"TAXON_LOG_FORMAT" env-default:"console"`
}

// Load reads path (when non-empty) with environment overrides, or only the
// environment when path is empty, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. It does not require Snapshot, which may be
// supplied later on the command line.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RootConcept) == "" {
		return fmt.Errorf("%w: root_concept must not be empty", ErrInvalidConfig)
	}
	if c.MaxMalformedRatio < 0 || c.MaxMalformedRatio > 1 {
		return fmt.Errorf("%w: max_malformed_ratio must be within [0, 1], got %v", ErrInvalidConfig, c.MaxMalformedRatio)
	}
	if c.MaxMalformed < 0 {
		return fmt.Errorf("%w: max_malformed must be >= 0, got %d", ErrInvalidConfig, c.MaxMalformed)
	}
	return nil
}

// RequireSnapshot reports a configuration error when no snapshot path is set.
func (c *Config) RequireSnapshot() error {
	if strings.TrimSpace(c.Snapshot) == "" {
		return fmt.Errorf("%w: no relationship snapshot configured (set snapshot, TAXON_SNAPSHOT or --snapshot)", ErrInvalidConfig)
	}
	return nil
}

// Types returns the relation type filter.
func (c *Config) Types() graph.RelationTypes {
	return graph.NewRelationTypes(c.RelationTypes...)
}

// ReadOptions returns the parser error budget.
func (c *Config) ReadOptions() parsers.ReadOptions {
	return parsers.ReadOptions{
		MaxMalformedRatio: c.MaxMalformedRatio,
		MaxMalformed:      c.MaxMalformed,
	}
}

// Default returns a configuration with all defaults applied and no snapshot.
func Default() *Config {
	return &Config{
		RootConcept:       graph.RootConcept,
		RelationTypes:     []string{graph.IsA},
		MaxMalformedRatio: parsers.DefaultMaxMalformedRatio,
		LogLevel:          "info",
		LogFormat:         "console",
	}
}
