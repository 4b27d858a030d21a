package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envPrefix = "CHATDB_"

// Field matching strategies used by the natural-language translator.
const (
	MatchTokens = "tokens"
	MatchSnake  = "snake"
)

// Config represents the application configuration
type Config struct {
	Logging    LoggingConfig
	Generator  GeneratorConfig
	Matcher    MatcherConfig
	Connection ConnectionConfig
	Features   FeatureConfig
	Terminal   TerminalConfig
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"warn"`    // debug, info, warn, error
	Format string `env:"LOG_FORMAT" envDefault:"console"` // console, json
	Output string `env:"LOG_OUTPUT" envDefault:"stderr"`  // stderr, stdout or a file path
}

// GeneratorConfig controls template query generation
type GeneratorConfig struct {
	SampleCount         int   `env:"SAMPLE_COUNT"          envDefault:"2"`
	DocumentSampleCount int   `env:"DOCUMENT_SAMPLE_COUNT" envDefault:"1"`
	ConstructCount      int   `env:"CONSTRUCT_COUNT"       envDefault:"2"`
	AttemptFactor       int   `env:"ATTEMPT_FACTOR"        envDefault:"5"`
	Seed                int64 `env:"SEED"                  envDefault:"0"` // 0 picks a time based seed
}

// MatcherConfig controls fuzzy field mapping
type MatcherConfig struct {
	Cutoff          float64 `env:"MATCH_CUTOFF"           envDefault:"0.6"`
	RelationalMatch string  `env:"RELATIONAL_FIELD_MATCH" envDefault:"tokens"`
	DocumentMatch   string  `env:"DOCUMENT_FIELD_MATCH"   envDefault:"snake"`
}

// ConnectionConfig controls store connections and statement execution
type ConnectionConfig struct {
	DefaultHost    string        `env:"DEFAULT_HOST"       envDefault:"localhost"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT"    envDefault:"10s"`
	QueryTimeout   time.Duration `env:"QUERY_TIMEOUT"      envDefault:"0s"`
	MaxOpenConns   int           `env:"DB_MAX_OPEN_CONNS"  envDefault:"10"`
	MaxIdleConns   int           `env:"DB_MAX_IDLE_CONNS"  envDefault:"5"`
	MaxRows        int           `env:"MAX_ROWS"           envDefault:"100"`
}

// FeatureConfig toggles store menu entries
type FeatureConfig struct {
	Upload          bool `env:"FEATURE_UPLOAD"           envDefault:"true"`
	Drop            bool `env:"FEATURE_DROP"             envDefault:"true"`
	Constructs      bool `env:"FEATURE_CONSTRUCTS"       envDefault:"true"`
	NaturalLanguage bool `env:"FEATURE_NATURAL_LANGUAGE" envDefault:"true"`
}

// TerminalConfig controls terminal decoration
type TerminalConfig struct {
	Color   bool `env:"COLOR"   envDefault:"true"`
	Spinner bool `env:"SPINNER" envDefault:"true"`
}

// Load reads an optional .env file from the working directory and then
// parses CHATDB_ prefixed environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	return Parse(nil)
}

// Parse builds a configuration from the process environment, or from
// environment when it is non-nil.
func Parse(environment map[string]string) (*Config, error) {
	cfg := &Config{}

	opts := env.Options{Prefix: envPrefix}
	if environment != nil {
		opts.Environment = environment
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration produced by an empty environment.
func Default() *Config {
	cfg, err := Parse(map[string]string{})
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate validates the configuration for common errors
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf(
			"invalid log level: %s (must be debug, info, warn, or error)",
			c.Logging.Level,
		)
	}

	validLogFormats := map[string]bool{
		"console": true, "json": true,
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Logging.Format)
	}

	if c.Logging.Output == "" {
		return fmt.Errorf("log output must not be empty")
	}

	counts := []struct {
		name  string
		value int
	}{
		{"sample count", c.Generator.SampleCount},
		{"document sample count", c.Generator.DocumentSampleCount},
		{"construct count", c.Generator.ConstructCount},
		{"attempt factor", c.Generator.AttemptFactor},
		{"max rows", c.Connection.MaxRows},
		{"max open connections", c.Connection.MaxOpenConns},
	}
	for _, count := range counts {
		if count.value < 1 {
			return fmt.Errorf("%s must be positive: %d", count.name, count.value)
		}
	}

	if c.Connection.MaxIdleConns < 0 {
		return fmt.Errorf("max idle connections must not be negative: %d", c.Connection.MaxIdleConns)
	}

	if c.Matcher.Cutoff <= 0 || c.Matcher.Cutoff > 1 {
		return fmt.Errorf("match cutoff must be in (0, 1]: %v", c.Matcher.Cutoff)
	}

	for _, strategy := range []string{c.Matcher.RelationalMatch, c.Matcher.DocumentMatch} {
		if strategy != MatchTokens && strategy != MatchSnake {
			return fmt.Errorf("invalid field match strategy: %s (must be tokens or snake)", strategy)
		}
	}

	if c.Connection.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive: %s", c.Connection.ConnectTimeout)
	}

	if c.Connection.QueryTimeout < 0 {
		return fmt.Errorf("query timeout must not be negative: %s", c.Connection.QueryTimeout)
	}

	return nil
}
