// Package config loads the optional YAML engine configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dukex/agentgraph/pkg/a2a"
	"github.com/dukex/agentgraph/pkg/schedule"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultHistoryLimit = 100

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Engine    EngineConfig   `yaml:"engine"`
	A2A       A2AConfig      `yaml:"a2a"`
	Schedules []schedule.Job `yaml:"schedules" validate:"dive"`
}

type EngineConfig struct {
	// NodeLatency is the simulated delay before each node does its work.
	NodeLatency time.Duration `yaml:"node_latency"  validate:"gte=0"`

	// HistoryLimit bounds the in-memory records kept per workflow. Zero keeps
	// everything.
	HistoryLimit int `yaml:"history_limit" validate:"gte=0"`
}

// A2AConfig holds the delivery defaults used by connectors that do not set
// their own.
type A2AConfig struct {
	TimeoutUnits int           `yaml:"timeout_units" validate:"gte=1"`
	RetryCount   int           `yaml:"retry_count"   validate:"gte=0"`
	TimeUnit     time.Duration `yaml:"time_unit"     validate:"gt=0"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			HistoryLimit: DefaultHistoryLimit,
		},
		A2A: A2AConfig{
			TimeoutUnits: a2a.DefaultTimeoutUnits,
			RetryCount:   a2a.DefaultRetryCount,
			TimeUnit:     a2a.DefaultTimeUnit,
		},
		Schedules: []schedule.Job{},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	seen := make(map[string]bool, len(c.Schedules))

	for _, job := range c.Schedules {
		if err := job.Validate(); err != nil {
			return fmt.Errorf("%w: schedule %q: %w", ErrInvalidConfig, job.ID, err)
		}

		if seen[job.ID] {
			return fmt.Errorf("%w: duplicate schedule %q", ErrInvalidConfig, job.ID)
		}

		seen[job.ID] = true
	}

	return nil
}

// MessengerOptions returns the A2A defaults as messenger options.
func (c Config) MessengerOptions() []a2a.Option {
	return []a2a.Option{
		a2a.WithTimeUnit(c.A2A.TimeUnit),
		a2a.WithDefaults(c.A2A.TimeoutUnits, c.A2A.RetryCount),
	}
}
