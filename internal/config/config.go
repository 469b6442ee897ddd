// Package config loads client configuration from an optional YAML file,
// a .env file and the process environment, once at startup. The SDK itself
// never reads ambient state; everything is passed in explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names. THEHIVE_URL and THEHIVE_API_KEY match the
// names used by the platform's own tooling.
const (
	EnvHiveURL      = "THEHIVE_URL"
	EnvHiveAPIKey   = "THEHIVE_API_KEY"
	EnvCortexURL    = "CORTEX_URL"
	EnvCortexAPIKey = "CORTEX_API_KEY"
	EnvAnalyzers    = "DEFAULT_ANALYZERS"
	EnvResponder    = "DEFAULT_RESPONDER"
	EnvPollInterval = "POLL_INTERVAL"
	EnvPollTimeout  = "POLL_TIMEOUT"
)

// Config is the process-wide configuration, resolved once at startup.
type Config struct {
	Hive struct {
		URL    string `yaml:"url"`
		APIKey string `yaml:"apiKey"`
	} `yaml:"thehive"`

	Cortex struct {
		URL    string `yaml:"url"`
		APIKey string `yaml:"apiKey"`
	} `yaml:"cortex"`

	Workflow struct {
		// Analyzers to run by default when none are given on the
		// command line.
		Analyzers []string `yaml:"analyzers"`
		// Responder to run on the case after successful analysis.
		Responder    string `yaml:"responder"`
		PollInterval string `yaml:"pollInterval"`
		PollTimeout  string `yaml:"pollTimeout"`
	} `yaml:"workflow"`
}

// Load resolves configuration in precedence order: YAML file (optional,
// "" skips it), then .env, then the process environment. Environment
// values override file values.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// A missing .env is fine; explicit environment still applies.
	_ = godotenv.Load()

	if v := os.Getenv(EnvHiveURL); v != "" {
		cfg.Hive.URL = v
	}
	if v := os.Getenv(EnvHiveAPIKey); v != "" {
		cfg.Hive.APIKey = v
	}
	if v := os.Getenv(EnvCortexURL); v != "" {
		cfg.Cortex.URL = v
	}
	if v := os.Getenv(EnvCortexAPIKey); v != "" {
		cfg.Cortex.APIKey = v
	}
	if v := os.Getenv(EnvAnalyzers); v != "" {
		cfg.Workflow.Analyzers = splitList(v)
	}
	if v := os.Getenv(EnvResponder); v != "" {
		cfg.Workflow.Responder = v
	}
	if v := os.Getenv(EnvPollInterval); v != "" {
		cfg.Workflow.PollInterval = v
	}
	if v := os.Getenv(EnvPollTimeout); v != "" {
		cfg.Workflow.PollTimeout = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks all configuration fields for correctness.
// It returns an error listing every invalid field, or nil.
func (c *Config) Validate() error {
	var errs []error

	if c.Hive.URL == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvHiveURL))
	}
	if c.Hive.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvHiveAPIKey))
	}

	// Cortex is optional, but must be configured as a pair.
	if (c.Cortex.URL == "") != (c.Cortex.APIKey == "") {
		errs = append(errs, fmt.Errorf("%s and %s must be set together", EnvCortexURL, EnvCortexAPIKey))
	}

	if _, err := c.durationOrZero(c.Workflow.PollInterval); err != nil {
		errs = append(errs, fmt.Errorf("invalid %s: %w", EnvPollInterval, err))
	}
	if _, err := c.durationOrZero(c.Workflow.PollTimeout); err != nil {
		errs = append(errs, fmt.Errorf("invalid %s: %w", EnvPollTimeout, err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// PollInterval returns the configured poll interval, or 0 when unset so the
// client default applies.
func (c *Config) PollInterval() (time.Duration, error) {
	return c.durationOrZero(c.Workflow.PollInterval)
}

// PollTimeout returns the configured poll budget, or 0 when unset so the
// client default applies.
func (c *Config) PollTimeout() (time.Duration, error) {
	return c.durationOrZero(c.Workflow.PollTimeout)
}

func (c *Config) durationOrZero(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
