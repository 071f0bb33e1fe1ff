// Package config provides YAML configuration parsing for the jobpoll CLI.
//
// This package enables driving the job client from a configuration file,
// as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	server:
//	  base_url: https://jobs.example.com
//	  timeout: 10s
//	  headers:
//	    Authorization: Bearer ${JOBS_TOKEN}
//
//	poll:
//	  interval: 2s
//	  max_wait: 5m
//
//	gate:
//	  concurrency: 4
//
//	jobs:
//	  - name: acme
//	    mode: extract
//	    priority: high
//	    payload:
//	      companies: [Acme Corp]
//
//	  - name: sweep
//	    mode: search
//	    matrix:
//	      dimensions:
//	        region: [us-east, eu-west]
//	      payload:
//	        query: "fintech companies in {{.region}}"
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Parse] when the corresponding field is absent.
// They mirror the SDK defaults so a file and a bare client behave the same.
const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 5 * time.Second
	defaultMaxWait      = 10 * time.Minute
	defaultConcurrency  = 4
)

// minPollInterval is the minimum allowed polling interval for file-driven
// runs. This prevents accidental hammering of the job service with overly
// aggressive polling.
const minPollInterval = 1 * time.Second

// Config is the root configuration structure for the jobpoll CLI.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Server configures the connection to the job service.
	Server ServerConfig `yaml:"server"`

	// Poll configures the status polling loop.
	Poll PollConfig `yaml:"poll"`

	// Gate configures concurrent job execution for the run command.
	Gate GateConfig `yaml:"gate"`

	// Jobs lists the jobs executed by the run command. May be empty for
	// commands that only need the connection settings (status, watch,
	// submit).
	Jobs []JobConfig `yaml:"jobs"`
}

// ServerConfig holds the connection settings for the job service.
type ServerConfig struct {
	// BaseURL is the job service root, e.g. https://jobs.example.com.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-call HTTP timeout. Defaults to 30s.
	Timeout Duration `yaml:"timeout"`

	// Headers are custom HTTP headers sent with every call.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`
}

// PollConfig holds the status polling settings.
type PollConfig struct {
	// Interval is the delay between consecutive status calls.
	// Defaults to 5s. Must be at least 1s.
	Interval Duration `yaml:"interval"`

	// MaxWait is the wall-clock budget for waiting on a single job.
	// Defaults to 10m. Must be at least the interval.
	MaxWait Duration `yaml:"max_wait"`
}

// GateConfig holds the concurrency settings for the run command.
type GateConfig struct {
	// Concurrency is the maximum number of jobs executed simultaneously.
	// Defaults to 4. Each admitted job holds a full submit-poll-result
	// cycle, so modest values go a long way.
	Concurrency int `yaml:"concurrency"`
}

// JobConfig defines a single job entry, or a matrix of sibling jobs when
// the Matrix block is present.
type JobConfig struct {
	// Name identifies the job in reports. Required and unique.
	Name string `yaml:"name"`

	// Mode selects the remote processing mode, e.g. "extract".
	Mode string `yaml:"mode"`

	// Priority is the scheduling class: "normal" or "high".
	// Empty means normal.
	Priority string `yaml:"priority"`

	// Payload is the opaque job body handed to the service.
	// Ignored when Matrix is set; the matrix payload is used instead.
	Payload map[string]any `yaml:"payload"`

	// Matrix expands this entry into one job per dimension combination.
	Matrix *MatrixConfig `yaml:"matrix"`
}

// MatrixConfig defines a job matrix that expands via cartesian product.
//
// For example, with dimensions {region: [us, eu], sector: [fintech, biotech]},
// the entry expands to 4 jobs: us/fintech, us/biotech, eu/fintech, eu/biotech.
type MatrixConfig struct {
	// Dimensions maps dimension names to their possible values.
	// The cartesian product of all dimensions generates the jobs.
	Dimensions map[string][]string `yaml:"dimensions"`

	// Payload is the payload template shared by all generated jobs.
	// String values use Go template syntax with dimension names as
	// variables: {{.region}}, {{.sector}}
	Payload map[string]any `yaml:"payload"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the server base URL and header
// values. Defaults are applied for the timeout (30s), poll interval (5s),
// max wait (10m), and gate concurrency (4).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = Duration(defaultTimeout)
	}
	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = Duration(defaultPollInterval)
	}
	if cfg.Poll.MaxWait == 0 {
		cfg.Poll.MaxWait = Duration(defaultMaxWait)
	}
	if cfg.Gate.Concurrency == 0 {
		cfg.Gate.Concurrency = defaultConcurrency
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Server.BaseURL == "" {
		return errors.New("server: base_url is required")
	}
	expanded, err := expandEnvVars(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server: base_url: %w", err)
	}
	c.Server.BaseURL = expanded

	parsedURL, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server: invalid base_url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("server: base_url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("server: base_url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	for k, v := range c.Server.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("server: headers[%s]: %w", k, err)
		}
		c.Server.Headers[k] = expanded
	}

	if c.Server.Timeout.Duration() <= 0 {
		return fmt.Errorf("server: timeout must be positive, got %s", c.Server.Timeout.Duration())
	}

	if c.Poll.Interval.Duration() < minPollInterval {
		return fmt.Errorf("poll: interval must be at least %s, got %s", minPollInterval, c.Poll.Interval.Duration())
	}
	if c.Poll.MaxWait.Duration() < c.Poll.Interval.Duration() {
		return fmt.Errorf("poll: max_wait %s must be at least the interval %s",
			c.Poll.MaxWait.Duration(), c.Poll.Interval.Duration())
	}

	if c.Gate.Concurrency < 1 {
		return fmt.Errorf("gate: concurrency must be at least 1, got %d", c.Gate.Concurrency)
	}

	seen := make(map[string]struct{}, len(c.Jobs))
	for i := range c.Jobs {
		j := &c.Jobs[i]

		if j.Name == "" {
			return fmt.Errorf("jobs[%d]: name is required", i)
		}
		if _, exists := seen[j.Name]; exists {
			return fmt.Errorf("jobs[%d]: duplicate job name %q", i, j.Name)
		}
		seen[j.Name] = struct{}{}

		if j.Mode == "" {
			return fmt.Errorf("jobs[%d] (%s): mode is required", i, j.Name)
		}

		if j.Priority != "" && j.Priority != "normal" && j.Priority != "high" {
			return fmt.Errorf("jobs[%d] (%s): priority must be \"normal\" or \"high\", got %q",
				i, j.Name, j.Priority)
		}

		if j.Matrix != nil {
			if err := validateMatrix(j.Matrix, fmt.Sprintf("jobs[%d] (%s)", i, j.Name)); err != nil {
				return err
			}
			if len(j.Payload) > 0 {
				return fmt.Errorf("jobs[%d] (%s): payload and matrix are mutually exclusive; "+
					"put the template under matrix.payload", i, j.Name)
			}
		}
	}

	return nil
}

// validateMatrix validates a matrix block.
func validateMatrix(m *MatrixConfig, context string) error {
	if len(m.Dimensions) == 0 {
		return fmt.Errorf("%s: matrix requires at least one dimension", context)
	}
	for dimName, dimValues := range m.Dimensions {
		if len(dimValues) == 0 {
			return fmt.Errorf("%s: dimension %q has no values", context, dimName)
		}
		seen := make(map[string]struct{}, len(dimValues))
		for _, v := range dimValues {
			if v == "" {
				return fmt.Errorf("%s: dimension %q contains an empty value", context, dimName)
			}
			if _, exists := seen[v]; exists {
				return fmt.Errorf("%s: dimension %q has duplicate value %q", context, dimName, v)
			}
			seen[v] = struct{}{}
		}
	}

	// fail fast before the SDK tries to render an invalid template
	if err := checkTemplates(m.Payload, context); err != nil {
		return err
	}

	return nil
}

// checkTemplates walks a payload template and parses every string value,
// so template syntax errors surface at validation time rather than at
// expansion time.
func checkTemplates(v any, context string) error {
	switch val := v.(type) {
	case string:
		if _, err := template.New("").Parse(val); err != nil {
			return fmt.Errorf("%s: invalid payload template %q: %w", context, val, err)
		}
	case map[string]any:
		for _, inner := range val {
			if err := checkTemplates(inner, context); err != nil {
				return err
			}
		}
	case []any:
		for _, inner := range val {
			if err := checkTemplates(inner, context); err != nil {
				return err
			}
		}
	}
	return nil
}
