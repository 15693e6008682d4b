package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can carry "90s" / "10m" strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete flightcheck configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	State   StateConfig   `yaml:"state"`
	Serve   ServeConfig   `yaml:"serve,omitempty"`
	Probes  []ProbeConf   `yaml:"probes"`
	Steps   []StepConf    `yaml:"steps"`
}

// ServiceConfig defines core engine settings.
type ServiceConfig struct {
	Name        string   `yaml:"name"`
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"`
	RetryBound  int      `yaml:"retry_bound"`
	StepTimeout Duration `yaml:"default_step_timeout"`
	Workspace   string   `yaml:"workspace,omitempty"`
}

// StateConfig defines where run history and the instance lock live.
type StateConfig struct {
	Path     string `yaml:"path"`
	LockPath string `yaml:"lock_path,omitempty"`
}

// ServeConfig defines the webhook trigger endpoint.
type ServeConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Listen          string `yaml:"listen"`
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header,omitempty"`
	MaxBodySize     int64  `yaml:"max_body_size,omitempty"`
}

// ProbeConf declares one environment check.
type ProbeConf struct {
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"` // command_version | file_exists | secret_present
	Target   string   `yaml:"target"`
	Args     []string `yaml:"args,omitempty"`
	Severity string   `yaml:"severity"` // blocking | warning
}

// StepConf declares one pipeline step. Declaration order in the YAML list is
// the deterministic tie-break order for unconstrained steps.
type StepConf struct {
	ID            string   `yaml:"id"`
	Title         string   `yaml:"title,omitempty"`
	Category      string   `yaml:"category"`
	Platforms     []string `yaml:"platforms,omitempty"`
	Environments  []string `yaml:"environments,omitempty"`
	Prerequisites []string `yaml:"prerequisites,omitempty"`
	Probes        []string `yaml:"probes,omitempty"`
	Command       string   `yaml:"command,omitempty"`
	Args          []string `yaml:"args,omitempty"`
	Timeout       Duration `yaml:"timeout,omitempty"`
	SoftExitCodes []int    `yaml:"soft_exit_codes,omitempty"`
	Idempotent    bool     `yaml:"idempotent,omitempty"`
	Retryable     bool     `yaml:"retryable,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "flightcheck",
			LogLevel:    "INFO",
			LogFormat:   "json",
			RetryBound:  1,
			StepTimeout: Duration(10 * time.Minute),
		},
		State: StateConfig{
			Path: "./state/flightcheck.db",
		},
		Serve: ServeConfig{
			Listen:          ":8787",
			SignatureHeader: "X-Hub-Signature-256",
			MaxBodySize:     1 << 20,
		},
	}
}
