package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/flightcheck/internal/probe"
	"github.com/mattjoyce/flightcheck/internal/result"
	"github.com/mattjoyce/flightcheck/internal/step"
	"github.com/mattjoyce/flightcheck/internal/toolchain"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, expands, defaults, and validates configuration from a file.
// If a checksum file exists next to the config, the config is verified
// against it before parsing.
func Load(configPath string) (*Config, error) {
	return load(configPath, true)
}

// LoadNoVerify loads without checking the checksum pin. Used by the pinning
// command itself, which exists precisely because the config changed.
func LoadNoVerify(configPath string) (*Config, error) {
	return load(configPath, false)
}

func load(configPath string, verifyPin bool) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: check the path or run with --config", absPath)
	}

	if verifyPin {
		if err := VerifyIfPinned(absPath, data); err != nil {
			return nil, err
		}
	}

	expanded := envVarPattern.ReplaceAllStringFunc(string(data), func(m string) string {
		name := envVarPattern.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", absPath, err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Service.Name == "" {
		cfg.Service.Name = def.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = def.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = def.Service.LogFormat
	}
	if cfg.Service.StepTimeout <= 0 {
		cfg.Service.StepTimeout = def.Service.StepTimeout
	}
	if cfg.Service.RetryBound == 0 {
		// Unmarshal starts from Defaults, so zero can only be a declared
		// retry_bound: 0. Carry it as the executor's "no retries" sentinel.
		cfg.Service.RetryBound = -1
	}
	if cfg.State.Path == "" {
		cfg.State.Path = def.State.Path
	}
	if cfg.State.LockPath == "" {
		cfg.State.LockPath = cfg.State.Path + ".lock"
	}
	if cfg.Serve.Listen == "" {
		cfg.Serve.Listen = def.Serve.Listen
	}
	if cfg.Serve.SignatureHeader == "" {
		cfg.Serve.SignatureHeader = def.Serve.SignatureHeader
	}
	if cfg.Serve.MaxBodySize <= 0 {
		cfg.Serve.MaxBodySize = def.Serve.MaxBodySize
	}
}

var probeKinds = []string{
	string(toolchain.ProbeCommandVersion),
	string(toolchain.ProbeFileExists),
	string(toolchain.ProbeSecretPresent),
}

// Validate checks the declaration for problems that should stop the process
// before anything runs.
func Validate(cfg *Config) error {
	seenProbes := map[string]bool{}
	for i, p := range cfg.Probes {
		where := fmt.Sprintf("probes[%d]", i)
		if p.Name == "" {
			return fmt.Errorf("%s: name is required", where)
		}
		if seenProbes[p.Name] {
			return fmt.Errorf("%s: duplicate probe name %q", where, p.Name)
		}
		seenProbes[p.Name] = true
		if !slices.Contains(probeKinds, p.Kind) {
			return fmt.Errorf("%s: unknown kind %q", where, p.Kind)
		}
		if p.Target == "" {
			return fmt.Errorf("%s: target is required", where)
		}
		if _, err := parseSeverity(p.Severity); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}

	for i, s := range cfg.Steps {
		where := fmt.Sprintf("steps[%d]", i)
		if s.ID == "" {
			return fmt.Errorf("%s: id is required", where)
		}
		if !slices.Contains(step.KnownCategories, step.Category(s.Category)) {
			return fmt.Errorf("%s (%s): unknown category %q", where, s.ID, s.Category)
		}
		for _, p := range s.Platforms {
			if p != string(step.PlatformAndroid) && p != string(step.PlatformIOS) {
				return fmt.Errorf("%s (%s): unknown platform %q", where, s.ID, p)
			}
		}
		for _, e := range s.Environments {
			if e != string(step.EnvStaging) && e != string(step.EnvProduction) {
				return fmt.Errorf("%s (%s): unknown environment %q", where, s.ID, e)
			}
		}
		for _, ref := range s.Probes {
			if !seenProbes[ref] {
				return fmt.Errorf("%s (%s): references unknown probe %q", where, s.ID, ref)
			}
		}
	}
	return nil
}

func parseSeverity(s string) (result.Severity, error) {
	switch s {
	case "blocking", "":
		return result.Blocking, nil
	case "warning":
		return result.Warning, nil
	default:
		return 0, fmt.Errorf("unknown severity %q (expected blocking or warning)", s)
	}
}

// Catalog converts the declared steps into the ordered catalog. Prerequisite
// and cycle checking is the graph's job; this only shapes the data.
func (c *Config) Catalog() (*step.Catalog, error) {
	cat := step.NewCatalog()
	for _, sc := range c.Steps {
		timeout := sc.Timeout.Std()
		if timeout <= 0 {
			timeout = c.Service.StepTimeout.Std()
		}
		platforms := make([]step.Platform, 0, len(sc.Platforms))
		for _, p := range sc.Platforms {
			platforms = append(platforms, step.Platform(p))
		}
		environments := make([]step.Environment, 0, len(sc.Environments))
		for _, e := range sc.Environments {
			environments = append(environments, step.Environment(e))
		}
		err := cat.Add(step.Step{
			ID:            sc.ID,
			Title:         sc.Title,
			Category:      step.Category(sc.Category),
			Platforms:     platforms,
			Environments:  environments,
			Prerequisites: sc.Prerequisites,
			Probes:        sc.Probes,
			Command:       sc.Command,
			Args:          sc.Args,
			Timeout:       timeout,
			SoftExitCodes: sc.SoftExitCodes,
			Idempotent:    sc.Idempotent,
			Retryable:     sc.Retryable,
		})
		if err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// Registry builds the probe registry over a toolchain from the declarations.
func (c *Config) Registry(tc toolchain.Toolchain) (*probe.Registry, error) {
	reg := probe.NewRegistry()
	for _, pc := range c.Probes {
		severity, err := parseSeverity(pc.Severity)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", pc.Name, err)
		}
		var p probe.Probe
		switch toolchain.ProbeKind(pc.Kind) {
		case toolchain.ProbeCommandVersion:
			p = probe.CommandVersion(tc, pc.Name, severity, pc.Target, pc.Args...)
		case toolchain.ProbeFileExists:
			p = probe.FileExists(tc, pc.Name, severity, pc.Target)
		case toolchain.ProbeSecretPresent:
			p = probe.SecretPresent(tc, pc.Name, severity, pc.Target)
		default:
			return nil, fmt.Errorf("probe %s: unknown kind %q", pc.Name, pc.Kind)
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
