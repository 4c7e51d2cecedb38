// Package config loads the cryoflow pipeline configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

var (
	// ErrConfigLoad is returned when the configuration file cannot be read or parsed.
	ErrConfigLoad = errors.New("failed to load config")

	// ErrInvalidConfig is returned when the configuration parses but fails validation.
	ErrInvalidConfig = errors.New("invalid config")
)

const (
	// FailurePolicyGlobal aborts the whole run on the first plugin failure.
	FailurePolicyGlobal = "global"

	// FailurePolicyLabel isolates failures to the label stream they occur in.
	FailurePolicyLabel = "label"
)

// PluginConfig declares one plugin instance.
type PluginConfig struct {
	Name    string         `yaml:"name" toml:"name" json:"name"`
	Module  string         `yaml:"module" toml:"module" json:"module"`
	Enabled *bool          `yaml:"enabled,omitempty" toml:"enabled,omitempty" json:"enabled,omitempty"`
	Label   string         `yaml:"label,omitempty" toml:"label,omitempty" json:"label,omitempty"`
	Options map[string]any `yaml:"options,omitempty" toml:"options,omitempty" json:"options,omitempty"`
}

// IsEnabled reports whether the plugin should be loaded. Plugins are enabled unless disabled explicitly.
func (p PluginConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// LabelOrDefault returns the configured label or pkg.DefaultLabel.
func (p PluginConfig) LabelOrDefault() string {
	if p.Label == "" {
		return pkg.DefaultLabel
	}
	return p.Label
}

// PipelineConfig controls pipeline execution.
type PipelineConfig struct {
	// FailurePolicy is either "global" (default) or "label".
	FailurePolicy string `yaml:"failure_policy,omitempty" toml:"failure_policy,omitempty" env:"CRYOFLOW_FAILURE_POLICY"`
}

// TelemetryConfig provides OpenTelemetry configuration for the host.
type TelemetryConfig struct {
	// OTLPEndpoint is the OTLP collector endpoint (e.g., "localhost:4317"). Empty disables export.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" toml:"otlp_endpoint,omitempty" env:"CRYOFLOW_OTLP_ENDPOINT"`

	// ServiceName identifies this process in traces and metrics.
	ServiceName string `yaml:"service_name,omitempty" toml:"service_name,omitempty" env:"CRYOFLOW_SERVICE_NAME"`

	// Environment indicates the deployment environment (e.g., "production", "staging").
	Environment string `yaml:"environment,omitempty" toml:"environment,omitempty" env:"CRYOFLOW_ENVIRONMENT"`

	// SampleRatio determines the fraction of traces to sample (0.0 to 1.0). Unset means 1.
	SampleRatio *float64 `yaml:"sample_ratio,omitempty" toml:"sample_ratio,omitempty" env:"CRYOFLOW_SAMPLE_RATIO"`
}

// Sampling returns the configured sample ratio, or 1 when it is unset.
func (t TelemetryConfig) Sampling() float64 {
	if t.SampleRatio == nil {
		return 1
	}
	return *t.SampleRatio
}

// ServerConfig configures the long-running service mode.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr,omitempty" toml:"http_addr,omitempty" env:"CRYOFLOW_HTTP_ADDR"`
	GRPCAddr string `yaml:"grpc_addr,omitempty" toml:"grpc_addr,omitempty" env:"CRYOFLOW_GRPC_ADDR"`

	// Schedule is an optional cron expression; when set the pipeline runs on that schedule.
	Schedule string `yaml:"schedule,omitempty" toml:"schedule,omitempty" env:"CRYOFLOW_SCHEDULE"`

	// Watch re-validates the pipeline whenever the configuration file changes.
	Watch bool `yaml:"watch,omitempty" toml:"watch,omitempty" env:"CRYOFLOW_WATCH"`
}

// LoggingConfig configures the host logger.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty" toml:"level,omitempty" env:"CRYOFLOW_LOG_LEVEL"`
	JSON  bool   `yaml:"json,omitempty" toml:"json,omitempty" env:"CRYOFLOW_LOG_JSON"`
}

// Config is the root of a cryoflow configuration file.
type Config struct {
	Producers    []PluginConfig  `yaml:"producers,omitempty" toml:"producers,omitempty"`
	Transformers []PluginConfig  `yaml:"transformers,omitempty" toml:"transformers,omitempty"`
	Consumers    []PluginConfig  `yaml:"consumers,omitempty" toml:"consumers,omitempty"`
	EnvFiles     []string        `yaml:"env_files,omitempty" toml:"env_files,omitempty"`
	Pipeline     PipelineConfig  `yaml:"pipeline,omitempty" toml:"pipeline,omitempty"`
	Telemetry    TelemetryConfig `yaml:"telemetry,omitempty" toml:"telemetry,omitempty"`
	Server       ServerConfig    `yaml:"server,omitempty" toml:"server,omitempty"`
	Logging      LoggingConfig   `yaml:"logging,omitempty" toml:"logging,omitempty"`

	path string
}

// Path returns the absolute path the configuration was loaded from.
func (c *Config) Path() string { return c.path }

// BaseDir returns the directory relative plugin paths resolve against.
func (c *Config) BaseDir() string {
	if c.path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "."
		}
		return wd
	}
	return filepath.Dir(c.path)
}

// Plugins returns the declarations for a role in declaration order.
func (c *Config) Plugins(role pkg.Role) []PluginConfig {
	switch role {
	case pkg.RoleProducer:
		return c.Producers
	case pkg.RoleTransformer:
		return c.Transformers
	case pkg.RoleConsumer:
		return c.Consumers
	default:
		return nil
	}
}

// Enabled returns the enabled declarations for a role.
func (c *Config) Enabled(role pkg.Role) []PluginConfig {
	var out []PluginConfig
	for _, p := range c.Plugins(role) {
		if p.IsEnabled() {
			out = append(out, p)
		}
	}
	return out
}

// Load reads the configuration at path. The format is chosen by extension: ".toml" is TOML,
// anything else is YAML. Env files are loaded relative to the file, string options are
// expanded against the environment, and CRYOFLOW_* variables override matching settings.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %w", ErrConfigLoad, path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoad, err)
	}

	cfg, err := Parse(data, formatFor(abs))
	if err != nil {
		return nil, err
	}
	cfg.path = abs

	environ, err := cfg.environment()
	if err != nil {
		return nil, err
	}

	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("%w: environment overrides: %w", ErrConfigLoad, err)
	}

	cfg.expandOptions(environ)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes configuration data without touching the filesystem or environment.
func Parse(data []byte, format Format) (*Config, error) {
	var cfg Config

	switch format {
	case FormatTOML:
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing toml: %w", ErrConfigLoad, err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing yaml: %w", ErrConfigLoad, err)
		}
	}

	return &cfg, nil
}

// environment merges env files under the process environment; the process wins.
func (c *Config) environment() (map[string]string, error) {
	merged := make(map[string]string)

	if len(c.EnvFiles) > 0 {
		files := make([]string, 0, len(c.EnvFiles))
		for _, f := range c.EnvFiles {
			if !filepath.IsAbs(f) {
				f = filepath.Join(c.BaseDir(), f)
			}
			files = append(files, f)
		}

		vars, err := godotenv.Read(files...)
		if err != nil {
			return nil, fmt.Errorf("%w: reading env files: %w", ErrConfigLoad, err)
		}
		for k, v := range vars {
			merged[k] = v
		}
	}

	for k, v := range env.ToMap(os.Environ()) {
		merged[k] = v
	}

	return merged, nil
}

func (c *Config) expandOptions(environ map[string]string) {
	lookup := func(key string) string { return environ[key] }
	for _, role := range pkg.OrderedRoles {
		for i := range c.Plugins(role) {
			p := &c.Plugins(role)[i]
			if p.Options != nil {
				p.Options = expandValue(p.Options, lookup).(map[string]any)
			}
		}
	}
}

func expandValue(v any, lookup func(string) string) any {
	switch t := v.(type) {
	case string:
		return os.Expand(t, lookup)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = expandValue(item, lookup)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = expandValue(item, lookup)
		}
		return out
	default:
		return v
	}
}

func (c *Config) applyDefaults() {
	if c.Pipeline.FailurePolicy == "" {
		c.Pipeline.FailurePolicy = FailurePolicyGlobal
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "cryoflow"
	}
	if c.Telemetry.SampleRatio == nil {
		ratio := 1.0
		c.Telemetry.SampleRatio = &ratio
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.GRPCAddr == "" {
		c.Server.GRPCAddr = ":9090"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks plugin declarations and settings.
func (c *Config) Validate() error {
	var errs []error

	for _, role := range pkg.OrderedRoles {
		seen := make(map[string]struct{})
		for i, p := range c.Plugins(role) {
			if strings.TrimSpace(p.Name) == "" {
				errs = append(errs, fmt.Errorf("%ss[%d]: name is required", role, i))
				continue
			}
			if strings.TrimSpace(p.Module) == "" {
				errs = append(errs, fmt.Errorf("%s %q: module is required", role, p.Name))
			}
			if _, dup := seen[p.Name]; dup {
				errs = append(errs, fmt.Errorf("%s %q: declared more than once", role, p.Name))
			}
			seen[p.Name] = struct{}{}
		}
	}

	switch c.Pipeline.FailurePolicy {
	case "", FailurePolicyGlobal, FailurePolicyLabel:
	default:
		errs = append(errs, fmt.Errorf("pipeline.failure_policy: unknown policy %q", c.Pipeline.FailurePolicy))
	}

	if ratio := c.Telemetry.Sampling(); ratio < 0 || ratio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio: must be between 0 and 1, got %v", ratio))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}
