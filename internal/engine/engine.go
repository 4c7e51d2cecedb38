// Package engine ties configuration, plugin loading and pipeline execution together.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/peteski22/cryoflow/internal/config"
	"github.com/peteski22/cryoflow/internal/plugins"
	"github.com/peteski22/cryoflow/internal/plugins/pipeline"
	"github.com/peteski22/cryoflow/internal/telemetry"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

var (
	// ErrNoProducers is returned when a run has no enabled producer.
	ErrNoProducers = errors.New("no producer plugin configured")

	// ErrNoConsumers is returned when a run or check has no enabled consumer.
	ErrNoConsumers = errors.New("no consumer plugin configured")
)

// PluginInfo describes one loaded plugin instance.
type PluginInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Plugin string `json:"plugin"`
	Role   string `json:"role"`
	Label  string `json:"label"`
	Module string `json:"module"`
}

// Engine loads a fresh set of plugin instances for every operation and runs them.
// Operations are serialized: at most one load, run or check is in progress at a time.
// NOTE: Use New to create an Engine.
type Engine struct {
	mu sync.Mutex

	logger    hclog.Logger
	cfg       *config.Config
	manager   *plugins.Manager
	providers *telemetry.Providers
	onLoad    func([]PluginInfo)
}

// Option configures an Engine.
type Option func(*Engine)

// WithManager replaces the plugin manager.
func WithManager(m *plugins.Manager) Option {
	return func(e *Engine) {
		e.manager = m
	}
}

// WithTelemetry sets the providers passed to every pipeline.
func WithTelemetry(p *telemetry.Providers) Option {
	return func(e *Engine) {
		if p != nil {
			e.providers = p
		}
	}
}

// WithLoadObserver registers fn to be called with the loaded plugins after every successful load,
// before the run or check that triggered it proceeds.
func WithLoadObserver(fn func([]PluginInfo)) Option {
	return func(e *Engine) {
		e.onLoad = fn
	}
}

// New returns an Engine for cfg.
func New(cfg *config.Config, logger hclog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}

	e := &Engine{
		logger:    logger.Named("engine"),
		cfg:       cfg,
		providers: telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.manager == nil {
		e.manager = plugins.NewManager(logger)
	}

	return e, nil
}

// Config returns the configuration in use.
func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.cfg
}

// SetConfig replaces the configuration used by later operations.
func (e *Engine) SetConfig(cfg *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = cfg
}

// Reload re-reads the configuration from the path it was loaded from.
// The current configuration is kept when the file cannot be loaded.
func (e *Engine) Reload() (*config.Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.Path() == "" {
		return e.cfg, nil
	}
	cfg, err := config.Load(e.cfg.Path())
	if err != nil {
		return nil, err
	}
	e.cfg = cfg
	e.logger.Info("configuration reloaded", "path", cfg.Path())
	return cfg, nil
}

// Run loads the plugins and executes the pipeline.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.load(ctx)
	if err != nil {
		return err
	}
	if p.Registry().Len(pkg.RoleProducer) == 0 {
		return ErrNoProducers
	}
	if p.Registry().Len(pkg.RoleConsumer) == 0 {
		return ErrNoConsumers
	}

	return p.Run(ctx)
}

// Check loads the plugins and validates the pipeline with a dry-run.
// The returned schemas cover every produced label.
func (e *Engine) Check(ctx context.Context) (map[string]pkg.Schema, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	if p.Registry().Len(pkg.RoleConsumer) == 0 {
		return nil, ErrNoConsumers
	}

	return p.DryRun(ctx)
}

// Plugins loads the plugins and describes them in pipeline order.
func (e *Engine) Plugins(ctx context.Context) ([]PluginInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	return describe(p.Registry()), nil
}

// describe lists the instances of reg in pipeline order.
func describe(reg *pipeline.Registry) []PluginInfo {
	var out []PluginInfo
	for _, role := range pkg.OrderedRoles {
		for _, inst := range reg.Get(role) {
			out = append(out, PluginInfo{
				ID:     inst.ID(),
				Name:   inst.Name(),
				Plugin: inst.PluginName(),
				Role:   string(inst.Role()),
				Label:  inst.Label(),
				Module: inst.Module(),
			})
		}
	}
	return out
}

// Labels returns the producer labels of cfg, and whether each has an enabled consumer.
func Labels(cfg *config.Config) map[string]bool {
	out := make(map[string]bool)
	for _, p := range cfg.Enabled(pkg.RoleProducer) {
		out[p.LabelOrDefault()] = false
	}
	for _, c := range cfg.Enabled(pkg.RoleConsumer) {
		if _, ok := out[c.LabelOrDefault()]; ok {
			out[c.LabelOrDefault()] = true
		}
	}
	return out
}

func (e *Engine) load(ctx context.Context) (*pipeline.Pipeline, error) {
	reg := pipeline.NewRegistry(e.logger)
	if err := e.manager.LoadConfig(ctx, e.cfg, reg); err != nil {
		return nil, err
	}

	policy, err := pipeline.ParseFailurePolicy(e.cfg.Pipeline.FailurePolicy)
	if err != nil {
		return nil, err
	}

	if e.onLoad != nil {
		e.onLoad(describe(reg))
	}

	return pipeline.NewPipeline(e.logger, reg,
		pipeline.WithFailurePolicy(policy),
		pipeline.WithTracerProvider(e.providers.TracerProvider),
		pipeline.WithMeterProvider(e.providers.MeterProvider),
	)
}
