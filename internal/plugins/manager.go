package plugins

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/peteski22/cryoflow/internal/config"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Registrar receives instances as they are loaded.
type Registrar interface {
	Register(role pkg.Role, instance *PluginInstance)
}

// Manager turns plugin declarations into registered instances:
// resolve the module, discover the class for the role, instantiate it and register it.
// Loading is fail-fast: the first failing declaration aborts the load.
type Manager struct {
	logger   hclog.Logger
	resolver *Resolver
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithResolver replaces the resolver used to load modules.
func WithResolver(r *Resolver) ManagerOption {
	return func(m *Manager) {
		m.resolver = r
	}
}

// NewManager creates a new plugin manager.
func NewManager(logger hclog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		logger: logger.Named("plugin-manager"),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.resolver == nil {
		m.resolver = NewResolver(m.logger)
	}

	return m
}

// LoadConfig loads every enabled plugin in cfg, role by role in pipeline order.
func (m *Manager) LoadConfig(ctx context.Context, cfg *config.Config, reg Registrar) error {
	for _, role := range pkg.OrderedRoles {
		if err := m.Load(ctx, role, cfg.Plugins(role), cfg.BaseDir(), reg); err != nil {
			return err
		}
	}
	return nil
}

// Load loads the enabled declarations for a single role in declaration order.
func (m *Manager) Load(ctx context.Context, role pkg.Role, decls []config.PluginConfig, baseDir string, reg Registrar) error {
	for _, decl := range decls {
		if !decl.IsEnabled() {
			m.logger.Debug("skipping disabled plugin", "plugin", decl.Name, "role", role)
			continue
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("loading plugins: %w", err)
		}

		instance, err := m.loadOne(role, decl, baseDir)
		if err != nil {
			return annotate(err, decl.Name, role, decl.LabelOrDefault())
		}

		reg.Register(role, instance)
		m.logger.Info("registered plugin",
			"plugin", instance.Name(),
			"id", instance.ID(),
			"role", role,
			"label", instance.Label(),
			"module", instance.Module(),
		)
	}

	return nil
}

func (m *Manager) loadOne(role pkg.Role, decl config.PluginConfig, baseDir string) (*PluginInstance, error) {
	mod, err := m.resolver.Resolve(decl.Module, baseDir)
	if err != nil {
		return nil, err
	}

	class, err := Discover(m.logger, mod, role)
	if err != nil {
		return nil, err
	}

	label := decl.LabelOrDefault()
	base := pkg.Base{
		Options: cloneOptions(decl.Options),
		Label:   label,
		BaseDir: baseDir,
		Logger:  m.logger.Named(decl.Name),
	}

	p, err := Instantiate(class, role, base)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) && pe.Module == "" {
			pe.Module = decl.Module
		}
		return nil, err
	}

	return NewPluginInstance(p, decl.Name, role, label, decl.Module), nil
}

// cloneOptions deep-copies option maps so plugins never share configuration state.
func cloneOptions(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneOptions(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
