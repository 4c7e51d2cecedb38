package pipeline

import (
	"slices"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/peteski22/cryoflow/internal/plugins"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Ensure Registry implements plugins.Registrar.
var _ plugins.Registrar = (*Registry)(nil)

// Registry hosts loaded plugin instances grouped by role.
// NOTE: Use NewRegistry to create a new Registry.
type Registry struct {
	mu      sync.RWMutex
	logger  hclog.Logger
	plugins map[pkg.Role][]*plugins.PluginInstance
}

// NewRegistry constructs an empty Registry.
func NewRegistry(logger hclog.Logger) *Registry {
	return &Registry{
		logger:  logger.Named("registry"),
		plugins: make(map[pkg.Role][]*plugins.PluginInstance),
	}
}

// Register appends an instance to its role.
// Instances within a role are returned in registration order (this preserves config order).
func (r *Registry) Register(role pkg.Role, instance *plugins.PluginInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins[role] = append(r.plugins[role], instance)
	r.logger.Trace("registered", "role", role, "plugin", instance.Name(), "label", instance.Label())
}

// Get returns all instances for a role in registration order.
func (r *Registry) Get(role pkg.Role) []*plugins.PluginInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.plugins[role])
}

// GetByLabel returns the instances for a role with the given label, in registration order.
func (r *Registry) GetByLabel(role pkg.Role, label string) []*plugins.PluginInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*plugins.PluginInstance
	for _, inst := range r.plugins[role] {
		if inst.Label() == label {
			out = append(out, inst)
		}
	}
	return out
}

// Labels returns the distinct labels used by a role in order of first registration.
func (r *Registry) Labels(role pkg.Role) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var labels []string
	for _, inst := range r.plugins[role] {
		if !slices.Contains(labels, inst.Label()) {
			labels = append(labels, inst.Label())
		}
	}
	return labels
}

// Len returns the number of instances registered for a role.
func (r *Registry) Len(role pkg.Role) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.plugins[role])
}
