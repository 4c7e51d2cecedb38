package plugins

import (
	"github.com/google/uuid"

	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// PluginInstance represents a constructed plugin to the pipeline.
// This encapsulates the plugin, the role it was loaded for, the label that routes its data,
// and the configured name it is reported under.
// NOTE: Use NewPluginInstance to create a PluginInstance.
type PluginInstance struct {
	pkg.Plugin

	id     string
	name   string
	role   pkg.Role
	label  string
	module string
}

// NewPluginInstance creates a new PluginInstance with a unique ID.
func NewPluginInstance(p pkg.Plugin, name string, role pkg.Role, label string, module string) *PluginInstance {
	if label == "" {
		label = pkg.DefaultLabel
	}
	return &PluginInstance{
		Plugin: p,
		id:     uuid.NewString(),
		name:   name,
		role:   role,
		label:  label,
		module: module,
	}
}

// ID returns the unique identifier assigned when the instance was created.
func (pi *PluginInstance) ID() string { return pi.id }

// Name returns the name the plugin was declared under in configuration.
// Use PluginName for the name the plugin reports itself.
func (pi *PluginInstance) Name() string { return pi.name }

// PluginName returns the wrapped plugin's own name.
func (pi *PluginInstance) PluginName() string { return pi.Plugin.Name() }

func (pi *PluginInstance) Role() pkg.Role { return pi.role }

func (pi *PluginInstance) Label() string { return pi.label }

func (pi *PluginInstance) Module() string { return pi.module }

// Fail wraps err as an *Error of the given kind attributed to this instance.
func (pi *PluginInstance) Fail(kind error, err error) *Error {
	return &Error{
		Kind:   kind,
		Plugin: pi.name,
		Role:   pi.role,
		Label:  pi.label,
		Module: pi.module,
		Err:    err,
	}
}
