package plugin

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
)

// ModuleSymbol is the exported variable a plugin built with -buildmode=plugin must define.
// It may be declared as Module, *Module or func() Module.
const ModuleSymbol = "Module"

// Module is a unit of plugin code: a named, ordered list of class declarations.
type Module struct {
	// Name identifies the module, e.g. "cryoflow.collections.input.csv".
	Name string

	// Classes are the plugin declarations in declaration order.
	Classes []Class
}

// NewModule returns a Module declaring the given classes in order.
func NewModule(name string, classes ...Class) Module {
	return Module{Name: name, Classes: classes}
}

// Class declares one plugin type inside a Module.
// NOTE: Use Define or Abstract to create a Class.
type Class struct {
	// Name is the declared type name.
	Name string

	// Prototype is a zero value of the plugin type, used only for capability checks.
	Prototype Plugin

	// New constructs an instance. Nil for abstract declarations.
	New func(Base) (Plugin, error)
}

// Abstract reports whether the class cannot be instantiated.
func (c Class) Abstract() bool {
	return c.New == nil
}

// Define declares a concrete plugin class. T must be a concrete type (usually a pointer),
// not an interface, so the zero value still carries its method set.
func Define[T Plugin](name string, ctor func(Base) (T, error)) Class {
	var proto T
	return Class{
		Name:      name,
		Prototype: proto,
		New: func(b Base) (Plugin, error) {
			p, err := ctor(b)
			if err != nil {
				return nil, err
			}
			if IsNil(p) {
				return nil, fmt.Errorf("%s constructor returned nil", name)
			}
			return p, nil
		},
	}
}

// IsNil reports whether p is nil or an interface holding a nil pointer, map, slice, func or chan.
func IsNil(p Plugin) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// Abstract declares a class that is visible to discovery but never selected,
// such as a shared base type other classes build on.
func Abstract[T Plugin](name string) Class {
	var proto T
	return Class{Name: name, Prototype: proto}
}

var (
	modulesMu sync.RWMutex
	modules   = make(map[string]Module)
)

// RegisterModule makes a compiled-in module available under its dotted name.
// It is intended to be called from init functions and panics on an empty or duplicate name.
func RegisterModule(m Module) {
	modulesMu.Lock()
	defer modulesMu.Unlock()

	if m.Name == "" {
		panic("plugin: RegisterModule called with empty module name")
	}
	if _, dup := modules[m.Name]; dup {
		panic(fmt.Sprintf("plugin: RegisterModule called twice for module %q", m.Name))
	}
	modules[m.Name] = m
}

// LookupModule returns a compiled-in module by dotted name.
func LookupModule(name string) (Module, bool) {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	m, ok := modules[name]
	return m, ok
}

// Modules returns the names of all compiled-in modules in lexical order.
func Modules() []string {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	return slices.Sorted(maps.Keys(modules))
}
