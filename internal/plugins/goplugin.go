package plugins

import (
	"fmt"
	goplugin "plugin"

	"github.com/hashicorp/go-hclog"

	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Ensure GoPluginOpener implements Opener.
var _ Opener = (*GoPluginOpener)(nil)

// GoPluginOpener opens shared objects built with -buildmode=plugin and reads their exported Module.
//
// Go plugins must be built with the same toolchain and dependency versions as the host,
// and a shared object can only be opened once per process; reopening returns the cached handle.
type GoPluginOpener struct {
	logger hclog.Logger
}

// NewGoPluginOpener creates a GoPluginOpener.
func NewGoPluginOpener(logger hclog.Logger) *GoPluginOpener {
	return &GoPluginOpener{logger: logger}
}

// Open loads path and returns the module it exports. Running the plugin's init functions
// can panic; such panics are reported as ErrModuleLoad.
func (o *GoPluginOpener) Open(path string) (mod pkg.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: ErrModuleLoad, Module: path, Err: fmt.Errorf("panic while opening plugin: %v", r)}
		}
	}()

	p, err := goplugin.Open(path)
	if err != nil {
		return pkg.Module{}, &Error{Kind: ErrModuleLoad, Module: path, Err: err}
	}

	sym, err := p.Lookup(pkg.ModuleSymbol)
	if err != nil {
		return pkg.Module{}, &Error{Kind: ErrModuleLoad, Module: path, Err: err}
	}

	mod, err = moduleFromSymbol(sym)
	if err != nil {
		return pkg.Module{}, &Error{Kind: ErrModuleLoad, Module: path, Err: err}
	}

	o.logger.Debug("opened plugin", "path", path, "module", mod.Name, "classes", len(mod.Classes))

	return mod, nil
}

// moduleFromSymbol accepts the shapes an exported Module symbol may take.
// Lookup returns a pointer for exported variables and the value for exported functions.
func moduleFromSymbol(sym any) (pkg.Module, error) {
	switch v := sym.(type) {
	case *pkg.Module:
		if v == nil {
			return pkg.Module{}, fmt.Errorf("symbol %s is nil", pkg.ModuleSymbol)
		}
		return *v, nil
	case pkg.Module:
		return v, nil
	case **pkg.Module:
		if v == nil || *v == nil {
			return pkg.Module{}, fmt.Errorf("symbol %s is nil", pkg.ModuleSymbol)
		}
		return **v, nil
	case func() pkg.Module:
		return v(), nil
	case *func() pkg.Module:
		if v == nil || *v == nil {
			return pkg.Module{}, fmt.Errorf("symbol %s is nil", pkg.ModuleSymbol)
		}
		return (*v)(), nil
	default:
		return pkg.Module{}, fmt.Errorf("unsupported type %T for symbol %s", sym, pkg.ModuleSymbol)
	}
}
