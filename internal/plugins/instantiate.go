package plugins

import (
	"errors"
	"fmt"

	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Instantiate constructs class for role with base. Constructor errors and panics are
// reported as ErrPluginInstantiation.
func Instantiate(class pkg.Class, role pkg.Role, base pkg.Base) (p pkg.Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = &Error{Kind: ErrPluginInstantiation, Role: role, Label: base.Label, Err: fmt.Errorf("panic in %s constructor: %v", class.Name, r)}
		}
	}()

	if class.Abstract() {
		return nil, &Error{Kind: ErrPluginInstantiation, Role: role, Label: base.Label, Err: fmt.Errorf("class %s is abstract", class.Name)}
	}

	p, err = class.New(base)
	if err != nil {
		return nil, &Error{Kind: ErrPluginInstantiation, Role: role, Label: base.Label, Err: err}
	}
	if pkg.IsNil(p) {
		return nil, &Error{Kind: ErrPluginInstantiation, Role: role, Label: base.Label, Err: errors.New(class.Name + " constructor returned nil")}
	}
	if !pkg.Implements(role, p) {
		return nil, &Error{Kind: ErrPluginInstantiation, Role: role, Label: base.Label, Err: fmt.Errorf("%s does not implement %s", class.Name, role)}
	}

	return p, nil
}
