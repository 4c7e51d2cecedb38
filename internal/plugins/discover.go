package plugins

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Discover returns the first concrete class in mod, in declaration order, whose prototype
// implements role. When several classes qualify the first wins and a warning is logged.
func Discover(logger hclog.Logger, mod *LoadedModule, role pkg.Role) (pkg.Class, error) {
	if !role.Valid() {
		return pkg.Class{}, &Error{Kind: ErrPluginClassNotFound, Module: mod.Ref, Role: role, Err: fmt.Errorf("unknown role %q", role)}
	}

	var matches []pkg.Class
	for _, c := range mod.Classes {
		if c.Abstract() {
			continue
		}
		if pkg.Implements(role, c.Prototype) {
			matches = append(matches, c)
		}
	}

	if len(matches) == 0 {
		return pkg.Class{}, &Error{
			Kind:   ErrPluginClassNotFound,
			Module: mod.Ref,
			Role:   role,
			Err:    fmt.Errorf("module %q declares no concrete %s class", mod.Name, role),
		}
	}

	if len(matches) > 1 {
		names := make([]string, 0, len(matches))
		for _, c := range matches {
			names = append(names, c.Name)
		}
		logger.Warn("multiple plugin classes implement role, using the first",
			"module", mod.Name,
			"role", role,
			"candidates", names,
			"selected", matches[0].Name,
		)
	}

	return matches[0], nil
}
