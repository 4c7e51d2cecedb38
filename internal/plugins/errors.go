package plugins

import (
	"errors"
	"fmt"
	"strings"

	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

var (
	// ErrModuleNotFound is returned when a module reference is empty, a referenced file does not exist,
	// or no compiled-in module is registered under a dotted name.
	ErrModuleNotFound = errors.New("module not found")

	// ErrModuleLoad is returned when a module exists but could not be opened or initialized.
	ErrModuleLoad = errors.New("module failed to load")

	// ErrPluginClassNotFound is returned when a module declares no concrete class implementing the requested role.
	ErrPluginClassNotFound = errors.New("no plugin class implements role")

	// ErrPluginInstantiation is returned when a plugin constructor fails or panics.
	ErrPluginInstantiation = errors.New("plugin instantiation failed")

	// ErrPluginExecution is returned when a plugin operation fails or panics during a run or dry-run.
	ErrPluginExecution = errors.New("plugin execution failed")
)

// Error describes a failure attributed to a single plugin declaration.
// It unwraps to both Kind (one of the Err* sentinels) and the underlying cause.
type Error struct {
	Kind   error
	Plugin string
	Role   pkg.Role
	Label  string
	Module string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder

	switch {
	case e.Plugin != "":
		fmt.Fprintf(&b, "plugin %q", e.Plugin)
		var ctx []string
		if e.Role != "" {
			ctx = append(ctx, string(e.Role))
		}
		if e.Label != "" {
			ctx = append(ctx, fmt.Sprintf("label %q", e.Label))
		}
		if len(ctx) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
		}
	case e.Module != "":
		fmt.Fprintf(&b, "module %q", e.Module)
	}

	if e.Kind != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Kind.Error())
	}

	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// annotate fills in plugin identity on err when it is an *Error without one.
func annotate(err error, name string, role pkg.Role, label string) error {
	var pe *Error
	if !errors.As(err, &pe) {
		return err
	}
	if pe.Plugin == "" {
		pe.Plugin = name
	}
	if pe.Role == "" {
		pe.Role = role
	}
	if pe.Label == "" {
		pe.Label = label
	}
	return err
}
