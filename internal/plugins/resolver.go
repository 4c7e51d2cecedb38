package plugins

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// pluginExt is the file extension of shared objects built with -buildmode=plugin.
const pluginExt = ".so"

// Opener loads a module from a file on disk.
type Opener interface {
	Open(path string) (pkg.Module, error)
}

// LoadedModule is a module resolved from a reference, tagged with where it came from.
// It only lives for the duration of a load.
type LoadedModule struct {
	pkg.Module

	// ID uniquely identifies this load of the module.
	ID string

	// Ref is the reference as written in configuration.
	Ref string

	// Path is the resolved file path, empty for compiled-in modules.
	Path string
}

// Resolver turns a module reference into a loaded module.
// NOTE: Use NewResolver to create a Resolver.
type Resolver struct {
	logger hclog.Logger
	opener Opener
	lookup func(name string) (pkg.Module, bool)
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithOpener replaces the opener used for filesystem references.
func WithOpener(o Opener) ResolverOption {
	return func(r *Resolver) {
		r.opener = o
	}
}

// WithModuleLookup replaces the lookup used for dotted references.
func WithModuleLookup(fn func(name string) (pkg.Module, bool)) ResolverOption {
	return func(r *Resolver) {
		r.lookup = fn
	}
}

// NewResolver returns a Resolver that opens Go plugins from disk and looks dotted names
// up in the compiled-in module table.
func NewResolver(logger hclog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		logger: logger.Named("resolver"),
		lookup: pkg.LookupModule,
	}
	r.opener = NewGoPluginOpener(r.logger)

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// IsFilesystemRef reports whether ref names a file rather than a dotted module.
// A reference is a path when it contains a path separator, has the plugin extension,
// or starts with a dot.
func IsFilesystemRef(ref string) bool {
	return strings.ContainsAny(ref, `/\`) ||
		strings.HasSuffix(ref, pluginExt) ||
		strings.HasPrefix(ref, ".")
}

// ResolveModulePath resolves ref against baseDir and verifies the file exists.
func ResolveModulePath(ref string, baseDir string) (string, error) {
	path := filepath.FromSlash(ref)
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &Error{Kind: ErrModuleLoad, Module: ref, Err: fmt.Errorf("resolving path: %w", err)}
	}

	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", &Error{Kind: ErrModuleNotFound, Module: ref, Err: fmt.Errorf("plugin file does not exist: %s", abs)}
	case err != nil:
		return "", &Error{Kind: ErrModuleLoad, Module: ref, Err: err}
	case info.IsDir():
		return "", &Error{Kind: ErrModuleLoad, Module: ref, Err: fmt.Errorf("plugin path is a directory: %s", abs)}
	}

	return abs, nil
}

// Resolve loads the module named by ref. Relative filesystem references resolve against baseDir.
func (r *Resolver) Resolve(ref string, baseDir string) (*LoadedModule, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, &Error{Kind: ErrModuleNotFound, Err: errors.New("empty module reference")}
	}

	if IsFilesystemRef(ref) {
		return r.resolvePath(ref, baseDir)
	}

	return r.resolveDotted(ref)
}

func (r *Resolver) resolvePath(ref string, baseDir string) (*LoadedModule, error) {
	path, err := ResolveModulePath(ref, baseDir)
	if err != nil {
		return nil, err
	}

	id := "cryoflow_plugin_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	r.logger.Debug("loading module from file", "ref", ref, "path", path, "id", id)

	mod, err := r.opener.Open(path)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &Error{Kind: ErrModuleLoad, Module: ref, Err: err}
	}

	if mod.Name == "" {
		mod.Name = strings.TrimSuffix(filepath.Base(path), pluginExt)
	}

	return &LoadedModule{Module: mod, ID: id, Ref: ref, Path: path}, nil
}

func (r *Resolver) resolveDotted(ref string) (*LoadedModule, error) {
	mod, ok := r.lookup(ref)
	if !ok {
		return nil, &Error{Kind: ErrModuleNotFound, Module: ref, Err: fmt.Errorf("module '%s' not found", ref)}
	}

	r.logger.Debug("using compiled-in module", "ref", ref, "classes", len(mod.Classes))

	return &LoadedModule{Module: mod, ID: ref, Ref: ref}, nil
}
