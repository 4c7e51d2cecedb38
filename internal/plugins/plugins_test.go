package plugins

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peteski22/cryoflow/internal/config"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

type fakeProducer struct{ pkg.Base }

func (*fakeProducer) Name() string { return "fake-producer" }
func (*fakeProducer) Produce(context.Context) (pkg.Frame, error) { return nil, nil }
func (*fakeProducer) PredictSchema(context.Context) (pkg.Schema, error) { return pkg.Schema{}, nil }

type fakeTransformer struct{ pkg.Base }

func (*fakeTransformer) Name() string { return "fake-transformer" }
func (*fakeTransformer) Transform(_ context.Context, in pkg.Frame) (pkg.Frame, error) {
	return in, nil
}
func (*fakeTransformer) PredictSchema(_ context.Context, in pkg.Schema) (pkg.Schema, error) {
	return in, nil
}

type otherTransformer struct{ fakeTransformer }

func (*otherTransformer) Name() string { return "other-transformer" }

type fakeConsumer struct{ pkg.Base }

func (*fakeConsumer) Name() string { return "fake-consumer" }
func (*fakeConsumer) Consume(context.Context, pkg.Frame) error { return nil }
func (*fakeConsumer) PredictSchema(_ context.Context, in pkg.Schema) (pkg.Schema, error) {
	return in, nil
}

func newProducer(b pkg.Base) (*fakeProducer, error)       { return &fakeProducer{Base: b}, nil }
func newTransformer(b pkg.Base) (*fakeTransformer, error) { return &fakeTransformer{Base: b}, nil }
func newOther(b pkg.Base) (*otherTransformer, error)      { return &otherTransformer{}, nil }
func newConsumer(b pkg.Base) (*fakeConsumer, error)       { return &fakeConsumer{Base: b}, nil }

func testModules() map[string]pkg.Module {
	return map[string]pkg.Module{
		"test.producer": pkg.NewModule("test.producer", pkg.Define("Producer", newProducer)),
		"test.transformer": pkg.NewModule("test.transformer",
			pkg.Abstract[*fakeTransformer]("BaseTransformer"),
			pkg.Define("Transformer", newTransformer),
			pkg.Define("Other", newOther),
		),
		"test.consumer": pkg.NewModule("test.consumer", pkg.Define("Consumer", newConsumer)),
		"test.broken": pkg.NewModule("test.broken", pkg.Define("Broken", func(pkg.Base) (*fakeProducer, error) {
			return nil, errors.New("bad options")
		})),
		"test.panics": pkg.NewModule("test.panics", pkg.Define("Panics", func(pkg.Base) (*fakeProducer, error) {
			panic("boom")
		})),
	}
}

func testLookup(name string) (pkg.Module, bool) {
	m, ok := testModules()[name]
	return m, ok
}

type fakeOpener struct {
	mod   pkg.Module
	err   error
	paths []string
}

func (f *fakeOpener) Open(path string) (pkg.Module, error) {
	f.paths = append(f.paths, path)
	return f.mod, f.err
}

type recorder struct {
	roles     []pkg.Role
	instances []*PluginInstance
}

func (r *recorder) Register(role pkg.Role, instance *PluginInstance) {
	r.roles = append(r.roles, role)
	r.instances = append(r.instances, instance)
}

func enabled(v bool) *bool { return &v }

func TestIsFilesystemRef(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"cryoflow.collections.input.csv": false,
		"mymodule":                       false,
		"plugins/double.so":              true,
		`plugins\double.so`:              true,
		"double.so":                      true,
		"./double":                       true,
		"../double":                      true,
		".hidden":                        true,
		"/abs/path/double.so":            true,
	}

	for ref, want := range tests {
		assert.Equal(t, want, IsFilesystemRef(ref), ref)
	}
}

func TestResolveModulePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "plugins"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugins", "p.so"), nil, 0o600))

	got, err := ResolveModulePath("plugins/p.so", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "plugins", "p.so"), got)

	got, err = ResolveModulePath(filepath.Join(dir, "plugins", "..", "plugins", "p.so"), "/elsewhere")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "plugins", "p.so"), got)

	_, err = ResolveModulePath("plugins/missing.so", dir)
	require.ErrorIs(t, err, ErrModuleNotFound)
	assert.Contains(t, err.Error(), "plugin file does not exist")

	_, err = ResolveModulePath("plugins", dir)
	require.ErrorIs(t, err, ErrModuleLoad)
}

func TestResolver_Dotted(t *testing.T) {
	t.Parallel()

	r := NewResolver(hclog.NewNullLogger(), WithModuleLookup(testLookup))

	mod, err := r.Resolve("test.producer", "")
	require.NoError(t, err)
	assert.Equal(t, "test.producer", mod.Name)
	assert.Empty(t, mod.Path)

	_, err = r.Resolve("test.nope", "")
	require.ErrorIs(t, err, ErrModuleNotFound)
	assert.Contains(t, err.Error(), "module 'test.nope' not found")

	_, err = r.Resolve("  ", "")
	require.ErrorIs(t, err, ErrModuleNotFound)
}

func TestResolver_Path(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "double.so"), nil, 0o600))

	opener := &fakeOpener{mod: pkg.Module{Classes: []pkg.Class{pkg.Define("T", newTransformer)}}}
	r := NewResolver(hclog.NewNullLogger(), WithOpener(opener))

	first, err := r.Resolve("./double.so", dir)
	require.NoError(t, err)
	second, err := r.Resolve("double.so", dir)
	require.NoError(t, err)

	assert.Equal(t, "double", first.Name)
	assert.Equal(t, filepath.Join(dir, "double.so"), first.Path)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []string{first.Path, second.Path}, opener.paths)

	_, err = r.Resolve("./missing.so", dir)
	require.ErrorIs(t, err, ErrModuleNotFound)
	assert.Len(t, opener.paths, 2)

	opener.err = errors.New("plugin was built with a different version of package")
	_, err = r.Resolve("./double.so", dir)
	require.ErrorIs(t, err, ErrModuleLoad)
	assert.Contains(t, err.Error(), "different version")
}

func TestModuleFromSymbol(t *testing.T) {
	t.Parallel()

	mod := pkg.NewModule("sym")
	ptr := &mod
	fn := func() pkg.Module { return mod }

	for name, sym := range map[string]any{
		"pointer":         &mod,
		"value":           mod,
		"pointer pointer": &ptr,
		"func":            fn,
		"func pointer":    &fn,
	} {
		got, err := moduleFromSymbol(sym)
		require.NoError(t, err, name)
		assert.Equal(t, "sym", got.Name, name)
	}

	_, err := moduleFromSymbol("nope")
	require.Error(t, err)

	var nilMod *pkg.Module
	_, err = moduleFromSymbol(&nilMod)
	require.Error(t, err)
}

func TestGoPluginOpener_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewGoPluginOpener(hclog.NewNullLogger()).Open(filepath.Join(t.TempDir(), "missing.so"))
	require.ErrorIs(t, err, ErrModuleLoad)
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Warn})
	mods := testModules()

	mod := &LoadedModule{Module: mods["test.transformer"], Ref: "test.transformer"}
	class, err := Discover(logger, mod, pkg.RoleTransformer)
	require.NoError(t, err)
	assert.Equal(t, "Transformer", class.Name)
	assert.Contains(t, buf.String(), "multiple plugin classes implement role")

	_, err = Discover(logger, mod, pkg.RoleConsumer)
	require.ErrorIs(t, err, ErrPluginClassNotFound)

	abstractOnly := &LoadedModule{Module: pkg.NewModule("abstract", pkg.Abstract[*fakeTransformer]("Base")), Ref: "abstract"}
	_, err = Discover(logger, abstractOnly, pkg.RoleTransformer)
	require.ErrorIs(t, err, ErrPluginClassNotFound)

	_, err = Discover(logger, mod, pkg.Role("sink"))
	require.ErrorIs(t, err, ErrPluginClassNotFound)
}

func TestInstantiate(t *testing.T) {
	t.Parallel()

	mods := testModules()

	p, err := Instantiate(mods["test.producer"].Classes[0], pkg.RoleProducer, pkg.Base{Label: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", p.(*fakeProducer).Label)

	_, err = Instantiate(mods["test.broken"].Classes[0], pkg.RoleProducer, pkg.Base{})
	require.ErrorIs(t, err, ErrPluginInstantiation)
	assert.Contains(t, err.Error(), "bad options")

	_, err = Instantiate(mods["test.panics"].Classes[0], pkg.RoleProducer, pkg.Base{})
	require.ErrorIs(t, err, ErrPluginInstantiation)
	assert.Contains(t, err.Error(), "boom")

	_, err = Instantiate(mods["test.producer"].Classes[0], pkg.RoleConsumer, pkg.Base{})
	require.ErrorIs(t, err, ErrPluginInstantiation)

	_, err = Instantiate(pkg.Abstract[*fakeProducer]("A"), pkg.RoleProducer, pkg.Base{})
	require.ErrorIs(t, err, ErrPluginInstantiation)

	p, err = Instantiate(pkg.Define("Nil", func(pkg.Base) (*fakeProducer, error) { return nil, nil }), pkg.RoleProducer, pkg.Base{})
	require.ErrorIs(t, err, ErrPluginInstantiation)
	assert.Contains(t, err.Error(), "Nil constructor returned nil")
	assert.Nil(t, p)

	var typedNil *fakeProducer
	handRolled := pkg.Class{
		Name:      "HandRolled",
		Prototype: typedNil,
		New:       func(pkg.Base) (pkg.Plugin, error) { return typedNil, nil },
	}
	_, err = Instantiate(handRolled, pkg.RoleProducer, pkg.Base{})
	require.ErrorIs(t, err, ErrPluginInstantiation)
	assert.Contains(t, err.Error(), "HandRolled constructor returned nil")
}

func newTestManager() *Manager {
	return NewManager(hclog.NewNullLogger(), WithResolver(NewResolver(hclog.NewNullLogger(), WithModuleLookup(testLookup))))
}

func TestManager_LoadConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Producers: []config.PluginConfig{
			{Name: "a", Module: "test.producer", Options: map[string]any{"k": []any{"v"}}},
			{Name: "b", Module: "test.producer", Label: "y"},
		},
		Transformers: []config.PluginConfig{
			{Name: "t", Module: "test.transformer", Enabled: enabled(false)},
		},
		Consumers: []config.PluginConfig{
			{Name: "c", Module: "test.consumer", Label: "y", Enabled: enabled(true)},
		},
	}

	rec := &recorder{}
	require.NoError(t, newTestManager().LoadConfig(context.Background(), cfg, rec))

	require.Len(t, rec.instances, 3)
	assert.Equal(t, []pkg.Role{pkg.RoleProducer, pkg.RoleProducer, pkg.RoleConsumer}, rec.roles)

	names := make([]string, 0, len(rec.instances))
	for _, inst := range rec.instances {
		names = append(names, inst.Name())
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)

	assert.Equal(t, pkg.DefaultLabel, rec.instances[0].Label())
	assert.Equal(t, "y", rec.instances[1].Label())
	assert.Equal(t, "fake-producer", rec.instances[0].PluginName())
	assert.NotEqual(t, rec.instances[0].ID(), rec.instances[1].ID())

	// Options are copied, not shared with the configuration.
	opts := rec.instances[0].Plugin.(*fakeProducer).Options
	opts["k"].([]any)[0] = "changed"
	assert.Equal(t, "v", cfg.Producers[0].Options["k"].([]any)[0])
}

func TestManager_StableAcrossLoads(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Producers: []config.PluginConfig{{Name: "a", Module: "test.producer"}},
		Consumers: []config.PluginConfig{{Name: "c", Module: "test.consumer"}},
	}
	m := newTestManager()

	first, second := &recorder{}, &recorder{}
	require.NoError(t, m.LoadConfig(context.Background(), cfg, first))
	require.NoError(t, m.LoadConfig(context.Background(), cfg, second))

	require.Len(t, second.instances, len(first.instances))
	for i := range first.instances {
		assert.Equal(t, first.instances[i].Name(), second.instances[i].Name())
		assert.Equal(t, first.instances[i].PluginName(), second.instances[i].PluginName())
	}
}

func TestManager_FailFast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		decl    config.PluginConfig
		role    pkg.Role
		wantErr error
	}{
		{name: "unknown module", decl: config.PluginConfig{Name: "x", Module: "test.nope"}, role: pkg.RoleProducer, wantErr: ErrModuleNotFound},
		{name: "wrong role", decl: config.PluginConfig{Name: "x", Module: "test.consumer"}, role: pkg.RoleProducer, wantErr: ErrPluginClassNotFound},
		{name: "constructor error", decl: config.PluginConfig{Name: "x", Module: "test.broken"}, role: pkg.RoleProducer, wantErr: ErrPluginInstantiation},
		{name: "missing file", decl: config.PluginConfig{Name: "x", Module: "./missing.so"}, role: pkg.RoleProducer, wantErr: ErrModuleNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			decls := []config.PluginConfig{tc.decl, {Name: "never", Module: "test.producer"}}
			err := newTestManager().Load(context.Background(), tc.role, decls, t.TempDir(), rec)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, rec.instances)

			var pe *Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "x", pe.Plugin)
			assert.Equal(t, tc.role, pe.Role)
			assert.Equal(t, pkg.DefaultLabel, pe.Label)
			assert.Contains(t, err.Error(), `plugin "x"`)
		})
	}
}

func TestManager_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestManager().Load(ctx, pkg.RoleProducer, []config.PluginConfig{{Name: "a", Module: "test.producer"}}, "", &recorder{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	cause := errors.New("column 'x' not found")
	err := &Error{Kind: ErrPluginExecution, Plugin: "mult", Role: pkg.RoleTransformer, Label: "default", Err: cause}

	assert.Equal(t, `plugin "mult" (transformer, label "default"): plugin execution failed: column 'x' not found`, err.Error())
	assert.ErrorIs(t, err, ErrPluginExecution)
	assert.ErrorIs(t, err, cause)

	modErr := &Error{Kind: ErrModuleNotFound, Module: "a.b"}
	assert.Equal(t, `module "a.b": module not found`, modErr.Error())
}
