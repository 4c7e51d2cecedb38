package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/peteski22/cryoflow/internal/collections/input"
	_ "github.com/peteski22/cryoflow/internal/collections/output"
	_ "github.com/peteski22/cryoflow/internal/collections/transform"
	"github.com/peteski22/cryoflow/internal/config"
	"github.com/peteski22/cryoflow/internal/plugins"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

const pipelineYAML = `
pipeline:
  failure_policy: %s
producers:
  - name: sales
    module: cryoflow.collections.input.csv
    label: sales
    options:
      input_path: data/sales.csv
  - name: stock
    module: cryoflow.collections.input.csv
    label: stock
    options:
      input_path: data/stock.csv
transformers:
  - name: double
    module: cryoflow.collections.transform.multiplier
    label: sales
    options:
      column_name: amount
      multiplier: 2
  - name: keep
    module: cryoflow.collections.transform.select
    label: sales
    options:
      columns: [id, amount]
consumers:
  - name: sales_out
    module: cryoflow.collections.output.csv
    label: sales
    options:
      output_path: out/sales.csv
`

var countingBuilds atomic.Int64

type countingProducer struct{ pkg.Base }

func (*countingProducer) Name() string { return "counting" }

func (*countingProducer) Produce(context.Context) (pkg.Frame, error) {
	return dataframe.LoadRecords([][]string{{"a"}, {"1"}}), nil
}

func (*countingProducer) PredictSchema(context.Context) (pkg.Schema, error) {
	return pkg.Schema{"a": pkg.TypeInt}, nil
}

func init() {
	pkg.RegisterModule(pkg.NewModule("engine.test.counting",
		pkg.Define("CountingProducer", func(b pkg.Base) (*countingProducer, error) {
			countingBuilds.Add(1)
			return &countingProducer{Base: b}, nil
		}),
	))
}

func setup(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "sales.csv"), []byte("id,amount,region\n1,10,eu\n2,20,us\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "stock.csv"), []byte("sku,qty\na,1\n"), 0o644))

	path := filepath.Join(dir, "cryoflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newEngine(t *testing.T, yaml string) (*Engine, string) {
	t.Helper()

	path := setup(t, yaml)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	e, err := New(cfg, hclog.NewNullLogger())
	require.NoError(t, err)
	return e, filepath.Dir(path)
}

func pipelineConfig(policy string) string {
	return fmt.Sprintf(pipelineYAML, policy)
}

func TestEngine_Run(t *testing.T) {
	t.Parallel()

	e, dir := newEngine(t, pipelineConfig("global"))
	require.NoError(t, e.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "out", "sales.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,amount\n1,20\n2,40\n", string(data))
}

func TestEngine_Check(t *testing.T) {
	t.Parallel()

	e, dir := newEngine(t, pipelineConfig("label"))

	schemas, err := e.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]pkg.Schema{
		"sales": {"id": pkg.TypeInt, "amount": pkg.TypeInt},
		"stock": {"sku": pkg.TypeString, "qty": pkg.TypeInt},
	}, schemas)

	assert.NoFileExists(t, filepath.Join(dir, "out", "sales.csv"))
}

const misspelledYAML = `
producers:
  - name: sales
    module: cryoflow.collections.input.csv
    options:
      input_path: data/sales.csv
transformers:
  - name: double
    module: cryoflow.collections.transform.multiplier
    options:
      column_name: amout
      multiplier: 2
consumers:
  - name: out
    module: cryoflow.collections.output.csv
    options:
      output_path: out/sales.csv
`

func TestEngine_MissingColumnFailsAtTransformer(t *testing.T) {
	t.Parallel()

	tests := map[string]func(e *Engine) error{
		"check": func(e *Engine) error {
			_, err := e.Check(context.Background())
			return err
		},
		"run": func(e *Engine) error {
			return e.Run(context.Background())
		},
	}

	for name, call := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			e, dir := newEngine(t, misspelledYAML)

			err := call(e)
			require.ErrorIs(t, err, plugins.ErrPluginExecution)
			require.ErrorContains(t, err, `column "amout" not found in schema`)

			var pe *plugins.Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "double", pe.Plugin)
			assert.Equal(t, pkg.RoleTransformer, pe.Role)

			assert.NoFileExists(t, filepath.Join(dir, "out", "sales.csv"))
		})
	}
}

func TestEngine_Preconditions(t *testing.T) {
	t.Parallel()

	noConsumer, _ := newEngine(t, `
producers:
  - name: sales
    module: cryoflow.collections.input.csv
    options:
      input_path: data/sales.csv
`)
	require.ErrorIs(t, noConsumer.Run(context.Background()), ErrNoConsumers)
	_, err := noConsumer.Check(context.Background())
	require.ErrorIs(t, err, ErrNoConsumers)

	noProducer, _ := newEngine(t, `
consumers:
  - name: out
    module: cryoflow.collections.output.csv
    options:
      output_path: out/x.csv
`)
	require.ErrorIs(t, noProducer.Run(context.Background()), ErrNoProducers)
}

func TestEngine_LoadFailure(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, `
producers:
  - name: sales
    module: cryoflow.collections.input.nope
consumers:
  - name: out
    module: cryoflow.collections.output.csv
    options:
      output_path: out/x.csv
`)
	err := e.Run(context.Background())
	require.ErrorIs(t, err, plugins.ErrModuleNotFound)
}

func TestEngine_Plugins(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, pipelineConfig("global"))

	infos, err := e.Plugins(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 5)

	assert.Equal(t, "sales", infos[0].Name)
	assert.Equal(t, "csv_scan", infos[0].Plugin)
	assert.Equal(t, string(pkg.RoleProducer), infos[0].Role)
	assert.Equal(t, "cryoflow.collections.input.csv", infos[0].Module)
	assert.Equal(t, "sales_out", infos[4].Name)
	assert.Equal(t, string(pkg.RoleConsumer), infos[4].Role)
	assert.NotEmpty(t, infos[4].ID)
}

func TestEngine_Reload(t *testing.T) {
	t.Parallel()

	e, dir := newEngine(t, pipelineConfig("global"))
	path := filepath.Join(dir, "cryoflow.yaml")

	require.NoError(t, os.WriteFile(path, []byte(pipelineConfig("label")), 0o644))
	cfg, err := e.Reload()
	require.NoError(t, err)
	assert.Equal(t, "label", cfg.Pipeline.FailurePolicy)
	assert.Same(t, cfg, e.Config())

	require.NoError(t, os.WriteFile(path, []byte("producers: ["), 0o644))
	_, err = e.Reload()
	require.ErrorIs(t, err, config.ErrConfigLoad)
	assert.Same(t, cfg, e.Config())
}

func TestLabels(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, pipelineConfig("global"))
	assert.Equal(t, map[string]bool{"sales": true, "stock": false}, Labels(e.Config()))
}

func TestNew_NilConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil, hclog.NewNullLogger())
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestEngine_LoadsOncePerOperation(t *testing.T) {
	t.Parallel()

	path := setup(t, `
producers:
  - name: counting
    module: engine.test.counting
consumers:
  - name: out
    module: cryoflow.collections.output.json
    options:
      output_path: out/counting.json
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	var loads [][]PluginInfo
	e, err := New(cfg, hclog.NewNullLogger(), WithLoadObserver(func(infos []PluginInfo) {
		loads = append(loads, infos)
	}))
	require.NoError(t, err)

	before := countingBuilds.Load()
	require.NoError(t, e.Run(context.Background()))
	require.Len(t, loads, 1)
	assert.Len(t, loads[0], 2)
	assert.Equal(t, int64(1), countingBuilds.Load()-before)

	_, err = e.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, int64(2), countingBuilds.Load()-before)
}
