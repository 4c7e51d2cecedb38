package input

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-gota/gota/dataframe"

	"github.com/peteski22/cryoflow/internal/collections/frames"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Ensure JSONScan implements pkg.Producer.
var _ pkg.Producer = (*JSONScan)(nil)

// JSONScan reads a JSON array of flat objects.
//
// Options:
//   - input_path (required): file to read, relative to the config directory.
type JSONScan struct {
	pkg.Base

	path string
}

func newJSONScan(b pkg.Base) (*JSONScan, error) {
	path, err := b.RequireString("input_path")
	if err != nil {
		return nil, err
	}
	return &JSONScan{Base: b, path: b.ResolvePath(path)}, nil
}

func (*JSONScan) Name() string { return "json_scan" }

func (s *JSONScan) Produce(ctx context.Context) (pkg.Frame, error) {
	schema, err := s.PredictSchema(ctx)
	if err != nil {
		return nil, err
	}
	return frames.NewLazyWithSchema(s.read, schema), nil
}

// PredictSchema infers column types from at most SchemaSampleRows leading objects.
func (s *JSONScan) PredictSchema(context.Context) (pkg.Schema, error) {
	if err := requireFile(s.path); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	d := json.NewDecoder(f)
	d.UseNumber()

	if tok, err := d.Token(); err != nil || tok != json.Delim('[') {
		return nil, fmt.Errorf("reading %s: expected a JSON array of objects", s.path)
	}

	var objects []map[string]any
	for len(objects) < SchemaSampleRows && d.More() {
		var obj map[string]any
		if err := d.Decode(&obj); err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.path, err)
		}
		objects = append(objects, obj)
	}

	df := dataframe.LoadMaps(objects)
	if df.Err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, df.Err)
	}
	return frames.SchemaOf(df), nil
}

func (s *JSONScan) read() (dataframe.DataFrame, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	defer func() { _ = f.Close() }()

	df := dataframe.ReadJSON(f)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("reading %s: %w", s.path, df.Err)
	}

	s.Log().Debug("read json", "path", s.path, "rows", df.Nrow(), "columns", df.Ncol())
	return df, nil
}
