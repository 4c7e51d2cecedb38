// Package input provides producer plugins that read tabular data.
package input

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/go-gota/gota/dataframe"

	"github.com/peteski22/cryoflow/internal/collections/frames"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// SchemaSampleRows bounds how many records a dry-run reads to infer column types.
const SchemaSampleRows = 100

// Ensure CSVScan implements pkg.Producer.
var _ pkg.Producer = (*CSVScan)(nil)

// CSVScan reads a CSV file with a header row. Column types are detected from the data.
//
// Options:
//   - input_path (required): file to read, relative to the config directory.
//   - delimiter: single character field separator, default ",".
type CSVScan struct {
	pkg.Base

	path      string
	delimiter rune
}

func newCSVScan(b pkg.Base) (*CSVScan, error) {
	path, err := b.RequireString("input_path")
	if err != nil {
		return nil, err
	}

	delimiter := ','
	if d, ok := b.String("delimiter"); ok && d != "" {
		r, size := utf8.DecodeRuneInString(d)
		if size != len(d) {
			return nil, fmt.Errorf("%w: \"delimiter\" must be a single character, got %q", pkg.ErrInvalidOption, d)
		}
		delimiter = r
	}

	return &CSVScan{Base: b, path: b.ResolvePath(path), delimiter: delimiter}, nil
}

func (*CSVScan) Name() string { return "csv_scan" }

// Produce returns a lazy frame; the file is read when a consumer collects it.
// The frame carries the schema inferred from the file's leading rows.
func (s *CSVScan) Produce(ctx context.Context) (pkg.Frame, error) {
	schema, err := s.PredictSchema(ctx)
	if err != nil {
		return nil, err
	}
	return frames.NewLazyWithSchema(s.read, schema), nil
}

// PredictSchema infers column types from the header and at most SchemaSampleRows records.
func (s *CSVScan) PredictSchema(context.Context) (pkg.Schema, error) {
	if err := requireFile(s.path); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.Comma = s.delimiter

	records := make([][]string, 0, SchemaSampleRows+1)
	for len(records) <= SchemaSampleRows {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.path, err)
		}
		records = append(records, rec)
	}

	df := dataframe.LoadRecords(records)
	if df.Err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, df.Err)
	}
	return frames.SchemaOf(df), nil
}

func (s *CSVScan) read() (dataframe.DataFrame, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	defer func() { _ = f.Close() }()

	df := dataframe.ReadCSV(f, dataframe.WithDelimiter(s.delimiter))
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("reading %s: %w", s.path, df.Err)
	}

	s.Log().Debug("read csv", "path", s.path, "rows", df.Nrow(), "columns", df.Ncol())
	return df, nil
}

// requireFile reports a missing input file the same way for every scan.
func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", path)
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("input path is a directory: %s", path)
	}
	return nil
}
