// Package output provides consumer plugins that write dataframes to files and services.
package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"

	"github.com/peteski22/cryoflow/internal/collections/frames"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Format is the serialization used by writers that produce a byte stream.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// parseFormat returns the explicit format option, or the one implied by name's extension.
func parseFormat(b pkg.Base, name string) (Format, error) {
	f := Format(strings.ToLower(b.StringOr("format", "")))
	if f == "" {
		if strings.EqualFold(filepath.Ext(name), ".json") {
			return FormatJSON, nil
		}
		return FormatCSV, nil
	}
	switch f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", pkg.ErrInvalidOption, f)
	}
}

func (f Format) contentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

func (f Format) write(df dataframe.DataFrame, w io.Writer) error {
	if f == FormatJSON {
		return df.WriteJSON(w)
	}
	return df.WriteCSV(w)
}

// fileWriter is the shared implementation of the file consumers.
type fileWriter struct {
	pkg.Base

	path   string
	format Format
}

func newFileWriter(b pkg.Base, format Format) (fileWriter, error) {
	path, err := b.RequireString("output_path")
	if err != nil {
		return fileWriter{}, err
	}
	return fileWriter{Base: b, path: b.ResolvePath(path), format: format}, nil
}

func (w *fileWriter) Consume(_ context.Context, f pkg.Frame) error {
	df, err := frames.Materialize(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	out, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", w.path, err)
	}
	if err := w.format.write(df, out); err != nil {
		_ = out.Close()
		return fmt.Errorf("writing %s: %w", w.path, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	w.Log().Info("wrote output", "path", w.path, "rows", df.Nrow())
	return nil
}

// PredictSchema checks the output directory can be created and passes the schema through.
func (w *fileWriter) PredictSchema(_ context.Context, schema pkg.Schema) (pkg.Schema, error) {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	return schema, nil
}

// Ensure the file writers implement pkg.Consumer.
var (
	_ pkg.Consumer = (*CSVWriter)(nil)
	_ pkg.Consumer = (*JSONWriter)(nil)
)

// CSVWriter writes a frame to a CSV file with a header row.
//
// Options:
//   - output_path (required): destination, relative to the config directory.
type CSVWriter struct {
	fileWriter
}

func newCSVWriter(b pkg.Base) (*CSVWriter, error) {
	w, err := newFileWriter(b, FormatCSV)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{fileWriter: w}, nil
}

func (*CSVWriter) Name() string { return "csv_writer" }

// JSONWriter writes a frame as a JSON array of objects.
type JSONWriter struct {
	fileWriter
}

func newJSONWriter(b pkg.Base) (*JSONWriter, error) {
	w, err := newFileWriter(b, FormatJSON)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{fileWriter: w}, nil
}

func (*JSONWriter) Name() string { return "json_writer" }
