package transform

import (
	"context"
	"fmt"

	"github.com/go-gota/gota/dataframe"

	"github.com/peteski22/cryoflow/internal/collections/frames"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Ensure ColumnSelect implements pkg.Transformer.
var _ pkg.Transformer = (*ColumnSelect)(nil)

// ColumnSelect keeps the listed columns, in the listed order.
type ColumnSelect struct {
	pkg.Base

	columns []string
}

func newColumnSelect(b pkg.Base) (*ColumnSelect, error) {
	columns, err := b.StringSlice("columns")
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %q", pkg.ErrMissingOption, "columns")
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: column %q listed twice", pkg.ErrInvalidOption, c)
		}
		seen[c] = struct{}{}
	}
	return &ColumnSelect{Base: b, columns: columns}, nil
}

func (*ColumnSelect) Name() string { return "column_select" }

func (s *ColumnSelect) Transform(ctx context.Context, f pkg.Frame) (pkg.Frame, error) {
	out, err := frames.Derive(f, func(df dataframe.DataFrame) (dataframe.DataFrame, error) {
		if err := s.check(frames.SchemaOf(df)); err != nil {
			return dataframe.DataFrame{}, err
		}
		res := df.Select(s.columns)
		return res, res.Err
	}, func(schema pkg.Schema) (pkg.Schema, error) {
		return s.PredictSchema(ctx, schema)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ColumnSelect) PredictSchema(_ context.Context, schema pkg.Schema) (pkg.Schema, error) {
	if err := s.check(schema); err != nil {
		return nil, err
	}
	out := make(pkg.Schema, len(s.columns))
	for _, c := range s.columns {
		out[c] = schema[c]
	}
	return out, nil
}

func (s *ColumnSelect) check(schema pkg.Schema) error {
	for _, c := range s.columns {
		if !schema.Has(c) {
			return fmt.Errorf("column %q not found in schema", c)
		}
	}
	return nil
}
