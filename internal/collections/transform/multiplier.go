// Package transform provides transformer plugins over dataframes.
package transform

import (
	"context"
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/peteski22/cryoflow/internal/collections/frames"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Ensure ColumnMultiplier implements pkg.Transformer.
var _ pkg.Transformer = (*ColumnMultiplier)(nil)

// ColumnMultiplier multiplies a numeric column by a constant.
//
// Options:
//   - column_name (required): column to multiply.
//   - multiplier (required): integer or floating point coefficient.
//
// An int column multiplied by an integer literal stays int; anything else yields float.
type ColumnMultiplier struct {
	pkg.Base

	column    string
	factor    float64
	integral  bool
	intFactor int64
}

func newColumnMultiplier(b pkg.Base) (*ColumnMultiplier, error) {
	column, err := b.RequireString("column_name")
	if err != nil {
		return nil, err
	}

	m := &ColumnMultiplier{Base: b, column: column}
	if i, ok := b.Int("multiplier"); ok {
		m.integral = true
		m.intFactor = i
		m.factor = float64(i)
		return m, nil
	}

	f, err := b.RequireFloat("multiplier")
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: \"multiplier\" must be finite", pkg.ErrInvalidOption)
	}
	m.factor = f
	return m, nil
}

func (*ColumnMultiplier) Name() string { return "column_multiplier" }

// Transform fails immediately when the input schema is known and rejects the column.
func (m *ColumnMultiplier) Transform(ctx context.Context, f pkg.Frame) (pkg.Frame, error) {
	out, err := frames.Derive(f, m.apply, func(s pkg.Schema) (pkg.Schema, error) {
		return m.PredictSchema(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *ColumnMultiplier) PredictSchema(_ context.Context, schema pkg.Schema) (pkg.Schema, error) {
	dtype, err := m.check(schema)
	if err != nil {
		return nil, err
	}
	out := schema.Clone()
	out[m.column] = m.resultType(dtype)
	return out, nil
}

func (m *ColumnMultiplier) check(schema pkg.Schema) (pkg.DataType, error) {
	dtype, ok := schema[m.column]
	if !ok {
		return "", fmt.Errorf("column %q not found in schema", m.column)
	}
	if !dtype.Numeric() {
		return "", fmt.Errorf("column %q has type %s, expected numeric type", m.column, dtype)
	}
	return dtype, nil
}

func (m *ColumnMultiplier) resultType(dtype pkg.DataType) pkg.DataType {
	if dtype == pkg.TypeInt && m.integral {
		return pkg.TypeInt
	}
	return pkg.TypeFloat
}

func (m *ColumnMultiplier) apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	dtype, err := m.check(frames.SchemaOf(df))
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	col := df.Col(m.column)
	var out series.Series
	if m.resultType(dtype) == pkg.TypeInt {
		values, err := col.Int()
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("column %q: %w", m.column, err)
		}
		for i := range values {
			values[i] *= int(m.intFactor)
		}
		out = series.Ints(values)
	} else {
		values := col.Float()
		for i := range values {
			values[i] *= m.factor
		}
		out = series.Floats(values)
	}
	out.Name = m.column

	res := df.Mutate(out)
	m.Log().Debug("multiplied column", "column", m.column, "factor", m.factor, "rows", res.Nrow())
	return res, res.Err
}
