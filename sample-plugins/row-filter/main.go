// Command row-filter is an out-of-tree transformer loaded by path.
//
// Build it with the same toolchain as the host:
//
//	go build -buildmode=plugin -o bin/sample-plugins/row-filter.so ./sample-plugins/row-filter
//
// and reference the resulting file from the configuration:
//
//	transformers:
//	  - name: big_orders
//	    module: bin/sample-plugins/row-filter.so
//	    options:
//	      column_name: amount
//	      operator: ">="
//	      value: 100
package main

import (
	"context"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/peteski22/cryoflow/internal/collections/frames"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// Module is looked up by the host after the shared object is opened.
var Module = pkg.NewModule("row-filter",
	pkg.Define("RowFilter", newRowFilter),
)

var comparators = map[string]series.Comparator{
	"==": series.Eq,
	"!=": series.Neq,
	">":  series.Greater,
	">=": series.GreaterEq,
	"<":  series.Less,
	"<=": series.LessEq,
}

// Ensure RowFilter implements pkg.Transformer.
var _ pkg.Transformer = (*RowFilter)(nil)

// RowFilter keeps the rows whose column compares true against a constant.
type RowFilter struct {
	pkg.Base

	column     string
	comparator series.Comparator
	value      any
}

func newRowFilter(b pkg.Base) (*RowFilter, error) {
	column, err := b.RequireString("column_name")
	if err != nil {
		return nil, err
	}

	op := b.StringOr("operator", "==")
	cmp, ok := comparators[op]
	if !ok {
		return nil, fmt.Errorf("%w: unknown operator %q", pkg.ErrInvalidOption, op)
	}

	value, ok := b.Options["value"]
	if !ok || value == nil {
		return nil, fmt.Errorf("%w: %q", pkg.ErrMissingOption, "value")
	}

	return &RowFilter{Base: b, column: column, comparator: cmp, value: value}, nil
}

func (*RowFilter) Name() string { return "row_filter" }

func (r *RowFilter) Transform(ctx context.Context, f pkg.Frame) (pkg.Frame, error) {
	predict := func(s pkg.Schema) (pkg.Schema, error) { return r.PredictSchema(ctx, s) }

	out, err := frames.Derive(f, func(df dataframe.DataFrame) (dataframe.DataFrame, error) {
		if _, err := predict(frames.SchemaOf(df)); err != nil {
			return dataframe.DataFrame{}, err
		}
		res := df.Filter(dataframe.F{Colname: r.column, Comparator: r.comparator, Comparando: r.value})
		return res, res.Err
	}, predict)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RowFilter) PredictSchema(_ context.Context, schema pkg.Schema) (pkg.Schema, error) {
	if !schema.Has(r.column) {
		return nil, fmt.Errorf("column %q not found in schema", r.column)
	}
	return schema, nil
}

func main() {}
