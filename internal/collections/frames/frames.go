// Package frames adapts gota dataframes to the opaque frames passed between plugins.
package frames

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// ErrUnsupportedFrame is returned when a frame is not a dataframe or a lazy dataframe.
var ErrUnsupportedFrame = errors.New("unsupported frame type")

// Lazy defers building a dataframe until a consumer collects it.
// Collect runs the plan at most once; every caller sees the same result.
//
// A Lazy may carry the schema it is expected to yield, so transforms can
// validate their input before any data is read.
type Lazy struct {
	plan   func() (dataframe.DataFrame, error)
	schema pkg.Schema

	once sync.Once
	df   dataframe.DataFrame
	err  error
}

// NewLazy returns a frame that runs plan on first Collect.
func NewLazy(plan func() (dataframe.DataFrame, error)) *Lazy {
	return &Lazy{plan: plan}
}

// NewLazyWithSchema is NewLazy for plans whose schema is known up front.
func NewLazyWithSchema(plan func() (dataframe.DataFrame, error), schema pkg.Schema) *Lazy {
	return &Lazy{plan: plan, schema: schema}
}

// Collect materializes the frame.
func (l *Lazy) Collect() (dataframe.DataFrame, error) {
	l.once.Do(func() {
		l.df, l.err = l.plan()
		if l.err == nil && l.df.Err != nil {
			l.err = l.df.Err
		}
	})
	return l.df, l.err
}

// Materialize returns the dataframe behind f, collecting lazy frames.
func Materialize(f pkg.Frame) (dataframe.DataFrame, error) {
	switch v := f.(type) {
	case *Lazy:
		return v.Collect()
	case dataframe.DataFrame:
		return v, v.Err
	case *dataframe.DataFrame:
		if v == nil {
			return dataframe.DataFrame{}, fmt.Errorf("%w: nil dataframe", ErrUnsupportedFrame)
		}
		return *v, v.Err
	case nil:
		return dataframe.DataFrame{}, fmt.Errorf("%w: nil frame", ErrUnsupportedFrame)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("%w: %T", ErrUnsupportedFrame, f)
	}
}

// Map returns a lazy frame that applies fn to f when collected.
func Map(f pkg.Frame, fn func(dataframe.DataFrame) (dataframe.DataFrame, error)) *Lazy {
	return NewLazy(func() (dataframe.DataFrame, error) {
		df, err := Materialize(f)
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		return fn(df)
	})
}

// Derive is Map for transforms that can predict their output schema.
// When the schema of f is known without collecting it, predict runs immediately
// and its error is returned; the derived frame then carries the predicted schema.
func Derive(
	f pkg.Frame,
	fn func(dataframe.DataFrame) (dataframe.DataFrame, error),
	predict func(pkg.Schema) (pkg.Schema, error),
) (*Lazy, error) {
	out := Map(f, fn)

	in, ok := Schema(f)
	if !ok {
		return out, nil
	}
	schema, err := predict(in.Clone())
	if err != nil {
		return nil, err
	}
	out.schema = schema
	return out, nil
}

// Schema returns the schema of f when it is known without running a lazy plan.
func Schema(f pkg.Frame) (pkg.Schema, bool) {
	switch v := f.(type) {
	case *Lazy:
		if v == nil || v.schema == nil {
			return nil, false
		}
		return v.schema, true
	case dataframe.DataFrame:
		if v.Err != nil {
			return nil, false
		}
		return SchemaOf(v), true
	case *dataframe.DataFrame:
		if v == nil || v.Err != nil {
			return nil, false
		}
		return SchemaOf(*v), true
	default:
		return nil, false
	}
}

// SchemaOf describes the columns of df.
func SchemaOf(df dataframe.DataFrame) pkg.Schema {
	names := df.Names()
	types := df.Types()

	schema := make(pkg.Schema, len(names))
	for i, name := range names {
		schema[name] = FromSeriesType(types[i])
	}
	return schema
}

// FromSeriesType maps a gota series type to a logical data type.
func FromSeriesType(t series.Type) pkg.DataType {
	switch t {
	case series.Int:
		return pkg.TypeInt
	case series.Float:
		return pkg.TypeFloat
	case series.Bool:
		return pkg.TypeBool
	case series.String:
		return pkg.TypeString
	default:
		return pkg.TypeUnknown
	}
}

// ToSeriesType maps a logical data type to the gota series type that stores it.
// Datetimes and unknown types are stored as strings.
func ToSeriesType(d pkg.DataType) series.Type {
	switch d {
	case pkg.TypeInt:
		return series.Int
	case pkg.TypeFloat:
		return series.Float
	case pkg.TypeBool:
		return series.Bool
	default:
		return series.String
	}
}
