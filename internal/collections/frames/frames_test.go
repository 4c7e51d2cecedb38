package frames

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

func sample() dataframe.DataFrame {
	return dataframe.ReadCSV(strings.NewReader("a,b,c,d\n1,2.5,x,true\n3,4.5,y,false\n"))
}

func TestSchemaOf(t *testing.T) {
	t.Parallel()

	df := sample()
	require.NoError(t, df.Err)

	assert.Equal(t, pkg.Schema{
		"a": pkg.TypeInt,
		"b": pkg.TypeFloat,
		"c": pkg.TypeString,
		"d": pkg.TypeBool,
	}, SchemaOf(df))
}

func TestLazy_CollectsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	lazy := NewLazy(func() (dataframe.DataFrame, error) {
		calls++
		return sample(), nil
	})

	assert.Zero(t, calls)

	first, err := Materialize(lazy)
	require.NoError(t, err)
	second, err := Materialize(lazy)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Nrow(), second.Nrow())
}

func TestMap(t *testing.T) {
	t.Parallel()

	mapped := Map(sample(), func(df dataframe.DataFrame) (dataframe.DataFrame, error) {
		return df.Select([]string{"a"}), nil
	})

	df, err := Materialize(mapped)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, df.Names())

	boom := errors.New("boom")
	failed := Map(mapped, func(dataframe.DataFrame) (dataframe.DataFrame, error) {
		return dataframe.DataFrame{}, boom
	})
	_, err = Materialize(failed)
	require.ErrorIs(t, err, boom)
}

func TestMaterialize_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := Materialize("not a frame")
	require.ErrorIs(t, err, ErrUnsupportedFrame)

	_, err = Materialize(nil)
	require.ErrorIs(t, err, ErrUnsupportedFrame)

	df := sample()
	got, err := Materialize(&df)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Nrow())
}

func TestSeriesTypes(t *testing.T) {
	t.Parallel()

	for _, dt := range []pkg.DataType{pkg.TypeInt, pkg.TypeFloat, pkg.TypeBool, pkg.TypeString} {
		assert.Equal(t, dt, FromSeriesType(ToSeriesType(dt)))
	}
	assert.Equal(t, series.String, ToSeriesType(pkg.TypeDatetime))
}

func TestDerive(t *testing.T) {
	t.Parallel()

	identity := func(df dataframe.DataFrame) (dataframe.DataFrame, error) { return df, nil }
	errMissing := errors.New("missing column")

	t.Run("checks known schema without collecting", func(t *testing.T) {
		t.Parallel()

		collected := false
		in := NewLazyWithSchema(func() (dataframe.DataFrame, error) {
			collected = true
			return sample(), nil
		}, pkg.Schema{"a": pkg.TypeInt})

		_, err := Derive(in, identity, func(pkg.Schema) (pkg.Schema, error) { return nil, errMissing })
		require.ErrorIs(t, err, errMissing)
		assert.False(t, collected)
	})

	t.Run("carries predicted schema", func(t *testing.T) {
		t.Parallel()

		out, err := Derive(sample(), identity, func(s pkg.Schema) (pkg.Schema, error) {
			s["e"] = pkg.TypeFloat
			return s, nil
		})
		require.NoError(t, err)

		schema, ok := Schema(out)
		require.True(t, ok)
		assert.Equal(t, pkg.TypeFloat, schema["e"])
		assert.Equal(t, pkg.TypeInt, schema["a"])
	})

	t.Run("unknown schema defers to collect", func(t *testing.T) {
		t.Parallel()

		called := false
		out, err := Derive(NewLazy(func() (dataframe.DataFrame, error) { return sample(), nil }), identity,
			func(s pkg.Schema) (pkg.Schema, error) {
				called = true
				return s, nil
			})
		require.NoError(t, err)
		assert.False(t, called)

		_, ok := Schema(out)
		assert.False(t, ok)

		df, err := Materialize(out)
		require.NoError(t, err)
		assert.Equal(t, 2, df.Nrow())
	})
}
