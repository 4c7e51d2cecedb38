package plugin

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase_ResolvePath(t *testing.T) {
	t.Parallel()

	base := Base{BaseDir: filepath.FromSlash("/etc/cryoflow")}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "relative", in: "data/in.csv", want: filepath.FromSlash("/etc/cryoflow/data/in.csv")},
		{name: "dot relative", in: "./in.csv", want: filepath.FromSlash("/etc/cryoflow/in.csv")},
		{name: "parent", in: "../in.csv", want: filepath.FromSlash("/etc/in.csv")},
		{name: "absolute", in: filepath.FromSlash("/tmp/x/../in.csv"), want: filepath.FromSlash("/tmp/in.csv")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if tc.name == "absolute" && !filepath.IsAbs(tc.in) {
				t.Skip("not an absolute path on this platform")
			}
			assert.Equal(t, tc.want, base.ResolvePath(tc.in))
		})
	}
}

func TestBase_RequireString(t *testing.T) {
	t.Parallel()

	base := Base{Options: map[string]any{"path": "a.csv", "empty": "", "num": 3}}

	got, err := base.RequireString("path")
	require.NoError(t, err)
	assert.Equal(t, "a.csv", got)

	_, err = base.RequireString("missing")
	require.ErrorIs(t, err, ErrMissingOption)
	assert.Contains(t, err.Error(), `"missing"`)

	_, err = base.RequireString("empty")
	require.ErrorIs(t, err, ErrMissingOption)

	_, err = base.RequireString("num")
	require.ErrorIs(t, err, ErrInvalidOption)
}

func TestBase_Numbers(t *testing.T) {
	t.Parallel()

	base := Base{Options: map[string]any{
		"int":    2,
		"int64":  int64(7),
		"float":  2.5,
		"string": "2",
	}}

	i, ok := base.Int("int")
	require.True(t, ok)
	assert.Equal(t, int64(2), i)

	i, ok = base.Int("int64")
	require.True(t, ok)
	assert.Equal(t, int64(7), i)

	_, ok = base.Int("float")
	assert.False(t, ok)

	f, err := base.RequireFloat("int")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, f, 0)

	f, err = base.RequireFloat("float")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, f, 0)

	_, err = base.RequireFloat("string")
	require.ErrorIs(t, err, ErrInvalidOption)

	_, err = base.RequireFloat("absent")
	require.ErrorIs(t, err, ErrMissingOption)
}

func TestBase_StringSlice(t *testing.T) {
	t.Parallel()

	base := Base{Options: map[string]any{
		"any":   []any{"a", "b"},
		"typed": []string{"c"},
		"mixed": []any{"a", 1},
	}}

	got, err := base.StringSlice("any")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = base.StringSlice("typed")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got)

	_, err = base.StringSlice("mixed")
	require.ErrorIs(t, err, ErrInvalidOption)

	_, err = base.StringSlice("none")
	require.ErrorIs(t, err, ErrMissingOption)
}

func TestBase_Defaults(t *testing.T) {
	t.Parallel()

	base := Base{Options: map[string]any{"flag": true, "name": ""}}

	assert.True(t, base.BoolOr("flag", false))
	assert.True(t, base.BoolOr("other", true))
	assert.Equal(t, "fallback", base.StringOr("name", "fallback"))
	assert.NotNil(t, base.Log())
}
