package plugin

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
)

var (
	// ErrMissingOption is returned when a required option is absent or empty.
	ErrMissingOption = errors.New("missing required option")

	// ErrInvalidOption is returned when an option holds a value of the wrong type.
	ErrInvalidOption = errors.New("invalid option")
)

// DefaultLabel is the routing label used when a plugin declaration does not set one.
const DefaultLabel = "default"

// Base carries everything the host hands a plugin at construction time.
// Plugin implementations usually embed it.
type Base struct {
	// Options are the plugin-specific settings from the configuration file.
	Options map[string]any

	// Label routes data between producers, transformers and consumers.
	Label string

	// BaseDir is the directory of the configuration file; relative paths resolve against it.
	BaseDir string

	// Logger is a logger named after the plugin instance.
	Logger hclog.Logger
}

// ResolvePath returns p unchanged (cleaned) when absolute, otherwise joined onto BaseDir.
func (b Base) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(b.BaseDir, p)
}

// Log returns the plugin logger, or a null logger when none was supplied.
func (b Base) Log() hclog.Logger {
	if b.Logger == nil {
		return hclog.NewNullLogger()
	}
	return b.Logger
}

// Has reports whether the option is set.
func (b Base) Has(key string) bool {
	_, ok := b.Options[key]
	return ok
}

// String returns a string option.
func (b Base) String(key string) (string, bool) {
	s, ok := b.Options[key].(string)
	return s, ok
}

// StringOr returns a string option or def when unset.
func (b Base) StringOr(key, def string) string {
	if s, ok := b.String(key); ok && s != "" {
		return s
	}
	return def
}

// RequireString returns a non-empty string option.
func (b Base) RequireString(key string) (string, error) {
	v, ok := b.Options[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %q", ErrMissingOption, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string, got %T", ErrInvalidOption, key, v)
	}
	if s == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingOption, key)
	}
	return s, nil
}

// Int returns an option that was written as an integer literal.
// Floating point values are not accepted, even when integral.
func (b Base) Int(key string) (int64, bool) {
	switch v := b.Options[key].(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	default:
		return 0, false
	}
}

// Float returns any numeric option as a float64.
func (b Base) Float(key string) (float64, bool) {
	if i, ok := b.Int(key); ok {
		return float64(i), true
	}
	switch v := b.Options[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}

// RequireFloat returns a numeric option.
func (b Base) RequireFloat(key string) (float64, error) {
	v, ok := b.Options[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %q", ErrMissingOption, key)
	}
	f, ok := b.Float(key)
	if !ok {
		return 0, fmt.Errorf("%w: %q must be a number, got %T", ErrInvalidOption, key, v)
	}
	return f, nil
}

// Bool returns a boolean option.
func (b Base) Bool(key string) (bool, bool) {
	v, ok := b.Options[key].(bool)
	return v, ok
}

// BoolOr returns a boolean option or def when unset.
func (b Base) BoolOr(key string, def bool) bool {
	if v, ok := b.Bool(key); ok {
		return v
	}
	return def
}

// StringSlice returns a list-of-strings option.
func (b Base) StringSlice(key string) ([]string, error) {
	v, ok := b.Options[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingOption, key)
	}

	switch vs := v.(type) {
	case []string:
		return append([]string(nil), vs...), nil
	case []any:
		out := make([]string, 0, len(vs))
		for i, item := range vs {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q[%d] must be a string, got %T", ErrInvalidOption, key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q must be a list of strings, got %T", ErrInvalidOption, key, v)
	}
}
