// Package logging builds the host logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Name is the root logger name; sub-systems derive from it with Named.
const Name = "cryoflow"

// Options configures NewLogger.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Empty means info.
	Level string

	// JSON switches the output to one JSON object per line.
	JSON bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// ParseLevel converts a level name to an hclog level.
func ParseLevel(s string) (hclog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return hclog.Info, nil
	}
	level := hclog.LevelFromString(s)
	if level == hclog.NoLevel {
		return hclog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// NewLogger returns the root logger.
func NewLogger(opts Options) (hclog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	color := hclog.AutoColor
	if opts.JSON {
		color = hclog.ColorOff
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       Name,
		Level:      level,
		Output:     out,
		JSONFormat: opts.JSON,
		Color:      color,
	}), nil
}
