// Package cli defines the command-line interface for cryoflow.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	// Built-in plugin collections.
	_ "github.com/peteski22/cryoflow/internal/collections/input"
	_ "github.com/peteski22/cryoflow/internal/collections/output"
	_ "github.com/peteski22/cryoflow/internal/collections/transform"
	"github.com/peteski22/cryoflow/internal/config"
	"github.com/peteski22/cryoflow/internal/engine"
	"github.com/peteski22/cryoflow/internal/logging"
	"github.com/peteski22/cryoflow/internal/telemetry"
)

// Version is the release version, set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// ErrReported is returned when a command has already printed its failure for the user.
var ErrReported = errors.New("command failed")

// Options stores global CLI options shared between commands.
type Options struct {
	ConfigPath string
	Verbose    bool
	LogLevel   string
	LogJSON    bool

	out io.Writer
	err io.Writer
}

// Execute builds the root command, runs it with the provided args and returns any error.
// SIGINT and SIGTERM cancel the command context.
func Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(&Options{})
	cmd.SetArgs(args)

	return cmd.ExecuteContext(ctx)
}

// newRootCommand constructs the root cobra.Command with global flags and subcommands.
func newRootCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cryoflow",
		Short:         "cryoflow runs plugin pipelines over tabular data",
		Long:          "cryoflow loads producer, transformer and consumer plugins from a configuration file and runs them as a label-routed pipeline.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.out = cmd.OutOrStdout()
			opts.err = cmd.ErrOrStderr()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to the configuration file (default: $"+config.EnvConfigPath+" or the XDG config directory)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "V", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error); overrides the config file")
	cmd.PersistentFlags().BoolVar(&opts.LogJSON, "log-json", false, "Log as JSON")

	cmd.AddCommand(
		newRunCommand(opts),
		newCheckCommand(opts),
		newServeCommand(opts),
		newPluginsCommand(opts),
		newVersionCommand(),
	)

	return cmd
}

// session is everything a command needs after the configuration has been loaded.
type session struct {
	cfg       *config.Config
	logger    hclog.Logger
	engine    *engine.Engine
	providers *telemetry.Providers
}

// close flushes telemetry.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.providers.Shutdown(ctx); err != nil {
		s.logger.Warn("failed to shut down telemetry", "error", err)
	}
}

// open loads the configuration and builds the logger, telemetry and engine.
// Failures are printed to the error stream and returned as ErrReported.
func (o *Options) open(ctx context.Context, opts ...engine.Option) (*session, error) {
	cfg, err := config.Load(config.ResolvePath(o.ConfigPath))
	if err != nil {
		return nil, o.fail("%v", err)
	}

	level := cfg.Logging.Level
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	if o.Verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(logging.Options{Level: level, JSON: o.LogJSON || cfg.Logging.JSON, Output: o.err})
	if err != nil {
		return nil, o.fail("%v", err)
	}

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, o.fail("%v", err)
	}

	e, err := engine.New(cfg, logger, append([]engine.Option{engine.WithTelemetry(providers)}, opts...)...)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, o.fail("%v", err)
	}

	return &session{cfg: cfg, logger: logger, engine: e, providers: providers}, nil
}

func (o *Options) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.out, format+"\n", args...)
}

// fail prints a message to the error stream and returns ErrReported.
func (o *Options) fail(format string, args ...any) error {
	_, _ = fmt.Fprintf(o.err, format+"\n", args...)
	return ErrReported
}
