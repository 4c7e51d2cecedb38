package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/peteski22/cryoflow/internal/config"
	"github.com/peteski22/cryoflow/internal/engine"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// newRunCommand creates the "run" subcommand that executes the pipeline once.
func newRunCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded := false
			s, err := opts.open(cmd.Context(), engine.WithLoadObserver(func(infos []engine.PluginInfo) {
				loaded = true
				opts.printf("Loaded %d plugin(s) successfully.", len(infos))
				opts.printf("\nExecuting pipeline...")
			}))
			if err != nil {
				return err
			}
			defer s.close()

			opts.printf("Config loaded: %s", s.cfg.Path())
			opts.printSummary(s.cfg)

			if err := s.engine.Run(cmd.Context()); err != nil {
				switch {
				case errors.Is(err, engine.ErrNoProducers):
					return opts.fail("[ERROR] No producer plugin configured")
				case errors.Is(err, engine.ErrNoConsumers):
					return opts.fail("[ERROR] No consumer plugin configured")
				case !loaded:
					return opts.fail("%v", err)
				default:
					return opts.fail("[ERROR] Pipeline failed: %v", err)
				}
			}

			opts.printf("[SUCCESS] Pipeline completed successfully")
			return nil
		},
	}
}

// printSummary lists every declaration with its label, module and state.
func (o *Options) printSummary(cfg *config.Config) {
	for _, role := range pkg.OrderedRoles {
		decls := cfg.Plugins(role)
		o.printf("  %-13s %d plugin(s)", string(role)+"s:", len(decls))
		for _, d := range decls {
			state := "enabled"
			if !d.IsEnabled() {
				state = "disabled"
			}
			o.printf("    - %s [%s] (%s) [%s]", d.Name, d.LabelOrDefault(), d.Module, state)
		}
	}
}
