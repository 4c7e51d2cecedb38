package cli

import (
	"errors"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/peteski22/cryoflow/internal/engine"
)

// newCheckCommand creates the "check" subcommand that validates the pipeline with a dry-run.
func newCheckCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the pipeline without processing data",
		Long:  "Loads every plugin and propagates schemas through the pipeline, reporting the output schema of each label.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded := false
			s, err := opts.open(cmd.Context(), engine.WithLoadObserver(func(infos []engine.PluginInfo) {
				loaded = true
				opts.printf("[CHECK] Loaded %d plugin(s) successfully.", len(infos))
				opts.printf("\n[CHECK] Running dry-run validation...")
			}))
			if err != nil {
				return err
			}
			defer s.close()

			opts.printf("[CHECK] Config loaded: %s", s.cfg.Path())

			schemas, err := s.engine.Check(cmd.Context())
			if err != nil {
				switch {
				case errors.Is(err, engine.ErrNoConsumers):
					return opts.fail("[ERROR] No consumer plugin configured")
				case !loaded:
					return opts.fail("%v", err)
				default:
					return opts.fail("[ERROR] Validation failed: %v", err)
				}
			}

			opts.printf("\n[SUCCESS] Validation completed successfully")
			opts.printf("\nOutput schema:")

			consumed := engine.Labels(s.cfg)
			for _, label := range slices.Sorted(maps.Keys(schemas)) {
				if consumed[label] {
					opts.printf("  [%s]", label)
				} else {
					opts.printf("  [%s] (no consumer)", label)
				}
				schema := schemas[label]
				for _, col := range schema.Columns() {
					opts.printf("    %s: %s", col, schema[col])
				}
			}
			return nil
		},
	}
}
