package cli

import (
	"github.com/spf13/cobra"

	"github.com/peteski22/cryoflow/internal/server"
)

// newServeCommand creates the "serve" subcommand that runs the HTTP and gRPC APIs.
func newServeCommand(opts *Options) *cobra.Command {
	var (
		httpAddr string
		grpcAddr string
		schedule string
		watch    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP and gRPC",
		Long:  "Serves run and check endpoints over HTTP and gRPC, optionally runs the pipeline on a cron schedule and re-validates it when the configuration file changes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			flags := cmd.Flags()
			if flags.Changed("http-addr") {
				s.cfg.Server.HTTPAddr = httpAddr
			}
			if flags.Changed("grpc-addr") {
				s.cfg.Server.GRPCAddr = grpcAddr
			}
			if flags.Changed("schedule") {
				s.cfg.Server.Schedule = schedule
			}
			if flags.Changed("watch") {
				s.cfg.Server.Watch = watch
			}

			s.logger.Info("starting cryoflow", "version", Version, "config", s.cfg.Path())
			if err := server.New(s.logger, s.engine, s.cfg).Serve(cmd.Context()); err != nil {
				return opts.fail("[ERROR] %v", err)
			}
			s.logger.Info("cryoflow stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (default from config, :8080)")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (default from config, :9090)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression to run the pipeline on")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-validate the pipeline when the configuration file changes")

	return cmd
}
