// Package server runs the pipeline as a long-lived service over HTTP and gRPC,
// optionally on a cron schedule and with configuration reloads.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/peteski22/cryoflow/internal/config"
	"github.com/peteski22/cryoflow/internal/engine"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// ShutdownTimeout bounds how long listeners are given to drain on shutdown.
const ShutdownTimeout = 10 * time.Second

// Trigger label values for run metrics.
const (
	triggerHTTP     = "http"
	triggerGRPC     = "grpc"
	triggerSchedule = "schedule"
	triggerWatch    = "watch"
)

// Runner is the engine surface the server drives.
type Runner interface {
	Run(ctx context.Context) error
	Check(ctx context.Context) (map[string]pkg.Schema, error)
	Plugins(ctx context.Context) ([]engine.PluginInfo, error)
	Reload() (*config.Config, error)
}

// Ensure the engine satisfies Runner.
var _ Runner = (*engine.Engine)(nil)

// Server exposes a Runner over HTTP and gRPC.
// NOTE: Use New to create a Server.
type Server struct {
	logger  hclog.Logger
	runner  Runner
	cfg     config.ServerConfig
	path    string
	metrics *Metrics
}

// New returns a Server for runner configured by cfg.
func New(logger hclog.Logger, runner Runner, cfg *config.Config) *Server {
	return &Server{
		logger:  logger.Named("server"),
		runner:  runner,
		cfg:     cfg.Server,
		path:    cfg.Path(),
		metrics: NewMetrics(),
	}
}

// Serve runs every configured component until ctx is cancelled or one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.HTTPAddr, err)
	}
	grpcLis, err := net.Listen("tcp", s.cfg.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listening on %s: %w", s.cfg.GRPCAddr, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	var scheduler *cron.Cron
	if s.cfg.Schedule != "" {
		if scheduler, err = s.Scheduler(ctx); err != nil {
			_ = httpLis.Close()
			_ = grpcLis.Close()
			return err
		}
	}

	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		s.logger.Info("http server starting", "addr", httpLis.Addr().String())
		if err := httpSrv.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down http server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	grpcSrv := s.GRPCServer()
	g.Go(func() error {
		s.logger.Info("grpc server starting", "addr", grpcLis.Addr().String())
		if err := grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down grpc server...")

		stopped := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(ShutdownTimeout):
			grpcSrv.Stop()
		}
		return nil
	})

	if scheduler != nil {
		scheduler.Start()
		s.logger.Info("scheduler started", "schedule", s.cfg.Schedule)

		g.Go(func() error {
			<-ctx.Done()
			<-scheduler.Stop().Done()
			return nil
		})
	}

	if s.cfg.Watch && s.path != "" {
		g.Go(func() error {
			return Watch(ctx, s.logger, s.path, func() { s.reload(ctx) })
		})
	}

	return g.Wait()
}

// run executes the pipeline and records the outcome.
func (s *Server) run(ctx context.Context, trigger string) error {
	start := time.Now()
	err := s.runner.Run(ctx)
	s.metrics.observeRun(pkg.ModeRun.String(), trigger, start, err)
	if err != nil {
		s.logger.Error("pipeline run failed", "trigger", trigger, "error", err)
		return err
	}
	s.logger.Info("pipeline run completed", "trigger", trigger, "duration", time.Since(start))
	return nil
}

// check validates the pipeline and records the outcome.
func (s *Server) check(ctx context.Context, trigger string) (map[string]pkg.Schema, error) {
	start := time.Now()
	schemas, err := s.runner.Check(ctx)
	s.metrics.observeRun(pkg.ModeDryRun.String(), trigger, start, err)
	if err != nil {
		s.logger.Warn("pipeline validation failed", "trigger", trigger, "error", err)
		return schemas, err
	}
	return schemas, nil
}

// reload re-reads the configuration and validates the new pipeline.
func (s *Server) reload(ctx context.Context) {
	if _, err := s.runner.Reload(); err != nil {
		s.logger.Error("failed to reload configuration, keeping the previous one", "error", err)
		return
	}
	if _, err := s.check(ctx, triggerWatch); err == nil {
		s.logger.Info("reloaded configuration is valid", "path", s.path)
	}
}
