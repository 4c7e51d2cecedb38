package pipeline

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/metric"
	mnop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tnop "go.opentelemetry.io/otel/trace/noop"

	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

const instrumentationName = "github.com/peteski22/cryoflow/internal/plugins/pipeline"

// Pipeline sequences the instances in a Registry: producers fill a label map,
// each label's transformers run in order, and each label's consumers receive the result.
// Execution is single-threaded and synchronous.
// NOTE: Use NewPipeline to create a new Pipeline.
type Pipeline struct {
	logger   hclog.Logger
	registry *Registry
	policy   FailurePolicy

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	tracer   trace.Tracer
	calls    metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFailurePolicy sets how far plugin failures propagate. Defaults to FailGlobal.
func WithFailurePolicy(policy FailurePolicy) Option {
	return func(p *Pipeline) {
		p.policy = policy
	}
}

// WithTracerProvider sets the provider for pipeline and plugin spans. Defaults to a no-op provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) {
		if tp != nil {
			p.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets the provider for plugin call metrics. Defaults to a no-op provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(p *Pipeline) {
		if mp != nil {
			p.meterProvider = mp
		}
	}
}

// NewPipeline constructs a Pipeline over registry.
func NewPipeline(logger hclog.Logger, registry *Registry, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		logger:         logger.Named("pipeline"),
		registry:       registry,
		policy:         FailGlobal,
		tracerProvider: tnop.NewTracerProvider(),
		meterProvider:  mnop.NewMeterProvider(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if _, err := ParseFailurePolicy(string(p.policy)); err != nil {
		return nil, err
	}

	p.tracer = p.tracerProvider.Tracer(instrumentationName)
	meter := p.meterProvider.Meter(instrumentationName)

	var err error
	p.calls, err = meter.Int64Counter("cryoflow.plugin.calls",
		metric.WithDescription("Number of plugin operations invoked."))
	if err != nil {
		return nil, fmt.Errorf("creating calls counter: %w", err)
	}

	p.failures, err = meter.Int64Counter("cryoflow.plugin.failures",
		metric.WithDescription("Number of plugin operations that returned an error or panicked."))
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	p.duration, err = meter.Float64Histogram("cryoflow.plugin.duration",
		metric.WithDescription("Duration of plugin operations."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return p, nil
}

// Registry returns the registry the pipeline executes.
func (p *Pipeline) Registry() *Registry { return p.registry }

// Policy returns the failure policy in effect.
func (p *Pipeline) Policy() FailurePolicy { return p.policy }

// Run executes the pipeline against real data.
// Consumer side effects that completed before a failure are not rolled back.
func (p *Pipeline) Run(ctx context.Context) error {
	data, err := execute(ctx, p, pkg.ModeRun, stages[pkg.Frame]{
		produce: func(ctx context.Context, pr pkg.Producer) (pkg.Frame, error) {
			return pr.Produce(ctx)
		},
		transform: func(ctx context.Context, t pkg.Transformer, in pkg.Frame) (pkg.Frame, error) {
			return t.Transform(ctx, in)
		},
		consume: func(ctx context.Context, c pkg.Consumer, in pkg.Frame) error {
			return c.Consume(ctx, in)
		},
	})
	if err != nil {
		return err
	}

	p.logger.Info("pipeline completed", "labels", len(data))
	return nil
}

// DryRun propagates schemas through the same control flow as Run without touching data.
// It returns the final schema of every produced label, including labels no consumer reads.
// Under FailPerLabel a non-nil error may accompany the schemas of the labels that succeeded.
func (p *Pipeline) DryRun(ctx context.Context) (map[string]pkg.Schema, error) {
	schemas, err := execute(ctx, p, pkg.ModeDryRun, stages[pkg.Schema]{
		produce: func(ctx context.Context, pr pkg.Producer) (pkg.Schema, error) {
			return pr.PredictSchema(ctx)
		},
		transform: func(ctx context.Context, t pkg.Transformer, in pkg.Schema) (pkg.Schema, error) {
			return t.PredictSchema(ctx, in.Clone())
		},
		consume: func(ctx context.Context, c pkg.Consumer, in pkg.Schema) error {
			_, err := c.PredictSchema(ctx, in.Clone())
			return err
		},
	})
	if err != nil {
		return schemas, err
	}

	p.logger.Info("dry-run completed", "labels", len(schemas))
	return schemas, nil
}
