package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/peteski22/cryoflow/internal/plugins"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// stages binds the role operations for one mode. T is a frame for runs and a schema for dry-runs.
type stages[T any] struct {
	produce   func(context.Context, pkg.Producer) (T, error)
	transform func(context.Context, pkg.Transformer, T) (T, error)
	consume   func(context.Context, pkg.Consumer, T) error
}

// execute drives producers, per-label transformer chains and per-label consumers,
// returning the final value of each produced label.
func execute[T any](ctx context.Context, p *Pipeline, mode pkg.Mode, s stages[T]) (map[string]T, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+mode.String(),
		trace.WithAttributes(attribute.String("cryoflow.failure_policy", string(p.policy))))
	defer span.End()

	data, labels, err := produceAll(ctx, p, mode, s)
	if err != nil {
		return nil, recordFailure(span, err)
	}

	switch p.policy {
	case FailPerLabel:
		var errs []error
		for _, label := range labels {
			if err := ctx.Err(); err != nil {
				return nil, recordFailure(span, err)
			}

			out, err := transformLabel(ctx, p, mode, s, label, data[label])
			if err == nil {
				err = consumeLabel(ctx, p, mode, s, label, out)
			}
			if err != nil {
				p.logger.Warn("label failed, continuing with remaining labels", "label", label, "mode", mode)
				errs = append(errs, err)
				delete(data, label)
				continue
			}
			data[label] = out
		}
		if len(errs) > 0 {
			return data, recordFailure(span, errors.Join(errs...))
		}

	default:
		for _, label := range labels {
			out, err := transformLabel(ctx, p, mode, s, label, data[label])
			if err != nil {
				return nil, recordFailure(span, err)
			}
			data[label] = out
		}
		for _, label := range labels {
			if err := consumeLabel(ctx, p, mode, s, label, data[label]); err != nil {
				return nil, recordFailure(span, err)
			}
		}
	}

	return data, nil
}

func produceAll[T any](ctx context.Context, p *Pipeline, mode pkg.Mode, s stages[T]) (map[string]T, []string, error) {
	data := make(map[string]T)
	var labels []string

	for _, inst := range p.registry.Get(pkg.RoleProducer) {
		producer, ok := inst.Plugin.(pkg.Producer)
		if !ok {
			return nil, nil, inst.Fail(plugins.ErrPluginExecution, fmt.Errorf("%T is not a %s", inst.Plugin, pkg.RoleProducer))
		}

		out, err := invoke(ctx, p, mode, inst, func(ctx context.Context) (T, error) {
			return s.produce(ctx, producer)
		})
		if err != nil {
			return nil, nil, err
		}

		if _, seen := data[inst.Label()]; seen {
			p.logger.Warn("label produced more than once, keeping the latest", "label", inst.Label(), "plugin", inst.Name())
		} else {
			labels = append(labels, inst.Label())
		}
		data[inst.Label()] = out
	}

	return data, labels, nil
}

func transformLabel[T any](ctx context.Context, p *Pipeline, mode pkg.Mode, s stages[T], label string, in T) (T, error) {
	current := in

	for _, inst := range p.registry.GetByLabel(pkg.RoleTransformer, label) {
		transformer, ok := inst.Plugin.(pkg.Transformer)
		if !ok {
			var zero T
			return zero, inst.Fail(plugins.ErrPluginExecution, fmt.Errorf("%T is not a %s", inst.Plugin, pkg.RoleTransformer))
		}

		prev := current
		out, err := invoke(ctx, p, mode, inst, func(ctx context.Context) (T, error) {
			return s.transform(ctx, transformer, prev)
		})
		if err != nil {
			var zero T
			return zero, err
		}
		current = out
	}

	return current, nil
}

func consumeLabel[T any](ctx context.Context, p *Pipeline, mode pkg.Mode, s stages[T], label string, in T) error {
	consumers := p.registry.GetByLabel(pkg.RoleConsumer, label)
	if len(consumers) == 0 {
		p.logger.Debug("no consumers for label, dropping", "label", label, "mode", mode)
		return nil
	}

	for _, inst := range consumers {
		consumer, ok := inst.Plugin.(pkg.Consumer)
		if !ok {
			return inst.Fail(plugins.ErrPluginExecution, fmt.Errorf("%T is not a %s", inst.Plugin, pkg.RoleConsumer))
		}

		_, err := invoke(ctx, p, mode, inst, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.consume(ctx, consumer, in)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// invoke calls a single plugin operation, converting errors and panics into ErrPluginExecution
// and recording a span and metrics for the call. A cancelled context stops before the call.
func invoke[T any](ctx context.Context, p *Pipeline, mode pkg.Mode, inst *plugins.PluginInstance, fn func(context.Context) (T, error)) (out T, err error) {
	if err := ctx.Err(); err != nil {
		return out, err
	}

	attrs := []attribute.KeyValue{
		attribute.String("cryoflow.plugin", inst.Name()),
		attribute.String("cryoflow.role", string(inst.Role())),
		attribute.String("cryoflow.label", inst.Label()),
		attribute.String("cryoflow.mode", mode.String()),
	}

	ctx, span := p.tracer.Start(ctx, "plugin."+string(inst.Role()), trace.WithAttributes(attrs...))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			var zero T
			out = zero
			err = fmt.Errorf("panic: %v", r)
		}

		set := metric.WithAttributes(attrs...)
		p.calls.Add(ctx, 1, set)
		p.duration.Record(ctx, time.Since(start).Seconds(), set)

		if err != nil {
			err = inst.Fail(plugins.ErrPluginExecution, err)
			p.failures.Add(ctx, 1, set)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.logger.Error("plugin failed",
				"plugin", inst.Name(),
				"role", inst.Role(),
				"label", inst.Label(),
				"mode", mode,
				"err", err,
			)
		}

		span.End()
	}()

	p.logger.Debug("calling plugin", "plugin", inst.Name(), "role", inst.Role(), "label", inst.Label(), "mode", mode)

	return fn(ctx)
}

func recordFailure(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
