package plugin

import (
	"context"
)

// Frame is an opaque handle to tabular data, lazy or materialized.
// The host never inspects a Frame; only plugins agree on its concrete type.
type Frame any

// Plugin defines the contract shared by every in-process plugin.
//
// Plugins are compiled into the host binary (dotted module references) or
// built with -buildmode=plugin and loaded from disk (path module references).
// Either way they are exposed to the host through a Module.
type Plugin interface {
	// Name returns the plugin's own identifier, used in logs and error messages.
	Name() string
}

// Producer originates a stream of data for its label.
type Producer interface {
	Plugin

	// Produce returns the frame to publish under the instance's label.
	Produce(ctx context.Context) (Frame, error)

	// PredictSchema returns the schema Produce would yield, without reading the data.
	PredictSchema(ctx context.Context) (Schema, error)
}

// Transformer maps one frame to another within a single label.
type Transformer interface {
	Plugin

	// Transform returns a new frame derived from in.
	Transform(ctx context.Context, in Frame) (Frame, error)

	// PredictSchema returns the schema Transform would yield for an input with the given schema.
	PredictSchema(ctx context.Context, in Schema) (Schema, error)
}

// Consumer receives the final frame for its label and performs side effects.
type Consumer interface {
	Plugin

	// Consume writes or publishes the frame.
	Consume(ctx context.Context, in Frame) error

	// PredictSchema validates that the consumer could accept the given schema.
	// Consumers may prepare destinations (e.g. create directories) but must not write data.
	PredictSchema(ctx context.Context, in Schema) (Schema, error)
}
