package server

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/peteski22/cryoflow/internal/config"
	"github.com/peteski22/cryoflow/internal/engine"
	"github.com/peteski22/cryoflow/internal/plugins"
	pkg "github.com/peteski22/cryoflow/pkg/contract/plugin"
)

// PipelineServiceName is the fully-qualified gRPC service name.
const PipelineServiceName = "cryoflow.v1.Pipeline"

const (
	methodCheck = "/" + PipelineServiceName + "/Check"
	methodRun   = "/" + PipelineServiceName + "/Run"
)

// PipelineServer is the server API for the cryoflow.v1.Pipeline service.
type PipelineServer interface {
	// Check runs a dry-run and returns {"schemas": {label: {column: type}}}.
	Check(context.Context, *emptypb.Empty) (*structpb.Struct, error)

	// Run executes the pipeline and returns {"status": "ok"}.
	Run(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var pipelineServiceDesc = grpc.ServiceDesc{
	ServiceName: PipelineServiceName,
	HandlerType: (*PipelineServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Check",
			Handler:    checkHandler,
		},
		{
			MethodName: "Run",
			Handler:    runHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cryoflow/v1/pipeline.proto",
}

// RegisterPipelineServer registers srv with s.
func RegisterPipelineServer(s grpc.ServiceRegistrar, srv PipelineServer) {
	s.RegisterService(&pipelineServiceDesc, srv)
}

func checkHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PipelineServer).Check(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCheck}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PipelineServer).Check(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PipelineServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRun}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PipelineServer).Run(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// PipelineClient is the client API for the cryoflow.v1.Pipeline service.
type PipelineClient struct {
	cc grpc.ClientConnInterface
}

// NewPipelineClient returns a client using cc.
func NewPipelineClient(cc grpc.ClientConnInterface) *PipelineClient {
	return &PipelineClient{cc: cc}
}

// Check runs a remote dry-run and decodes the returned schemas.
func (c *PipelineClient) Check(ctx context.Context, opts ...grpc.CallOption) (map[string]pkg.Schema, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodCheck, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return decodeSchemas(out), nil
}

func (c *PipelineClient) Run(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodRun, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Ensure pipelineService implements PipelineServer.
var _ PipelineServer = (*pipelineService)(nil)

type pipelineService struct {
	s *Server
}

func (p *pipelineService) Check(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	schemas, err := p.s.check(ctx, triggerGRPC)
	if err != nil {
		return nil, grpcError(err)
	}

	out := make(map[string]any, len(schemas))
	for label, schema := range schemas {
		cols := make(map[string]any, len(schema))
		for col, dtype := range schema {
			cols[col] = string(dtype)
		}
		out[label] = cols
	}
	return structpb.NewStruct(map[string]any{"schemas": out})
}

func (p *pipelineService) Run(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := p.s.run(ctx, triggerGRPC); err != nil {
		return nil, grpcError(err)
	}
	return structpb.NewStruct(map[string]any{"status": "ok"})
}

// grpcError maps an engine error to a gRPC status.
func grpcError(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, engine.ErrNoProducers),
		errors.Is(err, engine.ErrNoConsumers),
		errors.Is(err, config.ErrInvalidConfig):
		code = codes.FailedPrecondition
	case errors.Is(err, plugins.ErrModuleNotFound),
		errors.Is(err, plugins.ErrPluginClassNotFound):
		code = codes.NotFound
	case errors.Is(err, plugins.ErrPluginExecution):
		code = codes.Aborted
	}
	return status.Error(code, err.Error())
}

// GRPCServer returns a gRPC server with the pipeline and health services registered.
func (s *Server) GRPCServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	RegisterPipelineServer(srv, &pipelineService{s: s})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(PipelineServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	level := hclog.Debug
	if err != nil {
		level = hclog.Warn
	}
	s.logger.Log(level, "grpc call", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
	return resp, err
}

func decodeSchemas(s *structpb.Struct) map[string]pkg.Schema {
	labels := s.GetFields()["schemas"].GetStructValue().GetFields()
	out := make(map[string]pkg.Schema, len(labels))
	for label, v := range labels {
		cols := v.GetStructValue().GetFields()
		schema := make(pkg.Schema, len(cols))
		for col, t := range cols {
			schema[col] = pkg.DataType(t.GetStringValue())
		}
		out[label] = schema
	}
	return out
}
