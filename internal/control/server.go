package control

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/robot-arena/internal/logging"
	"github.com/signalsfoundry/robot-arena/internal/observability"
)

// NewServer builds a gRPC server with the control service registered and
// the standard interceptor chain: request IDs, tracing and RPC metrics.
// collector may be nil.
func NewServer(b Battle, log logging.Logger, collector *observability.ControlCollector) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{
		RequestIDUnaryServerInterceptor(log),
		TracingUnaryServerInterceptor(),
	}
	if collector != nil {
		interceptors = append(interceptors, collector.UnaryServerInterceptor())
	}
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	)
	RegisterBattleControlServer(server, NewService(b, log))
	return server
}
