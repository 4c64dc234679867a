package observability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-voice-agent-orchestrator/internal/observability/metrics"
)

const healthService = "grpc.health.v1.Health"

// splitMethod turns "/pkg.Service/Method" into its service and method parts.
func splitMethod(fullMethod string) (service, method string) {
	name := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "unknown", name
}

// observeCall records a finished call. Load balancers call the health service every few
// seconds, so successful health calls only log at debug level.
func observeCall(m *metrics.Metrics, kind, fullMethod string, start time.Time, err error) {
	code := status.Code(err)
	m.RecordGRPCCall(fullMethod, code.String())

	service, method := splitMethod(fullMethod)
	health := service == healthService

	var ev *zerolog.Event
	switch {
	case code != codes.OK && code != codes.Canceled:
		ev = log.Warn()
	case health:
		ev = log.Debug()
	default:
		ev = log.Info()
	}
	ev.Str("kind", kind).
		Str("service", service).
		Str("method", method).
		Bool("healthCheck", health).
		Str("code", code.String()).
		Dur("duration", time.Since(start)).
		Msg("gRPC call finished")
}

// UnaryServerInterceptor records metrics and a log line per unary call.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		observeCall(m, "unary", info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor is the streaming counterpart. Health Watch streams
// stay open for as long as the balancer is connected; the gauge tracks them.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		m.GRPCStreamsActive.Inc()
		defer m.GRPCStreamsActive.Dec()

		err := handler(srv, ss)
		observeCall(m, "stream", info.FullMethod, start, err)
		return err
	}
}
