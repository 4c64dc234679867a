// Package grpcapi hosts the gRPC health and reflection services. Serving
// status follows the checkpoint store, so orchestrators behind a gRPC-aware
// load balancer drop out when they cannot persist turns.
package grpcapi

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"ai-voice-agent-orchestrator/internal/observability"
	"ai-voice-agent-orchestrator/internal/observability/metrics"
)

// ServiceName is the health-checked service name.
const ServiceName = "voice.agent.Orchestrator"

// Server wraps a grpc.Server with health reporting.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	check  observability.ReadinessCheck
}

// New builds the server. A nil check always reports serving.
func New(m *metrics.Metrics, check observability.ReadinessCheck) *Server {
	g := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(m)),
	)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(g)

	s := &Server{grpc: g, health: hs, check: check}
	s.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	return s
}

func (s *Server) setStatus(st grpc_health_v1.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Refresh runs the readiness check once and updates the serving status.
func (s *Server) Refresh(ctx context.Context) {
	if s.check == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.check(ctx); err != nil {
		log.Warn().Err(err).Msg("Readiness check failed, reporting NOT_SERVING")
		s.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
}

// Watch refreshes the serving status every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		s.Refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Serve blocks serving lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	log.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC health server")
	return s.grpc.Serve(lis)
}

// Stop reports NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	log.Info().Msg("Shutting down gRPC server")
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
