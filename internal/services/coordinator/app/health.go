package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the gRPC health service name reported by the coordinator.
const HealthServiceName = "tutoring.space.Coordinator"

// healthServer exposes gRPC health checks for orchestrators.
type healthServer struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
}

func newHealthServer(addr string) (*healthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthSrv := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(HealthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return &healthServer{listener: listener, grpcServer: grpcServer, health: healthSrv}, nil
}

func (s *healthServer) addr() string {
	return s.listener.Addr().String()
}

func (s *healthServer) serve(ctx context.Context) error {
	log.Printf("coordinator: grpc health listening addr=%s", s.addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

func (s *healthServer) close() {
	s.health.Shutdown()
	s.grpcServer.Stop()
	_ = s.listener.Close()
}
