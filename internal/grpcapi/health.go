// Package grpcapi serves the standard gRPC health protocol next to the HTTP
// API so orchestrators can check the process without speaking JSON.
package grpcapi

import (
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-check service name reported for the record API.
const ServiceName = "medledger.v1.Records"

type Server struct {
	addr   string
	logger *log.Logger
	grpc   *grpc.Server
	health *health.Server
}

func NewServer(addr string, logger *log.Logger) *Server {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	// Not serving until the caller says the stores are open.
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{addr: addr, logger: logger, grpc: gs, health: hs}
}

// SetServing flips both the overall and the record service status.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Start listens on the configured address and blocks until Stop.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve blocks serving on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Printf("grpc health listening on %s", lis.Addr())
	return s.grpc.Serve(lis)
}

// Stop marks the server not serving and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
