// Package health exposes the standard gRPC health service so supervisors
// can probe whether the poll loop is running.
package health

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall
// ("") status.
const ServiceName = "orientd"

// Server serves grpc.health.v1.Health.
type Server struct {
	health  *grpchealth.Server
	server  *grpc.Server
	log     logrus.FieldLogger
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer returns a server that reports NOT_SERVING until SetServing is
// called.
func NewServer(log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return &Server{health: hs, server: gs, log: log}
}

// SetServing flips both the overall and the named service status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	s.log.WithField("status", status.String()).Debug("health status changed")
}

// Listen binds addr and starts serving in the background.
func (s *Server) Listen(addr string) (net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if err := s.Start(lis); err != nil {
		lis.Close()
		return nil, err
	}
	return lis.Addr(), nil
}

// Start serves on lis in the background.
func (s *Server) Start(lis net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("health server already running")
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.WithField("addr", lis.Addr().String()).Info("health server listening")
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			s.log.WithError(err).Error("health server error")
		}
	}()
	return nil
}

// Stop marks every service NOT_SERVING, so open watchers see the change,
// and then stops the server gracefully.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.health.Shutdown()
	s.server.GracefulStop()
	s.wg.Wait()
	s.log.Info("health server stopped")
}
