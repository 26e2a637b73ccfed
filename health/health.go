package health

import (
	iface "PostureServer/interface"
	"PostureServer/logger"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Overall is the service name reporting the whole process. It serves while the
// classifier runs.
const Overall = ""

// Server exposes task states over the standard gRPC health protocol. It is an
// iface.TaskObserver.
type Server struct {
	srv    *grpc.Server
	health *grpchealth.Server
	log    *zap.Logger

	mu  sync.Mutex
	lis net.Listener

	overallTask string
}

// NewServer registers the given task names with an UNKNOWN status. The
// overall status follows overallTask.
func NewServer(overallTask string, tasks []string, log *zap.Logger) *Server {
	s := &Server{
		srv:         grpc.NewServer(),
		health:      grpchealth.NewServer(),
		log:         logger.OrNop(log),
		overallTask: overallTask,
	}
	for _, task := range tasks {
		s.health.SetServingStatus(task, healthpb.HealthCheckResponse_UNKNOWN)
	}
	s.health.SetServingStatus(Overall, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s.srv, s.health)
	return s
}

// ObserveTask maps a task state to its serving status.
func (s *Server) ObserveTask(task string, state iface.TaskState) {
	status := servingStatus(state)
	s.health.SetServingStatus(task, status)
	if task == s.overallTask {
		if status != healthpb.HealthCheckResponse_SERVING {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.health.SetServingStatus(Overall, status)
	}
}

func servingStatus(state iface.TaskState) healthpb.HealthCheckResponse_ServingStatus {
	switch state {
	case iface.TaskRunning:
		return healthpb.HealthCheckResponse_SERVING
	case iface.TaskStopped, iface.TaskFailed:
		return healthpb.HealthCheckResponse_NOT_SERVING
	default:
		return healthpb.HealthCheckResponse_UNKNOWN
	}
}

// Start listens on addr (":50051") and serves in the background.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.lis = lis
	s.mu.Unlock()
	go func() {
		s.log.Info("health server listening", zap.String("addr", lis.Addr().String()))
		if err := s.srv.Serve(lis); err != nil {
			s.log.Error("health server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
