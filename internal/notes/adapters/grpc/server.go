// Package grpc содержит gRPC сервер со стандартной службой проверки состояния.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"opennotes/internal/notes/config"
	"opennotes/pkg/logger"
)

// ServiceName имя службы заметок в ответах health.
const ServiceName = "opennotes.notes"

// Константы для логирования.
const (
	LogServerStarted  = "gRPC server started"
	LogServeFailed    = "failed to serve gRPC"
	LogStopping       = "stopping gRPC server"
	LogListenerClose  = "failed to close listener"
	LogServingChanged = "health status changed"
	ErrListen         = "failed to listen"
	ErrAlreadyStarted = "gRPC server already started"
)

// Server представляет gRPC сервер.
type Server struct {
	server  *grpc.Server
	health  *health.Server
	address string

	mu       sync.Mutex
	listener net.Listener
	serving  bool
}

// New создает новый экземпляр gRPC сервера. До вызова SetServing(true)
// служба сообщает NOT_SERVING.
func New(cfg *config.GRPCConfig) *Server {
	s := &Server{
		server:  grpc.NewServer(),
		health:  health.NewServer(),
		address: cfg.GetAddress(),
	}

	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return s
}

// RegisterService регистрирует дополнительные gRPC сервисы. Вызывается до Start.
func (s *Server) RegisterService(registerFunc func(*grpc.Server)) {
	registerFunc(s.server)
}

// Start запускает gRPC сервер.
func (s *Server) Start(ctx context.Context) error {
	log := logger.Log(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("%s: %s", ErrAlreadyStarted, s.listener.Addr())
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrListen, err)
	}
	s.listener = listener

	log.Info(ctx, LogServerStarted, zap.String("address", listener.Addr().String()))

	go func() {
		if err := s.server.Serve(listener); err != nil {
			log.Error(ctx, LogServeFailed, zap.Error(err))
		}
	}()

	return nil
}

// Addr возвращает адрес прослушивания после Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.address
	}
	return s.listener.Addr().String()
}

// SetServing переключает статус health.
func (s *Server) SetServing(ctx context.Context, serving bool) {
	s.mu.Lock()
	changed := s.serving != serving
	s.serving = serving
	s.mu.Unlock()

	if !changed {
		return
	}

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	logger.Log(ctx).Info(ctx, LogServingChanged, zap.String("status", status.String()))
}

// TrackReadiness опрашивает ready с интервалом и обновляет статус, пока ctx не завершится.
func (s *Server) TrackReadiness(ctx context.Context, ready func() bool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.SetServing(ctx, ready())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SetServing(ctx, ready())
		}
	}
}

// Stop переводит службу в NOT_SERVING и останавливает сервер.
func (s *Server) Stop(ctx context.Context) error {
	log := logger.Log(ctx)
	log.Info(ctx, LogStopping)

	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error(ctx, LogListenerClose, zap.Error(err))
		}
	}
	return nil
}
