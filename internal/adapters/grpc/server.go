package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"gitlab.com/timkado/api/account-cache-service/internal/adapters/config"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
	"gitlab.com/timkado/api/account-cache-service/pkg/contextkeys"
	"gitlab.com/timkado/api/account-cache-service/pkg/crypto"
	"gitlab.com/timkado/api/account-cache-service/pkg/safego"
)

const (
	apiKeyMetadata    = "x-api-key"
	requestIDMetadata = "x-request-id"
)

// Server wraps the gRPC server and its dependencies.
type Server struct {
	gsrv        *grpc.Server
	health      *health.Server
	logger      domain.Logger
	cfgProvider config.Provider
	appCtx      context.Context // Server lifecycle context derived from the app context
	cancelCtx   context.CancelFunc
}

// NewServer creates a new gRPC server instance serving the account cache and the standard health service.
func NewServer(appCtx context.Context, logger domain.Logger, cfgProvider config.Provider, handler AccountCacheServer) *Server {
	gsrv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		requestIDInterceptor,
		apiKeyInterceptor(cfgProvider, logger),
	))
	gsrv.RegisterService(&AccountCacheServiceDesc, handler)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gsrv, healthSrv)

	serverLifecycleCtx, serverLifecycleCancel := context.WithCancel(appCtx)

	return &Server{
		gsrv:        gsrv,
		health:      healthSrv,
		logger:      logger,
		cfgProvider: cfgProvider,
		appCtx:      serverLifecycleCtx,
		cancelCtx:   serverLifecycleCancel,
	}
}

// Start listens on the configured port and serves in the background. A zero port disables the server.
func (s *Server) Start() error {
	grpcPort := s.cfgProvider.Get().Server.GRPCPort
	if grpcPort == 0 {
		s.logger.Info(s.appCtx, "gRPC port is 0; gRPC server disabled")
		return nil
	}
	addr := fmt.Sprintf(":%d", grpcPort)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		s.logger.Error(s.appCtx, "Failed to listen for gRPC", "address", addr, "error", err)
		return fmt.Errorf("failed to listen for gRPC on %s: %w", addr, err)
	}

	s.logger.Info(s.appCtx, "gRPC server starting", "address", addr)
	s.Serve(lis)
	return nil
}

// Serve serves on lis in the background until GracefulStop is called or the app context ends.
func (s *Server) Serve(lis net.Listener) {
	safego.Execute(s.appCtx, s.logger, "GRPCServerServe", func() {
		if err := s.gsrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.logger.Error(s.appCtx, "gRPC server failed to serve", "error", err)
		}
		s.cancelCtx()
	})

	safego.Execute(s.appCtx, s.logger, "GRPCServerContextWatcher", func() {
		<-s.appCtx.Done()
		s.health.Shutdown()
		s.gsrv.GracefulStop()
		s.logger.Info(context.Background(), "gRPC server gracefully stopped")
	})
}

// GracefulStop cancels the server's lifecycle context, which drains in-flight calls and stops serving.
func (s *Server) GracefulStop() {
	s.cancelCtx()
}

func requestIDInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	requestID := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(requestIDMetadata); len(vals) > 0 {
			requestID = vals[0]
		}
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return handler(context.WithValue(ctx, contextkeys.RequestIDKey, requestID), req)
}

// apiKeyInterceptor guards the account cache methods; the health service stays open for probes.
func apiKeyInterceptor(cfgProvider config.Provider, logger domain.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if info.FullMethod == healthpb.Health_Check_FullMethodName {
			return handler(ctx, req)
		}
		expected := cfgProvider.Get().Auth.APIKey
		if expected == "" {
			logger.Error(ctx, "gRPC authentication failed: API key not configured", "method", info.FullMethod)
			return nil, status.Error(codes.Internal, "server configuration error")
		}
		var provided string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(apiKeyMetadata); len(vals) > 0 {
				provided = vals[0]
			}
		}
		if !crypto.SecretsEqual(provided, expected) {
			logger.Warn(ctx, "gRPC authentication failed", "method", info.FullMethod)
			return nil, status.Error(codes.Unauthenticated, "invalid API key")
		}
		return handler(ctx, req)
	}
}
