// Package grpc serves the kinveysync.AppData service.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/kinveysync/internal/logging"
	"github.com/dmitrijs2005/kinveysync/internal/rpc"
	"github.com/dmitrijs2005/kinveysync/internal/server/services"
)

type GRPCServer struct {
	rpc.UnimplementedAppDataServer
	address string
	users   *services.UserService
	appdata *services.AppDataService
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, us *services.UserService, as *services.AppDataService) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		appdata: as,
	}
}

// NewServer returns a grpc.Server with the service and its interceptors
// registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
	}, opts...)
	srv := grpc.NewServer(opts...)
	rpc.RegisterAppDataServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on l until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, l net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", l.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(l); err != nil {
		return err
	}

	return nil
}
