// Package server wires the backend together: configuration, storage, the
// services and the HTTP and gRPC transports, and runs them until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/kinveysync/internal/logging"
	"github.com/dmitrijs2005/kinveysync/internal/server/blob"
	"github.com/dmitrijs2005/kinveysync/internal/server/config"
	"github.com/dmitrijs2005/kinveysync/internal/server/httpapi"
	"github.com/dmitrijs2005/kinveysync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/kinveysync/internal/server/services"

	gs "github.com/dmitrijs2005/kinveysync/internal/server/grpc"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	rm             repomanager.RepositoryManager
	userService    *services.UserService
	appDataService *services.AppDataService
}

// newPresigner is a seam for tests.
var newPresigner = func(ctx context.Context, cfg *config.Config) (blob.Presigner, error) {
	return blob.NewS3Presigner(ctx, cfg)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(os.Stderr, c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	rm, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	presigner, err := newPresigner(ctx, c)
	switch {
	case errors.Is(err, blob.ErrDisabled):
		logger.Warn(ctx, "blob storage disabled, _blob entities get no transfer urls")
		presigner = nil
	case err != nil:
		_ = rm.Close()
		return nil, fmt.Errorf("blob storage init error: %w", err)
	}

	return &App{
		config:         c,
		logger:         logger,
		rm:             rm,
		userService:    services.NewUserService(rm, c),
		appDataService: services.NewAppDataService(rm, presigner, logger.With("module", "appdata")),
	}, nil
}

// Run serves until ctx is done or a signal arrives, then shuts both
// listeners down.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	defer func() {
		if err := app.rm.Close(); err != nil {
			app.logger.Error(ctx, "closing storage", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting app...")

	httpServer := httpapi.NewServer(
		app.config.HTTPAddr,
		httpapi.NewHandler(app.userService, app.appDataService, httpapi.NewMetrics(), app.logger),
		app.config.ShutdownTimeout,
	)
	grpcServer := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.userService, app.appDataService)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpServer.Run(ctx) })
	g.Go(func() error { return grpcServer.Run(ctx) })

	err := g.Wait()
	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return err
}
