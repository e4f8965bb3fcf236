package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/Domenick1991/parking/api"
	availabilityapi "github.com/Domenick1991/parking/internal/api/availability_service_api"
	reservationsapi "github.com/Domenick1991/parking/internal/api/reservations_service_api"
	"github.com/Domenick1991/parking/internal/api/rpc"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	health     *health.Server
}

// Run starts the HTTP API, the gRPC services when enabled and the embedded
// sweeper when configured, and blocks until ctx is cancelled or one of them fails.
func Run(ctx context.Context, app *App) error {
	s := newServers(app)
	cfg := app.Config

	httpLis, err := net.Listen("tcp", cfg.HTTP.Address)
	if err != nil {
		return fmt.Errorf("listen HTTP %s: %w", cfg.HTTP.Address, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if s.grpcServer != nil {
		grpcLis, err := net.Listen("tcp", cfg.GRPC.Address)
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
		}
		g.Go(func() error {
			app.Logger.Info("grpc server listening", "address", grpcLis.Addr().String())
			return s.grpcServer.Serve(grpcLis)
		})
	}

	g.Go(func() error {
		app.Logger.Info("http server listening", "address", httpLis.Addr().String())
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Worker.Embedded {
		g.Go(func() error { return app.Sweeper.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown(app)
	})

	return g.Wait()
}

func newServers(app *App) *Servers {
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		Reservations: app.Reservations,
		Availability: app.Availability,
		Metrics:      app.Metrics,
		Clock:        app.Clock,
		Logger:       app.Logger,
		Checks:       app.Checks,
	})

	s := &Servers{
		httpServer: &http.Server{
			Addr:    app.Config.HTTP.Address,
			Handler: router,
		},
	}

	if app.Config.GRPC.Enabled {
		s.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(rpc.UnaryInterceptor(app.Logger)))
		reservationsapi.Register(s.grpcServer, reservationsapi.NewServer(app.Reservations, app.Clock))
		availabilityapi.Register(s.grpcServer, availabilityapi.NewServer(app.Availability))

		s.health = health.NewServer()
		healthpb.RegisterHealthServer(s.grpcServer, s.health)
		s.health.SetServingStatus(reservationsapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
		s.health.SetServingStatus(availabilityapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	}
	return s
}

func (s *Servers) shutdown(app *App) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.HTTP.ShutdownTimeout)
	defer cancel()

	if s.grpcServer != nil {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	app.Logger.Info("servers stopped")
	return nil
}
