package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SscSPs/allowance_tracker/internal/adapters/events/amqp"
	portssvc "github.com/SscSPs/allowance_tracker/internal/core/ports/services"
	"github.com/SscSPs/allowance_tracker/internal/core/services"
	"github.com/SscSPs/allowance_tracker/internal/handlers"
	"github.com/SscSPs/allowance_tracker/internal/middleware"
	"github.com/SscSPs/allowance_tracker/internal/platform/config"
	"github.com/SscSPs/allowance_tracker/internal/repositories/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(_ *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the budget API and keep the live read model running",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := database.NewProvider(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open storage", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if cerr := provider.Close(); cerr != nil {
			logger.Error("Failed to close storage", slog.String("error", cerr.Error()))
		}
	}()

	container := services.NewServiceContainer(cfg, provider.Gateway, logger)

	router, err := newRouter(cfg, logger, container)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return container.ReadModel.Run(gctx)
	})

	if provider.Listen != nil {
		g.Go(func() error {
			return provider.Listen(gctx)
		})
	}

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", slog.String("error", err.Error()))
			return err
		}
		defer client.Close()

		forwarder := amqp.NewForwarder(container.ReadModel, client, cfg.AMQPRoutingKey, amqp.WithForwarderLogger(logger))
		g.Go(func() error {
			return forwarder.Run(gctx)
		})
	}

	g.Go(func() error {
		logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("backend", cfg.DataBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// newRouter builds the gin engine with logging, CORS and rate limiting on commands.
func newRouter(cfg *config.Config, logger *slog.Logger, container *portssvc.ServiceContainer) (*gin.Engine, error) {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORSAllowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
			ExposeHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			MaxAge:        12 * time.Hour,
		}))
	}

	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	limiter, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	handlers.RegisterRoutes(r, container, middleware.RateLimit(limiter))
	return r, nil
}
