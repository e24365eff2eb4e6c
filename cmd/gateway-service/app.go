package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nimbus/internal/config"
	"nimbus/internal/constants"
	"nimbus/internal/gateway"
	"nimbus/internal/logger"
	"nimbus/internal/registry"
	"nimbus/pkg/middleware"
	"nimbus/pkg/ratelimit"
)

type App struct {
	config *config.Config
	logger logger.Logger
	server *http.Server
	router *gin.Engine
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config: cfg,
		logger: log,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := config.ValidateStatic(a.config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeout(),
		WriteTimeout: a.config.Server.WriteTimeout(),
	}
	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware(constants.ServiceNameGateway))

	if a.config.Gateway.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.config.Gateway.RateLimit.RPS,
			Burst:           a.config.Gateway.RateLimit.Burst,
			CleanupInterval: time.Duration(a.config.Gateway.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.config.Gateway.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.logger.InfowCtx(context.Background(), "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	var directory gateway.Directory
	if a.config.Registry.URL != "" {
		directory = registry.NewClient(a.config.Registry.URL, a.logger)
	}

	table := gateway.NewRouteTable(a.config.Gateway.Routes)
	resolver := gateway.NewResolver(a.config.Gateway.StaticServices, directory)
	forwarder := gateway.NewForwarder(table, resolver, a.logger)

	handler := gateway.NewHandler(forwarder, table, a.logger)
	handler.RegisterRoutes(router)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}
