package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"nimbus/internal/auth"
	"nimbus/internal/broker"
	"nimbus/internal/config"
	"nimbus/internal/constants"
	"nimbus/internal/email"
	"nimbus/internal/logger"
	"nimbus/internal/registry"
	"nimbus/pkg/bootstrap"
	"nimbus/pkg/health"
	"nimbus/pkg/middleware"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	registryClient *registry.Client
	service        *email.Service
	server         *http.Server
	router         *gin.Engine
	healthRegistry *health.CheckerRegistry
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := config.ValidateStatic(a.Config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize postgres: %w", err)
	}
	if db == nil {
		return fmt.Errorf("postgres is required: set database.postgres.host")
	}
	a.db = db

	repo := email.NewRepository(a.db)
	a.service = email.NewService(repo, a.Logger)

	if a.Config.Broker.Type != "" {
		if err := a.initConsumer(ctx); err != nil {
			return err
		}
	}

	if a.Config.Registry.URL != "" {
		a.registryClient = registry.NewClient(a.Config.Registry.URL, a.Logger)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeout(),
		WriteTimeout: a.Config.Server.WriteTimeout(),
	}
	return nil
}

func (a *App) initConsumer(ctx context.Context) error {
	if err := a.InitConsumer(); err != nil {
		return err
	}

	if a.Config.Broker.Idempotency.Enabled {
		redisClient, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize redis for idempotency guard: %w", err)
		}
		if redisClient == nil {
			return fmt.Errorf("idempotency guard is enabled but database.redis.host is not set")
		}
		a.redisClient = redisClient

		ttl := time.Duration(a.Config.Broker.Idempotency.TTLSeconds) * time.Second
		a.Consumer.SetGuard(broker.NewRedisGuard(redisClient, ttl))
		a.Logger.InfowCtx(ctx, "Idempotency guard enabled", "ttl", ttl)
	}

	a.Consumer.Handle(constants.EventTypeUserCreated, a.service.HandleUserCreated)
	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware(constants.ServiceNameEmail))

	tokens := auth.NewTokenService(a.Config.Auth.JWTSecret)
	handler := email.NewHandler(a.service, tokens, a.Config.Auth.ServiceSecretKey, a.Logger)
	handler.RegisterRoutes(router)

	a.healthRegistry = health.NewCheckerRegistry()
	a.healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.Consumer != nil {
		a.healthRegistry.Register(health.NewFuncChecker("broker", false, a.checkBroker))
	}
	if a.redisClient != nil {
		a.healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}
	if a.registryClient != nil {
		a.healthRegistry.Register(health.NewHTTPChecker("registry", a.registryClient.HealthURL()))
	}

	router.GET("/health", func(c *gin.Context) {
		h := a.healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) checkBroker(ctx context.Context) error {
	if state := a.Consumer.State(); state != broker.StateConnected {
		return fmt.Errorf("broker session is %s", state)
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	if a.Consumer != nil {
		if err := a.Consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start consumer: %w", err)
		}
	}

	if a.registryClient != nil {
		go a.registerSelf(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		a.Logger.InfowCtx(ctx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.ShutdownApp(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) registerSelf(ctx context.Context) {
	name := a.Config.Registry.ServiceName
	if name == "" {
		name = constants.ServiceNameEmail
	}
	_ = a.registryClient.RegisterWithRetry(ctx, name, a.Config.Registry.AdvertiseURL, a.Config.Registry.Register.Policy())
}

func (a *App) ShutdownApp(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	return a.Shutdown(shutdownCtx, func(ctx context.Context) []error {
		var errs []error
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db, nil)...)
		return errs
	})
}
