package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"

	"nimbus/internal/broker"
	"nimbus/internal/config"
	"nimbus/internal/constants"
	"nimbus/internal/logger"
	"nimbus/internal/registry"
	"nimbus/internal/users"
	"nimbus/pkg/bootstrap"
	"nimbus/pkg/health"
	"nimbus/pkg/middleware"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	mongoClient    *mongo.Client
	registryClient *registry.Client
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

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize mongodb: %w", err)
	}
	if mongoClient == nil {
		return fmt.Errorf("mongodb is required: set database.mongodb.uri")
	}
	a.mongoClient = mongoClient

	if a.Config.Broker.Type != "" {
		if err := a.InitPublisher(); err != nil {
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

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware(constants.ServiceNameUsers))

	db := a.mongoClient.Database(a.Config.Database.MongoDB.Database)
	repo := users.NewRepository(db)
	svc := users.NewService(repo, a.Publisher, a.Logger)

	handler := users.NewHandler(svc, a.Logger)
	handler.RegisterRoutes(router)

	a.healthRegistry = health.NewCheckerRegistry()
	a.healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	if a.Publisher != nil {
		a.healthRegistry.Register(health.NewFuncChecker("broker", false, a.checkBroker))
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
	if state := a.Publisher.State(); state != broker.StateConnected {
		return fmt.Errorf("broker session is %s", state)
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	if a.Publisher != nil {
		if err := a.Publisher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start publisher: %w", err)
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

// registerSelf announces this instance to the discovery directory. Failure is
// tolerated: the service still works behind a static route.
func (a *App) registerSelf(ctx context.Context) {
	name := a.Config.Registry.ServiceName
	if name == "" {
		name = constants.ServiceNameUsers
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
		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, nil, nil, a.mongoClient)...)
		return errs
	})
}
