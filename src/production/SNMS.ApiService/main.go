package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	alerts "gitlab.com/swarmsense/snms.server/src/production/SNMS.Alerts"
	"gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/controllers"
	container "gitlab.com/swarmsense/snms.server/src/production/SNMS.Container"
	ingest "gitlab.com/swarmsense/snms.server/src/production/SNMS.Ingest"
	implementation "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Implementation"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"

	authService "gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/implementation/auth"
	jwt "gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/implementation/jwt"
	authMiddleware "gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/middleware"
	api_models "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models/api"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewApiContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting API Service")

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctr.InitializeDatabase(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize database")
	}

	db, err := ctr.GetDatabase()
	if err != nil {
		logger.FatalWithError(err, "Failed to get database connection")
	}

	config := ctr.GetConfig()

	// Event log is best effort: fall back to a no-op sink when Mongo is
	// unreachable rather than refusing to start.
	var eventLog interfaces.EventLogRepository
	if coll, err := ctr.GetEventLogCollection(ctx); err != nil {
		logger.ErrorWithError(err, "Event log unavailable, entries will be dropped")
		eventLog = implementation.NopEventLogRepository{}
	} else {
		eventLog = implementation.NewMongoEventLogRepository(coll, logger.WithComponent("eventlog"))
	}

	pub, err := ctr.GetPublisher()
	if err != nil {
		logger.FatalWithError(err, "Failed to connect to MQTT broker")
	}
	// A nil interface value, not a typed nil, when MQTT is disabled.
	var publisher interfaces.Publisher
	if pub != nil {
		publisher = pub
	}

	// Create repositories
	sensorRepo := implementation.NewPostgresSensorRepository(db)
	companyRepo := implementation.NewPostgresCompanyRepository(db)
	userRepo := implementation.NewPostgresUserRepository(db)
	fileRepo := implementation.NewPostgresBinFileRepository(db)
	alertRepo := implementation.NewPostgresAlertRepository(db)
	typeRegistry := implementation.NewPostgresTypeRegistry(db)
	seriesRepo := implementation.NewInfluxSeriesRepository(ctr.GetInflux(), config.Influx.Org, config.Influx.Bucket)

	// Core services
	evaluator := alerts.NewEvaluator(alertRepo, eventLog, publisher, logger.WithComponent("alerts"))
	ingestService := ingest.NewService(sensorRepo, typeRegistry, seriesRepo, evaluator, publisher,
		logger.WithComponent("ingest"))

	// Initialize JWT service for token validation
	jwtConfig := api_models.Config{
		SecretKey:            config.Auth.JWTSecretKey,
		AccessTokenDuration:  config.Auth.AccessTokenDuration,
		RefreshTokenDuration: config.Auth.RefreshTokenDuration,
		Issuer:               config.Auth.JWTIssuer,
	}
	jwtService := jwt.NewService(jwtConfig)

	authMiddlewareInstance := authMiddleware.NewAuthMiddleware(jwtService, authMiddleware.DefaultConfig())
	access := authMiddleware.NewSensorAccess(sensorRepo, companyRepo, userRepo)

	authServiceInstance := authService.NewAuthService(userRepo, jwtService)
	if err := authServiceInstance.EnsureAdminUser(ctx, config.Auth.Admin, logger); err != nil {
		logger.FatalWithError(err, "Failed to initialize admin user")
	}

	healthChecker, err := ctr.GetHealthChecker()
	if err != nil {
		logger.FatalWithError(err, "Failed to initialize health checker")
	}

	// Liveness sweep
	detector := alerts.NewDownDetector(config.Liveness, sensorRepo, evaluator, logger)
	detector.Start()
	ctr.AddCleanupFunc(func() error {
		detector.Stop()
		return nil
	})

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// Create controllers and register routes
	authController := controllers.NewAuthController(authServiceInstance, logger, authMiddlewareInstance)
	companyController := controllers.NewCompanyController(companyRepo, userRepo, logger,
		authMiddlewareInstance, access)
	sensorController := controllers.NewSensorController(sensorRepo, fileRepo, typeRegistry, eventLog,
		logger, authMiddlewareInstance, access)
	valueController := controllers.NewValueController(ingestService, seriesRepo, typeRegistry,
		logger, authMiddlewareInstance, access)
	configController := controllers.NewConfigController(sensorRepo, typeRegistry, publisher,
		logger, authMiddlewareInstance, access)
	healthController := controllers.NewHealthController(healthChecker)

	authController.RegisterRoutes(router)
	companyController.RegisterRoutes(router)
	sensorController.RegisterRoutes(router)
	valueController.RegisterRoutes(router)
	configController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)

	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("API service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
