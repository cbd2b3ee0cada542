package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	alerts "gitlab.com/swarmsense/snms.server/src/production/SNMS.Alerts"
	"gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/health"
	config "gitlab.com/swarmsense/snms.server/src/production/SNMS.Config"
	ingest "gitlab.com/swarmsense/snms.server/src/production/SNMS.Ingest"
	snmslogger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	"gitlab.com/swarmsense/snms.server/src/production/SNMS.MqttService/ingestor"
	implementation "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Implementation"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.LoadMqttServiceConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	logger := snmslogger.NewLogger(&cfg.Logging)
	logger.Info("Starting MQTT Ingest Service")

	db, err := health.ConnectPostgresWithTimeout(&cfg.Database, 20*time.Second)
	if err != nil {
		logger.FatalWithError(err, "Failed to connect to database")
	}
	defer db.Close()

	influx := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
	defer influx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Event log is best effort: run without it when Mongo is unreachable.
	var eventLog interfaces.EventLogRepository = implementation.NopEventLogRepository{}
	if mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI)); err != nil {
		logger.ErrorWithError(err, "Event log unavailable, entries will be dropped")
	} else if err := mongoClient.Ping(ctx, nil); err != nil {
		logger.ErrorWithError(err, "Event log unavailable, entries will be dropped")
		_ = mongoClient.Disconnect(context.Background())
	} else {
		defer mongoClient.Disconnect(context.Background())
		coll := mongoClient.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		eventLog = implementation.NewMongoEventLogRepository(coll, logger.WithComponent("eventlog"))
	}

	// Create repositories
	sensorRepo := implementation.NewPostgresSensorRepository(db)
	companyRepo := implementation.NewPostgresCompanyRepository(db)
	alertRepo := implementation.NewPostgresAlertRepository(db)
	typeRegistry := implementation.NewPostgresTypeRegistry(db)
	seriesRepo := implementation.NewInfluxSeriesRepository(influx, cfg.Influx.Org, cfg.Influx.Bucket)

	// The ingestor doubles as the alert publisher; submissions arriving over
	// the broker are never mirrored back, so the normalizer itself gets no
	// publisher.
	ing := ingestor.New(cfg.MQTT, companyRepo, logger.WithComponent("ingestor"))
	evaluator := alerts.NewEvaluator(alertRepo, eventLog, ing, logger.WithComponent("alerts"))
	ingestService := ingest.NewService(sensorRepo, typeRegistry, seriesRepo, evaluator, nil,
		logger.WithComponent("ingest"))

	if err := ing.Start(ingestService); err != nil {
		logger.FatalWithError(err, "Failed to start MQTT ingestor")
	}
	defer ing.Stop()

	// Start health check server
	go startHealthServer(cfg, ing, db, logger)

	logger.Info("MQTT ingestor running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")
}

// startHealthServer starts a simple HTTP server for health checks
func startHealthServer(cfg *config.MqttServiceConfig, ing *ingestor.Ingestor, db *sql.DB, logger *snmslogger.Logger) {
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		mqttStatus := "disconnected"
		if ing.IsConnected() {
			mqttStatus = "connected"
		}

		dbStatus := "disconnected"
		if err := db.PingContext(ctx); err == nil {
			dbStatus = "connected"
		}

		status := "healthy"
		if mqttStatus != "connected" || dbStatus != "connected" {
			status = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if status == "healthy" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		fmt.Fprintf(w, `{
			"status": "%s",
			"timestamp": "%s",
			"services": {
				"mqtt": "%s",
				"database": "%s"
			}
		}`, status, time.Now().UTC().Format(time.RFC3339), mqttStatus, dbStatus)
	})

	logger.Info("Health server starting on port " + cfg.HealthPort)

	if err := http.ListenAndServe(":"+cfg.HealthPort, nil); err != nil {
		logger.FatalWithError(err, "Failed to start health server")
	}
}
