package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/health"
	config "gitlab.com/swarmsense/snms.server/src/production/SNMS.Config"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	publisher "gitlab.com/swarmsense/snms.server/src/production/SNMS.Publisher"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Container manages dependencies and their lifecycle
type Container struct {
	config *config.Config
	logger *logger.Logger

	db          *sql.DB
	influx      influxdb2.Client
	mongoClient *mongo.Client
	publisher   *publisher.MQTTPublisher

	healthChecker   *health.HealthChecker
	databaseManager *health.DatabaseManager

	// Mutex for thread-safe access
	mu sync.Mutex

	// Cleanup functions
	cleanupFuncs []func() error
}

// NewApiContainer creates a new container for the API service
func NewApiContainer() (*Container, error) {
	cfg, err := config.LoadApiConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load API configuration: %w", err)
	}

	log := logger.NewLogger(&cfg.Logging)

	return &Container{
		config: cfg,
		logger: log,
	}, nil
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetDatabase returns the database connection
func (c *Container) GetDatabase() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		db, err := health.ConnectPostgresWithTimeout(&c.config.Database, 20*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.db = db
		c.cleanupFuncs = append(c.cleanupFuncs, db.Close)
	}

	return c.db, nil
}

// GetInflux returns the time-series database client
func (c *Container) GetInflux() influxdb2.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.influx == nil {
		c.influx = influxdb2.NewClient(c.config.Influx.URL, c.config.Influx.Token)
		c.cleanupFuncs = append(c.cleanupFuncs, func() error {
			c.influx.Close()
			return nil
		})
	}
	return c.influx
}

// GetEventLogCollection returns the Mongo collection backing the event log
func (c *Container) GetEventLogCollection(ctx context.Context) (*mongo.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mongoClient == nil {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.config.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		c.mongoClient = client
		c.cleanupFuncs = append(c.cleanupFuncs, func() error {
			return c.mongoClient.Disconnect(context.Background())
		})
	}

	return c.mongoClient.Database(c.config.Mongo.Database).Collection(c.config.Mongo.Collection), nil
}

// GetPublisher returns the MQTT publisher, or nil when MQTT is disabled.
func (c *Container) GetPublisher() (*publisher.MQTTPublisher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.config.MQTT.Enabled {
		return nil, nil
	}
	if c.publisher == nil {
		pub, err := publisher.Connect(&c.config.MQTT, c.logger.WithComponent("publisher"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to broker: %w", err)
		}
		c.publisher = pub
		c.cleanupFuncs = append(c.cleanupFuncs, func() error {
			c.publisher.Disconnect()
			return nil
		})
	}
	return c.publisher, nil
}

// GetHealthChecker returns the health checker
func (c *Container) GetHealthChecker() (*health.HealthChecker, error) {
	db, err := c.GetDatabase()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for health checker: %w", err)
	}
	influx := c.GetInflux()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthChecker == nil {
		var broker health.BrokerStatus
		if c.publisher != nil {
			broker = c.publisher
		}
		c.healthChecker = health.NewHealthChecker(db, influx, broker)
	}

	return c.healthChecker, nil
}

// GetDatabaseManager returns the database manager
func (c *Container) GetDatabaseManager() (*health.DatabaseManager, error) {
	db, err := c.GetDatabase()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for database manager: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.databaseManager == nil {
		c.databaseManager = health.NewDatabaseManager(db)
	}

	return c.databaseManager, nil
}

// InitializeDatabase initializes the database and creates tables
func (c *Container) InitializeDatabase(ctx context.Context) error {
	dbManager, err := c.GetDatabaseManager()
	if err != nil {
		return fmt.Errorf("failed to get database manager: %w", err)
	}

	if err := dbManager.CreateTables(ctx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	c.logger.Info("Database initialized successfully")
	return nil
}

// AddCleanupFunc adds a cleanup function
func (c *Container) AddCleanupFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	// Execute cleanup functions in reverse order
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	c.logger.Info("Container shutdown complete")
	return nil
}
