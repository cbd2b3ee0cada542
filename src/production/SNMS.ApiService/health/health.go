package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	_ "github.com/lib/pq"
	config "gitlab.com/swarmsense/snms.server/src/production/SNMS.Config"
)

// BrokerStatus reports whether the MQTT connection is up.
type BrokerStatus interface {
	IsConnected() bool
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	db     *sql.DB
	influx influxdb2.Client
	broker BrokerStatus
}

// NewHealthChecker creates a new health checker. influx and broker may be
// nil when the corresponding backend is not configured.
func NewHealthChecker(db *sql.DB, influx influxdb2.Client, broker BrokerStatus) *HealthChecker {
	return &HealthChecker{db: db, influx: influx, broker: broker}
}

// PingPostgres checks if the PostgreSQL connection is healthy
func (h *HealthChecker) PingPostgres(ctx context.Context) error {
	if h.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return h.db.PingContext(ctx)
}

// CheckDatabaseHealth performs a comprehensive database health check
func (h *HealthChecker) CheckDatabaseHealth(ctx context.Context) error {
	if err := h.PingPostgres(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}

	return nil
}

// GetHealthStatus returns the current health status
func (h *HealthChecker) GetHealthStatus(ctx context.Context) map[string]interface{} {
	checks := make(map[string]interface{})
	overallStatus := "ok"

	if err := h.CheckDatabaseHealth(ctx); err != nil {
		checks["postgres"] = map[string]interface{}{"status": "error", "error": err.Error()}
		overallStatus = "degraded"
	} else {
		checks["postgres"] = map[string]interface{}{"status": "ok"}
	}

	if h.influx != nil {
		if ok, err := h.influx.Ping(ctx); err != nil || !ok {
			msg := "ping failed"
			if err != nil {
				msg = err.Error()
			}
			checks["influx"] = map[string]interface{}{"status": "error", "error": msg}
			overallStatus = "degraded"
		} else {
			checks["influx"] = map[string]interface{}{"status": "ok"}
		}
	}

	if h.broker != nil {
		if h.broker.IsConnected() {
			checks["mqtt"] = map[string]interface{}{"status": "ok"}
		} else {
			checks["mqtt"] = map[string]interface{}{"status": "error", "error": "not connected"}
			overallStatus = "degraded"
		}
	}

	return map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}
}

// DatabaseManager handles database operations
type DatabaseManager struct {
	db *sql.DB
}

// NewDatabaseManager creates a new database manager
func NewDatabaseManager(db *sql.DB) *DatabaseManager {
	return &DatabaseManager{db: db}
}

// ConnectPostgresWithTimeout creates a PostgreSQL connection with a timeout context
func ConnectPostgresWithTimeout(cfg *config.DatabaseConfig, timeout time.Duration) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open PostgreSQL connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// CreateTables creates the required tables if they don't exist
func (dm *DatabaseManager) CreateTables(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	createUsersTable := `
		CREATE TABLE IF NOT EXISTS users (
			user_id     TEXT PRIMARY KEY,
			username    TEXT NOT NULL UNIQUE,
			email       TEXT NOT NULL UNIQUE,
			password    TEXT NOT NULL,
			super_admin BOOLEAN NOT NULL DEFAULT false,
			active      BOOLEAN NOT NULL DEFAULT true,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	createCompaniesTable := `
		CREATE TABLE IF NOT EXISTS companies (
			id          BIGSERIAL PRIMARY KEY,
			uid         TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted     BOOLEAN NOT NULL DEFAULT false
		);
	`

	createCompanyUsersTable := `
		CREATE TABLE IF NOT EXISTS company_users (
			user_id     TEXT NOT NULL,
			company_id  BIGINT NOT NULL,
			role        TEXT NOT NULL,
			PRIMARY KEY (user_id, company_id),
			FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE,
			FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
		);
	`

	createSensorTypesTable := `
		CREATE TABLE IF NOT EXISTS sensor_types (
			name          TEXT PRIMARY KEY,
			title         TEXT,
			fields        JSONB NOT NULL,
			config_fields JSONB,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted       BOOLEAN NOT NULL DEFAULT false
		);
	`

	createSensorsTable := `
		CREATE TABLE IF NOT EXISTS sensors (
			id             BIGSERIAL PRIMARY KEY,
			uid            TEXT NOT NULL UNIQUE,
			hid            TEXT NOT NULL,
			name           TEXT NOT NULL,
			type           TEXT NOT NULL REFERENCES sensor_types(name),
			description    TEXT,
			company_id     BIGINT NOT NULL REFERENCES companies(id),
			key            TEXT NOT NULL,
			value          JSONB,
			config         JSONB,
			config_updated TIMESTAMPTZ,
			last_update    TIMESTAMPTZ,
			is_down        BOOLEAN NOT NULL DEFAULT false,
			is_inactive    BOOLEAN NOT NULL DEFAULT false,
			ip             TEXT,
			location_lat   DOUBLE PRECISION,
			location_long  DOUBLE PRECISION,
			time_start     TIME,
			time_end       TIME,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted        BOOLEAN NOT NULL DEFAULT false,
			UNIQUE (company_id, hid)
		);
	`

	createBinFilesTable := `
		CREATE TABLE IF NOT EXISTS bin_files (
			uid         TEXT PRIMARY KEY,
			sensor_id   BIGINT NOT NULL REFERENCES sensors(id) ON DELETE CASCADE,
			file        BYTEA NOT NULL,
			meta_info   JSONB,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	createAlertsTable := `
		CREATE TABLE IF NOT EXISTS alerts (
			id          BIGSERIAL PRIMARY KEY,
			company_id  BIGINT NOT NULL REFERENCES companies(id),
			name        TEXT NOT NULL,
			type        TEXT NOT NULL,
			field       TEXT NOT NULL,
			condition   TEXT NOT NULL,
			threshold   DOUBLE PRECISION NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted     BOOLEAN NOT NULL DEFAULT false
		);
	`

	createIndexes := `
		CREATE INDEX IF NOT EXISTS idx_sensors_company ON sensors (company_id) WHERE NOT deleted;
		CREATE INDEX IF NOT EXISTS idx_sensors_company_hid ON sensors (company_id, hid) WHERE NOT deleted;
		CREATE INDEX IF NOT EXISTS idx_sensors_last_update ON sensors (last_update) WHERE NOT deleted;
		CREATE INDEX IF NOT EXISTS idx_bin_files_sensor ON bin_files (sensor_id);
		CREATE INDEX IF NOT EXISTS idx_alerts_company_type ON alerts (company_id, type) WHERE NOT deleted;
	`

	queries := []string{
		createUsersTable,
		createCompaniesTable,
		createCompanyUsersTable,
		createSensorTypesTable,
		createSensorsTable,
		createBinFilesTable,
		createAlertsTable,
		createIndexes,
	}

	for _, query := range queries {
		if _, err := dm.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (dm *DatabaseManager) Close() error {
	if dm.db != nil {
		return dm.db.Close()
	}
	return nil
}
