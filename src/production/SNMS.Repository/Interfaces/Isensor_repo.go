package interfaces

import (
	"context"
	"time"

	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
)

// SensorListFilters carries list-query parameters. OrderBy is validated
// against a whitelist by the repository.
type SensorListFilters struct {
	Query     string
	Type      string
	OrderBy   string
	OrderType string
	Offset    int
	Limit     int
}

// SensorListResult is a page of sensors plus the unpaged total.
type SensorListResult struct {
	Data  []snmsmodels.Sensor `json:"data"`
	Total int                 `json:"total"`
}

// IngestTx scopes the persistence of one accepted reading: stored file
// blobs and the live-snapshot update commit atomically or not at all.
type IngestTx interface {
	StoreFile(ctx context.Context, file snmsmodels.BinFile) error
	UpdateSnapshot(ctx context.Context, sensorID int64, snap snmsmodels.SnapshotUpdate) error
	Commit() error
	Rollback() error
}

type SensorRepository interface {
	// Lookup. Soft-deleted sensors are invisible; not-found returns (nil, nil).
	GetByUID(ctx context.Context, uid string) (*snmsmodels.Sensor, error)
	GetByHID(ctx context.Context, companyID int64, hid string) (*snmsmodels.Sensor, error)
	GetByHIDGlobal(ctx context.Context, hid string) (*snmsmodels.Sensor, error)

	// Listing
	ListByCompany(ctx context.Context, companyID int64, filters SensorListFilters) (*SensorListResult, error)

	// Lifecycle
	Create(ctx context.Context, sensor *snmsmodels.Sensor) error
	Update(ctx context.Context, sensorID int64, update snmsmodels.SensorUpdate) error
	SoftDelete(ctx context.Context, sensorID int64) error

	// Configuration push state
	UpdateConfig(ctx context.Context, sensorID int64, config map[string]interface{}, updatedAt time.Time) error
	ClearConfigUpdated(ctx context.Context, sensorID int64) error

	// Ingestion
	BeginIngest(ctx context.Context) (IngestTx, error)

	// Liveness sweep support
	ListLive(ctx context.Context) ([]snmsmodels.Sensor, error)
	SetLiveness(ctx context.Context, sensorID int64, isDown, isInactive bool) error
}
