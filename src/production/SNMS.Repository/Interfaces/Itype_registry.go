package interfaces

import (
	"context"

	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
)

// TypeRegistry maps a sensor type name to its field and config-field
// schemas. Read-only at ingestion time.
type TypeRegistry interface {
	// Get returns (nil, nil) for an unknown type.
	Get(ctx context.Context, name string) (*snmsmodels.SensorType, error)
	All(ctx context.Context) (map[string]snmsmodels.SensorType, error)
}
