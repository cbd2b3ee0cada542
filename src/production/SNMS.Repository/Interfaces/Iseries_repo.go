package interfaces

import (
	"context"
	"time"

	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
)

// SeriesRepository is the durable append/query store for sensor readings,
// keyed by sensor identity and time. Appends are self-timestamped and
// order-independent; at-least-once delivery is acceptable.
type SeriesRepository interface {
	AddPoint(ctx context.Context, sensor *snmsmodels.Sensor, fields map[string]interface{}, ts time.Time) error
	GetPoints(ctx context.Context, sensor *snmsmodels.Sensor, query snmsmodels.SeriesQuery) (*snmsmodels.SeriesResult, error)
	DeletePoints(ctx context.Context, sensor *snmsmodels.Sensor, start, end time.Time) error
}
