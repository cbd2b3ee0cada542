package interfaces

import (
	"context"

	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
)

// BinFileRepository reads back stored binary blobs. Writes go through the
// ingest transaction, never through this interface.
type BinFileRepository interface {
	// Get returns (nil, nil) when no blob with that uid belongs to the sensor.
	Get(ctx context.Context, sensorID int64, uid string) (*snmsmodels.BinFile, error)
}
