package implementation

import (
	"context"
	"time"

	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoEventLogRepository records audit-trail entries in an insert-only
// Mongo collection. Writes are best effort and never fail the caller.
type MongoEventLogRepository struct {
	coll   *mongo.Collection
	logger *logger.Logger
}

func NewMongoEventLogRepository(coll *mongo.Collection, logger *logger.Logger) *MongoEventLogRepository {
	return &MongoEventLogRepository{coll: coll, logger: logger}
}

var _ interfaces.EventLogRepository = (*MongoEventLogRepository)(nil)

func (r *MongoEventLogRepository) Add(ctx context.Context, companyUID, sensorUID, message string) {
	entry := snmsmodels.EventLog{
		CompanyUID: companyUID,
		SensorUID:  sensorUID,
		Log:        message,
		CreatedAt:  time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		r.logger.ErrorWithError(err, "Failed to write event log entry")
	}
}
