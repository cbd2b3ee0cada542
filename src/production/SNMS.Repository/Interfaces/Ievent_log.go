package interfaces

import "context"

// EventLogRepository records audit-trail entries. Writes are best effort:
// implementations log failures and never propagate them.
type EventLogRepository interface {
	Add(ctx context.Context, companyUID, sensorUID, message string)
}
