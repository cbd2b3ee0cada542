package implementation

import (
	"context"

	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

// NopEventLogRepository drops all entries. Used when the event log store is
// not configured or unreachable at startup.
type NopEventLogRepository struct{}

var _ interfaces.EventLogRepository = NopEventLogRepository{}

func (NopEventLogRepository) Add(context.Context, string, string, string) {}
