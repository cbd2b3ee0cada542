package interfaces

import (
	"context"
	"time"

	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
)

// AlertRule is one configured threshold rule on a sensor type field.
type AlertRule struct {
	ID        int64     `json:"id" db:"id"`
	CompanyID int64     `json:"-" db:"company_id"`
	Name      string    `json:"name" db:"name"`
	Type      string    `json:"type" db:"type"`
	Field     string    `json:"field" db:"field"`
	Condition string    `json:"condition" db:"condition"` // gt, lt, eq
	Threshold float64   `json:"threshold" db:"threshold"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type AlertRepository interface {
	ListForSensor(ctx context.Context, sensor *snmsmodels.Sensor) ([]AlertRule, error)
}

// AlertEvaluator evaluates configured alert rules against a new value (or a
// backup/recovery signal carrying the silence duration).
type AlertEvaluator interface {
	Evaluate(ctx context.Context, sensor *snmsmodels.Sensor, values snmsmodels.ValueMap, signal snmsmodels.AlertSignal)
}
