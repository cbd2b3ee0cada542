package implementation

import (
	"context"
	"database/sql"

	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

type PostgresAlertRepository struct {
	db *sql.DB
}

func NewPostgresAlertRepository(db *sql.DB) *PostgresAlertRepository {
	return &PostgresAlertRepository{db: db}
}

var _ interfaces.AlertRepository = (*PostgresAlertRepository)(nil)

func (r *PostgresAlertRepository) ListForSensor(ctx context.Context, sensor *snmsmodels.Sensor) ([]interfaces.AlertRule, error) {
	query := `
		SELECT id, company_id, name, type, field, condition, threshold, created_at
		FROM alerts
		WHERE deleted = FALSE AND company_id = $1 AND type = $2
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, sensor.CompanyID, sensor.Type)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []interfaces.AlertRule
	for rows.Next() {
		var rule interfaces.AlertRule
		if err := rows.Scan(&rule.ID, &rule.CompanyID, &rule.Name, &rule.Type,
			&rule.Field, &rule.Condition, &rule.Threshold, &rule.CreatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
