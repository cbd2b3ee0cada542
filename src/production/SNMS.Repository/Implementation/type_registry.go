package implementation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

// PostgresTypeRegistry serves sensor type schemas from the sensor_types
// table with a short-lived in-memory cache. Type schemas change rarely but
// are read on every ingested value.
type PostgresTypeRegistry struct {
	db       *sql.DB
	cacheTTL time.Duration

	mu       sync.RWMutex
	cache    map[string]snmsmodels.SensorType
	cachedAt time.Time
}

func NewPostgresTypeRegistry(db *sql.DB) *PostgresTypeRegistry {
	return &PostgresTypeRegistry{db: db, cacheTTL: time.Minute}
}

var _ interfaces.TypeRegistry = (*PostgresTypeRegistry)(nil)

func (r *PostgresTypeRegistry) load(ctx context.Context) (map[string]snmsmodels.SensorType, error) {
	r.mu.RLock()
	if r.cache != nil && time.Since(r.cachedAt) < r.cacheTTL {
		cached := r.cache
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	query := `SELECT name, title, fields, config_fields FROM sensor_types WHERE deleted = FALSE`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make(map[string]snmsmodels.SensorType)
	for rows.Next() {
		var t snmsmodels.SensorType
		var title sql.NullString
		var fieldsJSON, configFieldsJSON []byte

		if err := rows.Scan(&t.Name, &title, &fieldsJSON, &configFieldsJSON); err != nil {
			return nil, err
		}
		t.Title = title.String

		if err := json.Unmarshal(fieldsJSON, &t.Fields); err != nil {
			return nil, fmt.Errorf("sensor type %s: failed to unmarshal fields: %w", t.Name, err)
		}
		if configFieldsJSON != nil {
			if err := json.Unmarshal(configFieldsJSON, &t.ConfigFields); err != nil {
				return nil, fmt.Errorf("sensor type %s: failed to unmarshal config fields: %w", t.Name, err)
			}
		}

		types[t.Name] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache = types
	r.cachedAt = time.Now()
	r.mu.Unlock()

	return types, nil
}

func (r *PostgresTypeRegistry) Get(ctx context.Context, name string) (*snmsmodels.SensorType, error) {
	types, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := types[name]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *PostgresTypeRegistry) All(ctx context.Context) (map[string]snmsmodels.SensorType, error) {
	return r.load(ctx)
}
