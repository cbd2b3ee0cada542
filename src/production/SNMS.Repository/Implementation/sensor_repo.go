package implementation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

type PostgresSensorRepository struct {
	db *sql.DB
}

func NewPostgresSensorRepository(db *sql.DB) *PostgresSensorRepository {
	return &PostgresSensorRepository{db: db}
}

var _ interfaces.SensorRepository = (*PostgresSensorRepository)(nil)

const sensorColumns = `
	s.id, s.uid, s.hid, s.name, s.type, s.description, s.company_id, c.uid,
	s.key, s.value, s.config, s.config_updated, s.last_update,
	s.is_down, s.is_inactive, s.ip, s.location_lat, s.location_long,
	s.time_start, s.time_end, s.created_at
`

const sensorFrom = ` FROM sensors s JOIN companies c ON s.company_id = c.id `

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSensor(row rowScanner) (*snmsmodels.Sensor, error) {
	var s snmsmodels.Sensor
	var description, ip, timeStart, timeEnd sql.NullString
	var valueJSON, configJSON []byte
	var configUpdated, lastUpdate sql.NullTime
	var lat, lng sql.NullFloat64

	err := row.Scan(&s.ID, &s.UID, &s.HID, &s.Name, &s.Type, &description,
		&s.CompanyID, &s.CompanyUID, &s.Key, &valueJSON, &configJSON,
		&configUpdated, &lastUpdate, &s.IsDown, &s.IsInactive, &ip,
		&lat, &lng, &timeStart, &timeEnd, &s.CreatedAt)
	if err != nil {
		return nil, err
	}

	s.Description = description.String
	s.IP = ip.String
	if valueJSON != nil {
		if err := json.Unmarshal(valueJSON, &s.Value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal value: %w", err)
		}
	}
	if configJSON != nil {
		if err := json.Unmarshal(configJSON, &s.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	if configUpdated.Valid {
		s.ConfigUpdated = &configUpdated.Time
	}
	if lastUpdate.Valid {
		s.LastUpdate = &lastUpdate.Time
	}
	if lat.Valid {
		s.LocationLat = &lat.Float64
	}
	if lng.Valid {
		s.LocationLong = &lng.Float64
	}
	if timeStart.Valid {
		t, err := snmsmodels.ParseTimeOfDay(timeStart.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse time_start: %w", err)
		}
		s.TimeStart = &t
	}
	if timeEnd.Valid {
		t, err := snmsmodels.ParseTimeOfDay(timeEnd.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse time_end: %w", err)
		}
		s.TimeEnd = &t
	}

	return &s, nil
}

func (r *PostgresSensorRepository) getOne(ctx context.Context, where string, args ...interface{}) (*snmsmodels.Sensor, error) {
	query := `SELECT` + sensorColumns + sensorFrom + `WHERE s.deleted = FALSE AND ` + where

	sensor, err := scanSensor(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return sensor, nil
}

func (r *PostgresSensorRepository) GetByUID(ctx context.Context, uid string) (*snmsmodels.Sensor, error) {
	return r.getOne(ctx, `s.uid = $1`, uid)
}

func (r *PostgresSensorRepository) GetByHID(ctx context.Context, companyID int64, hid string) (*snmsmodels.Sensor, error) {
	return r.getOne(ctx, `s.company_id = $1 AND s.hid = $2`, companyID, hid)
}

func (r *PostgresSensorRepository) GetByHIDGlobal(ctx context.Context, hid string) (*snmsmodels.Sensor, error) {
	return r.getOne(ctx, `s.hid = $1`, hid)
}

// Whitelist for ORDER BY columns; anything else falls back to created_at.
var sensorOrderColumns = map[string]bool{
	"id": true, "uid": true, "type": true, "description": true,
	"name": true, "last_update": true, "created_at": true, "is_down": true,
}

func (r *PostgresSensorRepository) ListByCompany(ctx context.Context, companyID int64, filters interfaces.SensorListFilters) (*interfaces.SensorListResult, error) {
	where := `s.deleted = FALSE AND s.company_id = $1`
	args := []interface{}{companyID}
	argN := 2

	if filters.Query != "" {
		where += fmt.Sprintf(` AND s.name ILIKE $%d`, argN)
		args = append(args, "%"+filters.Query+"%")
		argN++
	}
	if filters.Type != "" {
		where += fmt.Sprintf(` AND s.type = $%d`, argN)
		args = append(args, filters.Type)
		argN++
	}

	var total int
	countQuery := `SELECT COUNT(*)` + sensorFrom + `WHERE ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, err
	}

	orderBy := "created_at"
	if sensorOrderColumns[filters.OrderBy] {
		orderBy = filters.OrderBy
	}
	orderType := "DESC"
	if filters.OrderType == "asc" || filters.OrderType == "ASC" {
		orderType = "ASC"
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT` + sensorColumns + sensorFrom + `WHERE ` + where +
		fmt.Sprintf(` ORDER BY s.%s %s LIMIT $%d OFFSET $%d`, orderBy, orderType, argN, argN+1)
	args = append(args, limit, filters.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sensors := make([]snmsmodels.Sensor, 0)
	for rows.Next() {
		sensor, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, *sensor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &interfaces.SensorListResult{Data: sensors, Total: total}, nil
}

func (r *PostgresSensorRepository) Create(ctx context.Context, sensor *snmsmodels.Sensor) error {
	valueJSON, err := json.Marshal(ensureMetaNotNull(sensor.Value))
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	configJSON, err := json.Marshal(ensureMetaNotNull(sensor.Config))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	sensor.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO sensors (uid, hid, name, type, description, company_id, key,
		                     value, config, config_updated, time_start, time_end, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query, sensor.UID, sensor.HID, sensor.Name,
		sensor.Type, nullString(sensor.Description), sensor.CompanyID, sensor.Key,
		valueJSON, configJSON, nullTime(sensor.ConfigUpdated),
		nullTimeOfDay(sensor.TimeStart), nullTimeOfDay(sensor.TimeEnd),
		sensor.CreatedAt).Scan(&sensor.ID)
}

func (r *PostgresSensorRepository) Update(ctx context.Context, sensorID int64, update snmsmodels.SensorUpdate) error {
	query := `
		UPDATE sensors
		SET name = $1, hid = $2, location_lat = $3, location_long = $4,
		    time_start = $5, time_end = $6
		WHERE id = $7 AND deleted = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, update.Name, update.HID,
		nullFloat(update.LocationLat), nullFloat(update.LocationLong),
		nullTimeOfDay(update.TimeStart), nullTimeOfDay(update.TimeEnd), sensorID)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func (r *PostgresSensorRepository) SoftDelete(ctx context.Context, sensorID int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sensors SET deleted = TRUE WHERE id = $1 AND deleted = FALSE`, sensorID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *PostgresSensorRepository) UpdateConfig(ctx context.Context, sensorID int64, config map[string]interface{}, updatedAt time.Time) error {
	configJSON, err := json.Marshal(ensureMetaNotNull(config))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE sensors SET config = $1, config_updated = $2 WHERE id = $3 AND deleted = FALSE`,
		configJSON, updatedAt, sensorID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *PostgresSensorRepository) ClearConfigUpdated(ctx context.Context, sensorID int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sensors SET config_updated = NULL WHERE id = $1 AND deleted = FALSE`, sensorID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *PostgresSensorRepository) ListLive(ctx context.Context) ([]snmsmodels.Sensor, error) {
	query := `SELECT` + sensorColumns + sensorFrom + `WHERE s.deleted = FALSE AND s.last_update IS NOT NULL`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sensors []snmsmodels.Sensor
	for rows.Next() {
		sensor, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, *sensor)
	}
	return sensors, rows.Err()
}

func (r *PostgresSensorRepository) SetLiveness(ctx context.Context, sensorID int64, isDown, isInactive bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sensors SET is_down = $1, is_inactive = $2 WHERE id = $3 AND deleted = FALSE`,
		isDown, isInactive, sensorID)
	return err
}

// BeginIngest opens the transaction scoping one accepted reading: file
// blobs and the snapshot update become durable together or not at all.
func (r *PostgresSensorRepository) BeginIngest(ctx context.Context) (interfaces.IngestTx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &postgresIngestTx{tx: tx}, nil
}

type postgresIngestTx struct {
	tx *sql.Tx
}

func (t *postgresIngestTx) StoreFile(ctx context.Context, file snmsmodels.BinFile) error {
	metaJSON, err := json.Marshal(ensureMetaNotNull(file.Meta))
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}

	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO bin_files (uid, sensor_id, file, meta_info, created_at) VALUES ($1, $2, $3, $4, $5)`,
		file.UID, file.SensorID, file.Data, metaJSON, file.CreatedAt)
	return err
}

func (t *postgresIngestTx) UpdateSnapshot(ctx context.Context, sensorID int64, snap snmsmodels.SnapshotUpdate) error {
	valueJSON, err := json.Marshal(snap.Value.Raw())
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	query := `
		UPDATE sensors
		SET value = $1, last_update = $2, is_down = FALSE, is_inactive = FALSE,
		    ip = $3,
		    location_lat = COALESCE($4, location_lat),
		    location_long = COALESCE($5, location_long)
		WHERE id = $6 AND deleted = FALSE
	`

	result, err := t.tx.ExecContext(ctx, query, valueJSON, snap.LastUpdate,
		nullString(snap.IP), nullFloat(snap.LocationLat), nullFloat(snap.LocationLong), sensorID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (t *postgresIngestTx) Commit() error {
	return t.tx.Commit()
}

func (t *postgresIngestTx) Rollback() error {
	return t.tx.Rollback()
}
