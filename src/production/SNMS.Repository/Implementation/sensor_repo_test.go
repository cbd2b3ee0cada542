package implementation

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

var sensorTestColumns = []string{
	"id", "uid", "hid", "name", "type", "description", "company_id", "company_uid",
	"key", "value", "config", "config_updated", "last_update",
	"is_down", "is_inactive", "ip", "location_lat", "location_long",
	"time_start", "time_end", "created_at",
}

func setupSensorRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresSensorRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return db, mock, NewPostgresSensorRepository(db)
}

func TestGetByUID_Found(t *testing.T) {
	db, mock, repo := setupSensorRepo(t)
	defer db.Close()

	createdAt := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	lastUpdate := time.Date(2025, 5, 2, 8, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows(sensorTestColumns).
		AddRow(int64(7), "sensor-uid", "device-1", "roof", "weather", "rooftop unit",
			int64(3), "company-uid", "secret-key",
			[]byte(`{"temperature": 21.5}`), []byte(`{"interval": 60}`),
			nil, lastUpdate, false, false, "10.0.0.12",
			52.52, 13.4, "08:00:00", "20:00:00", createdAt)

	mock.ExpectQuery(`SELECT`).WithArgs("sensor-uid").WillReturnRows(rows)

	sensor, err := repo.GetByUID(context.Background(), "sensor-uid")
	require.NoError(t, err)
	require.NotNil(t, sensor)

	assert.Equal(t, int64(7), sensor.ID)
	assert.Equal(t, "device-1", sensor.HID)
	assert.Equal(t, "company-uid", sensor.CompanyUID)
	assert.Equal(t, 21.5, sensor.Value["temperature"])
	assert.Equal(t, float64(60), sensor.Config["interval"])
	assert.Nil(t, sensor.ConfigUpdated)
	require.NotNil(t, sensor.LastUpdate)
	assert.Equal(t, lastUpdate, *sensor.LastUpdate)
	require.NotNil(t, sensor.TimeStart)
	assert.Equal(t, "08:00:00", sensor.TimeStart.String())
	require.NotNil(t, sensor.LocationLat)
	assert.Equal(t, 52.52, *sensor.LocationLat)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByUID_NotFound(t *testing.T) {
	db, mock, repo := setupSensorRepo(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	sensor, err := repo.GetByUID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, sensor)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByCompany_FiltersAndTotal(t *testing.T) {
	db, mock, repo := setupSensorRepo(t)
	defer db.Close()

	createdAt := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(int64(3), "%roof%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	rows := sqlmock.NewRows(sensorTestColumns).
		AddRow(int64(7), "sensor-uid", "device-1", "roof", "weather", nil,
			int64(3), "company-uid", "secret-key",
			[]byte(`{}`), []byte(`{}`), nil, nil, false, false, nil,
			nil, nil, nil, nil, createdAt)

	mock.ExpectQuery(`SELECT`).
		WithArgs(int64(3), "%roof%", 10, 0).
		WillReturnRows(rows)

	result, err := repo.ListByCompany(context.Background(), 3,
		interfaces.SensorListFilters{Query: "roof", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 12, result.Total)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "sensor-uid", result.Data[0].UID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDelete_MissingSensor(t *testing.T) {
	db, mock, repo := setupSensorRepo(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE sensors SET deleted`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetLiveness(t *testing.T) {
	db, mock, repo := setupSensorRepo(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE sensors SET is_down`).
		WithArgs(true, false, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetLiveness(context.Background(), 7, true, false)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestTx_CommitPath(t *testing.T) {
	db, mock, repo := setupSensorRepo(t)
	defer db.Close()

	now := time.Date(2025, 5, 2, 8, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO bin_files`).
		WithArgs("file-uid", int64(7), []byte{0x1, 0x2}, sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE sensors`).
		WithArgs(sqlmock.AnyArg(), now, "10.0.0.12", nil, nil, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := repo.BeginIngest(context.Background())
	require.NoError(t, err)

	err = tx.StoreFile(context.Background(), snmsmodels.BinFile{
		UID:       "file-uid",
		SensorID:  7,
		Data:      []byte{0x1, 0x2},
		Meta:      map[string]interface{}{"filename": "snapshot.jpg"},
		CreatedAt: now,
	})
	require.NoError(t, err)

	values := snmsmodels.ValueMap{"temperature": snmsmodels.NumericValue(21.5)}
	err = tx.UpdateSnapshot(context.Background(), 7, snmsmodels.SnapshotUpdate{
		Value:      values,
		LastUpdate: now,
		IP:         "10.0.0.12",
	})
	require.NoError(t, err)

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestTx_Rollback(t *testing.T) {
	db, mock, repo := setupSensorRepo(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE sensors`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), nil, nil, nil, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := repo.BeginIngest(context.Background())
	require.NoError(t, err)

	err = tx.UpdateSnapshot(context.Background(), 7, snmsmodels.SnapshotUpdate{
		Value:      snmsmodels.ValueMap{},
		LastUpdate: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
