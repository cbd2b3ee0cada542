package implementation

import (
	"context"
	"database/sql"
	"encoding/json"

	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

type PostgresBinFileRepository struct {
	db *sql.DB
}

func NewPostgresBinFileRepository(db *sql.DB) *PostgresBinFileRepository {
	return &PostgresBinFileRepository{db: db}
}

var _ interfaces.BinFileRepository = (*PostgresBinFileRepository)(nil)

func (r *PostgresBinFileRepository) Get(ctx context.Context, sensorID int64, uid string) (*snmsmodels.BinFile, error) {
	query := `SELECT uid, sensor_id, file, meta_info, created_at FROM bin_files WHERE sensor_id = $1 AND uid = $2`

	var file snmsmodels.BinFile
	var metaJSON []byte
	err := r.db.QueryRowContext(ctx, query, sensorID, uid).Scan(
		&file.UID, &file.SensorID, &file.Data, &metaJSON, &file.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if metaJSON != nil {
		if err := json.Unmarshal(metaJSON, &file.Meta); err != nil {
			return nil, err
		}
	}
	return &file, nil
}
