package implementation

import (
	"context"
	"database/sql"
	"time"

	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

type PostgresCompanyRepository struct {
	db *sql.DB
}

func NewPostgresCompanyRepository(db *sql.DB) *PostgresCompanyRepository {
	return &PostgresCompanyRepository{db: db}
}

var _ interfaces.CompanyRepository = (*PostgresCompanyRepository)(nil)

func (r *PostgresCompanyRepository) GetByUID(ctx context.Context, uid string) (*snmsmodels.Company, error) {
	query := `SELECT id, uid, name, created_at FROM companies WHERE uid = $1 AND deleted = FALSE`

	var company snmsmodels.Company
	err := r.db.QueryRowContext(ctx, query, uid).Scan(&company.ID, &company.UID,
		&company.Name, &company.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &company, nil
}

func (r *PostgresCompanyRepository) Create(ctx context.Context, company *snmsmodels.Company) error {
	company.CreatedAt = time.Now().UTC()

	query := `INSERT INTO companies (uid, name, created_at) VALUES ($1, $2, $3) RETURNING id`
	return r.db.QueryRowContext(ctx, query, company.UID, company.Name, company.CreatedAt).Scan(&company.ID)
}
