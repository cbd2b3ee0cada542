package implementation

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

var _ interfaces.UserRepository = (*PostgresUserRepository)(nil)

func (r *PostgresUserRepository) Create(ctx context.Context, user *snmsmodels.User) (*snmsmodels.User, error) {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	query := `
		INSERT INTO users (user_id, username, email, password, super_admin, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id)
		DO UPDATE SET username = EXCLUDED.username, email = EXCLUDED.email, password = EXCLUDED.password,
		              super_admin = EXCLUDED.super_admin, active = EXCLUDED.active,
		              updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, user.UserID, user.Username, user.Email,
		user.Password, user.SuperAdmin, user.Active, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, userID string) (*snmsmodels.User, error) {
	query := `SELECT user_id, username, email, password, super_admin, active, created_at, updated_at FROM users WHERE user_id = $1`

	var user snmsmodels.User
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&user.UserID, &user.Username,
		&user.Email, &user.Password, &user.SuperAdmin, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*snmsmodels.User, error) {
	query := `SELECT user_id, username, email, password, super_admin, active, created_at, updated_at FROM users WHERE username = $1`

	var user snmsmodels.User
	err := r.db.QueryRowContext(ctx, query, username).Scan(&user.UserID, &user.Username,
		&user.Email, &user.Password, &user.SuperAdmin, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *PostgresUserRepository) CompanyRole(ctx context.Context, userID string, companyID int64) (string, error) {
	query := `SELECT role FROM company_users WHERE user_id = $1 AND company_id = $2`

	var role string
	err := r.db.QueryRowContext(ctx, query, userID, companyID).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return role, nil
}

func (r *PostgresUserRepository) SetCompanyRole(ctx context.Context, userID string, companyID int64, role string) error {
	query := `
		INSERT INTO company_users (user_id, company_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, company_id)
		DO UPDATE SET role = EXCLUDED.role
	`
	_, err := r.db.ExecContext(ctx, query, userID, companyID, role)
	return err
}
