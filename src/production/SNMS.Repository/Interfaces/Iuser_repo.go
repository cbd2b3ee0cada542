package interfaces

import (
	"context"

	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
)

type UserRepository interface {
	Create(ctx context.Context, user *snmsmodels.User) (*snmsmodels.User, error)
	GetByID(ctx context.Context, userID string) (*snmsmodels.User, error)
	GetByUsername(ctx context.Context, username string) (*snmsmodels.User, error)

	// CompanyRole returns the user's role on the company ("admin", "write",
	// "read") or "" when the user has no role there.
	CompanyRole(ctx context.Context, userID string, companyID int64) (string, error)
	SetCompanyRole(ctx context.Context, userID string, companyID int64, role string) error
}
