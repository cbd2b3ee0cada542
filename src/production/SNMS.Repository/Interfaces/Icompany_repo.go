package interfaces

import (
	"context"

	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
)

type CompanyRepository interface {
	// GetByUID returns (nil, nil) when the company does not exist or is
	// soft-deleted.
	GetByUID(ctx context.Context, uid string) (*snmsmodels.Company, error)
	Create(ctx context.Context, company *snmsmodels.Company) error
}
