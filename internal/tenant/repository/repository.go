package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	tenantdomain "github.com/smallbiznis/leasecore/internal/tenant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() tenantdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tenant *tenantdomain.Tenant) error {
	return db.WithContext(ctx).Create(tenant).Error
}

func (r *repo) Missing(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]snowflake.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []snowflake.ID
	if err := db.WithContext(ctx).
		Model(&tenantdomain.Tenant{}).
		Where("org_id = ? AND id IN ?", orgID, ids).
		Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	seen := make(map[snowflake.ID]struct{}, len(found))
	for _, id := range found {
		seen[id] = struct{}{}
	}
	var missing []snowflake.ID
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
