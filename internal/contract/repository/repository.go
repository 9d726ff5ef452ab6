package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	contractdomain "github.com/smallbiznis/leasecore/internal/contract/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultListLimit = 100

type repo struct{}

func Provide() contractdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, contract *contractdomain.Contract) error {
	return db.WithContext(ctx).Create(contract).Error
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, contract *contractdomain.Contract) error {
	return db.WithContext(ctx).Save(contract).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	if err := db.WithContext(ctx).
		Where("org_id = ? AND contract_id = ?", orgID, id).
		Delete(&contractdomain.ContractTenant{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Delete(&contractdomain.Contract{}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*contractdomain.Contract, error) {
	return r.find(ctx, db, orgID, id, false)
}

func (r *repo) LockByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*contractdomain.Contract, error) {
	return r.find(ctx, db, orgID, id, true)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, lock bool) (*contractdomain.Contract, error) {
	q := db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var contract contractdomain.Contract
	err := q.Where("org_id = ? AND id = ?", orgID, id).Take(&contract).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	contracts := []contractdomain.Contract{contract}
	if err := r.LoadTenantIDs(ctx, db, contracts); err != nil {
		return nil, err
	}
	return &contracts[0], nil
}

func (r *repo) CodeTaken(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string, excludeID snowflake.ID) (bool, error) {
	var count int64
	q := db.WithContext(ctx).
		Model(&contractdomain.Contract{}).
		Where("org_id = ? AND code = ?", orgID, code)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter contractdomain.ListFilter) ([]contractdomain.Contract, error) {
	q := db.WithContext(ctx).Where("org_id = ?", filter.OrgID)
	if filter.RoomID != 0 {
		q = q.Where("room_id = ?", filter.RoomID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.TenantID != 0 {
		q = q.Where("id IN (?)", db.Model(&contractdomain.ContractTenant{}).
			Select("contract_id").
			Where("org_id = ? AND tenant_id = ?", filter.OrgID, filter.TenantID))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var items []contractdomain.Contract
	if err := q.Order("start_date ASC").Order("id ASC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	if err := r.LoadTenantIDs(ctx, db, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListActiveByRoom(ctx context.Context, db *gorm.DB, orgID, roomID snowflake.ID) ([]contractdomain.Contract, error) {
	var items []contractdomain.Contract
	err := db.WithContext(ctx).
		Where("org_id = ? AND room_id = ? AND status = ?", orgID, roomID, contractdomain.ContractStatusActive).
		Order("start_date ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repo) ListEndedActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID, asOf time.Time) ([]contractdomain.Contract, error) {
	var items []contractdomain.Contract
	err := db.WithContext(ctx).
		Where("org_id = ? AND status = ? AND end_date IS NOT NULL AND end_date < ?", orgID, contractdomain.ContractStatusActive, asOf).
		Order("end_date ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repo) ListActiveOrgIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&contractdomain.Contract{}).
		Where("status = ?", contractdomain.ContractStatusActive).
		Distinct().
		Order("org_id").
		Pluck("org_id", &ids).Error
	return ids, err
}

func (r *repo) ReplaceTenants(ctx context.Context, db *gorm.DB, contract *contractdomain.Contract, now time.Time, genID func() snowflake.ID) error {
	if err := db.WithContext(ctx).
		Where("org_id = ? AND contract_id = ?", contract.OrgID, contract.ID).
		Delete(&contractdomain.ContractTenant{}).Error; err != nil {
		return err
	}

	rows := make([]contractdomain.ContractTenant, 0, len(contract.TenantIDs))
	for _, tenantID := range contract.TenantIDs {
		rows = append(rows, contractdomain.ContractTenant{
			ID:         genID(),
			OrgID:      contract.OrgID,
			ContractID: contract.ID,
			TenantID:   tenantID,
			IsPrimary:  tenantID == contract.PrimaryTenantID,
			CreatedAt:  now,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&rows).Error
}

func (r *repo) LoadTenantIDs(ctx context.Context, db *gorm.DB, contracts []contractdomain.Contract) error {
	if len(contracts) == 0 {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(contracts))
	for _, c := range contracts {
		ids = append(ids, c.ID)
	}

	var links []contractdomain.ContractTenant
	if err := db.WithContext(ctx).
		Where("contract_id IN ?", ids).
		Order("is_primary DESC").Order("id ASC").
		Find(&links).Error; err != nil {
		return err
	}

	byContract := make(map[snowflake.ID][]snowflake.ID, len(contracts))
	for _, link := range links {
		byContract[link.ContractID] = append(byContract[link.ContractID], link.TenantID)
	}
	for i := range contracts {
		contracts[i].TenantIDs = byContract[contracts[i].ID]
	}
	return nil
}
