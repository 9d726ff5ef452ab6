package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	OrgID    snowflake.ID
	RoomID   snowflake.ID
	TenantID snowflake.ID
	Statuses []ContractStatus
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contract *Contract) error
	Save(ctx context.Context, db *gorm.DB, contract *Contract) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Contract, error)
	// LockByID loads the contract with a row lock held until the transaction ends.
	LockByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Contract, error)
	CodeTaken(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string, excludeID snowflake.ID) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Contract, error)
	ListActiveByRoom(ctx context.Context, db *gorm.DB, orgID, roomID snowflake.ID) ([]Contract, error)
	// ListEndedActive returns ACTIVE contracts with an end date before asOf.
	ListEndedActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID, asOf time.Time) ([]Contract, error)
	// ListActiveOrgIDs returns organizations with at least one ACTIVE contract.
	ListActiveOrgIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error)

	ReplaceTenants(ctx context.Context, db *gorm.DB, contract *Contract, now time.Time, genID func() snowflake.ID) error
	LoadTenantIDs(ctx context.Context, db *gorm.DB, contracts []Contract) error
}
