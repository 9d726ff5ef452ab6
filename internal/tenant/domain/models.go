// Package domain holds the tenant (lessee) record referenced by contracts.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leasecore/internal/errs"
	"gorm.io/gorm"
)

// Tenant is a person or company renting a room.
type Tenant struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"not null;index"`
	Name      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tenant *Tenant) error
	// Missing returns the ids from ids that do not exist in the organization.
	Missing(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]snowflake.ID, error)
}

var ErrTenantNotFound = errs.NotFound("tenant_not_found")
