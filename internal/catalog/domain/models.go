package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type PricingModel string

const (
	// PricingFlat charges the unit price once per full period.
	PricingFlat PricingModel = "FLAT"
	// PricingPerUnit charges metered consumption between two readings.
	PricingPerUnit PricingModel = "PER_UNIT"
)

// BillableService is a catalog entry that can be bound to contracts.
type BillableService struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	OrgID        snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_services_org_name,priority:1"`
	Name         string          `gorm:"type:text;not null;uniqueIndex:ux_services_org_name,priority:2"`
	Category     string          `gorm:"type:text;not null"`
	PricingModel PricingModel    `gorm:"type:text;not null"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	UnitName     string          `gorm:"type:text;not null"`
	Active       bool            `gorm:"not null;default:true"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (BillableService) TableName() string { return "services" }

// IsMetered reports whether the service is billed from meter readings.
func (s BillableService) IsMetered() bool {
	return s.PricingModel == PricingPerUnit
}

// ContractService binds a catalog service to a contract, optionally overriding
// its price.
type ContractService struct {
	ID          snowflake.ID     `gorm:"primaryKey"`
	OrgID       snowflake.ID     `gorm:"not null;index"`
	ContractID  snowflake.ID     `gorm:"not null;index"`
	ServiceID   snowflake.ID     `gorm:"not null;index"`
	CustomPrice *decimal.Decimal `gorm:"type:numeric(20,2)"`
	Active      bool             `gorm:"not null;default:true"`
	CreatedAt   time.Time        `gorm:"not null"`
	UpdatedAt   time.Time        `gorm:"not null"`
}

// TableName sets the database table name.
func (ContractService) TableName() string { return "contract_services" }

// EffectiveUnitPrice is the custom price when set, otherwise the catalog price.
func (b ContractService) EffectiveUnitPrice(svc BillableService) decimal.Decimal {
	if b.CustomPrice != nil {
		return *b.CustomPrice
	}
	return svc.UnitPrice
}

// BoundService is a binding joined with its catalog service.
type BoundService struct {
	Binding            ContractService
	Service            BillableService
	EffectiveUnitPrice decimal.Decimal
}

// Billable reports whether the binding produces invoice lines.
func (b BoundService) Billable() bool {
	return b.Binding.Active && b.Service.Active
}
