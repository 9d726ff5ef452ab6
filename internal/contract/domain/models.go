package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasecore/pkg/period"
)

type ContractStatus string

const (
	ContractStatusDraft      ContractStatus = "DRAFT"
	ContractStatusActive     ContractStatus = "ACTIVE"
	ContractStatusExpired    ContractStatus = "EXPIRED"
	ContractStatusTerminated ContractStatus = "TERMINATED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ContractStatus) IsTerminal() bool {
	return s == ContractStatusExpired || s == ContractStatusTerminated
}

var transitions = map[ContractStatus][]ContractStatus{
	ContractStatusDraft:  {ContractStatusDraft, ContractStatusActive, ContractStatusTerminated},
	ContractStatusActive: {ContractStatusActive, ContractStatusExpired, ContractStatusTerminated},
}

// CanTransition reports whether a contract may move from s to next.
func (s ContractStatus) CanTransition(next ContractStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Contract is a lease of one room to one or more tenants.
type Contract struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	OrgID           snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_contracts_org_code,priority:1"`
	Code            string          `gorm:"type:text;not null;uniqueIndex:ux_contracts_org_code,priority:2"`
	RoomID          snowflake.ID    `gorm:"not null;index"`
	PrimaryTenantID snowflake.ID    `gorm:"not null;index"`
	StartDate       time.Time       `gorm:"not null"`
	EndDate         *time.Time      `gorm:""`
	RentAmount      decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	DepositAmount   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	BillingCycle    period.Cycle    `gorm:"type:text;not null"`
	Status          ContractStatus  `gorm:"type:text;not null;index"`
	TerminatedAt    *time.Time
	TerminationNote *string   `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`

	// TenantIDs lists every tenant on the lease, primary first.
	TenantIDs []snowflake.ID `gorm:"-"`
}

// TableName sets the database table name.
func (Contract) TableName() string { return "contracts" }

// Span is the inclusive range the contract occupies its room. Open-ended
// contracts extend sentinelYears past their start.
func (c Contract) Span(sentinelYears int) period.Range {
	return period.Range{
		Start: period.Truncate(c.StartDate),
		End:   period.EffectiveEnd(c.StartDate, c.EndDate, sentinelYears),
	}
}

// ContractTenant links an additional or primary tenant to a contract.
type ContractTenant struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OrgID      snowflake.ID `gorm:"not null;index"`
	ContractID snowflake.ID `gorm:"not null;uniqueIndex:ux_contract_tenants,priority:1"`
	TenantID   snowflake.ID `gorm:"not null;uniqueIndex:ux_contract_tenants,priority:2;index"`
	IsPrimary  bool         `gorm:"not null;default:false"`
	CreatedAt  time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (ContractTenant) TableName() string { return "contract_tenants" }
