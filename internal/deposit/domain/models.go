package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasecore/pkg/money"
	"github.com/smallbiznis/leasecore/pkg/period"
)

type DepositStatus string

const (
	DepositStatusHeld      DepositStatus = "HELD"
	DepositStatusRefunded  DepositStatus = "REFUNDED"
	DepositStatusForfeited DepositStatus = "FORFEITED"
)

// Deposit is the security deposit taken for a contract. It leaves HELD once,
// either refunded (fully or partly) or forfeited.
type Deposit struct {
	ID           snowflake.ID     `gorm:"primaryKey"`
	OrgID        snowflake.ID     `gorm:"not null;index"`
	ContractID   snowflake.ID     `gorm:"not null;uniqueIndex"`
	Amount       decimal.Decimal  `gorm:"type:numeric(20,2);not null"`
	Status       DepositStatus    `gorm:"type:text;not null;index"`
	RefundAmount *decimal.Decimal `gorm:"type:numeric(20,2)"`
	RefundDate   *time.Time
	ForfeitedAt  *time.Time
	Reason       *string   `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (Deposit) TableName() string { return "deposits" }

// Refund settles the deposit with amount returned to the tenant. Any remainder
// is retained.
func (d *Deposit) Refund(amount decimal.Decimal, date time.Time) error {
	if d.Status != DepositStatusHeld {
		return ErrDepositNotHeld
	}
	if amount.Sign() < 0 || !money.InScale(amount) {
		return ErrInvalidRefundAmount
	}
	if amount.GreaterThan(d.Amount) {
		return ErrRefundExceedsDeposit
	}
	date = period.Truncate(date)
	d.Status = DepositStatusRefunded
	d.RefundAmount = lo.ToPtr(money.Round(amount))
	d.RefundDate = &date
	return nil
}

// Forfeit retains the whole deposit.
func (d *Deposit) Forfeit(date time.Time, reason string) error {
	if d.Status != DepositStatusHeld {
		return ErrDepositNotHeld
	}
	date = period.Truncate(date)
	zero := decimal.Zero
	d.Status = DepositStatusForfeited
	d.RefundAmount = &zero
	d.ForfeitedAt = &date
	if reason != "" {
		d.Reason = &reason
	}
	return nil
}

// Retained is the part of the deposit kept by the landlord after settlement.
func (d Deposit) Retained() decimal.Decimal {
	switch d.Status {
	case DepositStatusForfeited:
		return d.Amount
	case DepositStatusRefunded:
		if d.RefundAmount != nil {
			return d.Amount.Sub(*d.RefundAmount)
		}
	}
	return decimal.Zero
}
