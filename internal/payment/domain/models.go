package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/leasecore/internal/invoice/domain"
)

// Payment is money received against one invoice.
type Payment struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	OrgID     snowflake.ID    `gorm:"not null;index"`
	InvoiceID snowflake.ID    `gorm:"not null;index"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Method    string          `gorm:"type:text;not null"`
	Note      *string         `gorm:"type:text"`
	PaidAt    time.Time       `gorm:"not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// Receipt is the result of recording a payment.
type Receipt struct {
	Payment Payment
	Invoice invoicedomain.InvoiceSummary
}
