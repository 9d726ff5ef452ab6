package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasecore/pkg/money"
)

type InvoiceStatus string

const (
	InvoiceStatusPending       InvoiceStatus = "PENDING"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
)

type ItemKind string

const (
	ItemKindRent       ItemKind = "RENT"
	ItemKindService    ItemKind = "SERVICE"
	ItemKindAdjustment ItemKind = "ADJUSTMENT"
)

// Invoice bills one contract for one inclusive period. At most one invoice
// exists per (contract, period start, period end).
type Invoice struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	OrgID       snowflake.ID    `gorm:"not null;index"`
	ContractID  snowflake.ID    `gorm:"not null;uniqueIndex:ux_invoices_contract_period,priority:1"`
	PeriodStart time.Time       `gorm:"not null;uniqueIndex:ux_invoices_contract_period,priority:2"`
	PeriodEnd   time.Time       `gorm:"not null;uniqueIndex:ux_invoices_contract_period,priority:3"`
	IssueDate   time.Time       `gorm:"not null"`
	DueDate     time.Time       `gorm:"not null;index"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	PaidAmount  decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Status      InvoiceStatus   `gorm:"type:text;not null;index"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Remaining is total minus paid. It is negative when overpaid.
func (i Invoice) Remaining() decimal.Decimal {
	return i.TotalAmount.Sub(i.PaidAmount)
}

// IsOverdue reports whether money is still owed after the due date.
func (i Invoice) IsOverdue(today time.Time) bool {
	return i.Remaining().IsPositive() && today.After(i.DueDate)
}

// ApplyPaid sets the paid amount and derives the status from it.
func (i *Invoice) ApplyPaid(paid decimal.Decimal) {
	i.PaidAmount = paid
	i.Status = StatusFor(i.TotalAmount, paid)
}

// StatusFor derives an invoice status from its total and the sum of payments.
// Nothing owed means PAID, including invoices credited down to zero.
func StatusFor(total, paid decimal.Decimal) InvoiceStatus {
	switch {
	case !paid.LessThan(total):
		return InvoiceStatusPaid
	case paid.Sign() <= 0:
		return InvoiceStatusPending
	default:
		return InvoiceStatusPartiallyPaid
	}
}

// Recalculate sets the total to the sum of item amounts.
func (i *Invoice) Recalculate() {
	total := money.Zero
	for _, item := range i.Items {
		total = total.Add(item.Amount)
	}
	i.TotalAmount = total
}

// InvoiceItem is one line of an invoice. Amount is stored rounded to the
// currency scale.
type InvoiceItem struct {
	ID                snowflake.ID     `gorm:"primaryKey"`
	InvoiceID         snowflake.ID     `gorm:"not null;index"`
	Position          int              `gorm:"not null"`
	Kind              ItemKind         `gorm:"type:text;not null"`
	ContractServiceID *snowflake.ID    `gorm:"index"`
	ServiceID         *snowflake.ID    `gorm:""`
	Description       string           `gorm:"type:text;not null"`
	Quantity          decimal.Decimal  `gorm:"type:numeric(24,10);not null"`
	UnitPrice         decimal.Decimal  `gorm:"type:numeric(20,2);not null"`
	Amount            decimal.Decimal  `gorm:"type:numeric(20,2);not null"`
	PreviousIndex     *decimal.Decimal `gorm:"type:numeric(20,4)"`
	CurrentIndex      *decimal.Decimal `gorm:"type:numeric(20,4)"`
	CreatedAt         time.Time        `gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// MeterReading is the index recorded for a metered binding when its period
// was invoiced. The latest reading is the baseline for the next period.
type MeterReading struct {
	ID                snowflake.ID    `gorm:"primaryKey"`
	OrgID             snowflake.ID    `gorm:"not null;index"`
	ContractServiceID snowflake.ID    `gorm:"not null;uniqueIndex:ux_meter_readings_binding_period,priority:1"`
	InvoiceID         snowflake.ID    `gorm:"not null;index"`
	PeriodStart       time.Time       `gorm:"not null;uniqueIndex:ux_meter_readings_binding_period,priority:2"`
	PeriodEnd         time.Time       `gorm:"not null;uniqueIndex:ux_meter_readings_binding_period,priority:3"`
	PreviousIndex     decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	CurrentIndex      decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	CreatedAt         time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (MeterReading) TableName() string { return "meter_readings" }

// Consumption is the metered quantity for the period.
func (r MeterReading) Consumption() decimal.Decimal {
	return r.CurrentIndex.Sub(r.PreviousIndex)
}

// InvoiceSummary is the payment-facing view of an invoice.
type InvoiceSummary struct {
	InvoiceID   snowflake.ID
	ContractID  snowflake.ID
	PeriodStart time.Time
	PeriodEnd   time.Time
	DueDate     time.Time
	Total       decimal.Decimal
	Paid        decimal.Decimal
	Remaining   decimal.Decimal
	Status      InvoiceStatus
	Overdue     bool
}

// Summarize builds the summary of i as of today.
func Summarize(i Invoice, today time.Time) InvoiceSummary {
	return InvoiceSummary{
		InvoiceID:   i.ID,
		ContractID:  i.ContractID,
		PeriodStart: i.PeriodStart,
		PeriodEnd:   i.PeriodEnd,
		DueDate:     i.DueDate,
		Total:       i.TotalAmount,
		Paid:        i.PaidAmount,
		Remaining:   i.Remaining(),
		Status:      i.Status,
		Overdue:     i.IsOverdue(today),
	}
}
