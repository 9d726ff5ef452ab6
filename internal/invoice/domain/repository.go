package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ListFilter struct {
	OrgID       snowflake.ID
	ContractID  snowflake.ID
	Status      InvoiceStatus
	UnpaidDueBy *time.Time
	Limit       int
}

type Repository interface {
	// Insert writes the invoice and its items.
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Invoice, error)
	// LockByID loads the invoice with a row lock held until the transaction ends.
	LockByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Invoice, error)
	ListByContract(ctx context.Context, db *gorm.DB, orgID, contractID snowflake.ID) ([]Invoice, error)
	UpdatePaid(ctx context.Context, db *gorm.DB, invoice *Invoice, now time.Time) error
	AppendItem(ctx context.Context, db *gorm.DB, invoice *Invoice, item *InvoiceItem, now time.Time) error

	InsertReadings(ctx context.Context, db *gorm.DB, readings []MeterReading) error
	// LastReadingIndex returns the most recent recorded index for a binding.
	LastReadingIndex(ctx context.Context, db *gorm.DB, contractServiceID snowflake.ID) (*decimal.Decimal, error)
}
