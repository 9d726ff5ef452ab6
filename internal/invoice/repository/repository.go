package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/leasecore/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultListLimit = 100

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return r.find(ctx, db, orgID, id, false)
}

func (r *repo) LockByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return r.find(ctx, db, orgID, id, true)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, lock bool) (*invoicedomain.Invoice, error) {
	q := db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var invoice invoicedomain.Invoice
	err := q.Where("org_id = ? AND id = ?", orgID, id).Take(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := db.WithContext(ctx).
		Where("invoice_id = ?", invoice.ID).
		Order("position ASC").
		Find(&invoice.Items).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, error) {
	q := db.WithContext(ctx).Where("org_id = ?", filter.OrgID)
	if filter.ContractID != 0 {
		q = q.Where("contract_id = ?", filter.ContractID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.UnpaidDueBy != nil {
		q = q.Where("total_amount > paid_amount AND due_date < ?", *filter.UnpaidDueBy)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var items []invoicedomain.Invoice
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Order("period_start ASC").Order("id ASC").Limit(limit).Find(&items).Error
	return items, err
}

func (r *repo) ListByContract(ctx context.Context, db *gorm.DB, orgID, contractID snowflake.ID) ([]invoicedomain.Invoice, error) {
	var items []invoicedomain.Invoice
	err := db.WithContext(ctx).
		Where("org_id = ? AND contract_id = ?", orgID, contractID).
		Order("period_start ASC").
		Find(&items).Error
	return items, err
}

func (r *repo) UpdatePaid(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice, now time.Time) error {
	invoice.UpdatedAt = now
	return db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]any{
			"paid_amount": invoice.PaidAmount,
			"status":      invoice.Status,
			"updated_at":  now,
		}).Error
}

func (r *repo) AppendItem(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice, item *invoicedomain.InvoiceItem, now time.Time) error {
	if err := db.WithContext(ctx).Create(item).Error; err != nil {
		return err
	}
	invoice.UpdatedAt = now
	return db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]any{
			"total_amount": invoice.TotalAmount,
			"status":       invoice.Status,
			"updated_at":   now,
		}).Error
}

func (r *repo) InsertReadings(ctx context.Context, db *gorm.DB, readings []invoicedomain.MeterReading) error {
	if len(readings) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&readings).Error
}

func (r *repo) LastReadingIndex(ctx context.Context, db *gorm.DB, contractServiceID snowflake.ID) (*decimal.Decimal, error) {
	var reading invoicedomain.MeterReading
	err := db.WithContext(ctx).
		Where("contract_service_id = ?", contractServiceID).
		Order("period_end DESC").Order("id DESC").
		Take(&reading).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reading.CurrentIndex, nil
}
