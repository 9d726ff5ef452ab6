package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasecore/internal/errs"
)

// MeterReadingInput is the current index submitted for a metered service.
type MeterReadingInput struct {
	ServiceID    snowflake.ID `validate:"required"`
	CurrentIndex decimal.Decimal
}

type GenerateInvoiceRequest struct {
	ContractID  snowflake.ID `validate:"required"`
	PeriodStart time.Time    `validate:"required"`
	PeriodEnd   time.Time    `validate:"required"`
	// IssueDate defaults to today.
	IssueDate time.Time
	// DueDate defaults to IssueDate plus the cycle's grace days.
	DueDate  *time.Time
	Readings []MeterReadingInput `validate:"dive"`
}

type AdjustmentRequest struct {
	Description string `validate:"required,max=255"`
	// Amount may be negative for discounts.
	Amount decimal.Decimal
}

type ListInvoiceRequest struct {
	ContractID  snowflake.ID
	Status      InvoiceStatus `validate:"omitempty,oneof=PENDING PARTIALLY_PAID PAID"`
	OverdueOnly bool
	Limit       int `validate:"gte=0,lte=500"`
}

type Service interface {
	Generate(ctx context.Context, orgID snowflake.ID, req GenerateInvoiceRequest) (*Invoice, error)
	Get(ctx context.Context, orgID, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, orgID snowflake.ID, req ListInvoiceRequest) ([]Invoice, error)
	// AddAdjustment appends an ADJUSTMENT line to an invoice with no payments.
	AddAdjustment(ctx context.Context, orgID, id snowflake.ID, req AdjustmentRequest) (*Invoice, error)
	Summary(ctx context.Context, orgID, id snowflake.ID) (InvoiceSummary, error)
}

var (
	ErrInvalidInvoiceRequest  = errs.Validation("invalid_invoice_request")
	ErrInvalidPeriod          = errs.Validation("invalid_invoice_period")
	ErrPeriodExceedsCycle     = errs.Validation("invoice_period_exceeds_cycle")
	ErrInvalidDueDate         = errs.Validation("invalid_due_date")
	ErrMissingMeterReading    = errs.Validation("missing_meter_reading")
	ErrNegativeConsumption    = errs.Validation("negative_consumption")
	ErrUnexpectedMeterReading = errs.Validation("unexpected_meter_reading")
	ErrNegativeTotal          = errs.Validation("negative_invoice_total")
	ErrContractNotActive      = errs.NotFound("contract_not_active")
	ErrInvoiceNotFound        = errs.NotFound("invoice_not_found")
	ErrDuplicatePeriod        = errs.Conflict("duplicate_invoice_period")
	ErrPeriodOverlap          = errs.Conflict("invoice_period_overlap")
	ErrInvoiceLocked          = errs.Conflict("invoice_has_payments")
)
