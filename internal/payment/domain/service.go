package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasecore/internal/errs"
	invoicedomain "github.com/smallbiznis/leasecore/internal/invoice/domain"
)

type RecordPaymentRequest struct {
	InvoiceID snowflake.ID `validate:"required"`
	Amount    decimal.Decimal
	Method    string `validate:"required,max=32"`
	Note      string `validate:"max=500"`
	// PaidAt defaults to now.
	PaidAt time.Time
	// AllowOverpayment accepts amounts above the remaining balance.
	AllowOverpayment bool
}

type Service interface {
	Record(ctx context.Context, orgID snowflake.ID, req RecordPaymentRequest) (*Receipt, error)
	// Reverse deletes a payment and recomputes its invoice.
	Reverse(ctx context.Context, orgID, paymentID snowflake.ID) (invoicedomain.InvoiceSummary, error)
	List(ctx context.Context, orgID, invoiceID snowflake.ID) ([]Payment, error)
}

var (
	ErrInvalidPayment  = errs.Validation("invalid_payment")
	ErrInvalidAmount   = errs.Validation("invalid_payment_amount")
	ErrPaymentNotFound = errs.NotFound("payment_not_found")
	ErrOverpayment     = errs.Conflict("payment_exceeds_remaining")
)
