package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasecore/internal/errs"
)

type RefundDepositRequest struct {
	Amount decimal.Decimal
	// Date defaults to today.
	Date time.Time
}

type ForfeitDepositRequest struct {
	Date   time.Time
	Reason string `validate:"max=500"`
}

// EligibleDeposit is a held deposit whose contract has ended.
type EligibleDeposit struct {
	Deposit        Deposit
	ContractStatus string
	ContractEnd    *time.Time
}

type Service interface {
	Get(ctx context.Context, orgID, id snowflake.ID) (*Deposit, error)
	GetByContract(ctx context.Context, orgID, contractID snowflake.ID) (*Deposit, error)
	Refund(ctx context.Context, orgID, id snowflake.ID, req RefundDepositRequest) (*Deposit, error)
	Forfeit(ctx context.Context, orgID, id snowflake.ID, req ForfeitDepositRequest) (*Deposit, error)
	// FindEligible lists held deposits on contracts that are EXPIRED,
	// TERMINATED, or ACTIVE with an end date before asOf.
	FindEligible(ctx context.Context, orgID snowflake.ID, asOf time.Time) ([]EligibleDeposit, error)
}

var (
	ErrDepositNotFound      = errs.NotFound("deposit_not_found")
	ErrDepositNotHeld       = errs.Conflict("deposit_not_held")
	ErrInvalidRefundAmount  = errs.Validation("invalid_refund_amount")
	ErrRefundExceedsDeposit = errs.Validation("refund_exceeds_deposit")
	ErrInvalidRequest       = errs.Validation("invalid_deposit_request")
)
