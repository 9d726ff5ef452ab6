package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasecore/internal/errs"
	"github.com/smallbiznis/leasecore/pkg/period"
)

// ContractSpec is the full set of contract terms accepted by create and update.
type ContractSpec struct {
	// Code is generated when empty.
	Code            string         `validate:"max=64"`
	RoomID          snowflake.ID   `validate:"required"`
	PrimaryTenantID snowflake.ID   `validate:"required"`
	TenantIDs       []snowflake.ID `validate:"dive,required"`
	StartDate       time.Time      `validate:"required"`
	EndDate         *time.Time
	RentAmount      decimal.Decimal
	DepositAmount   decimal.Decimal
	BillingCycle    period.Cycle   `validate:"required,oneof=MONTHLY QUARTERLY YEARLY"`
	Status          ContractStatus `validate:"omitempty,oneof=DRAFT ACTIVE EXPIRED TERMINATED"`
}

type TerminateContractRequest struct {
	// Date defaults to today.
	Date time.Time
	// ForfeitDeposit settles a held deposit as forfeited.
	ForfeitDeposit bool
	Reason         string `validate:"max=500"`
}

type ListContractRequest struct {
	RoomID   snowflake.ID
	TenantID snowflake.ID
	Status   ContractStatus `validate:"omitempty,oneof=DRAFT ACTIVE EXPIRED TERMINATED"`
	Limit    int            `validate:"gte=0,lte=500"`
}

type Service interface {
	Create(ctx context.Context, orgID snowflake.ID, spec ContractSpec) (*Contract, error)
	Update(ctx context.Context, orgID, id snowflake.ID, spec ContractSpec) (*Contract, error)
	Terminate(ctx context.Context, orgID, id snowflake.ID, req TerminateContractRequest) (*Contract, error)
	Delete(ctx context.Context, orgID, id snowflake.ID) error
	Get(ctx context.Context, orgID, id snowflake.ID) (*Contract, error)
	List(ctx context.Context, orgID snowflake.ID, req ListContractRequest) ([]Contract, error)
	// ExpireEnded moves ACTIVE contracts whose end date is before asOf and
	// whose last period has been invoiced to EXPIRED.
	ExpireEnded(ctx context.Context, orgID snowflake.ID, asOf time.Time) ([]snowflake.ID, error)
}

var (
	ErrInvalidContract        = errs.Validation("invalid_contract")
	ErrInvalidAmount          = errs.Validation("invalid_contract_amount")
	ErrInvalidDateRange       = errs.Validation("invalid_contract_date_range")
	ErrInvalidStatus          = errs.Validation("invalid_contract_status")
	ErrContractNotFound       = errs.NotFound("contract_not_found")
	ErrRoomOverlap            = errs.Conflict("contract_room_overlap")
	ErrDuplicateCode          = errs.Conflict("contract_code_taken")
	ErrInvalidTransition      = errs.Conflict("contract_invalid_transition")
	ErrContractClosed         = errs.Conflict("contract_closed")
	ErrContractHasPayments    = errs.Conflict("contract_has_payments")
	ErrContractDepositSettled = errs.Conflict("contract_deposit_settled")
	ErrRoomUnavailable        = errs.Conflict("room_under_maintenance")
)
