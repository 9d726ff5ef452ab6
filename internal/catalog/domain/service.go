package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasecore/internal/errs"
)

type CreateServiceRequest struct {
	Name         string       `validate:"required,max=120"`
	Category     string       `validate:"max=60"`
	PricingModel PricingModel `validate:"required,oneof=FLAT PER_UNIT"`
	UnitPrice    decimal.Decimal
	UnitName     string `validate:"max=20"`
}

// UpdateServiceRequest changes only the fields that are set.
type UpdateServiceRequest struct {
	Name         *string       `validate:"omitempty,min=1,max=120"`
	Category     *string       `validate:"omitempty,max=60"`
	PricingModel *PricingModel `validate:"omitempty,oneof=FLAT PER_UNIT"`
	UnitPrice    *decimal.Decimal
	UnitName     *string `validate:"omitempty,max=20"`
	Active       *bool
}

type BindServiceRequest struct {
	ContractID  snowflake.ID `validate:"required"`
	ServiceID   snowflake.ID `validate:"required"`
	CustomPrice *decimal.Decimal
}

type UpdateBindingRequest struct {
	CustomPrice      *decimal.Decimal
	ClearCustomPrice bool
	Active           *bool
}

type Service interface {
	CreateService(ctx context.Context, orgID snowflake.ID, req CreateServiceRequest) (*BillableService, error)
	UpdateService(ctx context.Context, orgID, id snowflake.ID, req UpdateServiceRequest) (*BillableService, error)
	GetService(ctx context.Context, orgID, id snowflake.ID) (*BillableService, error)
	ListServices(ctx context.Context, orgID snowflake.ID, activeOnly bool) ([]BillableService, error)

	BindService(ctx context.Context, orgID snowflake.ID, req BindServiceRequest) (*ContractService, error)
	UpdateBinding(ctx context.Context, orgID, id snowflake.ID, req UpdateBindingRequest) (*ContractService, error)
	// UnbindService deactivates a binding. Its history stays for invoices
	// that already reference it.
	UnbindService(ctx context.Context, orgID, id snowflake.ID) error
	ListBindings(ctx context.Context, orgID, contractID snowflake.ID, activeOnly bool) ([]BoundService, error)
}

var (
	ErrInvalidService      = errs.Validation("invalid_service")
	ErrInvalidPrice        = errs.Validation("invalid_service_price")
	ErrServiceNotFound     = errs.NotFound("service_not_found")
	ErrBindingNotFound     = errs.NotFound("contract_service_not_found")
	ErrServiceNameTaken    = errs.Conflict("service_name_taken")
	ErrServiceAlreadyBound = errs.Conflict("service_already_bound")
	ErrServiceInactive     = errs.Conflict("service_inactive")
	ErrContractClosed      = errs.Conflict("contract_closed")
)
