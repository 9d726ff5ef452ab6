package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/samber/lo"
	auditdomain "github.com/smallbiznis/leasecore/internal/audit/domain"
	"github.com/smallbiznis/leasecore/internal/clock"
	"github.com/smallbiznis/leasecore/internal/config"
	contractdomain "github.com/smallbiznis/leasecore/internal/contract/domain"
	depositdomain "github.com/smallbiznis/leasecore/internal/deposit/domain"
	"github.com/smallbiznis/leasecore/internal/events"
	ledgerdomain "github.com/smallbiznis/leasecore/internal/ledger/domain"
	"github.com/smallbiznis/leasecore/internal/observability/tracing"
	roomdomain "github.com/smallbiznis/leasecore/internal/room/domain"
	tenantdomain "github.com/smallbiznis/leasecore/internal/tenant/domain"
	"github.com/smallbiznis/leasecore/pkg/money"
	"github.com/smallbiznis/leasecore/pkg/period"
	"github.com/smallbiznis/leasecore/pkg/repository"
	"github.com/smallbiznis/leasecore/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "leasecore/contract"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	Repo       contractdomain.Repository
	RoomRepo   roomdomain.Repository
	TenantRepo tenantdomain.Repository
	LedgerSvc  ledgerdomain.Service
	AuditSvc   auditdomain.Service
	Outbox     *events.Outbox
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	sentinelYears int

	repo         contractdomain.Repository
	roomRepo     roomdomain.Repository
	tenantRepo   tenantdomain.Repository
	depositStore repository.Repository[depositdomain.Deposit]
	ledgerSvc    ledgerdomain.Service
	auditSvc     auditdomain.Service
	outbox       *events.Outbox
}

func NewService(p Params) contractdomain.Service {
	years := p.Config.Billing.OpenEndedYears
	if years <= 0 {
		years = 10
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("contract.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		sentinelYears: years,

		repo:         p.Repo,
		roomRepo:     p.RoomRepo,
		tenantRepo:   p.TenantRepo,
		depositStore: repository.ProvideStore[depositdomain.Deposit](p.DB),
		ledgerSvc:    p.LedgerSvc,
		auditSvc:     p.AuditSvc,
		outbox:       p.Outbox,
	}
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, spec contractdomain.ContractSpec) (result *contractdomain.Contract, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "contract.create", tracing.OrgID(orgID), tracing.RoomID(spec.RoomID))
	defer func() { tracing.End(span, err) }()

	if orgID == 0 {
		return nil, contractdomain.ErrInvalidContract
	}
	spec, err = normalizeSpec(spec)
	if err != nil {
		return nil, err
	}
	if spec.Status == "" {
		spec.Status = contractdomain.ContractStatusDraft
	}
	if spec.Status != contractdomain.ContractStatusDraft && spec.Status != contractdomain.ContractStatusActive {
		return nil, contractdomain.ErrInvalidStatus
	}

	now := s.clock.Now().UTC()
	contract := &contractdomain.Contract{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		CreatedAt: now,
	}
	applySpec(contract, spec, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.repo.CodeTaken(ctx, tx, orgID, contract.Code, 0)
		if err != nil {
			return err
		}
		if taken {
			return contractdomain.ErrDuplicateCode
		}

		rooms, err := s.lockRooms(ctx, tx, orgID, contract.RoomID)
		if err != nil {
			return err
		}
		if err := s.ensureTenants(ctx, tx, orgID, contract.TenantIDs); err != nil {
			return err
		}
		if contract.Status == contractdomain.ContractStatusActive {
			if err := s.occupy(ctx, tx, contract, rooms[contract.RoomID], now); err != nil {
				return err
			}
		}

		if err := s.repo.Insert(ctx, tx, contract); err != nil {
			return err
		}
		if err := s.repo.ReplaceTenants(ctx, tx, contract, now, s.genID.Generate); err != nil {
			return err
		}
		if err := s.syncDeposit(ctx, tx, contract, now); err != nil {
			return err
		}
		if contract.Status == contractdomain.ContractStatusActive {
			if err := s.publish(ctx, tx, events.EventContractActivated, contract); err != nil {
				return err
			}
		}
		return s.auditSvc.Record(ctx, tx, orgID, "contract.created", "contract", contract.ID, auditMetadata(contract))
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, contractdomain.ErrDuplicateCode
		}
		return nil, err
	}

	s.log.Info("contract created",
		zap.String("org_id", orgID.String()),
		zap.String("contract_id", contract.ID.String()),
		zap.String("code", contract.Code),
		zap.String("status", string(contract.Status)),
	)
	return contract, nil
}

func (s *Service) Update(ctx context.Context, orgID, id snowflake.ID, spec contractdomain.ContractSpec) (result *contractdomain.Contract, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "contract.update", tracing.OrgID(orgID), tracing.ContractID(id))
	defer func() { tracing.End(span, err) }()

	spec, err = normalizeSpec(spec)
	if err != nil {
		return nil, err
	}

	var contract *contractdomain.Contract
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.LockByID(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return contractdomain.ErrContractNotFound
		}
		if current.Status.IsTerminal() {
			return contractdomain.ErrContractClosed
		}

		next := spec.Status
		if next == "" {
			next = current.Status
		}
		if !current.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s", contractdomain.ErrInvalidTransition, current.Status, next)
		}
		spec.Status = next

		taken, err := s.repo.CodeTaken(ctx, tx, orgID, spec.Code, id)
		if err != nil {
			return err
		}
		if taken {
			return contractdomain.ErrDuplicateCode
		}

		previous := *current
		rooms, err := s.lockRooms(ctx, tx, orgID, previous.RoomID, spec.RoomID)
		if err != nil {
			return err
		}
		if err := s.ensureTenants(ctx, tx, orgID, spec.TenantIDs); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		applySpec(current, spec, now)
		if next == contractdomain.ContractStatusTerminated {
			today := clock.Today(s.clock)
			current.TerminatedAt = &today
		}
		if next == contractdomain.ContractStatusActive {
			if err := s.occupy(ctx, tx, current, rooms[current.RoomID], now); err != nil {
				return err
			}
		}

		if err := s.repo.Save(ctx, tx, current); err != nil {
			return err
		}
		if err := s.repo.ReplaceTenants(ctx, tx, current, now, s.genID.Generate); err != nil {
			return err
		}

		wasActive := previous.Status == contractdomain.ContractStatusActive
		if wasActive && (next != contractdomain.ContractStatusActive || previous.RoomID != current.RoomID) {
			if err := s.releaseRoom(ctx, tx, orgID, previous.RoomID, current.ID, now); err != nil {
				return err
			}
		}
		if err := s.syncDeposit(ctx, tx, current, now); err != nil {
			return err
		}

		switch {
		case !wasActive && next == contractdomain.ContractStatusActive:
			err = s.publish(ctx, tx, events.EventContractActivated, current)
		case next.IsTerminal():
			err = s.publish(ctx, tx, events.EventContractEnded, current)
		}
		if err != nil {
			return err
		}

		contract = current
		return s.auditSvc.Record(ctx, tx, orgID, "contract.updated", "contract", current.ID, auditMetadata(current))
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, contractdomain.ErrDuplicateCode
		}
		return nil, err
	}
	return contract, nil
}

func (s *Service) Terminate(ctx context.Context, orgID, id snowflake.ID, req contractdomain.TerminateContractRequest) (result *contractdomain.Contract, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "contract.terminate", tracing.OrgID(orgID), tracing.ContractID(id))
	defer func() { tracing.End(span, err) }()

	if err := validation.Struct(req, contractdomain.ErrInvalidContract); err != nil {
		return nil, err
	}
	date := period.Truncate(req.Date)
	if date.IsZero() {
		date = clock.Today(s.clock)
	}

	var contract *contractdomain.Contract
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.LockByID(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return contractdomain.ErrContractNotFound
		}
		if !current.Status.CanTransition(contractdomain.ContractStatusTerminated) {
			return contractdomain.ErrContractClosed
		}
		if _, err := s.lockRooms(ctx, tx, orgID, current.RoomID); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		wasActive := current.Status == contractdomain.ContractStatusActive
		end := date
		if end.Before(current.StartDate) {
			end = period.Truncate(current.StartDate)
		}
		if current.EndDate == nil || end.Before(*current.EndDate) {
			current.EndDate = &end
		}
		current.Status = contractdomain.ContractStatusTerminated
		current.TerminatedAt = &date
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			current.TerminationNote = &reason
		}
		current.UpdatedAt = now

		if err := s.repo.Save(ctx, tx, current); err != nil {
			return err
		}
		if wasActive {
			if err := s.releaseRoom(ctx, tx, orgID, current.RoomID, current.ID, now); err != nil {
				return err
			}
		}
		if req.ForfeitDeposit {
			if err := s.forfeitDeposit(ctx, tx, current, date, req.Reason, now); err != nil {
				return err
			}
		}
		if err := s.publish(ctx, tx, events.EventContractEnded, current); err != nil {
			return err
		}

		contract = current
		meta := auditMetadata(current)
		meta["forfeit_deposit"] = req.ForfeitDeposit
		return s.auditSvc.Record(ctx, tx, orgID, "contract.terminated", "contract", current.ID, meta)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("contract terminated",
		zap.String("org_id", orgID.String()),
		zap.String("contract_id", id.String()),
		zap.Time("date", date),
	)
	return contract, nil
}

func (s *Service) Get(ctx context.Context, orgID, id snowflake.ID) (*contractdomain.Contract, error) {
	contract, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, contractdomain.ErrContractNotFound
	}
	return contract, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req contractdomain.ListContractRequest) ([]contractdomain.Contract, error) {
	if err := validation.Struct(req, contractdomain.ErrInvalidContract); err != nil {
		return nil, err
	}
	filter := contractdomain.ListFilter{
		OrgID:    orgID,
		RoomID:   req.RoomID,
		TenantID: req.TenantID,
		Limit:    req.Limit,
	}
	if req.Status != "" {
		filter.Statuses = []contractdomain.ContractStatus{req.Status}
	}
	return s.repo.List(ctx, s.db, filter)
}

func normalizeSpec(spec contractdomain.ContractSpec) (contractdomain.ContractSpec, error) {
	if err := validation.Struct(spec, contractdomain.ErrInvalidContract); err != nil {
		return spec, err
	}

	spec.Code = strings.TrimSpace(spec.Code)
	if spec.Code == "" {
		spec.Code = "CT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	}

	spec.StartDate = period.Truncate(spec.StartDate)
	if spec.EndDate != nil {
		end := period.Truncate(*spec.EndDate)
		if end.Before(spec.StartDate) {
			return spec, contractdomain.ErrInvalidDateRange
		}
		spec.EndDate = &end
	}

	if money.IsNegative(spec.RentAmount) {
		return spec, fmt.Errorf("%w: rent", contractdomain.ErrInvalidAmount)
	}
	if money.IsNegative(spec.DepositAmount) {
		return spec, fmt.Errorf("%w: deposit", contractdomain.ErrInvalidAmount)
	}
	spec.RentAmount = money.Round(spec.RentAmount)
	spec.DepositAmount = money.Round(spec.DepositAmount)

	spec.TenantIDs = lo.Uniq(append([]snowflake.ID{spec.PrimaryTenantID}, spec.TenantIDs...))
	return spec, nil
}

func applySpec(c *contractdomain.Contract, spec contractdomain.ContractSpec, now time.Time) {
	c.Code = spec.Code
	c.RoomID = spec.RoomID
	c.PrimaryTenantID = spec.PrimaryTenantID
	c.TenantIDs = spec.TenantIDs
	c.StartDate = spec.StartDate
	c.EndDate = spec.EndDate
	c.RentAmount = spec.RentAmount
	c.DepositAmount = spec.DepositAmount
	c.BillingCycle = spec.BillingCycle
	c.Status = spec.Status
	c.UpdatedAt = now
}

func (s *Service) ensureTenants(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) error {
	missing, err := s.tenantRepo.Missing(ctx, tx, orgID, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", tenantdomain.ErrTenantNotFound, missing[0])
	}
	return nil
}

func (s *Service) publish(ctx context.Context, tx *gorm.DB, eventType string, c *contractdomain.Contract) error {
	payload := map[string]any{
		"contract_id": c.ID.String(),
		"code":        c.Code,
		"room_id":     c.RoomID.String(),
		"status":      string(c.Status),
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{
		OrgID:     c.OrgID,
		Type:      eventType,
		Payload:   payload,
		DedupeKey: eventType + ":" + c.ID.String(),
	})
}

func auditMetadata(c *contractdomain.Contract) map[string]any {
	meta := map[string]any{
		"code":          c.Code,
		"room_id":       c.RoomID.String(),
		"status":        string(c.Status),
		"rent_amount":   c.RentAmount.String(),
		"billing_cycle": string(c.BillingCycle),
		"start_date":    c.StartDate.Format(time.DateOnly),
	}
	if c.EndDate != nil {
		meta["end_date"] = c.EndDate.Format(time.DateOnly)
	}
	return meta
}
