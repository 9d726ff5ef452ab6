package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	auditdomain "github.com/smallbiznis/leasecore/internal/audit/domain"
	"github.com/smallbiznis/leasecore/internal/clock"
	depositdomain "github.com/smallbiznis/leasecore/internal/deposit/domain"
	"github.com/smallbiznis/leasecore/internal/events"
	ledgerdomain "github.com/smallbiznis/leasecore/internal/ledger/domain"
	"github.com/smallbiznis/leasecore/internal/logger"
	"github.com/smallbiznis/leasecore/internal/observability/tracing"
	"github.com/smallbiznis/leasecore/pkg/period"
	"github.com/smallbiznis/leasecore/pkg/repository"
	"github.com/smallbiznis/leasecore/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "leasecore/deposit"

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	LedgerSvc ledgerdomain.Service
	AuditSvc  auditdomain.Service
	Outbox    *events.Outbox
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	store     repository.Repository[depositdomain.Deposit]
	ledgerSvc ledgerdomain.Service
	auditSvc  auditdomain.Service
	outbox    *events.Outbox
}

func NewService(p Params) depositdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("deposit.service"),
		clock:     p.Clock,
		store:     repository.ProvideStore[depositdomain.Deposit](p.DB),
		ledgerSvc: p.LedgerSvc,
		auditSvc:  p.AuditSvc,
		outbox:    p.Outbox,
	}
}

func (s *Service) Get(ctx context.Context, orgID, id snowflake.ID) (*depositdomain.Deposit, error) {
	deposit, err := s.store.FindOne(ctx, &depositdomain.Deposit{OrgID: orgID, ID: id})
	if err != nil {
		return nil, err
	}
	if deposit == nil {
		return nil, depositdomain.ErrDepositNotFound
	}
	return deposit, nil
}

func (s *Service) GetByContract(ctx context.Context, orgID, contractID snowflake.ID) (*depositdomain.Deposit, error) {
	deposit, err := s.store.FindOne(ctx, &depositdomain.Deposit{OrgID: orgID, ContractID: contractID})
	if err != nil {
		return nil, err
	}
	if deposit == nil {
		return nil, depositdomain.ErrDepositNotFound
	}
	return deposit, nil
}

func (s *Service) Refund(ctx context.Context, orgID, id snowflake.ID, req depositdomain.RefundDepositRequest) (result *depositdomain.Deposit, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "deposit.refund", tracing.OrgID(orgID), tracing.DepositID(id))
	defer func() { tracing.End(span, err) }()

	date := req.Date
	if date.IsZero() {
		date = clock.Today(s.clock)
	}

	err = s.settle(ctx, orgID, id, func(d *depositdomain.Deposit) error {
		return d.Refund(req.Amount, date)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, id)
}

func (s *Service) Forfeit(ctx context.Context, orgID, id snowflake.ID, req depositdomain.ForfeitDepositRequest) (result *depositdomain.Deposit, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "deposit.forfeit", tracing.OrgID(orgID), tracing.DepositID(id))
	defer func() { tracing.End(span, err) }()

	if err := validation.Struct(req, depositdomain.ErrInvalidRequest); err != nil {
		return nil, err
	}
	date := req.Date
	if date.IsZero() {
		date = clock.Today(s.clock)
	}

	err = s.settle(ctx, orgID, id, func(d *depositdomain.Deposit) error {
		return d.Forfeit(date, req.Reason)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, id)
}

// settle applies a HELD -> REFUNDED/FORFEITED transition under a row lock and
// posts the release of the liability.
func (s *Service) settle(ctx context.Context, orgID, id snowflake.ID, transition func(*depositdomain.Deposit) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)
		deposit, err := store.FindOne(ctx, &depositdomain.Deposit{OrgID: orgID, ID: id}, repository.ForUpdate())
		if err != nil {
			return err
		}
		if deposit == nil {
			return depositdomain.ErrDepositNotFound
		}
		if err := transition(deposit); err != nil {
			return err
		}
		deposit.UpdatedAt = s.clock.Now().UTC()
		if err := store.Save(ctx, deposit); err != nil {
			return err
		}
		return ReleasePosting(ctx, tx, s.ledgerSvc, s.outbox, s.auditSvc, deposit)
	})
}

// ReleasePosting writes the ledger entry, outbox event and audit record for a
// deposit that just left HELD. The contract lifecycle reuses it when a
// termination forfeits the deposit.
func ReleasePosting(
	ctx context.Context,
	tx *gorm.DB,
	ledgerSvc ledgerdomain.Service,
	outbox *events.Outbox,
	auditSvc auditdomain.Service,
	deposit *depositdomain.Deposit,
) error {
	refunded := deposit.Amount.Sub(deposit.Retained())
	occurredAt := settledAt(deposit)

	if err := ledgerSvc.Post(ctx, tx, deposit.OrgID, ledgerdomain.SourceTypeDepositRelease, deposit.ID, occurredAt, []ledgerdomain.Posting{
		ledgerdomain.Debit(ledgerdomain.AccountCodeDepositLiability, deposit.Amount),
		ledgerdomain.Credit(ledgerdomain.AccountCodeCashClearing, refunded),
		ledgerdomain.Credit(ledgerdomain.AccountCodeDepositForfeiture, deposit.Retained()),
	}); err != nil {
		return err
	}

	eventType := events.EventDepositRefunded
	action := "deposit.refunded"
	if deposit.Status == depositdomain.DepositStatusForfeited {
		eventType = events.EventDepositForfeited
		action = "deposit.forfeited"
	}
	payload := map[string]any{
		"deposit_id":  deposit.ID.String(),
		"contract_id": deposit.ContractID.String(),
		"amount":      deposit.Amount.String(),
		"refunded":    refunded.String(),
		"retained":    deposit.Retained().String(),
	}
	if err := outbox.PublishTx(ctx, tx, events.Event{
		OrgID:     deposit.OrgID,
		Type:      eventType,
		Payload:   payload,
		DedupeKey: eventType + ":" + deposit.ID.String(),
	}); err != nil {
		return err
	}

	logger.FromContext(ctx).Info("deposit settled",
		zap.String("deposit_id", deposit.ID.String()),
		zap.String("status", string(deposit.Status)),
		zap.String("refunded", refunded.String()),
	)
	return auditSvc.Record(ctx, tx, deposit.OrgID, action, "deposit", deposit.ID, payload)
}

func settledAt(d *depositdomain.Deposit) time.Time {
	switch {
	case d.RefundDate != nil:
		return *d.RefundDate
	case d.ForfeitedAt != nil:
		return *d.ForfeitedAt
	}
	return d.UpdatedAt
}

type contractRow struct {
	ID      snowflake.ID
	Status  string
	EndDate *time.Time
}

func (s *Service) FindEligible(ctx context.Context, orgID snowflake.ID, asOf time.Time) ([]depositdomain.EligibleDeposit, error) {
	asOf = period.Truncate(asOf)

	var contracts []contractRow
	err := s.db.WithContext(ctx).
		Table("contracts").
		Select("id, status, end_date").
		Where("org_id = ?", orgID).
		Where("status IN ? OR (status = ? AND end_date IS NOT NULL AND end_date < ?)",
			[]string{"EXPIRED", "TERMINATED"}, "ACTIVE", asOf).
		Find(&contracts).Error
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, nil
	}

	byID := lo.KeyBy(contracts, func(c contractRow) snowflake.ID { return c.ID })
	ids := lo.Map(contracts, func(c contractRow, _ int) snowflake.ID { return c.ID })

	deposits, err := s.store.Find(ctx,
		&depositdomain.Deposit{OrgID: orgID, Status: depositdomain.DepositStatusHeld},
		repository.WithWhere("contract_id IN ?", ids),
		repository.WithOrder("created_at ASC, id ASC"),
	)
	if err != nil {
		return nil, err
	}

	out := make([]depositdomain.EligibleDeposit, 0, len(deposits))
	for _, d := range deposits {
		c := byID[d.ContractID]
		out = append(out, depositdomain.EligibleDeposit{
			Deposit:        *d,
			ContractStatus: c.Status,
			ContractEnd:    c.EndDate,
		})
	}
	return out, nil
}
