package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leasecore/internal/clock"
	"github.com/smallbiznis/leasecore/internal/config"
	contractdomain "github.com/smallbiznis/leasecore/internal/contract/domain"
	depositdomain "github.com/smallbiznis/leasecore/internal/deposit/domain"
	invoicedomain "github.com/smallbiznis/leasecore/internal/invoice/domain"
	"github.com/smallbiznis/leasecore/internal/observability/metrics"
	"github.com/smallbiznis/leasecore/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DueContract is the next uninvoiced period of an ACTIVE contract.
type DueContract struct {
	OrgID        snowflake.ID
	ContractID   snowflake.ID
	BillingCycle period.Cycle
	PeriodStart  time.Time
	PeriodEnd    time.Time
}

// DueReport answers the scheduler query for one organization.
type DueReport struct {
	AsOf      time.Time
	Contracts []DueContract
	Deposits  []depositdomain.EligibleDeposit
}

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Config       config.Config
	ContractRepo contractdomain.Repository
	ContractSvc  contractdomain.Service
	InvoiceSvc   invoicedomain.Service
	DepositSvc   depositdomain.Service
	Metrics      *metrics.BillingMetrics `optional:"true"`
}

type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	cfg     config.SchedulerConfig
	horizon int

	contractRepo contractdomain.Repository
	contractSvc  contractdomain.Service
	invoiceSvc   invoicedomain.Service
	depositSvc   depositdomain.Service
	metrics      *metrics.BillingMetrics
}

func New(p Params) *Scheduler {
	cfg := p.Config.Scheduler
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	horizon := p.Config.Billing.OpenEndedYears
	if horizon <= 0 {
		horizon = 10
	}
	return &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler"),
		clock:   p.Clock,
		cfg:     cfg,
		horizon: horizon,

		contractRepo: p.ContractRepo,
		contractSvc:  p.ContractSvc,
		invoiceSvc:   p.InvoiceSvc,
		depositSvc:   p.DepositSvc,
		metrics:      p.Metrics,
	}
}

type workContract struct {
	ID           snowflake.ID
	OrgID        snowflake.ID
	StartDate    time.Time
	EndDate      *time.Time
	BillingCycle period.Cycle
}

type invoicedThrough struct {
	ContractID snowflake.ID
	PeriodEnd  time.Time
}

// FindContractsDueForInvoicing returns, for every ACTIVE contract of the
// organization, the next uninvoiced period when it starts on or before asOf.
func (s *Scheduler) FindContractsDueForInvoicing(ctx context.Context, orgID snowflake.ID, asOf time.Time) ([]DueContract, error) {
	asOf = period.Truncate(asOf)

	var due []DueContract
	var cursor snowflake.ID
	for {
		batch, err := s.fetchActiveContracts(ctx, orgID, cursor, s.cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		latest, err := s.latestPeriodEnds(ctx, orgID, batch)
		if err != nil {
			return nil, err
		}
		for _, c := range batch {
			var last *time.Time
			if end, ok := latest[c.ID]; ok {
				last = &end
			}
			if next, ok := nextPeriod(c, last, asOf, s.horizon); ok {
				due = append(due, next)
			}
		}
		cursor = batch[len(batch)-1].ID
		if len(batch) < s.cfg.BatchSize {
			break
		}
	}
	return due, nil
}

// FindDepositsEligible lists HELD deposits whose contract has ended.
func (s *Scheduler) FindDepositsEligible(ctx context.Context, orgID snowflake.ID, asOf time.Time) ([]depositdomain.EligibleDeposit, error) {
	return s.depositSvc.FindEligible(ctx, orgID, period.Truncate(asOf))
}

// Due combines both scheduler queries for an external worker.
func (s *Scheduler) Due(ctx context.Context, orgID snowflake.ID, asOf time.Time) (DueReport, error) {
	asOf = period.Truncate(asOf)
	contracts, err := s.FindContractsDueForInvoicing(ctx, orgID, asOf)
	if err != nil {
		return DueReport{}, err
	}
	deposits, err := s.FindDepositsEligible(ctx, orgID, asOf)
	if err != nil {
		return DueReport{}, err
	}
	return DueReport{AsOf: asOf, Contracts: contracts, Deposits: deposits}, nil
}

// nextPeriod computes the period following the last invoiced one. The
// period end is the cycle end clipped to the contract end.
func nextPeriod(c workContract, lastEnd *time.Time, asOf time.Time, horizon int) (DueContract, bool) {
	start := period.Truncate(c.StartDate)
	if lastEnd != nil {
		start = period.AddDays(period.Truncate(*lastEnd), 1)
	}
	end := period.EffectiveEnd(c.StartDate, c.EndDate, horizon)
	if start.After(asOf) || start.After(end) {
		return DueContract{}, false
	}

	periodEnd := period.CycleEnd(start, c.BillingCycle)
	if periodEnd.After(end) {
		periodEnd = end
	}
	return DueContract{
		OrgID:        c.OrgID,
		ContractID:   c.ID,
		BillingCycle: c.BillingCycle,
		PeriodStart:  start,
		PeriodEnd:    periodEnd,
	}, true
}

func (s *Scheduler) fetchActiveContracts(ctx context.Context, orgID, afterID snowflake.ID, limit int) ([]workContract, error) {
	var rows []workContract
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, org_id, start_date, end_date, billing_cycle
		 FROM contracts
		 WHERE org_id = ? AND status = ? AND id > ?
		 ORDER BY id
		 LIMIT ?`,
		orgID,
		contractdomain.ContractStatusActive,
		afterID,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// latestPeriodEnds maps each contract to the furthest period end it has
// been invoiced through.
func (s *Scheduler) latestPeriodEnds(ctx context.Context, orgID snowflake.ID, contracts []workContract) (map[snowflake.ID]time.Time, error) {
	ids := make([]snowflake.ID, 0, len(contracts))
	for _, c := range contracts {
		ids = append(ids, c.ID)
	}

	var rows []invoicedThrough
	err := s.db.WithContext(ctx).Raw(
		`SELECT contract_id, period_end
		 FROM invoices
		 WHERE org_id = ? AND contract_id IN ?`,
		orgID,
		ids,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[snowflake.ID]time.Time, len(rows))
	for _, row := range rows {
		if current, ok := out[row.ContractID]; !ok || row.PeriodEnd.After(current) {
			out[row.ContractID] = row.PeriodEnd
		}
	}
	return out, nil
}
