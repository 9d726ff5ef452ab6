package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/leasecore/internal/auditcontext"
	"github.com/smallbiznis/leasecore/internal/errs"
	invoicedomain "github.com/smallbiznis/leasecore/internal/invoice/domain"
	"github.com/smallbiznis/leasecore/internal/observability/tracing"
	"github.com/smallbiznis/leasecore/pkg/period"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "leasecore/scheduler"

// maxCatchUpPeriods bounds how many back periods one contract may be
// invoiced for in a single sweep.
const maxCatchUpPeriods = 12

// ContractFailure records a contract whose invoice could not be generated.
type ContractFailure struct {
	OrgID      snowflake.ID
	ContractID snowflake.ID
	Err        error
}

type SweepResult struct {
	AsOf             time.Time
	Organizations    int
	Generated        int
	Skipped          int
	Failed           []ContractFailure
	Expired          int
	DepositsEligible int
}

func (r *SweepResult) merge(o contractOutcome) {
	r.Generated += o.generated
	if o.skipped {
		r.Skipped++
	}
	if o.failure != nil {
		r.Failed = append(r.Failed, *o.failure)
	}
}

type contractOutcome struct {
	generated int
	skipped   bool
	failure   *ContractFailure
}

// Sweep invoices every due contract across all organizations, then expires
// contracts whose term ended and counts deposits awaiting settlement. A
// failure on one contract never stops the others.
// Audit entries written by one run share a "sweep-" request id.
func (s *Scheduler) Sweep(ctx context.Context, asOf time.Time) (result SweepResult, err error) {
	started := time.Now()
	asOf = period.Truncate(asOf)
	runID := "sweep-" + uuid.NewString()
	ctx = auditcontext.WithSystemActor(ctx, "scheduler.sweep")
	ctx = auditcontext.WithRequestID(ctx, runID)
	ctx, span := tracing.Start(ctx, tracerName, "scheduler.sweep", tracing.AsOf(asOf))
	defer func() { tracing.End(span, err) }()

	result = SweepResult{AsOf: asOf}
	orgIDs, err := s.contractRepo.ListActiveOrgIDs(ctx, s.db)
	if err != nil {
		return result, err
	}
	result.Organizations = len(orgIDs)

	for _, orgID := range orgIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.sweepOrg(ctx, orgID, asOf, &result); err != nil {
			return result, err
		}
	}

	s.metrics.ObserveSweep(time.Since(started))
	s.metrics.SetDepositsEligible(result.DepositsEligible)
	s.log.Info("sweep finished",
		zap.String("run_id", runID),
		zap.Time("as_of", asOf),
		zap.Int("organizations", result.Organizations),
		zap.Int("generated", result.Generated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)),
		zap.Int("expired", result.Expired),
		zap.Int("deposits_eligible", result.DepositsEligible),
		zap.Duration("duration", time.Since(started)),
	)
	return result, nil
}

func (s *Scheduler) sweepOrg(ctx context.Context, orgID snowflake.ID, asOf time.Time, result *SweepResult) error {
	due, err := s.FindContractsDueForInvoicing(ctx, orgID, asOf)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, d := range due {
		d := d
		g.Go(func() error {
			outcome := s.invoiceContract(gctx, d, asOf)
			mu.Lock()
			result.merge(outcome)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	expired, err := s.contractSvc.ExpireEnded(ctx, orgID, asOf)
	if err != nil {
		s.log.Warn("expire ended contracts failed", zap.String("org_id", orgID.String()), zap.Error(err))
	}
	result.Expired += len(expired)

	deposits, err := s.FindDepositsEligible(ctx, orgID, asOf)
	if err != nil {
		s.log.Warn("find eligible deposits failed", zap.String("org_id", orgID.String()), zap.Error(err))
		return nil
	}
	result.DepositsEligible += len(deposits)
	return nil
}

// invoiceContract generates the due period and any later periods that are
// also due as of asOf.
func (s *Scheduler) invoiceContract(ctx context.Context, d DueContract, asOf time.Time) contractOutcome {
	var outcome contractOutcome
	next := d
	for i := 0; i < maxCatchUpPeriods; i++ {
		invoice, err := s.invoiceSvc.Generate(ctx, d.OrgID, invoicedomain.GenerateInvoiceRequest{
			ContractID:  next.ContractID,
			PeriodStart: next.PeriodStart,
			PeriodEnd:   next.PeriodEnd,
		})
		if err != nil {
			s.classify(d, err, &outcome)
			return outcome
		}
		outcome.generated++
		s.metrics.IncSweepContract("generated")

		start := period.AddDays(invoice.PeriodEnd, 1)
		if start.After(asOf) {
			return outcome
		}
		contract, err := s.contractSvc.Get(ctx, d.OrgID, d.ContractID)
		if err != nil {
			s.classify(d, err, &outcome)
			return outcome
		}
		end := period.EffectiveEnd(contract.StartDate, contract.EndDate, s.horizon)
		if start.After(end) {
			return outcome
		}
		periodEnd := period.CycleEnd(start, contract.BillingCycle)
		if periodEnd.After(end) {
			periodEnd = end
		}
		next.PeriodStart = start
		next.PeriodEnd = periodEnd
	}
	return outcome
}

// classify treats missing readings and already-invoiced periods as skips;
// anything else is a failure of this contract only.
func (s *Scheduler) classify(d DueContract, err error, outcome *contractOutcome) {
	fields := []zap.Field{
		zap.String("org_id", d.OrgID.String()),
		zap.String("contract_id", d.ContractID.String()),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, invoicedomain.ErrMissingMeterReading), errors.Is(err, errs.ErrConflict):
		outcome.skipped = true
		s.metrics.IncSweepContract("skipped")
		s.log.Info("contract skipped", fields...)
	default:
		outcome.failure = &ContractFailure{OrgID: d.OrgID, ContractID: d.ContractID, Err: err}
		s.metrics.IncSweepContract("failed")
		s.log.Error("contract invoicing failed", fields...)
	}
}
