package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/leasecore/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/leasecore/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/leasecore/internal/catalog/service"
	"github.com/smallbiznis/leasecore/internal/clock"
	"github.com/smallbiznis/leasecore/internal/config"
	contractdomain "github.com/smallbiznis/leasecore/internal/contract/domain"
	"github.com/smallbiznis/leasecore/internal/events"
	invoicedomain "github.com/smallbiznis/leasecore/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/leasecore/internal/ledger/domain"
	"github.com/smallbiznis/leasecore/internal/logger"
	"github.com/smallbiznis/leasecore/internal/observability/metrics"
	"github.com/smallbiznis/leasecore/internal/observability/tracing"
	"github.com/smallbiznis/leasecore/pkg/money"
	"github.com/smallbiznis/leasecore/pkg/period"
	"github.com/smallbiznis/leasecore/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "leasecore/invoice"

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       config.Config
	Repo         invoicedomain.Repository
	ContractRepo contractdomain.Repository
	LedgerSvc    ledgerdomain.Service
	AuditSvc     auditdomain.Service
	Outbox       *events.Outbox
	Metrics      *metrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	billing config.BillingConfig

	repo         invoicedomain.Repository
	contractRepo contractdomain.Repository
	ledgerSvc    ledgerdomain.Service
	auditSvc     auditdomain.Service
	outbox       *events.Outbox
	metrics      *metrics.BillingMetrics
}

func NewService(p Params) invoicedomain.Service {
	billing := p.Config.Billing
	if billing.OpenEndedYears <= 0 {
		billing.OpenEndedYears = 10
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		billing: billing,

		repo:         p.Repo,
		contractRepo: p.ContractRepo,
		ledgerSvc:    p.LedgerSvc,
		auditSvc:     p.AuditSvc,
		outbox:       p.Outbox,
		metrics:      p.Metrics,
	}
}

func (s *Service) Generate(ctx context.Context, orgID snowflake.ID, req invoicedomain.GenerateInvoiceRequest) (result *invoicedomain.Invoice, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "invoice.generate",
		tracing.OrgID(orgID),
		tracing.ContractID(req.ContractID),
		tracing.PeriodStart(req.PeriodStart),
	)
	defer func() {
		tracing.End(span, err)
		s.metrics.IncInvoiceGenerated(resultLabel(err))
	}()

	if err := validation.Struct(req, invoicedomain.ErrInvalidInvoiceRequest); err != nil {
		return nil, err
	}
	billing, err := period.NewRange(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", invoicedomain.ErrInvalidPeriod, err)
	}
	readings, err := indexReadings(req.Readings)
	if err != nil {
		return nil, err
	}
	issueDate := period.Truncate(req.IssueDate)
	if issueDate.IsZero() {
		issueDate = clock.Today(s.clock)
	}

	var invoice *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contract, err := s.contractRepo.LockByID(ctx, tx, orgID, req.ContractID)
		if err != nil {
			return err
		}
		if contract == nil {
			return contractdomain.ErrContractNotFound
		}
		if contract.Status != contractdomain.ContractStatusActive {
			return fmt.Errorf("%w: status %s", invoicedomain.ErrContractNotActive, contract.Status)
		}
		if !contract.Span(s.billing.OpenEndedYears).Contains(billing) {
			return fmt.Errorf("%w: period outside contract term", invoicedomain.ErrContractNotActive)
		}

		nominal := period.NominalDays(billing.Start, contract.BillingCycle)
		if billing.Days() > nominal {
			return fmt.Errorf("%w: %d days, cycle has %d", invoicedomain.ErrPeriodExceedsCycle, billing.Days(), nominal)
		}

		dueDate := period.AddDays(issueDate, s.billing.GraceDaysFor(contract.BillingCycle))
		if req.DueDate != nil {
			dueDate = period.Truncate(*req.DueDate)
		}
		if dueDate.Before(issueDate) {
			return invoicedomain.ErrInvalidDueDate
		}

		if err := s.ensurePeriodFree(ctx, tx, orgID, contract.ID, billing); err != nil {
			return err
		}

		bound, err := catalogservice.LoadBindings(ctx, tx, orgID, contract.ID, true)
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		invoice = &invoicedomain.Invoice{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			ContractID:  contract.ID,
			PeriodStart: billing.Start,
			PeriodEnd:   billing.End,
			IssueDate:   issueDate,
			DueDate:     dueDate,
			PaidAmount:  decimal.Zero,
			Status:      invoicedomain.InvoiceStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		builder := &lineBuilder{
			invoiceID: invoice.ID,
			billing:   billing,
			days:      billing.Days(),
			nominal:   nominal,
			now:       now,
			genID:     s.genID.Generate,
		}
		if err := s.rate(ctx, tx, orgID, contract, bound, readings, builder); err != nil {
			return err
		}

		invoice.Items = builder.items
		invoice.Recalculate()
		invoice.ApplyPaid(invoice.PaidAmount)
		if err := s.repo.Insert(ctx, tx, invoice); err != nil {
			return err
		}
		if err := s.repo.InsertReadings(ctx, tx, builder.readings); err != nil {
			return err
		}

		if err := s.ledgerSvc.Post(ctx, tx, orgID, ledgerdomain.SourceTypeInvoice, invoice.ID, issueDate, []ledgerdomain.Posting{
			ledgerdomain.Debit(ledgerdomain.AccountCodeAccountsReceivable, invoice.TotalAmount),
			ledgerdomain.Credit(ledgerdomain.AccountCodeRevenue, invoice.TotalAmount),
		}); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: orgID,
			Type:  events.EventInvoiceGenerated,
			Payload: events.InvoicePayload{
				InvoiceID:   invoice.ID.String(),
				ContractID:  contract.ID.String(),
				PeriodStart: billing.Start.Format(time.DateOnly),
				PeriodEnd:   billing.End.Format(time.DateOnly),
				Total:       invoice.TotalAmount.String(),
			}.ToMap(),
			DedupeKey: events.EventInvoiceGenerated + ":" + invoice.ID.String(),
		})
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invoicedomain.ErrDuplicatePeriod
		}
		return nil, err
	}

	logger.FromContext(ctx).Info("invoice generated",
		zap.String("org_id", orgID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("contract_id", invoice.ContractID.String()),
		zap.Time("period_start", invoice.PeriodStart),
		zap.Time("period_end", invoice.PeriodEnd),
		zap.String("total", invoice.TotalAmount.String()),
		zap.Int("items", len(invoice.Items)),
	)
	return invoice, nil
}

// rate builds the rent line followed by one line per billable binding.
func (s *Service) rate(
	ctx context.Context,
	tx *gorm.DB,
	orgID snowflake.ID,
	contract *contractdomain.Contract,
	bound []catalogdomain.BoundService,
	readings map[snowflake.ID]decimal.Decimal,
	builder *lineBuilder,
) error {
	builder.rent(contract.RentAmount)

	used := make(map[snowflake.ID]struct{}, len(readings))
	for _, b := range bound {
		if !b.Billable() {
			continue
		}
		if !b.Service.IsMetered() {
			builder.flat(b)
			continue
		}

		current, ok := readings[b.Service.ID]
		if !ok {
			return fmt.Errorf("%w: service %s (%s)", invoicedomain.ErrMissingMeterReading, b.Service.ID, b.Service.Name)
		}
		used[b.Service.ID] = struct{}{}

		previous := decimal.Zero
		last, err := s.repo.LastReadingIndex(ctx, tx, b.Binding.ID)
		if err != nil {
			return err
		}
		if last != nil {
			previous = *last
		}
		if err := builder.metered(orgID, b, previous, current); err != nil {
			return err
		}
	}

	for serviceID := range readings {
		if _, ok := used[serviceID]; !ok {
			return fmt.Errorf("%w: service %s is not a metered service on this contract", invoicedomain.ErrUnexpectedMeterReading, serviceID)
		}
	}
	return nil
}

func (s *Service) ensurePeriodFree(ctx context.Context, tx *gorm.DB, orgID, contractID snowflake.ID, billing period.Range) error {
	existing, err := s.repo.ListByContract(ctx, tx, orgID, contractID)
	if err != nil {
		return err
	}
	for _, inv := range existing {
		other := period.Range{Start: period.Truncate(inv.PeriodStart), End: period.Truncate(inv.PeriodEnd)}
		if other == billing {
			return fmt.Errorf("%w: invoice %s", invoicedomain.ErrDuplicatePeriod, inv.ID)
		}
		if period.Intersects(other, billing) {
			return fmt.Errorf("%w: invoice %s covers %s to %s", invoicedomain.ErrPeriodOverlap, inv.ID,
				other.Start.Format(time.DateOnly), other.End.Format(time.DateOnly))
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, orgID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req invoicedomain.ListInvoiceRequest) ([]invoicedomain.Invoice, error) {
	if err := validation.Struct(req, invoicedomain.ErrInvalidInvoiceRequest); err != nil {
		return nil, err
	}
	filter := invoicedomain.ListFilter{
		OrgID:      orgID,
		ContractID: req.ContractID,
		Status:     req.Status,
		Limit:      req.Limit,
	}
	if req.OverdueOnly {
		today := clock.Today(s.clock)
		filter.UnpaidDueBy = &today
	}
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) AddAdjustment(ctx context.Context, orgID, id snowflake.ID, req invoicedomain.AdjustmentRequest) (result *invoicedomain.Invoice, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "invoice.add_adjustment", tracing.OrgID(orgID), tracing.InvoiceID(id))
	defer func() { tracing.End(span, err) }()

	if err := validation.Struct(req, invoicedomain.ErrInvalidInvoiceRequest); err != nil {
		return nil, err
	}
	amount := money.Round(req.Amount)
	if amount.IsZero() || !money.InScale(req.Amount) {
		return nil, fmt.Errorf("%w: adjustment amount", invoicedomain.ErrInvalidInvoiceRequest)
	}

	var invoice *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.LockByID(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if current.PaidAmount.Sign() != 0 || current.Status != invoicedomain.InvoiceStatusPending {
			return invoicedomain.ErrInvoiceLocked
		}

		now := s.clock.Now().UTC()
		item := invoicedomain.InvoiceItem{
			ID:          s.genID.Generate(),
			InvoiceID:   current.ID,
			Position:    len(current.Items),
			Kind:        invoicedomain.ItemKindAdjustment,
			Description: strings.TrimSpace(req.Description),
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   amount,
			Amount:      amount,
			CreatedAt:   now,
		}
		current.Items = append(current.Items, item)
		current.Recalculate()
		if current.TotalAmount.IsNegative() {
			return invoicedomain.ErrNegativeTotal
		}
		current.Status = invoicedomain.StatusFor(current.TotalAmount, current.PaidAmount)

		if err := s.repo.AppendItem(ctx, tx, current, &item, now); err != nil {
			return err
		}

		postings := []ledgerdomain.Posting{
			ledgerdomain.Debit(ledgerdomain.AccountCodeAccountsReceivable, amount),
			ledgerdomain.Credit(ledgerdomain.AccountCodeRevenue, amount),
		}
		if amount.IsNegative() {
			postings = []ledgerdomain.Posting{
				ledgerdomain.Debit(ledgerdomain.AccountCodeRevenue, amount.Neg()),
				ledgerdomain.Credit(ledgerdomain.AccountCodeAccountsReceivable, amount.Neg()),
			}
		}
		if err := s.ledgerSvc.Post(ctx, tx, orgID, ledgerdomain.SourceTypeAdjustment, item.ID, now, postings); err != nil {
			return err
		}
		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			OrgID: orgID,
			Type:  events.EventInvoiceAdjusted,
			Payload: map[string]any{
				"invoice_id": current.ID.String(),
				"item_id":    item.ID.String(),
				"amount":     amount.String(),
				"total":      current.TotalAmount.String(),
			},
			DedupeKey: events.EventInvoiceAdjusted + ":" + item.ID.String(),
		}); err != nil {
			return err
		}

		invoice = current
		return s.auditSvc.Record(ctx, tx, orgID, "invoice.adjusted", "invoice", current.ID, map[string]any{
			"description": item.Description,
			"amount":      amount.String(),
			"total":       current.TotalAmount.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) Summary(ctx context.Context, orgID, id snowflake.ID) (invoicedomain.InvoiceSummary, error) {
	invoice, err := s.Get(ctx, orgID, id)
	if err != nil {
		return invoicedomain.InvoiceSummary{}, err
	}
	return invoicedomain.Summarize(*invoice, clock.Today(s.clock)), nil
}

func indexReadings(inputs []invoicedomain.MeterReadingInput) (map[snowflake.ID]decimal.Decimal, error) {
	readings := make(map[snowflake.ID]decimal.Decimal, len(inputs))
	for _, in := range inputs {
		if in.CurrentIndex.IsNegative() {
			return nil, fmt.Errorf("%w: negative meter index for service %s", invoicedomain.ErrInvalidInvoiceRequest, in.ServiceID)
		}
		if _, dup := readings[in.ServiceID]; dup {
			return nil, fmt.Errorf("%w: duplicate reading for service %s", invoicedomain.ErrInvalidInvoiceRequest, in.ServiceID)
		}
		readings[in.ServiceID] = in.CurrentIndex
	}
	return readings, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, invoicedomain.ErrDuplicatePeriod), errors.Is(err, invoicedomain.ErrPeriodOverlap):
		return "duplicate"
	case errors.Is(err, invoicedomain.ErrMissingMeterReading):
		return "missing_reading"
	default:
		return "error"
	}
}
