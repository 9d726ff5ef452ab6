package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/leasecore/internal/audit/domain"
	"github.com/smallbiznis/leasecore/internal/clock"
	"github.com/smallbiznis/leasecore/internal/events"
	invoicedomain "github.com/smallbiznis/leasecore/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/leasecore/internal/ledger/domain"
	"github.com/smallbiznis/leasecore/internal/logger"
	"github.com/smallbiznis/leasecore/internal/observability/metrics"
	"github.com/smallbiznis/leasecore/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/leasecore/internal/payment/domain"
	"github.com/smallbiznis/leasecore/pkg/money"
	"github.com/smallbiznis/leasecore/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "leasecore/payment"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        paymentdomain.Repository
	InvoiceRepo invoicedomain.Repository
	LedgerSvc   ledgerdomain.Service
	AuditSvc    auditdomain.Service
	Outbox      *events.Outbox
	Metrics     *metrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo        paymentdomain.Repository
	invoiceRepo invoicedomain.Repository
	ledgerSvc   ledgerdomain.Service
	auditSvc    auditdomain.Service
	outbox      *events.Outbox
	metrics     *metrics.BillingMetrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("payment.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		ledgerSvc:   p.LedgerSvc,
		auditSvc:    p.AuditSvc,
		outbox:      p.Outbox,
		metrics:     p.Metrics,
	}
}

func (s *Service) Record(ctx context.Context, orgID snowflake.ID, req paymentdomain.RecordPaymentRequest) (result *paymentdomain.Receipt, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "payment.record",
		tracing.OrgID(orgID),
		tracing.InvoiceID(req.InvoiceID),
		tracing.PaymentMethod(req.Method),
	)
	defer func() {
		tracing.End(span, err)
		s.metrics.IncPayment("record", resultLabel(err))
	}()

	if err := validation.Struct(req, paymentdomain.ErrInvalidPayment); err != nil {
		return nil, err
	}
	if req.Amount.Sign() <= 0 || !money.InScale(req.Amount) {
		return nil, paymentdomain.ErrInvalidAmount
	}
	amount := money.Round(req.Amount)
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if method == "" {
		return nil, fmt.Errorf("%w: method", paymentdomain.ErrInvalidPayment)
	}

	now := s.clock.Now().UTC()
	paidAt := req.PaidAt.UTC()
	if req.PaidAt.IsZero() {
		paidAt = now
	}

	var receipt *paymentdomain.Receipt
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoiceRepo.LockByID(ctx, tx, orgID, req.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}

		remaining := invoice.Remaining()
		if amount.GreaterThan(remaining) && !req.AllowOverpayment {
			return fmt.Errorf("%w: amount %s, remaining %s", paymentdomain.ErrOverpayment, amount, remaining)
		}

		payment := paymentdomain.Payment{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			InvoiceID: invoice.ID,
			Amount:    amount,
			Method:    method,
			PaidAt:    paidAt,
			CreatedAt: now,
		}
		if note := strings.TrimSpace(req.Note); note != "" {
			payment.Note = &note
		}
		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return err
		}
		if err := s.settle(ctx, tx, orgID, invoice, now); err != nil {
			return err
		}

		if err := s.ledgerSvc.Post(ctx, tx, orgID, ledgerdomain.SourceTypePayment, payment.ID, paidAt, []ledgerdomain.Posting{
			ledgerdomain.Debit(ledgerdomain.AccountCodeCashClearing, amount),
			ledgerdomain.Credit(ledgerdomain.AccountCodeAccountsReceivable, amount),
		}); err != nil {
			return err
		}
		if err := s.publish(ctx, tx, orgID, events.EventPaymentRecorded, payment, invoice); err != nil {
			return err
		}
		meta := map[string]any{
			"invoice_id":     invoice.ID.String(),
			"amount":         amount.String(),
			"method":         method,
			"invoice_status": string(invoice.Status),
		}
		if payment.Note != nil {
			meta["note"] = *payment.Note
		}
		if err := s.auditSvc.Record(ctx, tx, orgID, "payment.recorded", "payment", payment.ID, logger.MaskJSON(meta)); err != nil {
			return err
		}

		receipt = &paymentdomain.Receipt{
			Payment: payment,
			Invoice: invoicedomain.Summarize(*invoice, clock.Today(s.clock)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("payment recorded",
		zap.String("org_id", orgID.String()),
		zap.String("payment_id", receipt.Payment.ID.String()),
		zap.String("invoice_id", req.InvoiceID.String()),
		zap.String("amount", amount.String()),
		zap.String("invoice_status", string(receipt.Invoice.Status)),
	)
	return receipt, nil
}

func (s *Service) Reverse(ctx context.Context, orgID, paymentID snowflake.ID) (result invoicedomain.InvoiceSummary, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "payment.reverse",
		tracing.OrgID(orgID),
		tracing.PaymentID(paymentID),
	)
	defer func() {
		tracing.End(span, err)
		s.metrics.IncPayment("reverse", resultLabel(err))
	}()

	var summary invoicedomain.InvoiceSummary
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := s.repo.FindByID(ctx, tx, orgID, paymentID)
		if err != nil {
			return err
		}
		if target == nil {
			return paymentdomain.ErrPaymentNotFound
		}
		invoice, err := s.invoiceRepo.LockByID(ctx, tx, orgID, target.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}

		// A concurrent reversal may have removed the payment while we
		// waited on the invoice lock.
		payment, err := s.repo.FindByID(ctx, tx, orgID, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrPaymentNotFound
		}
		deleted, err := s.repo.Delete(ctx, tx, orgID, payment.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return paymentdomain.ErrPaymentNotFound
		}
		now := s.clock.Now().UTC()
		if err := s.settle(ctx, tx, orgID, invoice, now); err != nil {
			return err
		}

		if err := s.ledgerSvc.Post(ctx, tx, orgID, ledgerdomain.SourceTypePaymentReversal, payment.ID, now, []ledgerdomain.Posting{
			ledgerdomain.Debit(ledgerdomain.AccountCodeAccountsReceivable, payment.Amount),
			ledgerdomain.Credit(ledgerdomain.AccountCodeCashClearing, payment.Amount),
		}); err != nil {
			return err
		}
		if err := s.publish(ctx, tx, orgID, events.EventPaymentReversed, *payment, invoice); err != nil {
			return err
		}
		if err := s.auditSvc.Record(ctx, tx, orgID, "payment.reversed", "payment", payment.ID, map[string]any{
			"invoice_id":     invoice.ID.String(),
			"amount":         payment.Amount.String(),
			"invoice_status": string(invoice.Status),
		}); err != nil {
			return err
		}

		summary = invoicedomain.Summarize(*invoice, clock.Today(s.clock))
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceSummary{}, err
	}

	s.log.Info("payment reversed",
		zap.String("org_id", orgID.String()),
		zap.String("payment_id", paymentID.String()),
		zap.String("invoice_status", string(summary.Status)),
	)
	return summary, nil
}

func (s *Service) List(ctx context.Context, orgID, invoiceID snowflake.ID) ([]paymentdomain.Payment, error) {
	if invoiceID == 0 {
		return nil, fmt.Errorf("%w: invoice_id", paymentdomain.ErrInvalidPayment)
	}
	return s.repo.ListByInvoice(ctx, s.db, orgID, invoiceID)
}

// settle recomputes the paid amount from every stored payment so that the
// invoice never drifts from its payment set.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, invoice *invoicedomain.Invoice, now time.Time) error {
	paid, err := s.repo.SumByInvoice(ctx, tx, orgID, invoice.ID)
	if err != nil {
		return err
	}
	invoice.ApplyPaid(paid)
	return s.invoiceRepo.UpdatePaid(ctx, tx, invoice, now)
}

func (s *Service) publish(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, eventType string, payment paymentdomain.Payment, invoice *invoicedomain.Invoice) error {
	return s.outbox.PublishTx(ctx, tx, events.Event{
		OrgID: orgID,
		Type:  eventType,
		Payload: events.PaymentPayload{
			PaymentID:     payment.ID.String(),
			InvoiceID:     invoice.ID.String(),
			Amount:        payment.Amount.String(),
			PaidAmount:    invoice.PaidAmount.String(),
			InvoiceStatus: string(invoice.Status),
		}.ToMap(),
		DedupeKey: eventType + ":" + payment.ID.String(),
	})
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, paymentdomain.ErrOverpayment):
		return "overpayment"
	case errors.Is(err, paymentdomain.ErrInvalidAmount), errors.Is(err, paymentdomain.ErrInvalidPayment):
		return "invalid"
	default:
		return "error"
	}
}
