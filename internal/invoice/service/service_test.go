package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/leasecore/internal/catalog/domain"
	contractdomain "github.com/smallbiznis/leasecore/internal/contract/domain"
	"github.com/smallbiznis/leasecore/internal/errs"
	invoicedomain "github.com/smallbiznis/leasecore/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/leasecore/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/leasecore/internal/payment/domain"
	"github.com/smallbiznis/leasecore/internal/testutil"
	"github.com/smallbiznis/leasecore/pkg/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func newContract(t *testing.T, env *testutil.Env, status contractdomain.ContractStatus) *contractdomain.Contract {
	t.Helper()
	contract, err := env.Contracts.Create(context.Background(), env.OrgID, contractdomain.ContractSpec{
		RoomID:          env.Room(t, "R101").ID,
		PrimaryTenantID: env.Tenant(t, "Budi").ID,
		StartDate:       testutil.Date(t, "2024-01-01"),
		RentAmount:      decimal.NewFromInt(1_200_000),
		BillingCycle:    period.CycleMonthly,
		Status:          status,
	})
	require.NoError(t, err)
	return contract
}

func generate(t *testing.T, env *testutil.Env, c *contractdomain.Contract, start, end string, readings ...invoicedomain.MeterReadingInput) (*invoicedomain.Invoice, error) {
	t.Helper()
	return env.Invoices.Generate(context.Background(), env.OrgID, invoicedomain.GenerateInvoiceRequest{
		ContractID:  c.ID,
		PeriodStart: testutil.Date(t, start),
		PeriodEnd:   testutil.Date(t, end),
		Readings:    readings,
	})
}

func water(t *testing.T, env *testutil.Env, contract *contractdomain.Contract) *catalogdomain.BillableService {
	t.Helper()
	ctx := context.Background()
	svc, err := env.Catalog.CreateService(ctx, env.OrgID, catalogdomain.CreateServiceRequest{
		Name:         "Water",
		PricingModel: catalogdomain.PricingPerUnit,
		UnitPrice:    decimal.NewFromInt(15_000),
		UnitName:     "m3",
	})
	require.NoError(t, err)
	_, err = env.Catalog.BindService(ctx, env.OrgID, catalogdomain.BindServiceRequest{ContractID: contract.ID, ServiceID: svc.ID})
	require.NoError(t, err)
	return svc
}

func TestGenerateRentOnlyInvoice(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	contract := newContract(t, env, contractdomain.ContractStatusActive)

	invoice, err := generate(t, env, contract, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, invoice.Status)
	require.Len(t, invoice.Items, 1)
	assert.Equal(t, invoicedomain.ItemKindRent, invoice.Items[0].Kind)
	testutil.Amount(t, "1200000", invoice.Items[0].Amount)
	testutil.Amount(t, "1", invoice.Items[0].Quantity)
	testutil.Amount(t, "1200000", invoice.TotalAmount)
	assert.True(t, testutil.Date(t, "2024-01-08").Equal(invoice.DueDate))

	loaded, err := env.Invoices.Get(ctx, env.OrgID, invoice.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	testutil.Amount(t, "1200000", loaded.TotalAmount)

	receivable, err := env.Ledger.Balance(ctx, env.OrgID, ledgerdomain.AccountCodeAccountsReceivable)
	require.NoError(t, err)
	testutil.Amount(t, "1200000", receivable)
	revenue, err := env.Ledger.Balance(ctx, env.OrgID, ledgerdomain.AccountCodeRevenue)
	require.NoError(t, err)
	testutil.Amount(t, "-1200000", revenue)
}

func TestGenerateProratesFlatCharges(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	contract := newContract(t, env, contractdomain.ContractStatusActive)

	cleaning, err := env.Catalog.CreateService(ctx, env.OrgID, catalogdomain.CreateServiceRequest{
		Name:         "Cleaning",
		PricingModel: catalogdomain.PricingFlat,
		UnitPrice:    decimal.NewFromInt(100_001),
	})
	require.NoError(t, err)
	_, err = env.Catalog.BindService(ctx, env.OrgID, catalogdomain.BindServiceRequest{ContractID: contract.ID, ServiceID: cleaning.ID})
	require.NoError(t, err)

	invoice, err := generate(t, env, contract, "2024-04-01", "2024-04-15")
	require.NoError(t, err)
	require.Len(t, invoice.Items, 2)
	testutil.Amount(t, "600000", invoice.Items[0].Amount)
	testutil.Amount(t, "0.5", invoice.Items[0].Quantity)
	testutil.Amount(t, "50000.5", invoice.Items[1].Amount)
	testutil.Amount(t, "650000.5", invoice.TotalAmount)
}

func TestProratedLineAmountFollowsQuantity(t *testing.T) {
	env := testutil.NewEnv(t, now)
	contract := newContract(t, env, contractdomain.ContractStatusActive)

	invoice, err := generate(t, env, contract, "2024-01-01", "2024-01-15")
	require.NoError(t, err)
	require.Len(t, invoice.Items, 1)

	rent := invoice.Items[0]
	testutil.Amount(t, "0.4838709677", rent.Quantity)
	testutil.Amount(t, "1200000", rent.UnitPrice)
	testutil.Amount(t, "580645.16", rent.Amount)
	testutil.Amount(t, rent.Amount.String(), rent.Quantity.Mul(rent.UnitPrice).Round(2))
}

func TestGenerateBillsMeteredConsumption(t *testing.T) {
	env := testutil.NewEnv(t, now)
	contract := newContract(t, env, contractdomain.ContractStatusActive)
	svc := water(t, env, contract)

	jan, err := generate(t, env, contract, "2024-01-01", "2024-01-31",
		invoicedomain.MeterReadingInput{ServiceID: svc.ID, CurrentIndex: decimal.RequireFromString("12.5")})
	require.NoError(t, err)
	require.Len(t, jan.Items, 2)
	line := jan.Items[1]
	assert.Equal(t, invoicedomain.ItemKindService, line.Kind)
	testutil.Amount(t, "12.5", line.Quantity)
	testutil.Amount(t, "187500", line.Amount)
	require.NotNil(t, line.PreviousIndex)
	testutil.Amount(t, "0", *line.PreviousIndex)

	feb, err := generate(t, env, contract, "2024-02-01", "2024-02-29",
		invoicedomain.MeterReadingInput{ServiceID: svc.ID, CurrentIndex: decimal.NewFromInt(20)})
	require.NoError(t, err)
	require.Len(t, feb.Items, 2)
	testutil.Amount(t, "7.5", feb.Items[1].Quantity)
	testutil.Amount(t, "112500", feb.Items[1].Amount)
	testutil.Amount(t, "1312500", feb.TotalAmount)
}

func TestGenerateRejectsNegativeConsumption(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	contract := newContract(t, env, contractdomain.ContractStatusActive)
	svc := water(t, env, contract)

	_, err := generate(t, env, contract, "2024-01-01", "2024-01-31",
		invoicedomain.MeterReadingInput{ServiceID: svc.ID, CurrentIndex: decimal.NewFromInt(100)})
	require.NoError(t, err)

	_, err = generate(t, env, contract, "2024-02-01", "2024-02-29",
		invoicedomain.MeterReadingInput{ServiceID: svc.ID, CurrentIndex: decimal.NewFromInt(80)})
	assert.ErrorIs(t, err, invoicedomain.ErrNegativeConsumption)
	assert.ErrorIs(t, err, errs.ErrValidation)

	invoices, err := env.Invoices.List(ctx, env.OrgID, invoicedomain.ListInvoiceRequest{ContractID: contract.ID})
	require.NoError(t, err)
	assert.Len(t, invoices, 1)

	// The failed attempt leaves the baseline untouched.
	feb, err := generate(t, env, contract, "2024-02-01", "2024-02-29",
		invoicedomain.MeterReadingInput{ServiceID: svc.ID, CurrentIndex: decimal.NewFromInt(130)})
	require.NoError(t, err)
	testutil.Amount(t, "30", feb.Items[1].Quantity)
}

func TestGenerateMeterReadingValidation(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	contract := newContract(t, env, contractdomain.ContractStatusActive)
	svc := water(t, env, contract)

	_, err := generate(t, env, contract, "2024-01-01", "2024-01-31")
	assert.ErrorIs(t, err, invoicedomain.ErrMissingMeterReading)

	_, err = generate(t, env, contract, "2024-01-01", "2024-01-31",
		invoicedomain.MeterReadingInput{ServiceID: svc.ID, CurrentIndex: decimal.NewFromInt(10)},
		invoicedomain.MeterReadingInput{ServiceID: env.Node.Generate(), CurrentIndex: decimal.NewFromInt(10)},
	)
	assert.ErrorIs(t, err, invoicedomain.ErrUnexpectedMeterReading)

	_, err = generate(t, env, contract, "2024-01-01", "2024-01-31",
		invoicedomain.MeterReadingInput{ServiceID: svc.ID, CurrentIndex: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, errs.ErrValidation)

	invoices, err := env.Invoices.List(ctx, env.OrgID, invoicedomain.ListInvoiceRequest{ContractID: contract.ID})
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestGeneratePeriodRules(t *testing.T) {
	env := testutil.NewEnv(t, now)
	contract := newContract(t, env, contractdomain.ContractStatusActive)

	_, err := generate(t, env, contract, "2024-01-01", "2024-01-31")
	require.NoError(t, err)

	_, err = generate(t, env, contract, "2024-01-01", "2024-01-31")
	assert.ErrorIs(t, err, invoicedomain.ErrDuplicatePeriod)
	assert.ErrorIs(t, err, errs.ErrConflict)

	_, err = generate(t, env, contract, "2024-01-15", "2024-02-13")
	assert.ErrorIs(t, err, invoicedomain.ErrPeriodOverlap)

	_, err = generate(t, env, contract, "2024-02-01", "2024-03-01")
	assert.ErrorIs(t, err, invoicedomain.ErrPeriodExceedsCycle)

	_, err = generate(t, env, contract, "2024-03-10", "2024-03-01")
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidPeriod)

	_, err = generate(t, env, contract, "2023-12-01", "2023-12-31")
	assert.ErrorIs(t, err, invoicedomain.ErrContractNotActive)
}

func TestGenerateRequiresActiveContract(t *testing.T) {
	env := testutil.NewEnv(t, now)
	contract := newContract(t, env, contractdomain.ContractStatusDraft)

	_, err := generate(t, env, contract, "2024-01-01", "2024-01-31")
	assert.ErrorIs(t, err, invoicedomain.ErrContractNotActive)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAddAdjustment(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	contract := newContract(t, env, contractdomain.ContractStatusActive)

	invoice, err := generate(t, env, contract, "2024-01-01", "2024-01-31")
	require.NoError(t, err)

	adjusted, err := env.Invoices.AddAdjustment(ctx, env.OrgID, invoice.ID, invoicedomain.AdjustmentRequest{
		Description: "Loyalty discount",
		Amount:      decimal.NewFromInt(-200_000),
	})
	require.NoError(t, err)
	testutil.Amount(t, "1000000", adjusted.TotalAmount)
	require.Len(t, adjusted.Items, 2)
	assert.Equal(t, invoicedomain.ItemKindAdjustment, adjusted.Items[1].Kind)

	_, err = env.Invoices.AddAdjustment(ctx, env.OrgID, invoice.ID, invoicedomain.AdjustmentRequest{
		Description: "Too much",
		Amount:      decimal.NewFromInt(-2_000_000),
	})
	assert.ErrorIs(t, err, invoicedomain.ErrNegativeTotal)

	receivable, err := env.Ledger.Balance(ctx, env.OrgID, ledgerdomain.AccountCodeAccountsReceivable)
	require.NoError(t, err)
	testutil.Amount(t, "1000000", receivable)

	_, err = env.Payments.Record(ctx, env.OrgID, paymentdomain.RecordPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    decimal.NewFromInt(100_000),
		Method:    "cash",
	})
	require.NoError(t, err)

	_, err = env.Invoices.AddAdjustment(ctx, env.OrgID, invoice.ID, invoicedomain.AdjustmentRequest{
		Description: "Late fee",
		Amount:      decimal.NewFromInt(50_000),
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceLocked)
}

func TestSummaryReportsOverdue(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	contract := newContract(t, env, contractdomain.ContractStatusActive)

	invoice, err := generate(t, env, contract, "2024-01-01", "2024-01-31")
	require.NoError(t, err)

	summary, err := env.Invoices.Summary(ctx, env.OrgID, invoice.ID)
	require.NoError(t, err)
	assert.False(t, summary.Overdue)
	testutil.Amount(t, "1200000", summary.Remaining)

	env.Clock.Set(time.Date(2024, 1, 9, 8, 0, 0, 0, time.UTC))
	summary, err = env.Invoices.Summary(ctx, env.OrgID, invoice.ID)
	require.NoError(t, err)
	assert.True(t, summary.Overdue)

	overdue, err := env.Invoices.List(ctx, env.OrgID, invoicedomain.ListInvoiceRequest{OverdueOnly: true})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, invoice.ID, overdue[0].ID)

	_, err = env.Invoices.Summary(ctx, env.OrgID, env.Node.Generate())
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)
}

func TestCreditedToZeroInvoiceIsSettled(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	contract := newContract(t, env, contractdomain.ContractStatusActive)

	invoice, err := generate(t, env, contract, "2024-01-01", "2024-01-31")
	require.NoError(t, err)

	adjusted, err := env.Invoices.AddAdjustment(ctx, env.OrgID, invoice.ID, invoicedomain.AdjustmentRequest{
		Description: "Rent waived",
		Amount:      decimal.NewFromInt(-1_200_000),
	})
	require.NoError(t, err)
	testutil.Amount(t, "0", adjusted.TotalAmount)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, adjusted.Status)

	env.Clock.Set(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	summary, err := env.Invoices.Summary(ctx, env.OrgID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, summary.Status)
	assert.False(t, summary.Overdue)
	testutil.Amount(t, "0", summary.Remaining)

	overdue, err := env.Invoices.List(ctx, env.OrgID, invoicedomain.ListInvoiceRequest{OverdueOnly: true})
	require.NoError(t, err)
	assert.Empty(t, overdue)

	_, err = env.Payments.Record(ctx, env.OrgID, paymentdomain.RecordPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    decimal.NewFromInt(1),
		Method:    "cash",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrOverpayment)
}
