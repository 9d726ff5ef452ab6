package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	contractdomain "github.com/smallbiznis/leasecore/internal/contract/domain"
	depositdomain "github.com/smallbiznis/leasecore/internal/deposit/domain"
	"github.com/smallbiznis/leasecore/internal/errs"
	ledgerdomain "github.com/smallbiznis/leasecore/internal/ledger/domain"
	"github.com/smallbiznis/leasecore/internal/testutil"
	"github.com/smallbiznis/leasecore/pkg/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func heldDeposit(t *testing.T, env *testutil.Env, room string, end *time.Time) (*contractdomain.Contract, *depositdomain.Deposit) {
	t.Helper()
	ctx := context.Background()
	contract, err := env.Contracts.Create(ctx, env.OrgID, contractdomain.ContractSpec{
		RoomID:          env.Room(t, room).ID,
		PrimaryTenantID: env.Tenant(t, "Tenant "+room).ID,
		StartDate:       testutil.Date(t, "2024-01-01"),
		EndDate:         end,
		RentAmount:      decimal.NewFromInt(1_200_000),
		DepositAmount:   decimal.NewFromInt(5_000_000),
		BillingCycle:    period.CycleMonthly,
		Status:          contractdomain.ContractStatusActive,
	})
	require.NoError(t, err)
	deposit, err := env.Deposits.GetByContract(ctx, env.OrgID, contract.ID)
	require.NoError(t, err)
	require.Equal(t, depositdomain.DepositStatusHeld, deposit.Status)
	return contract, deposit
}

func balance(t *testing.T, env *testutil.Env, code string) decimal.Decimal {
	t.Helper()
	b, err := env.Ledger.Balance(context.Background(), env.OrgID, code)
	require.NoError(t, err)
	return b
}

func TestRefundFullDeposit(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	_, deposit := heldDeposit(t, env, "R101", nil)

	_, err := env.Deposits.Refund(ctx, env.OrgID, deposit.ID, depositdomain.RefundDepositRequest{
		Amount: decimal.NewFromInt(6_000_000),
	})
	assert.ErrorIs(t, err, depositdomain.ErrRefundExceedsDeposit)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = env.Deposits.Refund(ctx, env.OrgID, deposit.ID, depositdomain.RefundDepositRequest{
		Amount: decimal.NewFromInt(-1),
	})
	assert.ErrorIs(t, err, depositdomain.ErrInvalidRefundAmount)

	refunded, err := env.Deposits.Refund(ctx, env.OrgID, deposit.ID, depositdomain.RefundDepositRequest{
		Amount: decimal.NewFromInt(5_000_000),
		Date:   testutil.Date(t, "2024-06-30"),
	})
	require.NoError(t, err)
	assert.Equal(t, depositdomain.DepositStatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundAmount)
	testutil.Amount(t, "5000000", *refunded.RefundAmount)
	require.NotNil(t, refunded.RefundDate)
	assert.True(t, testutil.Date(t, "2024-06-30").Equal(*refunded.RefundDate))

	testutil.Amount(t, "0", balance(t, env, ledgerdomain.AccountCodeDepositLiability))
	testutil.Amount(t, "0", balance(t, env, ledgerdomain.AccountCodeCashClearing))
	testutil.Amount(t, "0", balance(t, env, ledgerdomain.AccountCodeDepositForfeiture))

	_, err = env.Deposits.Refund(ctx, env.OrgID, deposit.ID, depositdomain.RefundDepositRequest{
		Amount: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, depositdomain.ErrDepositNotHeld)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestPartialRefundRetainsRemainder(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	_, deposit := heldDeposit(t, env, "R101", nil)

	refunded, err := env.Deposits.Refund(ctx, env.OrgID, deposit.ID, depositdomain.RefundDepositRequest{
		Amount: decimal.NewFromInt(3_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, depositdomain.DepositStatusRefunded, refunded.Status)
	testutil.Amount(t, "2000000", refunded.Retained())

	testutil.Amount(t, "0", balance(t, env, ledgerdomain.AccountCodeDepositLiability))
	testutil.Amount(t, "2000000", balance(t, env, ledgerdomain.AccountCodeCashClearing))
	testutil.Amount(t, "-2000000", balance(t, env, ledgerdomain.AccountCodeDepositForfeiture))
}

func TestForfeitDeposit(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	_, deposit := heldDeposit(t, env, "R101", nil)

	forfeited, err := env.Deposits.Forfeit(ctx, env.OrgID, deposit.ID, depositdomain.ForfeitDepositRequest{Reason: "damage"})
	require.NoError(t, err)
	assert.Equal(t, depositdomain.DepositStatusForfeited, forfeited.Status)
	require.NotNil(t, forfeited.Reason)
	assert.Equal(t, "damage", *forfeited.Reason)
	testutil.Amount(t, "-5000000", balance(t, env, ledgerdomain.AccountCodeDepositForfeiture))

	_, err = env.Deposits.Forfeit(ctx, env.OrgID, deposit.ID, depositdomain.ForfeitDepositRequest{})
	assert.ErrorIs(t, err, depositdomain.ErrDepositNotHeld)

	_, err = env.Deposits.Get(ctx, env.OrgID, env.Node.Generate())
	assert.ErrorIs(t, err, depositdomain.ErrDepositNotFound)
}

func TestFindEligibleDeposits(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()

	end := testutil.Date(t, "2024-03-31")
	_, ended := heldDeposit(t, env, "R101", &end)
	_, running := heldDeposit(t, env, "R102", nil)
	terminated, _ := heldDeposit(t, env, "R103", nil)

	_, err := env.Contracts.Terminate(ctx, env.OrgID, terminated.ID, contractdomain.TerminateContractRequest{})
	require.NoError(t, err)

	eligible, err := env.Deposits.FindEligible(ctx, env.OrgID, testutil.Date(t, "2024-03-31"))
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, string(contractdomain.ContractStatusTerminated), eligible[0].ContractStatus)

	eligible, err = env.Deposits.FindEligible(ctx, env.OrgID, testutil.Date(t, "2024-04-01"))
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	ids := []snowflake.ID{eligible[0].Deposit.ID, eligible[1].Deposit.ID}
	assert.Contains(t, ids, ended.ID)
	assert.NotContains(t, ids, running.ID)
}
