package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/leasecore/internal/catalog/domain"
	contractdomain "github.com/smallbiznis/leasecore/internal/contract/domain"
	"github.com/smallbiznis/leasecore/internal/errs"
	"github.com/smallbiznis/leasecore/internal/testutil"
	"github.com/smallbiznis/leasecore/pkg/money"
	"github.com/smallbiznis/leasecore/pkg/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func newContract(t *testing.T, env *testutil.Env) *contractdomain.Contract {
	t.Helper()
	contract, err := env.Contracts.Create(context.Background(), env.OrgID, contractdomain.ContractSpec{
		RoomID:          env.Room(t, "R101").ID,
		PrimaryTenantID: env.Tenant(t, "Budi").ID,
		StartDate:       testutil.Date(t, "2024-01-01"),
		RentAmount:      decimal.NewFromInt(1_200_000),
		BillingCycle:    period.CycleMonthly,
		Status:          contractdomain.ContractStatusActive,
	})
	require.NoError(t, err)
	return contract
}

func TestCreateServiceDefaultsAndUniqueness(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()

	water, err := env.Catalog.CreateService(ctx, env.OrgID, catalogdomain.CreateServiceRequest{
		Name:         " Water ",
		Category:     "utility",
		PricingModel: catalogdomain.PricingPerUnit,
		UnitPrice:    money.MustParse("15000.004"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Water", water.Name)
	assert.Equal(t, "unit", water.UnitName)
	assert.True(t, water.Active)
	testutil.Amount(t, "15000", water.UnitPrice)

	_, err = env.Catalog.CreateService(ctx, env.OrgID, catalogdomain.CreateServiceRequest{
		Name:         "Water",
		PricingModel: catalogdomain.PricingFlat,
	})
	assert.ErrorIs(t, err, catalogdomain.ErrServiceNameTaken)
	assert.ErrorIs(t, err, errs.ErrConflict)

	_, err = env.Catalog.CreateService(ctx, env.OrgID, catalogdomain.CreateServiceRequest{
		Name:         "Parking",
		PricingModel: catalogdomain.PricingFlat,
		UnitPrice:    decimal.NewFromInt(-1),
	})
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidPrice)

	_, err = env.Catalog.CreateService(ctx, env.OrgID, catalogdomain.CreateServiceRequest{
		Name:         "Laundry",
		PricingModel: "TIERED",
	})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestUpdateServiceRefreshesCachedRead(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()

	svc, err := env.Catalog.CreateService(ctx, env.OrgID, catalogdomain.CreateServiceRequest{
		Name:         "Internet",
		PricingModel: catalogdomain.PricingFlat,
		UnitPrice:    decimal.NewFromInt(250_000),
	})
	require.NoError(t, err)

	cached, err := env.Catalog.GetService(ctx, env.OrgID, svc.ID)
	require.NoError(t, err)
	testutil.Amount(t, "250000", cached.UnitPrice)

	price := decimal.NewFromInt(300_000)
	_, err = env.Catalog.UpdateService(ctx, env.OrgID, svc.ID, catalogdomain.UpdateServiceRequest{UnitPrice: &price})
	require.NoError(t, err)

	fresh, err := env.Catalog.GetService(ctx, env.OrgID, svc.ID)
	require.NoError(t, err)
	testutil.Amount(t, "300000", fresh.UnitPrice)

	_, err = env.Catalog.GetService(ctx, env.OrgID, env.Node.Generate())
	assert.ErrorIs(t, err, catalogdomain.ErrServiceNotFound)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestListServicesActiveOnly(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()

	for _, name := range []string{"Cleaning", "Internet"} {
		_, err := env.Catalog.CreateService(ctx, env.OrgID, catalogdomain.CreateServiceRequest{
			Name:         name,
			PricingModel: catalogdomain.PricingFlat,
			UnitPrice:    decimal.NewFromInt(100_000),
		})
		require.NoError(t, err)
	}
	all, err := env.Catalog.ListServices(ctx, env.OrgID, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Cleaning", all[0].Name)

	inactive := false
	_, err = env.Catalog.UpdateService(ctx, env.OrgID, all[0].ID, catalogdomain.UpdateServiceRequest{Active: &inactive})
	require.NoError(t, err)

	active, err := env.Catalog.ListServices(ctx, env.OrgID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Internet", active[0].Name)
}

func TestBindServiceUsesCustomPrice(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	contract := newContract(t, env)

	internet, err := env.Catalog.CreateService(ctx, env.OrgID, catalogdomain.CreateServiceRequest{
		Name:         "Internet",
		PricingModel: catalogdomain.PricingFlat,
		UnitPrice:    decimal.NewFromInt(250_000),
	})
	require.NoError(t, err)

	custom := decimal.NewFromInt(200_000)
	binding, err := env.Catalog.BindService(ctx, env.OrgID, catalogdomain.BindServiceRequest{
		ContractID:  contract.ID,
		ServiceID:   internet.ID,
		CustomPrice: &custom,
	})
	require.NoError(t, err)

	_, err = env.Catalog.BindService(ctx, env.OrgID, catalogdomain.BindServiceRequest{
		ContractID: contract.ID,
		ServiceID:  internet.ID,
	})
	assert.ErrorIs(t, err, catalogdomain.ErrServiceAlreadyBound)

	bound, err := env.Catalog.ListBindings(ctx, env.OrgID, contract.ID, true)
	require.NoError(t, err)
	require.Len(t, bound, 1)
	testutil.Amount(t, "200000", bound[0].EffectiveUnitPrice)

	_, err = env.Catalog.UpdateBinding(ctx, env.OrgID, binding.ID, catalogdomain.UpdateBindingRequest{ClearCustomPrice: true})
	require.NoError(t, err)
	bound, err = env.Catalog.ListBindings(ctx, env.OrgID, contract.ID, true)
	require.NoError(t, err)
	require.Len(t, bound, 1)
	testutil.Amount(t, "250000", bound[0].EffectiveUnitPrice)

	require.NoError(t, env.Catalog.UnbindService(ctx, env.OrgID, binding.ID))
	bound, err = env.Catalog.ListBindings(ctx, env.OrgID, contract.ID, true)
	require.NoError(t, err)
	assert.Empty(t, bound)

	// A deactivated binding no longer blocks binding the service again.
	_, err = env.Catalog.BindService(ctx, env.OrgID, catalogdomain.BindServiceRequest{
		ContractID: contract.ID,
		ServiceID:  internet.ID,
	})
	require.NoError(t, err)
	history, err := env.Catalog.ListBindings(ctx, env.OrgID, contract.ID, false)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestBindServiceRejections(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	contract := newContract(t, env)

	svc, err := env.Catalog.CreateService(ctx, env.OrgID, catalogdomain.CreateServiceRequest{
		Name:         "Cleaning",
		PricingModel: catalogdomain.PricingFlat,
		UnitPrice:    decimal.NewFromInt(50_000),
	})
	require.NoError(t, err)

	_, err = env.Catalog.BindService(ctx, env.OrgID, catalogdomain.BindServiceRequest{
		ContractID: env.Node.Generate(),
		ServiceID:  svc.ID,
	})
	assert.ErrorIs(t, err, contractdomain.ErrContractNotFound)

	_, err = env.Catalog.BindService(ctx, env.OrgID, catalogdomain.BindServiceRequest{
		ContractID: contract.ID,
		ServiceID:  env.Node.Generate(),
	})
	assert.ErrorIs(t, err, catalogdomain.ErrServiceNotFound)

	inactive := false
	_, err = env.Catalog.UpdateService(ctx, env.OrgID, svc.ID, catalogdomain.UpdateServiceRequest{Active: &inactive})
	require.NoError(t, err)
	_, err = env.Catalog.BindService(ctx, env.OrgID, catalogdomain.BindServiceRequest{
		ContractID: contract.ID,
		ServiceID:  svc.ID,
	})
	assert.ErrorIs(t, err, catalogdomain.ErrServiceInactive)

	_, err = env.Contracts.Terminate(ctx, env.OrgID, contract.ID, contractdomain.TerminateContractRequest{})
	require.NoError(t, err)
	active := true
	_, err = env.Catalog.UpdateService(ctx, env.OrgID, svc.ID, catalogdomain.UpdateServiceRequest{Active: &active})
	require.NoError(t, err)
	_, err = env.Catalog.BindService(ctx, env.OrgID, catalogdomain.BindServiceRequest{
		ContractID: contract.ID,
		ServiceID:  svc.ID,
	})
	assert.ErrorIs(t, err, catalogdomain.ErrContractClosed)
}
