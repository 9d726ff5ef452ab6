package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/leasecore/internal/catalog/domain"
	"go.uber.org/zap"
)

// DefaultService is a catalog entry created for a new organization.
type DefaultService struct {
	Name         string
	Category     string
	PricingModel catalogdomain.PricingModel
	UnitPrice    decimal.Decimal
	UnitName     string
}

// DefaultCatalog lists the utilities and amenities most boarding houses bill.
// Prices are placeholders to be edited per organization.
var DefaultCatalog = []DefaultService{
	{Name: "Electricity", Category: "utility", PricingModel: catalogdomain.PricingPerUnit, UnitPrice: decimal.NewFromInt(1_500), UnitName: "kWh"},
	{Name: "Water", Category: "utility", PricingModel: catalogdomain.PricingPerUnit, UnitPrice: decimal.NewFromInt(10_000), UnitName: "m3"},
	{Name: "Internet", Category: "amenity", PricingModel: catalogdomain.PricingFlat, UnitPrice: decimal.NewFromInt(150_000)},
	{Name: "Cleaning", Category: "amenity", PricingModel: catalogdomain.PricingFlat, UnitPrice: decimal.NewFromInt(100_000)},
}

// EnsureCatalog creates every default service the organization does not
// have yet. It returns the number of services created.
func EnsureCatalog(ctx context.Context, log *zap.Logger, svc catalogdomain.Service, orgID snowflake.ID) (int, error) {
	if svc == nil {
		return 0, errors.New("seed catalog service is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	created := 0
	for _, def := range DefaultCatalog {
		_, err := svc.CreateService(ctx, orgID, catalogdomain.CreateServiceRequest{
			Name:         def.Name,
			Category:     def.Category,
			PricingModel: def.PricingModel,
			UnitPrice:    def.UnitPrice,
			UnitName:     def.UnitName,
		})
		switch {
		case err == nil:
			created++
		case errors.Is(err, catalogdomain.ErrServiceNameTaken):
			continue
		default:
			return created, err
		}
	}

	log.Info("default catalog ensured",
		zap.String("org_id", orgID.String()),
		zap.Int("created", created),
	)
	return created, nil
}
