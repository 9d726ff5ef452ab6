package migration

import (
	"context"

	auditdomain "github.com/smallbiznis/leasecore/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/leasecore/internal/catalog/domain"
	"github.com/smallbiznis/leasecore/internal/config"
	contractdomain "github.com/smallbiznis/leasecore/internal/contract/domain"
	depositdomain "github.com/smallbiznis/leasecore/internal/deposit/domain"
	"github.com/smallbiznis/leasecore/internal/events"
	invoicedomain "github.com/smallbiznis/leasecore/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/leasecore/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/leasecore/internal/payment/domain"
	roomdomain "github.com/smallbiznis/leasecore/internal/room/domain"
	tenantdomain "github.com/smallbiznis/leasecore/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every persisted record in dependency order.
func Models() []any {
	return []any{
		&roomdomain.Room{},
		&tenantdomain.Tenant{},
		&contractdomain.Contract{},
		&contractdomain.ContractTenant{},
		&catalogdomain.BillableService{},
		&catalogdomain.ContractService{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.MeterReading{},
		&paymentdomain.Payment{},
		&depositdomain.Deposit{},
		&ledgerdomain.LedgerAccount{},
		&ledgerdomain.LedgerEntry{},
		&ledgerdomain.LedgerEntryLine{},
		&events.BillingEvent{},
		&auditdomain.AuditLog{},
	}
}

// Run creates or updates the schema for all models.
func Run(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(Models()...)
}

var Module = fx.Module("migration",
	fx.Invoke(autoMigrate),
)

func autoMigrate(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, log *zap.Logger) {
	if !cfg.Database.AutoMigrate {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := Run(ctx, db); err != nil {
				return err
			}
			log.Info("database schema migrated", zap.Int("models", len(Models())))
			return nil
		},
	})
}
