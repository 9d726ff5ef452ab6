package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leasecore/internal/audit"
	"github.com/smallbiznis/leasecore/internal/catalog"
	"github.com/smallbiznis/leasecore/internal/clock"
	"github.com/smallbiznis/leasecore/internal/config"
	"github.com/smallbiznis/leasecore/internal/contract"
	"github.com/smallbiznis/leasecore/internal/deposit"
	"github.com/smallbiznis/leasecore/internal/events"
	"github.com/smallbiznis/leasecore/internal/invoice"
	"github.com/smallbiznis/leasecore/internal/ledger"
	"github.com/smallbiznis/leasecore/internal/logger"
	"github.com/smallbiznis/leasecore/internal/migration"
	"github.com/smallbiznis/leasecore/internal/observability/metrics"
	"github.com/smallbiznis/leasecore/internal/observability/tracing"
	"github.com/smallbiznis/leasecore/internal/payment"
	"github.com/smallbiznis/leasecore/internal/room"
	"github.com/smallbiznis/leasecore/internal/scheduler"
	"github.com/smallbiznis/leasecore/internal/tenant"
	"github.com/smallbiznis/leasecore/pkg/db"
	"github.com/smallbiznis/leasecore/pkg/period"
	"go.uber.org/fx"
)

const startTimeout = 30 * time.Second

// coreModules wires the billing core on top of the configured database.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		logger.Module,
		tracing.Module,
		metrics.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		events.Module,
		audit.Module,
		ledger.Module,
		room.Module,
		tenant.Module,
		contract.Module,
		catalog.Module,
		invoice.Module,
		payment.Module,
		deposit.Module,
		scheduler.Module,
	)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// runTask starts the core, runs task once and stops the core again. targets
// are filled by fx before the task runs.
func runTask(ctx context.Context, task func(ctx context.Context) error, targets ...any) error {
	app := fx.New(
		coreModules(),
		fx.NopLogger,
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	taskErr := task(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), startTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && taskErr == nil {
		return err
	}
	return taskErr
}

func parseOrg(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid --org %q", raw)
	}
	return id, nil
}

// parseAsOf reads a YYYY-MM-DD flag, defaulting to today on c.
func parseAsOf(raw string, c clock.Clock) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return clock.Today(c), nil
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: %w", raw, err)
	}
	return period.Truncate(t), nil
}
