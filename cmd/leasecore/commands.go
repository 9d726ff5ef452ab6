package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/smallbiznis/leasecore/internal/auditcontext"
	catalogdomain "github.com/smallbiznis/leasecore/internal/catalog/domain"
	"github.com/smallbiznis/leasecore/internal/clock"
	"github.com/smallbiznis/leasecore/internal/migration"
	"github.com/smallbiznis/leasecore/internal/observability/metrics"
	"github.com/smallbiznis/leasecore/internal/scheduler"
	"github.com/smallbiznis/leasecore/internal/seed"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the recurring invoice and deposit sweep on its cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				coreModules(),
				scheduler.WorkerModule,
				metrics.ServeModule,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				conn *gorm.DB
				log  *zap.Logger
			)
			return runTask(cmd.Context(), func(ctx context.Context) error {
				if err := migration.Run(ctx, conn); err != nil {
					return err
				}
				log.Info("database schema migrated", zap.Int("models", len(migration.Models())))
				return nil
			}, &conn, &log)
		},
	}
}

func sweepCmd() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one sweep across all organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				sched *scheduler.Scheduler
				clk   clock.Clock
				log   *zap.Logger
			)
			return runTask(cmd.Context(), func(ctx context.Context) error {
				date, err := parseAsOf(asOf, clk)
				if err != nil {
					return err
				}
				result, err := sched.Sweep(ctx, date)
				if err != nil {
					return err
				}
				for _, f := range result.Failed {
					log.Warn("contract not invoiced",
						zap.String("org_id", f.OrgID.String()),
						zap.String("contract_id", f.ContractID.String()),
						zap.Error(f.Err),
					)
				}
				return printJSON(map[string]any{
					"as_of":             result.AsOf.Format(time.DateOnly),
					"organizations":     result.Organizations,
					"generated":         result.Generated,
					"skipped":           result.Skipped,
					"failed":            len(result.Failed),
					"expired":           result.Expired,
					"deposits_eligible": result.DepositsEligible,
				})
			}, &sched, &clk, &log)
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Sweep date (YYYY-MM-DD), defaults to today")
	return cmd
}

func dueCmd() *cobra.Command {
	var org, asOf string
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List contracts due for invoicing and deposits awaiting settlement",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := parseOrg(org)
			if err != nil {
				return err
			}
			var (
				sched *scheduler.Scheduler
				clk   clock.Clock
			)
			return runTask(cmd.Context(), func(ctx context.Context) error {
				date, err := parseAsOf(asOf, clk)
				if err != nil {
					return err
				}
				report, err := sched.Due(ctx, orgID, date)
				if err != nil {
					return err
				}
				return printJSON(report)
			}, &sched, &clk)
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "Organization id")
	cmd.Flags().StringVar(&asOf, "as-of", "", "Reference date (YYYY-MM-DD), defaults to today")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func seedCmd() *cobra.Command {
	var org string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default service catalog for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := parseOrg(org)
			if err != nil {
				return err
			}
			var (
				catalog catalogdomain.Service
				log     *zap.Logger
			)
			return runTask(cmd.Context(), func(ctx context.Context) error {
				ctx = auditcontext.WithSystemActor(ctx, "seed")
				_, err := seed.EnsureCatalog(ctx, log, catalog, orgID)
				return err
			}, &catalog, &log)
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "Organization id")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
