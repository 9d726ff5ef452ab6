package config

import (
	"testing"

	"github.com/smallbiznis/leasecore/pkg/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Billing.GraceDaysFor(period.CycleMonthly))
	assert.Equal(t, 10, cfg.Billing.OpenEndedYears)
	assert.Equal(t, "@hourly", cfg.Scheduler.CronSpec)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("BILLING_GRACE_DAYS", "5")
	t.Setenv("BILLING_GRACE_DAYS_YEARLY", "30")
	t.Setenv("SCHEDULER_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Billing.GraceDaysFor(period.CycleMonthly))
	assert.Equal(t, 30, cfg.Billing.GraceDaysFor(period.CycleYearly))
	assert.Equal(t, 8, cfg.Scheduler.Concurrency)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SCHEDULER_BATCH_SIZE", "lots")
	_, err = Load()
	assert.Error(t, err)
}
