package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/smallbiznis/leasecore/pkg/period"
)

// Config is the process configuration, loaded from the environment.
type Config struct {
	AppName     string
	Version     string
	Environment string

	Database  DatabaseConfig
	Log       LogConfig
	Tracing   TracingConfig
	Metrics   MetricsConfig
	Billing   BillingConfig
	Scheduler SchedulerConfig
}

type DatabaseConfig struct {
	// Driver is either "postgres" or "sqlite".
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type LogConfig struct {
	Level  string
	Format string
}

type TracingConfig struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// MetricsConfig controls the Prometheus scrape endpoint. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string
	Path string
}

// BillingConfig holds the invoicing policy knobs.
type BillingConfig struct {
	DefaultGraceDays int
	GraceDays        map[period.Cycle]int
	// OpenEndedYears is the far-future horizon used for contracts without an end date.
	OpenEndedYears int
}

type SchedulerConfig struct {
	Enabled     bool
	CronSpec    string
	Concurrency int
	BatchSize   int
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// GraceDaysFor returns the due-date window for invoices of the given cycle.
func (b BillingConfig) GraceDaysFor(cycle period.Cycle) int {
	if days, ok := b.GraceDays[cycle]; ok && days > 0 {
		return days
	}
	if b.DefaultGraceDays > 0 {
		return b.DefaultGraceDays
	}
	return 7
}

// Default returns the configuration used when no environment is present.
func Default() Config {
	return Config{
		AppName:     "leasecore",
		Version:     "dev",
		Environment: "development",
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "file:leasecore.db?_foreign_keys=on",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			AutoMigrate:  true,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Tracing: TracingConfig{
			ExporterProtocol: "grpc",
			SamplingRatio:    0.1,
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		Billing: BillingConfig{
			DefaultGraceDays: 7,
			GraceDays:        map[period.Cycle]int{},
			OpenEndedYears:   10,
		},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			CronSpec:    "@hourly",
			Concurrency: 4,
			BatchSize:   200,
		},
	}
}

// Load reads configuration from the environment, after applying a .env file
// when one exists.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	cfg.AppName = getEnv("APP_NAME", cfg.AppName)
	cfg.Version = getEnv("APP_VERSION", cfg.Version)
	cfg.Environment = getEnv("APP_ENV", cfg.Environment)

	cfg.Database.Driver = strings.ToLower(getEnv("DB_DRIVER", cfg.Database.Driver))
	cfg.Database.DSN = getEnv("DB_DSN", cfg.Database.DSN)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Tracing.ExporterEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.ExporterEndpoint)
	cfg.Tracing.ExporterProtocol = getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", cfg.Tracing.ExporterProtocol)
	cfg.Scheduler.CronSpec = getEnv("SCHEDULER_CRON", cfg.Scheduler.CronSpec)
	cfg.Metrics.Addr = getEnv("METRICS_ADDR", cfg.Metrics.Addr)
	cfg.Metrics.Path = getEnv("METRICS_PATH", cfg.Metrics.Path)

	var err error
	if cfg.Database.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if cfg.Database.MaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if cfg.Database.AutoMigrate, err = getBool("DB_AUTO_MIGRATE", cfg.Database.AutoMigrate); err != nil {
		return Config{}, err
	}
	if cfg.Tracing.Enabled, err = getBool("OTEL_ENABLED", cfg.Tracing.Enabled); err != nil {
		return Config{}, err
	}
	if raw, ok := os.LookupEnv("OTEL_SAMPLING_RATIO"); ok {
		if cfg.Tracing.SamplingRatio, err = strconv.ParseFloat(raw, 64); err != nil {
			return Config{}, fmt.Errorf("invalid OTEL_SAMPLING_RATIO: %w", err)
		}
	}
	if cfg.Billing.DefaultGraceDays, err = getInt("BILLING_GRACE_DAYS", cfg.Billing.DefaultGraceDays); err != nil {
		return Config{}, err
	}
	for _, cycle := range []period.Cycle{period.CycleMonthly, period.CycleQuarterly, period.CycleYearly} {
		key := "BILLING_GRACE_DAYS_" + string(cycle)
		days, err := getInt(key, 0)
		if err != nil {
			return Config{}, err
		}
		if days > 0 {
			cfg.Billing.GraceDays[cycle] = days
		}
	}
	if cfg.Billing.OpenEndedYears, err = getInt("BILLING_OPEN_ENDED_YEARS", cfg.Billing.OpenEndedYears); err != nil {
		return Config{}, err
	}
	if cfg.Scheduler.Enabled, err = getBool("SCHEDULER_ENABLED", cfg.Scheduler.Enabled); err != nil {
		return Config{}, err
	}
	if cfg.Scheduler.Concurrency, err = getInt("SCHEDULER_CONCURRENCY", cfg.Scheduler.Concurrency); err != nil {
		return Config{}, err
	}
	if cfg.Scheduler.BatchSize, err = getInt("SCHEDULER_BATCH_SIZE", cfg.Scheduler.BatchSize); err != nil {
		return Config{}, err
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
