package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	ServiceName string
	Environment string
}

// BillingMetrics tracks invoice generation, payment application and sweeps.
type BillingMetrics struct {
	invoicesGenerated *prometheus.CounterVec
	paymentsApplied   *prometheus.CounterVec
	sweepContracts    *prometheus.CounterVec
	sweepDuration     prometheus.Histogram
	depositsEligible  prometheus.Gauge
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = NewBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

// NewBillingMetrics registers a fresh metric set on registerer.
func NewBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "leasecore"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	invoicesGenerated := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "leasecore_invoices_generated_total",
			Help:        "Invoice generation attempts by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // success | conflict | invalid | failed
	)

	paymentsApplied := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "leasecore_payments_total",
			Help:        "Payments recorded or reversed against invoices.",
			ConstLabels: constLabels,
		},
		[]string{"action", "result"},
	)

	sweepContracts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "leasecore_sweep_contracts_total",
			Help:        "Contracts handled by the recurring invoicing sweep.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // invoiced | skipped | failed
	)

	sweepDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "leasecore_sweep_duration_seconds",
			Help:        "Wall time of a full recurring invoicing sweep.",
			Buckets:     []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			ConstLabels: constLabels,
		},
	)

	depositsEligible := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "leasecore_deposits_eligible",
			Help:        "Held deposits eligible for refund or forfeiture at the last sweep.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		invoicesGenerated,
		paymentsApplied,
		sweepContracts,
		sweepDuration,
		depositsEligible,
	)

	return &BillingMetrics{
		invoicesGenerated: invoicesGenerated,
		paymentsApplied:   paymentsApplied,
		sweepContracts:    sweepContracts,
		sweepDuration:     sweepDuration,
		depositsEligible:  depositsEligible,
	}
}

func (m *BillingMetrics) IncInvoiceGenerated(result string) {
	if m == nil {
		return
	}
	m.invoicesGenerated.WithLabelValues(result).Inc()
}

func (m *BillingMetrics) IncPayment(action, result string) {
	if m == nil {
		return
	}
	m.paymentsApplied.WithLabelValues(action, result).Inc()
}

func (m *BillingMetrics) IncSweepContract(result string) {
	if m == nil {
		return
	}
	m.sweepContracts.WithLabelValues(result).Inc()
}

func (m *BillingMetrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}

func (m *BillingMetrics) SetDepositsEligible(n int) {
	if m == nil {
		return
	}
	m.depositsEligible.Set(float64(n))
}
