package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBillingMetricsCounters(t *testing.T) {
	m := NewBillingMetrics(prometheus.NewRegistry(), Config{ServiceName: "test"})

	m.IncInvoiceGenerated("success")
	m.IncInvoiceGenerated("success")
	m.IncInvoiceGenerated("conflict")
	m.IncPayment("record", "success")

	if got := testutil.ToFloat64(m.invoicesGenerated.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected 2 successful generations, got %v", got)
	}
	if got := testutil.ToFloat64(m.invoicesGenerated.WithLabelValues("conflict")); got != 1 {
		t.Fatalf("expected 1 conflict, got %v", got)
	}
	if got := testutil.ToFloat64(m.paymentsApplied.WithLabelValues("record", "success")); got != 1 {
		t.Fatalf("expected 1 payment, got %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *BillingMetrics
	m.IncInvoiceGenerated("success")
	m.IncSweepContract("failed")
	m.SetDepositsEligible(3)
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics(reg, Config{ServiceName: "test"})
	m.IncSweepContract("generated")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "leasecore_sweep_contracts_total") {
		t.Fatalf("sweep counter missing from output:\n%s", rec.Body.String())
	}
}
