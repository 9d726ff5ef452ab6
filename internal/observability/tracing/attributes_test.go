package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestScrubDropsTenantText(t *testing.T) {
	attrs := scrub([]attribute.KeyValue{
		InvoiceID(42),
		PaymentMethod(" Transfer "),
		attribute.String("payment.note", "paid by cousin"),
		attribute.String("terminate.reason", "tenant moved to Bandung"),
		attribute.String("tenant.name", "Budi"),
	})

	assert.Equal(t, []attribute.KeyValue{
		KeyInvoiceID.String("42"),
		KeyPaymentMethod.String("transfer"),
	}, attrs)
}
