package tracing

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/attribute"
)

const (
	KeyOrgID         = attribute.Key("leasecore.org_id")
	KeyContractID    = attribute.Key("leasecore.contract_id")
	KeyRoomID        = attribute.Key("leasecore.room_id")
	KeyInvoiceID     = attribute.Key("leasecore.invoice_id")
	KeyPaymentID     = attribute.Key("leasecore.payment_id")
	KeyDepositID     = attribute.Key("leasecore.deposit_id")
	KeyPeriodStart   = attribute.Key("leasecore.period_start")
	KeyPaymentMethod = attribute.Key("leasecore.payment_method")
	KeyAsOf          = attribute.Key("leasecore.as_of")
	KeyErrorKind     = attribute.Key("leasecore.error.kind")
	KeyErrorCode     = attribute.Key("leasecore.error.code")
)

func OrgID(id snowflake.ID) attribute.KeyValue      { return KeyOrgID.String(id.String()) }
func ContractID(id snowflake.ID) attribute.KeyValue { return KeyContractID.String(id.String()) }
func RoomID(id snowflake.ID) attribute.KeyValue     { return KeyRoomID.String(id.String()) }
func InvoiceID(id snowflake.ID) attribute.KeyValue  { return KeyInvoiceID.String(id.String()) }
func PaymentID(id snowflake.ID) attribute.KeyValue  { return KeyPaymentID.String(id.String()) }
func DepositID(id snowflake.ID) attribute.KeyValue  { return KeyDepositID.String(id.String()) }

func PeriodStart(t time.Time) attribute.KeyValue {
	return KeyPeriodStart.String(t.Format(time.DateOnly))
}

func AsOf(t time.Time) attribute.KeyValue {
	return KeyAsOf.String(t.Format(time.DateOnly))
}

// PaymentMethod normalizes the method the same way payments store it.
func PaymentMethod(method string) attribute.KeyValue {
	return KeyPaymentMethod.String(strings.ToLower(strings.TrimSpace(method)))
}

// Free text typed by staff or tenants. Spans carry identifiers only.
var tenantTextKeys = []string{
	"note",
	"reason",
	"description",
	"tenant_name",
	"tenant.name",
	"phone",
	"email",
	"id_number",
}

// scrub drops attributes whose key names tenant-entered text.
func scrub(attrs []attribute.KeyValue) []attribute.KeyValue {
	kept := attrs[:0:0]
	for _, attr := range attrs {
		if isTenantText(string(attr.Key)) {
			continue
		}
		kept = append(kept, attr)
	}
	return kept
}

func isTenantText(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, needle := range tenantTextKeys {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}
