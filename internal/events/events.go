package events

// Billing event types written to the outbox.
const (
	EventContractActivated = "contract_activated"
	EventContractEnded     = "contract_ended"
	EventInvoiceGenerated  = "invoice_generated"
	EventInvoiceAdjusted   = "invoice_adjusted"
	EventPaymentRecorded   = "payment_recorded"
	EventPaymentReversed   = "payment_reversed"
	EventDepositRefunded   = "deposit_refunded"
	EventDepositForfeited  = "deposit_forfeited"
)

// InvoicePayload captures the minimal data consumers need for invoice events.
type InvoicePayload struct {
	InvoiceID   string `json:"invoice_id"`
	ContractID  string `json:"contract_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Total       string `json:"total"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p InvoicePayload) ToMap() map[string]any {
	return map[string]any{
		"invoice_id":   p.InvoiceID,
		"contract_id":  p.ContractID,
		"period_start": p.PeriodStart,
		"period_end":   p.PeriodEnd,
		"total":        p.Total,
	}
}

// PaymentPayload captures a payment movement and the invoice state it produced.
type PaymentPayload struct {
	PaymentID     string `json:"payment_id"`
	InvoiceID     string `json:"invoice_id"`
	Amount        string `json:"amount"`
	PaidAmount    string `json:"paid_amount"`
	InvoiceStatus string `json:"invoice_status"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p PaymentPayload) ToMap() map[string]any {
	return map[string]any{
		"payment_id":     p.PaymentID,
		"invoice_id":     p.InvoiceID,
		"amount":         p.Amount,
		"paid_amount":    p.PaidAmount,
		"invoice_status": p.InvoiceStatus,
	}
}
