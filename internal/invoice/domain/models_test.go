package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasecore/pkg/period"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestStatusFor(t *testing.T) {
	total := d("1200000")

	assert.Equal(t, InvoiceStatusPending, StatusFor(total, decimal.Zero))
	assert.Equal(t, InvoiceStatusPartiallyPaid, StatusFor(total, d("700000")))
	assert.Equal(t, InvoiceStatusPaid, StatusFor(total, d("1200000")))
	assert.Equal(t, InvoiceStatusPaid, StatusFor(total, d("1300000")))
	assert.Equal(t, InvoiceStatusPaid, StatusFor(decimal.Zero, decimal.Zero))
	assert.Equal(t, InvoiceStatusPaid, StatusFor(d("-50000"), decimal.Zero))
}

func TestOverdueIsDerived(t *testing.T) {
	inv := Invoice{TotalAmount: d("100"), Status: InvoiceStatusPending, DueDate: period.Date(2024, 1, 8)}

	assert.False(t, inv.IsOverdue(period.Date(2024, 1, 8)))
	assert.True(t, inv.IsOverdue(period.Date(2024, 1, 9)))

	inv.ApplyPaid(d("100"))
	assert.False(t, inv.IsOverdue(period.Date(2024, 2, 1)))
	assert.True(t, inv.Remaining().IsZero())
}

func TestZeroTotalIsNeverOverdue(t *testing.T) {
	inv := Invoice{DueDate: period.Date(2024, 1, 8)}
	inv.ApplyPaid(decimal.Zero)

	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assert.False(t, inv.IsOverdue(period.Date(2024, 3, 1)))
}

func TestRecalculateAndSummarize(t *testing.T) {
	inv := Invoice{
		DueDate: period.Date(2024, 1, 8),
		Items: []InvoiceItem{
			{Kind: ItemKindRent, Amount: d("1200000")},
			{Kind: ItemKindService, Amount: d("43750")},
			{Kind: ItemKindAdjustment, Amount: d("-50000")},
		},
	}
	inv.Recalculate()
	inv.ApplyPaid(d("200000"))

	s := Summarize(inv, period.Date(2024, 1, 10))
	assert.True(t, s.Total.Equal(d("1193750")))
	assert.True(t, s.Remaining.Equal(d("993750")))
	assert.Equal(t, InvoiceStatusPartiallyPaid, s.Status)
	assert.True(t, s.Overdue)
}

func TestMeterReadingConsumption(t *testing.T) {
	r := MeterReading{PreviousIndex: d("100"), CurrentIndex: d("112.5")}
	assert.True(t, r.Consumption().Equal(d("12.5")))
}
