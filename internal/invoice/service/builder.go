package service

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/leasecore/internal/catalog/domain"
	invoicedomain "github.com/smallbiznis/leasecore/internal/invoice/domain"
	"github.com/smallbiznis/leasecore/pkg/money"
	"github.com/smallbiznis/leasecore/pkg/period"
)

// lineBuilder rates one billing period into invoice lines. Flat charges are
// prorated by actual/nominal days; metered charges are billed on consumption.
type lineBuilder struct {
	invoiceID snowflake.ID
	billing   period.Range
	days      int64
	nominal   int64
	now       time.Time
	genID     func() snowflake.ID

	items    []invoicedomain.InvoiceItem
	readings []invoicedomain.MeterReading
}

// factor is the quantity on flat lines. Their amount is always
// round(factor * unit price).
func (b *lineBuilder) factor() decimal.Decimal {
	return money.Factor(b.days, b.nominal)
}

func (b *lineBuilder) add(item invoicedomain.InvoiceItem) {
	item.ID = b.genID()
	item.InvoiceID = b.invoiceID
	item.Position = len(b.items)
	item.CreatedAt = b.now
	b.items = append(b.items, item)
}

func (b *lineBuilder) rent(amount decimal.Decimal) {
	b.add(invoicedomain.InvoiceItem{
		Kind: invoicedomain.ItemKindRent,
		Description: fmt.Sprintf("Rent %s to %s",
			b.billing.Start.Format(time.DateOnly),
			b.billing.End.Format(time.DateOnly),
		),
		Quantity:  b.factor(),
		UnitPrice: money.Round(amount),
		Amount:    money.Extend(b.factor(), money.Round(amount)),
	})
}

func (b *lineBuilder) flat(bound catalogdomain.BoundService) {
	bindingID := bound.Binding.ID
	serviceID := bound.Service.ID
	b.add(invoicedomain.InvoiceItem{
		Kind:              invoicedomain.ItemKindService,
		ContractServiceID: &bindingID,
		ServiceID:         &serviceID,
		Description:       bound.Service.Name,
		Quantity:          b.factor(),
		UnitPrice:         money.Round(bound.EffectiveUnitPrice),
		Amount:            money.Extend(b.factor(), money.Round(bound.EffectiveUnitPrice)),
	})
}

// metered bills currentIndex minus the last known index for the binding.
func (b *lineBuilder) metered(orgID snowflake.ID, bound catalogdomain.BoundService, previous, current decimal.Decimal) error {
	consumption := current.Sub(previous)
	if consumption.IsNegative() {
		return fmt.Errorf("%w: service %s (%s): previous index %s, current index %s",
			invoicedomain.ErrNegativeConsumption,
			bound.Service.ID, bound.Service.Name, previous, current,
		)
	}

	bindingID := bound.Binding.ID
	serviceID := bound.Service.ID
	prev := money.RoundQuantity(previous)
	cur := money.RoundQuantity(current)
	b.add(invoicedomain.InvoiceItem{
		Kind:              invoicedomain.ItemKindService,
		ContractServiceID: &bindingID,
		ServiceID:         &serviceID,
		Description:       fmt.Sprintf("%s %s-%s %s", bound.Service.Name, prev, cur, bound.Service.UnitName),
		Quantity:          money.RoundQuantity(consumption),
		UnitPrice:         money.Round(bound.EffectiveUnitPrice),
		Amount:            money.Extend(consumption, bound.EffectiveUnitPrice),
		PreviousIndex:     &prev,
		CurrentIndex:      &cur,
	})
	b.readings = append(b.readings, invoicedomain.MeterReading{
		ID:                b.genID(),
		OrgID:             orgID,
		ContractServiceID: bindingID,
		InvoiceID:         b.invoiceID,
		PeriodStart:       b.billing.Start,
		PeriodEnd:         b.billing.End,
		PreviousIndex:     prev,
		CurrentIndex:      cur,
		CreatedAt:         b.now,
	})
	return nil
}
