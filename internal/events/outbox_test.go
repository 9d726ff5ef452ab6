package events_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/leasecore/internal/events"
	"github.com/smallbiznis/leasecore/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeduplicatesPerOrg(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	outbox := events.NewOutbox(db, node)
	ctx := context.Background()
	orgID := node.Generate()

	event := events.Event{
		OrgID:     orgID,
		Type:      events.EventInvoiceGenerated,
		Payload:   events.InvoicePayload{InvoiceID: "1", ContractID: "2", Total: "1200000"}.ToMap(),
		DedupeKey: "invoice_generated:1",
	}
	require.NoError(t, outbox.Publish(ctx, event))
	require.NoError(t, outbox.Publish(ctx, event))

	var rows []events.BillingEvent
	require.NoError(t, db.Where("org_id = ?", orgID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, events.EventInvoiceGenerated, rows[0].EventType)
	assert.Equal(t, "1200000", rows[0].Payload["total"])
	assert.False(t, rows[0].Published)
}

func TestPublishRejectsIncompleteEvents(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	outbox := events.NewOutbox(db, node)
	ctx := context.Background()

	assert.Error(t, outbox.Publish(ctx, events.Event{Type: events.EventPaymentRecorded}))
	assert.Error(t, outbox.Publish(ctx, events.Event{OrgID: node.Generate()}))
	assert.Error(t, outbox.PublishTx(ctx, nil, events.Event{OrgID: node.Generate(), Type: "x"}))
}
