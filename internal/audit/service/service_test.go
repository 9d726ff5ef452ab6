package service_test

import (
	"context"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/leasecore/internal/audit/domain"
	"github.com/smallbiznis/leasecore/internal/audit/repository"
	"github.com/smallbiznis/leasecore/internal/audit/service"
	"github.com/smallbiznis/leasecore/internal/auditcontext"
	"github.com/smallbiznis/leasecore/internal/clock"
	"github.com/smallbiznis/leasecore/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCapturesActorFromContext(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	svc := service.NewService(service.Params{
		DB:    db,
		Repo:  repository.Provide(),
		GenID: node,
		Clock: clock.Fixed(time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)),
	})

	orgID := node.Generate()
	targetID := node.Generate()
	ctx := auditcontext.WithRequestID(auditcontext.WithActor(context.Background(), "user", "u-7"), "req-1")

	require.NoError(t, svc.Record(ctx, nil, orgID, "payment.recorded", "invoice", targetID, map[string]any{"amount": "700000"}))
	require.NoError(t, svc.Record(auditcontext.WithSystemActor(context.Background(), "sweep"), nil, orgID, "contract.expired", "contract", targetID, nil))

	logs, err := svc.List(context.Background(), auditdomain.ListFilter{OrgID: orgID, Action: "payment.recorded"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "user", logs[0].ActorType)
	require.NotNil(t, logs[0].ActorID)
	assert.Equal(t, "u-7", *logs[0].ActorID)
	require.NotNil(t, logs[0].RequestID)
	assert.Equal(t, targetID.String(), logs[0].TargetID)
	assert.Equal(t, "700000", logs[0].Metadata["amount"])

	logs, err = svc.List(context.Background(), auditdomain.ListFilter{OrgID: orgID, TargetType: "contract"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "system", logs[0].ActorType)

	assert.ErrorIs(t, svc.Record(ctx, nil, orgID, " ", "invoice", targetID, nil), auditdomain.ErrInvalidAction)
	assert.ErrorIs(t, svc.Record(ctx, nil, orgID, "x", "invoice", 0, nil), auditdomain.ErrInvalidTarget)
}
