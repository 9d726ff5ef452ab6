package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/leasecore/internal/audit/domain"
	"github.com/smallbiznis/leasecore/internal/auditcontext"
	"github.com/smallbiznis/leasecore/internal/clock"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Repo  auditdomain.Repository
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	repo  auditdomain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	return &Service{db: p.DB, repo: p.Repo, genID: p.GenID, clock: p.Clock}
}

func (s *Service) Record(
	ctx context.Context,
	tx *gorm.DB,
	orgID snowflake.ID,
	action string,
	targetType string,
	targetID snowflake.ID,
	metadata map[string]any,
) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	targetType = strings.TrimSpace(targetType)
	if targetType == "" || targetID == 0 {
		return auditdomain.ErrInvalidTarget
	}
	if tx == nil {
		tx = s.db
	}

	actorType, actorID := auditcontext.ActorFromContext(ctx)
	if actorType == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}

	meta := datatypes.JSONMap{}
	for key, value := range metadata {
		meta[key] = value
	}

	entry := &auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		ActorType:  actorType,
		ActorID:    optional(actorID),
		RequestID:  optional(auditcontext.RequestIDFromContext(ctx)),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID.String(),
		Metadata:   meta,
		CreatedAt:  s.clock.Now().UTC(),
	}
	return s.repo.Insert(ctx, tx, entry)
}

func (s *Service) List(ctx context.Context, filter auditdomain.ListFilter) ([]*auditdomain.AuditLog, error) {
	return s.repo.List(ctx, s.db, filter)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
