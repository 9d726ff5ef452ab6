package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	roomdomain "github.com/smallbiznis/leasecore/internal/room/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() roomdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, room *roomdomain.Room) error {
	return db.WithContext(ctx).Create(room).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*roomdomain.Room, error) {
	return r.find(ctx, db, orgID, id, false)
}

func (r *repo) LockByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*roomdomain.Room, error) {
	return r.find(ctx, db, orgID, id, true)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, lock bool) (*roomdomain.Room, error) {
	q := db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var room roomdomain.Room
	err := q.Where("org_id = ? AND id = ?", orgID, id).Take(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, status roomdomain.RoomStatus, now time.Time) error {
	return db.WithContext(ctx).
		Model(&roomdomain.Room{}).
		Where("org_id = ? AND id = ?", orgID, id).
		Updates(map[string]any{"status": status, "updated_at": now}).Error
}
