// Package domain holds the room record the lease core addresses by id.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leasecore/internal/errs"
	"gorm.io/gorm"
)

type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "AVAILABLE"
	RoomStatusOccupied    RoomStatus = "OCCUPIED"
	RoomStatusMaintenance RoomStatus = "MAINTENANCE"
)

// Room is a rentable unit. Only its occupancy status is managed here.
type Room struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_rooms_org_code,priority:1"`
	Code      string       `gorm:"type:text;not null;uniqueIndex:ux_rooms_org_code,priority:2"`
	Status    RoomStatus   `gorm:"type:text;not null;default:'AVAILABLE'"`
	CreatedAt time.Time    `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (Room) TableName() string { return "rooms" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, room *Room) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Room, error)
	// LockByID loads the room with a row lock held until the transaction ends.
	LockByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Room, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, status RoomStatus, now time.Time) error
}

var ErrRoomNotFound = errs.NotFound("room_not_found")
