package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService defines the ledger entry writer.
type LedgerService interface {
	// Post writes a balanced entry inside tx. Zero-amount postings are dropped
	// and an entry left with nothing to post is skipped.
	Post(
		ctx context.Context,
		tx *gorm.DB,
		orgID snowflake.ID,
		sourceType string,
		sourceID snowflake.ID,
		occurredAt time.Time,
		postings []Posting,
	) error
	// Balance returns debits minus credits for an account code.
	Balance(ctx context.Context, orgID snowflake.ID, accountCode string) (decimal.Decimal, error)
}

// Service is the package alias for LedgerService.
type Service = LedgerService

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidSourceType    = errors.New("invalid_source_type")
	ErrInvalidSourceID      = errors.New("invalid_source_id")
	ErrInvalidOccurredAt    = errors.New("invalid_occurred_at")
	ErrInvalidEntryLines    = errors.New("invalid_entry_lines")
	ErrInvalidLineAmount    = errors.New("invalid_line_amount")
	ErrInvalidLineDirection = errors.New("invalid_line_direction")
	ErrInvalidAccount       = errors.New("invalid_account")
	ErrUnbalancedEntry      = errors.New("unbalanced_entry")
)
