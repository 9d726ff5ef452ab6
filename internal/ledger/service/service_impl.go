package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/leasecore/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

func (s *Service) Post(
	ctx context.Context,
	tx *gorm.DB,
	orgID snowflake.ID,
	sourceType string,
	sourceID snowflake.ID,
	occurredAt time.Time,
	postings []ledgerdomain.Posting,
) error {
	if orgID == 0 {
		return ledgerdomain.ErrInvalidOrganization
	}
	sourceType = strings.TrimSpace(sourceType)
	if sourceType == "" {
		return ledgerdomain.ErrInvalidSourceType
	}
	if sourceID == 0 {
		return ledgerdomain.ErrInvalidSourceID
	}
	if occurredAt.IsZero() {
		return ledgerdomain.ErrInvalidOccurredAt
	}
	if tx == nil {
		tx = s.db
	}

	lines := make([]ledgerdomain.Posting, 0, len(postings))
	for _, p := range postings {
		if p.Amount.IsZero() {
			continue
		}
		lines = append(lines, p)
	}
	if len(lines) == 0 {
		return nil
	}
	if err := ledgerdomain.ValidateBalanced(lines); err != nil {
		return err
	}

	now := time.Now().UTC()
	entry := ledgerdomain.LedgerEntry{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		SourceType: sourceType,
		SourceID:   sourceID,
		OccurredAt: occurredAt.UTC(),
		CreatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return err
	}

	rows := make([]ledgerdomain.LedgerEntryLine, 0, len(lines))
	for _, p := range lines {
		accountID, err := s.ensureLedgerAccount(ctx, tx, orgID, p.AccountCode, now)
		if err != nil {
			return err
		}
		rows = append(rows, ledgerdomain.LedgerEntryLine{
			ID:            s.genID.Generate(),
			LedgerEntryID: entry.ID,
			AccountID:     accountID,
			Direction:     p.Direction,
			Amount:        p.Amount,
			CreatedAt:     now,
		})
	}
	if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
		return err
	}

	s.log.Debug("ledger entry posted",
		zap.String("org_id", orgID.String()),
		zap.String("source_type", sourceType),
		zap.String("source_id", sourceID.String()),
		zap.Int("lines", len(rows)),
	)
	return nil
}

func (s *Service) Balance(ctx context.Context, orgID snowflake.ID, accountCode string) (decimal.Decimal, error) {
	var lines []ledgerdomain.LedgerEntryLine
	err := s.db.WithContext(ctx).
		Table("ledger_entry_lines AS l").
		Select("l.*").
		Joins("JOIN ledger_accounts a ON a.id = l.account_id").
		Where("a.org_id = ? AND a.code = ?", orgID, accountCode).
		Find(&lines).Error
	if err != nil {
		return decimal.Zero, err
	}

	balance := decimal.Zero
	for _, line := range lines {
		if line.Direction == ledgerdomain.LedgerEntryDirectionDebit {
			balance = balance.Add(line.Amount)
		} else {
			balance = balance.Sub(line.Amount)
		}
	}
	return balance, nil
}

func (s *Service) ensureLedgerAccount(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string, now time.Time) (snowflake.ID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, ledgerdomain.ErrInvalidAccount
	}
	name, ok := ledgerdomain.AccountNames[code]
	if !ok {
		return 0, ledgerdomain.ErrInvalidAccount
	}

	var accountID snowflake.ID
	if err := db.WithContext(ctx).Raw(
		`SELECT id
		 FROM ledger_accounts
		 WHERE org_id = ? AND code = ?`,
		orgID,
		code,
	).Scan(&accountID).Error; err != nil {
		return 0, err
	}
	if accountID != 0 {
		return accountID, nil
	}

	if err := db.WithContext(ctx).Exec(
		`INSERT INTO ledger_accounts (id, org_id, code, name, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (org_id, code) DO NOTHING`,
		s.genID.Generate(),
		orgID,
		code,
		name,
		now,
	).Error; err != nil {
		return 0, err
	}

	if err := db.WithContext(ctx).Raw(
		`SELECT id
		 FROM ledger_accounts
		 WHERE org_id = ? AND code = ?`,
		orgID,
		code,
	).Scan(&accountID).Error; err != nil {
		return 0, err
	}
	if accountID == 0 {
		return 0, errors.New("ledger_account_not_found")
	}
	return accountID, nil
}
