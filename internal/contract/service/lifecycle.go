package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/leasecore/internal/auditcontext"
	contractdomain "github.com/smallbiznis/leasecore/internal/contract/domain"
	depositdomain "github.com/smallbiznis/leasecore/internal/deposit/domain"
	depositservice "github.com/smallbiznis/leasecore/internal/deposit/service"
	"github.com/smallbiznis/leasecore/internal/events"
	ledgerdomain "github.com/smallbiznis/leasecore/internal/ledger/domain"
	"github.com/smallbiznis/leasecore/internal/observability/tracing"
	roomdomain "github.com/smallbiznis/leasecore/internal/room/domain"
	"github.com/smallbiznis/leasecore/pkg/period"
	"github.com/smallbiznis/leasecore/pkg/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type unpaidInvoice struct {
	ID          snowflake.ID
	TotalAmount decimal.Decimal
}

// Delete removes a contract that never received money, together with its
// unpaid invoices, meter readings, service bindings and a held deposit.
func (s *Service) Delete(ctx context.Context, orgID, id snowflake.ID) (err error) {
	ctx, span := tracing.Start(ctx, tracerName, "contract.delete", tracing.OrgID(orgID), tracing.ContractID(id))
	defer func() { tracing.End(span, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contract, err := s.repo.LockByID(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if contract == nil {
			return contractdomain.ErrContractNotFound
		}
		if _, err := s.lockRooms(ctx, tx, orgID, contract.RoomID); err != nil {
			return err
		}

		var payments int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1)
			 FROM payments p
			 JOIN invoices i ON i.id = p.invoice_id
			 WHERE i.org_id = ? AND i.contract_id = ?`,
			orgID,
			id,
		).Scan(&payments).Error; err != nil {
			return err
		}
		if payments > 0 {
			return contractdomain.ErrContractHasPayments
		}

		deposits := s.depositStore.WithTx(tx)
		deposit, err := deposits.FindOne(ctx, &depositdomain.Deposit{OrgID: orgID, ContractID: id}, repository.ForUpdate())
		if err != nil {
			return err
		}
		if deposit != nil && deposit.Status != depositdomain.DepositStatusHeld {
			return contractdomain.ErrContractDepositSettled
		}

		now := s.clock.Now().UTC()
		var invoices []unpaidInvoice
		if err := tx.WithContext(ctx).
			Table("invoices").
			Select("id, total_amount").
			Where("org_id = ? AND contract_id = ?", orgID, id).
			Find(&invoices).Error; err != nil {
			return err
		}
		for _, inv := range invoices {
			if err := s.ledgerSvc.Post(ctx, tx, orgID, ledgerdomain.SourceTypeInvoiceVoid, inv.ID, now, []ledgerdomain.Posting{
				ledgerdomain.Debit(ledgerdomain.AccountCodeRevenue, inv.TotalAmount),
				ledgerdomain.Credit(ledgerdomain.AccountCodeAccountsReceivable, inv.TotalAmount),
			}); err != nil {
				return err
			}
		}

		statements := []string{
			`DELETE FROM invoice_items WHERE invoice_id IN (SELECT id FROM invoices WHERE org_id = ? AND contract_id = ?)`,
			`DELETE FROM meter_readings WHERE contract_service_id IN (SELECT id FROM contract_services WHERE org_id = ? AND contract_id = ?)`,
			`DELETE FROM invoices WHERE org_id = ? AND contract_id = ?`,
			`DELETE FROM contract_services WHERE org_id = ? AND contract_id = ?`,
		}
		for _, stmt := range statements {
			if err := tx.WithContext(ctx).Exec(stmt, orgID, id).Error; err != nil {
				return err
			}
		}

		if deposit != nil {
			if err := s.ledgerSvc.Post(ctx, tx, orgID, ledgerdomain.SourceTypeDepositHold, deposit.ID, now, []ledgerdomain.Posting{
				ledgerdomain.Debit(ledgerdomain.AccountCodeDepositLiability, deposit.Amount),
				ledgerdomain.Credit(ledgerdomain.AccountCodeCashClearing, deposit.Amount),
			}); err != nil {
				return err
			}
			if err := deposits.Delete(ctx, &depositdomain.Deposit{ID: deposit.ID}); err != nil {
				return err
			}
		}

		if err := s.repo.Delete(ctx, tx, orgID, id); err != nil {
			return err
		}
		if contract.Status == contractdomain.ContractStatusActive {
			if err := s.releaseRoom(ctx, tx, orgID, contract.RoomID, id, now); err != nil {
				return err
			}
		}
		meta := auditMetadata(contract)
		meta["voided_invoices"] = len(invoices)
		return s.auditSvc.Record(ctx, tx, orgID, "contract.deleted", "contract", id, meta)
	})
	if err != nil {
		return err
	}

	s.log.Info("contract deleted", zap.String("org_id", orgID.String()), zap.String("contract_id", id.String()))
	return nil
}

func (s *Service) ExpireEnded(ctx context.Context, orgID snowflake.ID, asOf time.Time) (expired []snowflake.ID, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "contract.expire_ended", tracing.OrgID(orgID), tracing.AsOf(asOf))
	defer func() { tracing.End(span, err) }()

	ctx = auditcontext.WithSystemActor(ctx, "contract_expiry")
	asOf = period.Truncate(asOf)
	candidates, err := s.repo.ListEndedActive(ctx, s.db, orgID, asOf)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		done, err := s.expireOne(ctx, orgID, candidate.ID, asOf)
		if err != nil {
			s.log.Warn("contract expiry failed",
				zap.String("contract_id", candidate.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if done {
			expired = append(expired, candidate.ID)
		}
	}
	return expired, nil
}

func (s *Service) expireOne(ctx context.Context, orgID, id snowflake.ID, asOf time.Time) (bool, error) {
	expired := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contract, err := s.repo.LockByID(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if contract == nil || contract.Status != contractdomain.ContractStatusActive || contract.EndDate == nil || !contract.EndDate.Before(asOf) {
			return nil
		}

		// The final period must be invoiced before the contract leaves ACTIVE.
		var covering int64
		if err := tx.WithContext(ctx).
			Table("invoices").
			Where("org_id = ? AND contract_id = ? AND period_end >= ?", orgID, id, *contract.EndDate).
			Count(&covering).Error; err != nil {
			return err
		}
		if covering == 0 {
			return nil
		}
		if _, err := s.lockRooms(ctx, tx, orgID, contract.RoomID); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		contract.Status = contractdomain.ContractStatusExpired
		contract.UpdatedAt = now
		if err := s.repo.Save(ctx, tx, contract); err != nil {
			return err
		}
		if err := s.releaseRoom(ctx, tx, orgID, contract.RoomID, contract.ID, now); err != nil {
			return err
		}
		if err := s.publish(ctx, tx, events.EventContractEnded, contract); err != nil {
			return err
		}
		expired = true
		return s.auditSvc.Record(ctx, tx, orgID, "contract.expired", "contract", contract.ID, auditMetadata(contract))
	})
	return expired, err
}

// lockRooms locks the given rooms in id order. Locking the room row serializes
// every activation on that room, which makes the overlap check race free.
func (s *Service) lockRooms(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, ids ...snowflake.ID) (map[snowflake.ID]*roomdomain.Room, error) {
	unique := lo.Uniq(ids)
	slices.Sort(unique)

	rooms := make(map[snowflake.ID]*roomdomain.Room, len(unique))
	for _, id := range unique {
		room, err := s.roomRepo.LockByID(ctx, tx, orgID, id)
		if err != nil {
			return nil, err
		}
		if room == nil {
			return nil, fmt.Errorf("%w: %s", roomdomain.ErrRoomNotFound, id)
		}
		rooms[id] = room
	}
	return rooms, nil
}

// occupy checks that no other ACTIVE contract on the room intersects c and
// marks the room occupied. The room row must already be locked.
func (s *Service) occupy(ctx context.Context, tx *gorm.DB, c *contractdomain.Contract, room *roomdomain.Room, now time.Time) error {
	if room.Status == roomdomain.RoomStatusMaintenance {
		return contractdomain.ErrRoomUnavailable
	}

	active, err := s.repo.ListActiveByRoom(ctx, tx, c.OrgID, c.RoomID)
	if err != nil {
		return err
	}
	span := c.Span(s.sentinelYears)
	for _, other := range active {
		if other.ID == c.ID {
			continue
		}
		if period.Intersects(span, other.Span(s.sentinelYears)) {
			return fmt.Errorf("%w: %s", contractdomain.ErrRoomOverlap, other.Code)
		}
	}

	if room.Status != roomdomain.RoomStatusOccupied {
		if err := s.roomRepo.UpdateStatus(ctx, tx, c.OrgID, room.ID, roomdomain.RoomStatusOccupied, now); err != nil {
			return err
		}
		room.Status = roomdomain.RoomStatusOccupied
	}
	return nil
}

// releaseRoom marks an occupied room available once no ACTIVE contract other
// than excludeID holds it.
func (s *Service) releaseRoom(ctx context.Context, tx *gorm.DB, orgID, roomID, excludeID snowflake.ID, now time.Time) error {
	active, err := s.repo.ListActiveByRoom(ctx, tx, orgID, roomID)
	if err != nil {
		return err
	}
	for _, other := range active {
		if other.ID != excludeID {
			return nil
		}
	}

	room, err := s.roomRepo.FindByID(ctx, tx, orgID, roomID)
	if err != nil {
		return err
	}
	if room == nil || room.Status != roomdomain.RoomStatusOccupied {
		return nil
	}
	return s.roomRepo.UpdateStatus(ctx, tx, orgID, roomID, roomdomain.RoomStatusAvailable, now)
}

// syncDeposit keeps the held deposit in step with the contract terms and posts
// the change in held funds.
func (s *Service) syncDeposit(ctx context.Context, tx *gorm.DB, c *contractdomain.Contract, now time.Time) error {
	store := s.depositStore.WithTx(tx)
	deposit, err := store.FindOne(ctx, &depositdomain.Deposit{OrgID: c.OrgID, ContractID: c.ID}, repository.ForUpdate())
	if err != nil {
		return err
	}

	if deposit == nil {
		if !c.DepositAmount.IsPositive() {
			return nil
		}
		deposit = &depositdomain.Deposit{
			ID:         s.genID.Generate(),
			OrgID:      c.OrgID,
			ContractID: c.ID,
			Amount:     c.DepositAmount,
			Status:     depositdomain.DepositStatusHeld,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := store.Create(ctx, deposit); err != nil {
			return err
		}
		return s.postHold(ctx, tx, deposit.OrgID, deposit.ID, c.StartDate, c.DepositAmount)
	}

	if deposit.Amount.Equal(c.DepositAmount) {
		return nil
	}
	if deposit.Status != depositdomain.DepositStatusHeld {
		return contractdomain.ErrContractDepositSettled
	}

	delta := c.DepositAmount.Sub(deposit.Amount)
	if err := s.postHold(ctx, tx, deposit.OrgID, deposit.ID, now, delta); err != nil {
		return err
	}
	if !c.DepositAmount.IsPositive() {
		return store.Delete(ctx, &depositdomain.Deposit{ID: deposit.ID})
	}
	deposit.Amount = c.DepositAmount
	deposit.UpdatedAt = now
	return store.Save(ctx, deposit)
}

func (s *Service) postHold(ctx context.Context, tx *gorm.DB, orgID, depositID snowflake.ID, at time.Time, delta decimal.Decimal) error {
	postings := []ledgerdomain.Posting{
		ledgerdomain.Debit(ledgerdomain.AccountCodeCashClearing, delta),
		ledgerdomain.Credit(ledgerdomain.AccountCodeDepositLiability, delta),
	}
	if delta.IsNegative() {
		postings = []ledgerdomain.Posting{
			ledgerdomain.Debit(ledgerdomain.AccountCodeDepositLiability, delta.Neg()),
			ledgerdomain.Credit(ledgerdomain.AccountCodeCashClearing, delta.Neg()),
		}
	}
	return s.ledgerSvc.Post(ctx, tx, orgID, ledgerdomain.SourceTypeDepositHold, depositID, at, postings)
}

func (s *Service) forfeitDeposit(ctx context.Context, tx *gorm.DB, c *contractdomain.Contract, date time.Time, reason string, now time.Time) error {
	store := s.depositStore.WithTx(tx)
	deposit, err := store.FindOne(ctx, &depositdomain.Deposit{OrgID: c.OrgID, ContractID: c.ID}, repository.ForUpdate())
	if err != nil {
		return err
	}
	if deposit == nil || deposit.Status != depositdomain.DepositStatusHeld {
		return nil
	}
	if err := deposit.Forfeit(date, reason); err != nil {
		return err
	}
	deposit.UpdatedAt = now
	if err := store.Save(ctx, deposit); err != nil {
		return err
	}
	return depositservice.ReleasePosting(ctx, tx, s.ledgerSvc, s.outbox, s.auditSvc, deposit)
}
