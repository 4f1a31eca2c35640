package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/mealhall/internal/settlement/storage"
)

// transactionNoPrefix is the marker every transaction number starts with.
// The full format is TXN + YYYYMMDD + a 6-digit per-day sequence; the format
// is an external contract and must not change.
const transactionNoPrefix = "TXN"

// nextTransactionNo derives the next per-day transaction number from the
// ledger rows already written for the day. The scan runs inside the unit of
// work, which serializes writers, so two units cannot mint the same number.
func nextTransactionNo(ctx context.Context, unit storage.Unit, now time.Time) (string, error) {
	prefix := transactionNoPrefix + now.Format("20060102")
	max, err := unit.MaxLedgerSequence(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%06d", prefix, max+1), nil
}

// ledgerMutation reports the outcome of one balance movement.
type ledgerMutation struct {
	TransactionNo string
	BalanceBefore int64
	BalanceAfter  int64
}

// debit moves amount out of a user's balance and appends the paired ledger
// row. It is one of the only two paths allowed to change a balance; it never
// enforces a balance floor and never commits on its own.
func (s *Service) debit(ctx context.Context, unit storage.Unit, userID int64, amount int64, entryType storage.LedgerType, orderID *int64, operatorID *int64, description string, now time.Time) (ledgerMutation, error) {
	return s.mutateBalance(ctx, unit, userID, amount, entryType, storage.DirectionOut, orderID, operatorID, description, now)
}

// credit moves amount into a user's balance and appends the paired ledger row.
func (s *Service) credit(ctx context.Context, unit storage.Unit, userID int64, amount int64, entryType storage.LedgerType, orderID *int64, operatorID *int64, description string, now time.Time) (ledgerMutation, error) {
	return s.mutateBalance(ctx, unit, userID, amount, entryType, storage.DirectionIn, orderID, operatorID, description, now)
}

func (s *Service) mutateBalance(ctx context.Context, unit storage.Unit, userID int64, amount int64, entryType storage.LedgerType, direction storage.LedgerDirection, orderID *int64, operatorID *int64, description string, now time.Time) (ledgerMutation, error) {
	if amount < 0 {
		return ledgerMutation{}, fmt.Errorf("ledger amount must be non-negative, got %d", amount)
	}

	user, err := unit.GetUser(ctx, userID)
	if err != nil {
		return ledgerMutation{}, err
	}

	before := user.Balance
	after := before + amount
	if direction == storage.DirectionOut {
		after = before - amount
	}

	if err := unit.UpdateUserBalance(ctx, userID, after, now); err != nil {
		return ledgerMutation{}, err
	}

	transactionNo, err := nextTransactionNo(ctx, unit, now)
	if err != nil {
		return ledgerMutation{}, err
	}

	if _, err := unit.AppendLedgerEntry(ctx, storage.LedgerEntry{
		TransactionNo: transactionNo,
		UserID:        userID,
		Type:          entryType,
		Direction:     direction,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		OrderID:       orderID,
		OperatorID:    operatorID,
		Description:   description,
		CreatedAt:     now,
	}); err != nil {
		return ledgerMutation{}, err
	}

	return ledgerMutation{
		TransactionNo: transactionNo,
		BalanceBefore: before,
		BalanceAfter:  after,
	}, nil
}
