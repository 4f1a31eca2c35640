package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/mealhall/internal/settlement/storage"
)

const ledgerColumns = "id, transaction_no, user_id, type, direction, amount, balance_before, balance_after, order_id, operator_id, description, created_at"

func scanLedgerEntry(scan scanner) (storage.LedgerEntry, error) {
	var entry storage.LedgerEntry
	var orderID, operatorID sql.NullInt64
	var createdAt int64
	if err := scan(
		&entry.ID,
		&entry.TransactionNo,
		&entry.UserID,
		&entry.Type,
		&entry.Direction,
		&entry.Amount,
		&entry.BalanceBefore,
		&entry.BalanceAfter,
		&orderID,
		&operatorID,
		&entry.Description,
		&createdAt,
	); err != nil {
		return storage.LedgerEntry{}, err
	}
	entry.OrderID = fromNullID(orderID)
	entry.OperatorID = fromNullID(operatorID)
	entry.CreatedAt = fromMillis(createdAt)
	return entry, nil
}

// MaxLedgerSequence returns the highest daily sequence among transaction
// numbers carrying the given prefix, or zero when none exist. The sequence is
// the 6-digit suffix after the TXN marker and date.
func (u *unit) MaxLedgerSequence(ctx context.Context, transactionPrefix string) (int64, error) {
	var max sql.NullInt64
	if err := u.tx.QueryRowContext(ctx, `
SELECT MAX(CAST(substr(transaction_no, 12, 6) AS INTEGER))
FROM ledger
WHERE transaction_no LIKE ? || '%'
`, transactionPrefix).Scan(&max); err != nil {
		return 0, fmt.Errorf("max ledger sequence: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}

// AppendLedgerEntry appends one immutable ledger row and returns its id.
// Ledger rows are never updated or deleted.
func (u *unit) AppendLedgerEntry(ctx context.Context, entry storage.LedgerEntry) (int64, error) {
	result, err := u.tx.ExecContext(ctx, `
INSERT INTO ledger (transaction_no, user_id, type, direction, amount, balance_before, balance_after, order_id, operator_id, description, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		entry.TransactionNo,
		entry.UserID,
		entry.Type,
		entry.Direction,
		entry.Amount,
		entry.BalanceBefore,
		entry.BalanceAfter,
		toNullID(entry.OrderID),
		toNullID(entry.OperatorID),
		entry.Description,
		toMillis(entry.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, storage.ErrConflict
		}
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append ledger entry id: %w", err)
	}
	return id, nil
}

// LatestLedgerEntry returns the most recent ledger row for one user.
func (u *unit) LatestLedgerEntry(ctx context.Context, userID int64) (storage.LedgerEntry, error) {
	row := u.tx.QueryRowContext(ctx, `
SELECT `+ledgerColumns+`
FROM ledger
WHERE user_id = ?
ORDER BY id DESC
LIMIT 1
`, userID)
	entry, err := scanLedgerEntry(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.LedgerEntry{}, storage.ErrNotFound
		}
		return storage.LedgerEntry{}, fmt.Errorf("latest ledger entry: %w", err)
	}
	return entry, nil
}

// ListLedgerEntries returns one user's full audit trail in append order.
func (u *unit) ListLedgerEntries(ctx context.Context, userID int64) ([]storage.LedgerEntry, error) {
	rows, err := u.tx.QueryContext(ctx, `
SELECT `+ledgerColumns+`
FROM ledger
WHERE user_id = ?
ORDER BY id ASC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []storage.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list ledger entries: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}
