package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/mealhall/internal/settlement/storage"
)

func scanUser(scan scanner) (storage.User, error) {
	var user storage.User
	var isAdmin int
	var createdAt, updatedAt int64
	if err := scan(
		&user.ID,
		&user.DisplayName,
		&user.Balance,
		&isAdmin,
		&user.Status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.User{}, err
	}
	user.IsAdmin = isAdmin != 0
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return user, nil
}

const userColumns = "id, display_name, balance, is_admin, status, created_at, updated_at"

// GetUser loads one user row by id.
func (u *unit) GetUser(ctx context.Context, id int64) (storage.User, error) {
	row := u.tx.QueryRowContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = ?
`, id)
	user, err := scanUser(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// InsertUser persists one user row and returns its generated id.
func (u *unit) InsertUser(ctx context.Context, user storage.User) (int64, error) {
	isAdmin := 0
	if user.IsAdmin {
		isAdmin = 1
	}
	result, err := u.tx.ExecContext(ctx, `
INSERT INTO users (display_name, balance, is_admin, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		user.DisplayName,
		user.Balance,
		isAdmin,
		user.Status,
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert user id: %w", err)
	}
	return id, nil
}

// UpdateUserBalance writes the new balance. Callers must pair every balance
// write with a ledger append inside the same unit.
func (u *unit) UpdateUserBalance(ctx context.Context, id int64, balance int64, at time.Time) error {
	return u.updateUserColumn(ctx, id, "balance = ?", balance, at)
}

// UpdateUserStatus switches the account lifecycle state.
func (u *unit) UpdateUserStatus(ctx context.Context, id int64, status storage.UserStatus, at time.Time) error {
	return u.updateUserColumn(ctx, id, "status = ?", status, at)
}

// UpdateUserAdmin grants or revokes the admin flag.
func (u *unit) UpdateUserAdmin(ctx context.Context, id int64, isAdmin bool, at time.Time) error {
	value := 0
	if isAdmin {
		value = 1
	}
	return u.updateUserColumn(ctx, id, "is_admin = ?", value, at)
}

func (u *unit) updateUserColumn(ctx context.Context, id int64, setClause string, value any, at time.Time) error {
	result, err := u.tx.ExecContext(ctx, `
UPDATE users
SET `+setClause+`, updated_at = ?
WHERE id = ?
`, value, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
