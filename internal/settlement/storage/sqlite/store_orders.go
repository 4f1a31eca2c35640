package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/mealhall/internal/settlement/storage"
)

const orderColumns = "id, user_id, meal_id, amount, addon_selections, status, canceled_at, canceled_reason, created_at, updated_at"

func scanOrder(scan scanner) (storage.Order, error) {
	var order storage.Order
	var selections sql.NullString
	var canceledAt sql.NullInt64
	var createdAt, updatedAt int64
	if err := scan(
		&order.ID,
		&order.UserID,
		&order.MealID,
		&order.Amount,
		&selections,
		&order.Status,
		&canceledAt,
		&order.CanceledReason,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.Order{}, err
	}
	decoded, err := decodeQuantityMap(selections)
	if err != nil {
		return storage.Order{}, err
	}
	order.AddonSelections = decoded
	order.CanceledAt = fromNullMillis(canceledAt)
	order.CreatedAt = fromMillis(createdAt)
	order.UpdatedAt = fromMillis(updatedAt)
	return order, nil
}

// GetOrder loads one order row by id.
func (u *unit) GetOrder(ctx context.Context, id int64) (storage.Order, error) {
	row := u.tx.QueryRowContext(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE id = ?
`, id)
	order, err := scanOrder(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Order{}, storage.ErrNotFound
		}
		return storage.Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// FindActiveOrder returns the active order for one (user, meal) pair.
func (u *unit) FindActiveOrder(ctx context.Context, userID int64, mealID int64) (storage.Order, error) {
	row := u.tx.QueryRowContext(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE user_id = ? AND meal_id = ? AND status = ?
`, userID, mealID, storage.OrderStatusActive)
	order, err := scanOrder(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Order{}, storage.ErrNotFound
		}
		return storage.Order{}, fmt.Errorf("find active order: %w", err)
	}
	return order, nil
}

// ListActiveOrdersByMeal returns every active order on one meal.
func (u *unit) ListActiveOrdersByMeal(ctx context.Context, mealID int64) ([]storage.Order, error) {
	rows, err := u.tx.QueryContext(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE meal_id = ? AND status = ?
ORDER BY id ASC
`, mealID, storage.OrderStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	defer rows.Close()

	var orders []storage.Order
	for rows.Next() {
		order, scanErr := scanOrder(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan order row: %w", scanErr)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// InsertOrder persists one order row and returns its generated id.
func (u *unit) InsertOrder(ctx context.Context, order storage.Order) (int64, error) {
	selections, err := encodeQuantityMap(order.AddonSelections)
	if err != nil {
		return 0, err
	}
	result, err := u.tx.ExecContext(ctx, `
INSERT INTO orders (user_id, meal_id, amount, addon_selections, status, canceled_reason, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, '', ?, ?)
`,
		order.UserID,
		order.MealID,
		order.Amount,
		selections,
		order.Status,
		toMillis(order.CreatedAt),
		toMillis(order.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, storage.ErrConflict
		}
		return 0, fmt.Errorf("insert order: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert order id: %w", err)
	}
	return id, nil
}

// CancelOrder marks one order canceled with reason and timestamp.
func (u *unit) CancelOrder(ctx context.Context, id int64, reason string, at time.Time) error {
	result, err := u.tx.ExecContext(ctx, `
UPDATE orders
SET status = ?, canceled_at = ?, canceled_reason = ?, updated_at = ?
WHERE id = ?
`, storage.OrderStatusCanceled, toMillis(at), reason, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel order rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CompleteActiveOrdersByMeal bulk-transitions every active order on one meal
// to completed and returns the affected order ids.
func (u *unit) CompleteActiveOrdersByMeal(ctx context.Context, mealID int64, at time.Time) ([]int64, error) {
	rows, err := u.tx.QueryContext(ctx, `
UPDATE orders
SET status = ?, updated_at = ?
WHERE meal_id = ? AND status = ?
RETURNING id
`, storage.OrderStatusCompleted, toMillis(at), mealID, storage.OrderStatusActive)
	if err != nil {
		return nil, fmt.Errorf("complete active orders: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var orderID int64
		if err := rows.Scan(&orderID); err != nil {
			return nil, fmt.Errorf("scan completed order id: %w", err)
		}
		ids = append(ids, orderID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed order ids: %w", err)
	}
	return ids, nil
}

// CountActiveOrdersByMeal counts active orders on one meal.
func (u *unit) CountActiveOrdersByMeal(ctx context.Context, mealID int64) (int, error) {
	var count int
	if err := u.tx.QueryRowContext(ctx, `
SELECT COUNT(1)
FROM orders
WHERE meal_id = ? AND status = ?
`, mealID, storage.OrderStatusActive).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active orders: %w", err)
	}
	return count, nil
}
