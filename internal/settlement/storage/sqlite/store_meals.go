package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/mealhall/internal/settlement/storage"
)

const mealColumns = "id, date, slot, description, base_price, addon_config, max_orders, current_orders, status, canceled_at, canceled_by, canceled_reason, created_at, updated_at"

func scanMeal(scan scanner) (storage.Meal, error) {
	var meal storage.Meal
	var addonConfig sql.NullString
	var canceledAt, canceledBy sql.NullInt64
	var createdAt, updatedAt int64
	if err := scan(
		&meal.ID,
		&meal.Date,
		&meal.Slot,
		&meal.Description,
		&meal.BasePrice,
		&addonConfig,
		&meal.MaxOrders,
		&meal.CurrentOrders,
		&meal.Status,
		&canceledAt,
		&canceledBy,
		&meal.CanceledReason,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.Meal{}, err
	}
	config, err := decodeQuantityMap(addonConfig)
	if err != nil {
		return storage.Meal{}, err
	}
	meal.AddonConfig = config
	meal.CanceledAt = fromNullMillis(canceledAt)
	meal.CanceledBy = fromNullID(canceledBy)
	meal.CreatedAt = fromMillis(createdAt)
	meal.UpdatedAt = fromMillis(updatedAt)
	return meal, nil
}

// GetMeal loads one meal row by id.
func (u *unit) GetMeal(ctx context.Context, id int64) (storage.Meal, error) {
	row := u.tx.QueryRowContext(ctx, `
SELECT `+mealColumns+`
FROM meals
WHERE id = ?
`, id)
	meal, err := scanMeal(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Meal{}, storage.ErrNotFound
		}
		return storage.Meal{}, fmt.Errorf("get meal: %w", err)
	}
	return meal, nil
}

// FindMealBySlot returns the non-canceled meal occupying a date+slot pair.
func (u *unit) FindMealBySlot(ctx context.Context, date string, slot string) (storage.Meal, error) {
	row := u.tx.QueryRowContext(ctx, `
SELECT `+mealColumns+`
FROM meals
WHERE date = ? AND slot = ? AND status != ?
`, date, slot, storage.MealStatusCanceled)
	meal, err := scanMeal(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Meal{}, storage.ErrNotFound
		}
		return storage.Meal{}, fmt.Errorf("find meal by slot: %w", err)
	}
	return meal, nil
}

// InsertMeal persists one meal row and returns its generated id.
func (u *unit) InsertMeal(ctx context.Context, meal storage.Meal) (int64, error) {
	addonConfig, err := encodeQuantityMap(meal.AddonConfig)
	if err != nil {
		return 0, err
	}
	result, err := u.tx.ExecContext(ctx, `
INSERT INTO meals (date, slot, description, base_price, addon_config, max_orders, current_orders, status, canceled_reason, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)
`,
		meal.Date,
		meal.Slot,
		meal.Description,
		meal.BasePrice,
		addonConfig,
		meal.MaxOrders,
		meal.CurrentOrders,
		meal.Status,
		toMillis(meal.CreatedAt),
		toMillis(meal.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert meal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert meal id: %w", err)
	}
	return id, nil
}

// UpdateMealDetails rewrites the editable meal fields: description, base
// price, addon config, and capacity. Status and counters are untouched.
func (u *unit) UpdateMealDetails(ctx context.Context, meal storage.Meal) error {
	addonConfig, err := encodeQuantityMap(meal.AddonConfig)
	if err != nil {
		return err
	}
	result, err := u.tx.ExecContext(ctx, `
UPDATE meals
SET description = ?, base_price = ?, addon_config = ?, max_orders = ?, updated_at = ?
WHERE id = ?
`,
		meal.Description,
		meal.BasePrice,
		addonConfig,
		meal.MaxOrders,
		toMillis(meal.UpdatedAt),
		meal.ID,
	)
	if err != nil {
		return fmt.Errorf("update meal details: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update meal details rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateMealStatus moves a meal between lifecycle states.
func (u *unit) UpdateMealStatus(ctx context.Context, id int64, status storage.MealStatus, at time.Time) error {
	result, err := u.tx.ExecContext(ctx, `
UPDATE meals
SET status = ?, updated_at = ?
WHERE id = ?
`, status, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("update meal status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update meal status rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CancelMeal marks a meal canceled with actor, reason, and timestamp.
func (u *unit) CancelMeal(ctx context.Context, id int64, canceledBy int64, reason string, at time.Time) error {
	result, err := u.tx.ExecContext(ctx, `
UPDATE meals
SET status = ?, canceled_at = ?, canceled_by = ?, canceled_reason = ?, updated_at = ?
WHERE id = ?
`, storage.MealStatusCanceled, toMillis(at), canceledBy, reason, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("cancel meal: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel meal rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AdjustMealOrderCount moves the live order counter by delta.
func (u *unit) AdjustMealOrderCount(ctx context.Context, id int64, delta int, at time.Time) error {
	result, err := u.tx.ExecContext(ctx, `
UPDATE meals
SET current_orders = current_orders + ?, updated_at = ?
WHERE id = ?
`, delta, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("adjust meal order count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust meal order count rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetMealOrderCount overwrites the live order counter.
func (u *unit) SetMealOrderCount(ctx context.Context, id int64, count int, at time.Time) error {
	result, err := u.tx.ExecContext(ctx, `
UPDATE meals
SET current_orders = ?, updated_at = ?
WHERE id = ?
`, count, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("set meal order count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set meal order count rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
