package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/mealhall/internal/settlement/storage"
)

const addonColumns = "id, name, price, display_order, is_default, status, created_at, updated_at"

func scanAddon(scan scanner) (storage.Addon, error) {
	var addon storage.Addon
	var isDefault int
	var createdAt, updatedAt int64
	if err := scan(
		&addon.ID,
		&addon.Name,
		&addon.Price,
		&addon.DisplayOrder,
		&isDefault,
		&addon.Status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.Addon{}, err
	}
	addon.IsDefault = isDefault != 0
	addon.CreatedAt = fromMillis(createdAt)
	addon.UpdatedAt = fromMillis(updatedAt)
	return addon, nil
}

// GetAddon loads one addon row by id.
func (u *unit) GetAddon(ctx context.Context, id int64) (storage.Addon, error) {
	row := u.tx.QueryRowContext(ctx, `
SELECT `+addonColumns+`
FROM addons
WHERE id = ?
`, id)
	addon, err := scanAddon(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Addon{}, storage.ErrNotFound
		}
		return storage.Addon{}, fmt.Errorf("get addon: %w", err)
	}
	return addon, nil
}

// FindActiveAddonByName looks up an active addon by exact name.
func (u *unit) FindActiveAddonByName(ctx context.Context, name string) (storage.Addon, error) {
	row := u.tx.QueryRowContext(ctx, `
SELECT `+addonColumns+`
FROM addons
WHERE name = ? AND status = ?
`, name, storage.AddonStatusActive)
	addon, err := scanAddon(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Addon{}, storage.ErrNotFound
		}
		return storage.Addon{}, fmt.Errorf("find addon by name: %w", err)
	}
	return addon, nil
}

// InsertAddon persists one addon row and returns its generated id.
func (u *unit) InsertAddon(ctx context.Context, addon storage.Addon) (int64, error) {
	isDefault := 0
	if addon.IsDefault {
		isDefault = 1
	}
	result, err := u.tx.ExecContext(ctx, `
INSERT INTO addons (name, price, display_order, is_default, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		addon.Name,
		addon.Price,
		addon.DisplayOrder,
		isDefault,
		addon.Status,
		toMillis(addon.CreatedAt),
		toMillis(addon.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert addon: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert addon id: %w", err)
	}
	return id, nil
}

// UpdateAddonStatus switches an addon between active and inactive.
func (u *unit) UpdateAddonStatus(ctx context.Context, id int64, status storage.AddonStatus, at time.Time) error {
	result, err := u.tx.ExecContext(ctx, `
UPDATE addons
SET status = ?, updated_at = ?
WHERE id = ?
`, status, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("update addon status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update addon status rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListMealsReferencingAddon returns non-terminal meals whose addon config
// still references the addon. JSON object keys are the addon ids, so the
// lookup matches on the serialized key.
func (u *unit) ListMealsReferencingAddon(ctx context.Context, addonID int64) ([]storage.Meal, error) {
	rows, err := u.tx.QueryContext(ctx, `
SELECT `+mealColumns+`
FROM meals
WHERE status IN (?, ?)
  AND addon_config IS NOT NULL
  AND json_extract(addon_config, '$."' || CAST(? AS TEXT) || '"') IS NOT NULL
ORDER BY date ASC, slot ASC
`, storage.MealStatusPublished, storage.MealStatusLocked, addonID)
	if err != nil {
		return nil, fmt.Errorf("list meals referencing addon: %w", err)
	}
	defer rows.Close()

	var meals []storage.Meal
	for rows.Next() {
		meal, scanErr := scanMeal(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan meal row: %w", scanErr)
		}
		meals = append(meals, meal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meal rows: %w", err)
	}
	return meals, nil
}
