package domain

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/mealhall/internal/errors"
	"github.com/louisbranch/mealhall/internal/settlement/storage"
)

// CreateAddonInput describes a new addon item.
type CreateAddonInput struct {
	AdminID      int64
	Name         string
	Price        int64
	DisplayOrder int
	IsDefault    bool
}

// CreateAddonResult reports the created addon.
type CreateAddonResult struct {
	AddonID int64
	Name    string
}

// AdminCreateAddon registers a new active addon. Names are unique among
// active addons; an inactive addon's name can be reused.
func (s *Service) AdminCreateAddon(ctx context.Context, input CreateAddonInput) (CreateAddonResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return CreateAddonResult{}, errors.New(errors.CodeAddonNameEmpty, "addon name must not be empty")
	}
	var result CreateAddonResult
	err := s.store.ExecuteUnit(ctx, "create_addon", func(ctx context.Context, unit storage.Unit) error {
		if _, err := requireAdmin(ctx, unit, input.AdminID); err != nil {
			return err
		}

		if existing, err := unit.FindActiveAddonByName(ctx, name); err == nil {
			return errors.WithMetadata(errors.CodeAddonNameTaken,
				fmt.Sprintf("an active addon named %q already exists", name),
				map[string]string{"addon_id": strconv.FormatInt(existing.ID, 10)})
		} else if !stderrors.Is(err, storage.ErrNotFound) {
			return err
		}

		now := s.nowUTC()
		addonID, err := unit.InsertAddon(ctx, storage.Addon{
			Name:         name,
			Price:        input.Price,
			DisplayOrder: input.DisplayOrder,
			IsDefault:    input.IsDefault,
			Status:       storage.AddonStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return err
		}

		result = CreateAddonResult{AddonID: addonID, Name: name}
		return nil
	})
	return result, err
}

// AdminDeactivateAddon retires an addon. Addons still referenced by a
// published or locked meal cannot be deactivated; existing orders keep
// their frozen amounts either way.
func (s *Service) AdminDeactivateAddon(ctx context.Context, adminID int64, addonID int64) error {
	return s.store.ExecuteUnit(ctx, "deactivate_addon", func(ctx context.Context, unit storage.Unit) error {
		if _, err := requireAdmin(ctx, unit, adminID); err != nil {
			return err
		}

		addon, err := unit.GetAddon(ctx, addonID)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return errors.New(errors.CodeAddonNotFound, fmt.Sprintf("addon %d not found", addonID))
			}
			return err
		}
		if addon.Status != storage.AddonStatusActive {
			return errors.New(errors.CodeAddonInactive, fmt.Sprintf("addon %q is already inactive", addon.Name))
		}

		referencing, err := unit.ListMealsReferencingAddon(ctx, addon.ID)
		if err != nil {
			return err
		}
		if len(referencing) > 0 {
			slots := make([]string, 0, len(referencing))
			for _, meal := range referencing {
				slots = append(slots, fmt.Sprintf("%s %s", meal.Date, meal.Slot))
			}
			return errors.WithMetadata(errors.CodeAddonInUse,
				fmt.Sprintf("addon %q is referenced by %d open meal(s)", addon.Name, len(referencing)),
				map[string]string{"meals": strings.Join(slots, ", ")})
		}

		return unit.UpdateAddonStatus(ctx, addon.ID, storage.AddonStatusInactive, s.nowUTC())
	})
}
