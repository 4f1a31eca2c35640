package domain

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/louisbranch/mealhall/internal/errors"
	"github.com/louisbranch/mealhall/internal/settlement/storage"
)

// PublishMealInput describes one meal offering to publish.
type PublishMealInput struct {
	AdminID     int64
	Date        string
	Slot        string
	Description string
	BasePrice   int64
	AddonConfig map[int64]int64
	MaxOrders   int
}

// PublishMealResult reports the published meal.
type PublishMealResult struct {
	MealID int64
	Date   string
	Slot   string
}

// UpdateMealInput carries the editable fields of a published meal.
type UpdateMealInput struct {
	AdminID     int64
	MealID      int64
	Description string
	BasePrice   int64
	AddonConfig map[int64]int64
	MaxOrders   int
}

// LockMealResult reports the locked meal and its capacity snapshot.
type LockMealResult struct {
	MealID        int64
	Date          string
	Slot          string
	CurrentOrders int
}

// CompleteMealResult reports the completed meal and its bulk-completed orders.
type CompleteMealResult struct {
	MealID            int64
	CompletedOrderIDs []int64
}

// RefundedOrder reports one refund issued during cascade cancellation.
type RefundedOrder struct {
	OrderID       int64
	UserID        int64
	Amount        int64
	TransactionNo string
}

// CancelMealResult reports the canceled meal and every refund it triggered.
type CancelMealResult struct {
	MealID         int64
	Reason         string
	CanceledOrders []RefundedOrder
}

func validateMealSlot(date string, slot string) error {
	if _, err := time.Parse(mealDateLayout, date); err != nil {
		return errors.New(errors.CodeMealDateInvalid, fmt.Sprintf("meal date %q is not YYYY-MM-DD", date))
	}
	if slot != SlotLunch && slot != SlotDinner {
		return errors.New(errors.CodeMealSlotInvalid, fmt.Sprintf("meal slot %q is not lunch or dinner", slot))
	}
	return nil
}

// requireActiveAddons verifies every addon id in the config references an
// active addon.
func requireActiveAddons(ctx context.Context, unit storage.Unit, config map[int64]int64) error {
	for addonID := range config {
		addon, err := unit.GetAddon(ctx, addonID)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return errors.New(errors.CodeAddonNotFound, fmt.Sprintf("addon %d not found", addonID))
			}
			return err
		}
		if addon.Status != storage.AddonStatusActive {
			return errors.New(errors.CodeAddonInactive, fmt.Sprintf("addon %q is inactive", addon.Name))
		}
	}
	return nil
}

// AdminPublishMeal creates a meal offering for a free date+slot pair.
func (s *Service) AdminPublishMeal(ctx context.Context, input PublishMealInput) (PublishMealResult, error) {
	if err := validateMealSlot(input.Date, input.Slot); err != nil {
		return PublishMealResult{}, err
	}
	if input.MaxOrders <= 0 {
		return PublishMealResult{}, errors.New(errors.CodeMealCapacityInvalid,
			fmt.Sprintf("max orders must be positive, got %d", input.MaxOrders))
	}

	var result PublishMealResult
	err := s.store.ExecuteUnit(ctx, "publish_meal", func(ctx context.Context, unit storage.Unit) error {
		if _, err := requireAdmin(ctx, unit, input.AdminID); err != nil {
			return err
		}

		if existing, err := unit.FindMealBySlot(ctx, input.Date, input.Slot); err == nil {
			return errors.WithMetadata(errors.CodeMealSlotTaken,
				fmt.Sprintf("meal %d already occupies %s %s", existing.ID, input.Date, input.Slot),
				map[string]string{"meal_id": strconv.FormatInt(existing.ID, 10)})
		} else if !stderrors.Is(err, storage.ErrNotFound) {
			return err
		}

		if err := requireActiveAddons(ctx, unit, input.AddonConfig); err != nil {
			return err
		}

		now := s.nowUTC()
		mealID, err := unit.InsertMeal(ctx, storage.Meal{
			Date:        input.Date,
			Slot:        input.Slot,
			Description: input.Description,
			BasePrice:   input.BasePrice,
			AddonConfig: input.AddonConfig,
			MaxOrders:   input.MaxOrders,
			Status:      storage.MealStatusPublished,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}

		result = PublishMealResult{MealID: mealID, Date: input.Date, Slot: input.Slot}
		return nil
	})
	return result, err
}

// AdminUpdateMeal edits a published meal's description, base price, addon
// config, and capacity. Frozen amounts on existing orders are unaffected.
func (s *Service) AdminUpdateMeal(ctx context.Context, input UpdateMealInput) error {
	if input.MaxOrders <= 0 {
		return errors.New(errors.CodeMealCapacityInvalid,
			fmt.Sprintf("max orders must be positive, got %d", input.MaxOrders))
	}

	return s.store.ExecuteUnit(ctx, "update_meal", func(ctx context.Context, unit storage.Unit) error {
		if _, err := requireAdmin(ctx, unit, input.AdminID); err != nil {
			return err
		}

		meal, err := getMeal(ctx, unit, input.MealID)
		if err != nil {
			return err
		}
		if meal.Status != storage.MealStatusPublished {
			return errors.New(errors.CodeMealInvalidStatusTransition,
				fmt.Sprintf("meal %d is %s; only published meals can be edited", meal.ID, meal.Status))
		}

		// Count the live orders instead of trusting the counter column.
		activeCount, err := unit.CountActiveOrdersByMeal(ctx, meal.ID)
		if err != nil {
			return err
		}
		if input.MaxOrders < activeCount {
			return errors.WithMetadata(errors.CodeMealCapacityBelowOrders,
				fmt.Sprintf("max orders %d is below current order count %d", input.MaxOrders, activeCount),
				map[string]string{"current_orders": strconv.Itoa(activeCount)})
		}

		if err := requireActiveAddons(ctx, unit, input.AddonConfig); err != nil {
			return err
		}

		meal.Description = input.Description
		meal.BasePrice = input.BasePrice
		meal.AddonConfig = input.AddonConfig
		meal.MaxOrders = input.MaxOrders
		meal.UpdatedAt = s.nowUTC()
		return unit.UpdateMealDetails(ctx, meal)
	})
}

// AdminLockMeal moves a published meal to locked and reports the capacity
// snapshot at lock time.
func (s *Service) AdminLockMeal(ctx context.Context, adminID int64, mealID int64) (LockMealResult, error) {
	var result LockMealResult
	err := s.store.ExecuteUnit(ctx, "lock_meal", func(ctx context.Context, unit storage.Unit) error {
		if _, err := requireAdmin(ctx, unit, adminID); err != nil {
			return err
		}

		meal, err := getMeal(ctx, unit, mealID)
		if err != nil {
			return err
		}
		if meal.Status != storage.MealStatusPublished {
			return errors.New(errors.CodeMealInvalidStatusTransition,
				fmt.Sprintf("meal %d is %s; only published meals can be locked", meal.ID, meal.Status))
		}

		if err := unit.UpdateMealStatus(ctx, meal.ID, storage.MealStatusLocked, s.nowUTC()); err != nil {
			return err
		}

		result = LockMealResult{
			MealID:        meal.ID,
			Date:          meal.Date,
			Slot:          meal.Slot,
			CurrentOrders: meal.CurrentOrders,
		}
		return nil
	})
	return result, err
}

// AdminUnlockMeal returns a locked meal to published.
func (s *Service) AdminUnlockMeal(ctx context.Context, adminID int64, mealID int64) error {
	return s.store.ExecuteUnit(ctx, "unlock_meal", func(ctx context.Context, unit storage.Unit) error {
		if _, err := requireAdmin(ctx, unit, adminID); err != nil {
			return err
		}

		meal, err := getMeal(ctx, unit, mealID)
		if err != nil {
			return err
		}
		if meal.Status != storage.MealStatusLocked {
			return errors.New(errors.CodeMealInvalidStatusTransition,
				fmt.Sprintf("meal %d is %s; only locked meals can be unlocked", meal.ID, meal.Status))
		}

		return unit.UpdateMealStatus(ctx, meal.ID, storage.MealStatusPublished, s.nowUTC())
	})
}

// AdminCompleteMeal moves a published or locked meal to completed and
// bulk-completes every active order on it. Completion moves no money.
func (s *Service) AdminCompleteMeal(ctx context.Context, adminID int64, mealID int64) (CompleteMealResult, error) {
	var result CompleteMealResult
	err := s.store.ExecuteUnit(ctx, "complete_meal", func(ctx context.Context, unit storage.Unit) error {
		if _, err := requireAdmin(ctx, unit, adminID); err != nil {
			return err
		}

		meal, err := getMeal(ctx, unit, mealID)
		if err != nil {
			return err
		}
		if meal.Status != storage.MealStatusPublished && meal.Status != storage.MealStatusLocked {
			return errors.New(errors.CodeMealInvalidStatusTransition,
				fmt.Sprintf("meal %d is %s; only published or locked meals can be completed", meal.ID, meal.Status))
		}

		now := s.nowUTC()
		if err := unit.UpdateMealStatus(ctx, meal.ID, storage.MealStatusCompleted, now); err != nil {
			return err
		}

		completed, err := unit.CompleteActiveOrdersByMeal(ctx, meal.ID, now)
		if err != nil {
			return err
		}

		result = CompleteMealResult{MealID: meal.ID, CompletedOrderIDs: completed}
		return nil
	})
	return result, err
}

// AdminCancelMeal cancels a published or locked meal and refunds every
// active order on it. The meal status change, all order cancellations, and
// all refunds share one unit of work: either everything happens or nothing
// does.
func (s *Service) AdminCancelMeal(ctx context.Context, adminID int64, mealID int64, reason string) (CancelMealResult, error) {
	if reason == "" {
		reason = "canceled by admin"
	}

	var result CancelMealResult
	err := s.store.ExecuteUnit(ctx, "cancel_meal", func(ctx context.Context, unit storage.Unit) error {
		if _, err := requireAdmin(ctx, unit, adminID); err != nil {
			return err
		}

		meal, err := getMeal(ctx, unit, mealID)
		if err != nil {
			return err
		}
		if meal.Status != storage.MealStatusPublished && meal.Status != storage.MealStatusLocked {
			return errors.New(errors.CodeMealInvalidStatusTransition,
				fmt.Sprintf("meal %d is %s; only published or locked meals can be canceled", meal.ID, meal.Status))
		}

		activeOrders, err := unit.ListActiveOrdersByMeal(ctx, meal.ID)
		if err != nil {
			return err
		}

		now := s.nowUTC()
		if err := unit.CancelMeal(ctx, meal.ID, adminID, reason, now); err != nil {
			return err
		}

		derivedReason := fmt.Sprintf("meal %s %s canceled: %s", meal.Date, meal.Slot, reason)
		refunds := make([]RefundedOrder, 0, len(activeOrders))
		for _, order := range activeOrders {
			if err := unit.CancelOrder(ctx, order.ID, derivedReason, now); err != nil {
				return err
			}
			orderID := order.ID
			mutation, err := s.credit(ctx, unit, order.UserID, order.Amount, storage.LedgerTypeRefund,
				&orderID, nil, fmt.Sprintf("refund for order %d: %s", order.ID, derivedReason), now)
			if err != nil {
				return err
			}
			refunds = append(refunds, RefundedOrder{
				OrderID:       order.ID,
				UserID:        order.UserID,
				Amount:        order.Amount,
				TransactionNo: mutation.TransactionNo,
			})
		}

		if err := unit.SetMealOrderCount(ctx, meal.ID, 0, now); err != nil {
			return err
		}

		result = CancelMealResult{MealID: meal.ID, Reason: reason, CanceledOrders: refunds}
		return nil
	})
	return result, err
}
