package domain

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/louisbranch/mealhall/internal/errors"
	"github.com/louisbranch/mealhall/internal/settlement/storage"
)

// CreateOrderInput describes one order request.
type CreateOrderInput struct {
	UserID          int64
	MealID          int64
	AddonSelections map[int64]int64
}

// CreateOrderResult reports the created order and the payment that backs it.
type CreateOrderResult struct {
	OrderID       int64
	MealID        int64
	Amount        int64
	TransactionNo string
	Balance       int64
}

// CancelOrderInput identifies one order to cancel on behalf of an actor.
type CancelOrderInput struct {
	ActorID int64
	OrderID int64
	Reason  string
}

// CancelOrderResult reports the refund issued for the canceled order.
type CancelOrderResult struct {
	OrderID       int64
	MealID        int64
	RefundAmount  int64
	TransactionNo string
	Balance       int64
}

// CreateOrder places one order on a published meal, freezing the total
// amount, debiting the user, and incrementing the meal's live order counter
// in one atomic unit. The order amount is never recomputed after creation.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (CreateOrderResult, error) {
	var result CreateOrderResult
	err := s.store.ExecuteUnit(ctx, "create_order", func(ctx context.Context, unit storage.Unit) error {
		user, err := requireActiveUser(ctx, unit, input.UserID)
		if err != nil {
			return err
		}

		meal, err := getMeal(ctx, unit, input.MealID)
		if err != nil {
			return err
		}
		if meal.Status != storage.MealStatusPublished {
			return errors.WithMetadata(errors.CodeMealNotOrderable,
				fmt.Sprintf("meal %d is %s, not published", meal.ID, meal.Status),
				map[string]string{"status": string(meal.Status)})
		}

		if existing, err := unit.FindActiveOrder(ctx, user.ID, meal.ID); err == nil {
			return errors.WithMetadata(errors.CodeOrderDuplicateActive,
				fmt.Sprintf("user %d already holds order %d for meal %d", user.ID, existing.ID, meal.ID),
				map[string]string{"order_id": strconv.FormatInt(existing.ID, 10)})
		} else if !stderrors.Is(err, storage.ErrNotFound) {
			return err
		}

		if meal.CurrentOrders >= meal.MaxOrders {
			return errors.WithMetadata(errors.CodeMealFull,
				fmt.Sprintf("meal %d is full (%d/%d)", meal.ID, meal.CurrentOrders, meal.MaxOrders),
				map[string]string{"max_orders": strconv.Itoa(meal.MaxOrders)})
		}

		amount, err := orderAmount(ctx, unit, meal, input.AddonSelections)
		if err != nil {
			return err
		}

		if user.Balance < amount {
			return errors.WithMetadata(errors.CodeOrderInsufficientBalance,
				fmt.Sprintf("user %d balance %d is below order amount %d", user.ID, user.Balance, amount),
				map[string]string{
					"balance": strconv.FormatInt(user.Balance, 10),
					"amount":  strconv.FormatInt(amount, 10),
				})
		}

		now := s.nowUTC()
		orderID, err := unit.InsertOrder(ctx, storage.Order{
			UserID:          user.ID,
			MealID:          meal.ID,
			Amount:          amount,
			AddonSelections: input.AddonSelections,
			Status:          storage.OrderStatusActive,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return err
		}

		mutation, err := s.debit(ctx, unit, user.ID, amount, storage.LedgerTypeOrder,
			&orderID, nil, fmt.Sprintf("payment for order %d", orderID), now)
		if err != nil {
			return err
		}

		if err := unit.AdjustMealOrderCount(ctx, meal.ID, 1, now); err != nil {
			return err
		}

		result = CreateOrderResult{
			OrderID:       orderID,
			MealID:        meal.ID,
			Amount:        amount,
			TransactionNo: mutation.TransactionNo,
			Balance:       mutation.BalanceAfter,
		}
		return nil
	})
	return result, err
}

// orderAmount computes the frozen order total: base price plus each selected
// addon's current price times quantity. Selections must name allowed, active
// addons within their configured quantity caps.
func orderAmount(ctx context.Context, unit storage.Unit, meal storage.Meal, selections map[int64]int64) (int64, error) {
	amount := meal.BasePrice
	for addonID, quantity := range selections {
		maxQuantity, allowed := meal.AddonConfig[addonID]
		if !allowed {
			return 0, errors.WithMetadata(errors.CodeOrderAddonNotAllowed,
				fmt.Sprintf("addon %d is not offered on meal %d", addonID, meal.ID),
				map[string]string{"addon_id": strconv.FormatInt(addonID, 10)})
		}
		if quantity <= 0 || quantity > maxQuantity {
			return 0, errors.WithMetadata(errors.CodeOrderAddonQuantity,
				fmt.Sprintf("addon %d quantity %d is outside 1..%d", addonID, quantity, maxQuantity),
				map[string]string{"addon_id": strconv.FormatInt(addonID, 10)})
		}

		addon, err := unit.GetAddon(ctx, addonID)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return 0, errors.New(errors.CodeAddonNotFound, fmt.Sprintf("addon %d not found", addonID))
			}
			return 0, err
		}
		if addon.Status != storage.AddonStatusActive {
			return 0, errors.New(errors.CodeAddonInactive, fmt.Sprintf("addon %q is inactive", addon.Name))
		}
		amount += addon.Price * quantity
	}
	return amount, nil
}

// CancelOrder cancels one active order and refunds its frozen amount to the
// order owner. Owners may cancel while the meal is still published; admins
// may also cancel on locked meals. Nobody cancels on a completed meal.
func (s *Service) CancelOrder(ctx context.Context, input CancelOrderInput) (CancelOrderResult, error) {
	var result CancelOrderResult
	err := s.store.ExecuteUnit(ctx, "cancel_order", func(ctx context.Context, unit storage.Unit) error {
		order, err := unit.GetOrder(ctx, input.OrderID)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return errors.New(errors.CodeOrderNotFound, fmt.Sprintf("order %d not found", input.OrderID))
			}
			return err
		}
		if order.Status != storage.OrderStatusActive {
			return errors.WithMetadata(errors.CodeOrderNotActive,
				fmt.Sprintf("order %d is %s", order.ID, order.Status),
				map[string]string{"status": string(order.Status)})
		}

		actor, err := requireActiveUser(ctx, unit, input.ActorID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin && actor.ID != order.UserID {
			return errors.New(errors.CodeOrderNotOwned,
				fmt.Sprintf("user %d does not own order %d", actor.ID, order.ID))
		}

		meal, err := getMeal(ctx, unit, order.MealID)
		if err != nil {
			return err
		}
		if meal.Status == storage.MealStatusCompleted {
			return errors.New(errors.CodeOrderMealNotCancelable,
				fmt.Sprintf("meal %d is completed", meal.ID))
		}
		if !actor.IsAdmin && meal.Status == storage.MealStatusLocked {
			return errors.New(errors.CodeOrderMealNotCancelable,
				fmt.Sprintf("meal %d is locked", meal.ID))
		}

		reason := input.Reason
		if reason == "" {
			reason = "canceled by user"
		}

		now := s.nowUTC()
		if err := unit.CancelOrder(ctx, order.ID, reason, now); err != nil {
			return err
		}

		orderID := order.ID
		mutation, err := s.credit(ctx, unit, order.UserID, order.Amount, storage.LedgerTypeRefund,
			&orderID, nil, fmt.Sprintf("refund for order %d: %s", order.ID, reason), now)
		if err != nil {
			return err
		}

		if err := unit.AdjustMealOrderCount(ctx, meal.ID, -1, now); err != nil {
			return err
		}

		result = CancelOrderResult{
			OrderID:       order.ID,
			MealID:        meal.ID,
			RefundAmount:  order.Amount,
			TransactionNo: mutation.TransactionNo,
			Balance:       mutation.BalanceAfter,
		}
		return nil
	})
	return result, err
}
