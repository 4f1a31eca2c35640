package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/mealhall/internal/settlement/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "settlement.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func insertTestUser(t *testing.T, store *Store, name string, balance int64, isAdmin bool) int64 {
	t.Helper()
	var id int64
	err := store.ExecuteUnit(context.Background(), "test_insert_user", func(ctx context.Context, unit storage.Unit) error {
		now := time.Now().UTC()
		var err error
		id, err = unit.InsertUser(ctx, storage.User{
			DisplayName: name,
			Balance:     balance,
			IsAdmin:     isAdmin,
			Status:      storage.UserStatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return err
	})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

func insertTestMeal(t *testing.T, store *Store, meal storage.Meal) int64 {
	t.Helper()
	var id int64
	err := store.ExecuteUnit(context.Background(), "test_insert_meal", func(ctx context.Context, unit storage.Unit) error {
		var err error
		id, err = unit.InsertMeal(ctx, meal)
		return err
	})
	if err != nil {
		t.Fatalf("insert meal: %v", err)
	}
	return id
}

func TestUserRoundTrip(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	id := insertTestUser(t, store, "alice", 10000, false)

	err := store.ExecuteUnit(ctx, "verify", func(ctx context.Context, unit storage.Unit) error {
		user, err := unit.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if user.DisplayName != "alice" {
			t.Errorf("display name = %q, want alice", user.DisplayName)
		}
		if user.Balance != 10000 {
			t.Errorf("balance = %d, want 10000", user.Balance)
		}
		if user.Status != storage.UserStatusActive {
			t.Errorf("status = %q, want active", user.Status)
		}

		if err := unit.UpdateUserBalance(ctx, id, 7500, time.Now().UTC()); err != nil {
			return err
		}
		user, err = unit.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if user.Balance != 7500 {
			t.Errorf("balance after update = %d, want 7500", user.Balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unit: %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)

	err := store.ExecuteUnit(context.Background(), "verify", func(ctx context.Context, unit storage.Unit) error {
		_, err := unit.GetUser(ctx, 999)
		return err
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUnitRollsBackOnError(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	id := insertTestUser(t, store, "bob", 5000, false)

	boom := errors.New("boom")
	err := store.ExecuteUnit(ctx, "failing", func(ctx context.Context, unit storage.Unit) error {
		if err := unit.UpdateUserBalance(ctx, id, 0, time.Now().UTC()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	err = store.ExecuteUnit(ctx, "verify", func(ctx context.Context, unit storage.Unit) error {
		user, err := unit.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if user.Balance != 5000 {
			t.Errorf("balance = %d, want 5000 after rollback", user.Balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unit: %v", err)
	}
}

func TestFindActiveAddonByName(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	err := store.ExecuteUnit(ctx, "seed", func(ctx context.Context, unit storage.Unit) error {
		now := time.Now().UTC()
		activeID, err := unit.InsertAddon(ctx, storage.Addon{
			Name: "extra rice", Price: 300, Status: storage.AddonStatusActive,
			CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		if err := unit.UpdateAddonStatus(ctx, activeID, storage.AddonStatusInactive, now); err != nil {
			return err
		}
		_, err = unit.InsertAddon(ctx, storage.Addon{
			Name: "extra rice", Price: 400, Status: storage.AddonStatusActive,
			CreatedAt: now, UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = store.ExecuteUnit(ctx, "verify", func(ctx context.Context, unit storage.Unit) error {
		addon, err := unit.FindActiveAddonByName(ctx, "extra rice")
		if err != nil {
			return err
		}
		if addon.Price != 400 {
			t.Errorf("price = %d, want the active addon's 400", addon.Price)
		}
		if _, err := unit.FindActiveAddonByName(ctx, "soup"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("missing name err = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unit: %v", err)
	}
}

func TestMealAddonConfigRoundTrip(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	id := insertTestMeal(t, store, storage.Meal{
		Date: "2026-09-01", Slot: "lunch", Description: "braised pork",
		BasePrice: 1500, AddonConfig: map[int64]int64{3: 2, 7: 1},
		MaxOrders: 10, Status: storage.MealStatusPublished,
		CreatedAt: now, UpdatedAt: now,
	})

	err := store.ExecuteUnit(ctx, "verify", func(ctx context.Context, unit storage.Unit) error {
		meal, err := unit.GetMeal(ctx, id)
		if err != nil {
			return err
		}
		if len(meal.AddonConfig) != 2 || meal.AddonConfig[3] != 2 || meal.AddonConfig[7] != 1 {
			t.Errorf("addon config = %v, want map[3:2 7:1]", meal.AddonConfig)
		}

		found, err := unit.FindMealBySlot(ctx, "2026-09-01", "lunch")
		if err != nil {
			return err
		}
		if found.ID != id {
			t.Errorf("found meal %d, want %d", found.ID, id)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unit: %v", err)
	}
}

func TestFindMealBySlotIgnoresCanceled(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	id := insertTestMeal(t, store, storage.Meal{
		Date: "2026-09-02", Slot: "dinner", BasePrice: 1200,
		MaxOrders: 5, Status: storage.MealStatusPublished,
		CreatedAt: now, UpdatedAt: now,
	})
	adminID := insertTestUser(t, store, "admin", 0, true)

	err := store.ExecuteUnit(ctx, "cancel", func(ctx context.Context, unit storage.Unit) error {
		return unit.CancelMeal(ctx, id, adminID, "kitchen closed", now)
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	err = store.ExecuteUnit(ctx, "verify", func(ctx context.Context, unit storage.Unit) error {
		if _, err := unit.FindMealBySlot(ctx, "2026-09-02", "dinner"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound for canceled slot", err)
		}
		meal, err := unit.GetMeal(ctx, id)
		if err != nil {
			return err
		}
		if meal.Status != storage.MealStatusCanceled {
			t.Errorf("status = %q, want canceled", meal.Status)
		}
		if meal.CanceledBy == nil || *meal.CanceledBy != adminID {
			t.Errorf("canceled_by = %v, want %d", meal.CanceledBy, adminID)
		}
		if meal.CanceledReason != "kitchen closed" {
			t.Errorf("reason = %q, want kitchen closed", meal.CanceledReason)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unit: %v", err)
	}
}

func TestDuplicateActiveOrderConflicts(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	userID := insertTestUser(t, store, "carol", 10000, false)
	mealID := insertTestMeal(t, store, storage.Meal{
		Date: "2026-09-03", Slot: "lunch", BasePrice: 1500,
		MaxOrders: 5, Status: storage.MealStatusPublished,
		CreatedAt: now, UpdatedAt: now,
	})

	insert := func(unitName string) error {
		return store.ExecuteUnit(ctx, unitName, func(ctx context.Context, unit storage.Unit) error {
			_, err := unit.InsertOrder(ctx, storage.Order{
				UserID: userID, MealID: mealID, Amount: 1500,
				Status: storage.OrderStatusActive, CreatedAt: now, UpdatedAt: now,
			})
			return err
		})
	}

	if err := insert("first"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := insert("second"); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("second insert err = %v, want ErrConflict", err)
	}
}

func TestCancelFreesActiveSlotForReorder(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	userID := insertTestUser(t, store, "dave", 10000, false)
	mealID := insertTestMeal(t, store, storage.Meal{
		Date: "2026-09-04", Slot: "dinner", BasePrice: 1500,
		MaxOrders: 5, Status: storage.MealStatusPublished,
		CreatedAt: now, UpdatedAt: now,
	})

	var firstID int64
	err := store.ExecuteUnit(ctx, "first", func(ctx context.Context, unit storage.Unit) error {
		var err error
		firstID, err = unit.InsertOrder(ctx, storage.Order{
			UserID: userID, MealID: mealID, Amount: 1500,
			Status: storage.OrderStatusActive, CreatedAt: now, UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err = store.ExecuteUnit(ctx, "cancel_and_reorder", func(ctx context.Context, unit storage.Unit) error {
		if err := unit.CancelOrder(ctx, firstID, "changed my mind", now); err != nil {
			return err
		}
		_, err := unit.InsertOrder(ctx, storage.Order{
			UserID: userID, MealID: mealID, Amount: 1500,
			Status: storage.OrderStatusActive, CreatedAt: now, UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		t.Fatalf("reorder after cancel: %v", err)
	}
}

func TestCompleteActiveOrdersByMeal(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	mealID := insertTestMeal(t, store, storage.Meal{
		Date: "2026-09-05", Slot: "lunch", BasePrice: 1000,
		MaxOrders: 10, Status: storage.MealStatusLocked,
		CreatedAt: now, UpdatedAt: now,
	})

	var orderIDs []int64
	err := store.ExecuteUnit(ctx, "seed", func(ctx context.Context, unit storage.Unit) error {
		for i := 0; i < 3; i++ {
			userID, err := unit.InsertUser(ctx, storage.User{
				DisplayName: "user", Status: storage.UserStatusActive,
				CreatedAt: now, UpdatedAt: now,
			})
			if err != nil {
				return err
			}
			id, err := unit.InsertOrder(ctx, storage.Order{
				UserID: userID, MealID: mealID, Amount: 1000,
				Status: storage.OrderStatusActive, CreatedAt: now, UpdatedAt: now,
			})
			if err != nil {
				return err
			}
			orderIDs = append(orderIDs, id)
		}
		if err := unit.CancelOrder(ctx, orderIDs[0], "early cancel", now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = store.ExecuteUnit(ctx, "complete", func(ctx context.Context, unit storage.Unit) error {
		completed, err := unit.CompleteActiveOrdersByMeal(ctx, mealID, now)
		if err != nil {
			return err
		}
		if len(completed) != 2 {
			t.Errorf("completed %d orders, want 2", len(completed))
		}
		for _, id := range completed {
			if id == orderIDs[0] {
				t.Errorf("canceled order %d was completed", id)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestMaxLedgerSequence(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	userID := insertTestUser(t, store, "erin", 0, false)

	err := store.ExecuteUnit(ctx, "seed", func(ctx context.Context, unit storage.Unit) error {
		for _, no := range []string{"TXN20260905000001", "TXN20260905000002", "TXN20260904000009"} {
			if _, err := unit.AppendLedgerEntry(ctx, storage.LedgerEntry{
				TransactionNo: no, UserID: userID,
				Type: storage.LedgerTypeRecharge, Direction: storage.DirectionIn,
				Amount: 100, BalanceBefore: 0, BalanceAfter: 100,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = store.ExecuteUnit(ctx, "verify", func(ctx context.Context, unit storage.Unit) error {
		max, err := unit.MaxLedgerSequence(ctx, "TXN20260905")
		if err != nil {
			return err
		}
		if max != 2 {
			t.Errorf("max for 2026-09-05 = %d, want 2", max)
		}
		max, err = unit.MaxLedgerSequence(ctx, "TXN20260906")
		if err != nil {
			return err
		}
		if max != 0 {
			t.Errorf("max for empty day = %d, want 0", max)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unit: %v", err)
	}
}

func TestAppendLedgerEntryDuplicateNoConflicts(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	userID := insertTestUser(t, store, "frank", 0, false)

	entry := storage.LedgerEntry{
		TransactionNo: "TXN20260905000001", UserID: userID,
		Type: storage.LedgerTypeRecharge, Direction: storage.DirectionIn,
		Amount: 100, CreatedAt: now,
	}

	err := store.ExecuteUnit(ctx, "first", func(ctx context.Context, unit storage.Unit) error {
		_, err := unit.AppendLedgerEntry(ctx, entry)
		return err
	})
	if err != nil {
		t.Fatalf("first append: %v", err)
	}

	err = store.ExecuteUnit(ctx, "second", func(ctx context.Context, unit storage.Unit) error {
		_, err := unit.AppendLedgerEntry(ctx, entry)
		return err
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("second append err = %v, want ErrConflict", err)
	}
}

func TestListMealsReferencingAddon(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	published := insertTestMeal(t, store, storage.Meal{
		Date: "2026-09-06", Slot: "lunch", BasePrice: 1000,
		AddonConfig: map[int64]int64{42: 1}, MaxOrders: 5,
		Status: storage.MealStatusPublished, CreatedAt: now, UpdatedAt: now,
	})
	insertTestMeal(t, store, storage.Meal{
		Date: "2026-09-06", Slot: "dinner", BasePrice: 1000,
		AddonConfig: map[int64]int64{42: 1}, MaxOrders: 5,
		Status: storage.MealStatusCompleted, CreatedAt: now, UpdatedAt: now,
	})
	insertTestMeal(t, store, storage.Meal{
		Date: "2026-09-07", Slot: "lunch", BasePrice: 1000,
		AddonConfig: map[int64]int64{7: 1}, MaxOrders: 5,
		Status: storage.MealStatusPublished, CreatedAt: now, UpdatedAt: now,
	})

	err := store.ExecuteUnit(ctx, "verify", func(ctx context.Context, unit storage.Unit) error {
		meals, err := unit.ListMealsReferencingAddon(ctx, 42)
		if err != nil {
			return err
		}
		if len(meals) != 1 || meals[0].ID != published {
			t.Errorf("referencing meals = %v, want only meal %d", meals, published)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unit: %v", err)
	}
}

func TestOrderCountMutations(t *testing.T) {
	t.Parallel()
	store := openTempStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	mealID := insertTestMeal(t, store, storage.Meal{
		Date: "2026-09-08", Slot: "lunch", BasePrice: 1000,
		MaxOrders: 5, Status: storage.MealStatusPublished,
		CreatedAt: now, UpdatedAt: now,
	})

	err := store.ExecuteUnit(ctx, "mutate", func(ctx context.Context, unit storage.Unit) error {
		if err := unit.AdjustMealOrderCount(ctx, mealID, 1, now); err != nil {
			return err
		}
		if err := unit.AdjustMealOrderCount(ctx, mealID, 1, now); err != nil {
			return err
		}
		meal, err := unit.GetMeal(ctx, mealID)
		if err != nil {
			return err
		}
		if meal.CurrentOrders != 2 {
			t.Errorf("current orders = %d, want 2", meal.CurrentOrders)
		}
		if err := unit.SetMealOrderCount(ctx, mealID, 0, now); err != nil {
			return err
		}
		meal, err = unit.GetMeal(ctx, mealID)
		if err != nil {
			return err
		}
		if meal.CurrentOrders != 0 {
			t.Errorf("current orders after reset = %d, want 0", meal.CurrentOrders)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unit: %v", err)
	}
}
