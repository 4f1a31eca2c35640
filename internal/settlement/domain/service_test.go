package domain_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/mealhall/internal/errors"
	"github.com/louisbranch/mealhall/internal/settlement/domain"
	"github.com/louisbranch/mealhall/internal/settlement/storage"
	"github.com/louisbranch/mealhall/internal/settlement/storage/sqlite"
)

// testClock is the frozen instant every test unit stamps rows with.
var testClock = time.Date(2026, 9, 5, 12, 0, 0, 0, time.UTC)

type fixture struct {
	service *domain.Service
	store   *sqlite.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "settlement.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return &fixture{
		service: domain.NewService(store, func() time.Time { return testClock }),
		store:   store,
	}
}

func (f *fixture) registerUser(t *testing.T, name string, balance int64, isAdmin bool) int64 {
	t.Helper()
	result, err := f.service.RegisterUser(context.Background(), domain.RegisterUserInput{
		DisplayName:    name,
		IsAdmin:        isAdmin,
		InitialBalance: balance,
	})
	if err != nil {
		t.Fatalf("register user %q: %v", name, err)
	}
	return result.UserID
}

func (f *fixture) publishMeal(t *testing.T, adminID int64, date, slot string, basePrice int64, addonConfig map[int64]int64, maxOrders int) int64 {
	t.Helper()
	result, err := f.service.AdminPublishMeal(context.Background(), domain.PublishMealInput{
		AdminID:     adminID,
		Date:        date,
		Slot:        slot,
		Description: "test meal",
		BasePrice:   basePrice,
		AddonConfig: addonConfig,
		MaxOrders:   maxOrders,
	})
	if err != nil {
		t.Fatalf("publish meal %s %s: %v", date, slot, err)
	}
	return result.MealID
}

func (f *fixture) createAddon(t *testing.T, adminID int64, name string, price int64) int64 {
	t.Helper()
	result, err := f.service.AdminCreateAddon(context.Background(), domain.CreateAddonInput{
		AdminID: adminID,
		Name:    name,
		Price:   price,
	})
	if err != nil {
		t.Fatalf("create addon %q: %v", name, err)
	}
	return result.AddonID
}

func (f *fixture) userBalance(t *testing.T, userID int64) int64 {
	t.Helper()
	var balance int64
	err := f.store.ExecuteUnit(context.Background(), "test_read_balance", func(ctx context.Context, unit storage.Unit) error {
		user, err := unit.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		balance = user.Balance
		return nil
	})
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return balance
}

func (f *fixture) getMeal(t *testing.T, mealID int64) storage.Meal {
	t.Helper()
	var meal storage.Meal
	err := f.store.ExecuteUnit(context.Background(), "test_read_meal", func(ctx context.Context, unit storage.Unit) error {
		var err error
		meal, err = unit.GetMeal(ctx, mealID)
		return err
	})
	if err != nil {
		t.Fatalf("read meal: %v", err)
	}
	return meal
}

func (f *fixture) getOrder(t *testing.T, orderID int64) storage.Order {
	t.Helper()
	var order storage.Order
	err := f.store.ExecuteUnit(context.Background(), "test_read_order", func(ctx context.Context, unit storage.Unit) error {
		var err error
		order, err = unit.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		t.Fatalf("read order: %v", err)
	}
	return order
}

func (f *fixture) latestLedgerEntry(t *testing.T, userID int64) storage.LedgerEntry {
	t.Helper()
	var entry storage.LedgerEntry
	err := f.store.ExecuteUnit(context.Background(), "test_read_ledger", func(ctx context.Context, unit storage.Unit) error {
		var err error
		entry, err = unit.LatestLedgerEntry(ctx, userID)
		return err
	})
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	return entry
}

func (f *fixture) ledgerEntries(t *testing.T, userID int64) []storage.LedgerEntry {
	t.Helper()
	var entries []storage.LedgerEntry
	err := f.store.ExecuteUnit(context.Background(), "test_list_ledger", func(ctx context.Context, unit storage.Unit) error {
		var err error
		entries, err = unit.ListLedgerEntries(ctx, userID)
		return err
	})
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	return entries
}

func wantCode(t *testing.T, err error, code errors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("err = nil, want code %s", code)
	}
	if !errors.IsCode(err, code) {
		t.Fatalf("err = %v, want code %s", err, code)
	}
}
