package domain_test

import (
	"context"
	"testing"

	"github.com/louisbranch/mealhall/internal/errors"
	"github.com/louisbranch/mealhall/internal/settlement/domain"
)

func TestCreateAddonUniqueAmongActive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	adminID := f.registerUser(t, "admin", 0, true)
	addonID := f.createAddon(t, adminID, "extra rice", 300)

	_, err := f.service.AdminCreateAddon(ctx, domain.CreateAddonInput{
		AdminID: adminID, Name: "extra rice", Price: 400,
	})
	wantCode(t, err, errors.CodeAddonNameTaken)

	// An inactive addon frees its name for reuse.
	if err := f.service.AdminDeactivateAddon(ctx, adminID, addonID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	f.createAddon(t, adminID, "extra rice", 400)
}

func TestCreateAddonRejectsBlankName(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	adminID := f.registerUser(t, "admin", 0, true)
	_, err := f.service.AdminCreateAddon(context.Background(), domain.CreateAddonInput{
		AdminID: adminID, Name: "  ", Price: 100,
	})
	wantCode(t, err, errors.CodeAddonNameEmpty)
}

func TestDeactivateAddonInUse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	adminID := f.registerUser(t, "admin", 0, true)
	addonID := f.createAddon(t, adminID, "egg", 200)
	mealID := f.publishMeal(t, adminID, "2026-09-05", domain.SlotLunch, 1000,
		map[int64]int64{addonID: 1}, 5)

	err := f.service.AdminDeactivateAddon(ctx, adminID, addonID)
	wantCode(t, err, errors.CodeAddonInUse)

	// Once the referencing meal closes out, deactivation goes through.
	if _, err := f.service.AdminCompleteMeal(ctx, adminID, mealID); err != nil {
		t.Fatalf("complete meal: %v", err)
	}
	if err := f.service.AdminDeactivateAddon(ctx, adminID, addonID); err != nil {
		t.Fatalf("deactivate after completion: %v", err)
	}
}

func TestDeactivateAddonTwice(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	adminID := f.registerUser(t, "admin", 0, true)
	addonID := f.createAddon(t, adminID, "soup", 500)

	if err := f.service.AdminDeactivateAddon(ctx, adminID, addonID); err != nil {
		t.Fatalf("first deactivate: %v", err)
	}
	err := f.service.AdminDeactivateAddon(ctx, adminID, addonID)
	wantCode(t, err, errors.CodeAddonInactive)
}

func TestDeactivateAddonNotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	adminID := f.registerUser(t, "admin", 0, true)
	err := f.service.AdminDeactivateAddon(context.Background(), adminID, 999)
	wantCode(t, err, errors.CodeAddonNotFound)
}

func TestDeactivatedAddonKeepsFrozenOrderAmounts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	adminID := f.registerUser(t, "admin", 0, true)
	userID := f.registerUser(t, "alice", 5000, false)
	addonID := f.createAddon(t, adminID, "egg", 200)
	mealID := f.publishMeal(t, adminID, "2026-09-05", domain.SlotLunch, 1000,
		map[int64]int64{addonID: 1}, 5)

	created, err := f.service.CreateOrder(ctx, domain.CreateOrderInput{
		UserID: userID, MealID: mealID,
		AddonSelections: map[int64]int64{addonID: 1},
	})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if created.Amount != 1200 {
		t.Fatalf("amount = %d, want 1200", created.Amount)
	}

	// The addon stays locked behind the open meal, but canceling the order
	// still refunds the frozen amount.
	canceled, err := f.service.CancelOrder(ctx, domain.CancelOrderInput{ActorID: userID, OrderID: created.OrderID})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.RefundAmount != 1200 {
		t.Errorf("refund = %d, want frozen 1200", canceled.RefundAmount)
	}
}
