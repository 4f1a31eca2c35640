package mealhall

import (
	"context"
	"time"

	"github.com/louisbranch/mealhall/internal/settlement/domain"
)

// seedDemo provisions a small working dataset: one admin, two funded diners,
// a pair of addons, and tomorrow's lunch. Everything goes through the domain
// service so the seeded ledger is as real as production data.
func seedDemo(ctx context.Context, service *domain.Service) error {
	admin, err := service.RegisterUser(ctx, domain.RegisterUserInput{
		DisplayName: "demo admin",
		IsAdmin:     true,
	})
	if err != nil {
		return err
	}

	diners := []struct {
		name    string
		balance int64
	}{
		{"demo diner one", 10000},
		{"demo diner two", 5000},
	}
	var dinerIDs []int64
	for _, diner := range diners {
		result, err := service.RegisterUser(ctx, domain.RegisterUserInput{
			DisplayName:    diner.name,
			InitialBalance: diner.balance,
		})
		if err != nil {
			return err
		}
		dinerIDs = append(dinerIDs, result.UserID)
	}

	rice, err := service.AdminCreateAddon(ctx, domain.CreateAddonInput{
		AdminID:      admin.UserID,
		Name:         "extra rice",
		Price:        300,
		DisplayOrder: 1,
		IsDefault:    true,
	})
	if err != nil {
		return err
	}
	egg, err := service.AdminCreateAddon(ctx, domain.CreateAddonInput{
		AdminID:      admin.UserID,
		Name:         "fried egg",
		Price:        200,
		DisplayOrder: 2,
	})
	if err != nil {
		return err
	}

	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	meal, err := service.AdminPublishMeal(ctx, domain.PublishMealInput{
		AdminID:     admin.UserID,
		Date:        tomorrow,
		Slot:        domain.SlotLunch,
		Description: "braised pork over rice",
		BasePrice:   1500,
		AddonConfig: map[int64]int64{rice.AddonID: 2, egg.AddonID: 1},
		MaxOrders:   20,
	})
	if err != nil {
		return err
	}

	_, err = service.CreateOrder(ctx, domain.CreateOrderInput{
		UserID:          dinerIDs[0],
		MealID:          meal.MealID,
		AddonSelections: map[int64]int64{rice.AddonID: 1},
	})
	return err
}
