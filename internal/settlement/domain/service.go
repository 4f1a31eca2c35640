// Package domain implements the settlement engine: order and meal lifecycle
// state machines, the ledger-paired balance mutator, and cascade
// cancellation. Every exported entry point builds exactly one unit of work
// and returns either a structured result or a typed error from
// internal/errors.
package domain

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/louisbranch/mealhall/internal/errors"
	"github.com/louisbranch/mealhall/internal/settlement/storage"
)

// Meal slots. A date+slot pair identifies one offering.
const (
	SlotLunch  = "lunch"
	SlotDinner = "dinner"
)

const mealDateLayout = "2006-01-02"

// Service exposes the settlement use cases.
type Service struct {
	store storage.Store
	clock func() time.Time
}

// NewService constructs the settlement service.
func NewService(store storage.Store, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, clock: clock}
}

func (s *Service) nowUTC() time.Time {
	return s.clock().UTC()
}

// requireAdmin loads the acting user and verifies an active admin account.
func requireAdmin(ctx context.Context, unit storage.Unit, adminID int64) (storage.User, error) {
	user, err := unit.GetUser(ctx, adminID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return storage.User{}, errors.New(errors.CodeUserNotFound, fmt.Sprintf("user %d not found", adminID))
		}
		return storage.User{}, err
	}
	if !user.IsAdmin || user.Status != storage.UserStatusActive {
		return storage.User{}, errors.New(errors.CodeNotAdmin, fmt.Sprintf("user %d is not an active admin", adminID))
	}
	return user, nil
}

// requireActiveUser loads a user and verifies the account is active.
func requireActiveUser(ctx context.Context, unit storage.Unit, userID int64) (storage.User, error) {
	user, err := unit.GetUser(ctx, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return storage.User{}, errors.New(errors.CodeUserNotFound, fmt.Sprintf("user %d not found", userID))
		}
		return storage.User{}, err
	}
	if user.Status != storage.UserStatusActive {
		return storage.User{}, errors.New(errors.CodeUserSuspended, fmt.Sprintf("user %d is suspended", userID))
	}
	return user, nil
}

func getMeal(ctx context.Context, unit storage.Unit, mealID int64) (storage.Meal, error) {
	meal, err := unit.GetMeal(ctx, mealID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return storage.Meal{}, errors.New(errors.CodeMealNotFound, fmt.Sprintf("meal %d not found", mealID))
		}
		return storage.Meal{}, err
	}
	return meal, nil
}
