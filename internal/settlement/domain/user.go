package domain

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/louisbranch/mealhall/internal/errors"
	"github.com/louisbranch/mealhall/internal/settlement/storage"
)

// RegisterUserInput describes a new account.
type RegisterUserInput struct {
	DisplayName    string
	IsAdmin        bool
	InitialBalance int64
}

// RegisterUserResult reports the created account.
type RegisterUserResult struct {
	UserID int64
}

// AdjustBalanceInput describes a manual balance change by an admin. A
// positive amount credits the user as a recharge; a negative amount debits
// the magnitude as an adjustment. Zero is rejected.
type AdjustBalanceInput struct {
	AdminID     int64
	UserID      int64
	Amount      int64
	Description string
}

// AdjustBalanceResult reports the resulting balance and the audit entry.
type AdjustBalanceResult struct {
	UserID        int64
	TransactionNo string
	BalanceBefore int64
	BalanceAfter  int64
}

// RegisterUser creates an active account. A nonzero initial balance is
// recorded through the ledger so the audit trail starts at row one.
func (s *Service) RegisterUser(ctx context.Context, input RegisterUserInput) (RegisterUserResult, error) {
	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		return RegisterUserResult{}, errors.New(errors.CodeUserNameEmpty, "display name must not be empty")
	}
	if input.InitialBalance < 0 {
		return RegisterUserResult{}, errors.New(errors.CodeUserInitialBalanceNegative,
			fmt.Sprintf("initial balance must not be negative, got %d", input.InitialBalance))
	}

	var result RegisterUserResult
	err := s.store.ExecuteUnit(ctx, "register_user", func(ctx context.Context, unit storage.Unit) error {
		now := s.nowUTC()
		userID, err := unit.InsertUser(ctx, storage.User{
			DisplayName: name,
			Balance:     0,
			IsAdmin:     input.IsAdmin,
			Status:      storage.UserStatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}

		if input.InitialBalance > 0 {
			_, err := s.credit(ctx, unit, userID, input.InitialBalance, storage.LedgerTypeRecharge,
				nil, nil, "initial balance", now)
			if err != nil {
				return err
			}
		}

		result = RegisterUserResult{UserID: userID}
		return nil
	})
	return result, err
}

// AdminAdjustBalance applies a signed manual balance change. Balances may go
// negative here: the hard floor applies only to order payments.
func (s *Service) AdminAdjustBalance(ctx context.Context, input AdjustBalanceInput) (AdjustBalanceResult, error) {
	if input.Amount == 0 {
		return AdjustBalanceResult{}, errors.New(errors.CodeAdjustmentAmountZero, "adjustment amount must not be zero")
	}

	var result AdjustBalanceResult
	err := s.store.ExecuteUnit(ctx, "adjust_balance", func(ctx context.Context, unit storage.Unit) error {
		admin, err := requireAdmin(ctx, unit, input.AdminID)
		if err != nil {
			return err
		}

		user, err := requireActiveUser(ctx, unit, input.UserID)
		if err != nil {
			return err
		}

		description := input.Description
		now := s.nowUTC()
		operatorID := admin.ID

		var mutation ledgerMutation
		if input.Amount > 0 {
			if description == "" {
				description = fmt.Sprintf("recharge by admin %d", admin.ID)
			}
			mutation, err = s.credit(ctx, unit, user.ID, input.Amount, storage.LedgerTypeRecharge,
				nil, &operatorID, description, now)
		} else {
			if description == "" {
				description = fmt.Sprintf("adjustment by admin %d", admin.ID)
			}
			mutation, err = s.debit(ctx, unit, user.ID, -input.Amount, storage.LedgerTypeAdjustment,
				nil, &operatorID, description, now)
		}
		if err != nil {
			return err
		}

		result = AdjustBalanceResult{
			UserID:        user.ID,
			TransactionNo: mutation.TransactionNo,
			BalanceBefore: mutation.BalanceBefore,
			BalanceAfter:  mutation.BalanceAfter,
		}
		return nil
	})
	return result, err
}

// AdminSetUserStatus activates or suspends an account. Admins cannot change
// their own status.
func (s *Service) AdminSetUserStatus(ctx context.Context, adminID int64, userID int64, status storage.UserStatus) error {
	if status != storage.UserStatusActive && status != storage.UserStatusSuspended {
		return errors.New(errors.CodeUserStatusInvalid, fmt.Sprintf("status %q is not active or suspended", status))
	}
	if adminID == userID {
		return errors.New(errors.CodeUserSelfStatusChange, "admins cannot change their own status")
	}

	return s.store.ExecuteUnit(ctx, "set_user_status", func(ctx context.Context, unit storage.Unit) error {
		if _, err := requireAdmin(ctx, unit, adminID); err != nil {
			return err
		}
		if _, err := unit.GetUser(ctx, userID); err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return errors.New(errors.CodeUserNotFound, fmt.Sprintf("user %d not found", userID))
			}
			return err
		}
		return unit.UpdateUserStatus(ctx, userID, status, s.nowUTC())
	})
}

// AdminSetUserAdmin grants or revokes the admin flag. Admins cannot revoke
// their own flag, which keeps the system from locking every admin out.
func (s *Service) AdminSetUserAdmin(ctx context.Context, adminID int64, userID int64, isAdmin bool) error {
	if adminID == userID && !isAdmin {
		return errors.New(errors.CodeUserSelfAdminRevoke, "admins cannot revoke their own admin flag")
	}

	return s.store.ExecuteUnit(ctx, "set_user_admin", func(ctx context.Context, unit storage.Unit) error {
		if _, err := requireAdmin(ctx, unit, adminID); err != nil {
			return err
		}
		if _, err := unit.GetUser(ctx, userID); err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return errors.New(errors.CodeUserNotFound, fmt.Sprintf("user %d not found", userID))
			}
			return err
		}
		return unit.UpdateUserAdmin(ctx, userID, isAdmin, s.nowUTC())
	})
}
