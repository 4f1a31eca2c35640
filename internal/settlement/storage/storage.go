// Package storage defines the persistence boundary for the settlement core.
//
// Records mirror the five settlement tables. All mutating access happens
// through a Unit obtained from Store.ExecuteUnit: the unit is atomic, commits
// once, and rolls back wholly when any operation inside it fails.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the referenced row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write violated a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
)

// UserStatus is the account lifecycle state.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// AddonStatus marks whether an addon is selectable on new meals.
type AddonStatus string

const (
	AddonStatusActive   AddonStatus = "active"
	AddonStatusInactive AddonStatus = "inactive"
)

// MealStatus is the meal slot lifecycle state.
type MealStatus string

const (
	MealStatusPublished MealStatus = "published"
	MealStatusLocked    MealStatus = "locked"
	MealStatusCompleted MealStatus = "completed"
	MealStatusCanceled  MealStatus = "canceled"
)

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"
	OrderStatusCanceled  OrderStatus = "canceled"
	OrderStatusCompleted OrderStatus = "completed"
)

// LedgerType classifies a ledger entry.
type LedgerType string

const (
	LedgerTypeRecharge   LedgerType = "recharge"
	LedgerTypeOrder      LedgerType = "order"
	LedgerTypeRefund     LedgerType = "refund"
	LedgerTypeAdjustment LedgerType = "adjustment"
)

// LedgerDirection records whether an entry moved funds in or out.
type LedgerDirection string

const (
	DirectionIn  LedgerDirection = "in"
	DirectionOut LedgerDirection = "out"
)

// User is one account row. Balance is in minor currency units and is mutated
// only through the ledger path.
type User struct {
	ID          int64
	DisplayName string
	Balance     int64
	IsAdmin     bool
	Status      UserStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Addon is one optional priced modifier row.
type Addon struct {
	ID           int64
	Name         string
	Price        int64
	DisplayOrder int
	IsDefault    bool
	Status       AddonStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Meal is one date+slot offering. AddonConfig maps addon id to the maximum
// selectable quantity; it is decoded from its JSON column at this boundary so
// callers never see serialized text.
type Meal struct {
	ID             int64
	Date           string
	Slot           string
	Description    string
	BasePrice      int64
	AddonConfig    map[int64]int64
	MaxOrders      int
	CurrentOrders  int
	Status         MealStatus
	CanceledAt     *time.Time
	CanceledBy     *int64
	CanceledReason string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Order is one user order with its amount frozen at creation time.
type Order struct {
	ID              int64
	UserID          int64
	MealID          int64
	Amount          int64
	AddonSelections map[int64]int64
	Status          OrderStatus
	CanceledAt      *time.Time
	CanceledReason  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LedgerEntry is one immutable, append-only balance audit row.
type LedgerEntry struct {
	ID            int64
	TransactionNo string
	UserID        int64
	Type          LedgerType
	Direction     LedgerDirection
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	OrderID       *int64
	OperatorID    *int64
	Description   string
	CreatedAt     time.Time
}

// UnitOp is one step inside a unit of work.
type UnitOp func(ctx context.Context, unit Unit) error

// Store opens units of work against the settlement tables.
//
// ExecuteUnit begins one atomic unit, executes the ops in order, and commits
// after the last succeeds. If any op returns an error the whole unit rolls
// back and that error propagates unchanged. Units are not nestable; a
// composite business operation must be a single op inside one unit. The name
// labels the unit for tracing.
type Store interface {
	ExecuteUnit(ctx context.Context, name string, ops ...UnitOp) error
	Close() error
}

// Unit is the transactional surface available inside one unit of work.
type Unit interface {
	GetUser(ctx context.Context, id int64) (User, error)
	InsertUser(ctx context.Context, user User) (int64, error)
	UpdateUserBalance(ctx context.Context, id int64, balance int64, at time.Time) error
	UpdateUserStatus(ctx context.Context, id int64, status UserStatus, at time.Time) error
	UpdateUserAdmin(ctx context.Context, id int64, isAdmin bool, at time.Time) error

	GetAddon(ctx context.Context, id int64) (Addon, error)
	FindActiveAddonByName(ctx context.Context, name string) (Addon, error)
	InsertAddon(ctx context.Context, addon Addon) (int64, error)
	UpdateAddonStatus(ctx context.Context, id int64, status AddonStatus, at time.Time) error
	ListMealsReferencingAddon(ctx context.Context, addonID int64) ([]Meal, error)

	GetMeal(ctx context.Context, id int64) (Meal, error)
	FindMealBySlot(ctx context.Context, date string, slot string) (Meal, error)
	InsertMeal(ctx context.Context, meal Meal) (int64, error)
	UpdateMealDetails(ctx context.Context, meal Meal) error
	UpdateMealStatus(ctx context.Context, id int64, status MealStatus, at time.Time) error
	CancelMeal(ctx context.Context, id int64, canceledBy int64, reason string, at time.Time) error
	AdjustMealOrderCount(ctx context.Context, id int64, delta int, at time.Time) error
	SetMealOrderCount(ctx context.Context, id int64, count int, at time.Time) error

	GetOrder(ctx context.Context, id int64) (Order, error)
	FindActiveOrder(ctx context.Context, userID int64, mealID int64) (Order, error)
	ListActiveOrdersByMeal(ctx context.Context, mealID int64) ([]Order, error)
	InsertOrder(ctx context.Context, order Order) (int64, error)
	CancelOrder(ctx context.Context, id int64, reason string, at time.Time) error
	CompleteActiveOrdersByMeal(ctx context.Context, mealID int64, at time.Time) ([]int64, error)

	MaxLedgerSequence(ctx context.Context, transactionPrefix string) (int64, error)
	AppendLedgerEntry(ctx context.Context, entry LedgerEntry) (int64, error)
	LatestLedgerEntry(ctx context.Context, userID int64) (LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, userID int64) ([]LedgerEntry, error)
	CountActiveOrdersByMeal(ctx context.Context, mealID int64) (int, error)
}
