package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// User errors
	CodeUserNotFound               Code = "USER_NOT_FOUND"
	CodeUserSuspended              Code = "USER_SUSPENDED"
	CodeUserNameEmpty              Code = "USER_NAME_EMPTY"
	CodeUserInitialBalanceNegative Code = "USER_INITIAL_BALANCE_NEGATIVE"
	CodeUserStatusInvalid          Code = "USER_STATUS_INVALID"
	CodeUserSelfStatusChange       Code = "USER_SELF_STATUS_CHANGE"
	CodeUserSelfAdminRevoke        Code = "USER_SELF_ADMIN_REVOKE"

	// Permission errors
	CodeNotAdmin      Code = "NOT_ADMIN"
	CodeOrderNotOwned Code = "ORDER_NOT_OWNED"

	// Addon errors
	CodeAddonNotFound  Code = "ADDON_NOT_FOUND"
	CodeAddonInactive  Code = "ADDON_INACTIVE"
	CodeAddonNameEmpty Code = "ADDON_NAME_EMPTY"
	CodeAddonNameTaken Code = "ADDON_NAME_TAKEN"
	CodeAddonInUse     Code = "ADDON_IN_USE"

	// Meal errors
	CodeMealNotFound                Code = "MEAL_NOT_FOUND"
	CodeMealDateInvalid             Code = "MEAL_DATE_INVALID"
	CodeMealSlotInvalid             Code = "MEAL_SLOT_INVALID"
	CodeMealSlotTaken               Code = "MEAL_SLOT_TAKEN"
	CodeMealCapacityInvalid         Code = "MEAL_CAPACITY_INVALID"
	CodeMealCapacityBelowOrders     Code = "MEAL_CAPACITY_BELOW_ORDERS"
	CodeMealInvalidStatusTransition Code = "MEAL_INVALID_STATUS_TRANSITION"
	CodeMealNotOrderable            Code = "MEAL_NOT_ORDERABLE"
	CodeMealFull                    Code = "MEAL_FULL"

	// Order errors
	CodeOrderNotFound            Code = "ORDER_NOT_FOUND"
	CodeOrderNotActive           Code = "ORDER_NOT_ACTIVE"
	CodeOrderDuplicateActive     Code = "ORDER_DUPLICATE_ACTIVE"
	CodeOrderAddonNotAllowed     Code = "ORDER_ADDON_NOT_ALLOWED"
	CodeOrderAddonQuantity       Code = "ORDER_ADDON_QUANTITY_INVALID"
	CodeOrderInsufficientBalance Code = "ORDER_INSUFFICIENT_BALANCE"
	CodeOrderMealNotCancelable   Code = "ORDER_MEAL_NOT_CANCELABLE"

	// Ledger errors
	CodeAdjustmentAmountZero Code = "ADJUSTMENT_AMOUNT_ZERO"
)

// Kind groups codes into the coarse taxonomy API callers branch on.
type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindValidation   Kind = "validation"
	KindBusinessRule Kind = "business_rule"
	KindPermission   Kind = "permission"
	KindNotFound     Kind = "not_found"
)

// Kind returns the taxonomy bucket for this code.
func (c Code) Kind() Kind {
	switch c {
	// Validation - malformed or out-of-range input
	case CodeUserNameEmpty,
		CodeUserInitialBalanceNegative,
		CodeUserStatusInvalid,
		CodeAddonNameEmpty,
		CodeMealDateInvalid,
		CodeMealSlotInvalid,
		CodeMealCapacityInvalid,
		CodeOrderAddonQuantity,
		CodeAdjustmentAmountZero:
		return KindValidation

	// Business rule - state doesn't allow the operation
	case CodeUserSuspended,
		CodeUserSelfStatusChange,
		CodeUserSelfAdminRevoke,
		CodeAddonInactive,
		CodeAddonNameTaken,
		CodeAddonInUse,
		CodeMealSlotTaken,
		CodeMealCapacityBelowOrders,
		CodeMealInvalidStatusTransition,
		CodeMealNotOrderable,
		CodeMealFull,
		CodeOrderNotActive,
		CodeOrderDuplicateActive,
		CodeOrderAddonNotAllowed,
		CodeOrderInsufficientBalance,
		CodeOrderMealNotCancelable:
		return KindBusinessRule

	// Permission - actor lacks rights over the resource
	case CodeNotAdmin,
		CodeOrderNotOwned:
		return KindPermission

	// Not found - referenced entity is absent
	case CodeUserNotFound,
		CodeAddonNotFound,
		CodeMealNotFound,
		CodeOrderNotFound:
		return KindNotFound

	default:
		return KindUnknown
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c.Kind() {
	case KindValidation:
		return codes.InvalidArgument
	case KindBusinessRule:
		return codes.FailedPrecondition
	case KindPermission:
		return codes.PermissionDenied
	case KindNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}
