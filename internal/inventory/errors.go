package inventory

import (
	"errors"
	"fmt"
)

// Domain errors. Each carries a stable code callers can match with errors.Is;
// messages add context via %w wrapping at the call site.
var (
	// ErrInvalidQuantity is returned when a quantity is zero or negative.
	ErrInvalidQuantity = errors.New("INVALID_QUANTITY: quantity must be a positive integer")

	// ErrInsufficientStock is returned when an exit would drive a balance negative.
	ErrInsufficientStock = errors.New("INSUFFICIENT_STOCK: requested quantity exceeds available stock")

	// ErrStockBalanceNotFound is returned when no balance row exists for a
	// (farm, category) pair. Usually means the initialization signal never ran.
	ErrStockBalanceNotFound = errors.New("STOCK_BALANCE_NOT_FOUND: no stock balance for farm and category")

	// ErrConcurrencyConflict is returned when the optimistic version predicate
	// matches zero rows. The only domain error a caller may retry.
	ErrConcurrencyConflict = errors.New("CONCURRENCY_CONFLICT: stock balance was modified by another operation")

	// ErrInvalidOperation is returned on direction mismatch, missing companion
	// reference, or equal source/target in a composite operation.
	ErrInvalidOperation = errors.New("INVALID_OPERATION: operation is invalid in this context")

	// ErrWeaningCategoryNotFound is returned when a system category required by
	// the weaning rules is missing; the operator must run the seeder.
	ErrWeaningCategoryNotFound = errors.New("WEANING_CATEGORY_NOT_FOUND: system category required for weaning is missing")

	// ErrLedgerImmutable is returned on any attempt to update or delete a
	// persisted movement.
	ErrLedgerImmutable = errors.New("LEDGER_IMMUTABLE: ledger movements cannot be updated or deleted")
)

// ErrorCode returns the stable code for a domain error, or empty string for
// non-domain errors. The HTTP layer uses it to build problem responses.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return "INVALID_QUANTITY"
	case errors.Is(err, ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, ErrStockBalanceNotFound):
		return "STOCK_BALANCE_NOT_FOUND"
	case errors.Is(err, ErrConcurrencyConflict):
		return "CONCURRENCY_CONFLICT"
	case errors.Is(err, ErrInvalidOperation):
		return "INVALID_OPERATION"
	case errors.Is(err, ErrWeaningCategoryNotFound):
		return "WEANING_CATEGORY_NOT_FOUND"
	case errors.Is(err, ErrLedgerImmutable):
		return "LEDGER_IMMUTABLE"
	default:
		return ""
	}
}

// Retriable reports whether a caller may reasonably retry the operation that
// produced err. Only version conflicts qualify; everything else indicates a
// data or programming fault.
func Retriable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// insufficientStockError adds the figures a user needs to understand a
// rejected exit.
func insufficientStockError(farm, category string, requested, available int) error {
	return fmt.Errorf("%w: farm %q category %q: requested %d, available %d",
		ErrInsufficientStock, farm, category, requested, available)
}
