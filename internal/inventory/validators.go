package inventory

import "fmt"

// Pure validators. No side effects, no database access; they only enforce
// business invariants and return classified domain errors.

// RequirePositive fails with ErrInvalidQuantity unless q is strictly positive.
func RequirePositive(q int) error {
	if q <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, q)
	}

	return nil
}

// RequireKnownOperation fails with ErrInvalidOperation for operations outside
// the vocabulary.
func RequireKnownOperation(op OperationType) error {
	if !op.Valid() {
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidOperation, op)
	}

	return nil
}

// RequireDirection fails with ErrInvalidOperation when op does not classify to
// want. Entry operations must go through ExecuteEntry, exits through
// ExecuteExit; a mismatch is a caller bug.
func RequireDirection(op OperationType, want MovementType) error {
	if err := RequireKnownOperation(op); err != nil {
		return err
	}

	if op.Direction() != want {
		return fmt.Errorf("%w: operation %q is %s, not %s",
			ErrInvalidOperation, op, op.Direction(), want)
	}

	return nil
}

// RequireSufficient fails with ErrInsufficientStock when requested exceeds
// available. Farm and category names are only used in the error message.
func RequireSufficient(available, requested int, farm, category string) error {
	if requested > available {
		return insufficientStockError(farm, category, requested, available)
	}

	return nil
}

// RequireCompanions fails with ErrInvalidOperation when the companion
// reference an operation demands (client for SALE/DONATION, death reason for
// DEATH) is missing.
func RequireCompanions(op OperationType, clientID, deathReasonID string) error {
	if op.RequiresClient() && clientID == "" {
		return fmt.Errorf("%w: operation %q requires a client", ErrInvalidOperation, op)
	}

	if op.RequiresDeathReason() && deathReasonID == "" {
		return fmt.Errorf("%w: operation %q requires a death reason", ErrInvalidOperation, op)
	}

	return nil
}

// RequireTransferParams validates the farm pair of an inter-farm transfer:
// both present, and distinct.
func RequireTransferParams(sourceFarmID, targetFarmID string) error {
	if sourceFarmID == "" {
		return fmt.Errorf("%w: transfer requires a source farm", ErrInvalidOperation)
	}

	if targetFarmID == "" {
		return fmt.Errorf("%w: transfer requires a target farm", ErrInvalidOperation)
	}

	if sourceFarmID == targetFarmID {
		return fmt.Errorf("%w: transfer source and target farms must differ", ErrInvalidOperation)
	}

	return nil
}

// RequireCategoryChangeParams validates the category pair of a category
// change: both present, and distinct.
func RequireCategoryChangeParams(sourceCategoryID, targetCategoryID string) error {
	if sourceCategoryID == "" {
		return fmt.Errorf("%w: category change requires a source category", ErrInvalidOperation)
	}

	if targetCategoryID == "" {
		return fmt.Errorf("%w: category change requires a target category", ErrInvalidOperation)
	}

	if sourceCategoryID == targetCategoryID {
		return fmt.Errorf("%w: category change source and target must differ", ErrInvalidOperation)
	}

	return nil
}

// RequireWeaningParams validates a weaning request: farm present, quantities
// non-negative, and at least one strictly positive.
func RequireWeaningParams(farmID string, males, females int) error {
	if farmID == "" {
		return fmt.Errorf("%w: weaning requires a farm", ErrInvalidOperation)
	}

	if males < 0 || females < 0 {
		return fmt.Errorf("%w: weaning quantities cannot be negative (males=%d, females=%d)",
			ErrInvalidOperation, males, females)
	}

	if males == 0 && females == 0 {
		return fmt.Errorf("%w: weaning requires at least one positive quantity", ErrInvalidOperation)
	}

	return nil
}
