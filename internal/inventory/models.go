package inventory

import "time"

type (
	// Farm is a physical location holding stock. Created by external CRUD;
	// creation triggers balance materialization for all active categories.
	Farm struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Active    bool      `json:"active"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// AnimalCategory classifies heads of cattle. System categories carry one
	// of the nine reserved slugs and can never be deactivated; custom
	// categories have no slug.
	AnimalCategory struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Slug         string    `json:"slug,omitempty"`
		Description  string    `json:"description,omitempty"`
		IsSystem     bool      `json:"isSystem"`
		Active       bool      `json:"active"`
		DisplayOrder int       `json:"displayOrder"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// StockBalance is the consolidated snapshot for one (farm, category)
	// pair. It is a cache: the ledger is the source of truth, and the
	// snapshot must always equal the signed sum of the ledger.
	//
	// Invariants: CurrentQuantity >= 0; Version increases by one on every
	// successful mutation.
	StockBalance struct {
		ID              string    `json:"id"`
		FarmID          string    `json:"farmId"`
		CategoryID      string    `json:"categoryId"`
		CurrentQuantity int       `json:"currentQuantity"`
		Version         int64     `json:"version"`
		UpdatedAt       time.Time `json:"updatedAt"`
	}

	// Movement is one immutable ledger event. Timestamp is event time (may be
	// backdated by the caller); CreatedAt is insertion time.
	// RelatedMovementID links the entry leg of a composite operation back to
	// its exit leg; ledger immutability forbids linking the other way.
	Movement struct {
		ID                string        `json:"id"`
		BalanceID         string        `json:"balanceId"`
		FarmID            string        `json:"farmId"`
		CategoryID        string        `json:"categoryId"`
		MovementType      MovementType  `json:"movementType"`
		OperationType     OperationType `json:"operationType"`
		Quantity          int           `json:"quantity"`
		Timestamp         time.Time     `json:"timestamp"`
		RelatedMovementID string        `json:"relatedMovementId,omitempty"`
		ClientID          string        `json:"clientId,omitempty"`
		DeathReasonID     string        `json:"deathReasonId,omitempty"`
		Metadata          Metadata      `json:"metadata,omitempty"`
		CreatedBy         string        `json:"createdBy"`
		CreatedAt         time.Time     `json:"createdAt"`
		SourceIP          string        `json:"sourceIp,omitempty"`
	}

	// MovementPair is the (exit, entry) result of one leg of a composite
	// operation.
	MovementPair struct {
		Out *Movement `json:"out"`
		In  *Movement `json:"in"`
	}

	// Client is a buyer or donee. Owned by an external module; the core only
	// resolves references.
	Client struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// DeathReason is a mortality cause. Owned by an external module.
	DeathReason struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// Actor is the opaque user handle recorded on every movement. The core
	// does not authenticate; callers are trusted to have performed access
	// checks.
	Actor struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
)

// IsEntry reports whether the movement increased its balance.
func (m *Movement) IsEntry() bool {
	return m.MovementType == MovementEntry
}

// IsExit reports whether the movement decreased its balance.
func (m *Movement) IsExit() bool {
	return m.MovementType == MovementExit
}

// Signed returns the quantity with the sign of its direction, for ledger
// summation.
func (m *Movement) Signed() int {
	if m.MovementType == MovementExit {
		return -m.Quantity
	}

	return m.Quantity
}
