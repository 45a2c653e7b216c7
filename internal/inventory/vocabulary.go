// Package inventory provides the domain model for the herd inventory ledger:
// movement vocabulary, entity types, pure validators, and the domain error
// taxonomy shared by the storage engine and the API layer.
package inventory

// MovementType is the fundamental direction of a ledger event.
type MovementType string

const (
	// MovementEntry increases a stock balance.
	MovementEntry MovementType = "ENTRY"
	// MovementExit decreases a stock balance.
	MovementExit MovementType = "EXIT"
)

// OperationType is the specific business operation behind a ledger event.
// Every operation classifies to exactly one MovementType; the classification
// lives here so it is never scattered across call sites.
type OperationType string

// Entry operations.
const (
	OpBirth            OperationType = "BIRTH"
	OpPurchase         OperationType = "PURCHASE"
	OpBalanceAdjust    OperationType = "BALANCE_ADJUST"
	OpWeaningIn        OperationType = "WEANING_IN"
	OpTransferIn       OperationType = "TRANSFER_IN"
	OpCategoryChangeIn OperationType = "CATEGORY_CHANGE_IN"
)

// Exit operations.
const (
	OpDeath             OperationType = "DEATH"
	OpSale              OperationType = "SALE"
	OpSlaughter         OperationType = "SLAUGHTER"
	OpDonation          OperationType = "DONATION"
	OpWeaningOut        OperationType = "WEANING_OUT"
	OpTransferOut       OperationType = "TRANSFER_OUT"
	OpCategoryChangeOut OperationType = "CATEGORY_CHANGE_OUT"
)

// operationClass carries the full classification of one operation.
type operationClass struct {
	direction          MovementType
	requiresClient     bool
	requiresDeathCause bool
	paired             bool
}

// operationTable is the single source of truth for operation classification.
var operationTable = map[OperationType]operationClass{
	OpBirth:             {direction: MovementEntry},
	OpPurchase:          {direction: MovementEntry},
	OpBalanceAdjust:     {direction: MovementEntry},
	OpWeaningIn:         {direction: MovementEntry, paired: true},
	OpTransferIn:        {direction: MovementEntry, paired: true},
	OpCategoryChangeIn:  {direction: MovementEntry, paired: true},
	OpDeath:             {direction: MovementExit, requiresDeathCause: true},
	OpSale:              {direction: MovementExit, requiresClient: true},
	OpSlaughter:         {direction: MovementExit},
	OpDonation:          {direction: MovementExit, requiresClient: true},
	OpWeaningOut:        {direction: MovementExit, paired: true},
	OpTransferOut:       {direction: MovementExit, paired: true},
	OpCategoryChangeOut: {direction: MovementExit, paired: true},
}

// Valid reports whether op is a known operation.
func (op OperationType) Valid() bool {
	_, ok := operationTable[op]

	return ok
}

// Direction returns the MovementType this operation classifies to.
// Unknown operations classify to the empty MovementType; callers must check
// Valid() first (the services do, via RequireKnownOperation).
func (op OperationType) Direction() MovementType {
	return operationTable[op].direction
}

// RequiresClient reports whether the operation must reference a client
// (buyer or donee).
func (op OperationType) RequiresClient() bool {
	return operationTable[op].requiresClient
}

// RequiresDeathReason reports whether the operation must reference a
// death reason.
func (op OperationType) RequiresDeathReason() bool {
	return operationTable[op].requiresDeathCause
}

// IsPaired reports whether the operation is one half of a composite
// operation (transfer, category change, weaning) and therefore carries a
// counterpart event in the same transaction.
func (op OperationType) IsPaired() bool {
	return operationTable[op].paired
}

// IsWeaning reports whether the operation belongs to the weaning process.
func (op OperationType) IsWeaning() bool {
	return op == OpWeaningIn || op == OpWeaningOut
}

// EntryOperations returns all operations that classify as ENTRY.
func EntryOperations() []OperationType {
	return operationsByDirection(MovementEntry)
}

// ExitOperations returns all operations that classify as EXIT.
func ExitOperations() []OperationType {
	return operationsByDirection(MovementExit)
}

func operationsByDirection(dir MovementType) []OperationType {
	// Stable order keeps list endpoints and tests deterministic.
	ordered := []OperationType{
		OpBirth, OpPurchase, OpBalanceAdjust,
		OpWeaningIn, OpTransferIn, OpCategoryChangeIn,
		OpDeath, OpSale, OpSlaughter, OpDonation,
		OpWeaningOut, OpTransferOut, OpCategoryChangeOut,
	}

	result := make([]OperationType, 0, len(ordered))

	for _, op := range ordered {
		if operationTable[op].direction == dir {
			result = append(result, op)
		}
	}

	return result
}

// System category slugs. These nine identifiers are reserved; system
// categories cannot be deactivated and their slug is immutable.
const (
	SlugBulls        = "touros"
	SlugCows         = "vacas"
	SlugMaleCalf     = "bezerro-macho"
	SlugFemaleCalf   = "bezerro-femea"
	SlugHeifer2Y     = "novilha-2a"
	SlugHeifer3Y     = "novilha-3a"
	SlugSteer2Y      = "bois-2a"
	SlugTeaser       = "rufiao"
	SlugFirstCalfCow = "vaca-primipara"
)

// SystemCategorySpec describes one of the nine pre-defined categories
// synchronized by the seeder.
type SystemCategorySpec struct {
	Slug         string
	Name         string
	Description  string
	DisplayOrder int
}

// SystemCategories is the canonical definition of the nine system categories,
// in display order.
var SystemCategories = []SystemCategorySpec{
	{SlugBulls, "Touros", "Breeding bulls", 1},
	{SlugCows, "Vacas", "Breeding cows", 2},
	{SlugMaleCalf, "B. Macho", "Male calves (until weaning)", 3},
	{SlugFemaleCalf, "B. Fêmea", "Female calves (until weaning)", 4},
	{SlugHeifer2Y, "Nov. - 2A.", "Two-year-old heifers", 5},
	{SlugHeifer3Y, "Nov. - 3A.", "Three-year-old heifers", 6},
	{SlugSteer2Y, "Bois - 2A.", "Two-year-old steers", 7},
	{SlugTeaser, "Rufião", "Teaser bull", 8},
	{SlugFirstCalfCow, "V. Primip", "First-calf cows", 9},
}

// WeaningRules maps weaning source slug to target slug. This table drives
// ExecuteWeaning; changing it changes which category pairs a weaning touches.
var WeaningRules = map[string]string{
	SlugMaleCalf:   SlugSteer2Y,
	SlugFemaleCalf: SlugHeifer2Y,
}
