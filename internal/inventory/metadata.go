package inventory

import "fmt"

// Metadata is the free-form, JSON-compatible key-value map attached to every
// movement. Known keys get typed accessors below; unknown keys are preserved
// untouched so downstream consumers never lose data.
type Metadata map[string]any

// Well-known metadata keys. Composite operations use the counterparty keys to
// record the other half of the pair for audit.
const (
	MetaWeightKG       = "weight_kg"
	MetaPrice          = "price"
	MetaSupplier       = "supplier"
	MetaObservation    = "observation"
	MetaTransferKind   = "transfer_kind"
	MetaSourceFarm     = "source_farm_id"
	MetaTargetFarm     = "target_farm_id"
	MetaSourceCategory = "source_category_id"
	MetaTargetCategory = "target_category_id"
)

// Transfer kinds recorded under MetaTransferKind.
const (
	TransferKindFarm     = "transfer"
	TransferKindCategory = "category_change"
	TransferKindWeaning  = "weaning"
)

// Clone returns a shallow copy, so callers can annotate a shared base map
// without aliasing.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+4)

	for k, v := range m {
		out[k] = v
	}

	return out
}

// String returns the value under key as a string, or "" when absent or not a
// string.
func (m Metadata) String(key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}

	return ""
}

// Float returns the value under key as a float64. JSON decoding produces
// float64 for all numbers, so this covers weights and prices.
func (m Metadata) Float(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// Validate rejects values that cannot round-trip through JSON. Only the known
// numeric keys are type-checked; unknown keys pass through.
func (m Metadata) Validate() error {
	for _, key := range []string{MetaWeightKG, MetaPrice} {
		v, present := m[key]
		if !present {
			continue
		}

		switch v.(type) {
		case float64, int:
		default:
			return fmt.Errorf("metadata key %q must be numeric, got %T", key, v)
		}
	}

	return nil
}
