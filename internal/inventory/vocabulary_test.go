package inventory

import (
	"testing"
)

func TestOperationDirection(t *testing.T) {
	tests := []struct {
		name string
		op   OperationType
		want MovementType
	}{
		{"birth is an entry", OpBirth, MovementEntry},
		{"purchase is an entry", OpPurchase, MovementEntry},
		{"balance adjust is an entry", OpBalanceAdjust, MovementEntry},
		{"weaning in is an entry", OpWeaningIn, MovementEntry},
		{"transfer in is an entry", OpTransferIn, MovementEntry},
		{"category change in is an entry", OpCategoryChangeIn, MovementEntry},
		{"death is an exit", OpDeath, MovementExit},
		{"sale is an exit", OpSale, MovementExit},
		{"slaughter is an exit", OpSlaughter, MovementExit},
		{"donation is an exit", OpDonation, MovementExit},
		{"weaning out is an exit", OpWeaningOut, MovementExit},
		{"transfer out is an exit", OpTransferOut, MovementExit},
		{"category change out is an exit", OpCategoryChangeOut, MovementExit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.Direction(); got != tt.want {
				t.Errorf("Direction() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOperationValid(t *testing.T) {
	if !OpSale.Valid() {
		t.Error("Valid() = false for SALE, want true")
	}

	if OperationType("RUSTLING").Valid() {
		t.Error("Valid() = true for unknown operation, want false")
	}

	if OperationType("").Valid() {
		t.Error("Valid() = true for empty operation, want false")
	}
}

func TestOperationCompanionRequirements(t *testing.T) {
	tests := []struct {
		name            string
		op              OperationType
		requiresClient  bool
		requiresDeath   bool
	}{
		{"sale requires client", OpSale, true, false},
		{"donation requires client", OpDonation, true, false},
		{"death requires death reason", OpDeath, false, true},
		{"slaughter requires nothing", OpSlaughter, false, false},
		{"purchase requires nothing", OpPurchase, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.RequiresClient(); got != tt.requiresClient {
				t.Errorf("RequiresClient() = %v, want %v", got, tt.requiresClient)
			}

			if got := tt.op.RequiresDeathReason(); got != tt.requiresDeath {
				t.Errorf("RequiresDeathReason() = %v, want %v", got, tt.requiresDeath)
			}
		})
	}
}

func TestOperationPairing(t *testing.T) {
	paired := []OperationType{
		OpWeaningIn, OpWeaningOut,
		OpTransferIn, OpTransferOut,
		OpCategoryChangeIn, OpCategoryChangeOut,
	}

	for _, op := range paired {
		if !op.IsPaired() {
			t.Errorf("IsPaired() = false for %q, want true", op)
		}
	}

	standalone := []OperationType{OpBirth, OpPurchase, OpDeath, OpSale, OpSlaughter, OpDonation}

	for _, op := range standalone {
		if op.IsPaired() {
			t.Errorf("IsPaired() = true for %q, want false", op)
		}
	}
}

func TestOperationsByDirectionPartition(t *testing.T) {
	entries := EntryOperations()
	exits := ExitOperations()

	if got, want := len(entries)+len(exits), len(operationTable); got != want {
		t.Errorf("entry+exit operations = %d, want %d", got, want)
	}

	for _, op := range entries {
		if op.Direction() != MovementEntry {
			t.Errorf("EntryOperations() contains %q with direction %q", op, op.Direction())
		}
	}

	for _, op := range exits {
		if op.Direction() != MovementExit {
			t.Errorf("ExitOperations() contains %q with direction %q", op, op.Direction())
		}
	}
}

func TestSystemCategories(t *testing.T) {
	if got := len(SystemCategories); got != 9 {
		t.Fatalf("len(SystemCategories) = %d, want 9", got)
	}

	seen := make(map[string]bool, len(SystemCategories))

	for i, spec := range SystemCategories {
		if spec.Slug == "" {
			t.Errorf("SystemCategories[%d] has empty slug", i)
		}

		if seen[spec.Slug] {
			t.Errorf("duplicate system slug %q", spec.Slug)
		}

		seen[spec.Slug] = true

		if spec.DisplayOrder != i+1 {
			t.Errorf("SystemCategories[%d].DisplayOrder = %d, want %d", i, spec.DisplayOrder, i+1)
		}
	}
}

func TestWeaningRules(t *testing.T) {
	if got := WeaningRules[SlugMaleCalf]; got != SlugSteer2Y {
		t.Errorf("WeaningRules[%q] = %q, want %q", SlugMaleCalf, got, SlugSteer2Y)
	}

	if got := WeaningRules[SlugFemaleCalf]; got != SlugHeifer2Y {
		t.Errorf("WeaningRules[%q] = %q, want %q", SlugFemaleCalf, got, SlugHeifer2Y)
	}

	// Every slug referenced by the rules must be a system category.
	system := make(map[string]bool, len(SystemCategories))
	for _, spec := range SystemCategories {
		system[spec.Slug] = true
	}

	for source, target := range WeaningRules {
		if !system[source] {
			t.Errorf("weaning source %q is not a system category", source)
		}

		if !system[target] {
			t.Errorf("weaning target %q is not a system category", target)
		}
	}
}
