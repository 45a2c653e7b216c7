package inventory

import "testing"

func TestMetadataClone(t *testing.T) {
	base := Metadata{
		MetaWeightKG:    250.5,
		MetaObservation: "lote da manhã",
	}

	clone := base.Clone()
	clone[MetaTransferKind] = TransferKindWeaning

	if _, ok := base[MetaTransferKind]; ok {
		t.Error("annotating a clone mutated the base map")
	}

	if clone.String(MetaObservation) != "lote da manhã" {
		t.Errorf("clone lost observation: %v", clone)
	}
}

func TestMetadataAccessors(t *testing.T) {
	m := Metadata{
		MetaWeightKG:   float64(312),
		MetaPrice:      1850,
		MetaSupplier:   "Leilão Regional",
		MetaSourceFarm: "farm-a",
	}

	if got, ok := m.Float(MetaWeightKG); !ok || got != 312 {
		t.Errorf("Float(weight_kg) = %v, %v", got, ok)
	}

	// ints appear when metadata is built in-process rather than decoded from JSON
	if got, ok := m.Float(MetaPrice); !ok || got != 1850 {
		t.Errorf("Float(price) = %v, %v", got, ok)
	}

	if _, ok := m.Float(MetaSupplier); ok {
		t.Error("Float() accepted a string value")
	}

	if got := m.String(MetaSupplier); got != "Leilão Regional" {
		t.Errorf("String(supplier) = %q", got)
	}

	if got := m.String("missing"); got != "" {
		t.Errorf("String(missing) = %q, want empty", got)
	}
}

func TestMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		m       Metadata
		wantErr bool
	}{
		{"empty metadata", Metadata{}, false},
		{"numeric weight", Metadata{MetaWeightKG: 280.0}, false},
		{"string weight rejected", Metadata{MetaWeightKG: "heavy"}, true},
		{"string price rejected", Metadata{MetaPrice: "R$ 1.850"}, true},
		{"unknown keys pass through", Metadata{"ear_tag": 4711, "vaccinated": true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()

			if tt.wantErr && err == nil {
				t.Error("Validate() = nil, want error")
			}

			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}
