package bootstrap

import (
	"testing"

	"modbus-tcp-sim/internal/ingest"
	"modbus-tcp-sim/internal/store"
)

func TestApplyFixedEntry(t *testing.T) {
	doc := Document{Spaces: map[string][]EntryDoc{
		"HOLDING_REGISTERS": {
			{Address: 0, Interval: 1, DataType: "int16", ValueKind: "fixed", Value: 1000},
		},
	}}
	s := store.New()
	in := ingest.New(s)
	if err := Apply(doc, in); err != nil {
		t.Fatal(err)
	}
	got := s.ReadHolding(0, 1)
	if got[0] != 0x03E8 {
		t.Fatalf("got 0x%04X, want 0x03E8", got[0])
	}
}

func TestApplyRandomListRequiresThreeValues(t *testing.T) {
	doc := Document{Spaces: map[string][]EntryDoc{
		"HOLDING_REGISTERS": {
			{Address: 0, Interval: 1, DataType: "int16", ValueKind: "random_list", List: []float64{1, 2}},
		},
	}}
	in := ingest.New(store.New())
	if err := Apply(doc, in); err == nil {
		t.Fatal("expected error for random_list with < 3 values")
	}
}

func TestApplyBitOverlay(t *testing.T) {
	doc := Document{Spaces: map[string][]EntryDoc{
		"HOLDING_REGISTERS": {
			{
				Address: 100, Interval: 1, DataType: "int16", ValueKind: "fixed", Value: 0,
				BitConfig: []BitDoc{
					{Bit: 0, ChangeType: "periodic", Interval: 1},
					{Bit: 7, ChangeType: "periodic", Interval: 1},
				},
			},
		},
	}}
	s := store.New()
	in := ingest.New(s)
	if err := Apply(doc, in); err != nil {
		t.Fatal(err)
	}
	// periodic_bool toggles on wall-clock time; just assert the overlay
	// installs and reads without error rather than pinning its phase.
	_ = s.ReadHolding(100, 1)
}

func TestRandomUniformNumericFollowsDataType(t *testing.T) {
	floatDoc := EntryDoc{DataType: "float32", ValueKind: "random_uniform", DataRange: []float64{0, 1}}
	p, err := toProducerDescriptor(floatDoc)
	if err != nil {
		t.Fatal(err)
	}
	if p.Numeric {
		t.Fatalf("float32 random_uniform should not round to an integer")
	}

	intDoc := EntryDoc{DataType: "int16", ValueKind: "random_uniform", DataRange: []float64{0, 1}}
	p, err = toProducerDescriptor(intDoc)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Numeric {
		t.Fatalf("int16 random_uniform should round to an integer")
	}
}

func TestApplyUnknownSpaceFails(t *testing.T) {
	doc := Document{Spaces: map[string][]EntryDoc{
		"NOT_A_SPACE": {
			{Address: 0, Interval: 1, DataType: "int16", ValueKind: "fixed", Value: 1},
		},
	}}
	in := ingest.New(store.New())
	if err := Apply(doc, in); err == nil {
		t.Fatal("expected error for unknown space")
	}
}
