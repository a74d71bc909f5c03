package ingest

import (
	"testing"
	"time"

	"modbus-tcp-sim/internal/generator"
	"modbus-tcp-sim/internal/store"
	"modbus-tcp-sim/internal/typepack"
)

func TestInstallRejectsUnknownSpace(t *testing.T) {
	in := New(store.New())
	err := in.Install("NOT_A_SPACE", EntrySpec{
		Kind: typepack.Int16, Interval: time.Second,
		Producer: ProducerDescriptor{Kind: generator.Constant},
	})
	if err == nil {
		t.Fatal("expected error for unknown space")
	}
}

func TestInstallRejectsNonPositiveInterval(t *testing.T) {
	in := New(store.New())
	err := in.Install("HOLDING_REGISTERS", EntrySpec{
		Kind: typepack.Int16, Interval: 0,
		Producer: ProducerDescriptor{Kind: generator.Constant},
	})
	if err == nil {
		t.Fatal("expected error for non-positive interval")
	}
}

func TestInstallRejectsCoilNonBool(t *testing.T) {
	in := New(store.New())
	err := in.Install("COILS", EntrySpec{
		Kind: typepack.Int16, Interval: time.Second,
		Producer: ProducerDescriptor{Kind: generator.Constant},
	})
	if err == nil {
		t.Fatal("expected error for non-bool coil entry")
	}
}

func TestInstallRejectsShortRandomList(t *testing.T) {
	in := New(store.New())
	err := in.Install("HOLDING_REGISTERS", EntrySpec{
		Kind: typepack.Int16, Interval: time.Second,
		Producer: ProducerDescriptor{Kind: generator.RandomList, Values: []float64{1, 2}},
	})
	if err == nil {
		t.Fatal("expected error for random_list with < 3 values")
	}
}

func TestInstallAccepted(t *testing.T) {
	s := store.New()
	in := New(s)
	err := in.Install("HOLDING_REGISTERS", EntrySpec{
		Address: 0, Kind: typepack.Int16, Interval: time.Second,
		Producer: ProducerDescriptor{Kind: generator.Constant, Value: 1000},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := s.ReadHolding(0, 1)
	if got[0] != 0x03E8 {
		t.Fatalf("got 0x%04X, want 0x03E8", got[0])
	}
}

func TestInstallBitOverlayRejectsBadBitIndex(t *testing.T) {
	in := New(store.New())
	err := in.InstallBitOverlay("HOLDING_REGISTERS", 100, []BitSpec{
		{Bit: 16, ChangeType: store.ChangePeriodic, Interval: time.Second,
			Producer: ProducerDescriptor{Kind: generator.Constant, Value: 1}},
	})
	if err == nil {
		t.Fatal("expected error for bit index out of range")
	}
}

func TestInstallBitOverlayRejectsNonOverlaySpace(t *testing.T) {
	in := New(store.New())
	err := in.InstallBitOverlay("COILS", 0, []BitSpec{
		{Bit: 0, ChangeType: store.ChangePeriodic, Interval: time.Second,
			Producer: ProducerDescriptor{Kind: generator.Constant, Value: 1}},
	})
	if err == nil {
		t.Fatal("expected error for overlay on COILS")
	}
}

func TestResetAfterSnapshot(t *testing.T) {
	s := store.New()
	in := New(s)
	_ = in.Install("HOLDING_REGISTERS", EntrySpec{
		Address: 0, Kind: typepack.Int16, Interval: time.Hour,
		Producer: ProducerDescriptor{Kind: generator.Constant, Value: 5},
	})
	in.Snapshot()
	_ = in.Install("HOLDING_REGISTERS", EntrySpec{
		Address: 0, Kind: typepack.Int16, Interval: time.Hour,
		Producer: ProducerDescriptor{Kind: generator.Constant, Value: 9},
	})
	in.Reset()
	got := s.ReadHolding(0, 1)
	if got[0] != 5 {
		t.Fatalf("got %d, want 5 after reset", got[0])
	}
}
