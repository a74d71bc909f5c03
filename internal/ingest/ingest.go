// Package ingest is the configuration-ingest façade in front of the
// register store: it validates producer descriptors before they reach
// internal/store, reporting errors synchronously without disturbing a
// running server.
package ingest

import (
	"fmt"
	"time"

	"modbus-tcp-sim/internal/generator"
	"modbus-tcp-sim/internal/store"
	"modbus-tcp-sim/internal/typepack"
)

// ProducerDescriptor is the minimum information needed to build and later
// re-save a Generator: a kind tag plus its parameters.
type ProducerDescriptor struct {
	Kind      generator.Kind
	Value     float64
	Lo, Hi    float64
	Numeric   bool
	Values    []float64
	Period    float64
	Start     float64
	Step      float64
	Modulus   float64
	StepLo    float64
	StepHi    float64
	MaxCap    float64
	Amplitude float64
	Offset    float64
	Frequency float64
	Max       int64
}

// EntrySpec is the caller-facing shape for Install, before it is translated
// into a store.Entry.
type EntrySpec struct {
	Address     uint16
	Kind        typepack.Kind
	StrLen      int
	Producer    ProducerDescriptor
	Interval    time.Duration
	RangeLo     float64
	RangeHi     float64
	HasRange    bool
	Description string
}

// BitSpec is the caller-facing shape for one bit of InstallBitOverlay.
type BitSpec struct {
	Bit         int
	ChangeType  store.ChangeType
	Producer    ProducerDescriptor
	Interval    time.Duration
	Description string
}

// Ingest validates and applies register configuration against a store.Store.
type Ingest struct {
	store *store.Store
}

// New wraps s behind a validating façade.
func New(s *store.Store) *Ingest {
	return &Ingest{store: s}
}

var validSpaces = map[string]store.Space{
	"COILS":             store.Coils,
	"DISCRETE_INPUTS":   store.DiscreteInputs,
	"HOLDING_REGISTERS": store.HoldingRegisters,
	"INPUT_REGISTERS":   store.InputRegisters,
}

// SpaceByName resolves a persisted-config space name to a store.Space.
func SpaceByName(name string) (store.Space, error) {
	sp, ok := validSpaces[name]
	if !ok {
		return 0, fmt.Errorf("ingest: unknown address space %q", name)
	}
	return sp, nil
}

func buildGenerator(d ProducerDescriptor) (*generator.Generator, error) {
	g := generator.New(d.Kind)
	g.Value = d.Value
	g.Lo, g.Hi = d.Lo, d.Hi
	g.Numeric = d.Numeric
	g.Values = d.Values
	g.Period = d.Period
	g.Start, g.Step, g.Modulus = d.Start, d.Step, d.Modulus
	g.StepLo, g.StepHi, g.MaxCap = d.StepLo, d.StepHi, d.MaxCap
	g.Amplitude, g.Offset, g.Frequency = d.Amplitude, d.Offset, d.Frequency
	g.Max = d.Max
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Install validates spec and, if valid, installs it into the store.
func (in *Ingest) Install(spaceName string, spec EntrySpec) error {
	space, err := SpaceByName(spaceName)
	if err != nil {
		return err
	}
	if (space == store.Coils || space == store.DiscreteInputs) && spec.Kind != typepack.Bool {
		return fmt.Errorf("ingest: %s entries must be declared bool", spaceName)
	}
	if spec.Interval <= 0 {
		return fmt.Errorf("ingest: interval must be positive, got %v", spec.Interval)
	}
	if _, err := typepack.Width(spec.Kind, spec.StrLen); err != nil {
		return err
	}
	g, err := buildGenerator(spec.Producer)
	if err != nil {
		return err
	}
	in.store.Install(space, &store.Entry{
		Address:     spec.Address,
		Kind:        spec.Kind,
		StrLen:      spec.StrLen,
		Generator:   g,
		Interval:    spec.Interval,
		RangeLo:     spec.RangeLo,
		RangeHi:     spec.RangeHi,
		HasRange:    spec.HasRange,
		Description: spec.Description,
	})
	return nil
}

// InstallBitOverlay validates and installs a bit overlay on baseAddress.
// Only HOLDING_REGISTERS and INPUT_REGISTERS accept overlays.
func (in *Ingest) InstallBitOverlay(spaceName string, baseAddress uint16, bits []BitSpec) error {
	space, err := SpaceByName(spaceName)
	if err != nil {
		return err
	}
	if space != store.HoldingRegisters && space != store.InputRegisters {
		return fmt.Errorf("ingest: bit overlays are only valid on HOLDING_REGISTERS or INPUT_REGISTERS, got %s", spaceName)
	}
	entries := make([]*store.BitEntry, 0, len(bits))
	for _, b := range bits {
		if b.Bit < 0 || b.Bit > 15 {
			return fmt.Errorf("ingest: bit index %d out of range 0..15", b.Bit)
		}
		if b.ChangeType != store.ChangePeriodic && b.ChangeType != store.ChangeRandom {
			return fmt.Errorf("ingest: unknown bit change type %q", b.ChangeType)
		}
		if b.Interval <= 0 {
			return fmt.Errorf("ingest: bit interval must be positive, got %v", b.Interval)
		}
		g, err := buildGenerator(b.Producer)
		if err != nil {
			return err
		}
		entries = append(entries, &store.BitEntry{
			Bit:         b.Bit,
			ChangeType:  b.ChangeType,
			Generator:   g,
			Interval:    b.Interval,
			Description: b.Description,
		})
	}
	in.store.InstallBitOverlay(space, baseAddress, entries)
	return nil
}

// Reset restores the store to the snapshot taken by the last Snapshot call.
func (in *Ingest) Reset() {
	in.store.ResetToOriginal()
}

// Snapshot captures the current configuration as the restore point for Reset.
func (in *Ingest) Snapshot() {
	in.store.SnapshotOriginal()
}
