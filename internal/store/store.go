// Package store holds the four Modbus address spaces -- coils, discrete
// inputs, holding registers, and input registers -- as sparse maps of
// configured entries, each backed by a generator. It performs refresh-if-due
// value production and assembles read responses, including bit overlay
// composition onto holding/input words.
package store

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"modbus-tcp-sim/internal/generator"
	"modbus-tcp-sim/internal/typepack"
)

// Space names an address space.
type Space int

const (
	Coils Space = iota
	DiscreteInputs
	HoldingRegisters
	InputRegisters
)

const (
	maxBitReadQuantity  = 2000
	maxWordReadQuantity = 125
)

// ChangeType selects how a BitEntry evolves: periodic or random. It only
// constrains which Generator kinds a caller should attach; the store itself
// just ticks whatever generator it is given.
type ChangeType string

const (
	ChangePeriodic ChangeType = "periodic"
	ChangeRandom   ChangeType = "random"
)

// Entry is one configured register: a declared type, its producer, and the
// refresh bookkeeping the store needs to decide when to regenerate it.
type Entry struct {
	Address     uint16
	Kind        typepack.Kind
	StrLen      int // only meaningful when Kind == typepack.String
	Generator   *generator.Generator
	Interval    time.Duration
	RangeLo     float64
	RangeHi     float64
	HasRange    bool
	Description string

	// seq orders installs so that overlapping multi-register entries
	// resolve deterministically: the entry installed last wins the words
	// it shares with an earlier one, instead of depending on map
	// iteration order.
	seq uint64

	mu          sync.Mutex
	lastRefresh time.Time
	cachedValue typepack.Value
}

// BitEntry is a miniature boolean entry composed onto one bit of a
// holding/input word.
type BitEntry struct {
	Bit         int
	ChangeType  ChangeType
	Generator   *generator.Generator
	Interval    time.Duration
	Description string

	mu          sync.Mutex
	lastRefresh time.Time
	cachedValue bool
}

// Overlay is the set of bit entries composed onto one base address.
type Overlay struct {
	BaseAddress uint16
	Bits        map[int]*BitEntry
}

// Store holds the four address spaces plus holding/input bit overlays.
type Store struct {
	mu       [4]sync.RWMutex
	entries  [4]map[uint16]*Entry
	overlays [2]map[uint16]*Overlay // indexed by HoldingRegisters/InputRegisters minus 2

	snapMu   sync.Mutex
	snapshot *snapshot

	installSeq uint64
}

type snapshot struct {
	entries  [4]map[uint16]*Entry
	overlays [2]map[uint16]*Overlay
}

// New builds an empty Store.
func New() *Store {
	s := &Store{}
	for i := range s.entries {
		s.entries[i] = make(map[uint16]*Entry)
	}
	for i := range s.overlays {
		s.overlays[i] = make(map[uint16]*Overlay)
	}
	return s
}

func overlayIndex(space Space) int {
	switch space {
	case HoldingRegisters:
		return 0
	case InputRegisters:
		return 1
	default:
		return -1
	}
}

// Width reports the register width of an entry given its declared kind.
func (e *Entry) Width() int {
	w, err := typepack.Width(e.Kind, e.StrLen)
	if err != nil {
		return 1
	}
	return w
}

func (e *Entry) refreshIfDue(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastRefresh.IsZero() || now.Sub(e.lastRefresh) >= e.Interval {
		e.regenerateLocked(now)
	}
}

func (e *Entry) regenerateLocked(now time.Time) {
	v, err := e.Generator.Tick(now)
	if err != nil {
		return
	}
	if e.HasRange && rangeClampable(e.Generator.Kind) {
		v = typepack.Clamp(v, e.RangeLo, e.RangeHi)
	}
	if isIntegerKind(e.Kind) {
		v = generator.RoundForIntegerKind(v)
	}
	e.cachedValue = typepack.Value{Kind: e.Kind, Num: v}
	e.lastRefresh = now
}

// rangeClampable excludes the unbounded cumulative counters from range
// clamping, per spec.md's generator-output clamp rule.
func rangeClampable(k generator.Kind) bool {
	return k != generator.Ramp && k != generator.RandomIncrement
}

func isIntegerKind(k typepack.Kind) bool {
	switch k {
	case typepack.Int16, typepack.Uint16, typepack.Int32, typepack.Uint32, typepack.Bool:
		return true
	default:
		return false
	}
}

func (e *Entry) value(now time.Time) typepack.Value {
	e.refreshIfDue(now)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cachedValue
}

func (b *BitEntry) refreshIfDue(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastRefresh.IsZero() || now.Sub(b.lastRefresh) >= b.Interval {
		v, err := b.Generator.Tick(now)
		if err == nil {
			b.cachedValue = v != 0
			b.lastRefresh = now
		}
	}
	return b.cachedValue
}

// Install idempotently replaces the entry at e.Address in space, invoking
// its producer once immediately so current_cached_value is defined.
func (s *Store) Install(space Space, e *Entry) {
	now := time.Now()
	e.regenerateLocked(now)
	e.seq = atomic.AddUint64(&s.installSeq, 1)

	s.mu[space].Lock()
	defer s.mu[space].Unlock()
	s.entries[space][e.Address] = e
}

// InstallBitOverlay replaces any existing overlay at baseAddress in space.
func (s *Store) InstallBitOverlay(space Space, baseAddress uint16, bits []*BitEntry) {
	idx := overlayIndex(space)
	if idx < 0 {
		return
	}
	now := time.Now()
	overlay := &Overlay{BaseAddress: baseAddress, Bits: make(map[int]*BitEntry, len(bits))}
	for _, b := range bits {
		b.refreshIfDue(now)
		overlay.Bits[b.Bit] = b
	}

	s.mu[space].Lock()
	defer s.mu[space].Unlock()
	s.overlays[idx][baseAddress] = overlay
}

// ReadCoils returns count booleans starting at start, false for unconfigured
// addresses. count is first capped at 2000.
func (s *Store) ReadCoils(start, count uint16) []bool {
	return s.readBits(Coils, start, count)
}

// ReadDiscreteInputs returns count booleans starting at start, false for
// unconfigured addresses. count is first capped at 2000.
func (s *Store) ReadDiscreteInputs(start, count uint16) []bool {
	return s.readBits(DiscreteInputs, start, count)
}

func (s *Store) readBits(space Space, start, count uint16) []bool {
	if count > maxBitReadQuantity {
		count = maxBitReadQuantity
	}
	now := time.Now()
	out := make([]bool, count)

	s.mu[space].RLock()
	defer s.mu[space].RUnlock()
	for i := uint16(0); i < count; i++ {
		addr := start + i
		if e, ok := s.entries[space][addr]; ok {
			out[i] = e.value(now).Num != 0
		}
	}
	return out
}

// ReadHolding assembles exactly count 16-bit words starting at start from
// HOLDING_REGISTERS, composing bit overlays on top. count is first capped at
// 125.
func (s *Store) ReadHolding(start, count uint16) []uint16 {
	return s.readWords(HoldingRegisters, start, count)
}

// ReadInput assembles exactly count 16-bit words starting at start from
// INPUT_REGISTERS, composing bit overlays on top. count is first capped at
// 125.
func (s *Store) ReadInput(start, count uint16) []uint16 {
	return s.readWords(InputRegisters, start, count)
}

func (s *Store) readWords(space Space, start, count uint16) []uint16 {
	if count > maxWordReadQuantity {
		count = maxWordReadQuantity
	}
	now := time.Now()
	out := make([]uint16, count)
	if count == 0 {
		return out
	}
	winStart := int(start)
	winEnd := winStart + int(count)

	s.mu[space].RLock()
	defer s.mu[space].RUnlock()

	overlapping := make([]*Entry, 0, len(s.entries[space]))
	for _, e := range s.entries[space] {
		eEnd := int(e.Address) + e.Width()
		if eEnd <= winStart || int(e.Address) >= winEnd {
			continue
		}
		overlapping = append(overlapping, e)
	}
	sort.Slice(overlapping, func(i, j int) bool { return overlapping[i].seq < overlapping[j].seq })

	for _, e := range overlapping {
		eStart := int(e.Address)
		v := e.value(now)
		packed, err := typepack.Pack(v)
		if err != nil {
			continue
		}
		// Copy the overlapping slice of packed words into out, skipping any
		// leading words that fall before the window.
		for wi := 0; wi < len(packed); wi++ {
			addr := eStart + wi
			if addr < winStart || addr >= winEnd {
				continue
			}
			out[addr-winStart] = packed[wi]
		}
	}

	idx := overlayIndex(space)
	if idx >= 0 {
		for addr := uint16(winStart); int(addr) < winEnd; addr++ {
			overlay, ok := s.overlays[idx][addr]
			if !ok {
				continue
			}
			pos := int(addr) - winStart
			word := out[pos]
			for bit, be := range overlay.Bits {
				set := be.refreshIfDue(now)
				if set {
					word |= 1 << uint(bit)
				} else {
					word &^= 1 << uint(bit)
				}
			}
			out[pos] = word
		}
	}

	return out
}

func cloneEntry(e *Entry) *Entry {
	c := &Entry{
		Address:     e.Address,
		Kind:        e.Kind,
		StrLen:      e.StrLen,
		Interval:    e.Interval,
		RangeLo:     e.RangeLo,
		RangeHi:     e.RangeHi,
		HasRange:    e.HasRange,
		Description: e.Description,
		seq:         e.seq,
	}
	if e.Generator != nil {
		c.Generator = e.Generator.Clone()
	}
	return c
}

// SnapshotOriginal deep-copies all configured entries and copies the overlay
// maps; the BitEntry values inside an overlay are shared with the live store,
// so their refresh timestamps and cached bits are not reset. Intended to be
// called once at server start.
func (s *Store) SnapshotOriginal() {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	snap := &snapshot{}
	for space := range s.entries {
		s.mu[space].RLock()
		snap.entries[space] = make(map[uint16]*Entry, len(s.entries[space]))
		for addr, e := range s.entries[space] {
			snap.entries[space][addr] = cloneEntry(e)
		}
		s.mu[space].RUnlock()
	}
	for i := range s.overlays {
		space := Space(HoldingRegisters)
		if i == 1 {
			space = InputRegisters
		}
		s.mu[space].RLock()
		snap.overlays[i] = make(map[uint16]*Overlay, len(s.overlays[i]))
		for addr, ov := range s.overlays[i] {
			snap.overlays[i][addr] = ov
		}
		s.mu[space].RUnlock()
	}
	s.snapshot = snap
}

// ResetToOriginal restores value, interval, range/step, and producer
// identity from the snapshot taken at SnapshotOriginal, discarding runtime
// counter state by re-invoking producers.
func (s *Store) ResetToOriginal() {
	s.snapMu.Lock()
	snap := s.snapshot
	s.snapMu.Unlock()
	if snap == nil {
		return
	}
	now := time.Now()
	for space := range s.entries {
		restored := make(map[uint16]*Entry, len(snap.entries[space]))
		for addr, e := range snap.entries[space] {
			fresh := cloneEntry(e)
			fresh.regenerateLocked(now)
			restored[addr] = fresh
		}
		s.mu[space].Lock()
		s.entries[space] = restored
		s.mu[space].Unlock()
	}
	for i := range s.overlays {
		space := Space(HoldingRegisters)
		if i == 1 {
			space = InputRegisters
		}
		restored := make(map[uint16]*Overlay, len(snap.overlays[i]))
		for addr, ov := range snap.overlays[i] {
			restored[addr] = ov
		}
		s.mu[space].Lock()
		s.overlays[i] = restored
		s.mu[space].Unlock()
	}
}
