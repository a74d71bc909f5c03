// Package generator implements the time-driven value producers that back
// register entries: constants, random draws, periodic waveforms, ramps, and
// wall-clock readouts. Each Generator is a tagged variant carrying only the
// state its kind needs, ticked by the register store when a refresh is due.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Kind discriminates the generator variant.
type Kind string

const (
	Constant        Kind = "constant"
	RandomUniform   Kind = "random_uniform"
	RandomBool      Kind = "random_bool"
	RandomList      Kind = "random_list"
	PeriodicBool    Kind = "periodic_bool"
	Ramp            Kind = "ramp"
	RandomIncrement Kind = "random_increment"
	Sine            Kind = "sine"
	TimeFull        Kind = "time_full"
	TimeHMS         Kind = "time_hms"
	TimeYMD         Kind = "time_ymd"
	TimeHMOrMDHM    Kind = "time_hm_or_mdhm"
	WeekdayFlag     Kind = "weekday_flag"
	BitComposite    Kind = "bit_composite"
)

// Generator produces a numeric value on demand. Ramp and RandomIncrement
// carry an accumulator that persists across Tick calls; every other kind is
// stateless beyond its fixed parameters.
type Generator struct {
	Kind Kind

	// constant
	Value float64

	// random_uniform bounds
	Lo, Hi float64
	Numeric bool // random_uniform: true => integer draw, false => float draw

	// random_list
	Values []float64

	// periodic_bool
	Period float64

	// ramp
	Start, Step, Modulus float64

	// random_increment
	StepLo, StepHi, MaxCap float64

	// sine
	Amplitude, Offset, Frequency float64

	// time_hm_or_mdhm
	Max int64

	accumulator float64
	started     bool

	rng *rand.Rand
}

// New constructs a Generator of the given kind. Callers set the fields
// relevant to that kind before the first Tick.
func New(kind Kind) *Generator {
	return &Generator{Kind: kind, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Clone copies a generator's configuration but not its accumulated state,
// so a ramp or random_increment counter restarts from Start on reset.
func (g *Generator) Clone() *Generator {
	c := *g
	c.accumulator = 0
	c.started = false
	c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	return &c
}

// Validate reports a configuration error for this generator's kind, per the
// validation rules §7 assigns to the configuration-ingest collaborator.
func (g *Generator) Validate() error {
	switch g.Kind {
	case RandomList:
		if len(g.Values) < 3 {
			return fmt.Errorf("generator: random_list needs at least 3 values, got %d", len(g.Values))
		}
	case PeriodicBool:
		if g.Period <= 0 {
			return fmt.Errorf("generator: periodic_bool period must be positive")
		}
	case Ramp:
		if g.Modulus == 0 {
			return fmt.Errorf("generator: ramp modulus must be nonzero")
		}
	}
	return nil
}

// Tick computes the next value for now, the current real time. Monotonic
// time is not used here: ramp/random_increment do not depend on time at all,
// and the wall-clock kinds (time_*, weekday_flag, sine) must track the wall
// clock directly so a system clock jump does not create a refresh storm --
// the register store, not the generator, owns the refresh-if-due decision.
func (g *Generator) Tick(now time.Time) (float64, error) {
	switch g.Kind {
	case Constant:
		return g.Value, nil

	case RandomUniform:
		if g.Hi < g.Lo {
			g.Lo, g.Hi = g.Hi, g.Lo
		}
		v := g.Lo + g.rng.Float64()*(g.Hi-g.Lo)
		if g.Numeric {
			v = math.Round(v)
		}
		return v, nil

	case RandomBool:
		if g.rng.Intn(2) == 1 {
			return 1, nil
		}
		return 0, nil

	case RandomList:
		if len(g.Values) == 0 {
			return 0, fmt.Errorf("generator: random_list has no values")
		}
		return g.Values[g.rng.Intn(len(g.Values))], nil

	case PeriodicBool:
		if g.Period <= 0 {
			return 0, fmt.Errorf("generator: periodic_bool period must be positive")
		}
		t := math.Mod(math.Floor(float64(now.Unix())), g.Period)
		if t < g.Period/2 {
			return 1, nil
		}
		return 0, nil

	case Ramp:
		if !g.started {
			g.accumulator = g.Start
			g.started = true
		}
		g.accumulator += g.Step
		if g.Modulus != 0 {
			g.accumulator = math.Mod(g.accumulator, g.Modulus)
			if g.accumulator < 0 {
				g.accumulator += math.Abs(g.Modulus)
			}
		}
		return g.accumulator, nil

	case RandomIncrement:
		if !g.started {
			g.accumulator = g.Start
			g.started = true
		}
		lo, hi := g.StepLo, g.StepHi
		if hi < lo {
			lo, hi = hi, lo
		}
		step := lo + g.rng.Float64()*(hi-lo)
		g.accumulator += step
		if g.MaxCap != 0 && g.accumulator > g.MaxCap {
			g.accumulator = math.Mod(g.accumulator, g.MaxCap)
		}
		return g.accumulator, nil

	case Sine:
		return g.Amplitude*math.Sin(float64(now.UnixNano())/1e9*g.Frequency) + g.Offset, nil

	case TimeFull:
		return float64(now.Unix()), nil

	case TimeHMS:
		return float64(now.Hour()*10000 + now.Minute()*100 + now.Second()), nil

	case TimeYMD:
		return float64(now.Year()*10000 + int(now.Month())*100 + now.Day()), nil

	case TimeHMOrMDHM:
		switch {
		case g.Max <= 2359:
			return float64(now.Hour()*100 + now.Minute()), nil
		case g.Max <= 12312359:
			return float64(int(now.Month())*1000000 + now.Day()*10000 + now.Hour()*100 + now.Minute()), nil
		default:
			return float64(now.Unix() % (g.Max + 1)), nil
		}

	case WeekdayFlag:
		d := now.Weekday()
		if d >= time.Monday && d <= time.Friday {
			return 1, nil
		}
		return 0, nil

	case BitComposite:
		return 0, nil

	default:
		return 0, fmt.Errorf("generator: unknown kind %q", g.Kind)
	}
}

// RoundForIntegerKind rounds a generator's float output to the nearest
// integer, used by callers packing the value into an integer-declared
// register type. The register store applies it to every kind's output for
// integer declared types, since sine, random_increment and a non-Numeric
// random_uniform draw can all be fractional.
func RoundForIntegerKind(v float64) float64 {
	return math.Round(v)
}
