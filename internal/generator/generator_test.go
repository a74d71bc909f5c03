package generator

import (
	"testing"
	"time"
)

func TestConstant(t *testing.T) {
	g := New(Constant)
	g.Value = 42
	for i := 0; i < 3; i++ {
		v, err := g.Tick(time.Now())
		if err != nil || v != 42 {
			t.Fatalf("got %v, %v", v, err)
		}
	}
}

func TestRandomUniformRange(t *testing.T) {
	g := New(RandomUniform)
	g.Lo, g.Hi = 10, 20
	for i := 0; i < 200; i++ {
		v, err := g.Tick(time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if v < 10 || v > 20 {
			t.Fatalf("out of range: %v", v)
		}
	}
}

func TestRandomBoolRange(t *testing.T) {
	g := New(RandomBool)
	seen := map[float64]bool{}
	for i := 0; i < 200; i++ {
		v, _ := g.Tick(time.Now())
		if v != 0 && v != 1 {
			t.Fatalf("got %v, want 0 or 1", v)
		}
		seen[v] = true
	}
}

func TestRandomListChoice(t *testing.T) {
	g := New(RandomList)
	g.Values = []float64{1, 2, 3}
	for i := 0; i < 100; i++ {
		v, err := g.Tick(time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if v != 1 && v != 2 && v != 3 {
			t.Fatalf("got %v, not in list", v)
		}
	}
}

func TestRandomListValidation(t *testing.T) {
	g := New(RandomList)
	g.Values = []float64{1, 2}
	if err := g.Validate(); err == nil {
		t.Fatal("expected validation error for < 3 values")
	}
}

func TestPeriodicBool(t *testing.T) {
	g := New(PeriodicBool)
	g.Period = 10
	firstHalf := time.Unix(100, 0) // 100 mod 10 = 0 < 5
	secondHalf := time.Unix(106, 0) // 106 mod 10 = 6 >= 5
	v, err := g.Tick(firstHalf)
	if err != nil || v != 1 {
		t.Fatalf("first half: got %v, %v", v, err)
	}
	v, err = g.Tick(secondHalf)
	if err != nil || v != 0 {
		t.Fatalf("second half: got %v, %v", v, err)
	}
}

func TestRampAccumulatesAndWraps(t *testing.T) {
	g := New(Ramp)
	g.Start, g.Step, g.Modulus = 0, 3, 10
	want := []float64{3, 6, 9, 2, 5, 8}
	for i, w := range want {
		v, err := g.Tick(time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if v != w {
			t.Fatalf("tick %d: got %v, want %v", i, v, w)
		}
	}
}

func TestRandomIncrementNotClampedToRangeButCapped(t *testing.T) {
	g := New(RandomIncrement)
	g.Start, g.StepLo, g.StepHi, g.MaxCap = 0, 5, 5, 12
	v1, _ := g.Tick(time.Now())
	if v1 != 5 {
		t.Fatalf("got %v, want 5", v1)
	}
	v2, _ := g.Tick(time.Now())
	if v2 != 10 {
		t.Fatalf("got %v, want 10", v2)
	}
	v3, _ := g.Tick(time.Now())
	// accumulator would be 15, exceeds MaxCap=12, wraps via mod.
	if v3 != 3 {
		t.Fatalf("got %v, want 3 after wrap", v3)
	}
}

func TestSineRoundedForIntegerKind(t *testing.T) {
	g := New(Sine)
	g.Amplitude, g.Offset, g.Frequency = 500, 1000, 0.1
	v, err := g.Tick(time.Unix(1000, 0))
	if err != nil {
		t.Fatal(err)
	}
	if v < 500 || v > 1500 {
		t.Fatalf("sine output %v out of amplitude+offset envelope", v)
	}
	rounded := RoundForIntegerKind(v)
	if rounded != float64(int64(rounded)) {
		t.Fatalf("rounded value %v is not integral", rounded)
	}
}

func TestTimeFull(t *testing.T) {
	g := New(TimeFull)
	now := time.Unix(1700000000, 0)
	v, _ := g.Tick(now)
	if v != 1700000000 {
		t.Fatalf("got %v", v)
	}
}

func TestTimeHMS(t *testing.T) {
	g := New(TimeHMS)
	now := time.Date(2026, 7, 31, 13, 5, 9, 0, time.Local)
	v, _ := g.Tick(now)
	if v != 130509 {
		t.Fatalf("got %v, want 130509", v)
	}
}

func TestTimeYMD(t *testing.T) {
	g := New(TimeYMD)
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.Local)
	v, _ := g.Tick(now)
	if v != 20260731 {
		t.Fatalf("got %v, want 20260731", v)
	}
}

func TestTimeHMOrMDHMThresholds(t *testing.T) {
	now := time.Date(2026, 7, 31, 13, 5, 0, 0, time.Local)

	g := New(TimeHMOrMDHM)
	g.Max = 2359
	v, _ := g.Tick(now)
	if v != 1305 {
		t.Fatalf("HHMM branch: got %v, want 1305", v)
	}

	g2 := New(TimeHMOrMDHM)
	g2.Max = 12312359
	v2, _ := g2.Tick(now)
	if v2 != 7311305 {
		t.Fatalf("MMDDHHMM branch: got %v, want 7311305", v2)
	}

	g3 := New(TimeHMOrMDHM)
	g3.Max = 99999999999
	v3, _ := g3.Tick(now)
	if v3 < 0 || v3 > float64(g3.Max) {
		t.Fatalf("fallback branch out of bounds: %v", v3)
	}
}

func TestWeekdayFlag(t *testing.T) {
	g := New(WeekdayFlag)
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC) // a Monday
	saturday := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)
	v, _ := g.Tick(monday)
	if v != 1 {
		t.Fatalf("monday: got %v, want 1", v)
	}
	v, _ = g.Tick(saturday)
	if v != 0 {
		t.Fatalf("saturday: got %v, want 0", v)
	}
}

func TestBitCompositeIsLiteralZero(t *testing.T) {
	g := New(BitComposite)
	v, err := g.Tick(time.Now())
	if err != nil || v != 0 {
		t.Fatalf("got %v, %v", v, err)
	}
}
