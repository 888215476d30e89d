package planner

import (
	"math"
	"testing"
)

// scheduleWeighing builds a one-crew schedule of a given served mass.
func scheduleWeighing(grams float64, complete bool) []Schedule {
	return []Schedule{{CrewName: "Alexis", MassG: grams, Complete: complete}}
}

func TestFindRationStopsAtFullWhenComplete(t *testing.T) {
	calls := 0
	plan := func(fraction float64) []Schedule {
		calls++
		return scheduleWeighing(50000, true)
	}
	got := FindRation(plan, 0.001, 0.6, 0.01)
	if got.Fraction != 1.0 || calls != 1 {
		t.Fatalf("fraction=%v calls=%d, want 1.0 after a single call", got.Fraction, calls)
	}
	if got.Warning != "" {
		t.Fatalf("unexpected warning %q", got.Warning)
	}
}

func TestFindRationStopsWhenMassFits(t *testing.T) {
	// Served mass shrinks linearly with the fraction; incomplete throughout,
	// so only the mass condition can stop the scan.
	plan := func(fraction float64) []Schedule {
		return scheduleWeighing(fraction*10000, false)
	}
	got := FindRation(plan, 9.05, 0.6, 0.01)
	if math.Abs(got.Fraction-0.90) > 1e-6 {
		t.Fatalf("fraction = %v, want 0.90", got.Fraction)
	}
	if got.TotalMassKg > 9.05 {
		t.Fatalf("accepted mass %v exceeds the 9.05 kg budget", got.TotalMassKg)
	}
	if got.Complete {
		t.Fatalf("plan reported complete")
	}
}

func TestFindRationExhaustsToMinFractionWithWarning(t *testing.T) {
	var fractions []float64
	plan := func(fraction float64) []Schedule {
		fractions = append(fractions, fraction)
		return scheduleWeighing(10000, false)
	}
	got := FindRation(plan, 0.001, 0.6, 0.01)
	if math.Abs(got.Fraction-0.6) > 1e-9 {
		t.Fatalf("fraction = %v, want 0.6", got.Fraction)
	}
	if got.Warning == "" {
		t.Fatalf("expected a warning on exhaustion")
	}
	if len(fractions) != 41 {
		t.Fatalf("scan made %d attempts, want 41", len(fractions))
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] >= fractions[i-1] {
			t.Fatalf("scan not strictly decreasing at step %d: %v then %v", i, fractions[i-1], fractions[i])
		}
	}
}

func TestFindRationDefaultsOnBadBounds(t *testing.T) {
	calls := 0
	plan := func(fraction float64) []Schedule {
		calls++
		return scheduleWeighing(0, false)
	}
	got := FindRation(plan, 1.0, -1, 0)
	if got.Fraction != 1.0 || calls != 1 {
		t.Fatalf("fraction=%v calls=%d, want immediate fit at 1.0", got.Fraction, calls)
	}
}
