package lifesupport

import (
	"math"
	"math/rand"
	"strings"
	"testing"
)

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func baseParams() Params {
	return Params{
		DurationDays:            1,
		Activity:                "moderate",
		BodyMassesKg:            []float64{70},
		OxygenTankWeightPerKg:   1.2,
		NitrogenTankWeightPerKg: 1.2,
		WeightLimitKg:           850,
	}
}

func TestComputeSingleCrewNoSubsystems(t *testing.T) {
	r, err := Compute(baseParams())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	approx(t, "O2RequiredKg", r.O2RequiredKg, 1.125)
	approx(t, "CO2GeneratedKg", r.CO2GeneratedKg, 1.4)
	approx(t, "O2ReclaimedKg", r.O2ReclaimedKg, 0)
	approx(t, "O2TankMassKg", r.O2TankMassKg, 1.125*2.2)
	approx(t, "N2RequiredKg", r.N2RequiredKg, 1.125*3.71)
	approx(t, "N2TankMassKg", r.N2TankMassKg, 1.125*3.71*1.2)
	approx(t, "WaterExcretionG", r.WaterExcretionG, 750)
	approx(t, "WaterNetG", r.WaterNetG, 750)
	if r.ScrubberMassKg != 0 || r.RecyclerMassKg != 0 || r.WaterRecyclerMassKg != 0 {
		t.Fatalf("disabled subsystems contributed mass: %+v", r)
	}
	wantTotal := 1.125*2.2 + 1.125*3.71*1.2 + 0.75
	approx(t, "TotalMassKg", r.TotalMassKg, wantTotal)
	if !r.WithinLimit {
		t.Fatalf("expected within limit at %v kg against %v", r.TotalMassKg, r.WeightLimitKg)
	}
}

func TestComputeActivityScalesDemand(t *testing.T) {
	p := baseParams()
	p.Activity = "low"
	low, err := Compute(p)
	if err != nil {
		t.Fatalf("Compute low: %v", err)
	}
	p.Activity = "daily"
	daily, err := Compute(p)
	if err != nil {
		t.Fatalf("Compute daily: %v", err)
	}
	approx(t, "low O2", low.O2RequiredKg, 0.75)
	approx(t, "daily O2", daily.O2RequiredKg, 1.5)
	approx(t, "low CO2", low.CO2GeneratedKg, 0.8)
	approx(t, "daily CO2", daily.CO2GeneratedKg, 2.2)
}

func TestComputeBodyMassScaling(t *testing.T) {
	p := baseParams()
	p.BodyMassesKg = []float64{70, 140}
	r, err := Compute(p)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// 70 kg contributes 1x the reference demand, 140 kg contributes 2x.
	approx(t, "O2RequiredKg", r.O2RequiredKg, 0.75*1.5*3)
	// CO2 scales with headcount, not body mass.
	approx(t, "CO2GeneratedKg", r.CO2GeneratedKg, 1.4*2)
}

func TestScrubberAndRecyclerStack(t *testing.T) {
	p := baseParams()
	p.DurationDays = 10
	p.UseScrubber = true
	p.ScrubberEfficiency = 50
	p.ScrubberWeightPerKg = 0.4
	p.UseRecycler = true
	p.RecyclerEfficiency = 50
	p.RecyclerWeightKg = 25

	r, err := Compute(p)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// CO2 = 14; scrubber removes 7, recycler works the remaining 7 only.
	approx(t, "CO2GeneratedKg", r.CO2GeneratedKg, 14)
	approx(t, "ScrubberMassKg", r.ScrubberMassKg, 7*0.4)
	approx(t, "RecyclerMassKg", r.RecyclerMassKg, 25)
	approx(t, "O2ReclaimedKg", r.O2ReclaimedKg, 7*0.8+7*0.5)
}

func TestReclaimCappedAtDemand(t *testing.T) {
	p := baseParams()
	p.Activity = "low"
	p.BodyMassesKg = []float64{35}
	p.UseScrubber = true
	p.ScrubberEfficiency = 100
	p.ScrubberWeightPerKg = 0.4
	p.UseRecycler = true
	p.RecyclerEfficiency = 100
	p.RecyclerWeightKg = 25

	r, err := Compute(p)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// Scrubber yield (0.64 kg) exceeds the light crew's 0.375 kg demand.
	if r.O2ReclaimedKg > r.O2RequiredKg {
		t.Fatalf("reclaim %v exceeds demand %v", r.O2ReclaimedKg, r.O2RequiredKg)
	}
	approx(t, "O2ReclaimedKg", r.O2ReclaimedKg, r.O2RequiredKg)
	approx(t, "O2TankMassKg", r.O2TankMassKg, 0)
}

func TestFractionalEfficiencyNormalized(t *testing.T) {
	p := baseParams()
	p.UseScrubber = true
	p.ScrubberWeightPerKg = 0.4

	p.ScrubberEfficiency = 0.98
	frac, err := Compute(p)
	if err != nil {
		t.Fatalf("Compute fractional: %v", err)
	}
	p.ScrubberEfficiency = 98
	pct, err := Compute(p)
	if err != nil {
		t.Fatalf("Compute percent: %v", err)
	}
	approx(t, "O2ReclaimedKg", frac.O2ReclaimedKg, pct.O2ReclaimedKg)
	approx(t, "ScrubberMassKg", frac.ScrubberMassKg, pct.ScrubberMassKg)
}

func TestWaterRecycling(t *testing.T) {
	p := baseParams()
	p.DurationDays = 7
	p.BodyMassesKg = []float64{70, 70}
	p.HygieneWaterPerDayG = 1500
	p.UseWaterRecycler = true
	p.WaterRecyclerEfficiency = 85
	p.WaterRecyclerWeightKg = 450
	p.WeightLimitKg = 2000

	r, err := Compute(p)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	approx(t, "WaterHygieneG", r.WaterHygieneG, 2*7*1500)
	approx(t, "WaterExcretionG", r.WaterExcretionG, 2*7*750)
	raw := r.WaterHygieneG + r.WaterExcretionG
	approx(t, "WaterRecoveredG", r.WaterRecoveredG, raw*0.85)
	approx(t, "WaterNetG", r.WaterNetG, raw*0.15)
	approx(t, "WaterRecyclerMassKg", r.WaterRecyclerMassKg, 450)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
		want   string
	}{
		{"zero duration", func(p *Params) { p.DurationDays = 0 }, "duration"},
		{"bad activity", func(p *Params) { p.Activity = "extreme" }, "activity"},
		{"no crew", func(p *Params) { p.BodyMassesKg = nil }, "body mass"},
		{"negative mass", func(p *Params) { p.BodyMassesKg = []float64{70, -5} }, "crew member 2"},
		{"negative tank weight", func(p *Params) { p.OxygenTankWeightPerKg = -1 }, "oxygen tank"},
		{"excess efficiency", func(p *Params) { p.UseScrubber = true; p.ScrubberEfficiency = 120 }, "scrubber efficiency"},
		{"zero efficiency", func(p *Params) { p.UseRecycler = true; p.RecyclerEfficiency = 0 }, "recycler efficiency"},
		{"zero limit", func(p *Params) { p.WeightLimitKg = 0 }, "weight limit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := baseParams()
			tc.mutate(&p)
			_, err := Compute(p)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestVerdictMatchesTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		p := baseParams()
		p.DurationDays = 1 + rng.Intn(30)
		p.BodyMassesKg = make([]float64, 1+rng.Intn(5))
		for j := range p.BodyMassesKg {
			p.BodyMassesKg[j] = 50 + rng.Float64()*60
		}
		p.UseScrubber = rng.Intn(2) == 0
		p.ScrubberEfficiency = 98
		p.ScrubberWeightPerKg = 0.4
		p.UseWaterRecycler = rng.Intn(2) == 0
		p.WaterRecyclerEfficiency = 85
		p.WaterRecyclerWeightKg = 450
		p.HygieneWaterPerDayG = 1500
		p.WeightLimitKg = 1 + rng.Float64()*1000

		r, err := Compute(p)
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if r.WithinLimit != (r.TotalMassKg <= p.WeightLimitKg) {
			t.Fatalf("verdict %v disagrees with total %v against limit %v",
				r.WithinLimit, r.TotalMassKg, p.WeightLimitKg)
		}
	}
}
