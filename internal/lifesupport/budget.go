// Package lifesupport derives the launch mass of a mission's life-support
// stack from crew and duration parameters. The computation is a fixed stage
// order: oxygen demand, CO2 generation, CO2 scrubbing, CO2 recycling, tank
// sizing, nitrogen, water, then the verdict against the weight limit.
package lifesupport

import (
	"fmt"
	"math"
)

const (
	// Per-day oxygen demand in kg for a 70 kg reference body at rest.
	o2PerDayKg      = 0.75
	referenceBodyKg = 70.0

	// Scrubber chemistry returns 0.8 kg of breathable O2 per kg of CO2 removed.
	scrubberO2Yield = 0.8

	// Cabin atmosphere is kept at the terrestrial N2:O2 ratio.
	n2ToO2Ratio = 3.71

	// Excretion water: three voidings of 250 g per crew member per day.
	excretionPerDayG = 3 * 250
)

var o2ActivityFactor = map[string]float64{
	"low":      1.0,
	"moderate": 1.5,
	"daily":    2.0,
}

var co2ActivityFactor = map[string]float64{
	"low":      0.8,
	"moderate": 1.4,
	"daily":    2.2,
}

type Params struct {
	DurationDays int
	Activity     string
	BodyMassesKg []float64

	OxygenTankWeightPerKg   float64
	NitrogenTankWeightPerKg float64

	UseScrubber         bool
	ScrubberEfficiency  float64
	ScrubberWeightPerKg float64

	UseRecycler       bool
	RecyclerEfficiency float64
	RecyclerWeightKg  float64

	HygieneWaterPerDayG     float64
	UseWaterRecycler        bool
	WaterRecyclerEfficiency float64
	WaterRecyclerWeightKg   float64

	WeightLimitKg float64
}

type Result struct {
	O2RequiredKg   float64
	CO2GeneratedKg float64
	O2ReclaimedKg  float64

	O2TankMassKg   float64
	ScrubberMassKg float64
	RecyclerMassKg float64

	N2RequiredKg float64
	N2TankMassKg float64

	WaterHygieneG       float64
	WaterExcretionG     float64
	WaterRecoveredG     float64
	WaterNetG           float64
	WaterRecyclerMassKg float64

	TotalMassKg   float64
	WeightLimitKg float64
	WithinLimit   bool
}

// Validate rejects the first parameter that makes the pipeline meaningless.
// Nothing is computed after a validation failure.
func (p Params) Validate() error {
	if p.DurationDays < 1 {
		return fmt.Errorf("duration must be at least 1 day, got %d", p.DurationDays)
	}
	if _, ok := o2ActivityFactor[p.Activity]; !ok {
		return fmt.Errorf("unknown activity level %q (want low, moderate or daily)", p.Activity)
	}
	if len(p.BodyMassesKg) == 0 {
		return fmt.Errorf("at least one crew body mass is required")
	}
	for i, m := range p.BodyMassesKg {
		if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			return fmt.Errorf("crew member %d: body mass must be positive, got %v", i+1, m)
		}
	}
	if p.OxygenTankWeightPerKg < 0 {
		return fmt.Errorf("oxygen tank weight per kg must not be negative, got %v", p.OxygenTankWeightPerKg)
	}
	if p.NitrogenTankWeightPerKg < 0 {
		return fmt.Errorf("nitrogen tank weight per kg must not be negative, got %v", p.NitrogenTankWeightPerKg)
	}
	if p.UseScrubber {
		if err := checkEfficiency("scrubber", p.ScrubberEfficiency); err != nil {
			return err
		}
		if p.ScrubberWeightPerKg < 0 {
			return fmt.Errorf("scrubber weight per kg must not be negative, got %v", p.ScrubberWeightPerKg)
		}
	}
	if p.UseRecycler {
		if err := checkEfficiency("recycler", p.RecyclerEfficiency); err != nil {
			return err
		}
		if p.RecyclerWeightKg < 0 {
			return fmt.Errorf("recycler weight must not be negative, got %v", p.RecyclerWeightKg)
		}
	}
	if p.HygieneWaterPerDayG < 0 {
		return fmt.Errorf("hygiene water per day must not be negative, got %v", p.HygieneWaterPerDayG)
	}
	if p.UseWaterRecycler {
		if err := checkEfficiency("water recycler", p.WaterRecyclerEfficiency); err != nil {
			return err
		}
		if p.WaterRecyclerWeightKg < 0 {
			return fmt.Errorf("water recycler weight must not be negative, got %v", p.WaterRecyclerWeightKg)
		}
	}
	if p.WeightLimitKg <= 0 {
		return fmt.Errorf("weight limit must be positive, got %v", p.WeightLimitKg)
	}
	return nil
}

func checkEfficiency(name string, eff float64) error {
	if eff <= 0 || normalizeEfficiency(eff) > 100 {
		return fmt.Errorf("%s efficiency must be in (0, 100] percent or (0, 1] fraction, got %v", name, eff)
	}
	return nil
}

// normalizeEfficiency maps fractional inputs (0.85) onto the percent scale
// (85). Values of 1 and above are already percentages.
func normalizeEfficiency(eff float64) float64 {
	if eff < 1 {
		return eff * 100
	}
	return eff
}

// Compute runs the full pipeline. The stage order is load-bearing: the
// recycler only sees CO2 the scrubber left behind, and reclaimed oxygen is
// capped at the mission's demand before the O2 tank is sized.
func Compute(p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	var r Result
	r.WeightLimitKg = p.WeightLimitKg
	days := float64(p.DurationDays)
	crew := float64(len(p.BodyMassesKg))

	var bodyScale float64
	for _, m := range p.BodyMassesKg {
		bodyScale += m / referenceBodyKg
	}
	r.O2RequiredKg = days * o2PerDayKg * o2ActivityFactor[p.Activity] * bodyScale
	r.CO2GeneratedKg = days * co2ActivityFactor[p.Activity] * crew

	co2Removed := 0.0
	if p.UseScrubber {
		eff := normalizeEfficiency(p.ScrubberEfficiency)
		co2Removed = r.CO2GeneratedKg * eff / 100
		r.ScrubberMassKg = co2Removed * p.ScrubberWeightPerKg
		r.O2ReclaimedKg += co2Removed * scrubberO2Yield
	}
	if p.UseRecycler {
		eff := normalizeEfficiency(p.RecyclerEfficiency)
		remaining := math.Max(r.CO2GeneratedKg-co2Removed, 0)
		r.RecyclerMassKg = p.RecyclerWeightKg
		r.O2ReclaimedKg += remaining * eff / 100
	}
	if r.O2ReclaimedKg > r.O2RequiredKg {
		r.O2ReclaimedKg = r.O2RequiredKg
	}

	tanked := math.Max(r.O2RequiredKg-r.O2ReclaimedKg, 0)
	r.O2TankMassKg = tanked * (1 + p.OxygenTankWeightPerKg)

	r.N2RequiredKg = r.O2RequiredKg * n2ToO2Ratio
	r.N2TankMassKg = r.N2RequiredKg * p.NitrogenTankWeightPerKg

	r.WaterHygieneG = crew * days * p.HygieneWaterPerDayG
	r.WaterExcretionG = crew * days * excretionPerDayG
	raw := r.WaterHygieneG + r.WaterExcretionG
	if p.UseWaterRecycler {
		eff := normalizeEfficiency(p.WaterRecyclerEfficiency)
		r.WaterRecoveredG = raw * eff / 100
		r.WaterRecyclerMassKg = p.WaterRecyclerWeightKg
	}
	r.WaterNetG = raw - r.WaterRecoveredG

	r.TotalMassKg = r.O2TankMassKg + r.ScrubberMassKg + r.RecyclerMassKg +
		r.N2TankMassKg + r.WaterNetG/1000 + r.WaterRecyclerMassKg
	r.WithinLimit = r.TotalMassKg <= p.WeightLimitKg
	return r, nil
}
