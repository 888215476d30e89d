package planner

import "fmt"

const (
	DefaultMinFraction = 0.6
	DefaultRationStep  = 0.01
)

// PlanFunc produces the per-crew schedules for one ration fraction. Each call
// must be independent of the previous ones (fresh randomness per fraction),
// so the scan result depends only on the fraction it stops at.
type PlanFunc func(fraction float64) []Schedule

// RationPlan is the outcome of a ration scan: the fraction the scan stopped
// at and the schedules planned at that fraction.
type RationPlan struct {
	Fraction    float64
	Schedules   []Schedule
	TotalMassKg float64
	Complete    bool
	Warning     string
}

// FindRation scans ration fractions from 1.0 downward until the planned
// schedules are complete or their served mass fits the budget. The scan never
// errors: when it bottoms out at minFraction the smallest-fraction plan is
// returned together with a warning.
func FindRation(plan PlanFunc, massBudgetKg, minFraction, step float64) RationPlan {
	if minFraction <= 0 || minFraction > 1 {
		minFraction = DefaultMinFraction
	}
	if step <= 0 {
		step = DefaultRationStep
	}
	steps := int((1.0-minFraction)/step + 0.5)

	var last RationPlan
	for i := 0; i <= steps; i++ {
		fraction := 1.0 - float64(i)*step
		if fraction < minFraction {
			fraction = minFraction
		}
		schedules := plan(fraction)
		last = RationPlan{
			Fraction:    fraction,
			Schedules:   schedules,
			TotalMassKg: totalMassKg(schedules),
			Complete:    allComplete(schedules),
		}
		if last.Complete || last.TotalMassKg <= massBudgetKg {
			return last
		}
	}
	last.Warning = fmt.Sprintf(
		"no ration fraction down to %.2f fits the %.3f kg budget; serving the %.2f plan at %.3f kg",
		minFraction, massBudgetKg, last.Fraction, last.TotalMassKg)
	return last
}

func totalMassKg(schedules []Schedule) float64 {
	var grams float64
	for _, s := range schedules {
		grams += s.MassG
	}
	return grams / 1000
}

func allComplete(schedules []Schedule) bool {
	for _, s := range schedules {
		if !s.Complete {
			return false
		}
	}
	return true
}
