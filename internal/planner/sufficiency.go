package planner

// Sufficiency statuses, ordered worst to best.
const (
	SufficiencyInsufficient = "insufficient"
	SufficiencyModerate     = "moderate"
	SufficiencySufficient   = "sufficient"
)

const (
	insufficientBelow = 0.85
	moderateBelow     = 0.95
)

// ClassifySufficiency grades delivered calories against the original,
// un-rationed full-window target. A zero target yields a zero ratio.
func ClassifySufficiency(deliveredKcal, targetKcal float64) (status string, ratio float64) {
	if targetKcal > 0 {
		ratio = deliveredKcal / targetKcal
	}
	switch {
	case ratio < insufficientBelow:
		return SufficiencyInsufficient, ratio
	case ratio < moderateBelow:
		return SufficiencyModerate, ratio
	default:
		return SufficiencySufficient, ratio
	}
}
