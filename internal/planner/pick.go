package planner

import (
	"math/rand"

	"rationline/internal/catalog"
)

// pickFood draws one food from the menu, weighted by rating, over cumulative
// weight intervals in [0, total).
func pickFood(rng *rand.Rand, foods []catalog.RatedFood) catalog.RatedFood {
	total := 0
	for _, f := range foods {
		total += f.Rating
	}
	draw := rng.Float64() * float64(total)
	cum := 0.0
	for _, f := range foods {
		cum += float64(f.Rating)
		if draw < cum {
			return f
		}
	}
	return foods[len(foods)-1]
}

func pickBeverage(rng *rand.Rand, beverages []catalog.RatedBeverage) catalog.RatedBeverage {
	total := 0
	for _, b := range beverages {
		total += b.Rating
	}
	draw := rng.Float64() * float64(total)
	cum := 0.0
	for _, b := range beverages {
		cum += float64(b.Rating)
		if draw < cum {
			return b
		}
	}
	return beverages[len(beverages)-1]
}
