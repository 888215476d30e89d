// Package catalog resolves a crew member's personal menu: the items they rated
// highly enough to be served, carrying the rating weights the planner draws on.
package catalog

import (
	"strings"

	"rationline/internal/domain"
)

// Items rated 1 ("never serve") or left unrated are excluded entirely rather
// than weighted at zero, so they can never be drawn.
const minServableRating = 2

type RatedFood struct {
	Name            string
	CaloriesPerGram float64
	Rating          int
}

type RatedBeverage struct {
	Name            string
	CaloriesPerGram float64
	Rating          int
}

// Menu is one crew member's eligible items.
type Menu struct {
	CrewName  string
	Foods     []RatedFood
	Beverages []RatedBeverage
}

func ratingIndex(ratings []domain.Rating, crewName string) map[string]int {
	idx := make(map[string]int)
	for _, r := range ratings {
		if strings.EqualFold(r.CrewName, crewName) {
			idx[strings.ToLower(r.ItemName)] = r.Rating
		}
	}
	return idx
}

// BuildMenu filters the mission catalogs down to what one crew member can be
// served: rated above the exclusion threshold and carrying usable energy
// density. Item order follows the input catalogs, so a stable catalog order
// gives a stable menu.
func BuildMenu(crewName string, foods []domain.FoodItem, beverages []domain.BeverageItem, foodRatings, beverageRatings []domain.Rating) Menu {
	m := Menu{CrewName: crewName}
	fr := ratingIndex(foodRatings, crewName)
	for _, f := range foods {
		rating, ok := fr[strings.ToLower(f.Name)]
		if !ok || rating < minServableRating || f.CaloriesPerGram <= 0 {
			continue
		}
		m.Foods = append(m.Foods, RatedFood{
			Name:            f.Name,
			CaloriesPerGram: f.CaloriesPerGram,
			Rating:          rating,
		})
	}
	br := ratingIndex(beverageRatings, crewName)
	for _, b := range beverages {
		rating, ok := br[strings.ToLower(b.Name)]
		if !ok || rating < minServableRating || b.CaloriesPerGram <= 0 {
			continue
		}
		m.Beverages = append(m.Beverages, RatedBeverage{
			Name:            b.Name,
			CaloriesPerGram: b.CaloriesPerGram,
			Rating:          rating,
		})
	}
	return m
}
