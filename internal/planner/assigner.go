// Package planner fills a crew member's meal schedule from their rated menu,
// searches for a ration fraction that fits the remaining mass budget, and
// classifies how sufficient the resulting intake is.
package planner

import (
	"fmt"
	"math/rand"

	"rationline/internal/catalog"
	"rationline/internal/domain"
)

// DefaultMaxAttempts bounds the weighted draws per strictness level before
// the repeat rules are relaxed.
const DefaultMaxAttempts = 24

// Assigner plans one crew member's schedule. Rand must be seeded by the
// caller; two assigners with equal menus and seeds produce equal schedules.
type Assigner struct {
	Menu        catalog.Menu
	MealsPerDay int
	PerMealKcal float64
	ServingG    float64
	MaxAttempts int
	Rand        *rand.Rand
}

// SlotFailure names a slot the assigner could not fill and why. The run
// continues past a failed slot; the schedule is marked incomplete.
type SlotFailure struct {
	Day    int    `json:"day"`
	Meal   int    `json:"meal"`
	Reason string `json:"reason"`
}

type Schedule struct {
	CrewName      string
	Meals         []domain.ScheduledMeal
	Failures      []SlotFailure
	DeliveredKcal float64
	MassG         float64
	Complete      bool
}

// Slot lifecycle. A slot only ever advances; failure aborts it without a
// partial serving.
type slotState int

const (
	slotEmpty slotState = iota
	slotFoodChosen
	slotBeverageChosen
	slotFinalized
)

func (a *Assigner) maxAttempts() int {
	if a.MaxAttempts > 0 {
		return a.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (a *Assigner) rng() *rand.Rand {
	if a.Rand == nil {
		a.Rand = rand.New(rand.NewSource(1))
	}
	return a.Rand
}

// Plan fills days*MealsPerDay slots starting at startDay. planKcalBudget is
// the whole-window calorie ceiling; each meal's combined calories are capped
// against what is left of it, with the food portion absorbing the shrink.
// Beverages are always served whole.
func (a *Assigner) Plan(startDay, days int, planKcalBudget float64) Schedule {
	s := Schedule{CrewName: a.Menu.CrewName, Complete: true}
	h := newHistory()
	remaining := planKcalBudget
	for day := startDay; day < startDay+days; day++ {
		for meal := 1; meal <= a.MealsPerDay; meal++ {
			served, kcal, fail := a.fillSlot(h, day, meal, &remaining)
			if fail != nil {
				s.Failures = append(s.Failures, *fail)
				s.Complete = false
				continue
			}
			s.Meals = append(s.Meals, served)
			s.DeliveredKcal += kcal
			s.MassG += served.FoodGrams + served.BeverageGrams
		}
	}
	return s
}

func (a *Assigner) fillSlot(h *history, day, meal int, remaining *float64) (domain.ScheduledMeal, float64, *SlotFailure) {
	var (
		state slotState
		food  catalog.RatedFood
		bev   catalog.RatedBeverage
	)
	for state != slotFinalized {
		switch state {
		case slotEmpty:
			chosen, reason := a.chooseFood(h, day, meal)
			if reason != "" {
				return domain.ScheduledMeal{}, 0, &SlotFailure{Day: day, Meal: meal, Reason: reason}
			}
			food = chosen
			state = slotFoodChosen
		case slotFoodChosen:
			chosen, reason := a.chooseBeverage(h, day, meal)
			if reason != "" {
				return domain.ScheduledMeal{}, 0, &SlotFailure{Day: day, Meal: meal, Reason: reason}
			}
			bev = chosen
			state = slotBeverageChosen
		case slotBeverageChosen:
			state = slotFinalized
		}
	}

	foodGrams := a.PerMealKcal / food.CaloriesPerGram
	bevGrams := a.ServingG
	bevKcal := bevGrams * bev.CaloriesPerGram
	foodKcal := foodGrams * food.CaloriesPerGram
	if foodKcal+bevKcal > *remaining {
		// The window budget caps the meal's total calories; the food portion
		// absorbs the shrink, the beverage is always served whole.
		budget := *remaining - bevKcal
		if budget < 0 {
			budget = 0
		}
		foodGrams = budget / food.CaloriesPerGram
		foodKcal = foodGrams * food.CaloriesPerGram
	}
	*remaining -= foodKcal + bevKcal
	if *remaining < 0 {
		*remaining = 0
	}

	h.record(day, meal, food.Name, bev.Name)
	return domain.ScheduledMeal{
		CrewName:       a.Menu.CrewName,
		Day:            day,
		Meal:           meal,
		FoodName:       food.Name,
		FoodGrams:      foodGrams,
		FoodRating:     food.Rating,
		BeverageName:   bev.Name,
		BeverageGrams:  bevGrams,
		BeverageRating: bev.Rating,
	}, foodKcal + bevKcal, nil
}

func (a *Assigner) chooseFood(h *history, day, meal int) (catalog.RatedFood, string) {
	if len(a.Menu.Foods) == 0 {
		return catalog.RatedFood{}, "no rated foods available"
	}
	for strictness := strictFull; strictness <= strictImmediateOnly; strictness++ {
		for attempt := 0; attempt < a.maxAttempts(); attempt++ {
			f := pickFood(a.rng(), a.Menu.Foods)
			if h.foodAllowed(f.Name, day, meal, strictness) {
				return f, ""
			}
		}
	}
	return catalog.RatedFood{}, fmt.Sprintf("repeat rules exhausted the food menu (%d foods)", len(a.Menu.Foods))
}

func (a *Assigner) chooseBeverage(h *history, day, meal int) (catalog.RatedBeverage, string) {
	if len(a.Menu.Beverages) == 0 {
		return catalog.RatedBeverage{}, "no rated beverages available"
	}
	for strictness := strictFull; strictness <= strictImmediateOnly; strictness++ {
		for attempt := 0; attempt < a.maxAttempts(); attempt++ {
			b := pickBeverage(a.rng(), a.Menu.Beverages)
			if h.beverageAllowed(b.Name, day, meal, strictness) {
				return b, ""
			}
		}
	}
	return catalog.RatedBeverage{}, fmt.Sprintf("repeat rules exhausted the beverage menu (%d beverages)", len(a.Menu.Beverages))
}
