package planner

import (
	"math/rand"
	"reflect"
	"testing"

	"rationline/internal/catalog"
)

func testMenu() catalog.Menu {
	return catalog.Menu{
		CrewName: "Alexis",
		Foods: []catalog.RatedFood{
			{Name: "Oatmeal", CaloriesPerGram: 3.8, Rating: 5},
			{Name: "Stew", CaloriesPerGram: 1.1, Rating: 4},
			{Name: "Rice", CaloriesPerGram: 1.3, Rating: 3},
			{Name: "Pasta", CaloriesPerGram: 1.5, Rating: 4},
			{Name: "Chili", CaloriesPerGram: 1.2, Rating: 2},
			{Name: "Curry", CaloriesPerGram: 1.4, Rating: 5},
			{Name: "Soup", CaloriesPerGram: 0.6, Rating: 3},
			{Name: "Bars", CaloriesPerGram: 4.5, Rating: 2},
		},
		Beverages: []catalog.RatedBeverage{
			{Name: "Coffee", CaloriesPerGram: 0.4, Rating: 5},
			{Name: "Tea", CaloriesPerGram: 0.3, Rating: 3},
			{Name: "Cocoa", CaloriesPerGram: 0.9, Rating: 4},
		},
	}
}

func newAssigner(seed int64) *Assigner {
	return &Assigner{
		Menu:        testMenu(),
		MealsPerDay: 3,
		PerMealKcal: 800,
		ServingG:    250,
		Rand:        rand.New(rand.NewSource(seed)),
	}
}

func TestPlanFillsEverySlot(t *testing.T) {
	s := newAssigner(42).Plan(1, 7, 1e9)
	if !s.Complete || len(s.Failures) != 0 {
		t.Fatalf("expected complete schedule, got failures %+v", s.Failures)
	}
	if len(s.Meals) != 21 {
		t.Fatalf("got %d meals, want 21", len(s.Meals))
	}
	for i, m := range s.Meals {
		wantDay := 1 + i/3
		wantMeal := 1 + i%3
		if m.Day != wantDay || m.Meal != wantMeal {
			t.Fatalf("meal %d at (day %d, meal %d), want (%d, %d)", i, m.Day, m.Meal, wantDay, wantMeal)
		}
		if m.BeverageGrams != 250 {
			t.Fatalf("beverage serving %v, want 250", m.BeverageGrams)
		}
	}
}

func TestPlanNoImmediateFoodRepeat(t *testing.T) {
	s := newAssigner(7).Plan(1, 14, 1e9)
	for i := 1; i < len(s.Meals); i++ {
		if s.Meals[i].FoodName == s.Meals[i-1].FoodName {
			t.Fatalf("slot %d repeats food %q back to back", i, s.Meals[i].FoodName)
		}
	}
}

func TestPlanBeverageVarietyRules(t *testing.T) {
	a := newAssigner(42)
	a.Menu.Beverages = []catalog.RatedBeverage{
		{Name: "Coffee", CaloriesPerGram: 0.4, Rating: 5},
		{Name: "Tea", CaloriesPerGram: 0.3, Rating: 3},
		{Name: "Cocoa", CaloriesPerGram: 0.9, Rating: 4},
		{Name: "Juice", CaloriesPerGram: 0.5, Rating: 4},
		{Name: "Milk", CaloriesPerGram: 0.6, Rating: 3},
		{Name: "Lemonade", CaloriesPerGram: 0.4, Rating: 2},
		{Name: "Broth", CaloriesPerGram: 0.1, Rating: 3},
		{Name: "Smoothie", CaloriesPerGram: 0.8, Rating: 5},
	}
	s := a.Plan(1, 14, 1e9)

	bySlot := map[[2]int]string{}
	prev := ""
	for _, m := range s.Meals {
		if m.BeverageName == prev {
			t.Fatalf("day %d meal %d repeats beverage %q back to back", m.Day, m.Meal, m.BeverageName)
		}
		if served, ok := bySlot[[2]int{m.Day - 1, m.Meal}]; ok && served == m.BeverageName {
			t.Fatalf("day %d meal %d repeats beverage %q from the same slot the day before", m.Day, m.Meal, m.BeverageName)
		}
		bySlot[[2]int{m.Day, m.Meal}] = m.BeverageName
		prev = m.BeverageName
	}
}

func TestPlanDeterministicPerSeed(t *testing.T) {
	a := newAssigner(99).Plan(1, 7, 1e9)
	b := newAssigner(99).Plan(1, 7, 1e9)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different schedules")
	}
}

func TestPlanPortionMath(t *testing.T) {
	s := newAssigner(3).Plan(1, 1, 1e9)
	menu := testMenu()
	byName := map[string]float64{}
	for _, f := range menu.Foods {
		byName[f.Name] = f.CaloriesPerGram
	}
	for _, m := range s.Meals {
		cpg := byName[m.FoodName]
		want := 800 / cpg
		if diff := m.FoodGrams - want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("%s portion %v g, want %v g", m.FoodName, m.FoodGrams, want)
		}
	}
}

func TestPlanClampsFoodNotBeverage(t *testing.T) {
	// Budget covers roughly half of one slot's food calories.
	s := newAssigner(5).Plan(1, 1, 400)
	if len(s.Meals) != 3 {
		t.Fatalf("got %d meals, want 3", len(s.Meals))
	}
	menu := testMenu()
	foodCpg := map[string]float64{}
	for _, f := range menu.Foods {
		foodCpg[f.Name] = f.CaloriesPerGram
	}
	bevCpg := map[string]float64{}
	for _, b := range menu.Beverages {
		bevCpg[b.Name] = b.CaloriesPerGram
	}
	// The first meal's combined food and beverage calories land exactly on
	// the window budget; the food portion absorbs the whole shrink.
	first := s.Meals[0]
	total := first.FoodGrams*foodCpg[first.FoodName] + first.BeverageGrams*bevCpg[first.BeverageName]
	if diff := total - 400; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("first meal delivers %v kcal, want exactly the 400 kcal window budget", total)
	}
	for i, m := range s.Meals {
		if m.BeverageGrams != 250 {
			t.Fatalf("slot %d beverage clamped to %v g", i, m.BeverageGrams)
		}
	}
	// Once the window budget is spent, later food portions collapse to zero.
	for _, m := range s.Meals[1:] {
		if m.FoodGrams != 0 {
			t.Fatalf("expected zero food grams after budget exhaustion, got %v", m.FoodGrams)
		}
	}
}

func TestPlanSingleFoodMenuIsPartial(t *testing.T) {
	a := newAssigner(11)
	a.Menu.Foods = a.Menu.Foods[:1]
	s := a.Plan(1, 3, 1e9)
	if s.Complete {
		t.Fatalf("single-food menu produced a complete schedule")
	}
	// The first slot serves the only food; every later slot is an immediate
	// repeat and must fail with a recorded reason.
	if len(s.Meals) != 1 || len(s.Failures) != 8 {
		t.Fatalf("got %d meals and %d failures, want 1 and 8", len(s.Meals), len(s.Failures))
	}
	for _, f := range s.Failures {
		if f.Reason == "" {
			t.Fatalf("failure at (day %d, meal %d) has no reason", f.Day, f.Meal)
		}
	}
}

func TestPlanEmptyMenus(t *testing.T) {
	a := newAssigner(1)
	a.Menu.Foods = nil
	s := a.Plan(1, 1, 1e9)
	if s.Complete || len(s.Meals) != 0 || len(s.Failures) != 3 {
		t.Fatalf("foodless plan: meals=%d failures=%d complete=%v", len(s.Meals), len(s.Failures), s.Complete)
	}

	a = newAssigner(1)
	a.Menu.Beverages = nil
	s = a.Plan(1, 1, 1e9)
	if s.Complete || len(s.Failures) != 3 {
		t.Fatalf("beverageless plan: failures=%d complete=%v", len(s.Failures), s.Complete)
	}
}

func TestFoodRepeatRules(t *testing.T) {
	h := newHistory()
	h.record(1, 1, "Oatmeal", "Coffee")
	h.record(1, 2, "Stew", "Tea")

	if h.foodAllowed("stew", 1, 3, strictFull) {
		t.Fatalf("immediate repeat allowed at full strictness")
	}
	if h.foodAllowed("STEW", 1, 3, strictImmediateOnly) {
		t.Fatalf("immediate repeat allowed even at the loosest strictness")
	}
	if h.foodAllowed("Oatmeal", 2, 1, strictNoRecency) {
		t.Fatalf("same-slot previous-day repeat allowed below full relaxation")
	}
	if !h.foodAllowed("Oatmeal", 2, 1, strictImmediateOnly) {
		t.Fatalf("same-slot rule still enforced after relaxation")
	}
	if h.foodAllowed("Oatmeal", 2, 2, strictFull) {
		t.Fatalf("recent window ignored at full strictness")
	}
	if !h.foodAllowed("Oatmeal", 2, 2, strictNoRecency) {
		t.Fatalf("recent window still enforced after relaxation")
	}
	if !h.foodAllowed("Rice", 2, 2, strictFull) {
		t.Fatalf("fresh food rejected")
	}
}

func TestBeverageRepeatRules(t *testing.T) {
	h := newHistory()
	h.record(1, 1, "Oatmeal", "Coffee")
	h.record(1, 2, "Stew", "Tea")

	if h.beverageAllowed("tea", 1, 3, strictFull) {
		t.Fatalf("immediate repeat allowed at full strictness")
	}
	if h.beverageAllowed("TEA", 1, 3, strictImmediateOnly) {
		t.Fatalf("immediate repeat allowed even at the loosest strictness")
	}
	if h.beverageAllowed("Coffee", 2, 1, strictNoRecency) {
		t.Fatalf("same-slot previous-day repeat allowed below full relaxation")
	}
	if !h.beverageAllowed("Coffee", 2, 1, strictImmediateOnly) {
		t.Fatalf("same-slot rule still enforced after relaxation")
	}
	if h.beverageAllowed("Coffee", 2, 2, strictFull) {
		t.Fatalf("recent window ignored at full strictness")
	}
	if !h.beverageAllowed("Coffee", 2, 2, strictNoRecency) {
		t.Fatalf("recent window still enforced after relaxation")
	}
	if !h.beverageAllowed("Cocoa", 2, 2, strictFull) {
		t.Fatalf("fresh beverage rejected")
	}
}

func TestRecentWindowCapped(t *testing.T) {
	h := newHistory()
	foods := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i, f := range foods {
		h.record(1, i+1, f, "water")
	}
	if len(h.recent) != recentWindow {
		t.Fatalf("recent window holds %d entries, want %d", len(h.recent), recentWindow)
	}
	// "a" and "b" have rolled out of the window.
	if !h.foodAllowed("a", 3, 1, strictFull) {
		t.Fatalf("food outside the trailing window still blocked")
	}
}
