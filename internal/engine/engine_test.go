package engine_test

import (
	"context"
	"math"
	"testing"
	"time"

	"rationline/internal/config"
	"rationline/internal/db"
	"rationline/internal/domain"
	"rationline/internal/engine"
	"rationline/internal/migrate"
	"rationline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("artemis")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	eng.Seed = 42
	ctx := context.Background()
	if _, err := eng.InitMission(ctx, "artemis", "test", "tester"); err != nil {
		t.Fatalf("init mission: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func seedCrewAndCatalog(t *testing.T, env testEnv) {
	t.Helper()
	for _, c := range []domain.CrewMember{{Name: "Alexis", MassKg: 70}, {Name: "Morgan", MassKg: 85}} {
		if err := env.Engine.AddCrewMember(env.Ctx, "artemis", "tester", c); err != nil {
			t.Fatalf("add crew %s: %v", c.Name, err)
		}
	}
	foods := []domain.FoodItem{
		{Name: "Oatmeal", CaloriesPerGram: 3.8},
		{Name: "Stew", CaloriesPerGram: 1.1},
		{Name: "Rice", CaloriesPerGram: 1.3},
		{Name: "Pasta", CaloriesPerGram: 1.5},
		{Name: "Curry", CaloriesPerGram: 1.4},
		{Name: "Chili", CaloriesPerGram: 1.2},
		{Name: "Soup", CaloriesPerGram: 0.6},
		{Name: "Bars", CaloriesPerGram: 4.5},
	}
	for _, f := range foods {
		if err := env.Engine.AddFood(env.Ctx, "artemis", "tester", f); err != nil {
			t.Fatalf("add food %s: %v", f.Name, err)
		}
	}
	beverages := []domain.BeverageItem{
		{Name: "Coffee", CaloriesPerGram: 0.4},
		{Name: "Tea", CaloriesPerGram: 0.3},
		{Name: "Cocoa", CaloriesPerGram: 0.9},
	}
	for _, b := range beverages {
		if err := env.Engine.AddBeverage(env.Ctx, "artemis", "tester", b); err != nil {
			t.Fatalf("add beverage %s: %v", b.Name, err)
		}
	}
	for _, crew := range []string{"Alexis", "Morgan"} {
		for _, f := range foods {
			r := domain.Rating{CrewName: crew, ItemName: f.Name, Rating: 4}
			if err := env.Engine.RateItem(env.Ctx, "artemis", "tester", "food", r); err != nil {
				t.Fatalf("rate food: %v", err)
			}
		}
		for _, b := range beverages {
			r := domain.Rating{CrewName: crew, ItemName: b.Name, Rating: 3}
			if err := env.Engine.RateItem(env.Ctx, "artemis", "tester", "beverage", r); err != nil {
				t.Fatalf("rate beverage: %v", err)
			}
		}
	}
}

func TestGenerateBudgetPersistsHistory(t *testing.T) {
	env := newTestEnv(t)
	seedCrewAndCatalog(t, env)

	record, err := env.Engine.GenerateBudget(env.Ctx, "artemis", "tester", engine.BudgetOptions{})
	if err != nil {
		t.Fatalf("generate budget: %v", err)
	}
	if record.CrewCount != 2 || record.Duration != 7 {
		t.Fatalf("record params: crew=%d duration=%d", record.CrewCount, record.Duration)
	}
	if record.TotalMassKg <= 0 || !record.WithinLimit {
		t.Fatalf("unexpected verdict: total=%v within=%v", record.TotalMassKg, record.WithinLimit)
	}
	if record.BaseWeightLimitKg != 850 {
		t.Fatalf("base limit %v, want 850", record.BaseWeightLimitKg)
	}

	latest, err := env.Engine.Repo.LatestBudget(env.Ctx, "artemis")
	if err != nil {
		t.Fatalf("latest budget: %v", err)
	}
	if latest.ID != record.ID {
		t.Fatalf("latest budget %s, want %s", latest.ID, record.ID)
	}

	// A second run appends rather than replaces.
	if _, err := env.Engine.GenerateBudget(env.Ctx, "artemis", "tester", engine.BudgetOptions{DurationDays: 10}); err != nil {
		t.Fatalf("second budget: %v", err)
	}
	history, err := env.Engine.Repo.ListBudgets(env.Ctx, "artemis", 0)
	if err != nil {
		t.Fatalf("list budgets: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d records, want 2", len(history))
	}
}

func TestGenerateBudgetRequiresCrew(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.GenerateBudget(env.Ctx, "artemis", "tester", engine.BudgetOptions{}); err == nil {
		t.Fatalf("expected error without crew")
	}
}

func TestGenerateBudgetRejectsBadActivity(t *testing.T) {
	env := newTestEnv(t)
	seedCrewAndCatalog(t, env)
	_, err := env.Engine.GenerateBudget(env.Ctx, "artemis", "tester", engine.BudgetOptions{Activity: "extreme"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	// Nothing may be written on a validation failure.
	if _, err := env.Engine.Repo.LatestBudget(env.Ctx, "artemis"); err != repo.ErrNotFound {
		t.Fatalf("expected empty history, got %v", err)
	}
}

func TestPlanMealsPersistsScheduleAndSufficiency(t *testing.T) {
	env := newTestEnv(t)
	seedCrewAndCatalog(t, env)
	if _, err := env.Engine.GenerateBudget(env.Ctx, "artemis", "tester", engine.BudgetOptions{}); err != nil {
		t.Fatalf("generate budget: %v", err)
	}

	res, err := env.Engine.PlanMeals(env.Ctx, "artemis", "tester", engine.PlanOptions{Days: 7})
	if err != nil {
		t.Fatalf("plan meals: %v", err)
	}
	if res.Ration.Fraction != 1.0 {
		t.Fatalf("fraction %v, want 1.0 with an ample budget", res.Ration.Fraction)
	}
	if !res.Ration.Complete {
		t.Fatalf("expected a complete plan")
	}
	if len(res.Sufficiency) != 2 {
		t.Fatalf("got %d sufficiency records, want 2", len(res.Sufficiency))
	}
	for _, s := range res.Sufficiency {
		if s.Status != "sufficient" {
			t.Fatalf("%s graded %s at ratio %v, want sufficient", s.CrewName, s.Status, s.IntakeRatio)
		}
	}

	meals, err := env.Engine.Repo.ListMeals(env.Ctx, "Alexis")
	if err != nil {
		t.Fatalf("list meals: %v", err)
	}
	if len(meals) != 21 {
		t.Fatalf("stored %d meals for Alexis, want 21", len(meals))
	}
	stored, err := env.Engine.Repo.GetSufficiency(env.Ctx, "Morgan")
	if err != nil {
		t.Fatalf("get sufficiency: %v", err)
	}
	if stored.Status != "sufficient" {
		t.Fatalf("stored status %s", stored.Status)
	}
}

func TestPlanMealsReproducibleWithSeed(t *testing.T) {
	envA := newTestEnv(t)
	seedCrewAndCatalog(t, envA)
	envB := newTestEnv(t)
	seedCrewAndCatalog(t, envB)

	optA := engine.PlanOptions{Days: 7, Seed: 1234, MassBudgetKg: 1e9}
	resA, err := envA.Engine.PlanMeals(envA.Ctx, "artemis", "tester", optA)
	if err != nil {
		t.Fatalf("plan A: %v", err)
	}
	resB, err := envB.Engine.PlanMeals(envB.Ctx, "artemis", "tester", optA)
	if err != nil {
		t.Fatalf("plan B: %v", err)
	}
	mealsA, _ := envA.Engine.Repo.ListMeals(envA.Ctx, "")
	mealsB, _ := envB.Engine.Repo.ListMeals(envB.Ctx, "")
	if len(mealsA) == 0 || len(mealsA) != len(mealsB) {
		t.Fatalf("meal counts differ: %d vs %d", len(mealsA), len(mealsB))
	}
	for i := range mealsA {
		if mealsA[i] != mealsB[i] {
			t.Fatalf("schedules diverge at %d: %+v vs %+v", i, mealsA[i], mealsB[i])
		}
	}
	if resA.Ration.Fraction != resB.Ration.Fraction {
		t.Fatalf("fractions differ: %v vs %v", resA.Ration.Fraction, resB.Ration.Fraction)
	}
}

func TestPlanMealsContinuesAfterLastDay(t *testing.T) {
	env := newTestEnv(t)
	seedCrewAndCatalog(t, env)

	if _, err := env.Engine.PlanMeals(env.Ctx, "artemis", "tester", engine.PlanOptions{Days: 3, MassBudgetKg: 1e9}); err != nil {
		t.Fatalf("first window: %v", err)
	}
	if _, err := env.Engine.PlanMeals(env.Ctx, "artemis", "tester", engine.PlanOptions{Days: 2, MassBudgetKg: 1e9}); err != nil {
		t.Fatalf("second window: %v", err)
	}
	last, err := env.Engine.Repo.LastMealDay(env.Ctx, "Alexis")
	if err != nil {
		t.Fatalf("last meal day: %v", err)
	}
	if last != 5 {
		t.Fatalf("last day %d, want 5 (3-day window then 2 more)", last)
	}
}

func TestPlanMealsOverwritesSameSlots(t *testing.T) {
	env := newTestEnv(t)
	seedCrewAndCatalog(t, env)

	opts := engine.PlanOptions{Days: 2, StartDay: 1, MassBudgetKg: 1e9}
	if _, err := env.Engine.PlanMeals(env.Ctx, "artemis", "tester", opts); err != nil {
		t.Fatalf("first plan: %v", err)
	}
	opts.Seed = 777
	if _, err := env.Engine.PlanMeals(env.Ctx, "artemis", "tester", opts); err != nil {
		t.Fatalf("replan: %v", err)
	}
	meals, err := env.Engine.Repo.ListMeals(env.Ctx, "Alexis")
	if err != nil {
		t.Fatalf("list meals: %v", err)
	}
	if len(meals) != 6 {
		t.Fatalf("replanning duplicated rows: %d meals, want 6", len(meals))
	}
}

func TestRemainingMassBudgetDerivation(t *testing.T) {
	env := newTestEnv(t)
	seedCrewAndCatalog(t, env)
	record, err := env.Engine.GenerateBudget(env.Ctx, "artemis", "tester", engine.BudgetOptions{})
	if err != nil {
		t.Fatalf("generate budget: %v", err)
	}
	if _, err := env.Engine.PlanMeals(env.Ctx, "artemis", "tester", engine.PlanOptions{Days: 7}); err != nil {
		t.Fatalf("plan meals: %v", err)
	}
	remaining, err := env.Engine.RemainingMassBudget(env.Ctx, "artemis")
	if err != nil {
		t.Fatalf("remaining budget: %v", err)
	}
	mealMassG, err := env.Engine.Repo.CumulativeMealMassG(env.Ctx)
	if err != nil {
		t.Fatalf("meal mass: %v", err)
	}
	want := record.BaseWeightLimitKg - record.TotalMassKg - mealMassG/1000
	if math.Abs(remaining.RemainingKg-want) > 1e-9 {
		t.Fatalf("remaining %v, want %v", remaining.RemainingKg, want)
	}
	if remaining.MealMassKg <= 0 {
		t.Fatalf("meal mass %v, want positive after planning", remaining.MealMassKg)
	}
}

func TestPlanMealsExhaustedBudgetBottomsOut(t *testing.T) {
	env := newTestEnv(t)
	seedCrewAndCatalog(t, env)
	// One food per menu: every slot past the first is an immediate repeat, so
	// the schedule can never complete and only the mass condition could stop
	// the scan. A near-zero budget forces it to the minimum fraction.
	foods, _ := env.Engine.Repo.ListFoods(env.Ctx)
	for _, f := range foods[1:] {
		for _, crew := range []string{"Alexis", "Morgan"} {
			r := domain.Rating{CrewName: crew, ItemName: f.Name, Rating: 1}
			if err := env.Engine.RateItem(env.Ctx, "artemis", "tester", "food", r); err != nil {
				t.Fatalf("downrate: %v", err)
			}
		}
	}
	res, err := env.Engine.PlanMeals(env.Ctx, "artemis", "tester", engine.PlanOptions{Days: 3, MassBudgetKg: 0.001})
	if err != nil {
		t.Fatalf("plan meals: %v", err)
	}
	if math.Abs(res.Ration.Fraction-0.6) > 1e-9 {
		t.Fatalf("fraction %v, want the 0.6 floor", res.Ration.Fraction)
	}
	if res.Ration.Warning == "" {
		t.Fatalf("expected an exhaustion warning")
	}
	if res.Ration.Complete {
		t.Fatalf("single-food plan reported complete")
	}
}

func TestRateItemValidation(t *testing.T) {
	env := newTestEnv(t)
	seedCrewAndCatalog(t, env)
	r := domain.Rating{CrewName: "Alexis", ItemName: "Oatmeal", Rating: 6}
	if err := env.Engine.RateItem(env.Ctx, "artemis", "tester", "food", r); err == nil {
		t.Fatalf("expected range error")
	}
	r = domain.Rating{CrewName: "Nobody", ItemName: "Oatmeal", Rating: 3}
	if err := env.Engine.RateItem(env.Ctx, "artemis", "tester", "food", r); err == nil {
		t.Fatalf("expected unknown-crew error")
	}
}

func TestEventLogRecordsRuns(t *testing.T) {
	env := newTestEnv(t)
	seedCrewAndCatalog(t, env)
	if _, err := env.Engine.GenerateBudget(env.Ctx, "artemis", "tester", engine.BudgetOptions{}); err != nil {
		t.Fatalf("generate budget: %v", err)
	}
	if _, err := env.Engine.PlanMeals(env.Ctx, "artemis", "tester", engine.PlanOptions{Days: 2}); err != nil {
		t.Fatalf("plan meals: %v", err)
	}
	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 100, "artemis", "", "", "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	seen := map[string]bool{}
	for _, e := range evts {
		seen[e.Type] = true
	}
	for _, want := range []string{"mission.init", "crew.upserted", "food.upserted", "rating.upserted", "budget.generated", "plan.completed"} {
		if !seen[want] {
			t.Fatalf("missing event type %s (have %v)", want, seen)
		}
	}
}
