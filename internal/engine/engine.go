package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"rationline/internal/catalog"
	"rationline/internal/config"
	"rationline/internal/domain"
	"rationline/internal/events"
	"rationline/internal/lifesupport"
	"rationline/internal/planner"
	"rationline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
	// Seed drives planning randomness; 0 derives a seed from Now per run.
	Seed int64
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// InitMission initializes a new mission with migrations already run.
func (e Engine) InitMission(ctx context.Context, missionID, description, actorID string) (domain.Mission, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Mission{}, err
	}
	defer tx.Rollback()

	m := domain.Mission{
		ID:          missionID,
		Status:      "active",
		Description: description,
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO missions(id,status,description,created_at) VALUES (?,?,?,?)`,
		m.ID, m.Status, m.Description, m.CreatedAt); err != nil {
		return domain.Mission{}, fmt.Errorf("insert mission: %w", err)
	}
	if err := e.Repo.UpsertMissionConfigTx(ctx, tx, m.ID, config.Default(m.ID)); err != nil {
		return domain.Mission{}, fmt.Errorf("insert mission config: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "mission.init", m.ID, "mission", m.ID, actorID, events.EventPayload{"status": m.Status}); err != nil {
		return domain.Mission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Mission{}, err
	}
	return m, nil
}

func (e Engine) CloseMission(ctx context.Context, missionID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE missions SET status='closed' WHERE id=?`, missionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repo.ErrNotFound
	}
	if err := e.Events.Append(ctx, tx, "mission.closed", missionID, "mission", missionID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) AddCrewMember(ctx context.Context, missionID, actorID string, c domain.CrewMember) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("crew name is required")
	}
	if c.MassKg <= 0 {
		return fmt.Errorf("crew member %s: body mass must be positive, got %v", c.Name, c.MassKg)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertCrewMember(ctx, tx, c); err != nil {
		return fmt.Errorf("upsert crew member: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "crew.upserted", missionID, "crew", c.Name, actorID, events.EventPayload{"mass_kg": c.MassKg}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) AddFood(ctx context.Context, missionID, actorID string, f domain.FoodItem) error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("food name is required")
	}
	if f.CaloriesPerGram < 0 {
		return fmt.Errorf("food %s: calories per gram must not be negative", f.Name)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertFood(ctx, tx, f); err != nil {
		return fmt.Errorf("upsert food: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "food.upserted", missionID, "food", f.Name, actorID, events.EventPayload{"calories_per_gram": f.CaloriesPerGram}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) AddBeverage(ctx context.Context, missionID, actorID string, b domain.BeverageItem) error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("beverage name is required")
	}
	if b.CaloriesPerGram < 0 {
		return fmt.Errorf("beverage %s: calories per gram must not be negative", b.Name)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertBeverage(ctx, tx, b); err != nil {
		return fmt.Errorf("upsert beverage: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "beverage.upserted", missionID, "beverage", b.Name, actorID, events.EventPayload{"calories_per_gram": b.CaloriesPerGram}); err != nil {
		return err
	}
	return tx.Commit()
}

// RateItem records a crew member's 1-5 preference for a food or beverage.
func (e Engine) RateItem(ctx context.Context, missionID, actorID, kind string, rating domain.Rating) error {
	if rating.Rating < 1 || rating.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", rating.Rating)
	}
	if _, err := e.Repo.GetCrewMember(ctx, rating.CrewName); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("crew member %s not registered", rating.CrewName)
		}
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertRating(ctx, tx, kind, rating); err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "rating.upserted", missionID, kind, rating.ItemName, actorID, events.EventPayload{
		"crew_name": rating.CrewName,
		"rating":    rating.Rating,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// BudgetOptions override the config's life-support defaults per run. Zero
// values fall back to the mission config.
type BudgetOptions struct {
	DurationDays int
	Activity     string
}

func (e Engine) lifeSupportParams(masses []float64, opts BudgetOptions) lifesupport.Params {
	ls := e.Config.LifeSupport
	p := lifesupport.Params{
		DurationDays:            ls.DurationDays,
		Activity:                ls.Activity,
		BodyMassesKg:            masses,
		OxygenTankWeightPerKg:   ls.OxygenTankWeightPerKg,
		NitrogenTankWeightPerKg: ls.NitrogenTankWeightPerKg,
		UseScrubber:             ls.Scrubber.Enabled,
		ScrubberEfficiency:      ls.Scrubber.Efficiency,
		ScrubberWeightPerKg:     ls.Scrubber.WeightPerKg,
		UseRecycler:             ls.CO2Recycler.Enabled,
		RecyclerEfficiency:      ls.CO2Recycler.Efficiency,
		RecyclerWeightKg:        ls.CO2Recycler.WeightKg,
		HygieneWaterPerDayG:     ls.Water.HygienePerDayG,
		UseWaterRecycler:        ls.Water.Recycler.Enabled,
		WaterRecyclerEfficiency: ls.Water.Recycler.Efficiency,
		WaterRecyclerWeightKg:   ls.Water.Recycler.WeightKg,
		WeightLimitKg:           ls.WeightLimitKg,
	}
	if opts.DurationDays > 0 {
		p.DurationDays = opts.DurationDays
	}
	if opts.Activity != "" {
		p.Activity = opts.Activity
	}
	return p
}

// GenerateBudget runs the life-support pipeline over the registered crew and
// appends the result to the mission's budget history. A persistence failure
// after a successful computation is logged and the record is still returned.
func (e Engine) GenerateBudget(ctx context.Context, missionID, actorID string, opts BudgetOptions) (domain.BudgetRecord, error) {
	if e.Config == nil {
		return domain.BudgetRecord{}, errors.New("config not loaded")
	}
	crew, err := e.Repo.ListCrew(ctx)
	if err != nil {
		return domain.BudgetRecord{}, err
	}
	if len(crew) == 0 {
		return domain.BudgetRecord{}, errors.New("no crew registered; add crew before generating a budget")
	}
	masses := make([]float64, len(crew))
	for i, c := range crew {
		masses[i] = c.MassKg
	}

	params := e.lifeSupportParams(masses, opts)
	result, err := lifesupport.Compute(params)
	if err != nil {
		return domain.BudgetRecord{}, err
	}

	mealMassG, err := e.Repo.CumulativeMealMassG(ctx)
	if err != nil {
		return domain.BudgetRecord{}, err
	}
	mealMassKg := mealMassG / 1000

	bodyMasses, err := json.Marshal(masses)
	if err != nil {
		return domain.BudgetRecord{}, err
	}
	record := domain.BudgetRecord{
		ID:         uuid.NewString(),
		MissionID:  missionID,
		Timestamp:  e.now().UTC().Format(time.RFC3339),
		Duration:   params.DurationDays,
		CrewCount:  len(crew),
		BodyMasses: string(bodyMasses),
		Activity:   params.Activity,

		OxygenTankWeightPerKg:   params.OxygenTankWeightPerKg,
		NitrogenTankWeightPerKg: params.NitrogenTankWeightPerKg,
		UseScrubber:             params.UseScrubber,
		ScrubberEfficiency:      params.ScrubberEfficiency,
		ScrubberWeightPerKg:     params.ScrubberWeightPerKg,
		UseRecycler:             params.UseRecycler,
		RecyclerEfficiency:      params.RecyclerEfficiency,
		RecyclerWeightKg:        params.RecyclerWeightKg,
		HygieneWaterPerDayG:     params.HygieneWaterPerDayG,
		UseWaterRecycler:        params.UseWaterRecycler,
		WaterRecyclerEfficiency: params.WaterRecyclerEfficiency,
		WaterRecyclerWeightKg:   params.WaterRecyclerWeightKg,

		O2RequiredKg:        result.O2RequiredKg,
		CO2GeneratedKg:      result.CO2GeneratedKg,
		O2ReclaimedKg:       result.O2ReclaimedKg,
		O2TankMassKg:        result.O2TankMassKg,
		ScrubberMassKg:      result.ScrubberMassKg,
		RecyclerMassKg:      result.RecyclerMassKg,
		N2RequiredKg:        result.N2RequiredKg,
		N2TankMassKg:        result.N2TankMassKg,
		WaterHygieneG:       result.WaterHygieneG,
		WaterExcretionG:     result.WaterExcretionG,
		WaterRecoveredG:     result.WaterRecoveredG,
		WaterNetG:           result.WaterNetG,
		WaterRecyclerMassKg: result.WaterRecyclerMassKg,
		TotalMassKg:         result.TotalMassKg,

		WithinLimit:          result.WithinLimit,
		WeightLimitKg:        params.WeightLimitKg,
		BaseWeightLimitKg:    params.WeightLimitKg,
		CumulativeMealMassKg: mealMassKg,
		CombinedMassKg:       result.TotalMassKg + mealMassKg,
	}

	if err := e.persistBudget(ctx, record, actorID); err != nil {
		log.Printf("WARNING: budget computed but not persisted: %v", err)
	}
	return record, nil
}

func (e Engine) persistBudget(ctx context.Context, record domain.BudgetRecord, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertBudget(ctx, tx, record); err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "budget.generated", record.MissionID, "budget", record.ID, actorID, events.EventPayload{
		"total_life_support_mass_kg": record.TotalMassKg,
		"within_limit":               record.WithinLimit,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// RemainingBudget is the mass headroom left for meals, derived fresh from the
// latest budget record and the stored schedule on every call.
type RemainingBudget struct {
	BudgetID          string  `json:"budget_id"`
	BaseWeightLimitKg float64 `json:"base_weight_limit_kg"`
	LifeSupportMassKg float64 `json:"life_support_mass_kg"`
	MealMassKg        float64 `json:"meal_mass_kg"`
	RemainingKg       float64 `json:"remaining_kg"`
}

func (e Engine) RemainingMassBudget(ctx context.Context, missionID string) (RemainingBudget, error) {
	latest, err := e.Repo.LatestBudget(ctx, missionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return RemainingBudget{}, fmt.Errorf("no budget recorded for mission %s; generate one first", missionID)
		}
		return RemainingBudget{}, err
	}
	mealMassG, err := e.Repo.CumulativeMealMassG(ctx)
	if err != nil {
		return RemainingBudget{}, err
	}
	mealMassKg := mealMassG / 1000
	return RemainingBudget{
		BudgetID:          latest.ID,
		BaseWeightLimitKg: latest.BaseWeightLimitKg,
		LifeSupportMassKg: latest.TotalMassKg,
		MealMassKg:        mealMassKg,
		RemainingKg:       latest.BaseWeightLimitKg - latest.TotalMassKg - mealMassKg,
	}, nil
}

// PlanOptions parameterize a meal-planning run. Zero values fall back to the
// mission config and the stored state (start day continues after the last
// scheduled day, the mass budget derives from the latest budget record).
type PlanOptions struct {
	CrewNames    []string
	Days         int
	StartDay     int
	Seed         int64
	MassBudgetKg float64
}

// PlanResult is one planning run: the ration the scan settled on and the
// per-crew sufficiency grading against the un-rationed target.
type PlanResult struct {
	Ration       planner.RationPlan
	Sufficiency  []domain.SufficiencyRecord
	Seed         int64
	Days         int
	MassBudgetKg float64
}

func (e Engine) PlanMeals(ctx context.Context, missionID, actorID string, opts PlanOptions) (PlanResult, error) {
	if e.Config == nil {
		return PlanResult{}, errors.New("config not loaded")
	}
	pc := e.Config.Planner

	days := opts.Days
	if days <= 0 {
		days = e.Config.LifeSupport.DurationDays
	}

	crew, err := e.selectCrew(ctx, opts.CrewNames)
	if err != nil {
		return PlanResult{}, err
	}
	sort.Slice(crew, func(i, j int) bool { return crew[i].Name < crew[j].Name })

	massBudgetKg := opts.MassBudgetKg
	if massBudgetKg == 0 {
		remaining, err := e.RemainingMassBudget(ctx, missionID)
		if err != nil {
			return PlanResult{}, err
		}
		massBudgetKg = remaining.RemainingKg
	}

	foods, err := e.Repo.ListFoods(ctx)
	if err != nil {
		return PlanResult{}, err
	}
	beverages, err := e.Repo.ListBeverages(ctx)
	if err != nil {
		return PlanResult{}, err
	}
	foodRatings, err := e.Repo.ListRatings(ctx, "food", "")
	if err != nil {
		return PlanResult{}, err
	}
	beverageRatings, err := e.Repo.ListRatings(ctx, "beverage", "")
	if err != nil {
		return PlanResult{}, err
	}

	startDays := make([]int, len(crew))
	menus := make([]catalog.Menu, len(crew))
	for i, c := range crew {
		menus[i] = catalog.BuildMenu(c.Name, foods, beverages, foodRatings, beverageRatings)
		if opts.StartDay > 0 {
			startDays[i] = opts.StartDay
			continue
		}
		last, err := e.Repo.LastMealDay(ctx, c.Name)
		if err != nil {
			return PlanResult{}, err
		}
		startDays[i] = last + 1
	}

	seed := opts.Seed
	if seed == 0 {
		seed = e.Seed
	}
	if seed == 0 {
		seed = e.now().UnixNano()
	}

	perMealKcal := pc.DailyCaloriesKcal / float64(pc.MealsPerDay)
	fullTargetKcal := pc.DailyCaloriesKcal * float64(days)

	plan := func(fraction float64) []planner.Schedule {
		schedules := make([]planner.Schedule, len(crew))
		for i := range crew {
			a := planner.Assigner{
				Menu:        menus[i],
				MealsPerDay: pc.MealsPerDay,
				PerMealKcal: perMealKcal * fraction,
				ServingG:    pc.BeverageServingG,
				MaxAttempts: pc.MaxAttempts,
				Rand:        rand.New(rand.NewSource(seed + int64(i))),
			}
			schedules[i] = a.Plan(startDays[i], days, fullTargetKcal*fraction)
		}
		return schedules
	}

	ration := planner.FindRation(plan, massBudgetKg, pc.MinRationFraction, pc.RationStep)
	if ration.Warning != "" {
		log.Printf("WARNING: %s", ration.Warning)
	}

	res := PlanResult{
		Ration:       ration,
		Seed:         seed,
		Days:         days,
		MassBudgetKg: massBudgetKg,
	}
	for _, s := range ration.Schedules {
		status, ratio := planner.ClassifySufficiency(s.DeliveredKcal, fullTargetKcal)
		res.Sufficiency = append(res.Sufficiency, domain.SufficiencyRecord{
			CrewName:    s.CrewName,
			Status:      status,
			IntakeRatio: ratio,
		})
	}

	if err := e.persistPlan(ctx, missionID, actorID, res); err != nil {
		log.Printf("WARNING: plan computed but not persisted: %v", err)
	}
	return res, nil
}

func (e Engine) selectCrew(ctx context.Context, names []string) ([]domain.CrewMember, error) {
	if len(names) == 0 {
		crew, err := e.Repo.ListCrew(ctx)
		if err != nil {
			return nil, err
		}
		if len(crew) == 0 {
			return nil, errors.New("no crew registered; add crew before planning meals")
		}
		return crew, nil
	}
	var crew []domain.CrewMember
	for _, name := range names {
		c, err := e.Repo.GetCrewMember(ctx, name)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, fmt.Errorf("crew member %s not registered", name)
			}
			return nil, err
		}
		crew = append(crew, c)
	}
	return crew, nil
}

func (e Engine) persistPlan(ctx context.Context, missionID, actorID string, res PlanResult) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, s := range res.Ration.Schedules {
		for _, m := range s.Meals {
			if err := e.Repo.UpsertMeal(ctx, tx, m); err != nil {
				return fmt.Errorf("upsert meal: %w", err)
			}
		}
	}
	for _, s := range res.Sufficiency {
		if err := e.Repo.UpsertSufficiency(ctx, tx, s); err != nil {
			return fmt.Errorf("upsert sufficiency: %w", err)
		}
	}
	payload := events.EventPayload{
		"fraction":      res.Ration.Fraction,
		"total_mass_kg": res.Ration.TotalMassKg,
		"complete":      res.Ration.Complete,
		"seed":          res.Seed,
	}
	if res.Ration.Warning != "" {
		payload["warning"] = res.Ration.Warning
	}
	if err := e.Events.Append(ctx, tx, "plan.completed", missionID, "plan", "", actorID, payload); err != nil {
		return err
	}
	return tx.Commit()
}
