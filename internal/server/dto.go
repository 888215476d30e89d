package server

import (
	"encoding/json"

	"rationline/internal/config"
	"rationline/internal/domain"
	"rationline/internal/engine"
	"rationline/internal/planner"
)

// Request payloads

type CreateMissionRequest struct {
	ID          string  `json:"id"`
	Description *string `json:"description,omitempty"`
}

type UpdateMissionConfigRequest struct {
	YAML string `json:"yaml"`
}

type AddCrewMemberRequest struct {
	Name   string  `json:"name"`
	MassKg float64 `json:"mass_kg"`
}

type AddItemRequest struct {
	Name            string  `json:"name"`
	CaloriesPerGram float64 `json:"calories_per_gram"`
	FatPerGram      float64 `json:"fat_per_gram,omitempty"`
	SugarPerGram    float64 `json:"sugar_per_gram,omitempty"`
	ProteinPerGram  float64 `json:"protein_per_gram,omitempty"`
}

type RateItemRequest struct {
	CrewName string `json:"crew_name"`
	ItemName string `json:"item_name"`
	Rating   int    `json:"rating" minimum:"1" maximum:"5"`
}

type GenerateBudgetRequest struct {
	DurationDays *int    `json:"duration_days,omitempty"`
	Activity     *string `json:"activity,omitempty" enum:"low,moderate,daily"`
}

type PlanMealsRequest struct {
	CrewNames    []string `json:"crew_names,omitempty"`
	Days         int      `json:"days,omitempty"`
	StartDay     int      `json:"start_day,omitempty"`
	Seed         int64    `json:"seed,omitempty"`
	MassBudgetKg float64  `json:"mass_budget_kg,omitempty"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Response payloads

type MissionResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status" enum:"active,closed"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type CrewMemberResponse struct {
	Name   string  `json:"name"`
	MassKg float64 `json:"mass_kg"`
}

type ItemResponse struct {
	Name            string  `json:"name"`
	CaloriesPerGram float64 `json:"calories_per_gram"`
	FatPerGram      float64 `json:"fat_per_gram,omitempty"`
	SugarPerGram    float64 `json:"sugar_per_gram,omitempty"`
	ProteinPerGram  float64 `json:"protein_per_gram,omitempty"`
}

type RatingResponse struct {
	CrewName string `json:"crew_name"`
	ItemName string `json:"item_name"`
	Rating   int    `json:"rating"`
}

type BudgetResponse struct {
	ID           string    `json:"id"`
	MissionID    string    `json:"mission_id"`
	Timestamp    string    `json:"timestamp" format:"date-time"`
	Duration     int       `json:"duration"`
	CrewCount    int       `json:"crew_count"`
	BodyMassesKg []float64 `json:"body_masses_kg"`
	Activity     string    `json:"activity" enum:"low,moderate,daily"`

	OxygenTankWeightPerKg   float64 `json:"oxygen_tank_weight_per_kg"`
	NitrogenTankWeightPerKg float64 `json:"nitrogen_tank_weight_per_kg"`
	UseScrubber             bool    `json:"use_scrubber"`
	ScrubberEfficiency      float64 `json:"scrubber_efficiency"`
	ScrubberWeightPerKg     float64 `json:"scrubber_weight_per_kg"`
	UseRecycler             bool    `json:"use_recycler"`
	RecyclerEfficiency      float64 `json:"recycler_efficiency"`
	RecyclerWeightKg        float64 `json:"recycler_weight_kg"`
	HygieneWaterPerDayG     float64 `json:"hygiene_water_per_day_g"`
	UseWaterRecycler        bool    `json:"use_water_recycler"`
	WaterRecyclerEfficiency float64 `json:"water_recycler_efficiency"`
	WaterRecyclerWeightKg   float64 `json:"water_recycler_weight_kg"`

	O2RequiredKg        float64 `json:"o2_required_kg"`
	CO2GeneratedKg      float64 `json:"co2_generated_kg"`
	O2ReclaimedKg       float64 `json:"o2_reclaimed_kg"`
	O2TankMassKg        float64 `json:"o2_tank_mass_kg"`
	ScrubberMassKg      float64 `json:"scrubber_mass_kg"`
	RecyclerMassKg      float64 `json:"recycler_mass_kg"`
	N2RequiredKg        float64 `json:"n2_required_kg"`
	N2TankMassKg        float64 `json:"n2_tank_mass_kg"`
	WaterHygieneG       float64 `json:"water_hygiene_g"`
	WaterExcretionG     float64 `json:"water_excretion_g"`
	WaterRecoveredG     float64 `json:"water_recovered_g"`
	WaterNetG           float64 `json:"water_net_g"`
	WaterRecyclerMassKg float64 `json:"water_recycler_mass_kg"`
	TotalMassKg         float64 `json:"total_life_support_mass_kg"`

	WithinLimit          bool    `json:"within_limit"`
	WeightLimitKg        float64 `json:"weight_limit_kg"`
	BaseWeightLimitKg    float64 `json:"base_weight_limit_kg"`
	CumulativeMealMassKg float64 `json:"cumulative_meal_mass_kg"`
	CombinedMassKg       float64 `json:"combined_life_support_mass_kg"`
}

type RemainingBudgetResponse struct {
	BudgetID          string  `json:"budget_id"`
	BaseWeightLimitKg float64 `json:"base_weight_limit_kg"`
	LifeSupportMassKg float64 `json:"life_support_mass_kg"`
	MealMassKg        float64 `json:"meal_mass_kg"`
	RemainingKg       float64 `json:"remaining_kg"`
}

type MealResponse struct {
	CrewName       string  `json:"crew_name"`
	Day            int     `json:"day"`
	Meal           int     `json:"meal"`
	FoodName       string  `json:"food_name"`
	FoodGrams      float64 `json:"food_grams"`
	FoodRating     int     `json:"food_rating"`
	BeverageName   string  `json:"beverage_name"`
	BeverageGrams  float64 `json:"beverage_grams"`
	BeverageRating int     `json:"beverage_rating"`
}

type SlotFailureResponse struct {
	Day    int    `json:"day"`
	Meal   int    `json:"meal"`
	Reason string `json:"reason"`
}

type ScheduleResponse struct {
	CrewName      string                `json:"crew_name"`
	Meals         []MealResponse        `json:"meals"`
	Failures      []SlotFailureResponse `json:"failures,omitempty"`
	DeliveredKcal float64               `json:"delivered_kcal"`
	MassG         float64               `json:"mass_g"`
	Complete      bool                  `json:"complete"`
}

type SufficiencyResponse struct {
	CrewName    string  `json:"crew_name"`
	Status      string  `json:"status" enum:"insufficient,moderate,sufficient"`
	IntakeRatio float64 `json:"intake_ratio"`
}

type PlanResponse struct {
	Fraction     float64               `json:"fraction"`
	TotalMassKg  float64               `json:"total_mass_kg"`
	Complete     bool                  `json:"complete"`
	Warning      string                `json:"warning,omitempty"`
	Seed         int64                 `json:"seed"`
	Days         int                   `json:"days"`
	MassBudgetKg float64               `json:"mass_budget_kg"`
	Schedules    []ScheduleResponse    `json:"schedules"`
	Sufficiency  []SufficiencyResponse `json:"sufficiency"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	MissionID  string         `json:"mission_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type MissionConfigResponse struct {
	Mission     missionConfigSection     `json:"mission"`
	LifeSupport lifeSupportConfigSection `json:"life_support"`
	Planner     plannerConfigSection     `json:"planner"`
}

type missionConfigSection struct {
	ID string `json:"id"`
}

type deviceConfigSection struct {
	Enabled    bool    `json:"enabled"`
	Efficiency float64 `json:"efficiency"`
	WeightKg   float64 `json:"weight_kg"`
}

type lifeSupportConfigSection struct {
	Activity                string  `json:"activity" enum:"low,moderate,daily"`
	DurationDays            int     `json:"duration_days"`
	WeightLimitKg           float64 `json:"weight_limit_kg"`
	OxygenTankWeightPerKg   float64 `json:"oxygen_tank_weight_per_kg"`
	NitrogenTankWeightPerKg float64 `json:"nitrogen_tank_weight_per_kg"`
	Scrubber                struct {
		Enabled     bool    `json:"enabled"`
		Efficiency  float64 `json:"efficiency"`
		WeightPerKg float64 `json:"weight_per_kg"`
	} `json:"scrubber"`
	CO2Recycler deviceConfigSection `json:"co2_recycler"`
	Water       struct {
		HygienePerDayG float64             `json:"hygiene_per_day_g"`
		Recycler       deviceConfigSection `json:"recycler"`
	} `json:"water"`
}

type plannerConfigSection struct {
	MealsPerDay       int     `json:"meals_per_day"`
	DailyCaloriesKcal float64 `json:"daily_calories_kcal"`
	BeverageServingG  float64 `json:"beverage_serving_g"`
	MinRationFraction float64 `json:"min_ration_fraction"`
	RationStep        float64 `json:"ration_step"`
	MaxAttempts       int     `json:"max_attempts"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	// Key is only present right after creation; it is never stored in clear.
	Key string `json:"key,omitempty"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source"`
}

type paginatedBudgets struct {
	Items []BudgetResponse `json:"items"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func missionResponse(m domain.Mission) MissionResponse {
	return MissionResponse(m)
}

func crewResponse(c domain.CrewMember) CrewMemberResponse {
	return CrewMemberResponse(c)
}

func foodResponse(f domain.FoodItem) ItemResponse {
	return ItemResponse(f)
}

func beverageResponse(b domain.BeverageItem) ItemResponse {
	return ItemResponse(b)
}

func ratingResponse(r domain.Rating) RatingResponse {
	return RatingResponse(r)
}

func mealResponse(m domain.ScheduledMeal) MealResponse {
	return MealResponse(m)
}

func sufficiencyResponse(s domain.SufficiencyRecord) SufficiencyResponse {
	return SufficiencyResponse(s)
}

func budgetResponse(b domain.BudgetRecord) BudgetResponse {
	var masses []float64
	_ = json.Unmarshal([]byte(b.BodyMasses), &masses)
	return BudgetResponse{
		ID:           b.ID,
		MissionID:    b.MissionID,
		Timestamp:    b.Timestamp,
		Duration:     b.Duration,
		CrewCount:    b.CrewCount,
		BodyMassesKg: nonNilSlice(masses),
		Activity:     b.Activity,

		OxygenTankWeightPerKg:   b.OxygenTankWeightPerKg,
		NitrogenTankWeightPerKg: b.NitrogenTankWeightPerKg,
		UseScrubber:             b.UseScrubber,
		ScrubberEfficiency:      b.ScrubberEfficiency,
		ScrubberWeightPerKg:     b.ScrubberWeightPerKg,
		UseRecycler:             b.UseRecycler,
		RecyclerEfficiency:      b.RecyclerEfficiency,
		RecyclerWeightKg:        b.RecyclerWeightKg,
		HygieneWaterPerDayG:     b.HygieneWaterPerDayG,
		UseWaterRecycler:        b.UseWaterRecycler,
		WaterRecyclerEfficiency: b.WaterRecyclerEfficiency,
		WaterRecyclerWeightKg:   b.WaterRecyclerWeightKg,

		O2RequiredKg:        b.O2RequiredKg,
		CO2GeneratedKg:      b.CO2GeneratedKg,
		O2ReclaimedKg:       b.O2ReclaimedKg,
		O2TankMassKg:        b.O2TankMassKg,
		ScrubberMassKg:      b.ScrubberMassKg,
		RecyclerMassKg:      b.RecyclerMassKg,
		N2RequiredKg:        b.N2RequiredKg,
		N2TankMassKg:        b.N2TankMassKg,
		WaterHygieneG:       b.WaterHygieneG,
		WaterExcretionG:     b.WaterExcretionG,
		WaterRecoveredG:     b.WaterRecoveredG,
		WaterNetG:           b.WaterNetG,
		WaterRecyclerMassKg: b.WaterRecyclerMassKg,
		TotalMassKg:         b.TotalMassKg,

		WithinLimit:          b.WithinLimit,
		WeightLimitKg:        b.WeightLimitKg,
		BaseWeightLimitKg:    b.BaseWeightLimitKg,
		CumulativeMealMassKg: b.CumulativeMealMassKg,
		CombinedMassKg:       b.CombinedMassKg,
	}
}

func remainingBudgetResponse(r engine.RemainingBudget) RemainingBudgetResponse {
	return RemainingBudgetResponse(r)
}

func scheduleResponse(s planner.Schedule) ScheduleResponse {
	resp := ScheduleResponse{
		CrewName:      s.CrewName,
		Meals:         []MealResponse{},
		DeliveredKcal: s.DeliveredKcal,
		MassG:         s.MassG,
		Complete:      s.Complete,
	}
	for _, m := range s.Meals {
		resp.Meals = append(resp.Meals, mealResponse(m))
	}
	for _, f := range s.Failures {
		resp.Failures = append(resp.Failures, SlotFailureResponse(f))
	}
	return resp
}

func planResponse(res engine.PlanResult) PlanResponse {
	resp := PlanResponse{
		Fraction:     res.Ration.Fraction,
		TotalMassKg:  res.Ration.TotalMassKg,
		Complete:     res.Ration.Complete,
		Warning:      res.Ration.Warning,
		Seed:         res.Seed,
		Days:         res.Days,
		MassBudgetKg: res.MassBudgetKg,
		Schedules:    []ScheduleResponse{},
		Sufficiency:  []SufficiencyResponse{},
	}
	for _, s := range res.Ration.Schedules {
		resp.Schedules = append(resp.Schedules, scheduleResponse(s))
	}
	for _, s := range res.Sufficiency {
		resp.Sufficiency = append(resp.Sufficiency, sufficiencyResponse(s))
	}
	return resp
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		MissionID:  e.MissionID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		ActorID:   k.ActorID,
		Name:      k.Name,
		CreatedAt: k.CreatedAt,
	}
}

func configResponse(cfg *config.Config) MissionConfigResponse {
	res := MissionConfigResponse{
		Mission: missionConfigSection{ID: cfg.Mission.ID},
	}
	ls := cfg.LifeSupport
	res.LifeSupport.Activity = ls.Activity
	res.LifeSupport.DurationDays = ls.DurationDays
	res.LifeSupport.WeightLimitKg = ls.WeightLimitKg
	res.LifeSupport.OxygenTankWeightPerKg = ls.OxygenTankWeightPerKg
	res.LifeSupport.NitrogenTankWeightPerKg = ls.NitrogenTankWeightPerKg
	res.LifeSupport.Scrubber.Enabled = ls.Scrubber.Enabled
	res.LifeSupport.Scrubber.Efficiency = ls.Scrubber.Efficiency
	res.LifeSupport.Scrubber.WeightPerKg = ls.Scrubber.WeightPerKg
	res.LifeSupport.CO2Recycler = deviceConfigSection(ls.CO2Recycler)
	res.LifeSupport.Water.HygienePerDayG = ls.Water.HygienePerDayG
	res.LifeSupport.Water.Recycler = deviceConfigSection(ls.Water.Recycler)
	res.Planner = plannerConfigSection(cfg.Planner)
	return res
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
