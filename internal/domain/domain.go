package domain

type Mission struct {
	ID          string `json:"id"`
	Status      string `json:"status" enum:"active,closed"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type CrewMember struct {
	Name   string  `json:"name"`
	MassKg float64 `json:"mass_kg"`
}

type FoodItem struct {
	Name            string  `json:"name"`
	CaloriesPerGram float64 `json:"calories_per_gram"`
	FatPerGram      float64 `json:"fat_per_gram,omitempty"`
	SugarPerGram    float64 `json:"sugar_per_gram,omitempty"`
	ProteinPerGram  float64 `json:"protein_per_gram,omitempty"`
}

type BeverageItem struct {
	Name            string  `json:"name"`
	CaloriesPerGram float64 `json:"calories_per_gram"`
	FatPerGram      float64 `json:"fat_per_gram,omitempty"`
	SugarPerGram    float64 `json:"sugar_per_gram,omitempty"`
	ProteinPerGram  float64 `json:"protein_per_gram,omitempty"`
}

type Rating struct {
	CrewName string `json:"crew_name"`
	ItemName string `json:"item_name"`
	Rating   int    `json:"rating"`
}

// BudgetRecord is one persisted life-support computation. Runs append; history
// is never rewritten, and the latest record by timestamp is the one consulted
// for the remaining mass budget.
type BudgetRecord struct {
	ID         string `json:"id"`
	MissionID  string `json:"mission_id"`
	Timestamp  string `json:"timestamp" format:"date-time"`
	Duration   int    `json:"duration"`
	CrewCount  int    `json:"crew_count"`
	BodyMasses string `json:"body_masses"`
	Activity   string `json:"activity" enum:"low,moderate,daily"`

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

// ScheduledMeal rows are keyed by (crew_name, day, meal); re-planning a window
// overwrites same-keyed rows in place.
type ScheduledMeal struct {
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

type SufficiencyRecord struct {
	CrewName    string  `json:"crew_name"`
	Status      string  `json:"status" enum:"insufficient,moderate,sufficient"`
	IntakeRatio float64 `json:"intake_ratio"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	MissionID  string `json:"mission_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
