package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models rationline.yml.
type Config struct {
	Mission struct {
		ID string `yaml:"id"`
	} `yaml:"mission"`
	LifeSupport LifeSupportConfig `yaml:"life_support"`
	Planner     PlannerConfig     `yaml:"planner"`
}

type LifeSupportConfig struct {
	Activity                string  `yaml:"activity"`
	DurationDays            int     `yaml:"duration_days"`
	WeightLimitKg           float64 `yaml:"weight_limit_kg"`
	OxygenTankWeightPerKg   float64 `yaml:"oxygen_tank_weight_per_kg"`
	NitrogenTankWeightPerKg float64 `yaml:"nitrogen_tank_weight_per_kg"`
	Scrubber                struct {
		Enabled     bool    `yaml:"enabled"`
		Efficiency  float64 `yaml:"efficiency"`
		WeightPerKg float64 `yaml:"weight_per_kg"`
	} `yaml:"scrubber"`
	CO2Recycler struct {
		Enabled    bool    `yaml:"enabled"`
		Efficiency float64 `yaml:"efficiency"`
		WeightKg   float64 `yaml:"weight_kg"`
	} `yaml:"co2_recycler"`
	Water struct {
		HygienePerDayG float64 `yaml:"hygiene_per_day_g"`
		Recycler       struct {
			Enabled    bool    `yaml:"enabled"`
			Efficiency float64 `yaml:"efficiency"`
			WeightKg   float64 `yaml:"weight_kg"`
		} `yaml:"recycler"`
	} `yaml:"water"`
}

type PlannerConfig struct {
	MealsPerDay       int     `yaml:"meals_per_day"`
	DailyCaloriesKcal float64 `yaml:"daily_calories_kcal"`
	BeverageServingG  float64 `yaml:"beverage_serving_g"`
	MinRationFraction float64 `yaml:"min_ration_fraction"`
	RationStep        float64 `yaml:"ration_step"`
	MaxAttempts       int     `yaml:"max_attempts"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with rl mission config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Mission.ID == "" {
		return fmt.Errorf("config.mission.id is required")
	}
	switch c.LifeSupport.Activity {
	case "low", "moderate", "daily":
	default:
		return fmt.Errorf("config.life_support.activity must be low, moderate or daily")
	}
	if c.LifeSupport.DurationDays < 1 {
		return fmt.Errorf("config.life_support.duration_days must be at least 1")
	}
	if c.LifeSupport.WeightLimitKg <= 0 {
		return fmt.Errorf("config.life_support.weight_limit_kg must be positive")
	}
	if c.LifeSupport.OxygenTankWeightPerKg < 0 || c.LifeSupport.NitrogenTankWeightPerKg < 0 {
		return fmt.Errorf("config.life_support tank weights must not be negative")
	}
	if c.Planner.MealsPerDay < 1 {
		return fmt.Errorf("config.planner.meals_per_day must be at least 1")
	}
	if c.Planner.DailyCaloriesKcal <= 0 {
		return fmt.Errorf("config.planner.daily_calories_kcal must be positive")
	}
	if c.Planner.BeverageServingG <= 0 {
		return fmt.Errorf("config.planner.beverage_serving_g must be positive")
	}
	if c.Planner.MinRationFraction <= 0 || c.Planner.MinRationFraction > 1 {
		return fmt.Errorf("config.planner.min_ration_fraction must be in (0, 1]")
	}
	if c.Planner.RationStep <= 0 {
		return fmt.Errorf("config.planner.ration_step must be positive")
	}
	if c.Planner.MaxAttempts < 1 {
		return fmt.Errorf("config.planner.max_attempts must be at least 1")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "rationline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(missionID string) string {
	return fmt.Sprintf(defaultTemplate, missionID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a mission. The template is a
// compile-time constant, so a decode failure is a programmer error.
func Default(missionID string) *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(GenerateDefault(missionID)), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	cfg.Mission.ID = missionID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `mission:
  id: %s

life_support:
  activity: moderate
  duration_days: 7
  weight_limit_kg: 850
  oxygen_tank_weight_per_kg: 1.2
  nitrogen_tank_weight_per_kg: 1.2

  scrubber:
    enabled: true
    efficiency: 98
    weight_per_kg: 0.4

  co2_recycler:
    enabled: false
    efficiency: 80
    weight_kg: 25

  water:
    hygiene_per_day_g: 1500
    recycler:
      enabled: true
      efficiency: 85
      weight_kg: 450

planner:
  meals_per_day: 3
  daily_calories_kcal: 2400
  beverage_serving_g: 250
  min_ration_fraction: 0.6
  ration_step: 0.01
  max_attempts: 24
`
