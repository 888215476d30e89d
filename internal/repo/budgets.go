package repo

import (
	"context"
	"database/sql"

	"rationline/internal/domain"
)

const budgetColumns = `id,mission_id,timestamp,duration,crew_count,body_masses,activity,
oxygen_tank_weight_per_kg,nitrogen_tank_weight_per_kg,
use_scrubber,scrubber_efficiency,scrubber_weight_per_kg,
use_recycler,recycler_efficiency,recycler_weight_kg,
hygiene_water_per_day_g,use_water_recycler,water_recycler_efficiency,water_recycler_weight_kg,
o2_required_kg,co2_generated_kg,o2_reclaimed_kg,o2_tank_mass_kg,scrubber_mass_kg,recycler_mass_kg,
n2_required_kg,n2_tank_mass_kg,
water_hygiene_g,water_excretion_g,water_recovered_g,water_net_g,water_recycler_mass_kg,
total_life_support_mass_kg,within_limit,weight_limit_kg,base_weight_limit_kg,
cumulative_meal_mass_kg,combined_life_support_mass_kg`

func (r Repo) InsertBudget(ctx context.Context, tx *sql.Tx, b domain.BudgetRecord) error {
	_, err := exec(ctx, r.DB, tx, `INSERT INTO budgets(`+budgetColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.MissionID, b.Timestamp, b.Duration, b.CrewCount, b.BodyMasses, b.Activity,
		b.OxygenTankWeightPerKg, b.NitrogenTankWeightPerKg,
		b.UseScrubber, b.ScrubberEfficiency, b.ScrubberWeightPerKg,
		b.UseRecycler, b.RecyclerEfficiency, b.RecyclerWeightKg,
		b.HygieneWaterPerDayG, b.UseWaterRecycler, b.WaterRecyclerEfficiency, b.WaterRecyclerWeightKg,
		b.O2RequiredKg, b.CO2GeneratedKg, b.O2ReclaimedKg, b.O2TankMassKg, b.ScrubberMassKg, b.RecyclerMassKg,
		b.N2RequiredKg, b.N2TankMassKg,
		b.WaterHygieneG, b.WaterExcretionG, b.WaterRecoveredG, b.WaterNetG, b.WaterRecyclerMassKg,
		b.TotalMassKg, b.WithinLimit, b.WeightLimitKg, b.BaseWeightLimitKg,
		b.CumulativeMealMassKg, b.CombinedMassKg)
	return err
}

func scanBudget(scan func(dest ...any) error) (domain.BudgetRecord, error) {
	var b domain.BudgetRecord
	err := scan(
		&b.ID, &b.MissionID, &b.Timestamp, &b.Duration, &b.CrewCount, &b.BodyMasses, &b.Activity,
		&b.OxygenTankWeightPerKg, &b.NitrogenTankWeightPerKg,
		&b.UseScrubber, &b.ScrubberEfficiency, &b.ScrubberWeightPerKg,
		&b.UseRecycler, &b.RecyclerEfficiency, &b.RecyclerWeightKg,
		&b.HygieneWaterPerDayG, &b.UseWaterRecycler, &b.WaterRecyclerEfficiency, &b.WaterRecyclerWeightKg,
		&b.O2RequiredKg, &b.CO2GeneratedKg, &b.O2ReclaimedKg, &b.O2TankMassKg, &b.ScrubberMassKg, &b.RecyclerMassKg,
		&b.N2RequiredKg, &b.N2TankMassKg,
		&b.WaterHygieneG, &b.WaterExcretionG, &b.WaterRecoveredG, &b.WaterNetG, &b.WaterRecyclerMassKg,
		&b.TotalMassKg, &b.WithinLimit, &b.WeightLimitKg, &b.BaseWeightLimitKg,
		&b.CumulativeMealMassKg, &b.CombinedMassKg)
	return b, err
}

// LatestBudget returns the most recent record for a mission by timestamp.
func (r Repo) LatestBudget(ctx context.Context, missionID string) (domain.BudgetRecord, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE mission_id=? ORDER BY timestamp DESC, id DESC LIMIT 1`, missionID)
	b, err := scanBudget(row.Scan)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

func (r Repo) ListBudgets(ctx context.Context, missionID string, limit int) ([]domain.BudgetRecord, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE mission_id=? ORDER BY timestamp DESC, id DESC`
	args := []any{missionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.BudgetRecord
	for rows.Next() {
		b, err := scanBudget(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}
