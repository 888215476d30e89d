package repo

import (
	"context"
	"database/sql"

	"rationline/internal/domain"
)

func (r Repo) UpsertMeal(ctx context.Context, tx *sql.Tx, m domain.ScheduledMeal) error {
	_, err := exec(ctx, r.DB, tx, `INSERT OR REPLACE INTO meals(crew_name,day,meal,food_name,food_grams,food_rating,beverage_name,beverage_grams,beverage_rating)
VALUES (?,?,?,?,?,?,?,?,?)`,
		m.CrewName, m.Day, m.Meal, m.FoodName, m.FoodGrams, m.FoodRating, m.BeverageName, m.BeverageGrams, m.BeverageRating)
	return err
}

func (r Repo) ListMeals(ctx context.Context, crewName string) ([]domain.ScheduledMeal, error) {
	query := `SELECT crew_name,day,meal,food_name,food_grams,food_rating,beverage_name,beverage_grams,beverage_rating FROM meals`
	var args []any
	if crewName != "" {
		query += ` WHERE crew_name=?`
		args = append(args, crewName)
	}
	query += ` ORDER BY crew_name,day,meal`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ScheduledMeal
	for rows.Next() {
		var m domain.ScheduledMeal
		if err := rows.Scan(&m.CrewName, &m.Day, &m.Meal, &m.FoodName, &m.FoodGrams, &m.FoodRating, &m.BeverageName, &m.BeverageGrams, &m.BeverageRating); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// LastMealDay returns the highest scheduled day for a crew member, 0 when
// nothing is scheduled yet.
func (r Repo) LastMealDay(ctx context.Context, crewName string) (int, error) {
	var day int
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(day),0) FROM meals WHERE crew_name=?`, crewName).Scan(&day)
	return day, err
}

// CumulativeMealMassG sums food and beverage grams over the whole stored
// schedule.
func (r Repo) CumulativeMealMassG(ctx context.Context) (float64, error) {
	var grams float64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(food_grams+beverage_grams),0) FROM meals`).Scan(&grams)
	return grams, err
}

func (r Repo) UpsertSufficiency(ctx context.Context, tx *sql.Tx, s domain.SufficiencyRecord) error {
	_, err := exec(ctx, r.DB, tx, `INSERT INTO sufficiency(crew_name,status,intake_ratio) VALUES (?,?,?)
ON CONFLICT(crew_name) DO UPDATE SET status=excluded.status, intake_ratio=excluded.intake_ratio`,
		s.CrewName, s.Status, s.IntakeRatio)
	return err
}

func (r Repo) GetSufficiency(ctx context.Context, crewName string) (domain.SufficiencyRecord, error) {
	var s domain.SufficiencyRecord
	err := r.DB.QueryRowContext(ctx, `SELECT crew_name,status,intake_ratio FROM sufficiency WHERE crew_name=?`, crewName).
		Scan(&s.CrewName, &s.Status, &s.IntakeRatio)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) ListSufficiency(ctx context.Context) ([]domain.SufficiencyRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT crew_name,status,intake_ratio FROM sufficiency ORDER BY crew_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SufficiencyRecord
	for rows.Next() {
		var s domain.SufficiencyRecord
		if err := rows.Scan(&s.CrewName, &s.Status, &s.IntakeRatio); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
