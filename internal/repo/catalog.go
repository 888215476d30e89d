package repo

import (
	"context"
	"database/sql"
	"fmt"

	"rationline/internal/domain"
)

// Crew, catalog items and ratings are keyed by name (case-insensitive in the
// schema); writes are upserts so re-registering an item updates it in place.

func (r Repo) UpsertCrewMember(ctx context.Context, tx *sql.Tx, c domain.CrewMember) error {
	_, err := exec(ctx, r.DB, tx, `INSERT INTO crew(name,mass_kg) VALUES (?,?)
ON CONFLICT(name) DO UPDATE SET mass_kg=excluded.mass_kg`, c.Name, c.MassKg)
	return err
}

func (r Repo) GetCrewMember(ctx context.Context, name string) (domain.CrewMember, error) {
	var c domain.CrewMember
	err := r.DB.QueryRowContext(ctx, `SELECT name,mass_kg FROM crew WHERE name=?`, name).
		Scan(&c.Name, &c.MassKg)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListCrew(ctx context.Context) ([]domain.CrewMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT name,mass_kg FROM crew ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CrewMember
	for rows.Next() {
		var c domain.CrewMember
		if err := rows.Scan(&c.Name, &c.MassKg); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) DeleteCrewMember(ctx context.Context, name string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM crew WHERE name=?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpsertFood(ctx context.Context, tx *sql.Tx, f domain.FoodItem) error {
	_, err := exec(ctx, r.DB, tx, `INSERT INTO foods(name,calories_per_gram,fat_per_gram,sugar_per_gram,protein_per_gram) VALUES (?,?,?,?,?)
ON CONFLICT(name) DO UPDATE SET calories_per_gram=excluded.calories_per_gram, fat_per_gram=excluded.fat_per_gram, sugar_per_gram=excluded.sugar_per_gram, protein_per_gram=excluded.protein_per_gram`,
		f.Name, f.CaloriesPerGram, f.FatPerGram, f.SugarPerGram, f.ProteinPerGram)
	return err
}

func (r Repo) ListFoods(ctx context.Context) ([]domain.FoodItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT name,calories_per_gram,fat_per_gram,sugar_per_gram,protein_per_gram FROM foods ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.FoodItem
	for rows.Next() {
		var f domain.FoodItem
		if err := rows.Scan(&f.Name, &f.CaloriesPerGram, &f.FatPerGram, &f.SugarPerGram, &f.ProteinPerGram); err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

func (r Repo) UpsertBeverage(ctx context.Context, tx *sql.Tx, b domain.BeverageItem) error {
	_, err := exec(ctx, r.DB, tx, `INSERT INTO beverages(name,calories_per_gram,fat_per_gram,sugar_per_gram,protein_per_gram) VALUES (?,?,?,?,?)
ON CONFLICT(name) DO UPDATE SET calories_per_gram=excluded.calories_per_gram, fat_per_gram=excluded.fat_per_gram, sugar_per_gram=excluded.sugar_per_gram, protein_per_gram=excluded.protein_per_gram`,
		b.Name, b.CaloriesPerGram, b.FatPerGram, b.SugarPerGram, b.ProteinPerGram)
	return err
}

func (r Repo) ListBeverages(ctx context.Context) ([]domain.BeverageItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT name,calories_per_gram,fat_per_gram,sugar_per_gram,protein_per_gram FROM beverages ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.BeverageItem
	for rows.Next() {
		var b domain.BeverageItem
		if err := rows.Scan(&b.Name, &b.CaloriesPerGram, &b.FatPerGram, &b.SugarPerGram, &b.ProteinPerGram); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func ratingTable(kind string) (string, error) {
	switch kind {
	case "food":
		return "food_ratings", nil
	case "beverage":
		return "beverage_ratings", nil
	default:
		return "", fmt.Errorf("unknown rating kind %q (want food or beverage)", kind)
	}
}

func (r Repo) UpsertRating(ctx context.Context, tx *sql.Tx, kind string, rating domain.Rating) error {
	table, err := ratingTable(kind)
	if err != nil {
		return err
	}
	_, err = exec(ctx, r.DB, tx, fmt.Sprintf(`INSERT INTO %s(crew_name,item_name,rating) VALUES (?,?,?)
ON CONFLICT(crew_name,item_name) DO UPDATE SET rating=excluded.rating`, table),
		rating.CrewName, rating.ItemName, rating.Rating)
	return err
}

func (r Repo) ListRatings(ctx context.Context, kind, crewName string) ([]domain.Rating, error) {
	table, err := ratingTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT crew_name,item_name,rating FROM %s`, table)
	var args []any
	if crewName != "" {
		query += ` WHERE crew_name=?`
		args = append(args, crewName)
	}
	query += ` ORDER BY crew_name,item_name`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Rating
	for rows.Next() {
		var rt domain.Rating
		if err := rows.Scan(&rt.CrewName, &rt.ItemName, &rt.Rating); err != nil {
			return nil, err
		}
		res = append(res, rt)
	}
	return res, rows.Err()
}

func exec(ctx context.Context, db *sql.DB, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}
