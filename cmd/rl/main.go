package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rationline/internal/app"
	"rationline/internal/config"
	"rationline/internal/db"
	"rationline/internal/domain"
	"rationline/internal/engine"
	"rationline/internal/migrate"
	"rationline/internal/repo"
	"rationline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "rl",
	Short: "Rationline CLI",
	Long: `Rationline budgets mission consumables and plans rationed meals.
Core concepts:
- Workspace: your .rationline directory with only the database; configs are stored in the DB and imported explicitly.
- Mission: the expedition that owns the crew, the catalog, and every computed budget.
- Crew: the people on board; body mass drives oxygen demand.
- Life-support budget: oxygen, nitrogen, scrubbing and water hardware summed against the launch weight limit. Runs append to history; the latest one rules.
- Catalog and ratings: foods and beverages each crew member has scored 1-5; only items rated 2+ ever reach a tray.
- Meal plan: a seeded schedule that never repeats a food back to back and trims portions to a ration fraction until the mass budget fits.
- Sufficiency: delivered calories graded against the un-rationed target per crew member.
- Event log: diary of changes, view with 'rl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("RATIONLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("mission", "", "mission id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("mission", rootCmd.PersistentFlags().Lookup("mission"))
}

func registerCommands() {
	rootCmd.AddCommand(missionCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(crewCmd())
	rootCmd.AddCommand(foodCmd())
	rootCmd.AddCommand(beverageCmd())
	rootCmd.AddCommand(rateCmd())
	rootCmd.AddCommand(budgetCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func missionCmd() *cobra.Command {
	m := &cobra.Command{Use: "mission", Short: "Manage missions"}
	m.AddCommand(missionListCmd())
	m.AddCommand(missionCreateCmd())
	m.AddCommand(missionShowCmd())
	m.AddCommand(missionCloseCmd())
	m.AddCommand(missionUseCmd())
	m.AddCommand(missionConfigCmd())
	return m
}

func missionListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List missions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListMissions(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func missionCreateCmd() *cobra.Command {
	var id, desc string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create mission",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg := config.Default(id)
			e := engine.New(conn, cfg)
			m, err := e.InitMission(cmd.Context(), id, desc, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			return printJSONOrTable(m)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "mission id")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func missionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a mission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.Repo.GetMission(ctx, e.Config.Mission.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	return cmd
}

func missionCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a mission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.CloseMission(ctx, e.Config.Mission.ID, viper.GetString("actor-id")); err != nil {
					return err
				}
				m, err := e.Repo.GetMission(ctx, e.Config.Mission.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	return cmd
}

func missionUseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use <id>",
		Short: "Set current mission for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			missionID := strings.TrimSpace(args[0])
			if missionID == "" {
				return fmt.Errorf("mission id is required")
			}
			workspace := viper.GetString("workspace")
			if err := setEnvValue(filepath.Join(workspace, ".env"), "RATIONLINE_DEFAULT_MISSION", missionID); err != nil {
				return err
			}
			fmt.Printf("Set RATIONLINE_DEFAULT_MISSION=%s in %s/.env\n", missionID, workspace)
			return nil
		},
	}
	return cmd
}

func missionConfigCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage mission config",
	}
	cfg.AddCommand(missionConfigShowCmd())
	cfg.AddCommand(missionConfigImportCmd())
	cfg.AddCommand(missionConfigInitCmd())
	return cfg
}

func missionConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show mission config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func missionConfigImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import mission config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			missionID := cfg.Mission.ID
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if missionID == "" {
					missionID = e.Config.Mission.ID
				}
				if err := e.Repo.UpsertMissionConfig(ctx, missionID, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func missionConfigInitCmd() *cobra.Command {
	var missionID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default rationline.yml to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(missionID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&missionID, "id", "mission", "mission id for the template")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show mission status",
		Long:  "The scoreboard for your mission: crew size, the latest budget verdict, and the headroom left for meals.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				missionID := e.Config.Mission.ID
				m, err := e.Repo.GetMission(ctx, missionID)
				if err != nil {
					return err
				}
				crew, err := e.Repo.ListCrew(ctx)
				if err != nil {
					return err
				}
				out := map[string]any{
					"mission_id": m.ID,
					"status":     m.Status,
					"crew_count": len(crew),
				}
				latest, err := e.Repo.LatestBudget(ctx, missionID)
				switch {
				case err == nil:
					out["latest_budget"] = latest
				case errors.Is(err, repo.ErrNotFound):
				default:
					return err
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Mission: %s (%s)\n", m.ID, m.Status)
				fmt.Printf("Crew: %d\n", len(crew))
				if err == nil {
					verdict := "over limit"
					if latest.WithinLimit {
						verdict = "within limit"
					}
					fmt.Printf("Latest budget: %.3f kg life support, %s (%s)\n", latest.TotalMassKg, verdict, latest.Timestamp)
					if remaining, rerr := e.RemainingMassBudget(ctx, missionID); rerr == nil {
						fmt.Printf("Remaining for meals: %.3f kg\n", remaining.RemainingKg)
					}
				} else {
					fmt.Println("Latest budget: none")
				}
				return nil
			})
		},
	}
	return cmd
}

func crewCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "crew",
		Short: "Manage crew",
		Long:  "Crew members carry a name and a body mass in kilograms; mass scales oxygen demand in the budget.",
	}
	c.AddCommand(crewAddCmd())
	c.AddCommand(crewListCmd())
	c.AddCommand(crewRemoveCmd())
	return c
}

func crewAddCmd() *cobra.Command {
	var name string
	var massKg float64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register or update a crew member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c := domain.CrewMember{Name: name, MassKg: massKg}
				if err := e.AddCrewMember(ctx, e.Config.Mission.ID, viper.GetString("actor-id"), c); err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "crew member name")
	cmd.Flags().Float64Var(&massKg, "mass-kg", 0, "body mass in kg")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("mass-kg")
	return cmd
}

func crewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List crew",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				crew, err := e.Repo.ListCrew(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(crew)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Name", "Mass (kg)"})
				for _, c := range crew {
					tw.AppendRow(table.Row{c.Name, c.MassKg})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func crewRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a crew member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteCrewMember(ctx, args[0])
			})
		},
	}
	return cmd
}

func foodCmd() *cobra.Command {
	f := &cobra.Command{
		Use:   "food",
		Short: "Manage the food catalog",
	}
	f.AddCommand(foodAddCmd())
	f.AddCommand(foodListCmd())
	return f
}

func foodAddCmd() *cobra.Command {
	var item domain.FoodItem
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register or update a food",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.AddFood(ctx, e.Config.Mission.ID, viper.GetString("actor-id"), item); err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&item.Name, "name", "", "food name")
	cmd.Flags().Float64Var(&item.CaloriesPerGram, "calories-per-gram", 0, "kcal per gram")
	cmd.Flags().Float64Var(&item.FatPerGram, "fat-per-gram", 0, "fat grams per gram")
	cmd.Flags().Float64Var(&item.SugarPerGram, "sugar-per-gram", 0, "sugar grams per gram")
	cmd.Flags().Float64Var(&item.ProteinPerGram, "protein-per-gram", 0, "protein grams per gram")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("calories-per-gram")
	return cmd
}

func foodListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List foods",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				foods, err := e.Repo.ListFoods(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(foods)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Name", "Kcal/g", "Fat/g", "Sugar/g", "Protein/g"})
				for _, f := range foods {
					tw.AppendRow(table.Row{f.Name, f.CaloriesPerGram, f.FatPerGram, f.SugarPerGram, f.ProteinPerGram})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func beverageCmd() *cobra.Command {
	b := &cobra.Command{
		Use:   "beverage",
		Short: "Manage the beverage catalog",
	}
	b.AddCommand(beverageAddCmd())
	b.AddCommand(beverageListCmd())
	return b
}

func beverageAddCmd() *cobra.Command {
	var item domain.BeverageItem
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register or update a beverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.AddBeverage(ctx, e.Config.Mission.ID, viper.GetString("actor-id"), item); err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&item.Name, "name", "", "beverage name")
	cmd.Flags().Float64Var(&item.CaloriesPerGram, "calories-per-gram", 0, "kcal per gram")
	cmd.Flags().Float64Var(&item.FatPerGram, "fat-per-gram", 0, "fat grams per gram")
	cmd.Flags().Float64Var(&item.SugarPerGram, "sugar-per-gram", 0, "sugar grams per gram")
	cmd.Flags().Float64Var(&item.ProteinPerGram, "protein-per-gram", 0, "protein grams per gram")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("calories-per-gram")
	return cmd
}

func beverageListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List beverages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				beverages, err := e.Repo.ListBeverages(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(beverages)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Name", "Kcal/g", "Fat/g", "Sugar/g", "Protein/g"})
				for _, b := range beverages {
					tw.AppendRow(table.Row{b.Name, b.CaloriesPerGram, b.FatPerGram, b.SugarPerGram, b.ProteinPerGram})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func rateCmd() *cobra.Command {
	var kind, crew, item string
	var rating int
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Record a crew member's rating for a food or beverage",
		Long:  "Ratings run 1-5. Items a crew member rated below 2 never reach their tray; higher ratings are served more often.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r := domain.Rating{CrewName: crew, ItemName: item, Rating: rating}
				if err := e.RateItem(ctx, e.Config.Mission.ID, viper.GetString("actor-id"), kind, r); err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "food", "item kind (food or beverage)")
	cmd.Flags().StringVar(&crew, "crew", "", "crew member name")
	cmd.Flags().StringVar(&item, "item", "", "item name")
	cmd.Flags().IntVar(&rating, "rating", 0, "rating 1-5")
	_ = cmd.MarkFlagRequired("crew")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func budgetCmd() *cobra.Command {
	b := &cobra.Command{
		Use:   "budget",
		Short: "Life-support budgets",
		Long:  "Budgets sum oxygen, nitrogen, scrubbing and water hardware against the launch weight limit. Every run appends to history; the latest record backs the remaining meal budget.",
	}
	b.AddCommand(budgetGenerateCmd())
	b.AddCommand(budgetHistoryCmd())
	b.AddCommand(budgetRemainingCmd())
	return b
}

func budgetGenerateCmd() *cobra.Command {
	var durationDays int
	var activity string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a life-support budget for the registered crew",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.BudgetOptions{DurationDays: durationDays, Activity: activity}
				record, err := e.GenerateBudget(ctx, e.Config.Mission.ID, viper.GetString("actor-id"), opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(record)
				}
				verdict := "OVER LIMIT"
				if record.WithinLimit {
					verdict = "within limit"
				}
				fmt.Printf("Life support: %.3f kg for %d crew over %d days (%s activity)\n",
					record.TotalMassKg, record.CrewCount, record.Duration, record.Activity)
				fmt.Printf("  O2 tank %.3f kg, N2 tank %.3f kg, scrubber %.3f kg, recycler %.3f kg, water %.3f kg (+%.3f kg recycler)\n",
					record.O2TankMassKg, record.N2TankMassKg, record.ScrubberMassKg, record.RecyclerMassKg,
					record.WaterNetG/1000, record.WaterRecyclerMassKg)
				fmt.Printf("  Limit %.1f kg: %s\n", record.WeightLimitKg, verdict)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&durationDays, "duration-days", 0, "override mission duration")
	cmd.Flags().StringVar(&activity, "activity", "", "override activity (low, moderate, daily)")
	return cmd
}

func budgetHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Budget history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListBudgets(ctx, e.Config.Mission.ID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Timestamp", "Days", "Crew", "Activity", "Total (kg)", "Within limit"})
				for _, b := range items {
					tw.AppendRow(table.Row{b.Timestamp, b.Duration, b.CrewCount, b.Activity,
						fmt.Sprintf("%.3f", b.TotalMassKg), b.WithinLimit})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of records")
	return cmd
}

func budgetRemainingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remaining",
		Short: "Mass headroom left for meals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				remaining, err := e.RemainingMassBudget(ctx, e.Config.Mission.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(remaining)
				}
				fmt.Printf("Base limit:    %.3f kg\n", remaining.BaseWeightLimitKg)
				fmt.Printf("Life support:  %.3f kg\n", remaining.LifeSupportMassKg)
				fmt.Printf("Meals so far:  %.3f kg\n", remaining.MealMassKg)
				fmt.Printf("Remaining:     %.3f kg\n", remaining.RemainingKg)
				return nil
			})
		},
	}
	return cmd
}

func planCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "plan",
		Short: "Meal planning",
		Long:  "Planning draws from each crew member's rated menu, never repeats a food back to back, and rations portions down from the full target until the schedule fits the mass budget.",
	}
	p.AddCommand(planRunCmd())
	p.AddCommand(planScheduleCmd())
	p.AddCommand(planSufficiencyCmd())
	return p
}

func planRunCmd() *cobra.Command {
	var opts engine.PlanOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan rationed meals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.PlanMeals(ctx, e.Config.Mission.ID, viper.GetString("actor-id"), opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Ration: %.0f%% of target, %.3f kg of %.3f kg budget (seed %d)\n",
					res.Ration.Fraction*100, res.Ration.TotalMassKg, res.MassBudgetKg, res.Seed)
				if res.Ration.Warning != "" {
					fmt.Println("Warning:", res.Ration.Warning)
				}
				for _, s := range res.Sufficiency {
					fmt.Printf("  %s: %s (%.0f%% of target calories)\n", s.CrewName, s.Status, s.IntakeRatio*100)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&opts.CrewNames, "crew", []string{}, "crew member to plan for (repeatable, default all)")
	cmd.Flags().IntVar(&opts.Days, "days", 0, "days to plan (default mission duration)")
	cmd.Flags().IntVar(&opts.StartDay, "start-day", 0, "first day to plan (default continues after the last scheduled day)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed for reproducible schedules")
	cmd.Flags().Float64Var(&opts.MassBudgetKg, "mass-budget-kg", 0, "mass budget override (default derives from the latest budget)")
	return cmd
}

func planScheduleCmd() *cobra.Command {
	var crewName string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show the stored meal schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				meals, err := e.Repo.ListMeals(ctx, crewName)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(meals)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Crew", "Day", "Meal", "Food", "Grams", "Beverage", "Grams"})
				for _, m := range meals {
					tw.AppendRow(table.Row{m.CrewName, m.Day, m.Meal,
						m.FoodName, fmt.Sprintf("%.1f", m.FoodGrams),
						m.BeverageName, fmt.Sprintf("%.1f", m.BeverageGrams)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&crewName, "crew", "", "crew member filter")
	return cmd
}

func planSufficiencyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sufficiency",
		Short: "Per-crew intake sufficiency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				records, err := e.Repo.ListSufficiency(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(records)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Crew", "Status", "Intake ratio"})
				for _, s := range records {
					tw.AppendRow(table.Row{s.CrewName, s.Status, fmt.Sprintf("%.2f", s.IntakeRatio)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: crew changes, budget runs, plan runs, and more.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, e.Config.Mission.ID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys for the HTTP server",
	}
	k.AddCommand(apikeyCreateCmd())
	k.AddCommand(apikeyListCmd())
	k.AddCommand(apikeyDeleteCmd())
	return k
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (prints the key once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				actorID = viper.GetString("actor-id")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				plaintext := uuid.NewString()
				key := domain.APIKey{
					ID:      uuid.NewString(),
					ActorID: actorID,
					Name:    name,
					KeyHash: repo.HashAPIKey(plaintext),
				}
				if err := r.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "actor_id": key.ActorID, "key": plaintext})
				}
				fmt.Printf("API key %s for %s (store it now, it is only shown once):\n%s\n", key.ID, key.ActorID, plaintext)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor filter")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveMissionAndConfig(cmd.Context(), workspace, viper.GetString("mission"), viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("RATIONLINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("RATIONLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Rationline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveMissionAndConfig(ctx, workspace, viper.GetString("mission"), viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
