package rationlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Rationline HTTP API client.
type Client struct {
	BaseURL     string
	MissionID   string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, missionID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		MissionID: missionID,
		Timeout:   10 * time.Second,
	}
}

// Mission represents the API mission model.
type Mission struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// CrewMember represents a registered crew member.
type CrewMember struct {
	Name   string  `json:"name"`
	MassKg float64 `json:"mass_kg"`
}

// Item represents a catalog food or beverage.
type Item struct {
	Name            string  `json:"name"`
	CaloriesPerGram float64 `json:"calories_per_gram"`
	FatPerGram      float64 `json:"fat_per_gram,omitempty"`
	SugarPerGram    float64 `json:"sugar_per_gram,omitempty"`
	ProteinPerGram  float64 `json:"protein_per_gram,omitempty"`
}

// Budget represents a life-support budget record (partial).
type Budget struct {
	ID            string  `json:"id"`
	MissionID     string  `json:"mission_id"`
	Timestamp     string  `json:"timestamp"`
	Duration      int     `json:"duration"`
	CrewCount     int     `json:"crew_count"`
	Activity      string  `json:"activity"`
	TotalMassKg   float64 `json:"total_life_support_mass_kg"`
	WithinLimit   bool    `json:"within_limit"`
	WeightLimitKg float64 `json:"weight_limit_kg"`
}

// RemainingBudget reports the mass headroom left for meals.
type RemainingBudget struct {
	BudgetID          string  `json:"budget_id"`
	BaseWeightLimitKg float64 `json:"base_weight_limit_kg"`
	LifeSupportMassKg float64 `json:"life_support_mass_kg"`
	MealMassKg        float64 `json:"meal_mass_kg"`
	RemainingKg       float64 `json:"remaining_kg"`
}

// Meal is one scheduled meal slot.
type Meal struct {
	CrewName      string  `json:"crew_name"`
	Day           int     `json:"day"`
	Meal          int     `json:"meal"`
	FoodName      string  `json:"food_name"`
	FoodGrams     float64 `json:"food_grams"`
	BeverageName  string  `json:"beverage_name"`
	BeverageGrams float64 `json:"beverage_grams"`
}

// Schedule is one crew member's planned meals.
type Schedule struct {
	CrewName      string  `json:"crew_name"`
	Meals         []Meal  `json:"meals"`
	DeliveredKcal float64 `json:"delivered_kcal"`
	MassG         float64 `json:"mass_g"`
	Complete      bool    `json:"complete"`
}

// Sufficiency grades delivered calories against the target.
type Sufficiency struct {
	CrewName    string  `json:"crew_name"`
	Status      string  `json:"status"`
	IntakeRatio float64 `json:"intake_ratio"`
}

// Plan is the result of a planning run.
type Plan struct {
	Fraction     float64       `json:"fraction"`
	TotalMassKg  float64       `json:"total_mass_kg"`
	Complete     bool          `json:"complete"`
	Warning      string        `json:"warning,omitempty"`
	Seed         int64         `json:"seed"`
	Days         int           `json:"days"`
	MassBudgetKg float64       `json:"mass_budget_kg"`
	Schedules    []Schedule    `json:"schedules"`
	Sufficiency  []Sufficiency `json:"sufficiency"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	MissionID  string         `json:"mission_id,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateMission creates the client's mission.
func (c *Client) CreateMission(ctx context.Context, description string) (Mission, error) {
	body := map[string]any{"id": c.MissionID}
	if description != "" {
		body["description"] = description
	}
	var resp Mission
	err := c.do(ctx, http.MethodPost, "v0/missions", body, &resp)
	return resp, err
}

// GetMission fetches the mission.
func (c *Client) GetMission(ctx context.Context) (Mission, error) {
	var resp Mission
	err := c.do(ctx, http.MethodGet, c.missionPath(""), nil, &resp)
	return resp, err
}

// CloseMission closes the mission.
func (c *Client) CloseMission(ctx context.Context) (Mission, error) {
	var resp Mission
	err := c.do(ctx, http.MethodPost, c.missionPath("close"), nil, &resp)
	return resp, err
}

// AddCrewMember registers or updates a crew member.
func (c *Client) AddCrewMember(ctx context.Context, name string, massKg float64) (CrewMember, error) {
	body := map[string]any{"name": name, "mass_kg": massKg}
	var resp CrewMember
	err := c.do(ctx, http.MethodPut, c.missionPath("crew"), body, &resp)
	return resp, err
}

// Crew lists the registered crew.
func (c *Client) Crew(ctx context.Context) ([]CrewMember, error) {
	var resp []CrewMember
	err := c.do(ctx, http.MethodGet, c.missionPath("crew"), nil, &resp)
	return resp, err
}

// AddFood registers or updates a food.
func (c *Client) AddFood(ctx context.Context, item Item) (Item, error) {
	var resp Item
	err := c.do(ctx, http.MethodPut, c.missionPath("foods"), item, &resp)
	return resp, err
}

// AddBeverage registers or updates a beverage.
func (c *Client) AddBeverage(ctx context.Context, item Item) (Item, error) {
	var resp Item
	err := c.do(ctx, http.MethodPut, c.missionPath("beverages"), item, &resp)
	return resp, err
}

// RateItem records a crew member's rating for a food or beverage.
// kind is "food" or "beverage"; rating runs 1-5.
func (c *Client) RateItem(ctx context.Context, kind, crewName, itemName string, rating int) error {
	body := map[string]any{
		"crew_name": crewName,
		"item_name": itemName,
		"rating":    rating,
	}
	endpoint := c.missionPath(fmt.Sprintf("ratings/%s", url.PathEscape(kind)))
	return c.do(ctx, http.MethodPut, endpoint, body, nil)
}

// GenerateBudget computes a life-support budget. Zero values fall back to
// the mission config.
func (c *Client) GenerateBudget(ctx context.Context, durationDays int, activity string) (Budget, error) {
	body := map[string]any{}
	if durationDays > 0 {
		body["duration_days"] = durationDays
	}
	if activity != "" {
		body["activity"] = activity
	}
	var resp Budget
	err := c.do(ctx, http.MethodPost, c.missionPath("budgets"), body, &resp)
	return resp, err
}

// LatestBudget returns the most recent budget record.
func (c *Client) LatestBudget(ctx context.Context) (Budget, error) {
	var resp Budget
	err := c.do(ctx, http.MethodGet, c.missionPath("budgets/latest"), nil, &resp)
	return resp, err
}

// RemainingBudget returns the mass headroom left for meals.
func (c *Client) RemainingBudget(ctx context.Context) (RemainingBudget, error) {
	var resp RemainingBudget
	err := c.do(ctx, http.MethodGet, c.missionPath("budgets/remaining"), nil, &resp)
	return resp, err
}

// PlanOptions tunes a planning run. Zero values use mission defaults.
type PlanOptions struct {
	CrewNames    []string
	Days         int
	StartDay     int
	Seed         int64
	MassBudgetKg float64
}

// PlanMeals runs the meal planner.
func (c *Client) PlanMeals(ctx context.Context, opts PlanOptions) (Plan, error) {
	body := map[string]any{}
	if len(opts.CrewNames) > 0 {
		body["crew_names"] = opts.CrewNames
	}
	if opts.Days > 0 {
		body["days"] = opts.Days
	}
	if opts.StartDay > 0 {
		body["start_day"] = opts.StartDay
	}
	if opts.Seed != 0 {
		body["seed"] = opts.Seed
	}
	if opts.MassBudgetKg > 0 {
		body["mass_budget_kg"] = opts.MassBudgetKg
	}
	var resp Plan
	err := c.do(ctx, http.MethodPost, c.missionPath("plans"), body, &resp)
	return resp, err
}

// ScheduleFor returns the stored meal schedule, optionally for one crew member.
func (c *Client) ScheduleFor(ctx context.Context, crewName string) ([]Meal, error) {
	endpoint := c.missionPath("schedule")
	if crewName != "" {
		endpoint = fmt.Sprintf("%s?crew_name=%s", endpoint, url.QueryEscape(crewName))
	}
	var resp []Meal
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SufficiencyReport returns per-crew intake sufficiency.
func (c *Client) SufficiencyReport(ctx context.Context) ([]Sufficiency, error) {
	var resp []Sufficiency
	err := c.do(ctx, http.MethodGet, c.missionPath("sufficiency"), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := c.missionPath("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) missionPath(p string) string {
	mission := url.PathEscape(c.MissionID)
	if p == "" {
		return fmt.Sprintf("v0/missions/%s", mission)
	}
	return fmt.Sprintf("v0/missions/%s/%s", mission, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
