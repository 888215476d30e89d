package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"rationline/internal/config"
	"rationline/internal/db"
	"rationline/internal/engine"
	"rationline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("artemis")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Seed = 42
	if _, err := e.InitMission(context.Background(), cfg.Mission.ID, "", "tester"); err != nil {
		t.Fatalf("init mission: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func actorHeaders() map[string]string {
	return map[string]string{"X-Actor-Id": "tester"}
}

func seedCatalog(t *testing.T, srv *testServer) {
	t.Helper()
	client := srv.Client()
	base := srv.URL + "/v0/missions/artemis"

	res, data := doJSON(t, client, http.MethodPut, base+"/crew", map[string]any{
		"name": "Alexis", "mass_kg": 70.0,
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add crew: %d %s", res.StatusCode, string(data))
	}

	foods := map[string]float64{
		"Oatmeal": 3.8, "Stew": 1.1, "Rice": 1.3, "Pasta": 1.5,
		"Chili": 1.2, "Curry": 1.4, "Soup": 0.6, "Bars": 4.5,
	}
	for name, cpg := range foods {
		res, data := doJSON(t, client, http.MethodPut, base+"/foods", map[string]any{
			"name": name, "calories_per_gram": cpg,
		}, actorHeaders())
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("add food %s: %d %s", name, res.StatusCode, string(data))
		}
		res, data = doJSON(t, client, http.MethodPut, base+"/ratings/food", map[string]any{
			"crew_name": "Alexis", "item_name": name, "rating": 4,
		}, actorHeaders())
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("rate food %s: %d %s", name, res.StatusCode, string(data))
		}
	}
	beverages := map[string]float64{"Coffee": 0.4, "Tea": 0.3, "Cocoa": 0.9}
	for name, cpg := range beverages {
		res, data := doJSON(t, client, http.MethodPut, base+"/beverages", map[string]any{
			"name": name, "calories_per_gram": cpg,
		}, actorHeaders())
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("add beverage %s: %d %s", name, res.StatusCode, string(data))
		}
		res, data = doJSON(t, client, http.MethodPut, base+"/ratings/beverage", map[string]any{
			"crew_name": "Alexis", "item_name": name, "rating": 3,
		}, actorHeaders())
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("rate beverage %s: %d %s", name, res.StatusCode, string(data))
		}
	}
}

func TestHealthRequiresNoAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", res.StatusCode, string(data))
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/missions", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("expected code unauthorized, got %q", envelope.Error.Code)
	}
}

func TestBudgetLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0/missions/artemis"

	res, data := doJSON(t, client, http.MethodPost, base+"/budgets", map[string]any{}, actorHeaders())
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("budget without crew should be 422, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, base+"/crew", map[string]any{
		"name": "Alexis", "mass_kg": 70.0,
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add crew: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/budgets", map[string]any{}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("generate budget: %d %s", res.StatusCode, string(data))
	}
	var budget BudgetResponse
	if err := json.Unmarshal(data, &budget); err != nil {
		t.Fatalf("unmarshal budget: %v", err)
	}
	if budget.MissionID != "artemis" || budget.CrewCount != 1 {
		t.Fatalf("unexpected budget identity: %+v", budget)
	}
	if !budget.WithinLimit {
		t.Fatalf("single-crew default mission should fit the limit: %+v", budget)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/budgets/latest", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("latest budget: %d %s", res.StatusCode, string(data))
	}
	var latest BudgetResponse
	if err := json.Unmarshal(data, &latest); err != nil {
		t.Fatalf("unmarshal latest: %v", err)
	}
	if latest.ID != budget.ID {
		t.Fatalf("latest budget ID %s does not match generated %s", latest.ID, budget.ID)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/budgets/remaining", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("remaining budget: %d %s", res.StatusCode, string(data))
	}
	var remaining RemainingBudgetResponse
	if err := json.Unmarshal(data, &remaining); err != nil {
		t.Fatalf("unmarshal remaining: %v", err)
	}
	want := budget.BaseWeightLimitKg - budget.TotalMassKg
	if diff := remaining.RemainingKg - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("remaining %v, want %v", remaining.RemainingKg, want)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/events?type=budget.generated", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, string(data))
	}
	var events paginatedEvents
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(events.Items) != 1 || events.Items[0].EntityID != budget.ID {
		t.Fatalf("expected one budget.generated event for %s, got %+v", budget.ID, events.Items)
	}
}

func TestPlanLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	seedCatalog(t, srv)
	client := srv.Client()
	base := srv.URL + "/v0/missions/artemis"

	res, data := doJSON(t, client, http.MethodPost, base+"/plans", map[string]any{
		"days":           2,
		"seed":           7,
		"mass_budget_kg": 1e9,
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("plan meals: %d %s", res.StatusCode, string(data))
	}
	var plan PlanResponse
	if err := json.Unmarshal(data, &plan); err != nil {
		t.Fatalf("unmarshal plan: %v", err)
	}
	if plan.Fraction != 1.0 || !plan.Complete {
		t.Fatalf("unconstrained plan should serve the full ration: %+v", plan)
	}
	if len(plan.Schedules) != 1 || len(plan.Schedules[0].Meals) != 6 {
		t.Fatalf("expected one schedule with 6 meals, got %+v", plan.Schedules)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/schedule?crew_name=Alexis", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get schedule: %d %s", res.StatusCode, string(data))
	}
	var meals []MealResponse
	if err := json.Unmarshal(data, &meals); err != nil {
		t.Fatalf("unmarshal meals: %v", err)
	}
	if len(meals) != 6 {
		t.Fatalf("expected 6 stored meals, got %d", len(meals))
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/sufficiency", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("sufficiency: %d %s", res.StatusCode, string(data))
	}
	var records []SufficiencyResponse
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("unmarshal sufficiency: %v", err)
	}
	if len(records) != 1 || records[0].Status != "sufficient" {
		t.Fatalf("expected one sufficient record, got %+v", records)
	}
}

func TestRateItemRejectsUnknownCrew(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/missions/artemis/ratings/food", map[string]any{
		"crew_name": "ghost", "item_name": "Oatmeal", "rating": 4,
	}, actorHeaders())
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown crew, got %d %s", res.StatusCode, string(data))
	}
}

func TestDevLoginAndMe(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "dev",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if login.Token == "" {
		t.Fatal("expected a token")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	if err := json.Unmarshal(data, &who); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if who.ActorID != "dev" || who.Source != "jwt" {
		t.Fatalf("unexpected principal: %+v", who)
	}
}

func TestAPIKeyRoundTrip(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/apikeys", map[string]any{
		"actor_id": "robot", "name": "ci",
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create api key: %d %s", res.StatusCode, string(data))
	}
	var created APIKeyResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal key: %v", err)
	}
	if created.Key == "" {
		t.Fatal("expected the plaintext key once on creation")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{
		"X-Api-Key": created.Key,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me via api key: %d %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	if err := json.Unmarshal(data, &who); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if who.ActorID != "robot" || who.Source != "api_key" {
		t.Fatalf("unexpected principal: %+v", who)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/apikeys", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list keys: %d %s", res.StatusCode, string(data))
	}
	var keys []APIKeyResponse
	if err := json.Unmarshal(data, &keys); err != nil {
		t.Fatalf("unmarshal keys: %v", err)
	}
	if len(keys) != 1 || keys[0].Key != "" {
		t.Fatalf("listing must not leak key material: %+v", keys)
	}
}
