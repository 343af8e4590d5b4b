package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuqie6/LifeMirror/internal/eventbus"
	"github.com/yuqie6/LifeMirror/internal/repository"
	"github.com/yuqie6/LifeMirror/internal/rules"
	"github.com/yuqie6/LifeMirror/internal/schema"
	"github.com/yuqie6/LifeMirror/internal/service"
	"github.com/yuqie6/LifeMirror/internal/testutil"
)

const testUser = "0b6f3c1e-4a2d-4f53-9c1a-6f0e7d8a9b10"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestDeps(t *testing.T, src rules.Source) Deps {
	t.Helper()
	db := testutil.OpenTestDB(t)

	events := repository.NewEventRepository(db)
	scores := repository.NewDailyScoreRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	activity := repository.NewActivityRepository(db)
	risks := repository.NewRiskRepository(db)
	alerts := repository.NewAlertRepository(db)

	hub := eventbus.NewHub()
	provider := rules.NewProvider(src)
	movement := service.NewMovementService(events, movementRepo)
	daily := service.NewDailyScoreService(events, movementRepo, scores)
	risk := service.NewRiskService(events, movementRepo, activity, risks)

	return Deps{
		Name:        "lifemirror-test",
		Events:      service.NewEventService(events, daily, movement, alerts, provider, hub),
		Daily:       daily,
		Movement:    movement,
		Analytics:   service.NewAnalyticsService(events, movementRepo),
		Risk:        risk,
		Twin:        service.NewTwinService(events),
		Patterns:    service.NewPatternService(events, scores),
		Mosaic:      service.NewMosaicService(events, movementRepo, activity),
		SnapshotJob: service.NewSnapshotJob(events, movement, daily, risk, hub, 2),
		Rules:       provider,
		Hub:         hub,

		EventStore:    events,
		Alerts:        alerts,
		Activities:    activity,
		MovementStore: movementRepo,
	}
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, user string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(headerUserID, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return env.Error
}

func TestHealth(t *testing.T) {
	r := NewRouter(newTestDeps(t, rules.StaticSource{Rules: rules.Defaults()}))
	w := doJSON(t, r, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
}

func TestUserHeaderValidation(t *testing.T) {
	r := NewRouter(newTestDeps(t, rules.StaticSource{Rules: rules.Defaults()}))

	if w := doJSON(t, r, http.MethodGet, "/api/scores/daily", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing user status=%d, want 401", w.Code)
	}
	w := doJSON(t, r, http.MethodGet, "/api/scores/daily", nil, "not-a-uuid")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad user status=%d, want 400", w.Code)
	}
	if e := decodeError(t, w); e.Field != headerUserID {
		t.Fatalf("field=%q, want %s", e.Field, headerUserID)
	}
}

func TestCreateEventThenDailyScore(t *testing.T) {
	r := NewRouter(newTestDeps(t, rules.StaticSource{Rules: rules.Defaults()}))
	ts := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC).UnixMilli()

	w := doJSON(t, r, http.MethodPost, "/api/events", map[string]any{
		"event_type": "movement",
		"category":   "fitness",
		"title":      "Morning walk",
		"timestamp":  ts,
		"metadata":   map[string]any{"duration_minutes": 30, "steps": 10000},
	}, testUser)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", w.Code, w.Body.String())
	}
	var res service.CreateResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Degraded || res.Event == nil || res.Event.UserID != testUser {
		t.Fatalf("result=%+v", res)
	}

	w = doJSON(t, r, http.MethodGet, "/api/scores/daily?date=2025-03-10", nil, testUser)
	if w.Code != http.StatusOK {
		t.Fatalf("daily status=%d body=%s", w.Code, w.Body.String())
	}
	var scores service.DailyScores
	if err := json.Unmarshal(w.Body.Bytes(), &scores); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if scores.MovementScore != 100 || scores.WellnessScore != 80 || scores.WalletScore != 50 {
		t.Fatalf("scores=%+v", scores)
	}
}

func TestUnsupportedParamsAre400(t *testing.T) {
	r := NewRouter(newTestDeps(t, rules.StaticSource{Rules: rules.Defaults()}))

	cases := []string{
		"/api/analytics/trend?metric=stress",
		"/api/analytics/breakdown?type=planet",
		"/api/risk/stress",
		"/api/scores/daily?date=2025-13-40",
		"/api/movement/stats?days=abc",
	}
	for _, path := range cases {
		w := doJSON(t, r, http.MethodGet, path, nil, testUser)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s status=%d, want 400 (body=%s)", path, w.Code, w.Body.String())
		}
	}

	w := doJSON(t, r, http.MethodGet, "/api/risk/stress", nil, testUser)
	if e := decodeError(t, w); e.Code != "unsupported" || e.Field != "kind" {
		t.Fatalf("error=%+v", e)
	}
}

func TestMissingRulesIs503(t *testing.T) {
	r := NewRouter(newTestDeps(t, rules.StaticSource{Err: rules.ErrNoRules}))

	w := doJSON(t, r, http.MethodPost, "/api/events", map[string]any{
		"event_type": "food",
		"category":   "nutrition",
		"title":      "Lunch",
	}, testUser)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503 (body=%s)", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodGet, "/api/rules", nil, ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("rules status=%d, want 503", w.Code)
	}
}

func TestPutRulesPersistsAndBroadcasts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring_rules.yaml")
	deps := newTestDeps(t, rules.NewFileSource(path))
	r := NewRouter(deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := deps.Hub.Subscribe(ctx, "", 4)

	tree := rules.Defaults().Tree()
	w := doJSON(t, r, http.MethodPut, "/api/rules", tree, "")
	if w.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", w.Code, w.Body.String())
	}
	select {
	case evt := <-sub:
		if evt.Type != eventbus.TypeRulesReloaded {
			t.Fatalf("event=%+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatalf("no rules_reloaded event")
	}

	if w := doJSON(t, r, http.MethodGet, "/api/rules", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("get status=%d body=%s", w.Code, w.Body.String())
	}

	bad := map[string]any{
		"profiles": map[string]any{
			"Student": map[string]any{"food": map[string]any{"healthy_bonus": true}},
		},
	}
	w = doJSON(t, r, http.MethodPut, "/api/rules", bad, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad tree status=%d, want 400", w.Code)
	}
}

func TestSnapshotJobEndpoint(t *testing.T) {
	r := NewRouter(newTestDeps(t, rules.StaticSource{Rules: rules.Defaults()}))
	w := doJSON(t, r, http.MethodPost, "/api/jobs/snapshot?date=2025-03-10&lookback=2", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var res service.SnapshotJobResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Users != 0 || res.Date != "2025-03-10" {
		t.Fatalf("result=%+v", res)
	}
}

func TestEventListingAndLookup(t *testing.T) {
	r := NewRouter(newTestDeps(t, rules.StaticSource{Rules: rules.Defaults()}))
	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC).UnixMilli()

	w := doJSON(t, r, http.MethodPost, "/api/events", map[string]any{
		"event_type": "food",
		"category":   "nutrition",
		"title":      "Salad",
		"timestamp":  ts,
	}, testUser)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", w.Code, w.Body.String())
	}
	var res service.CreateResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doJSON(t, r, http.MethodGet, "/api/events?date=2025-03-10", nil, testUser)
	var list struct {
		Events []map[string]any `json:"events"`
		Total  int64            `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Events) != 1 || list.Total != 1 {
		t.Fatalf("list=%+v", list)
	}

	path := "/api/events/" + strconv.FormatInt(res.Event.ID, 10)
	if w := doJSON(t, r, http.MethodGet, path, nil, testUser); w.Code != http.StatusOK {
		t.Fatalf("get status=%d", w.Code)
	}
	other := "7d3c2b1a-0000-4000-8000-000000000001"
	if w := doJSON(t, r, http.MethodGet, path, nil, other); w.Code != http.StatusNotFound {
		t.Fatalf("other user status=%d, want 404", w.Code)
	}
}

func TestSpendingAlertListedAndMarkedRead(t *testing.T) {
	r := NewRouter(newTestDeps(t, rules.StaticSource{Rules: rules.Defaults()}))
	day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	for _, back := range []int{3, 1} {
		w := doJSON(t, r, http.MethodPost, "/api/events", map[string]any{
			"event_type": "spending",
			"category":   "finance",
			"title":      "Coffee",
			"amount":     10,
			"timestamp":  day.AddDate(0, 0, -back).UnixMilli(),
		}, testUser)
		if w.Code != http.StatusCreated {
			t.Fatalf("seed status=%d body=%s", w.Code, w.Body.String())
		}
	}
	ts := day.UnixMilli()

	w := doJSON(t, r, http.MethodPost, "/api/events", map[string]any{
		"event_type": "spending",
		"category":   "finance",
		"title":      "Dinner",
		"amount":     50,
		"timestamp":  ts,
	}, testUser)
	var res service.CreateResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Alert == nil {
		t.Fatalf("expected spending alert, result=%+v", res)
	}

	w = doJSON(t, r, http.MethodGet, "/api/alerts", nil, testUser)
	var alerts []schema.Alert
	if err := json.Unmarshal(w.Body.Bytes(), &alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Read {
		t.Fatalf("alerts=%+v", alerts)
	}

	if w := doJSON(t, r, http.MethodPost, "/api/alerts/"+alerts[0].ID+"/read", nil, testUser); w.Code != http.StatusOK {
		t.Fatalf("mark read status=%d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/alerts", nil, testUser)
	alerts = nil
	_ = json.Unmarshal(w.Body.Bytes(), &alerts)
	if len(alerts) != 1 || !alerts[0].Read {
		t.Fatalf("alerts after read=%+v", alerts)
	}
}

func TestFocusSessionFeedsMosaic(t *testing.T) {
	r := NewRouter(newTestDeps(t, rules.StaticSource{Rules: rules.Defaults()}))
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	w := doJSON(t, r, http.MethodPost, "/api/activities", map[string]any{
		"start_time": start.UnixMilli(),
		"end_time":   start.Add(2 * time.Hour).UnixMilli(),
	}, testUser)
	if w.Code != http.StatusCreated {
		t.Fatalf("activity status=%d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/mosaic/daily?date=2025-03-10", nil, testUser)
	var m service.DailyMosaic
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode mosaic: %v", err)
	}
	for _, tile := range m.Tiles {
		if tile.Key == "focus" && tile.Score != 100 {
			t.Fatalf("focus tile=%+v, want 100", tile)
		}
	}

	bad := doJSON(t, r, http.MethodPost, "/api/activities", map[string]any{
		"start_time": start.UnixMilli(),
		"end_time":   start.Add(-time.Hour).UnixMilli(),
	}, testUser)
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("inverted range status=%d, want 400", bad.Code)
	}
}

func TestMovementTestUpdatesAggregate(t *testing.T) {
	r := NewRouter(newTestDeps(t, rules.StaticSource{Rules: rules.Defaults()}))
	ts := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC).UnixMilli()

	w := doJSON(t, r, http.MethodPost, "/api/movement/tests", map[string]any{
		"test_type":        "plank",
		"duration_seconds": 120,
		"timestamp":        ts,
		"form_score":       70,
	}, testUser)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Daily schema.MovementDaily `json:"daily"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Daily.ActiveMinutes != 2 || out.Daily.WorkoutCount != 1 || out.Daily.Date != "2025-03-10" {
		t.Fatalf("daily=%+v", out.Daily)
	}
}
