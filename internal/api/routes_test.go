package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/se-atlas/server/internal/auth"
	"github.com/se-atlas/server/internal/cache"
	"github.com/se-atlas/server/internal/geo"
	"github.com/se-atlas/server/internal/render"
	"github.com/se-atlas/server/internal/service"
)

// testServer holds the test server and its dependencies
type testServer struct {
	server   *httptest.Server
	sessions *auth.Store
	cache    *cache.Manager
}

func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

// setupTestServer initializes all components over a small in-memory
// dataset: two adjacent zones in one commune plus one elsewhere.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	zones := []geo.Zone{
		{Region: "Bamako", Cercle: "Bamako", Commune: "C1", ZoneID: "Z1", PopTotal: 100, PopConcession: 80, Geometry: square(0, 0, 0.01, 0.01)},
		{Region: "Bamako", Cercle: "Bamako", Commune: "C1", ZoneID: "Z2", PopTotal: 50, PopConcession: 40, Geometry: square(0.01, 0, 0.02, 0.01)},
		{Region: "Kayes", Cercle: "Kita", Commune: "K1", ZoneID: "Z3", PopTotal: 7, PopConcession: 6, Geometry: square(5, 5, 5.01, 5.01)},
	}
	points := []geo.Concession{
		geo.NewConcession(0.005, 0.005, map[string]string{"Masculin": "5", "Feminin": "3"}),
		geo.NewConcession(0.002, 0.002, map[string]string{"Masculin": "0", "Feminin": "2"}),
		geo.NewConcession(0.005, 0.015, map[string]string{"Masculin": "4", "Feminin": "4"}),
	}

	cacheManager, err := cache.NewManager(cache.Config{
		ImageCacheSizeMB: 16,
		ImageTTL:         time.Minute,
		QueryCacheSize:   100,
	})
	if err != nil {
		t.Fatalf("Failed to initialize cache: %v", err)
	}
	t.Cleanup(func() { cacheManager.Close() })

	verifier, err := auth.NewStaticVerifier(auth.DefaultCredentials())
	if err != nil {
		t.Fatalf("Failed to initialize verifier: %v", err)
	}
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("Failed to initialize tokens: %v", err)
	}
	sessions := auth.NewStore(16, time.Hour)

	registry := NewRegistry("Test Atlas", verifier.Usernames())
	registry.Register(DatasetInfo{Kind: "zones", URL: "memory://zones", Records: len(zones)})

	router := NewRouter(RouterConfig{
		Registry: registry,
		Dashboard: service.NewDashboard(service.DashboardConfig{
			Zones:       zones,
			Concessions: points,
			Cache:       cacheManager,
		}),
		Cache:       cacheManager,
		Charts:      render.NewCharts(render.ChartConfig{PieSize: 120, BarWidth: 240, BarHeight: 160}),
		MapView:     render.NewMapView(render.MapConfig{Width: 160, Height: 120}),
		Verifier:    verifier,
		Sessions:    sessions,
		Tokens:      tokens,
		CORSOrigins: []string{"http://localhost:3000"},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{server: srv, sessions: sessions, cache: cacheManager}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.server.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()

	resp := ts.do(t, http.MethodPost, "/api/login", "", loginRequest{Username: username, Password: password})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var out loginResponse
	decode(t, resp, &out)
	return out.Token
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", string(body))
	}
}

func TestInfoEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/info", "", nil)
	var info struct {
		Title     string        `json:"title"`
		Usernames []string      `json:"usernames"`
		Datasets  []DatasetInfo `json:"datasets"`
	}
	decode(t, resp, &info)
	if info.Title != "Test Atlas" {
		t.Errorf("unexpected title %q", info.Title)
	}
	if len(info.Usernames) != 2 || info.Usernames[0] != "admin" {
		t.Errorf("unexpected usernames %v", info.Usernames)
	}
	if len(info.Datasets) != 1 || info.Datasets[0].Records != 3 {
		t.Errorf("unexpected datasets %+v", info.Datasets)
	}
}

func TestLogin(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/login", "", loginRequest{Username: "admin", Password: "admin2025"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var out loginResponse
	decode(t, resp, &out)
	if out.Role != auth.RoleAdmin || out.Token == "" {
		t.Errorf("unexpected login response %+v", out)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "se_atlas_session" {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie, got %v", resp.Cookies())
	}
}

func TestLoginWrongPassword(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/login", "", loginRequest{Username: "admin", Password: "cust2025"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", resp.StatusCode)
	}
	var out errorResponse
	decode(t, resp, &out)
	if out.Error != "Incorrect password" {
		t.Errorf("unexpected error %q", out.Error)
	}
	if ts.sessions.Len() != 0 {
		t.Errorf("failed login must not create a session, have %d", ts.sessions.Len())
	}
}

func TestProtectedEndpointsRequireSession(t *testing.T) {
	ts := setupTestServer(t)

	for _, path := range []string{"/api/session", "/api/filters", "/api/stats/zone", "/api/map.png"} {
		resp := ts.do(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, resp.StatusCode)
		}
	}
	resp := ts.do(t, http.MethodGet, "/api/session", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("invalid token: expected 401, got %d", resp.StatusCode)
	}
}

func TestLogoutDiscardsSession(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, "customer", "cust2025")

	resp := ts.do(t, http.MethodPost, "/api/logout", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodGet, "/api/session", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("token of a logged out session should be rejected, got %d", resp.StatusCode)
	}
}

func TestFiltersEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, "admin", "admin2025")

	resp := ts.do(t, http.MethodGet, "/api/filters", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var out filtersResponse
	decode(t, resp, &out)
	if out.Selection.Region != "Bamako" || out.Selection.ZoneID != service.NoFilter {
		t.Errorf("unexpected default selection %+v", out.Selection)
	}
	want := []string{service.NoFilter, "Z1", "Z2"}
	if strings.Join(out.Options.ZoneIDs, ",") != strings.Join(want, ",") {
		t.Errorf("zone candidates = %v, want %v", out.Options.ZoneIDs, want)
	}

	resp = ts.do(t, http.MethodGet, "/api/filters?region=Kayes&cercle=Bamako", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("cercle outside region: expected 400, got %d", resp.StatusCode)
	}
}

func TestSelectionStoredInSession(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, "admin", "admin2025")

	sel := service.Selection{Region: "Bamako", Cercle: "Bamako", Commune: "C1", ZoneID: "Z1"}
	resp := ts.do(t, http.MethodPut, "/api/selection", token, sel)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/api/stats/zone", token, nil)
	var stats service.ZoneStats
	decode(t, resp, &stats)
	if !stats.Ready {
		t.Fatalf("expected stats for stored selection, got %+v", stats)
	}
	if len(stats.Population) != 2 || stats.Population[0].Value != 100 || stats.Population[1].Value != 80 {
		t.Errorf("unexpected population rows %+v", stats.Population)
	}
	if stats.Sex.Male != 5 || stats.Sex.Feminine != 5 || stats.Sex.Total != 10 {
		t.Errorf("unexpected sex totals %+v", stats.Sex)
	}

	// query parameters override the stored selection for one request
	resp = ts.do(t, http.MethodGet, "/api/stats/zone?region=Bamako&cercle=Bamako&commune=C1", token, nil)
	decode(t, resp, &stats)
	if stats.Ready || stats.Message != service.MsgSelectZone {
		t.Errorf("expected %q for No filter, got %+v", service.MsgSelectZone, stats)
	}
}

func TestZonesEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, "admin", "admin2025")

	resp := ts.do(t, http.MethodGet, "/api/zones", token, nil)
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("unexpected content type %q", ct)
	}
	var fc struct {
		Type     string    `json:"type"`
		BBox     []float64 `json:"bbox"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	decode(t, resp, &fc)
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("unexpected collection: type=%s features=%d", fc.Type, len(fc.Features))
	}
	if len(fc.BBox) != 4 || fc.BBox[2] != 0.02 {
		t.Errorf("unexpected bbox %v", fc.BBox)
	}
	if fc.Features[0].Properties["idse_new"] != "Z1" {
		t.Errorf("unexpected properties %v", fc.Features[0].Properties)
	}
}

func TestPointsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, "admin", "admin2025")

	resp := ts.do(t, http.MethodGet, "/api/points", token, nil)
	var fc struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	decode(t, resp, &fc)
	if len(fc.Features) != 3 {
		t.Fatalf("expected 3 points, got %d", len(fc.Features))
	}
	if c := fc.Features[0].Geometry.Coordinates; len(c) != 2 || c[0] != 0.005 || c[1] != 0.005 {
		t.Errorf("unexpected coordinates %v", c)
	}
}

func TestDrawnStatsLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, "customer", "cust2025")

	resp := ts.do(t, http.MethodGet, "/api/stats/drawn", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("no drawing yet: expected 404, got %d", resp.StatusCode)
	}

	envelope := `{"all_drawings":[
		{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[9,9],[9.1,9],[9.1,9.1],[9,9]]]}},
		{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0.001,0.001],[0.009,0.001],[0.009,0.009],[0.001,0.009],[0.001,0.001]]]}}
	]}`
	resp = ts.do(t, http.MethodPost, "/api/stats/drawn", token, envelope)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var stats service.DrawnStats
	decode(t, resp, &stats)
	if stats.Empty || stats.Sex.Total != 10 || stats.Sex.Count != 2 {
		t.Errorf("unexpected drawn stats %+v", stats)
	}

	resp = ts.do(t, http.MethodGet, "/api/charts/sex.png?source=drawn", token, nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("drawn pie: status %d type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp = ts.do(t, http.MethodDelete, "/api/stats/drawn", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodGet, "/api/stats/drawn", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cleared drawing: expected 404, got %d", resp.StatusCode)
	}
}

func TestDrawnStatsEmptyAndInvalid(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, "customer", "cust2025")

	far := `{"type":"Polygon","coordinates":[[[20,20],[21,20],[21,21],[20,20]]]}`
	resp := ts.do(t, http.MethodPost, "/api/stats/drawn", token, far)
	var stats service.DrawnStats
	decode(t, resp, &stats)
	if !stats.Empty || stats.Message != service.MsgNoPointsIn {
		t.Errorf("expected empty drawn stats, got %+v", stats)
	}

	open := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1]]]}`
	resp = ts.do(t, http.MethodPost, "/api/stats/drawn", token, open)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unclosed ring: expected 400, got %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodPost, "/api/stats/drawn", token, `{"type":"Point","coordinates":[0,0]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("point drawing: expected 400, got %d", resp.StatusCode)
	}
}

func TestChartEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, "admin", "admin2025")

	resp := ts.do(t, http.MethodGet, "/api/charts/population.png", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("No filter population chart: expected 404, got %d", resp.StatusCode)
	}

	q := "?region=Bamako&cercle=Bamako&commune=C1&zone=Z1"
	for _, path := range []string{"/api/charts/population.png" + q, "/api/charts/sex.png" + q, "/api/map.png" + q} {
		resp := ts.do(t, http.MethodGet, path, token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		if !bytes.HasPrefix(body, []byte("\x89PNG")) {
			t.Errorf("%s: body is not a PNG", path)
		}
	}

	resp = ts.do(t, http.MethodGet, "/api/charts/sex.png?source=other", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown source: expected 400, got %d", resp.StatusCode)
	}
	if ts.cache.Stats()["image_cache_len"].(int) != 3 {
		t.Errorf("expected 3 cached images, got %v", ts.cache.Stats()["image_cache_len"])
	}
}
