package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"

	handler "github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/http"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/hydroapi"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/usecases"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/config"
)

// ---- Mock stores ----

type mockSketchStore struct {
	saveFn   func(ctx context.Context, sketch *domain.Sketch) error
	getFn    func(ctx context.Context, id string) (*domain.Sketch, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockSketchStore) Save(ctx context.Context, sketch *domain.Sketch) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, sketch)
	}
	return nil
}
func (m *mockSketchStore) Get(ctx context.Context, id string) (*domain.Sketch, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrSketchNotFound
}
func (m *mockSketchStore) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockHydro struct {
	delineateFn func(ctx context.Context, geom domain.Geometry) (domain.Geometry, error)
	resourcesFn func(ctx context.Context, watershed domain.Geometry) (domain.ResourceSummary, error)
	landCoverFn func(ctx context.Context, watershed domain.Geometry) (domain.LandCoverSummary, error)
}

func (m *mockHydro) DelineateWatershed(ctx context.Context, geom domain.Geometry) (domain.Geometry, error) {
	if m.delineateFn != nil {
		return m.delineateFn(ctx, geom)
	}
	return watershedGeom(), nil
}
func (m *mockHydro) PriorityWaterResources(ctx context.Context, watershed domain.Geometry) (domain.ResourceSummary, error) {
	if m.resourcesFn != nil {
		return m.resourcesFn(ctx, watershed)
	}
	return domain.ResourceSummary{}, nil
}
func (m *mockHydro) LandCoverStatistics(ctx context.Context, watershed domain.Geometry) (domain.LandCoverSummary, error) {
	if m.landCoverFn != nil {
		return m.landCoverFn(ctx, watershed)
	}
	return domain.LandCoverSummary{}, nil
}

type mockReportRepo struct {
	createFn       func(ctx context.Context, report *domain.AnalysisReport) error
	getFn          func(ctx context.Context, id string) (*domain.AnalysisReport, error)
	listFn         func(ctx context.Context, limit, offset int) ([]domain.AnalysisReport, int, error)
	listBySketchFn func(ctx context.Context, sketchID string) ([]domain.AnalysisReport, error)
	deleteFn       func(ctx context.Context, id string) error
}

func (m *mockReportRepo) Create(ctx context.Context, report *domain.AnalysisReport) error {
	if m.createFn != nil {
		return m.createFn(ctx, report)
	}
	return nil
}
func (m *mockReportRepo) Update(ctx context.Context, report *domain.AnalysisReport) error { return nil }
func (m *mockReportRepo) GetByID(ctx context.Context, id string) (*domain.AnalysisReport, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrReportNotFound
}
func (m *mockReportRepo) List(ctx context.Context, limit, offset int) ([]domain.AnalysisReport, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, 0, nil
}
func (m *mockReportRepo) ListBySketch(ctx context.Context, sketchID string) ([]domain.AnalysisReport, error) {
	if m.listBySketchFn != nil {
		return m.listBySketchFn(ctx, sketchID)
	}
	return nil, nil
}
func (m *mockReportRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockEvents struct {
	mu     sync.Mutex
	jobs   []domain.AnalysisJob
	events []domain.AnalysisEvent
}

func (m *mockEvents) PublishAnalysisJob(ctx context.Context, job *domain.AnalysisJob) error {
	m.mu.Lock()
	m.jobs = append(m.jobs, *job)
	m.mu.Unlock()
	return nil
}
func (m *mockEvents) PublishAnalysisEvent(ctx context.Context, event *domain.AnalysisEvent) error {
	m.mu.Lock()
	m.events = append(m.events, *event)
	m.mu.Unlock()
	return nil
}
func (m *mockEvents) PublishBroadcast(ctx context.Context, data []byte) error { return nil }

// ---- Fixtures ----

func drawnPoint() domain.Geometry {
	g, _ := domain.NewGeometry(orb.Point{-75.16, 39.95})
	return g
}

func drawnPolygon() domain.Geometry {
	g, _ := domain.NewGeometry(orb.Polygon{{{-75.2, 39.9}, {-75.2, 39.91}, {-75.19, 39.91}, {-75.19, 39.9}, {-75.2, 39.9}}})
	return g
}

func drawnLine() domain.Geometry {
	g, _ := domain.NewGeometry(orb.LineString{{-75.2, 39.9}, {-75.19, 39.91}})
	return g
}

func watershedGeom() domain.Geometry {
	g, _ := domain.NewGeometry(orb.Polygon{{{-75.3, 39.8}, {-75.3, 40.1}, {-75.0, 40.1}, {-75.0, 39.8}, {-75.3, 39.8}}})
	return g
}

// scenarioHydro returns summaries with exactly one mile of stream bank,
// 1/2/3 acres of PWR categories and 15 acres of land cover, 5 of them
// wetlands, so the converted figures are easy to assert.
func scenarioHydro() *mockHydro {
	return &mockHydro{
		resourcesFn: func(ctx context.Context, watershed domain.Geometry) (domain.ResourceSummary, error) {
			return domain.ResourceSummaryFromMap(map[string]float64{
				"str_bank": 1609.34,
				"head_pwr": 4046.86,
				"ara_pwr":  8093.72,
				"wet_pwr":  0,
				"tot_pwr":  12140.58,
			})
		},
		landCoverFn: func(ctx context.Context, watershed domain.Geometry) (domain.LandCoverSummary, error) {
			return domain.LandCoverSummary{"41": 40468.6, "90": 20234.3}, nil
		},
	}
}

func storedSketch(features ...domain.Feature) *domain.Sketch {
	created := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	return &domain.Sketch{ID: "sk-1", Features: features, CreatedAt: created, UpdatedAt: created}
}

func readyReport(id string) *domain.AnalysisReport {
	resources, _ := domain.ResourceSummaryFromMap(map[string]float64{
		"str_bank": 1609.34,
		"head_pwr": 4046.86,
		"ara_pwr":  8093.72,
		"wet_pwr":  0,
		"tot_pwr":  12140.58,
	})
	landCover := domain.LandCoverSummary{"41": 40468.6, "90": 20234.3}
	stats := landCover.Convert()
	breakdown := resources.Convert(stats.TotalAcres)

	created := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	completed := created.Add(3 * time.Second)
	return &domain.AnalysisReport{
		ID:          id,
		SketchID:    "sk-1",
		Status:      domain.AnalysisReady,
		Input:       drawnPoint(),
		Watershed:   watershedGeom(),
		Resources:   &resources,
		LandCover:   landCover,
		Breakdown:   &breakdown,
		LandStats:   &stats,
		UpstreamMS:  2500,
		CreatedAt:   created,
		CompletedAt: &completed,
	}
}

// ---- Test helpers ----

func testMapCfg() config.MapConfig {
	return config.MapConfig{
		CenterLat:       40.19,
		CenterLon:       -75.45,
		Zoom:            13,
		MinZoom:         2,
		MaxZoom:         18,
		DrawColor:       "#226688",
		DrawFillColor:   "#226688",
		DrawFillOpacity: 0.15,
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		Sketches: usecases.NewSketchService(&mockSketchStore{}),
		Analyses: usecases.NewAnalysisService(&mockHydro{}, &mockReportRepo{}, nil, nil, 60),
		Reports:  usecases.NewReportService(&mockReportRepo{}, 13),
		Map:      testMapCfg(),
		Upstream: config.UpstreamConfig{BaseURL: "https://watersheds.example.org", Timeout: 60},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func postJSON(t *testing.T, app *fiber.App, target, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("POST", target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// sketchPayload mirrors the wire shape of a sketch response.
type sketchPayload struct {
	ID       string `json:"id"`
	Features []struct {
		ID      string               `json:"id"`
		Style   *domain.FeatureStyle `json:"style"`
		Preview *struct {
			ApproxAcres float64 `json:"approx_acres"`
			ApproxMiles float64 `json:"approx_miles"`
		} `json:"preview"`
	} `json:"features"`
	Map struct {
		Center  domain.GeoPoint     `json:"center"`
		Zoom    int                 `json:"zoom"`
		MinZoom int                 `json:"min_zoom"`
		MaxZoom int                 `json:"max_zoom"`
		Draw    domain.FeatureStyle `json:"draw"`
	} `json:"map"`
}

// reportPayload mirrors the wire shape of an analysis response.
type reportPayload struct {
	domain.AnalysisReport
	View *domain.ReportView `json:"view"`
}

// ---- Sketch handler tests ----

func TestCreateSketch(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/sketches", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var sketch sketchPayload
	if err := json.NewDecoder(resp.Body).Decode(&sketch); err != nil {
		t.Fatal(err)
	}
	if sketch.ID == "" {
		t.Fatal("expected a sketch ID")
	}
	if loc := resp.Header.Get("Location"); loc != "/v1/sketches/"+sketch.ID {
		t.Errorf("Location = %q", loc)
	}
	if len(sketch.Features) != 0 {
		t.Errorf("new sketch has %d features", len(sketch.Features))
	}
	if sketch.Map.Zoom != 13 || sketch.Map.MinZoom != 2 || sketch.Map.MaxZoom != 18 {
		t.Errorf("map zoom config = %d [%d, %d]", sketch.Map.Zoom, sketch.Map.MinZoom, sketch.Map.MaxZoom)
	}
	if sketch.Map.Draw.Color != "#226688" {
		t.Errorf("draw color = %q", sketch.Map.Draw.Color)
	}
}

func TestGetSketch_FeaturePreviews(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sketches = usecases.NewSketchService(&mockSketchStore{
			getFn: func(ctx context.Context, id string) (*domain.Sketch, error) {
				return storedSketch(
					domain.Feature{ID: "f-poly", Geometry: drawnPolygon()},
					domain.Feature{ID: "f-line", Geometry: drawnLine()},
					domain.Feature{ID: "f-point", Geometry: drawnPoint()},
				), nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/sketches/sk-1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var sketch sketchPayload
	if err := json.NewDecoder(resp.Body).Decode(&sketch); err != nil {
		t.Fatal(err)
	}
	if len(sketch.Features) != 3 {
		t.Fatalf("expected 3 features, got %d", len(sketch.Features))
	}
	// Drawing order is preserved.
	if sketch.Features[0].ID != "f-poly" || sketch.Features[2].ID != "f-point" {
		t.Errorf("feature order = %s, %s, %s", sketch.Features[0].ID, sketch.Features[1].ID, sketch.Features[2].ID)
	}
	if p := sketch.Features[0].Preview; p == nil || p.ApproxAcres <= 0 {
		t.Error("polygon feature is missing its acreage preview")
	}
	if p := sketch.Features[1].Preview; p == nil || p.ApproxMiles <= 0 {
		t.Error("line feature is missing its length preview")
	}
	if sketch.Features[2].Preview != nil {
		t.Error("point feature should have no size preview")
	}
}

func TestGetSketch_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/sketches/gone", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Status int    `json:"status"`
		Code   string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "not_found" {
		t.Errorf("expected not_found error, got %s", apiErr.Code)
	}
}

func TestAddFeature_DefaultStyle(t *testing.T) {
	var saved *domain.Sketch
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sketches = usecases.NewSketchService(&mockSketchStore{
			getFn: func(ctx context.Context, id string) (*domain.Sketch, error) {
				return storedSketch(), nil
			},
			saveFn: func(ctx context.Context, sketch *domain.Sketch) error {
				saved = sketch
				return nil
			},
		})
	})
	app := setupApp(deps)

	body := `{"geometry":{"type":"Polygon","coordinates":[[[-75.2,39.9],[-75.2,39.91],[-75.19,39.91],[-75.19,39.9],[-75.2,39.9]]]}}`
	resp := postJSON(t, app, "/v1/sketches/sk-1/features", body)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var feature struct {
		ID      string               `json:"id"`
		Style   *domain.FeatureStyle `json:"style"`
		DrawnAt time.Time            `json:"drawn_at"`
		Preview *struct {
			ApproxAcres float64 `json:"approx_acres"`
		} `json:"preview"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&feature); err != nil {
		t.Fatal(err)
	}
	if feature.ID == "" {
		t.Error("expected a feature ID")
	}
	if feature.Style == nil || feature.Style.Color != "#226688" {
		t.Errorf("expected the configured draw style, got %+v", feature.Style)
	}
	if feature.DrawnAt.IsZero() {
		t.Error("drawn_at not set")
	}
	if feature.Preview == nil || feature.Preview.ApproxAcres <= 0 {
		t.Error("expected an acreage preview for the polygon")
	}
	if saved == nil || len(saved.Features) != 1 {
		t.Fatal("feature was not persisted to the sketch")
	}
}

func TestAddFeature_KeepsClientStyle(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sketches = usecases.NewSketchService(&mockSketchStore{
			getFn: func(ctx context.Context, id string) (*domain.Sketch, error) {
				return storedSketch(), nil
			},
		})
	})
	app := setupApp(deps)

	body := `{"geometry":{"type":"Point","coordinates":[-75.16,39.95]},"style":{"color":"#ff0000","weight":5,"opacity":1}}`
	resp := postJSON(t, app, "/v1/sketches/sk-1/features", body)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var feature struct {
		Style *domain.FeatureStyle `json:"style"`
	}
	json.NewDecoder(resp.Body).Decode(&feature)
	if feature.Style == nil || feature.Style.Color != "#ff0000" {
		t.Errorf("client style not kept: %+v", feature.Style)
	}
}

func TestAddFeature_UnclosedRing(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"geometry":{"type":"Polygon","coordinates":[[[-75.2,39.9],[-75.2,39.91],[-75.19,39.91],[-75.19,39.9]]]}}`
	resp := postJSON(t, app, "/v1/sketches/sk-1/features", body)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request, got %s", apiErr.Code)
	}
}

func TestAddFeature_UnsupportedGeometry(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"geometry":{"type":"MultiPolygon","coordinates":[[[[-75.2,39.9],[-75.2,39.91],[-75.19,39.91],[-75.2,39.9]]]]}}`
	resp := postJSON(t, app, "/v1/sketches/sk-1/features", body)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestClearFeatures(t *testing.T) {
	var saved *domain.Sketch
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sketches = usecases.NewSketchService(&mockSketchStore{
			getFn: func(ctx context.Context, id string) (*domain.Sketch, error) {
				return storedSketch(domain.Feature{ID: "f1", Geometry: drawnPolygon()}), nil
			},
			saveFn: func(ctx context.Context, sketch *domain.Sketch) error {
				saved = sketch
				return nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("DELETE", "/v1/sketches/sk-1/features", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if saved == nil || len(saved.Features) != 0 {
		t.Error("features were not cleared")
	}
}

func TestRemoveFeature(t *testing.T) {
	var saved *domain.Sketch
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sketches = usecases.NewSketchService(&mockSketchStore{
			getFn: func(ctx context.Context, id string) (*domain.Sketch, error) {
				return storedSketch(
					domain.Feature{ID: "f1", Geometry: drawnPolygon()},
					domain.Feature{ID: "f2", Geometry: drawnPoint()},
				), nil
			},
			saveFn: func(ctx context.Context, sketch *domain.Sketch) error {
				saved = sketch
				return nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("DELETE", "/v1/sketches/sk-1/features/f1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if saved == nil || len(saved.Features) != 1 || saved.Features[0].ID != "f2" {
		t.Errorf("expected only f2 to remain, got %+v", saved)
	}
}

func TestRemoveFeature_Unknown(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sketches = usecases.NewSketchService(&mockSketchStore{
			getFn: func(ctx context.Context, id string) (*domain.Sketch, error) {
				return storedSketch(domain.Feature{ID: "f1", Geometry: drawnPolygon()}), nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("DELETE", "/v1/sketches/sk-1/features/nope", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDeleteSketch(t *testing.T) {
	var deleted string
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sketches = usecases.NewSketchService(&mockSketchStore{
			deleteFn: func(ctx context.Context, id string) error {
				deleted = id
				return nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("DELETE", "/v1/sketches/sk-1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if deleted != "sk-1" {
		t.Errorf("deleted sketch = %q", deleted)
	}
}

// ---- Analysis handler tests ----

func TestCreateAnalysis_Sync(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Analyses = usecases.NewAnalysisService(scenarioHydro(), &mockReportRepo{}, nil, nil, 60)
	})
	app := setupApp(deps)

	body := `{"geometry":{"type":"Point","coordinates":[-75.16,39.95]}}`
	resp := postJSON(t, app, "/v1/analyses", body)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var report reportPayload
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Status != domain.AnalysisReady {
		t.Fatalf("status = %s", report.Status)
	}
	if report.Breakdown == nil {
		t.Fatal("breakdown missing")
	}
	if math.Abs(report.Breakdown.StreamBankMiles-1.0) > 1e-6 {
		t.Errorf("stream bank = %g miles, want 1.0", report.Breakdown.StreamBankMiles)
	}
	if report.LandStats == nil || math.Abs(report.LandStats.TotalAcres-15.0) > 1e-6 {
		t.Errorf("land stats = %+v, want 15 acres total", report.LandStats)
	}

	view := report.View
	if view == nil {
		t.Fatal("completed report has no view")
	}
	if len(view.Donuts) != 4 {
		t.Fatalf("expected 4 donuts, got %d", len(view.Donuts))
	}
	if view.Donuts[2].Title != "Wetlands" {
		t.Errorf("third donut = %q", view.Donuts[2].Title)
	}
	// The wetlands donut shows the land-cover aggregate (5 of 15 acres),
	// not the PWR service's zero wet_pwr figure.
	if got := view.Donuts[2].Slices[0].Value; math.Abs(got-33.3333) > 0.01 {
		t.Errorf("wetlands share = %g", got)
	}
	// 15 acres maps to zoom 16 via the acreage fit.
	if view.Map.Zoom != 16 {
		t.Errorf("map zoom = %d, want 16", view.Map.Zoom)
	}
	if len(view.Map.Layers) != 2 || view.Map.Layers[0].Name != "watershed" || view.Map.Layers[1].Name != "drawn shape" {
		t.Errorf("unexpected map layers: %+v", view.Map.Layers)
	}
	if len(view.LandCover.Bars) != 2 || view.LandCover.Bars[0].Label != "Deciduous Forest" {
		t.Errorf("unexpected land-cover bars: %+v", view.LandCover.Bars)
	}
}

func TestCreateAnalysis_FromSketchLatest(t *testing.T) {
	t0 := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sketches = usecases.NewSketchService(&mockSketchStore{
			getFn: func(ctx context.Context, id string) (*domain.Sketch, error) {
				return storedSketch(
					domain.Feature{ID: "f1", Geometry: drawnPolygon(), DrawnAt: t0},
					domain.Feature{ID: "f2", Geometry: drawnPoint(), DrawnAt: t0.Add(time.Minute)},
				), nil
			},
		})
	})
	app := setupApp(deps)

	resp := postJSON(t, app, "/v1/analyses", `{"sketch_id":"sk-1"}`)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var report reportPayload
	json.NewDecoder(resp.Body).Decode(&report)
	if report.FeatureID != "f2" {
		t.Errorf("analysed feature = %q, want the most recently drawn f2", report.FeatureID)
	}
	if report.SketchID != "sk-1" {
		t.Errorf("sketch id = %q", report.SketchID)
	}
}

func TestCreateAnalysis_NamedFeature(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sketches = usecases.NewSketchService(&mockSketchStore{
			getFn: func(ctx context.Context, id string) (*domain.Sketch, error) {
				return storedSketch(
					domain.Feature{ID: "f1", Geometry: drawnPolygon()},
					domain.Feature{ID: "f2", Geometry: drawnPoint()},
				), nil
			},
		})
	})
	app := setupApp(deps)

	resp := postJSON(t, app, "/v1/analyses", `{"sketch_id":"sk-1","feature_id":"f1"}`)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var report reportPayload
	json.NewDecoder(resp.Body).Decode(&report)
	if report.FeatureID != "f1" {
		t.Errorf("analysed feature = %q, want f1", report.FeatureID)
	}
}

func TestCreateAnalysis_FeatureNotInSketch(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sketches = usecases.NewSketchService(&mockSketchStore{
			getFn: func(ctx context.Context, id string) (*domain.Sketch, error) {
				return storedSketch(domain.Feature{ID: "f1", Geometry: drawnPolygon()}), nil
			},
		})
	})
	app := setupApp(deps)

	resp := postJSON(t, app, "/v1/analyses", `{"sketch_id":"sk-1","feature_id":"nope"}`)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateAnalysis_NoInput(t *testing.T) {
	app := setupApp(makeDeps())

	resp := postJSON(t, app, "/v1/analyses", `{}`)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request, got %s", apiErr.Code)
	}
}

func TestCreateAnalysis_Async(t *testing.T) {
	events := &mockEvents{}
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Analyses = usecases.NewAnalysisService(scenarioHydro(), &mockReportRepo{}, nil, events, 60)
	})
	app := setupApp(deps)

	body := `{"geometry":{"type":"Point","coordinates":[-75.16,39.95]},"async":true}`
	resp := postJSON(t, app, "/v1/analyses", body)
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var report reportPayload
	json.NewDecoder(resp.Body).Decode(&report)
	if report.Status != domain.AnalysisPending {
		t.Errorf("status = %s, want pending", report.Status)
	}
	if loc := resp.Header.Get("Location"); loc != "/v1/analyses/"+report.ID {
		t.Errorf("Location = %q", loc)
	}
	if len(events.jobs) != 1 {
		t.Fatalf("expected 1 queued job, got %d", len(events.jobs))
	}
	if events.jobs[0].ReportID != report.ID {
		t.Errorf("job report ID = %s, want %s", events.jobs[0].ReportID, report.ID)
	}
}

func TestCreateAnalysis_UpstreamFailure(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		hydro := &mockHydro{
			delineateFn: func(ctx context.Context, geom domain.Geometry) (domain.Geometry, error) {
				return domain.Geometry{}, &hydroapi.UpstreamError{
					Endpoint: "/api/watershedboundary/",
					Status:   500,
					Err:      errors.New("delineation failed"),
				}
			},
		}
		d.Analyses = usecases.NewAnalysisService(hydro, &mockReportRepo{}, nil, nil, 60)
	})
	app := setupApp(deps)

	body := `{"geometry":{"type":"Point","coordinates":[-75.16,39.95]}}`
	resp := postJSON(t, app, "/v1/analyses", body)
	if resp.StatusCode != 502 {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_gateway" {
		t.Errorf("expected bad_gateway, got %s", apiErr.Code)
	}
}

// ---- Report handler tests ----

func TestGetAnalysis_Ready(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Reports = usecases.NewReportService(&mockReportRepo{
			getFn: func(ctx context.Context, id string) (*domain.AnalysisReport, error) {
				return readyReport(id), nil
			},
		}, 13)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/analyses/r-1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var report reportPayload
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.ID != "r-1" {
		t.Errorf("report id = %s", report.ID)
	}
	if report.View == nil {
		t.Fatal("ready report has no view")
	}
	if len(report.View.Donuts) != 4 {
		t.Errorf("expected 4 donuts, got %d", len(report.View.Donuts))
	}
}

func TestGetAnalysis_PendingHasNoView(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Reports = usecases.NewReportService(&mockReportRepo{
			getFn: func(ctx context.Context, id string) (*domain.AnalysisReport, error) {
				return &domain.AnalysisReport{
					ID:        id,
					Status:    domain.AnalysisPending,
					Input:     drawnPoint(),
					CreatedAt: time.Now().UTC(),
				}, nil
			},
		}, 13)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/analyses/r-2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var report reportPayload
	json.NewDecoder(resp.Body).Decode(&report)
	if report.Status != domain.AnalysisPending {
		t.Errorf("status = %s", report.Status)
	}
	if report.View != nil {
		t.Error("pending report should not carry a view")
	}
}

func TestGetAnalysis_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/analyses/missing", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %s", apiErr.Code)
	}
}

func TestDeleteAnalysis(t *testing.T) {
	var deleted string
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Reports = usecases.NewReportService(&mockReportRepo{
			deleteFn: func(ctx context.Context, id string) error {
				deleted = id
				return nil
			},
		}, 13)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("DELETE", "/v1/analyses/r-1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if deleted != "r-1" {
		t.Errorf("deleted report = %q", deleted)
	}
}

func TestDeleteAnalysis_NotFound(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Reports = usecases.NewReportService(&mockReportRepo{
			deleteFn: func(ctx context.Context, id string) error {
				return domain.ErrReportNotFound
			},
		}, 13)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("DELETE", "/v1/analyses/missing", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListAnalyses(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Reports = usecases.NewReportService(&mockReportRepo{
			listFn: func(ctx context.Context, limit, offset int) ([]domain.AnalysisReport, int, error) {
				return []domain.AnalysisReport{*readyReport("r-1"), *readyReport("r-2")}, 5, nil
			},
		}, 13)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/analyses?limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data []struct {
			ID         string  `json:"id"`
			Status     string  `json:"status"`
			TotalAcres float64 `json:"total_acres"`
		} `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Total != 5 {
		t.Errorf("expected total 5, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 {
		t.Fatalf("expected 2 reports in page, got %d", len(result.Data))
	}
	if math.Abs(result.Data[0].TotalAcres-15.0) > 1e-6 {
		t.Errorf("header total acres = %g", result.Data[0].TotalAcres)
	}

	link := resp.Header.Get("Link")
	if !strings.Contains(link, `rel="first"`) || !strings.Contains(link, `rel="next"`) {
		t.Errorf("expected pagination links, got %s", link)
	}
}

func TestListAnalyses_SketchFilter(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Reports = usecases.NewReportService(&mockReportRepo{
			listBySketchFn: func(ctx context.Context, sketchID string) ([]domain.AnalysisReport, error) {
				if sketchID != "sk-1" {
					return nil, nil
				}
				return []domain.AnalysisReport{*readyReport("r-1"), *readyReport("r-2"), *readyReport("r-3")}, nil
			},
		}, 13)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/analyses?sketch_id=sk-1&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []json.RawMessage `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Total != 3 {
		t.Errorf("expected total 3, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 reports in page, got %d", len(result.Data))
	}

	// The filter survives into the pagination links.
	if link := resp.Header.Get("Link"); !strings.Contains(link, "sketch_id=sk-1") {
		t.Errorf("expected sketch_id in links, got %s", link)
	}
}

// ---- Deprecated analyze endpoint tests ----

func TestAnalyze_BareGeometry(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Analyses = usecases.NewAnalysisService(scenarioHydro(), &mockReportRepo{}, nil, nil, 60)
	})
	app := setupApp(deps)

	resp := postJSON(t, app, "/v1/analyze", `{"type":"Point","coordinates":[-75.16,39.95]}`)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var report reportPayload
	json.NewDecoder(resp.Body).Decode(&report)
	if report.Status != domain.AnalysisReady {
		t.Errorf("status = %s", report.Status)
	}

	if d := resp.Header.Get("Deprecation"); d != "true" {
		t.Errorf("Deprecation header = %q", d)
	}
	if resp.Header.Get("Sunset") == "" {
		t.Error("Sunset header missing")
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, `rel="successor-version"`) {
		t.Errorf("expected successor link, got %s", link)
	}
}

func TestAnalyze_WrappedGeometry(t *testing.T) {
	app := setupApp(makeDeps())

	resp := postJSON(t, app, "/v1/analyze", `{"geometry":{"type":"Point","coordinates":[-75.16,39.95]}}`)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

// ---- Land-cover catalog tests ----

func TestLandCoverClasses(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/landcover/classes", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Classes []domain.LandCoverClass `json:"classes"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Classes) == 0 {
		t.Fatal("expected the NLCD legend")
	}
	var woody *domain.LandCoverClass
	for i := range result.Classes {
		if result.Classes[i].Code == "90" {
			woody = &result.Classes[i]
		}
	}
	if woody == nil || woody.Label != "Woody Wetlands" {
		t.Errorf("class 90 = %+v", woody)
	}

	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=86400" {
		t.Errorf("Cache-Control = %q", cc)
	}
}

// ---- Upstream status tests ----

func TestUpstreamStatus_NoProbeYet(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/upstream", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "unknown" {
		t.Errorf("status = %v, want unknown before any probe", result["status"])
	}
	if result["base_url"] != "https://watersheds.example.org" {
		t.Errorf("base_url = %v", result["base_url"])
	}
}

// ---- Health handler tests ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
}

func TestReady_NoDB(t *testing.T) {
	deps := makeDeps()
	// DB, NATS, Cache are nil → should report not ready
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

// ---- X-API-Version header ----

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := resp.Header.Get("X-API-Version")
	if v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}
