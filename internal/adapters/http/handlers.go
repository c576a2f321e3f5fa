package http

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/config"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/geospatial"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/units"
)

// mapWidget is the drawing-map configuration sent to clients: initial
// view, zoom bounds, and the style applied to shapes as they are drawn.
type mapWidget struct {
	Center  domain.GeoPoint     `json:"center"`
	Zoom    int                 `json:"zoom"`
	MinZoom int                 `json:"min_zoom"`
	MaxZoom int                 `json:"max_zoom"`
	Draw    domain.FeatureStyle `json:"draw"`
}

func mapWidgetFrom(m config.MapConfig) mapWidget {
	return mapWidget{
		Center:  domain.GeoPoint{Lat: m.CenterLat, Lon: m.CenterLon},
		Zoom:    m.Zoom,
		MinZoom: m.MinZoom,
		MaxZoom: m.MaxZoom,
		Draw:    *drawStyle(m),
	}
}

// drawStyle is the configured styling applied to features drawn without
// an explicit style of their own.
func drawStyle(m config.MapConfig) *domain.FeatureStyle {
	return &domain.FeatureStyle{
		Color:       m.DrawColor,
		Weight:      3,
		Opacity:     0.9,
		FillColor:   m.DrawFillColor,
		FillOpacity: m.DrawFillOpacity,
	}
}

// featurePreview holds rough size figures computed locally from the
// drawn coordinates, shown before any analysis has run. They are
// spherical approximations, not the upstream's figures.
type featurePreview struct {
	ApproxAcres float64 `json:"approx_acres,omitempty"`
	ApproxMiles float64 `json:"approx_miles,omitempty"`
}

func previewFor(g domain.Geometry) *featurePreview {
	switch geom := g.Geometry.(type) {
	case orb.LineString:
		coords := make([][2]float64, len(geom))
		for i, pt := range geom {
			coords[i] = [2]float64{pt.Lon(), pt.Lat()}
		}
		return &featurePreview{ApproxMiles: units.Miles(geospatial.PathLength(coords))}
	case orb.Polygon:
		if len(geom) == 0 {
			return nil
		}
		outer := geom[0]
		coords := make([][2]float64, len(outer))
		for i, pt := range outer {
			coords[i] = [2]float64{pt.Lon(), pt.Lat()}
		}
		return &featurePreview{ApproxAcres: units.Acres(geospatial.RingArea(coords))}
	default:
		return nil
	}
}

// sketchFeature is one drawn shape as served to clients.
type sketchFeature struct {
	ID       string               `json:"id"`
	Geometry domain.Geometry      `json:"geometry"`
	Style    *domain.FeatureStyle `json:"style,omitempty"`
	DrawnAt  time.Time            `json:"drawn_at"`
	Preview  *featurePreview      `json:"preview,omitempty"`
}

// sketchResponse is a sketch plus the map widget configuration the web
// app needs to render and keep drawing on it.
type sketchResponse struct {
	ID        string          `json:"id"`
	Features  []sketchFeature `json:"features"`
	Map       mapWidget       `json:"map"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toSketchResponse(sketch *domain.Sketch, m config.MapConfig) sketchResponse {
	resp := sketchResponse{
		ID:        sketch.ID,
		Features:  make([]sketchFeature, 0, len(sketch.Features)),
		Map:       mapWidgetFrom(m),
		CreatedAt: sketch.CreatedAt,
		UpdatedAt: sketch.UpdatedAt,
	}
	for _, f := range sketch.Features {
		resp.Features = append(resp.Features, sketchFeature{
			ID:       f.ID,
			Geometry: f.Geometry,
			Style:    f.Style,
			DrawnAt:  f.DrawnAt,
			Preview:  previewFor(f.Geometry),
		})
	}
	return resp
}

// CreateSketchHandler starts an empty drawing session.
func CreateSketchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sketch, err := deps.Sketches.Create(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Location", "/v1/sketches/"+sketch.ID)
		return c.Status(201).JSON(toSketchResponse(sketch, deps.Map))
	}
}

// GetSketchHandler returns a sketch's features in drawing order.
func GetSketchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "sketch id is required")
		}
		sketch, err := deps.Sketches.Get(c.Context(), id)
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(toSketchResponse(sketch, deps.Map))
	}
}

// AddFeatureHandler appends a drawn shape to a sketch. The geometry is
// validated strictly; features drawn without a style get the configured
// draw styling.
func AddFeatureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "sketch id is required")
		}

		var req struct {
			Geometry domain.Geometry      `json:"geometry"`
			Style    *domain.FeatureStyle `json:"style"`
		}
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, err.Error())
		}

		style := req.Style
		if style == nil {
			style = drawStyle(deps.Map)
		}

		feature, err := deps.Sketches.AddFeature(c.Context(), id, req.Geometry, style)
		if err != nil {
			return domainError(c, err)
		}

		return c.Status(201).JSON(sketchFeature{
			ID:       feature.ID,
			Geometry: feature.Geometry,
			Style:    feature.Style,
			DrawnAt:  feature.DrawnAt,
			Preview:  previewFor(feature.Geometry),
		})
	}
}

// ClearFeaturesHandler removes every drawn shape from a sketch.
func ClearFeaturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "sketch id is required")
		}
		if err := deps.Sketches.Clear(c.Context(), id); err != nil {
			return domainError(c, err)
		}
		return c.SendStatus(204)
	}
}

// RemoveFeatureHandler deletes a single drawn shape from a sketch.
func RemoveFeatureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		featureID := c.Params("featureID")
		if id == "" || featureID == "" {
			return errBadRequest(c, "sketch id and feature id are required")
		}
		if err := deps.Sketches.RemoveFeature(c.Context(), id, featureID); err != nil {
			return domainError(c, err)
		}
		return c.SendStatus(204)
	}
}

// DeleteSketchHandler discards a drawing session entirely.
func DeleteSketchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "sketch id is required")
		}
		if err := deps.Sketches.Delete(c.Context(), id); err != nil {
			return domainError(c, err)
		}
		return c.SendStatus(204)
	}
}

// analysisRequest selects what to analyse: an inline geometry, or the
// last (or a named) feature captured on a sketch.
type analysisRequest struct {
	Geometry  domain.Geometry `json:"geometry"`
	SketchID  string          `json:"sketch_id"`
	FeatureID string          `json:"feature_id"`
	Async     bool            `json:"async"`
}

// analysisResponse is a report plus, once it has completed, the
// render-ready view: result map, donuts and the land-cover chart.
type analysisResponse struct {
	*domain.AnalysisReport
	View *domain.ReportView `json:"view,omitempty"`
}

func (deps *Dependencies) reportResponse(report *domain.AnalysisReport) analysisResponse {
	resp := analysisResponse{AnalysisReport: report}
	if view, err := deps.Reports.BuildView(report); err == nil {
		resp.View = view
	}
	return resp
}

// CreateAnalysisHandler runs the delineation pipeline. With
// {"async": true} the run is queued and a pending report returned;
// otherwise the call blocks until the report is ready.
func CreateAnalysisHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req analysisRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, err.Error())
		}

		input := req.Geometry
		featureID := req.FeatureID
		if input.Empty() && req.SketchID != "" {
			feature, err := resolveFeature(c, deps, req.SketchID, req.FeatureID)
			if err != nil {
				return err
			}
			input = feature.Geometry
			featureID = feature.ID
		}
		if input.Empty() {
			return errBadRequest(c, "geometry or sketch_id with a drawn feature is required")
		}

		if req.Async {
			report, err := deps.Analyses.Submit(c.Context(), input, req.SketchID, featureID)
			if err != nil {
				return domainError(c, err)
			}
			c.Set("Location", "/v1/analyses/"+report.ID)
			return c.Status(202).JSON(report)
		}

		report, err := deps.Analyses.Run(c.Context(), input, req.SketchID, featureID)
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(deps.reportResponse(report))
	}
}

// resolveFeature loads the feature an analysis request points at: a
// specific one by ID, or the sketch's most recently drawn shape.
func resolveFeature(c *fiber.Ctx, deps *Dependencies, sketchID, featureID string) (*domain.Feature, error) {
	if featureID == "" {
		feature, err := deps.Sketches.Latest(c.Context(), sketchID)
		if err != nil {
			return nil, domainError(c, err)
		}
		return feature, nil
	}

	sketch, err := deps.Sketches.Get(c.Context(), sketchID)
	if err != nil {
		return nil, domainError(c, err)
	}
	feature := sketch.FeatureByID(featureID)
	if feature == nil {
		return nil, errNotFound(c, "feature not found in sketch")
	}
	return feature, nil
}

// GetAnalysisHandler returns a stored report, including its view once
// the report is ready.
func GetAnalysisHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "report id is required")
		}
		if deps.Reports == nil {
			return errUnavailable(c, "report storage not configured")
		}
		report, err := deps.Reports.GetByID(c.Context(), id)
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(deps.reportResponse(report))
	}
}

// reportHeader is the compact list representation of a report.
type reportHeader struct {
	ID          string                `json:"id"`
	SketchID    string                `json:"sketch_id,omitempty"`
	Status      domain.AnalysisStatus `json:"status"`
	TotalAcres  float64               `json:"total_acres,omitempty"`
	Error       string                `json:"error,omitempty"`
	UpstreamMS  int64                 `json:"upstream_ms"`
	CreatedAt   time.Time             `json:"created_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

func reportHeaders(reports []domain.AnalysisReport) []reportHeader {
	headers := make([]reportHeader, 0, len(reports))
	for _, r := range reports {
		h := reportHeader{
			ID:          r.ID,
			SketchID:    r.SketchID,
			Status:      r.Status,
			Error:       r.Error,
			UpstreamMS:  r.UpstreamMS,
			CreatedAt:   r.CreatedAt,
			CompletedAt: r.CompletedAt,
		}
		if r.LandStats != nil {
			h.TotalAcres = r.LandStats.TotalAcres
		}
		headers = append(headers, h)
	}
	return headers
}

// ListAnalysesHandler lists report headers newest first, optionally
// filtered to one sketch.
func ListAnalysesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Reports == nil {
			return errUnavailable(c, "report storage not configured")
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 20)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		if sketchID := c.Query("sketch_id"); sketchID != "" {
			reports, err := deps.Reports.ListBySketch(c.Context(), sketchID)
			if err != nil {
				return errInternal(c, err.Error())
			}

			// Page the filtered list in memory; per-sketch report
			// counts stay small.
			total := len(reports)
			if offset >= total {
				reports = nil
			} else {
				end := offset + limit
				if end > total {
					end = total
				}
				reports = reports[offset:end]
			}

			pg := Pagination{Offset: offset, Limit: limit, Total: total}
			SetLinkHeaders(c, pg)
			return c.JSON(PaginatedResponse{Data: reportHeaders(reports), Pagination: pg})
		}

		reports, total, err := deps.Reports.List(c.Context(), limit, offset)
		if err != nil {
			return errInternal(c, err.Error())
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: reportHeaders(reports), Pagination: pg})
	}
}

// DeleteAnalysisHandler removes a stored report.
func DeleteAnalysisHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "report id is required")
		}
		if deps.Reports == nil {
			return errUnavailable(c, "report storage not configured")
		}
		if err := deps.Reports.Delete(c.Context(), id); err != nil {
			return domainError(c, err)
		}
		return c.SendStatus(204)
	}
}

// AnalyzeHandler is the deprecated one-shot endpoint: a bare GeoJSON
// geometry in, the finished report out. New clients should POST
// /v1/analyses instead; the deprecation headers point there.
func AnalyzeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()

		var input domain.Geometry
		if err := json.Unmarshal(body, &input); err != nil {
			// Tolerate the wrapped form for clients mid-migration.
			var req struct {
				Geometry domain.Geometry `json:"geometry"`
			}
			if werr := json.Unmarshal(body, &req); werr != nil || req.Geometry.Empty() {
				return errBadRequest(c, err.Error())
			}
			input = req.Geometry
		}

		report, err := deps.Analyses.Run(c.Context(), input, "", "")
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(deps.reportResponse(report))
	}
}

// LandCoverClassesHandler returns the NLCD class catalog the charts
// are colored by.
func LandCoverClassesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "public, max-age=86400")
		return c.JSON(fiber.Map{"classes": domain.LandCoverClasses()})
	}
}

// UpstreamStatusHandler reports the hydrology service's last known
// health, as probed by the sentinel.
func UpstreamStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Cache != nil {
			if data, err := deps.Cache.Get(c.Context(), domain.UpstreamStatusKey); err == nil {
				var status domain.UpstreamStatus
				if err := json.Unmarshal(data, &status); err == nil {
					c.Set("Cache-Control", "public, max-age=10")
					return c.JSON(status)
				}
			}
		}
		// No probe recorded yet.
		return c.JSON(fiber.Map{
			"base_url": deps.Upstream.BaseURL,
			"status":   "unknown",
		})
	}
}
