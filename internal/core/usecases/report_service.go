package usecases

import (
	"context"
	"time"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/ports"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/units"
)

// ReportService reads stored analysis reports and builds their
// visualization view models.
type ReportService struct {
	reports     ports.ReportRepository
	defaultZoom int
}

// NewReportService creates a new ReportService. defaultZoom is used
// when no zoom can be derived from a report's acreage.
func NewReportService(reports ports.ReportRepository, defaultZoom int) *ReportService {
	return &ReportService{reports: reports, defaultZoom: defaultZoom}
}

// GetByID returns a single report.
func (s *ReportService) GetByID(ctx context.Context, id string) (*domain.AnalysisReport, error) {
	return s.reports.GetByID(ctx, id)
}

// List returns a page of reports newest-first plus the total count.
func (s *ReportService) List(ctx context.Context, limit, offset int) ([]domain.AnalysisReport, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.reports.List(ctx, limit, offset)
}

// ListBySketch returns every report produced from one sketch.
func (s *ReportService) ListBySketch(ctx context.Context, sketchID string) ([]domain.AnalysisReport, error) {
	return s.reports.ListBySketch(ctx, sketchID)
}

// Delete removes a stored report.
func (s *ReportService) Delete(ctx context.Context, id string) error {
	return s.reports.Delete(ctx, id)
}

// View builds the render-ready view model for a completed report: the
// result map with both overlays, the four resource donuts and the
// land-cover bar chart.
func (s *ReportService) View(ctx context.Context, id string) (*domain.ReportView, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.BuildView(report)
}

// BuildView assembles the view model from an in-memory report.
func (s *ReportService) BuildView(report *domain.AnalysisReport) (*domain.ReportView, error) {
	if report.Status != domain.AnalysisReady || report.Breakdown == nil || report.LandStats == nil {
		return nil, domain.ErrReportNotReady
	}

	zoom := s.defaultZoom
	if z, ok := units.SuggestZoom(report.LandStats.TotalAcres); ok {
		zoom = z
	}

	return &domain.ReportView{
		ReportID:    report.ID,
		Map:         domain.NewMapView(report.Input, report.Watershed, zoom),
		Donuts:      domain.NewDonutCharts(*report.Breakdown, *report.LandStats),
		LandCover:   domain.NewBarChart(*report.LandStats),
		GeneratedAt: time.Now().UTC(),
	}, nil
}
