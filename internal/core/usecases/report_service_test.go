package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/usecases"
)

func readyReport() *domain.AnalysisReport {
	resources := domain.ResourceSummary{
		StreamBankMeters:    1609.34,
		HeadwaterSqMeters:   4046.86,
		ActiveRiverSqMeters: 8093.72,
		TotalSqMeters:       12140.58,
	}
	land := domain.LandCoverSummary{"41": 40468.6, "90": 20234.3}
	stats := land.Convert()
	breakdown := resources.Convert(stats.TotalAcres)

	return &domain.AnalysisReport{
		ID:        "report-1",
		Status:    domain.AnalysisReady,
		Input:     testDrawnPoint(),
		Watershed: testWatershed(),
		Resources: &resources,
		LandCover: land,
		Breakdown: &breakdown,
		LandStats: &stats,
	}
}

func TestReportService_View(t *testing.T) {
	repo := &mockReportRepo{
		getFn: func(ctx context.Context, id string) (*domain.AnalysisReport, error) {
			if id != "report-1" {
				return nil, domain.ErrReportNotFound
			}
			return readyReport(), nil
		},
	}
	svc := usecases.NewReportService(repo, 13)

	view, err := svc.View(context.Background(), "report-1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.ReportID != "report-1" {
		t.Errorf("report ID = %s", view.ReportID)
	}
	if len(view.Donuts) != 4 {
		t.Errorf("expected 4 donuts, got %d", len(view.Donuts))
	}
	if len(view.Map.Layers) != 2 {
		t.Errorf("expected 2 map layers, got %d", len(view.Map.Layers))
	}
	if len(view.LandCover.Bars) == 0 {
		t.Error("land-cover chart is empty")
	}
	// 15 total acres: round(-0.697*ln(15)+18.003) = 16.
	if view.Map.Zoom != 16 {
		t.Errorf("zoom = %d, want 16", view.Map.Zoom)
	}
}

func TestReportService_View_NotReady(t *testing.T) {
	report := readyReport()
	report.Status = domain.AnalysisFailed
	repo := &mockReportRepo{
		getFn: func(ctx context.Context, id string) (*domain.AnalysisReport, error) {
			return report, nil
		},
	}
	svc := usecases.NewReportService(repo, 13)

	_, err := svc.View(context.Background(), "report-1")
	if !errors.Is(err, domain.ErrReportNotReady) {
		t.Fatalf("expected ErrReportNotReady, got %v", err)
	}
}

func TestReportService_BuildView_ZeroAcreageFallsBack(t *testing.T) {
	report := readyReport()
	report.LandStats.TotalAcres = 0
	svc := usecases.NewReportService(&mockReportRepo{}, 13)

	view, err := svc.BuildView(report)
	if err != nil {
		t.Fatalf("build view: %v", err)
	}
	if view.Map.Zoom != 13 {
		t.Errorf("zoom = %d, want the default 13", view.Map.Zoom)
	}
}

func TestReportService_List_ClampsLimit(t *testing.T) {
	var gotLimit, gotOffset int
	repo := &mockReportRepo{
		listFn: func(ctx context.Context, limit, offset int) ([]domain.AnalysisReport, int, error) {
			gotLimit, gotOffset = limit, offset
			return nil, 0, nil
		},
	}
	svc := usecases.NewReportService(repo, 13)

	_, _, _ = svc.List(context.Background(), 9999, -5)
	if gotLimit != 20 {
		t.Errorf("limit = %d, want clamped 20", gotLimit)
	}
	if gotOffset != 0 {
		t.Errorf("offset = %d, want 0", gotOffset)
	}
}
