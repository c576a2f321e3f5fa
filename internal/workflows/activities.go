package workflows

import (
	"context"
	"errors"
	"fmt"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/ports"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/usecases"
)

// AnalysisActivities holds the activity implementations for the analysis
// workflow. Everything delegates to the same AnalysisService the
// synchronous API path uses, so the two paths cannot drift.
type AnalysisActivities struct {
	Analysis *usecases.AnalysisService
	Reports  ports.ReportRepository
}

// MarkRunning flips the queued report to running.
func (a *AnalysisActivities) MarkRunning(ctx context.Context, reportID string) error {
	report, err := a.Reports.GetByID(ctx, reportID)
	if err != nil {
		return fmt.Errorf("get report %s: %w", reportID, err)
	}
	report.Status = domain.AnalysisRunning
	if err := a.Reports.Update(ctx, report); err != nil {
		return fmt.Errorf("mark running %s: %w", reportID, err)
	}
	return nil
}

// Delineate returns the watershed polygon, through the delineation cache.
func (a *AnalysisActivities) Delineate(ctx context.Context, input domain.Geometry) (domain.Geometry, error) {
	return a.Analysis.Delineate(ctx, input)
}

// FetchResources returns the raw priority-water-resource summary.
func (a *AnalysisActivities) FetchResources(ctx context.Context, watershed domain.Geometry) (domain.ResourceSummary, error) {
	return a.Analysis.Resources(ctx, watershed)
}

// FetchLandCover returns the raw zonal land-cover statistics.
func (a *AnalysisActivities) FetchLandCover(ctx context.Context, watershed domain.Geometry) (domain.LandCoverSummary, error) {
	return a.Analysis.LandCover(ctx, watershed)
}

// CompleteReport converts the summaries to display units, marks the
// report ready, persists it and publishes the completed event.
func (a *AnalysisActivities) CompleteReport(ctx context.Context, result AnalysisResult) error {
	report, err := a.Reports.GetByID(ctx, result.ReportID)
	if err != nil {
		return fmt.Errorf("get report %s: %w", result.ReportID, err)
	}
	report.Watershed = result.Watershed
	return a.Analysis.Complete(ctx, report, result.Resources, result.LandCover, result.UpstreamMS)
}

// FailReport marks the report failed with the cause (saga compensation).
func (a *AnalysisActivities) FailReport(ctx context.Context, reportID, cause string) error {
	report, err := a.Reports.GetByID(ctx, reportID)
	if err != nil {
		return fmt.Errorf("get report %s: %w", reportID, err)
	}
	a.Analysis.Fail(ctx, report, errors.New(cause))
	return nil
}
