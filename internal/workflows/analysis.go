package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
)

// AnalysisInput is the input for the analysis workflow, mirroring the
// queued job.
type AnalysisInput struct {
	ReportID  string
	SketchID  string
	FeatureID string
	Geometry  domain.Geometry
}

// AnalysisResult carries the raw pipeline outputs into the completion
// activity.
type AnalysisResult struct {
	ReportID   string
	Watershed  domain.Geometry
	Resources  domain.ResourceSummary
	LandCover  domain.LandCoverSummary
	UpstreamMS int64
}

// AnalysisWorkflow orchestrates one durable analysis: delineate the
// watershed, fetch the resource and land-cover summaries in parallel,
// then convert and persist the finished report. Any failure runs the
// FailReport compensation so the report never sticks in running state.
func AnalysisWorkflow(ctx workflow.Context, input AnalysisInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting analysis workflow", "reportID", input.ReportID)

	// Hydrology calls get one attempt each: a second delineation of the
	// same shape costs minutes and the service is deterministic, so a
	// failure is final. Store activities retry normally.
	hydroCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 3 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
	storeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	// Step 1: claim the pending report
	if err := workflow.ExecuteActivity(storeCtx, "MarkRunning", input.ReportID).Get(ctx, nil); err != nil {
		return err
	}

	start := workflow.Now(ctx)

	// Step 2: delineate the watershed
	var watershed domain.Geometry
	err := workflow.ExecuteActivity(hydroCtx, "Delineate", input.Geometry).Get(ctx, &watershed)
	if err != nil {
		logger.Warn("delineation failed, compensating", "error", err)
		_ = workflow.ExecuteActivity(storeCtx, "FailReport", input.ReportID, err.Error()).Get(ctx, nil)
		return err
	}

	// Steps 3+4: both summaries depend only on the watershed, fetch concurrently
	resFuture := workflow.ExecuteActivity(hydroCtx, "FetchResources", watershed)
	lcFuture := workflow.ExecuteActivity(hydroCtx, "FetchLandCover", watershed)

	var resources domain.ResourceSummary
	if err := resFuture.Get(ctx, &resources); err != nil {
		logger.Warn("resource summary failed, compensating", "error", err)
		_ = workflow.ExecuteActivity(storeCtx, "FailReport", input.ReportID, err.Error()).Get(ctx, nil)
		return err
	}
	var landCover domain.LandCoverSummary
	if err := lcFuture.Get(ctx, &landCover); err != nil {
		logger.Warn("land-cover summary failed, compensating", "error", err)
		_ = workflow.ExecuteActivity(storeCtx, "FailReport", input.ReportID, err.Error()).Get(ctx, nil)
		return err
	}

	// Step 5: convert, persist, announce
	result := AnalysisResult{
		ReportID:   input.ReportID,
		Watershed:  watershed,
		Resources:  resources,
		LandCover:  landCover,
		UpstreamMS: workflow.Now(ctx).Sub(start).Milliseconds(),
	}
	if err := workflow.ExecuteActivity(storeCtx, "CompleteReport", result).Get(ctx, nil); err != nil {
		logger.Warn("completing report failed, compensating", "error", err)
		_ = workflow.ExecuteActivity(storeCtx, "FailReport", input.ReportID, err.Error()).Get(ctx, nil)
		return err
	}

	logger.Info("Analysis workflow finished", "reportID", input.ReportID)
	return nil
}
