package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/ports"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/metrics"
)

// AnalysisService runs the delineation pipeline: drawn shape in,
// finished report out. The repository, cache and publisher are all
// optional so the one-shot CLI can run with just the hydrology client.
type AnalysisService struct {
	hydro    ports.HydrologyClient
	reports  ports.ReportRepository
	cache    ports.CacheService
	events   ports.EventPublisher
	cacheTTL int // seconds for cached delineations
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(hydro ports.HydrologyClient, reports ports.ReportRepository, cache ports.CacheService, events ports.EventPublisher, cacheTTL int) *AnalysisService {
	return &AnalysisService{
		hydro:    hydro,
		reports:  reports,
		cache:    cache,
		events:   events,
		cacheTTL: cacheTTL,
	}
}

// Run executes the full pipeline synchronously: delineate the
// watershed, fetch resources and land cover concurrently, convert, and
// persist the finished report.
func (s *AnalysisService) Run(ctx context.Context, input domain.Geometry, sketchID, featureID string) (*domain.AnalysisReport, error) {
	if input.Empty() {
		return nil, domain.ErrEmptyGeometry
	}

	ctx, span := otel.Tracer("usecases").Start(ctx, "analysis.pipeline")
	defer span.End()
	span.SetAttributes(attribute.String("geometry.type", input.GeoJSONType()))

	report := &domain.AnalysisReport{
		ID:        uuid.NewString(),
		SketchID:  sketchID,
		FeatureID: featureID,
		Status:    domain.AnalysisRunning,
		Input:     input,
		CreatedAt: time.Now().UTC(),
	}
	if s.reports != nil {
		if err := s.reports.Create(ctx, report); err != nil {
			return nil, fmt.Errorf("create report: %w", err)
		}
	}
	s.publish(ctx, domain.EventAnalysisRequested, report)

	start := time.Now()

	watershed, err := s.Delineate(ctx, input)
	if err != nil {
		span.RecordError(err)
		s.Fail(ctx, report, err)
		return nil, err
	}
	report.Watershed = watershed

	resources, landCover, err := s.fetchSummaries(ctx, watershed)
	if err != nil {
		span.RecordError(err)
		s.Fail(ctx, report, err)
		return nil, err
	}

	if err := s.Complete(ctx, report, resources, landCover, time.Since(start).Milliseconds()); err != nil {
		return nil, err
	}
	return report, nil
}

// Submit queues a background analysis and returns the pending report.
func (s *AnalysisService) Submit(ctx context.Context, input domain.Geometry, sketchID, featureID string) (*domain.AnalysisReport, error) {
	if input.Empty() {
		return nil, domain.ErrEmptyGeometry
	}
	if s.reports == nil || s.events == nil {
		return nil, errors.New("background analysis requires persistence and a broker")
	}

	report := &domain.AnalysisReport{
		ID:        uuid.NewString(),
		SketchID:  sketchID,
		FeatureID: featureID,
		Status:    domain.AnalysisPending,
		Input:     input,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	job := &domain.AnalysisJob{
		ReportID:    report.ID,
		SketchID:    sketchID,
		FeatureID:   featureID,
		Geometry:    input,
		RequestedAt: report.CreatedAt,
	}
	if err := s.events.PublishAnalysisJob(ctx, job); err != nil {
		// Don't leave a pending report nothing will ever pick up.
		_ = s.reports.Delete(ctx, report.ID)
		return nil, fmt.Errorf("queue analysis: %w", err)
	}
	s.publish(ctx, domain.EventAnalysisRequested, report)

	return report, nil
}

// Delineate returns the watershed polygon for a drawn shape, consulting
// the delineation cache before calling the service.
func (s *AnalysisService) Delineate(ctx context.Context, input domain.Geometry) (domain.Geometry, error) {
	if input.Empty() {
		return domain.Geometry{}, domain.ErrEmptyGeometry
	}

	key, keyErr := delineationKey(input)
	if s.cache != nil && keyErr == nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var watershed domain.Geometry
			if err := json.Unmarshal(data, &watershed); err == nil {
				metrics.CacheHits.WithLabelValues("delineate").Inc()
				return watershed, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("delineate").Inc()
	}

	watershed, err := s.hydro.DelineateWatershed(ctx, input)
	if err != nil {
		return domain.Geometry{}, err
	}

	if s.cache != nil && keyErr == nil {
		if data, err := json.Marshal(watershed); err == nil {
			_ = s.cache.Set(ctx, key, data, s.cacheTTL)
		}
	}
	return watershed, nil
}

// Resources fetches the priority-water-resource summary for a watershed.
func (s *AnalysisService) Resources(ctx context.Context, watershed domain.Geometry) (domain.ResourceSummary, error) {
	return s.hydro.PriorityWaterResources(ctx, watershed)
}

// LandCover fetches zonal land-cover statistics for a watershed.
func (s *AnalysisService) LandCover(ctx context.Context, watershed domain.Geometry) (domain.LandCoverSummary, error) {
	return s.hydro.LandCoverStatistics(ctx, watershed)
}

// fetchSummaries issues the resource and land-cover calls concurrently.
// Both depend only on the watershed, not on each other.
func (s *AnalysisService) fetchSummaries(ctx context.Context, watershed domain.Geometry) (domain.ResourceSummary, domain.LandCoverSummary, error) {
	var (
		wg        sync.WaitGroup
		resources domain.ResourceSummary
		resErr    error
		landCover domain.LandCoverSummary
		lcErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		resources, resErr = s.hydro.PriorityWaterResources(ctx, watershed)
	}()
	go func() {
		defer wg.Done()
		landCover, lcErr = s.hydro.LandCoverStatistics(ctx, watershed)
	}()
	wg.Wait()

	if resErr != nil {
		return domain.ResourceSummary{}, nil, resErr
	}
	if lcErr != nil {
		return domain.ResourceSummary{}, nil, lcErr
	}
	return resources, landCover, nil
}

// Complete converts the raw summaries to display units, marks the
// report ready and persists it.
func (s *AnalysisService) Complete(ctx context.Context, report *domain.AnalysisReport, resources domain.ResourceSummary, landCover domain.LandCoverSummary, upstreamMS int64) error {
	stats := landCover.Convert()
	breakdown := resources.Convert(stats.TotalAcres)

	report.Resources = &resources
	report.LandCover = landCover
	report.LandStats = &stats
	report.Breakdown = &breakdown
	report.UpstreamMS = upstreamMS
	report.Error = ""
	report.Status = domain.AnalysisReady
	now := time.Now().UTC()
	report.CompletedAt = &now

	if s.reports != nil {
		if err := s.reports.Update(ctx, report); err != nil {
			return fmt.Errorf("update report: %w", err)
		}
	}
	s.publish(ctx, domain.EventAnalysisCompleted, report)

	metrics.AnalysesTotal.WithLabelValues("completed").Inc()
	metrics.AnalysisDuration.Observe(float64(upstreamMS) / 1000)
	return nil
}

// Fail marks the report failed with the cause and persists it.
func (s *AnalysisService) Fail(ctx context.Context, report *domain.AnalysisReport, cause error) {
	report.Status = domain.AnalysisFailed
	report.Error = cause.Error()
	now := time.Now().UTC()
	report.CompletedAt = &now

	if s.reports != nil {
		if err := s.reports.Update(ctx, report); err != nil {
			slog.Error("persist failed report", "report_id", report.ID, "error", err)
		}
	}
	s.publish(ctx, domain.EventAnalysisFailed, report)
	metrics.AnalysesTotal.WithLabelValues("failed").Inc()
}

func (s *AnalysisService) publish(ctx context.Context, eventType string, report *domain.AnalysisReport) {
	if s.events == nil {
		return
	}
	event := &domain.AnalysisEvent{
		Type:     eventType,
		ReportID: report.ID,
		SketchID: report.SketchID,
		Status:   report.Status,
		Error:    report.Error,
		Time:     time.Now().UTC(),
	}
	if err := s.events.PublishAnalysisEvent(ctx, event); err != nil {
		slog.Warn("publish analysis event", "type", eventType, "report_id", report.ID, "error", err)
	}
}

// delineationKey derives a cache key from the exact geometry encoding,
// so identical shapes share one cached delineation.
func delineationKey(g domain.Geometry) (string, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("delineate:%x", sum[:16]), nil
}
