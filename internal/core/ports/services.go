package ports

import (
	"context"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
)

// HydrologyClient calls the remote watershed services: boundary
// delineation, priority-water-resource analysis and zonal land-cover
// statistics.
type HydrologyClient interface {
	DelineateWatershed(ctx context.Context, geom domain.Geometry) (domain.Geometry, error)
	PriorityWaterResources(ctx context.Context, watershed domain.Geometry) (domain.ResourceSummary, error)
	LandCoverStatistics(ctx context.Context, watershed domain.Geometry) (domain.LandCoverSummary, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishAnalysisJob(ctx context.Context, job *domain.AnalysisJob) error
	PublishAnalysisEvent(ctx context.Context, event *domain.AnalysisEvent) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeAnalysisJobs(ctx context.Context, handler func(ctx context.Context, job *domain.AnalysisJob) error) error
	SubscribeAnalysisEvents(ctx context.Context, handler func(ctx context.Context, event *domain.AnalysisEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
