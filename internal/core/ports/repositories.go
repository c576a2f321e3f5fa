package ports

import (
	"context"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
)

// ReportRepository persists analysis reports.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.AnalysisReport) error
	Update(ctx context.Context, report *domain.AnalysisReport) error
	GetByID(ctx context.Context, id string) (*domain.AnalysisReport, error)
	// List returns a page of reports newest-first plus the total count.
	List(ctx context.Context, limit, offset int) ([]domain.AnalysisReport, int, error)
	ListBySketch(ctx context.Context, sketchID string) ([]domain.AnalysisReport, error)
	Delete(ctx context.Context, id string) error
}

// SketchStore keeps per-session drawn-feature collections. Entries
// expire server-side after the configured TTL.
type SketchStore interface {
	Save(ctx context.Context, sketch *domain.Sketch) error
	Get(ctx context.Context, id string) (*domain.Sketch, error)
	Delete(ctx context.Context, id string) error
}
