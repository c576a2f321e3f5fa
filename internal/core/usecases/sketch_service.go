package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/ports"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/metrics"
)

// SketchService manages per-session drawn-feature collections.
type SketchService struct {
	store ports.SketchStore
}

// NewSketchService creates a new SketchService.
func NewSketchService(store ports.SketchStore) *SketchService {
	return &SketchService{store: store}
}

// Create starts an empty sketch.
func (s *SketchService) Create(ctx context.Context) (*domain.Sketch, error) {
	now := time.Now().UTC()
	sketch := &domain.Sketch{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, sketch); err != nil {
		return nil, fmt.Errorf("save sketch: %w", err)
	}
	return sketch, nil
}

// Get returns a sketch by ID.
func (s *SketchService) Get(ctx context.Context, id string) (*domain.Sketch, error) {
	return s.store.Get(ctx, id)
}

// AddFeature appends a drawn shape to the sketch, preserving drawing
// order, and returns the stored feature.
func (s *SketchService) AddFeature(ctx context.Context, sketchID string, geom domain.Geometry, style *domain.FeatureStyle) (*domain.Feature, error) {
	if geom.Empty() {
		return nil, domain.ErrEmptyGeometry
	}

	sketch, err := s.store.Get(ctx, sketchID)
	if err != nil {
		return nil, err
	}

	feature := domain.Feature{
		ID:       uuid.NewString(),
		Geometry: geom,
		Style:    style,
		DrawnAt:  time.Now().UTC(),
	}
	sketch.Features = append(sketch.Features, feature)
	sketch.UpdatedAt = feature.DrawnAt

	if err := s.store.Save(ctx, sketch); err != nil {
		return nil, fmt.Errorf("save sketch: %w", err)
	}

	metrics.FeaturesDrawn.WithLabelValues(geom.GeoJSONType()).Inc()
	return &feature, nil
}

// RemoveFeature deletes one drawn shape from the sketch.
func (s *SketchService) RemoveFeature(ctx context.Context, sketchID, featureID string) error {
	sketch, err := s.store.Get(ctx, sketchID)
	if err != nil {
		return err
	}

	kept := sketch.Features[:0]
	found := false
	for _, f := range sketch.Features {
		if f.ID == featureID {
			found = true
			continue
		}
		kept = append(kept, f)
	}
	if !found {
		return fmt.Errorf("%w: %s in sketch %s", domain.ErrFeatureNotFound, featureID, sketchID)
	}
	sketch.Features = kept
	sketch.UpdatedAt = time.Now().UTC()

	return s.store.Save(ctx, sketch)
}

// Clear removes every drawn shape but keeps the sketch.
func (s *SketchService) Clear(ctx context.Context, sketchID string) error {
	sketch, err := s.store.Get(ctx, sketchID)
	if err != nil {
		return err
	}
	sketch.Features = nil
	sketch.UpdatedAt = time.Now().UTC()
	return s.store.Save(ctx, sketch)
}

// Delete discards the sketch entirely.
func (s *SketchService) Delete(ctx context.Context, sketchID string) error {
	return s.store.Delete(ctx, sketchID)
}

// Latest returns the most recently drawn feature of a sketch, the one
// an analysis submits by default.
func (s *SketchService) Latest(ctx context.Context, sketchID string) (*domain.Feature, error) {
	sketch, err := s.store.Get(ctx, sketchID)
	if err != nil {
		return nil, err
	}
	feature := sketch.Latest()
	if feature == nil {
		return nil, domain.ErrEmptyGeometry
	}
	return feature, nil
}
