package domain

import (
	"errors"
	"time"
)

var (
	// ErrSketchNotFound is returned when no sketch exists for an ID, or
	// it has expired.
	ErrSketchNotFound = errors.New("sketch not found")

	// ErrFeatureNotFound is returned when a sketch has no feature with
	// the given ID.
	ErrFeatureNotFound = errors.New("feature not found")
)

// FeatureStyle is the stroke/fill styling applied to a rendered layer.
type FeatureStyle struct {
	Color       string  `json:"color"`
	Weight      int     `json:"weight"`
	Opacity     float64 `json:"opacity"`
	FillColor   string  `json:"fill_color,omitempty"`
	FillOpacity float64 `json:"fill_opacity,omitempty"`
}

// Feature is a single shape drawn on the sketch map.
type Feature struct {
	ID       string        `json:"id"`
	Geometry Geometry      `json:"geometry"`
	Style    *FeatureStyle `json:"style,omitempty"`
	DrawnAt  time.Time     `json:"drawn_at"`
}

// Sketch is the ordered collection of shapes a user has drawn in one
// session. The most recently drawn feature is the one submitted for
// analysis.
type Sketch struct {
	ID        string    `json:"id"`
	Features  []Feature `json:"features"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Latest returns the most recently drawn feature, or nil when the
// sketch is empty.
func (s *Sketch) Latest() *Feature {
	if s == nil || len(s.Features) == 0 {
		return nil
	}
	return &s.Features[len(s.Features)-1]
}

// FeatureByID returns the feature with the given ID, or nil.
func (s *Sketch) FeatureByID(id string) *Feature {
	if s == nil {
		return nil
	}
	for i := range s.Features {
		if s.Features[i].ID == id {
			return &s.Features[i]
		}
	}
	return nil
}
