package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Drawable GeoJSON geometry types.
const (
	GeometryPoint      = "Point"
	GeometryLineString = "LineString"
	GeometryPolygon    = "Polygon"
)

var (
	// ErrEmptyGeometry is returned when an operation requires a geometry
	// and none was drawn or supplied.
	ErrEmptyGeometry = errors.New("empty geometry")

	// ErrUnsupportedGeometry is returned for GeoJSON types other than
	// Point, LineString and Polygon.
	ErrUnsupportedGeometry = errors.New("unsupported geometry type")
)

// Geometry is a GeoJSON geometry restricted to the drawable types:
// Point, LineString and Polygon. Decoding is strict: coordinates must
// be valid WGS 84 positions, line strings need at least two positions,
// and polygon rings must be closed.
type Geometry struct {
	orb.Geometry
}

// NewGeometry wraps an orb geometry, rejecting types that cannot be drawn.
func NewGeometry(geom orb.Geometry) (Geometry, error) {
	switch geom.(type) {
	case orb.Point, orb.LineString, orb.Polygon:
		return Geometry{Geometry: geom}, nil
	default:
		return Geometry{}, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, geom.GeoJSONType())
	}
}

// Empty reports whether no geometry is present.
func (g Geometry) Empty() bool {
	return g.Geometry == nil
}

// Center returns a representative point for map centering: the point
// itself, the midpoint of a line string, or the area centroid of a polygon.
func (g Geometry) Center() GeoPoint {
	if g.Geometry == nil {
		return GeoPoint{}
	}
	switch geom := g.Geometry.(type) {
	case orb.Point:
		return GeoPoint{Lat: geom.Lat(), Lon: geom.Lon()}
	default:
		centroid, _ := planar.CentroidArea(geom)
		return GeoPoint{Lat: centroid.Lat(), Lon: centroid.Lon()}
	}
}

// BBox returns the geographic bounding box of the geometry.
func (g Geometry) BBox() Bounds {
	if g.Geometry == nil {
		return Bounds{}
	}
	b := g.Geometry.Bound()
	return Bounds{
		MinLat: b.Min.Lat(), MinLon: b.Min.Lon(),
		MaxLat: b.Max.Lat(), MaxLon: b.Max.Lon(),
	}
}

// MarshalJSON encodes the geometry as a GeoJSON object, or null when empty.
func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.Geometry == nil {
		return []byte("null"), nil
	}
	return geojson.NewGeometry(g.Geometry).MarshalJSON()
}

// UnmarshalJSON decodes a GeoJSON geometry object. Unlike the permissive
// default decoder it rejects unsupported types, out-of-range positions,
// too-short line strings and unclosed polygon rings.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		g.Geometry = nil
		return nil
	}

	var raw struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode geometry: %w", err)
	}
	switch raw.Type {
	case GeometryPoint, GeometryLineString, GeometryPolygon:
	default:
		return fmt.Errorf("%w: %q (want Point, LineString or Polygon)", ErrUnsupportedGeometry, raw.Type)
	}
	if len(raw.Coordinates) == 0 {
		return fmt.Errorf("geometry %q has no coordinates", raw.Type)
	}

	switch raw.Type {
	case GeometryPoint:
		var pos []float64
		if err := json.Unmarshal(raw.Coordinates, &pos); err != nil {
			return fmt.Errorf("decode Point coordinates: %w", err)
		}
		pt, err := decodePosition(pos)
		if err != nil {
			return fmt.Errorf("Point: %w", err)
		}
		g.Geometry = pt

	case GeometryLineString:
		var positions [][]float64
		if err := json.Unmarshal(raw.Coordinates, &positions); err != nil {
			return fmt.Errorf("decode LineString coordinates: %w", err)
		}
		if len(positions) < 2 {
			return fmt.Errorf("LineString needs at least 2 positions, got %d", len(positions))
		}
		line := make(orb.LineString, 0, len(positions))
		for i, pos := range positions {
			pt, err := decodePosition(pos)
			if err != nil {
				return fmt.Errorf("LineString position %d: %w", i, err)
			}
			line = append(line, pt)
		}
		g.Geometry = line

	case GeometryPolygon:
		var rings [][][]float64
		if err := json.Unmarshal(raw.Coordinates, &rings); err != nil {
			return fmt.Errorf("decode Polygon coordinates: %w", err)
		}
		if len(rings) == 0 {
			return errors.New("Polygon needs at least one ring")
		}
		poly := make(orb.Polygon, 0, len(rings))
		for i, positions := range rings {
			if len(positions) < 4 {
				return fmt.Errorf("Polygon ring %d needs at least 4 positions, got %d", i, len(positions))
			}
			ring := make(orb.Ring, 0, len(positions))
			for j, pos := range positions {
				pt, err := decodePosition(pos)
				if err != nil {
					return fmt.Errorf("Polygon ring %d position %d: %w", i, j, err)
				}
				ring = append(ring, pt)
			}
			if !ring.Closed() {
				return fmt.Errorf("Polygon ring %d is not closed", i)
			}
			poly = append(poly, ring)
		}
		g.Geometry = poly
	}

	return nil
}

// decodePosition validates a single [lon, lat] or [lon, lat, elevation]
// position against the WGS 84 coordinate range.
func decodePosition(pos []float64) (orb.Point, error) {
	if len(pos) < 2 || len(pos) > 3 {
		return orb.Point{}, fmt.Errorf("position must have 2 or 3 elements, got %d", len(pos))
	}
	lon, lat := pos[0], pos[1]
	if lon < -180 || lon > 180 {
		return orb.Point{}, fmt.Errorf("longitude %g outside [-180, 180]", lon)
	}
	if lat < -90 || lat > 90 {
		return orb.Point{}, fmt.Errorf("latitude %g outside [-90, 90]", lat)
	}
	return orb.Point{lon, lat}, nil
}
