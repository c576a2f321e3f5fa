package geospatial

import (
	"math"
	"testing"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// Philadelphia city hall to the Academy of Natural Sciences: ~0.8 km.
	d := Haversine(39.9526, -75.1652, 39.9573, -75.1719)
	if d < 700 || d > 1000 {
		t.Errorf("unexpected distance %v m", d)
	}
}

func TestHaversine_ZeroForSamePoint(t *testing.T) {
	if d := Haversine(40.0, -75.0, 40.0, -75.0); d != 0 {
		t.Errorf("expected 0, got %v", d)
	}
}

func TestPathLength(t *testing.T) {
	// ~0.01 degrees of latitude is about 1.11 km.
	coords := [][2]float64{{-75.0, 40.0}, {-75.0, 40.01}}
	d := PathLength(coords)
	if math.Abs(d-1112) > 20 {
		t.Errorf("expected ~1112 m, got %v", d)
	}

	if PathLength(coords[:1]) != 0 {
		t.Error("single point should have zero length")
	}
}

func TestRingArea(t *testing.T) {
	// A ~1.11 km square at the equator: area should be near 1.23e6 m².
	ring := [][2]float64{
		{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01},
	}
	a := RingArea(ring)
	expected := 1112.0 * 1112.0
	if math.Abs(a-expected)/expected > 0.05 {
		t.Errorf("expected ~%v m², got %v", expected, a)
	}
}

func TestRingArea_Degenerate(t *testing.T) {
	if a := RingArea([][2]float64{{0, 0}, {1, 1}}); a != 0 {
		t.Errorf("expected 0 for degenerate ring, got %v", a)
	}
}
