package domain

import "testing"

func TestLandCoverClassByCode(t *testing.T) {
	class, ok := LandCoverClassByCode("41")
	if !ok {
		t.Fatal("class 41 should exist")
	}
	if class.Label != "Deciduous Forest" || class.Color != "#68ab5f" {
		t.Errorf("class 41 = %+v", class)
	}

	if _, ok := LandCoverClassByCode("99"); ok {
		t.Error("class 99 should not exist")
	}
}

func TestLandCoverClasses(t *testing.T) {
	classes := LandCoverClasses()
	if len(classes) != 16 {
		t.Fatalf("expected the 16 conterminous classes, got %d", len(classes))
	}
	if classes[0].Code != "11" {
		t.Errorf("first class = %s, want 11", classes[0].Code)
	}
	if classes[len(classes)-1].Code != "95" {
		t.Errorf("last class = %s, want 95", classes[len(classes)-1].Code)
	}

	// Mutating the returned slice must not affect the legend.
	classes[0].Label = "mutated"
	if c, _ := LandCoverClassByCode("11"); c.Label != "Open Water" {
		t.Error("legend was mutated through the returned slice")
	}
}

func TestIsWetlandClass(t *testing.T) {
	for _, code := range []string{ClassWoodyWetlands, ClassEmergentWetlands} {
		if !IsWetlandClass(code) {
			t.Errorf("class %s should count as wetland", code)
		}
	}
	for _, code := range []string{"11", "41", "82"} {
		if IsWetlandClass(code) {
			t.Errorf("class %s should not count as wetland", code)
		}
	}
}
