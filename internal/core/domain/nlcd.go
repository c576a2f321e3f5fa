package domain

import (
	"fmt"
	"sort"
)

// Land-cover class codes with special aggregation rules.
const (
	ClassWoodyWetlands    = "90"
	ClassEmergentWetlands = "95"
)

// LandCoverClass describes one National Land Cover Database class.
type LandCoverClass struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// landCoverClasses is the conterminous-US NLCD legend: class code,
// human-readable label, and the standard legend color.
var landCoverClasses = []LandCoverClass{
	{Code: "11", Label: "Open Water", Color: "#466b9f"},
	{Code: "12", Label: "Perennial Ice/Snow", Color: "#d1def8"},
	{Code: "21", Label: "Developed, Open Space", Color: "#dec5c5"},
	{Code: "22", Label: "Developed, Low Intensity", Color: "#d99282"},
	{Code: "23", Label: "Developed, Medium Intensity", Color: "#eb0000"},
	{Code: "24", Label: "Developed, High Intensity", Color: "#ab0000"},
	{Code: "31", Label: "Barren Land", Color: "#b3ac9f"},
	{Code: "41", Label: "Deciduous Forest", Color: "#68ab5f"},
	{Code: "42", Label: "Evergreen Forest", Color: "#1c5f2c"},
	{Code: "43", Label: "Mixed Forest", Color: "#b5c58f"},
	{Code: "52", Label: "Shrub/Scrub", Color: "#ccb879"},
	{Code: "71", Label: "Grassland/Herbaceous", Color: "#dfdfc2"},
	{Code: "81", Label: "Pasture/Hay", Color: "#dcd939"},
	{Code: "82", Label: "Cultivated Crops", Color: "#ab6c28"},
	{Code: ClassWoodyWetlands, Label: "Woody Wetlands", Color: "#b8d9eb"},
	{Code: ClassEmergentWetlands, Label: "Emergent Herbaceous Wetlands", Color: "#6c9fb8"},
}

var landCoverByCode = func() map[string]LandCoverClass {
	m := make(map[string]LandCoverClass, len(landCoverClasses))
	for _, c := range landCoverClasses {
		m[c.Code] = c
	}
	return m
}()

// LandCoverClasses returns the full legend in class-code order.
func LandCoverClasses() []LandCoverClass {
	out := make([]LandCoverClass, len(landCoverClasses))
	copy(out, landCoverClasses)
	return out
}

// LandCoverClassByCode looks up a class by its two-digit code.
func LandCoverClassByCode(code string) (LandCoverClass, bool) {
	c, ok := landCoverByCode[code]
	return c, ok
}

// IsWetlandClass reports whether a class code counts toward the
// wetlands aggregate.
func IsWetlandClass(code string) bool {
	return code == ClassWoodyWetlands || code == ClassEmergentWetlands
}

// LandCoverSummary maps land-cover class codes to covered area in
// square meters, as reported by the zonal-statistics service.
type LandCoverSummary map[string]float64

// Validate checks that every class code is a known NLCD class and no
// area is negative.
func (l LandCoverSummary) Validate() error {
	for code, sqm := range l {
		if _, ok := landCoverByCode[code]; !ok {
			return fmt.Errorf("unknown land-cover class code %q", code)
		}
		if sqm < 0 {
			return fmt.Errorf("land-cover class %q has negative area %g", code, sqm)
		}
	}
	return nil
}

// TotalSqMeters returns the summed area across all classes.
func (l LandCoverSummary) TotalSqMeters() float64 {
	var total float64
	for _, sqm := range l {
		total += sqm
	}
	return total
}

// WetlandSqMeters returns the summed area of the woody and emergent
// herbaceous wetland classes.
func (l LandCoverSummary) WetlandSqMeters() float64 {
	return l[ClassWoodyWetlands] + l[ClassEmergentWetlands]
}

// Codes returns the class codes present in the summary, sorted.
func (l LandCoverSummary) Codes() []string {
	codes := make([]string, 0, len(l))
	for code := range l {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
