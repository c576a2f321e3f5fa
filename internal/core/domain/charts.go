package domain

import (
	"fmt"
	"time"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/units"
)

// Fixed styling for the two result-map overlay layers.
var (
	DrawnShapeStyle = FeatureStyle{Color: "#3388ff", Weight: 3, Opacity: 0.9, FillColor: "#3388ff", FillOpacity: 0.2}
	WatershedStyle  = FeatureStyle{Color: "#b30000", Weight: 2, Opacity: 0.9, FillColor: "#ffcc00", FillOpacity: 0.35}
)

// Fixed donut colors per resource category; the remainder slice is
// always neutral.
var donutColors = map[string]string{
	"Headwaters":        "#1f78b4",
	"Active River Area": "#33a02c",
	"Wetlands":          "#6c9fb8",
	"Total PWR":         "#6a3d9a",
}

const donutRemainderColor = "#e0e0e0"

// MapLayer is one geometry overlay on the result map.
type MapLayer struct {
	Name     string       `json:"name"`
	Geometry Geometry     `json:"geometry"`
	Style    FeatureStyle `json:"style"`
}

// MapView is the view model for the result map: center, zoom, and the
// overlay layers bottom-up.
type MapView struct {
	Center GeoPoint   `json:"center"`
	Zoom   int        `json:"zoom"`
	Layers []MapLayer `json:"layers"`
}

// NewMapView builds the result map: the delineated watershed underneath,
// the original drawn shape on top, centered on the watershed.
func NewMapView(drawn, watershed Geometry, zoom int) MapView {
	center := watershed.Center()
	if watershed.Empty() {
		center = drawn.Center()
	}
	view := MapView{Center: center, Zoom: zoom}
	if !watershed.Empty() {
		view.Layers = append(view.Layers, MapLayer{Name: "watershed", Geometry: watershed, Style: WatershedStyle})
	}
	if !drawn.Empty() {
		view.Layers = append(view.Layers, MapLayer{Name: "drawn shape", Geometry: drawn, Style: DrawnShapeStyle})
	}
	return view
}

// DonutSlice is one segment of a donut chart.
type DonutSlice struct {
	Label    string  `json:"label"`
	Value    float64 `json:"value"`
	Color    string  `json:"color"`
	Exploded bool    `json:"exploded,omitempty"`
}

// DonutChart is the view model for one percent-of-watershed donut. The
// primary slice is exploded and labeled with a one-decimal percent.
type DonutChart struct {
	Title  string       `json:"title"`
	Slices []DonutSlice `json:"slices"`
}

func newDonut(title string, p units.Percent) DonutChart {
	value := p.Display()
	remainder := 100 - value
	if remainder < 0 {
		remainder = 0
	}
	color, ok := donutColors[title]
	if !ok {
		color = donutRemainderColor
	}
	return DonutChart{
		Title: title,
		Slices: []DonutSlice{
			{Label: fmt.Sprintf("%.1f%%", value), Value: value, Color: color, Exploded: true},
			{Label: "", Value: remainder, Color: donutRemainderColor},
		},
	}
}

// NewDonutCharts builds the four resource donuts: headwaters, active
// river area, wetlands and total PWR. The wetlands donut uses the
// land-cover wetland aggregate rather than the PWR service figure.
func NewDonutCharts(breakdown ResourceBreakdown, land LandCoverStats) []DonutChart {
	return []DonutChart{
		newDonut("Headwaters", breakdown.HeadwaterPercent),
		newDonut("Active River Area", breakdown.ActiveRiverPercent),
		newDonut("Wetlands", land.WetlandPercent),
		newDonut("Total PWR", breakdown.TotalPercent),
	}
}

// ChartBar is one bar of the land-cover chart.
type ChartBar struct {
	Label   string  `json:"label"`
	Acres   float64 `json:"acres"`
	Percent float64 `json:"percent"`
	Color   string  `json:"color"`
}

// BarChart is the view model for the land-cover distribution chart.
type BarChart struct {
	Title          string     `json:"title"`
	Bars           []ChartBar `json:"bars"`
	LegendPosition string     `json:"legend_position"`
}

// MaxLandCoverBars caps how many classes the land-cover chart shows.
const MaxLandCoverBars = 10

// NewBarChart builds the land-cover chart from the largest classes,
// at most MaxLandCoverBars of them, colored by the NLCD legend.
func NewBarChart(land LandCoverStats) BarChart {
	chart := BarChart{
		Title:          "Land Cover (acres)",
		LegendPosition: "outside",
	}
	for i, band := range land.Bands {
		if i >= MaxLandCoverBars {
			break
		}
		chart.Bars = append(chart.Bars, ChartBar{
			Label:   band.Class.Label,
			Acres:   band.Acres,
			Percent: band.Percent.Display(),
			Color:   band.Class.Color,
		})
	}
	return chart
}

// ReportView bundles everything the result page renders for one report.
type ReportView struct {
	ReportID    string       `json:"report_id"`
	Map         MapView      `json:"map"`
	Donuts      []DonutChart `json:"donuts"`
	LandCover   BarChart     `json:"land_cover"`
	GeneratedAt time.Time    `json:"generated_at"`
}
