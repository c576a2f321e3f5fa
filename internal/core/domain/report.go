package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/units"
)

var (
	// ErrReportNotFound is returned when no report exists for an ID.
	ErrReportNotFound = errors.New("report not found")

	// ErrReportNotReady is returned when a view is requested for a
	// report that has not completed successfully.
	ErrReportNotReady = errors.New("report not ready")
)

// Resource-summary keys as reported by the priority-water-resource service.
const (
	KeyStreamBank  = "str_bank"
	KeyHeadwater   = "head_pwr"
	KeyActiveRiver = "ara_pwr"
	KeyWetland     = "wet_pwr"
	KeyTotal       = "tot_pwr"
)

var resourceKeys = []string{KeyStreamBank, KeyHeadwater, KeyActiveRiver, KeyWetland, KeyTotal}

// ResourceSummary holds the priority-water-resource measures for a
// watershed in source units: meters of stream bank, square meters for
// the area categories.
type ResourceSummary struct {
	StreamBankMeters    float64 `json:"str_bank"`
	HeadwaterSqMeters   float64 `json:"head_pwr"`
	ActiveRiverSqMeters float64 `json:"ara_pwr"`
	WetlandSqMeters     float64 `json:"wet_pwr"`
	TotalSqMeters       float64 `json:"tot_pwr"`
}

// ResourceSummaryFromMap builds a ResourceSummary from the raw service
// response, requiring all five keys and rejecting negative values.
// Extra keys are ignored.
func ResourceSummaryFromMap(values map[string]float64) (ResourceSummary, error) {
	var missing []string
	for _, key := range resourceKeys {
		if _, ok := values[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return ResourceSummary{}, fmt.Errorf("resource summary missing keys: %s", strings.Join(missing, ", "))
	}
	for _, key := range resourceKeys {
		if values[key] < 0 {
			return ResourceSummary{}, fmt.Errorf("resource summary key %q has negative value %g", key, values[key])
		}
	}
	return ResourceSummary{
		StreamBankMeters:    values[KeyStreamBank],
		HeadwaterSqMeters:   values[KeyHeadwater],
		ActiveRiverSqMeters: values[KeyActiveRiver],
		WetlandSqMeters:     values[KeyWetland],
		TotalSqMeters:       values[KeyTotal],
	}, nil
}

// ResourceBreakdown is a resource summary converted to display units,
// with each area category's share of the watershed's land-cover acreage.
type ResourceBreakdown struct {
	StreamBankMiles    float64       `json:"stream_bank_miles"`
	HeadwaterAcres     float64       `json:"headwater_acres"`
	ActiveRiverAcres   float64       `json:"active_river_acres"`
	WetlandAcres       float64       `json:"wetland_acres"`
	TotalAcres         float64       `json:"total_acres"`
	HeadwaterPercent   units.Percent `json:"headwater_percent"`
	ActiveRiverPercent units.Percent `json:"active_river_percent"`
	WetlandPercent     units.Percent `json:"wetland_percent"`
	TotalPercent       units.Percent `json:"total_percent"`
}

// Convert expresses the summary in miles and acres. Percentages are
// computed against the watershed's total land-cover acreage, not the
// PWR total, so the share answers "how much of this watershed".
func (r ResourceSummary) Convert(landTotalAcres float64) ResourceBreakdown {
	headAcres := units.Acres(r.HeadwaterSqMeters)
	araAcres := units.Acres(r.ActiveRiverSqMeters)
	wetAcres := units.Acres(r.WetlandSqMeters)
	totalAcres := units.Acres(r.TotalSqMeters)
	return ResourceBreakdown{
		StreamBankMiles:    units.Miles(r.StreamBankMeters),
		HeadwaterAcres:     headAcres,
		ActiveRiverAcres:   araAcres,
		WetlandAcres:       wetAcres,
		TotalAcres:         totalAcres,
		HeadwaterPercent:   units.PercentOfTotal(headAcres, landTotalAcres),
		ActiveRiverPercent: units.PercentOfTotal(araAcres, landTotalAcres),
		WetlandPercent:     units.PercentOfTotal(wetAcres, landTotalAcres),
		TotalPercent:       units.PercentOfTotal(totalAcres, landTotalAcres),
	}
}

// LandCoverBand is one land-cover class converted for display.
type LandCoverBand struct {
	Class   LandCoverClass `json:"class"`
	Acres   float64        `json:"acres"`
	Percent units.Percent  `json:"percent"`
}

// LandCoverStats is a land-cover summary converted to acres, bands
// ordered largest first. The wetland aggregate sums the woody and
// emergent wetland classes; it is the value displayed for wetlands,
// taking precedence over the PWR service's wet_pwr figure.
type LandCoverStats struct {
	Bands          []LandCoverBand `json:"bands"`
	TotalAcres     float64         `json:"total_acres"`
	WetlandAcres   float64         `json:"wetland_acres"`
	WetlandPercent units.Percent   `json:"wetland_percent"`
}

// Convert expresses the summary in acres with per-class shares.
func (l LandCoverSummary) Convert() LandCoverStats {
	totalAcres := units.Acres(l.TotalSqMeters())
	wetlandAcres := units.Acres(l.WetlandSqMeters())

	stats := LandCoverStats{
		TotalAcres:     totalAcres,
		WetlandAcres:   wetlandAcres,
		WetlandPercent: units.PercentOfTotal(wetlandAcres, totalAcres),
	}
	for _, code := range l.Codes() {
		class, ok := LandCoverClassByCode(code)
		if !ok {
			class = LandCoverClass{Code: code, Label: code, Color: "#999999"}
		}
		acres := units.Acres(l[code])
		stats.Bands = append(stats.Bands, LandCoverBand{
			Class:   class,
			Acres:   acres,
			Percent: units.PercentOfTotal(acres, totalAcres),
		})
	}
	sort.SliceStable(stats.Bands, func(i, j int) bool {
		return stats.Bands[i].Acres > stats.Bands[j].Acres
	})
	return stats
}

// AnalysisStatus is the lifecycle state of an analysis run.
type AnalysisStatus string

const (
	AnalysisPending AnalysisStatus = "pending"
	AnalysisRunning AnalysisStatus = "running"
	AnalysisReady   AnalysisStatus = "ready"
	AnalysisFailed  AnalysisStatus = "failed"
)

// AnalysisReport is the full result of analysing one drawn shape: the
// delineated watershed, its priority water resources converted to
// display units, and its land-cover composition.
type AnalysisReport struct {
	ID          string             `json:"id"`
	SketchID    string             `json:"sketch_id,omitempty"`
	FeatureID   string             `json:"feature_id,omitempty"`
	Status      AnalysisStatus     `json:"status"`
	Input       Geometry           `json:"input"`
	Watershed   Geometry           `json:"watershed"`
	Resources   *ResourceSummary   `json:"resources,omitempty"`
	LandCover   LandCoverSummary   `json:"land_cover,omitempty"`
	Breakdown   *ResourceBreakdown `json:"breakdown,omitempty"`
	LandStats   *LandCoverStats    `json:"land_cover_stats,omitempty"`
	Error       string             `json:"error,omitempty"`
	UpstreamMS  int64              `json:"upstream_ms"`
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// Analysis lifecycle event types.
const (
	EventAnalysisRequested = "analysis.requested"
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisFailed    = "analysis.failed"
)

// AnalysisEvent is published on the message bus as a report moves
// through its lifecycle.
type AnalysisEvent struct {
	Type     string         `json:"type"`
	ReportID string         `json:"report_id"`
	SketchID string         `json:"sketch_id,omitempty"`
	Status   AnalysisStatus `json:"status"`
	Error    string         `json:"error,omitempty"`
	Time     time.Time      `json:"time"`
}

// AnalysisJob is a queued request for background analysis. The report
// referenced by ReportID already exists in pending state.
type AnalysisJob struct {
	ReportID    string    `json:"report_id"`
	SketchID    string    `json:"sketch_id,omitempty"`
	FeatureID   string    `json:"feature_id,omitempty"`
	Geometry    Geometry  `json:"geometry"`
	RequestedAt time.Time `json:"requested_at"`
}
