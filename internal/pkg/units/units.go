// Package units converts the raw service values (square meters, meters) into
// the acre/mile figures the reports display.
package units

import "math"

const (
	// SquareMetersPerAcre is the conversion factor used for every area figure.
	SquareMetersPerAcre = 4046.86

	// MetersPerMile is the conversion factor for stream-bank length.
	MetersPerMile = 1609.34

	// ZeroTotalPercentFloor is what a percent renders as when the land-cover
	// total is zero. The Percent value itself keeps the ZeroTotal flag so
	// callers can tell this apart from a genuinely tiny share.
	ZeroTotalPercentFloor = 0.001
)

// Acres converts an area in square meters to acres.
func Acres(squareMeters float64) float64 {
	return squareMeters / SquareMetersPerAcre
}

// Miles converts a length in meters to miles.
func Miles(meters float64) float64 {
	return meters / MetersPerMile
}

// Percent is a share of the watershed's total land-cover acreage.
// ZeroTotal marks the degenerate case where the total was zero and no
// meaningful share exists; Value is 0 in that case.
type Percent struct {
	Value     float64 `json:"value"`
	ZeroTotal bool    `json:"zero_total,omitempty"`
}

// PercentOfTotal computes part/total as a percentage clamped to 100.
// A zero (or negative) total yields a ZeroTotal percent instead of an error,
// leaving the rendering decision to the caller.
func PercentOfTotal(part, total float64) Percent {
	if total <= 0 {
		return Percent{ZeroTotal: true}
	}
	pct := part / total * 100
	if pct > 100 {
		pct = 100
	}
	return Percent{Value: pct}
}

// Display returns the number a chart label shows: the clamped percentage, or
// the fixed floor when the total was zero.
func (p Percent) Display() float64 {
	if p.ZeroTotal {
		return ZeroTotalPercentFloor
	}
	return p.Value
}

// SuggestZoom maps total watershed acreage to a map zoom level, fitted so that
// larger watersheds zoom out further: round(-0.697*ln(acres) + 18.003).
// ok is false when totalAcres is not positive and the formula is undefined.
func SuggestZoom(totalAcres float64) (zoom int, ok bool) {
	if totalAcres <= 0 {
		return 0, false
	}
	return int(math.Round(-0.697*math.Log(totalAcres) + 18.003)), true
}
