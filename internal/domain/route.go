package domain

import "math"

// LatLng is a WGS-84 position
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TravelMode selects the routing profile used by the geometry provider
type TravelMode string

const (
	ModeDriving TravelMode = "driving"
	ModeWalking TravelMode = "walking"
	ModeCycling TravelMode = "cycling"
)

// Valid reports whether the mode is one the provider understands
func (m TravelMode) Valid() bool {
	switch m {
	case ModeDriving, ModeWalking, ModeCycling:
		return true
	}
	return false
}

// SafetyLevel is the caller's caution dial: 1 lenient, 3 most cautious
type SafetyLevel int

const (
	SafetyLenient  SafetyLevel = 1
	SafetyDefault  SafetyLevel = 2
	SafetyCautious SafetyLevel = 3
)

// RouteCandidate is one alternative geometry returned by the routing provider,
// together with its per-segment penalties once scored.
type RouteCandidate struct {
	Polyline             []LatLng  `json:"polyline"`
	DistanceMeters       float64   `json:"distance_meters"`
	DurationSeconds      float64   `json:"duration_seconds"`
	SegmentPenalties     []float64 `json:"segment_penalties,omitempty"`
	AggregateDangerScore float64   `json:"aggregate_danger_score"`
	SearchRadius         int       `json:"search_radius_m"`
}

// SegmentCount is the number of consecutive vertex pairs
func (c RouteCandidate) SegmentCount() int {
	if len(c.Polyline) < 2 {
		return 0
	}
	return len(c.Polyline) - 1
}

// SafeRouteRequest is the input to safest-route selection
type SafeRouteRequest struct {
	Start       LatLng
	End         LatLng
	Mode        TravelMode
	SafetyLevel SafetyLevel
}

// BestRoute is the selected candidate, sanitized for serialization
type BestRoute struct {
	Route               RouteCandidate
	Score               float64
	SafetyLevel         SafetyLevel
	CandidatesEvaluated int
	Degraded            bool
}

// LineString is a GeoJSON geometry with [lng, lat] positions
type LineString struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// NewLineString converts a polyline to GeoJSON order
func NewLineString(points []LatLng) LineString {
	coords := make([][2]float64, len(points))
	for i, p := range points {
		coords[i] = [2]float64{p.Lng, p.Lat}
	}
	return LineString{Type: "LineString", Coordinates: coords}
}

// SafeRouteResponse is the transport shape of a BestRoute
type SafeRouteResponse struct {
	DistanceMeters      float64    `json:"distance_meters"`
	DurationSeconds     float64    `json:"duration_seconds"`
	DangerScore         float64    `json:"danger_score"`
	SafetyLevel         int        `json:"safety_level"`
	Geometry            LineString `json:"geometry"`
	SegmentPenalties    []float64  `json:"segment_penalties"`
	CandidatesEvaluated int        `json:"candidates_evaluated"`
	Degraded            bool       `json:"degraded"`
}

// ToResponse builds the transport shape
func (b BestRoute) ToResponse() SafeRouteResponse {
	penalties := b.Route.SegmentPenalties
	if penalties == nil {
		penalties = []float64{}
	}
	return SafeRouteResponse{
		DistanceMeters:      b.Route.DistanceMeters,
		DurationSeconds:     b.Route.DurationSeconds,
		DangerScore:         b.Route.AggregateDangerScore,
		SafetyLevel:         int(b.SafetyLevel),
		Geometry:            NewLineString(b.Route.Polyline),
		SegmentPenalties:    penalties,
		CandidatesEvaluated: b.CandidatesEvaluated,
		Degraded:            b.Degraded,
	}
}

// InfinitySubstitute replaces ±Inf at the serialization boundary; JSON has no infinities.
const InfinitySubstitute = 1e10

// Finite maps ±Inf to ±InfinitySubstitute and leaves other values alone
func Finite(v float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return InfinitySubstitute
	case math.IsInf(v, -1):
		return -InfinitySubstitute
	}
	return v
}

// FiniteSlice returns a copy of values with infinities substituted
func FiniteSlice(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = Finite(v)
	}
	return out
}
