// Package safety scores route geometries against incident danger zones.
//
// Everything here is a pure function over value types: zones are built once
// per request, and each candidate route owns its own penalty slice, so
// candidates can be scored concurrently without locking.
//
// Distances use a flat-Earth conversion of KmPerDegree for both latitude and
// longitude. It is only approximate away from the equator and over long
// distances; it is kept as-is so scores stay comparable with existing data.
package safety

import "github.com/smartcity/saferoute/internal/domain"

// Tier is the severity band of a danger zone
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// ScoringConfig holds every tunable of the danger model, segment scorer and
// route evaluator.
type ScoringConfig struct {
	// Danger model
	TierRadiusDeg         map[Tier]float64
	LowPercentile         float64
	HighPercentile        float64
	MinRecordsPercentile  int // percentiles need more than this many records
	FallbackLowThreshold  float64
	FallbackHighThreshold float64
	SafetyLevelWeight     map[domain.SafetyLevel]float64

	// Segment scorer
	KmPerDegree           float64
	RadiusUnitKm          float64 // km per unit of zone radius
	BarrierMultiplier     float64
	GlobalMinRadiusDeg    float64
	GlobalBarrierFactor   float64
	BufferMultiplier      float64
	BufferSlack           float64
	FalloffRate           float64
	TierSeverityWeight    map[Tier]float64
	DefaultSeverityWeight float64
	DistanceExponent      float64
	DistanceEpsilon       float64
	MinDistanceMultiplier float64
	DistancePenaltyScale  float64
	BasePenalty           float64
	EscalationMultiplier  float64
	RouteRejectMultiplier float64

	// Route evaluator
	PenaltySensitivity   float64
	DangerThreshold      float64
	ConsecutiveThreshold float64
	ConsecutiveFactor    float64
	DangerExponent       float64
	DangerScale          float64
	MaxDangerWeight      float64
	DangerZoneWeight     float64
	SafetyMultiplier     map[domain.SafetyLevel]float64
	DistanceWeight       float64
}

// DefaultScoringConfig returns the production tuning.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		TierRadiusDeg: map[Tier]float64{
			TierLow:    0.3,
			TierMedium: 0.5,
			TierHigh:   0.8,
		},
		LowPercentile:         33,
		HighPercentile:        66,
		MinRecordsPercentile:  3,
		FallbackLowThreshold:  2,
		FallbackHighThreshold: 4,
		SafetyLevelWeight: map[domain.SafetyLevel]float64{
			domain.SafetyLenient:  5e6,
			domain.SafetyDefault:  1e7,
			domain.SafetyCautious: 2e7,
		},

		KmPerDegree:         111.32,
		RadiusUnitKm:        111.32,
		BarrierMultiplier:   1.2,
		GlobalMinRadiusDeg:  0.2,
		GlobalBarrierFactor: 1.5,
		BufferMultiplier:    6.0,
		BufferSlack:         1.2,
		FalloffRate:         4.0,
		TierSeverityWeight: map[Tier]float64{
			TierHigh:   30.0,
			TierMedium: 12.0,
			TierLow:    6.0,
		},
		DefaultSeverityWeight: 1.0,
		DistanceExponent:      0.7,
		DistanceEpsilon:       1e-4,
		MinDistanceMultiplier: 30.0,
		DistancePenaltyScale:  2000,
		BasePenalty:           1.5e7,
		EscalationMultiplier:  1.8,
		RouteRejectMultiplier: 0.7,

		PenaltySensitivity:   0.00015,
		DangerThreshold:      50,
		ConsecutiveThreshold: 1000,
		ConsecutiveFactor:    1.2,
		DangerExponent:       1.5,
		DangerScale:          15,
		MaxDangerWeight:      1e6,
		DangerZoneWeight:     1e8,
		SafetyMultiplier: map[domain.SafetyLevel]float64{
			domain.SafetyLenient:  1e6,
			domain.SafetyDefault:  1e8,
			domain.SafetyCautious: 1e10,
		},
		DistanceWeight: 0.0001,
	}
}

// GlobalMinRadiusKm is the minimum clearance enforced around every zone
func (c ScoringConfig) GlobalMinRadiusKm() float64 {
	return c.GlobalMinRadiusDeg * c.RadiusUnitKm
}

func (c ScoringConfig) severityWeight(t Tier) float64 {
	if w, ok := c.TierSeverityWeight[t]; ok {
		return w
	}
	return c.DefaultSeverityWeight
}
