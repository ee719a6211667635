package safety

import (
	"fmt"
	"math"

	"github.com/smartcity/saferoute/internal/domain"
)

// Verdict tells the route loop what a segment result means for the rest of the route
type Verdict int

const (
	// VerdictScored carries a finite, additive penalty.
	VerdictScored Verdict = iota
	// VerdictBlocked marks this segment impassable.
	VerdictBlocked
	// VerdictRejectRoute disqualifies every segment of the owning route.
	VerdictRejectRoute
)

// SegmentResult is the penalty of one segment against all zones
type SegmentResult struct {
	Penalty float64
	Verdict Verdict
}

// DistanceToSegmentDeg is the planar distance, in degrees, from p to the
// segment a-b. A zero-length segment degrades to point distance.
func DistanceToSegmentDeg(p, a, b domain.LatLng) float64 {
	px := b.Lng - a.Lng
	py := b.Lat - a.Lat
	norm := px*px + py*py

	u := 0.0
	if norm != 0 {
		u = ((p.Lng-a.Lng)*px + (p.Lat-a.Lat)*py) / norm
	}
	u = math.Max(0, math.Min(1, u))

	dx := a.Lng + u*px - p.Lng
	dy := a.Lat + u*py - p.Lat
	return math.Sqrt(dx*dx + dy*dy)
}

// ScoreSegment evaluates zones in order and stops at the first one that
// blocks the segment or rejects the route.
func ScoreSegment(a, b domain.LatLng, zones []DangerZone, cfg ScoringConfig) (SegmentResult, error) {
	penalty := 0.0
	globalBarrierKm := cfg.GlobalMinRadiusKm() * cfg.GlobalBarrierFactor

	for i, z := range zones {
		center := domain.LatLng{Lat: z.CenterLat, Lng: z.CenterLng}
		distKm := DistanceToSegmentDeg(center, a, b) * cfg.KmPerDegree
		if math.IsNaN(distKm) {
			return SegmentResult{}, fmt.Errorf("safety: distance to zone %d is NaN: %w", i, domain.ErrUnexpectedScoring)
		}
		radiusKm := z.RadiusKm(cfg)

		if distKm <= radiusKm*cfg.BarrierMultiplier || distKm < globalBarrierKm {
			return SegmentResult{Penalty: math.Inf(1), Verdict: VerdictBlocked}, nil
		}

		if distKm > radiusKm*cfg.BufferMultiplier*cfg.BufferSlack {
			continue
		}

		ratio := math.Max(0, (distKm-radiusKm)/(radiusKm*(cfg.BufferMultiplier-1)))
		falloff := math.Exp(-cfg.FalloffRate * ratio)
		distancePenalty := (1 / (math.Pow(distKm, cfg.DistanceExponent) + cfg.DistanceEpsilon)) *
			cfg.MinDistanceMultiplier * cfg.DistancePenaltyScale
		penalty += cfg.BasePenalty*falloff*cfg.severityWeight(z.Tier) + distancePenalty

		if z.Tier == TierHigh && distKm < radiusKm*cfg.EscalationMultiplier {
			return SegmentResult{Penalty: math.Inf(1), Verdict: VerdictBlocked}, nil
		}
		if distKm < radiusKm*cfg.RouteRejectMultiplier {
			return SegmentResult{Penalty: math.Inf(1), Verdict: VerdictRejectRoute}, nil
		}
	}

	if math.IsNaN(penalty) || math.IsInf(penalty, 0) {
		return SegmentResult{}, fmt.Errorf("safety: segment penalty is not finite: %w", domain.ErrUnexpectedScoring)
	}
	return SegmentResult{Penalty: penalty, Verdict: VerdictScored}, nil
}
