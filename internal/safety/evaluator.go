package safety

import (
	"math"

	"github.com/smartcity/saferoute/internal/domain"
)

// Score is a route ranking: lower is better, Disqualified never wins.
// When the exponential weighting overflows, Value is +Inf and routes are
// ordered by their peak and then aggregate penalty instead.
type Score struct {
	Value        float64
	Disqualified bool
	PeakPenalty  float64
	Aggregate    float64
}

// Disqualified is the score of a route that crosses a barrier
var Disqualified = Score{Value: math.Inf(1), Disqualified: true}

// Less orders scores; any scored route beats a disqualified one.
func (s Score) Less(o Score) bool {
	if s.Disqualified {
		return false
	}
	if o.Disqualified {
		return true
	}
	if math.IsInf(s.Value, 1) && math.IsInf(o.Value, 1) {
		if s.PeakPenalty != o.PeakPenalty {
			return s.PeakPenalty < o.PeakPenalty
		}
		return s.Aggregate < o.Aggregate
	}
	return s.Value < o.Value
}

// Float converts the score for transport, substituting the infinity sentinel
func (s Score) Float() float64 {
	if s.Disqualified {
		return domain.InfinitySubstitute
	}
	return domain.Finite(s.Value)
}

// Rank scores a route from its segment penalties. maxDistance is the longest
// candidate distance of the request and only matters when no segment carries risk.
// Segments with zero penalty carry no risk and do not contribute.
func Rank(route domain.RouteCandidate, level domain.SafetyLevel, maxDistance float64, cfg ScoringConfig) Score {
	penalties := route.SegmentPenalties
	for _, p := range penalties {
		if math.IsInf(p, 0) || math.IsNaN(p) {
			return Disqualified
		}
	}

	var (
		maxDanger   float64
		peak        float64
		dangerZones int
		dangerScore float64
	)
	for _, p := range penalties {
		if p <= 0 {
			continue
		}
		peak = math.Max(peak, p)
		weighted := math.Exp(p * cfg.PenaltySensitivity)
		maxDanger = math.Max(maxDanger, weighted)
		if p > cfg.DangerThreshold {
			dangerZones++
		}
		dangerScore += math.Pow(weighted, cfg.DangerExponent) * cfg.DangerScale
		if p > cfg.ConsecutiveThreshold && len(penalties) > 1 {
			dangerScore *= cfg.ConsecutiveFactor
		}
	}

	if maxDanger > 0 {
		return Score{
			Value:       maxDanger*cfg.MaxDangerWeight + float64(dangerZones)*cfg.DangerZoneWeight + dangerScore,
			PeakPenalty: peak,
			Aggregate:   AggregateDanger(penalties),
		}
	}

	multiplier, ok := cfg.SafetyMultiplier[level]
	if !ok {
		multiplier = cfg.SafetyMultiplier[domain.SafetyLenient]
	}
	maxDistance = math.Max(maxDistance, 1)
	normalized := route.DistanceMeters / maxDistance * cfg.DistanceWeight
	return Score{Value: dangerScore*multiplier + normalized}
}

// AggregateDanger is the root of the summed squared finite penalties.
// Infinite penalties are left to Rank.
func AggregateDanger(penalties []float64) float64 {
	sum := 0.0
	for _, p := range penalties {
		if math.IsInf(p, 0) || math.IsNaN(p) {
			continue
		}
		sum += p * p
	}
	return math.Sqrt(sum)
}

// PickBest returns the index and score of the lowest-ranked route. Exact ties
// keep the first route. ok is false when every route is disqualified.
func PickBest(routes []domain.RouteCandidate, level domain.SafetyLevel, cfg ScoringConfig) (index int, best Score, ok bool) {
	maxDistance := 0.0
	for _, r := range routes {
		maxDistance = math.Max(maxDistance, r.DistanceMeters)
	}

	index, best = -1, Disqualified
	for i, r := range routes {
		s := Rank(r, level, maxDistance, cfg)
		if s.Disqualified {
			continue
		}
		if index < 0 || s.Less(best) {
			index, best = i, s
		}
	}
	return index, best, index >= 0
}
