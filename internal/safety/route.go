package safety

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/smartcity/saferoute/internal/domain"
)

// ScoredCandidate pairs a scored route with the error that dropped it, if any
type ScoredCandidate struct {
	Route domain.RouteCandidate
	Err   error
}

// ScoreRoute fills a fresh copy of the candidate's segment penalties.
// A zone that rejects the route turns every penalty to +Inf and stops scoring.
func ScoreRoute(c domain.RouteCandidate, zones []DangerZone, cfg ScoringConfig) (domain.RouteCandidate, error) {
	scored := c
	scored.Polyline = append([]domain.LatLng(nil), c.Polyline...)
	penalties := make([]float64, c.SegmentCount())

	for j := range penalties {
		res, err := ScoreSegment(c.Polyline[j], c.Polyline[j+1], zones, cfg)
		if err != nil {
			return domain.RouteCandidate{}, fmt.Errorf("safety: segment %d: %w", j, err)
		}
		if res.Verdict == VerdictRejectRoute {
			for k := range penalties {
				penalties[k] = math.Inf(1)
			}
			break
		}
		penalties[j] = res.Penalty
	}

	scored.SegmentPenalties = penalties
	scored.AggregateDangerScore = AggregateDanger(penalties)
	return scored, nil
}

// ScoreCandidates scores every candidate concurrently. Results keep input order;
// a candidate that fails to score carries its error instead of aborting the rest.
func ScoreCandidates(ctx context.Context, candidates []domain.RouteCandidate, zones []DangerZone, cfg ScoringConfig) []ScoredCandidate {
	out := make([]ScoredCandidate, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i] = ScoredCandidate{Route: c, Err: err}
				return nil
			}
			route, err := ScoreRoute(c, zones, cfg)
			out[i] = ScoredCandidate{Route: route, Err: err}
			if err != nil {
				out[i].Route = c
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
