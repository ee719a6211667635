package safety

import (
	"errors"
	"math"
	"testing"

	"github.com/smartcity/saferoute/internal/domain"
)

// A one-degree east-west segment along the equator; zones sit north of its midpoint
// so the zone distance in degrees is simply the zone latitude.
var (
	segStart = domain.LatLng{Lat: 0, Lng: 0}
	segEnd   = domain.LatLng{Lat: 0, Lng: 1}
)

func zoneAt(offsetDeg float64, tier Tier) DangerZone {
	cfg := DefaultScoringConfig()
	return DangerZone{CenterLat: offsetDeg, CenterLng: 0.5, RadiusDeg: cfg.TierRadiusDeg[tier], Tier: tier}
}

func TestDistanceToSegmentDeg(t *testing.T) {
	cases := []struct {
		name string
		p    domain.LatLng
		want float64
	}{
		{"above midpoint", domain.LatLng{Lat: 0.5, Lng: 0.5}, 0.5},
		{"beyond end clamps", domain.LatLng{Lat: 0, Lng: 2}, 1},
		{"before start clamps", domain.LatLng{Lat: 0, Lng: -3}, 3},
		{"on segment", domain.LatLng{Lat: 0, Lng: 0.25}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceToSegmentDeg(tc.p, segStart, segEnd)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDistanceToZeroLengthSegment(t *testing.T) {
	a := domain.LatLng{Lat: 1, Lng: 1}
	got := DistanceToSegmentDeg(domain.LatLng{Lat: 4, Lng: 5}, a, a)
	if got != 5 {
		t.Fatalf("got %v, want 5", got)
	}
}

func TestScoreSegmentNoZones(t *testing.T) {
	res, err := ScoreSegment(segStart, segEnd, nil, DefaultScoringConfig())
	if err != nil {
		t.Fatal(err)
	}
	if res.Penalty != 0 || res.Verdict != VerdictScored {
		t.Fatalf("expected zero penalty, got %+v", res)
	}
}

func TestHardBarrierIsInfinite(t *testing.T) {
	cfg := DefaultScoringConfig()
	for _, tier := range []Tier{TierLow, TierMedium, TierHigh} {
		barrierDeg := cfg.TierRadiusDeg[tier] * cfg.BarrierMultiplier
		for _, frac := range []float64{0, 0.25, 0.5, 0.9, 0.999} {
			z := zoneAt(barrierDeg*frac, tier)
			res, err := ScoreSegment(segStart, segEnd, []DangerZone{z}, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if !math.IsInf(res.Penalty, 1) {
				t.Errorf("tier %s at %.3f of barrier: penalty %v is finite", tier, frac, res.Penalty)
			}
		}
	}
}

func TestGlobalMinimumClearance(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.RadiusUnitKm = 1 // radii read as kilometres: barrier 0.36 km, global clearance 0.3 km
	cfg.KmPerDegree = 1

	z := DangerZone{CenterLat: 0.29, CenterLng: 0.5, RadiusDeg: 0.1, Tier: TierLow}
	res, err := ScoreSegment(segStart, segEnd, []DangerZone{z}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != VerdictBlocked {
		t.Fatalf("expected global clearance to block, got %+v", res)
	}
}

func TestPenaltyFallsOffWithDistance(t *testing.T) {
	cfg := DefaultScoringConfig()
	for _, tier := range []Tier{TierLow, TierMedium, TierHigh} {
		r := cfg.TierRadiusDeg[tier]
		start := r * cfg.BarrierMultiplier
		if tier == TierHigh {
			start = r * cfg.EscalationMultiplier
		}
		end := r * cfg.BufferMultiplier * cfg.BufferSlack

		prev := math.Inf(1)
		for d := start + 0.001; d <= end+0.05; d += 0.01 {
			res, err := ScoreSegment(segStart, segEnd, []DangerZone{zoneAt(d, tier)}, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if math.IsInf(res.Penalty, 0) {
				t.Fatalf("tier %s at %.3f°: unexpected barrier", tier, d)
			}
			if res.Penalty > prev {
				t.Fatalf("tier %s: penalty rose from %v to %v at %.3f°", tier, prev, res.Penalty, d)
			}
			prev = res.Penalty
		}
		if prev != 0 {
			t.Errorf("tier %s: penalty beyond buffer = %v, want 0", tier, prev)
		}
	}
}

func TestBufferPenaltyFormula(t *testing.T) {
	cfg := DefaultScoringConfig()
	z := zoneAt(0.5, TierLow)
	res, err := ScoreSegment(segStart, segEnd, []DangerZone{z}, cfg)
	if err != nil {
		t.Fatal(err)
	}

	d := 0.5 * 111.32
	r := 0.3 * 111.32
	falloff := math.Exp(-4 * (d - r) / (r * 5))
	want := 1.5e7*falloff*6 + (1/(math.Pow(d, 0.7)+1e-4))*30*2000
	if math.Abs(res.Penalty-want) > 1e-6*want {
		t.Fatalf("penalty = %v, want %v", res.Penalty, want)
	}
}

func TestPenaltiesAccumulateAcrossZones(t *testing.T) {
	cfg := DefaultScoringConfig()
	one, _ := ScoreSegment(segStart, segEnd, []DangerZone{zoneAt(0.5, TierLow)}, cfg)
	two, _ := ScoreSegment(segStart, segEnd, []DangerZone{zoneAt(0.5, TierLow), zoneAt(-0.5, TierLow)}, cfg)
	if math.Abs(two.Penalty-2*one.Penalty) > 1e-6*one.Penalty {
		t.Fatalf("expected additive penalties, got %v vs 2×%v", two.Penalty, one.Penalty)
	}
}

func TestHighTierEscalation(t *testing.T) {
	cfg := DefaultScoringConfig()
	res, err := ScoreSegment(segStart, segEnd, []DangerZone{zoneAt(1.2, TierHigh)}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != VerdictBlocked || !math.IsInf(res.Penalty, 1) {
		t.Fatalf("expected escalation to block, got %+v", res)
	}

	res, _ = ScoreSegment(segStart, segEnd, []DangerZone{zoneAt(1.2, TierMedium)}, cfg)
	if res.Verdict != VerdictScored {
		t.Fatalf("medium tier must not escalate, got %+v", res)
	}
}

func TestRouteRejectVerdict(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.BarrierMultiplier = 0.5
	cfg.GlobalMinRadiusDeg = 0

	res, err := ScoreSegment(segStart, segEnd, []DangerZone{zoneAt(0.18, TierLow)}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != VerdictRejectRoute {
		t.Fatalf("expected route rejection, got %+v", res)
	}
}

func TestFirstBlockingZoneStopsEvaluation(t *testing.T) {
	cfg := DefaultScoringConfig()
	bad := DangerZone{CenterLat: math.NaN(), CenterLng: 0.5, RadiusDeg: 0.3, Tier: TierLow}

	res, err := ScoreSegment(segStart, segEnd, []DangerZone{zoneAt(0.1, TierLow), bad}, cfg)
	if err != nil {
		t.Fatalf("zones after a barrier must not be evaluated: %v", err)
	}
	if res.Verdict != VerdictBlocked {
		t.Fatalf("got %+v", res)
	}

	_, err = ScoreSegment(segStart, segEnd, []DangerZone{bad}, cfg)
	if !errors.Is(err, domain.ErrUnexpectedScoring) {
		t.Fatalf("expected ErrUnexpectedScoring, got %v", err)
	}
}
