package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/smartcity/saferoute/internal/domain"
	"github.com/smartcity/saferoute/internal/safety"
	"github.com/smartcity/saferoute/internal/telemetry"
	"github.com/smartcity/saferoute/pkg/utils"
)

// DefaultSearchRadii are the provider snapping radii in meters
var DefaultSearchRadii = []int{5000, 10000, 20000}

// DefaultAlternatives is the number of alternatives asked per radius
const DefaultAlternatives = 2

// RouteService selects the safest route between two points
type RouteService struct {
	incidents    domain.IncidentSource
	provider     domain.GeometryProvider
	scoring      safety.ScoringConfig
	radii        []int
	alternatives int
	now          func() time.Time
}

// NewRouteService creates a route service. Empty radii or a non-positive
// alternatives count fall back to the defaults.
func NewRouteService(incidents domain.IncidentSource, provider domain.GeometryProvider, radii []int, alternatives int) *RouteService {
	if len(radii) == 0 {
		radii = DefaultSearchRadii
	}
	if alternatives <= 0 {
		alternatives = DefaultAlternatives
	}
	return &RouteService{
		incidents:    incidents,
		provider:     provider,
		scoring:      safety.DefaultScoringConfig(),
		radii:        append([]int(nil), radii...),
		alternatives: alternatives,
		now:          time.Now,
	}
}

// SetScoringConfig replaces the scoring constants
func (s *RouteService) SetScoringConfig(cfg safety.ScoringConfig) {
	s.scoring = cfg
}

// SelectSafestRoute fetches candidates, scores them against the recent
// incidents and returns the lowest-ranked one. An unavailable incident source
// degrades to distance-only ranking.
func (s *RouteService) SelectSafestRoute(ctx context.Context, req domain.SafeRouteRequest) (best domain.BestRoute, err error) {
	began := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "route.select")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		telemetry.Metrics().SelectionLatency.Record(ctx, time.Since(began).Seconds())
	}()

	req, err = normalizeRequest(req)
	if err != nil {
		return domain.BestRoute{}, err
	}
	span.SetAttributes(
		attribute.String("mode", string(req.Mode)),
		attribute.Int("safety_level", int(req.SafetyLevel)),
	)

	records, degraded := s.loadIncidents(ctx)
	zones := safety.BuildZones(records, req.SafetyLevel, s.scoring)

	candidates, err := s.provider.FetchCandidates(ctx, req.Start, req.End, req.Mode, s.radii, s.alternatives)
	if err != nil {
		return domain.BestRoute{}, fmt.Errorf("route: failed to fetch candidates: %w", err)
	}

	scored := safety.ScoreCandidates(ctx, candidates, zones, s.scoring)
	if err := ctx.Err(); err != nil {
		return domain.BestRoute{}, fmt.Errorf("route: scoring interrupted: %w", err)
	}

	m := telemetry.Metrics()
	usable := make([]domain.RouteCandidate, 0, len(scored))
	for i, sc := range scored {
		if sc.Err != nil {
			slog.Warn("dropping candidate", "index", i, "radius_m", sc.Route.SearchRadius, "error", sc.Err)
			m.CandidatesDropped.Add(ctx, 1)
			continue
		}
		usable = append(usable, sc.Route)
	}

	disqualified := 0
	for _, r := range usable {
		if safety.Rank(r, req.SafetyLevel, 0, s.scoring).Disqualified {
			disqualified++
		}
	}
	if disqualified > 0 {
		m.CandidatesDisqualified.Add(ctx, int64(disqualified))
	}

	idx, score, ok := safety.PickBest(usable, req.SafetyLevel, s.scoring)
	span.SetAttributes(
		attribute.Int("zones", len(zones)),
		attribute.Int("candidates", len(candidates)),
		attribute.Int("disqualified", disqualified),
		attribute.Bool("degraded", degraded),
	)
	if !ok {
		return domain.BestRoute{}, fmt.Errorf("%w: all %d candidates crossed a danger barrier or failed scoring",
			domain.ErrNoRouteFound, len(candidates))
	}

	chosen := usable[idx]
	chosen.SegmentPenalties = domain.FiniteSlice(chosen.SegmentPenalties)
	chosen.AggregateDangerScore = domain.Finite(chosen.AggregateDangerScore)

	slog.Info("safest route selected",
		"mode", req.Mode,
		"safety_level", req.SafetyLevel,
		"zones", len(zones),
		"candidates", len(candidates),
		"disqualified", disqualified,
		"distance_m", chosen.DistanceMeters,
		"degraded", degraded,
	)

	return domain.BestRoute{
		Route:               chosen,
		Score:               score.Float(),
		SafetyLevel:         req.SafetyLevel,
		CandidatesEvaluated: len(candidates),
		Degraded:            degraded,
	}, nil
}

func (s *RouteService) loadIncidents(ctx context.Context) ([]domain.IncidentRecord, bool) {
	if s.incidents == nil {
		return nil, true
	}
	ctx, span := telemetry.StartSpan(ctx, "incidents.fetch")
	defer span.End()

	records, err := s.incidents.FetchIncidents(ctx, s.now().Add(-domain.IncidentLookback))
	if err != nil {
		if !errors.Is(err, domain.ErrIncidentSourceUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrIncidentSourceUnavailable, err)
		}
		slog.Warn("incident source unavailable, ranking by distance only", "error", err)
		span.RecordError(err)
		return nil, true
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, false
}

// normalizeRequest validates coordinates and fills defaults before any I/O
func normalizeRequest(req domain.SafeRouteRequest) (domain.SafeRouteRequest, error) {
	if !domain.ValidCoordinate(req.Start.Lat, req.Start.Lng) {
		return req, fmt.Errorf("%w: start coordinates out of range", domain.ErrInvalidInput)
	}
	if !domain.ValidCoordinate(req.End.Lat, req.End.Lng) {
		return req, fmt.Errorf("%w: end coordinates out of range", domain.ErrInvalidInput)
	}

	if req.Mode == "" {
		req.Mode = domain.ModeDriving
	}
	if !req.Mode.Valid() {
		return req, fmt.Errorf("%w: unsupported travel mode %q", domain.ErrInvalidInput, req.Mode)
	}

	if req.SafetyLevel == 0 {
		req.SafetyLevel = domain.SafetyDefault
	}
	req.SafetyLevel = domain.SafetyLevel(utils.ClampInt(int(req.SafetyLevel), int(domain.SafetyLenient), int(domain.SafetyCautious)))
	return req, nil
}
