package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/smartcity/saferoute/internal/domain"
	"github.com/smartcity/saferoute/pkg/utils"
)

// Listing and hotspot bounds
const (
	DefaultIncidentLimit = 100
	MaxIncidentLimit     = 500
	DefaultHotspotDays   = 30
	MaxHotspotDays       = 365
)

// Statistics, trends and nearby bounds
const (
	DefaultStatsLimit     = 1000
	MaxStatsLimit         = 5000
	DefaultTrendsLimit    = 100
	MaxTrendsLimit        = 1000
	DefaultNearbyRadiusKm = 5.0
	MaxNearbyRadiusKm     = 100.0
	DefaultNearbyLimit    = 20
	MaxNearbyLimit        = 100

	topTypeCount     = 5
	topLocationCount = 10
)

// IncidentService serves incident listings, reports and hotspot aggregation
type IncidentService struct {
	repo   domain.IncidentRepository
	source domain.IncidentSource
	now    func() time.Time
}

// NewIncidentService creates an incident service. Reads for hotspots go
// through source, which is usually the incident cache over repo.
func NewIncidentService(repo domain.IncidentRepository, source domain.IncidentSource) *IncidentService {
	if source == nil {
		source = repo
	}
	return &IncidentService{repo: repo, source: source, now: time.Now}
}

// Recent returns up to limit incidents with coordinates, newest first
func (s *IncidentService) Recent(ctx context.Context, limit int) ([]domain.IncidentRecord, error) {
	if limit <= 0 {
		limit = DefaultIncidentLimit
	}
	limit = utils.ClampInt(limit, 1, MaxIncidentLimit)

	records, err := s.repo.RecentIncidents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIncidentSourceUnavailable, err)
	}

	out := make([]domain.IncidentRecord, 0, len(records))
	for _, r := range records {
		if r.HasCoordinates() {
			out = append(out, r)
		}
	}
	return out, nil
}

// Report validates and stores a user-reported incident
func (s *IncidentService) Report(ctx context.Context, report domain.IncidentReport) (domain.IncidentRecord, error) {
	if !domain.ValidCoordinate(report.Latitude, report.Longitude) {
		return domain.IncidentRecord{}, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalidInput)
	}
	if math.IsNaN(report.Severity) || report.Severity < domain.MinReportSeverity || report.Severity > domain.MaxReportSeverity {
		return domain.IncidentRecord{}, fmt.Errorf("%w: severity must be between %d and %d",
			domain.ErrInvalidInput, domain.MinReportSeverity, domain.MaxReportSeverity)
	}

	incidentType := strings.TrimSpace(report.Type)
	if incidentType == "" {
		incidentType = "other"
	}

	saved, err := s.repo.SaveIncident(ctx, domain.IncidentRecord{
		Latitude:    report.Latitude,
		Longitude:   report.Longitude,
		Severity:    report.Severity,
		Type:        incidentType,
		Description: strings.TrimSpace(report.Description),
		ObservedAt:  s.now().UTC(),
	})
	if err != nil {
		return domain.IncidentRecord{}, fmt.Errorf("incidents: failed to save report: %w", err)
	}

	if inv, ok := s.source.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
	return saved, nil
}

// Hotspots groups the last days of incidents on a 0.001 degree grid and
// returns cells seen more than once, highest score first.
func (s *IncidentService) Hotspots(ctx context.Context, days int) ([]domain.Hotspot, error) {
	if days <= 0 {
		days = DefaultHotspotDays
	}
	if days > MaxHotspotDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", domain.ErrInvalidInput, MaxHotspotDays)
	}

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	records, err := s.source.FetchIncidents(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIncidentSourceUnavailable, err)
	}
	return aggregateHotspots(records), nil
}

// Stats counts the newest limit incidents of the last days per type. Every
// known type is present in the result, unknown types count as "other".
func (s *IncidentService) Stats(ctx context.Context, days, limit int) (domain.IncidentStats, error) {
	records, window, err := s.window(ctx, days, limit, DefaultStatsLimit, MaxStatsLimit)
	if err != nil {
		return domain.IncidentStats{}, err
	}

	byType := make(map[string]int, len(domain.IncidentTypes))
	for _, t := range domain.IncidentTypes {
		byType[t] = 0
	}
	for _, r := range records {
		t := normalizeType(r.Type)
		if _, known := byType[t]; !known {
			t = "other"
		}
		byType[t]++
	}

	return domain.IncidentStats{Total: len(records), ByType: byType, Window: window}, nil
}

// Trends reports per-type counts, the five most frequent types and the ten
// busiest positions (rounded to the hotspot grid) over the newest limit
// incidents of the last days.
func (s *IncidentService) Trends(ctx context.Context, days, limit int) (domain.IncidentTrends, error) {
	records, window, err := s.window(ctx, days, limit, DefaultTrendsLimit, MaxTrendsLimit)
	if err != nil {
		return domain.IncidentTrends{}, err
	}

	byType := make(map[string]int)
	locations := make(map[gridCell]int)
	for _, r := range records {
		byType[normalizeType(r.Type)]++
		if r.HasCoordinates() {
			locations[gridCell{lat: utils.RoundTo(r.Latitude, 3), lng: utils.RoundTo(r.Longitude, 3)}]++
		}
	}

	top := make([]domain.TypeCount, 0, len(byType))
	for t, n := range byType {
		top = append(top, domain.TypeCount{Type: t, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Type < top[j].Type
	})
	if len(top) > topTypeCount {
		top = top[:topTypeCount]
	}

	busiest := make([]domain.LocationCount, 0, len(locations))
	for key, n := range locations {
		busiest = append(busiest, domain.LocationCount{Latitude: key.lat, Longitude: key.lng, Count: n})
	}
	sort.Slice(busiest, func(i, j int) bool {
		a, b := busiest[i], busiest[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Latitude != b.Latitude {
			return a.Latitude < b.Latitude
		}
		return a.Longitude < b.Longitude
	})
	if len(busiest) > topLocationCount {
		busiest = busiest[:topLocationCount]
	}

	return domain.IncidentTrends{
		Total:     len(records),
		ByType:    byType,
		TopTypes:  top,
		Locations: busiest,
		Window:    window,
	}, nil
}

// Nearby returns incidents of the routing lookback within radiusKm of pos,
// closest first. A zero radius or limit selects the default.
func (s *IncidentService) Nearby(ctx context.Context, pos domain.LatLng, radiusKm float64, limit int) ([]domain.NearbyIncident, error) {
	if !domain.ValidCoordinate(pos.Lat, pos.Lng) {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalidInput)
	}
	if radiusKm == 0 {
		radiusKm = DefaultNearbyRadiusKm
	}
	if math.IsNaN(radiusKm) || radiusKm < 0 || radiusKm > MaxNearbyRadiusKm {
		return nil, fmt.Errorf("%w: radius must be between 0 and %g km", domain.ErrInvalidInput, MaxNearbyRadiusKm)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidInput)
	}
	if limit == 0 {
		limit = DefaultNearbyLimit
	}
	limit = utils.ClampInt(limit, 1, MaxNearbyLimit)

	records, err := s.source.FetchIncidents(ctx, s.now().Add(-domain.IncidentLookback))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIncidentSourceUnavailable, err)
	}

	nearby := make([]domain.NearbyIncident, 0)
	for _, r := range records {
		if !r.HasCoordinates() {
			continue
		}
		d := utils.Haversine(pos.Lat, pos.Lng, r.Latitude, r.Longitude)
		if d > radiusKm {
			continue
		}
		nearby = append(nearby, domain.NearbyIncident{IncidentRecord: r, DistanceKm: utils.RoundTo(d, 2)})
	}
	sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })
	if len(nearby) > limit {
		nearby = nearby[:limit]
	}
	return nearby, nil
}

// window loads the newest limit incidents of the last days
func (s *IncidentService) window(ctx context.Context, days, limit, defaultLimit, maxLimit int) ([]domain.IncidentRecord, domain.TimeWindow, error) {
	if days <= 0 {
		days = DefaultHotspotDays
	}
	if days > MaxHotspotDays {
		return nil, domain.TimeWindow{}, fmt.Errorf("%w: days must be between 1 and %d", domain.ErrInvalidInput, MaxHotspotDays)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = utils.ClampInt(limit, 1, maxLimit)

	end := s.now().UTC()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)
	records, err := s.source.FetchIncidents(ctx, start)
	if err != nil {
		return nil, domain.TimeWindow{}, fmt.Errorf("%w: %w", domain.ErrIncidentSourceUnavailable, err)
	}

	records = append([]domain.IncidentRecord(nil), records...)
	sort.SliceStable(records, func(i, j int) bool { return records[i].ObservedAt.After(records[j].ObservedAt) })
	if len(records) > limit {
		records = records[:limit]
	}
	return records, domain.TimeWindow{Start: start, End: end, Days: days}, nil
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return "other"
	}
	return t
}

type gridCell struct {
	lat, lng float64
}

func aggregateHotspots(records []domain.IncidentRecord) []domain.Hotspot {
	type acc struct {
		count int
		total float64
	}
	cells := make(map[gridCell]*acc)
	for _, r := range records {
		if !r.HasCoordinates() {
			continue
		}
		key := gridCell{lat: utils.RoundTo(r.Latitude, 3), lng: utils.RoundTo(r.Longitude, 3)}
		a, ok := cells[key]
		if !ok {
			a = &acc{}
			cells[key] = a
		}
		a.count++
		a.total += r.Severity
	}

	hotspots := make([]domain.Hotspot, 0, len(cells))
	for key, a := range cells {
		if a.count < 2 {
			continue
		}
		mean := a.total / float64(a.count)
		hotspots = append(hotspots, domain.Hotspot{
			Latitude:  key.lat,
			Longitude: key.lng,
			Count:     a.count,
			Score:     utils.RoundTo(float64(a.count)*mean, 2),
		})
	}

	sort.Slice(hotspots, func(i, j int) bool {
		a, b := hotspots[i], hotspots[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Latitude != b.Latitude {
			return a.Latitude < b.Latitude
		}
		return a.Longitude < b.Longitude
	})
	return hotspots
}

// Health reports incident store connectivity
func (s *IncidentService) Health(ctx context.Context) error {
	return s.repo.Health(ctx)
}
