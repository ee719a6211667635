package safety

import (
	"github.com/smartcity/saferoute/internal/domain"
	"github.com/smartcity/saferoute/pkg/utils"
)

// DangerZone is a circular penalty region around one incident
type DangerZone struct {
	CenterLat        float64 `json:"center_lat"`
	CenterLng        float64 `json:"center_lng"`
	RadiusDeg        float64 `json:"radius_deg"`
	WeightedSeverity float64 `json:"weighted_severity"`
	Tier             Tier    `json:"tier"`
}

// RadiusKm converts the zone radius to kilometres
func (z DangerZone) RadiusKm(cfg ScoringConfig) float64 {
	return z.RadiusDeg * cfg.RadiusUnitKm
}

// BuildZones turns incident records into danger zones, one per record with
// usable coordinates. Zone order follows record order; scoring relies on it.
func BuildZones(records []domain.IncidentRecord, level domain.SafetyLevel, cfg ScoringConfig) []DangerZone {
	kept := make([]domain.IncidentRecord, 0, len(records))
	severities := make([]float64, 0, len(records))
	for _, r := range records {
		if !r.HasCoordinates() {
			continue
		}
		kept = append(kept, r)
		severities = append(severities, r.Severity)
	}
	if len(kept) == 0 {
		return []DangerZone{}
	}

	low, high := severityThresholds(severities, cfg)
	weight := cfg.SafetyLevelWeight[level]

	zones := make([]DangerZone, 0, len(kept))
	for _, r := range kept {
		tier := tierFor(r.Severity, low, high)
		zones = append(zones, DangerZone{
			CenterLat:        r.Latitude,
			CenterLng:        r.Longitude,
			RadiusDeg:        cfg.TierRadiusDeg[tier],
			WeightedSeverity: r.Severity * weight,
			Tier:             tier,
		})
	}
	return zones
}

func severityThresholds(severities []float64, cfg ScoringConfig) (low, high float64) {
	if len(severities) <= cfg.MinRecordsPercentile {
		return cfg.FallbackLowThreshold, cfg.FallbackHighThreshold
	}
	return utils.Percentile(severities, cfg.LowPercentile), utils.Percentile(severities, cfg.HighPercentile)
}

func tierFor(severity, low, high float64) Tier {
	switch {
	case severity >= high:
		return TierHigh
	case severity >= low:
		return TierMedium
	default:
		return TierLow
	}
}
