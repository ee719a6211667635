package domain

import (
	"context"
	"time"
)

// IncidentSource is the read side consumed by route selection.
type IncidentSource interface {
	// FetchIncidents returns records observed at or after since.
	// Records with missing or invalid fields are skipped, not reported as errors.
	FetchIncidents(ctx context.Context, since time.Time) ([]IncidentRecord, error)
}

// IncidentRepository defines the interface for incident persistence.
// The domain defines it; postgres, firestore and memory implement it.
type IncidentRepository interface {
	IncidentSource

	// RecentIncidents returns up to limit records, newest first
	RecentIncidents(ctx context.Context, limit int) ([]IncidentRecord, error)

	// SaveIncident persists a record and returns it with its assigned ID
	SaveIncident(ctx context.Context, rec IncidentRecord) (IncidentRecord, error)

	// Health checks store connectivity
	Health(ctx context.Context) error
}

// GeometryProvider fetches alternative route geometries from a routing service.
type GeometryProvider interface {
	FetchCandidates(ctx context.Context, start, end LatLng, mode TravelMode, radiiMeters []int, alternatives int) ([]RouteCandidate, error)
}

// Address is the result of reverse geocoding
type Address struct {
	FormattedAddress string            `json:"formatted_address"`
	Latitude         float64           `json:"lat"`
	Longitude        float64           `json:"lon"`
	Components       map[string]string `json:"components,omitempty"`
	Source           string            `json:"source"`
}
