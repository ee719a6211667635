// Package service holds the application services behind the HTTP API:
// safest-route selection, incident listing and reporting, hotspot
// aggregation and reverse geocoding, plus the OSRM geometry provider.
package service

import (
	"context"

	"github.com/smartcity/saferoute/internal/domain"
)

// RouteSelector is the contract the delivery layer needs for route selection
type RouteSelector interface {
	SelectSafestRoute(ctx context.Context, req domain.SafeRouteRequest) (domain.BestRoute, error)
}

// ReverseGeocoder resolves coordinates to an address
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (domain.Address, error)
}

var (
	_ RouteSelector           = (*RouteService)(nil)
	_ ReverseGeocoder         = (*GeocodeService)(nil)
	_ domain.GeometryProvider = (*OSRMProvider)(nil)
	_ domain.IncidentSource   = (*IncidentCache)(nil)
)
