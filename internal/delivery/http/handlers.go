package http

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/smartcity/saferoute/internal/domain"
	"github.com/smartcity/saferoute/internal/service"
)

// IncidentAPI is what the handlers need from the incident service
type IncidentAPI interface {
	Recent(ctx context.Context, limit int) ([]domain.IncidentRecord, error)
	Report(ctx context.Context, report domain.IncidentReport) (domain.IncidentRecord, error)
	Hotspots(ctx context.Context, days int) ([]domain.Hotspot, error)
	Stats(ctx context.Context, days, limit int) (domain.IncidentStats, error)
	Trends(ctx context.Context, days, limit int) (domain.IncidentTrends, error)
	Nearby(ctx context.Context, pos domain.LatLng, radiusKm float64, limit int) ([]domain.NearbyIncident, error)
	Health(ctx context.Context) error
}

// Handler contains all HTTP handlers
type Handler struct {
	routes    service.RouteSelector
	incidents IncidentAPI
	geocoder  service.ReverseGeocoder
	version   string
}

// NewHandler creates a new handler
func NewHandler(routes service.RouteSelector, incidents IncidentAPI, geocoder service.ReverseGeocoder, version string) *Handler {
	return &Handler{
		routes:    routes,
		incidents: incidents,
		geocoder:  geocoder,
		version:   version,
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	status, store := "ok", "ok"
	if err := h.incidents.Health(c.UserContext()); err != nil {
		status, store = "degraded", err.Error()
	}

	return c.JSON(fiber.Map{
		"status":  status,
		"service": "saferoute",
		"version": h.version,
		"store":   store,
	})
}

// GetSafeRoute selects the safest route between two points
func (h *Handler) GetSafeRoute(c *fiber.Ctx) error {
	start, err := queryLatLng(c, "start_lat", "start_lng")
	if err != nil {
		return err
	}
	end, err := queryLatLng(c, "end_lat", "end_lng")
	if err != nil {
		return err
	}

	req := domain.SafeRouteRequest{
		Start:       start,
		End:         end,
		Mode:        domain.TravelMode(strings.ToLower(c.Query("mode"))),
		SafetyLevel: domain.SafetyLevel(c.QueryInt("safety", 0)),
	}

	best, err := h.routes.SelectSafestRoute(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    best.ToResponse(),
	})
}

// GetIncidents returns recent incidents, newest first
func (h *Handler) GetIncidents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", service.DefaultIncidentLimit)

	records, err := h.incidents.Recent(c.UserContext(), limit)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    records,
		"count":   len(records),
	})
}

// ReportIncident stores a user-reported incident
func (h *Handler) ReportIncident(c *fiber.Ctx) error {
	var report domain.IncidentReport
	if err := c.BodyParser(&report); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	rec, err := h.incidents.Report(c.UserContext(), report)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    rec,
	})
}

// GetHotspots returns incident hotspots over the last days
func (h *Handler) GetHotspots(c *fiber.Ctx) error {
	days := c.QueryInt("days", service.DefaultHotspotDays)
	if days < 1 {
		return fmt.Errorf("%w: days must be positive", domain.ErrInvalidInput)
	}

	hotspots, err := h.incidents.Hotspots(c.UserContext(), days)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    hotspots,
		"count":   len(hotspots),
	})
}

// GetIncidentStats returns incident counts per type over the last days
func (h *Handler) GetIncidentStats(c *fiber.Ctx) error {
	days := c.QueryInt("days", service.DefaultHotspotDays)
	if days < 1 {
		return fmt.Errorf("%w: days must be positive", domain.ErrInvalidInput)
	}

	stats, err := h.incidents.Stats(c.UserContext(), days, c.QueryInt("limit", service.DefaultStatsLimit))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}

// GetIncidentTrends returns the most frequent incident types and locations
func (h *Handler) GetIncidentTrends(c *fiber.Ctx) error {
	days := c.QueryInt("days", service.DefaultHotspotDays)
	if days < 1 {
		return fmt.Errorf("%w: days must be positive", domain.ErrInvalidInput)
	}

	trends, err := h.incidents.Trends(c.UserContext(), days, c.QueryInt("limit", service.DefaultTrendsLimit))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    trends,
	})
}

// GetNearbyIncidents returns incidents within radius km of lat/lng, closest first
func (h *Handler) GetNearbyIncidents(c *fiber.Ctx) error {
	pos, err := queryLatLng(c, "lat", "lng")
	if err != nil {
		return err
	}
	radius := service.DefaultNearbyRadiusKm
	if c.Query("radius") != "" {
		if radius, err = queryFloat(c, "radius"); err != nil {
			return err
		}
		if radius <= 0 {
			return fmt.Errorf("%w: radius must be positive", domain.ErrInvalidInput)
		}
	}

	nearby, err := h.incidents.Nearby(c.UserContext(), pos, radius, c.QueryInt("limit", service.DefaultNearbyLimit))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    nearby,
		"count":   len(nearby),
	})
}

// ReverseGeocode resolves lat/lon to an address
func (h *Handler) ReverseGeocode(c *fiber.Ctx) error {
	pos, err := queryLatLng(c, "lat", "lon")
	if err != nil {
		return err
	}

	addr, err := h.geocoder.Reverse(c.UserContext(), pos.Lat, pos.Lng)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    addr,
	})
}

func queryLatLng(c *fiber.Ctx, latKey, lngKey string) (domain.LatLng, error) {
	lat, err := queryFloat(c, latKey)
	if err != nil {
		return domain.LatLng{}, err
	}
	lng, err := queryFloat(c, lngKey)
	if err != nil {
		return domain.LatLng{}, err
	}
	return domain.LatLng{Lat: lat, Lng: lng}, nil
}

func queryFloat(c *fiber.Ctx, key string) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", domain.ErrInvalidInput, key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a number", domain.ErrInvalidInput, key)
	}
	return v, nil
}
