package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartcity/saferoute/internal/domain"
	"github.com/smartcity/saferoute/internal/repository/memory"
	"github.com/smartcity/saferoute/internal/service"
)

type stubRoutes struct {
	best domain.BestRoute
	err  error
	last domain.SafeRouteRequest
}

func (s *stubRoutes) SelectSafestRoute(_ context.Context, req domain.SafeRouteRequest) (domain.BestRoute, error) {
	s.last = req
	return s.best, s.err
}

type stubGeocoder struct{}

func (stubGeocoder) Reverse(_ context.Context, lat, lon float64) (domain.Address, error) {
	if lat == 0 && lon == 0 {
		return domain.Address{}, fmt.Errorf("%w: no results", domain.ErrGeocodingFailed)
	}
	return domain.Address{FormattedAddress: "Hyderabad", Latitude: lat, Longitude: lon, Source: "stub"}, nil
}

type brokenStore struct{ *memory.Repository }

func (brokenStore) Health(context.Context) error { return errors.New("db down") }

func do(t *testing.T, h *Handler, method, target string, body io.Reader) (int, map[string]any) {
	t.Helper()
	app := NewApp(h, false)
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp.StatusCode, out
}

func newHandler(routes *stubRoutes, repo domain.IncidentRepository) *Handler {
	return NewHandler(routes, service.NewIncidentService(repo, nil), stubGeocoder{}, "test")
}

func TestGetSafeRoute(t *testing.T) {
	routes := &stubRoutes{best: domain.BestRoute{
		Route: domain.RouteCandidate{
			Polyline:         []domain.LatLng{{Lat: 17.385, Lng: 78.4867}, {Lat: 17.4065, Lng: 78.4772}},
			DistanceMeters:   3500,
			DurationSeconds:  540,
			SegmentPenalties: []float64{0},
		},
		SafetyLevel:         2,
		CandidatesEvaluated: 3,
	}}
	h := newHandler(routes, memory.NewRepository())

	code, body := do(t, h, http.MethodGet, "/api/v1/safe-route?start_lat=17.385&start_lng=78.4867&end_lat=17.4065&end_lng=78.4772&mode=Walking&safety=3", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d body = %v", code, body)
	}
	data := body["data"].(map[string]any)
	if data["distance_meters"].(float64) != 3500 || data["candidates_evaluated"].(float64) != 3 {
		t.Fatalf("unexpected data: %v", data)
	}
	geom := data["geometry"].(map[string]any)
	first := geom["coordinates"].([]any)[0].([]any)
	if first[0].(float64) != 78.4867 {
		t.Fatalf("geometry not in lng,lat order: %v", first)
	}
	if routes.last.Mode != domain.ModeWalking || routes.last.SafetyLevel != 3 {
		t.Fatalf("request not forwarded: %+v", routes.last)
	}
}

func TestGetSafeRouteErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
		code   string
	}{
		{"missing param", "/api/v1/safe-route?start_lat=1&start_lng=2&end_lat=3", nil, http.StatusBadRequest, "invalid_input"},
		{"not a number", "/api/v1/safe-route?start_lat=x&start_lng=2&end_lat=3&end_lng=4", nil, http.StatusBadRequest, "invalid_input"},
		{"no route", "/api/v1/safe-route?start_lat=1&start_lng=2&end_lat=3&end_lng=4", domain.ErrNoRouteFound, http.StatusNotFound, "no_route_found"},
		{"invalid from service", "/api/v1/safe-route?start_lat=1&start_lng=2&end_lat=3&end_lng=4", fmt.Errorf("%w: mode", domain.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{"unexpected", "/api/v1/safe-route?start_lat=1&start_lng=2&end_lat=3&end_lng=4", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&stubRoutes{err: tt.err}, memory.NewRepository())
			code, body := do(t, h, http.MethodGet, tt.target, nil)
			if code != tt.status || body["code"] != tt.code || body["error"] != true {
				t.Fatalf("status=%d body=%v", code, body)
			}
		})
	}
}

func TestReportAndListIncidents(t *testing.T) {
	repo := memory.NewRepository()
	h := newHandler(&stubRoutes{}, repo)

	code, body := do(t, h, http.MethodPost, "/api/v1/incidents",
		strings.NewReader(`{"latitude":17.385,"longitude":78.4867,"severity":3,"type":"theft"}`))
	if code != http.StatusCreated {
		t.Fatalf("status = %d body = %v", code, body)
	}
	if id := body["data"].(map[string]any)["id"].(string); id == "" {
		t.Fatal("missing id")
	}

	code, body = do(t, h, http.MethodGet, "/api/v1/incidents?limit=5", nil)
	if code != http.StatusOK || body["count"].(float64) != 1 {
		t.Fatalf("status = %d body = %v", code, body)
	}
}

func TestReportIncidentValidation(t *testing.T) {
	h := newHandler(&stubRoutes{}, memory.NewRepository())

	code, body := do(t, h, http.MethodPost, "/api/v1/incidents", strings.NewReader(`{"latitude":17,"longitude":78,"severity":9}`))
	if code != http.StatusBadRequest || body["code"] != "invalid_input" {
		t.Fatalf("status = %d body = %v", code, body)
	}

	code, _ = do(t, h, http.MethodPost, "/api/v1/incidents", strings.NewReader(`{not json`))
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d", code)
	}
}

func TestGetHotspots(t *testing.T) {
	now := time.Now().UTC()
	repo := memory.NewRepository(
		domain.IncidentRecord{Latitude: 17.385, Longitude: 78.4867, Severity: 2, ObservedAt: now},
		domain.IncidentRecord{Latitude: 17.385, Longitude: 78.4867, Severity: 4, ObservedAt: now},
	)
	h := newHandler(&stubRoutes{}, repo)

	code, body := do(t, h, http.MethodGet, "/api/v1/hotspots", nil)
	if code != http.StatusOK || body["count"].(float64) != 1 {
		t.Fatalf("status = %d body = %v", code, body)
	}

	code, _ = do(t, h, http.MethodGet, "/api/v1/hotspots?days=0", nil)
	if code != http.StatusBadRequest {
		t.Fatalf("days=0 status = %d", code)
	}
}

func TestReverseGeocode(t *testing.T) {
	h := newHandler(&stubRoutes{}, memory.NewRepository())

	code, body := do(t, h, http.MethodGet, "/api/v1/geocode/reverse?lat=17.385&lon=78.4867", nil)
	if code != http.StatusOK || body["data"].(map[string]any)["formatted_address"] != "Hyderabad" {
		t.Fatalf("status = %d body = %v", code, body)
	}

	code, body = do(t, h, http.MethodGet, "/api/v1/geocode/reverse?lat=0&lon=0", nil)
	if code != http.StatusBadGateway || body["code"] != "upstream_failed" {
		t.Fatalf("status = %d body = %v", code, body)
	}
}

func TestHealthCheck(t *testing.T) {
	code, body := do(t, newHandler(&stubRoutes{}, memory.NewRepository()), http.MethodGet, "/health", nil)
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("status = %d body = %v", code, body)
	}

	code, body = do(t, newHandler(&stubRoutes{}, brokenStore{memory.NewRepository()}), http.MethodGet, "/health", nil)
	if code != http.StatusOK || body["status"] != "degraded" {
		t.Fatalf("status = %d body = %v", code, body)
	}
}

func TestSafeRouteResponseHasNoInfinity(t *testing.T) {
	routes := &stubRoutes{best: domain.BestRoute{
		Route: domain.RouteCandidate{
			Polyline:         []domain.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}},
			SegmentPenalties: domain.FiniteSlice([]float64{math.Inf(1)}),
		},
	}}
	code, body := do(t, newHandler(routes, memory.NewRepository()), http.MethodGet,
		"/api/v1/safe-route?start_lat=0&start_lng=0&end_lat=0&end_lng=1", nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d body = %v", code, body)
	}
	p := body["data"].(map[string]any)["segment_penalties"].([]any)[0].(float64)
	if p != domain.InfinitySubstitute {
		t.Fatalf("penalty = %v", p)
	}
}

func TestIncidentAnalytics(t *testing.T) {
	now := time.Now().UTC()
	repo := memory.NewRepository(
		domain.IncidentRecord{Latitude: 17.385, Longitude: 78.4867, Severity: 2, Type: "theft", ObservedAt: now.Add(-time.Hour)},
		domain.IncidentRecord{Latitude: 17.386, Longitude: 78.4867, Severity: 3, Type: "theft", ObservedAt: now.Add(-2 * time.Hour)},
		domain.IncidentRecord{Latitude: 17.500, Longitude: 78.6000, Severity: 4, Type: "assault", ObservedAt: now.Add(-3 * time.Hour)},
	)
	h := newHandler(&stubRoutes{}, repo)

	tests := []struct {
		name   string
		target string
		check  func(t *testing.T, body map[string]any)
	}{
		{"stats", "/api/v1/incidents/stats?days=7", func(t *testing.T, body map[string]any) {
			data := body["data"].(map[string]any)
			byType := data["by_type"].(map[string]any)
			if data["total_incidents"].(float64) != 3 || byType["theft"].(float64) != 2 || byType["fraud"].(float64) != 0 {
				t.Fatalf("unexpected stats: %v", data)
			}
		}},
		{"trends", "/api/v1/incidents/trends", func(t *testing.T, body map[string]any) {
			top := body["data"].(map[string]any)["top_types"].([]any)
			if len(top) != 2 || top[0].(map[string]any)["type"] != "theft" {
				t.Fatalf("unexpected top types: %v", top)
			}
		}},
		{"nearby", "/api/v1/incidents/nearby?lat=17.385&lng=78.4867&radius=1", func(t *testing.T, body map[string]any) {
			data := body["data"].([]any)
			if body["count"].(float64) != 2 || data[0].(map[string]any)["distance_km"].(float64) != 0 {
				t.Fatalf("unexpected nearby: %v", body)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, h, http.MethodGet, tt.target, nil)
			if code != http.StatusOK || body["success"] != true {
				t.Fatalf("status = %d body = %v", code, body)
			}
			tt.check(t, body)
		})
	}
}

func TestIncidentAnalyticsValidation(t *testing.T) {
	h := newHandler(&stubRoutes{}, memory.NewRepository())

	for _, target := range []string{
		"/api/v1/incidents/stats?days=0",
		"/api/v1/incidents/trends?days=1000",
		"/api/v1/incidents/nearby?lat=17.385",
		"/api/v1/incidents/nearby?lat=17.385&lng=78.4867&radius=-2",
		"/api/v1/incidents/nearby?lat=95&lng=78.4867",
	} {
		code, body := do(t, h, http.MethodGet, target, nil)
		if code != http.StatusBadRequest || body["code"] != "invalid_input" {
			t.Fatalf("%s: status = %d body = %v", target, code, body)
		}
	}
}
