package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/smartcity/saferoute/internal/domain"
	"github.com/smartcity/saferoute/internal/resilience"
	"github.com/smartcity/saferoute/internal/telemetry"
)

const maxProviderBody = 8 << 20

// OSRMProvider fetches alternative geometries from an OSRM routing server
type OSRMProvider struct {
	baseURL    string
	retries    int
	retryDelay time.Duration
	httpClient *http.Client
}

// NewOSRMProvider creates a provider for baseURL. retries is the number of
// extra attempts per radius request.
func NewOSRMProvider(baseURL string, timeout time.Duration, retries int) *OSRMProvider {
	return &OSRMProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		retries:    retries,
		retryDelay: 200 * time.Millisecond,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// osrmResponse is the subset of the OSRM route service response we read
type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// FetchCandidates issues one request per radius concurrently and pools the
// results in radius order. Failed radii are logged and skipped.
func (p *OSRMProvider) FetchCandidates(ctx context.Context, start, end domain.LatLng, mode domain.TravelMode, radiiMeters []int, alternatives int) ([]domain.RouteCandidate, error) {
	ctx, span := telemetry.StartSpan(ctx, "provider.fetch",
		attribute.String("mode", string(mode)),
		attribute.Int("radii", len(radiiMeters)),
	)
	defer span.End()

	slots := make([][]domain.RouteCandidate, len(radiiMeters))
	errs := make([]error, len(radiiMeters))

	var wg sync.WaitGroup
	for i, radius := range radiiMeters {
		wg.Add(1)
		go func(i, radius int) {
			defer wg.Done()
			routes, err := resilience.Retry(ctx, p.retries+1, p.retryDelay, func() ([]domain.RouteCandidate, error) {
				return p.fetchRadius(ctx, start, end, mode, radius, alternatives)
			})
			if err != nil {
				slog.Warn("routing request failed", "radius_m", radius, "error", err)
				telemetry.Metrics().ProviderFailures.Add(ctx, 1)
				errs[i] = err
				return
			}
			slots[i] = routes
		}(i, radius)
	}
	wg.Wait()

	var pool []domain.RouteCandidate
	for _, routes := range slots {
		pool = append(pool, routes...)
	}
	if len(pool) == 0 {
		if err := errors.Join(errs...); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrNoRouteFound, err)
		}
		return nil, domain.ErrNoRouteFound
	}
	span.SetAttributes(attribute.Int("candidates", len(pool)))
	return pool, nil
}

func (p *OSRMProvider) routeURL(start, end domain.LatLng, mode domain.TravelMode, radius, alternatives int) string {
	r := strconv.Itoa(radius)
	return fmt.Sprintf("%s/route/v1/%s/%s,%s;%s,%s?overview=full&geometries=geojson&radiuses=%s;%s&alternatives=%d",
		p.baseURL, mode,
		formatCoord(start.Lng), formatCoord(start.Lat),
		formatCoord(end.Lng), formatCoord(end.Lat),
		r, r, alternatives,
	)
}

func (p *OSRMProvider) fetchRadius(ctx context.Context, start, end domain.LatLng, mode domain.TravelMode, radius, alternatives int) ([]domain.RouteCandidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.routeURL(start, end, mode, radius, alternatives), nil)
	if err != nil {
		return nil, fmt.Errorf("osrm: failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrProviderRequestFailed, resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProviderBody)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", domain.ErrProviderRequestFailed, err)
	}
	if body.Code != "Ok" {
		return nil, fmt.Errorf("%w: code %q %s", domain.ErrProviderRequestFailed, body.Code, body.Message)
	}

	routes := make([]domain.RouteCandidate, 0, len(body.Routes))
	for _, r := range body.Routes {
		polyline := make([]domain.LatLng, 0, len(r.Geometry.Coordinates))
		for _, c := range r.Geometry.Coordinates {
			if len(c) < 2 {
				continue
			}
			polyline = append(polyline, domain.LatLng{Lat: c[1], Lng: c[0]})
		}
		if len(polyline) < 2 {
			continue
		}
		routes = append(routes, domain.RouteCandidate{
			Polyline:        polyline,
			DistanceMeters:  r.Distance,
			DurationSeconds: r.Duration,
			SearchRadius:    radius,
		})
	}
	return routes, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
