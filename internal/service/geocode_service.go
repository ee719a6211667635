package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"github.com/smartcity/saferoute/internal/domain"
)

const nominatimUserAgent = "saferoute/1.0"

// GeocodeService resolves coordinates to addresses. Google Maps is used when an
// API key is configured, otherwise the Nominatim reverse endpoint.
type GeocodeService struct {
	mapsClient   *maps.Client
	nominatimURL string
	httpClient   *http.Client
}

// NewGeocodeService creates a geocoder. Extra maps options are passed to the
// Google Maps client.
func NewGeocodeService(apiKey, nominatimURL string, timeout time.Duration, opts ...maps.ClientOption) (*GeocodeService, error) {
	s := &GeocodeService{
		nominatimURL: strings.TrimRight(nominatimURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	if apiKey != "" {
		opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey), maps.WithHTTPClient(s.httpClient)}, opts...)
		client, err := maps.NewClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("geocode: failed to create maps client: %w", err)
		}
		s.mapsClient = client
	}
	return s, nil
}

// Reverse returns the address closest to lat/lon
func (s *GeocodeService) Reverse(ctx context.Context, lat, lon float64) (domain.Address, error) {
	if !domain.ValidCoordinate(lat, lon) {
		return domain.Address{}, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalidInput)
	}
	if s.mapsClient != nil {
		return s.reverseGoogle(ctx, lat, lon)
	}
	return s.reverseNominatim(ctx, lat, lon)
}

func (s *GeocodeService) reverseGoogle(ctx context.Context, lat, lon float64) (domain.Address, error) {
	results, err := s.mapsClient.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lon},
	})
	if err != nil {
		return domain.Address{}, fmt.Errorf("%w: %w", domain.ErrGeocodingFailed, err)
	}
	if len(results) == 0 {
		return domain.Address{}, fmt.Errorf("%w: no results", domain.ErrGeocodingFailed)
	}

	best := results[0]
	components := make(map[string]string, len(best.AddressComponents))
	for _, c := range best.AddressComponents {
		if len(c.Types) > 0 {
			components[c.Types[0]] = c.LongName
		}
	}
	return domain.Address{
		FormattedAddress: best.FormattedAddress,
		Latitude:         best.Geometry.Location.Lat,
		Longitude:        best.Geometry.Location.Lng,
		Components:       components,
		Source:           "google",
	}, nil
}

type nominatimResponse struct {
	DisplayName string            `json:"display_name"`
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

func (s *GeocodeService) reverseNominatim(ctx context.Context, lat, lon float64) (domain.Address, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.nominatimURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return domain.Address{}, fmt.Errorf("geocode: failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", nominatimUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.Address{}, fmt.Errorf("%w: %w", domain.ErrGeocodingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Address{}, fmt.Errorf("%w: status %d", domain.ErrGeocodingFailed, resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return domain.Address{}, fmt.Errorf("%w: failed to decode response: %w", domain.ErrGeocodingFailed, err)
	}
	if body.Error != "" {
		return domain.Address{}, fmt.Errorf("%w: %s", domain.ErrGeocodingFailed, body.Error)
	}

	addr := domain.Address{
		FormattedAddress: body.DisplayName,
		Latitude:         lat,
		Longitude:        lon,
		Components:       body.Address,
		Source:           "nominatim",
	}
	if v, err := strconv.ParseFloat(body.Lat, 64); err == nil {
		addr.Latitude = v
	}
	if v, err := strconv.ParseFloat(body.Lon, 64); err == nil {
		addr.Longitude = v
	}
	return addr, nil
}
