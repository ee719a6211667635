package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartcity/saferoute/internal/domain"
)

// fakeSource is an in-memory IncidentSource that counts calls
type fakeSource struct {
	mu      sync.Mutex
	records []domain.IncidentRecord
	err     error
	calls   atomic.Int32
}

func (f *fakeSource) FetchIncidents(_ context.Context, since time.Time) ([]domain.IncidentRecord, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.IncidentRecord
	for _, r := range f.records {
		if !r.ObservedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// fakeRepo adds the write side on top of fakeSource
type fakeRepo struct {
	fakeSource
	saved  []domain.IncidentRecord
	health error
}

func (f *fakeRepo) RecentIncidents(_ context.Context, limit int) ([]domain.IncidentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := append([]domain.IncidentRecord(nil), f.records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.After(out[j].ObservedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) SaveIncident(_ context.Context, rec domain.IncidentRecord) (domain.IncidentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.IncidentRecord{}, f.err
	}
	rec.ID = fmt.Sprintf("inc-%d", len(f.saved)+1)
	f.saved = append(f.saved, rec)
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeRepo) Health(context.Context) error { return f.health }

// fakeProvider returns fixed candidates
type fakeProvider struct {
	candidates []domain.RouteCandidate
	err        error
	calls      atomic.Int32
}

func (f *fakeProvider) FetchCandidates(context.Context, domain.LatLng, domain.LatLng, domain.TravelMode, []int, int) ([]domain.RouteCandidate, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.RouteCandidate, len(f.candidates))
	for i, c := range f.candidates {
		c.Polyline = append([]domain.LatLng(nil), c.Polyline...)
		out[i] = c
	}
	return out, nil
}

var errStoreDown = errors.New("connection refused")

type osrmRoute struct {
	distance float64
	duration float64
	coords   [][2]float64 // lng, lat
}

// osrmServer serves fixed routes per radius; radii listed in failing get a 500.
func osrmServer(t *testing.T, routes map[string][]osrmRoute, failing ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasPrefix(r.URL.Path, "/route/v1/") {
			http.NotFound(w, r)
			return
		}
		radius := strings.Split(r.URL.Query().Get("radiuses"), ";")[0]
		for _, f := range failing {
			if f == radius {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		type route struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
			Geometry struct {
				Type        string       `json:"type"`
				Coordinates [][2]float64 `json:"coordinates"`
			} `json:"geometry"`
		}
		body := struct {
			Code   string  `json:"code"`
			Routes []route `json:"routes"`
		}{Code: "Ok"}
		for _, or := range routes[radius] {
			var rt route
			rt.Distance, rt.Duration = or.distance, or.duration
			rt.Geometry.Type = "LineString"
			rt.Geometry.Coordinates = or.coords
			body.Routes = append(body.Routes, rt)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func nan() float64 { return math.NaN() }
