package domain

import (
	"math"
	"strings"
	"time"
)

// IncidentRecord is a single recorded incident as returned by an incident store.
// Missing coordinates are carried as NaN.
type IncidentRecord struct {
	ID          string    `json:"id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Severity    float64   `json:"severity"`
	Type        string    `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
	ObservedAt  time.Time `json:"timestamp"`
}

// HasCoordinates reports whether the record carries a usable position.
func (r IncidentRecord) HasCoordinates() bool {
	return ValidCoordinate(r.Latitude, r.Longitude)
}

// IncidentReport is the payload accepted when a user reports a new incident
type IncidentReport struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Severity    float64 `json:"severity"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
}

// Hotspot is one grid cell with repeated incidents
type Hotspot struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Count     int     `json:"count"`
	Score     float64 `json:"score"`
}

// Severity bounds accepted for reported incidents
const (
	MinReportSeverity = 1
	MaxReportSeverity = 5
)

// IncidentLookback is how far back incidents are considered for routing
const IncidentLookback = 90 * 24 * time.Hour

// severityLabels maps the textual severities found in document stores
var severityLabels = map[string]float64{
	"low":      1,
	"medium":   2,
	"high":     3,
	"critical": 4,
}

// SeverityFromLabel converts a textual severity, defaulting to 1.
func SeverityFromLabel(label string) float64 {
	if v, ok := severityLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return v
	}
	return 1
}

// ValidCoordinate checks that lat/lng are finite and within WGS-84 bounds
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// IncidentTypes are the categories incident statistics are reported under.
// Unknown types are counted as "other".
var IncidentTypes = []string{"theft", "burglary", "assault", "vandalism", "fraud", "other"}

// TimeWindow is the period a statistics query covered
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

// IncidentStats counts incidents per type over a window
type IncidentStats struct {
	Total  int            `json:"total_incidents"`
	ByType map[string]int `json:"by_type"`
	Window TimeWindow     `json:"time_range"`
}

// TypeCount is one incident type with its count
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// LocationCount is one rounded position with its incident count
type LocationCount struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Count     int     `json:"count"`
}

// IncidentTrends summarizes the most frequent types and locations over a window
type IncidentTrends struct {
	Total     int             `json:"total_incidents"`
	ByType    map[string]int  `json:"by_type"`
	TopTypes  []TypeCount     `json:"top_types"`
	Locations []LocationCount `json:"hotspots"`
	Window    TimeWindow      `json:"time_range"`
}

// NearbyIncident is an incident with its distance from a query point
type NearbyIncident struct {
	IncidentRecord
	DistanceKm float64 `json:"distance_km"`
}
