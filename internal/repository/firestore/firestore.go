// Package firestore reads and writes incidents in a Cloud Firestore collection.
package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/lucsky/cuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/smartcity/saferoute/internal/domain"
)

// DefaultCollection is the collection incidents are stored in
const DefaultCollection = "crimes"

// NewClient builds a Firestore client from base64-encoded service account JSON
func NewClient(ctx context.Context, encodedCreds string) (*firestore.Client, error) {
	creds, err := base64.StdEncoding.DecodeString(encodedCreds)
	if err != nil {
		return nil, fmt.Errorf("firestore: failed to decode credentials: %w", err)
	}

	opt := option.WithCredentialsJSON(creds)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("firestore: failed to initialize firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore: failed to get client: %w", err)
	}
	return client, nil
}

// Repository implements domain.IncidentRepository on a Firestore collection
type Repository struct {
	client     *firestore.Client
	collection string
}

// NewRepository creates a repository for collection
func NewRepository(client *firestore.Client, collection string) *Repository {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Repository{client: client, collection: collection}
}

// FetchIncidents returns documents with timestamp at or after since.
// Documents that cannot be parsed are skipped.
func (r *Repository) FetchIncidents(ctx context.Context, since time.Time) ([]domain.IncidentRecord, error) {
	iter := r.client.Collection(r.collection).
		Where("timestamp", ">=", since).
		OrderBy("timestamp", firestore.Asc).
		Documents(ctx)
	return r.collect(iter)
}

// RecentIncidents returns up to limit documents, newest first
func (r *Repository) RecentIncidents(ctx context.Context, limit int) ([]domain.IncidentRecord, error) {
	iter := r.client.Collection(r.collection).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	return r.collect(iter)
}

func (r *Repository) collect(iter *firestore.DocumentIterator) ([]domain.IncidentRecord, error) {
	defer iter.Stop()

	var records []domain.IncidentRecord
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore: error iterating incidents: %w", err)
		}
		rec, ok := recordFromDoc(doc.Ref.ID, doc.Data())
		if !ok {
			slog.Debug("skipping unparseable incident document", "id", doc.Ref.ID)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// SaveIncident writes rec under a new cuid document ID
func (r *Repository) SaveIncident(ctx context.Context, rec domain.IncidentRecord) (domain.IncidentRecord, error) {
	if rec.ID == "" {
		rec.ID = cuid.New()
	}
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = time.Now().UTC()
	}

	_, err := r.client.Collection(r.collection).Doc(rec.ID).Set(ctx, map[string]interface{}{
		"latitude":    rec.Latitude,
		"longitude":   rec.Longitude,
		"severity":    rec.Severity,
		"type":        rec.Type,
		"description": rec.Description,
		"timestamp":   rec.ObservedAt,
		"status":      "reported",
	})
	if err != nil {
		return domain.IncidentRecord{}, fmt.Errorf("firestore: failed to save incident: %w", err)
	}
	return rec, nil
}

// Health runs a one-document query against the collection
func (r *Repository) Health(ctx context.Context) error {
	iter := r.client.Collection(r.collection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore: health check failed: %w", err)
	}
	return nil
}

// Close releases the client
func (r *Repository) Close() error {
	return r.client.Close()
}

type geoPoint interface {
	GetLatitude() float64
	GetLongitude() float64
}

// recordFromDoc converts a document. Coordinates come from latitude/longitude
// fields or a GeoPoint "location"; missing ones are NaN. ok is false when the
// document has no usable timestamp.
func recordFromDoc(id string, data map[string]interface{}) (domain.IncidentRecord, bool) {
	rec := domain.IncidentRecord{
		ID:        id,
		Latitude:  math.NaN(),
		Longitude: math.NaN(),
		Severity:  1,
	}

	if v, ok := firstNumber(data, "latitude", "lat"); ok {
		rec.Latitude = v
	}
	if v, ok := firstNumber(data, "longitude", "lng", "lon"); ok {
		rec.Longitude = v
	}
	if gp, ok := data["location"].(geoPoint); ok && math.IsNaN(rec.Latitude) {
		rec.Latitude, rec.Longitude = gp.GetLatitude(), gp.GetLongitude()
	}

	switch s := data["severity"].(type) {
	case string:
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			rec.Severity = v
		} else {
			rec.Severity = domain.SeverityFromLabel(s)
		}
	default:
		if v, ok := toFloat(s); ok {
			rec.Severity = v
		}
	}

	rec.Type, _ = data["type"].(string)
	rec.Description, _ = data["description"].(string)

	switch ts := data["timestamp"].(type) {
	case time.Time:
		rec.ObservedAt = ts
	case string:
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return domain.IncidentRecord{}, false
		}
		rec.ObservedAt = t
	default:
		return domain.IncidentRecord{}, false
	}
	return rec, true
}

func firstNumber(data map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := toFloat(data[k]); ok {
			return v, true
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
