package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lucsky/cuid"

	"github.com/smartcity/saferoute/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS incidents (
		id          TEXT PRIMARY KEY,
		latitude    DOUBLE PRECISION,
		longitude   DOUBLE PRECISION,
		severity    DOUBLE PRECISION NOT NULL DEFAULT 1,
		type        TEXT NOT NULL DEFAULT 'other',
		description TEXT NOT NULL DEFAULT '',
		observed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS incidents_observed_at_idx ON incidents (observed_at DESC);
`

// PostgresRepository implements domain.IncidentRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the incidents table when missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return nil
}

// FetchIncidents returns incidents observed at or after since, oldest first
func (r *PostgresRepository) FetchIncidents(ctx context.Context, since time.Time) ([]domain.IncidentRecord, error) {
	query := `
		SELECT id, latitude, longitude, severity, type, description, observed_at
		FROM incidents
		WHERE observed_at >= $1
		ORDER BY observed_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query incidents: %w", err)
	}
	return collectIncidents(rows)
}

// RecentIncidents returns up to limit incidents, newest first
func (r *PostgresRepository) RecentIncidents(ctx context.Context, limit int) ([]domain.IncidentRecord, error) {
	query := `
		SELECT id, latitude, longitude, severity, type, description, observed_at
		FROM incidents
		ORDER BY observed_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query recent incidents: %w", err)
	}
	return collectIncidents(rows)
}

// SaveIncident persists an incident under a new cuid
func (r *PostgresRepository) SaveIncident(ctx context.Context, rec domain.IncidentRecord) (domain.IncidentRecord, error) {
	query := `
		INSERT INTO incidents (id, latitude, longitude, severity, type, description, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if rec.ID == "" {
		rec.ID = cuid.New()
	}
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, query,
		rec.ID, nullableCoord(rec.Latitude), nullableCoord(rec.Longitude),
		rec.Severity, rec.Type, rec.Description, rec.ObservedAt,
	)
	if err != nil {
		return domain.IncidentRecord{}, fmt.Errorf("postgres: failed to save incident: %w", err)
	}
	return rec, nil
}

// SaveIncidents bulk-loads records with COPY. Records without an ID get a cuid.
func (r *PostgresRepository) SaveIncidents(ctx context.Context, recs []domain.IncidentRecord) (int64, error) {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		if rec.ID == "" {
			rec.ID = cuid.New()
		}
		rows[i] = []any{
			rec.ID, nullableCoord(rec.Latitude), nullableCoord(rec.Longitude),
			rec.Severity, rec.Type, rec.Description, rec.ObservedAt,
		}
	}

	n, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"incidents"},
		[]string{"id", "latitude", "longitude", "severity", "type", "description", "observed_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return n, fmt.Errorf("postgres: failed to copy incidents: %w", err)
	}
	return n, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

func collectIncidents(rows pgx.Rows) ([]domain.IncidentRecord, error) {
	defer rows.Close()

	var results []domain.IncidentRecord
	for rows.Next() {
		var (
			rec      domain.IncidentRecord
			lat, lng *float64
			severity *float64
		)
		err := rows.Scan(&rec.ID, &lat, &lng, &severity, &rec.Type, &rec.Description, &rec.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan incident row: %w", err)
		}
		rec.Latitude = coordOrNaN(lat)
		rec.Longitude = coordOrNaN(lng)
		rec.Severity = 1
		if severity != nil {
			rec.Severity = *severity
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read incident rows: %w", err)
	}
	return results, nil
}

// coordOrNaN maps a NULL column to NaN so the record is filtered later
func coordOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// nullableCoord stores NaN coordinates as NULL
func nullableCoord(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
