// Package memory is the in-process incident store used when no database is
// configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lucsky/cuid"

	"github.com/smartcity/saferoute/internal/domain"
)

// Repository implements domain.IncidentRepository in memory
type Repository struct {
	mu      sync.RWMutex
	records []domain.IncidentRecord
}

// NewRepository creates a repository holding records
func NewRepository(records ...domain.IncidentRecord) *Repository {
	return &Repository{records: append([]domain.IncidentRecord(nil), records...)}
}

// FetchIncidents returns records observed at or after since, in insertion order
func (r *Repository) FetchIncidents(ctx context.Context, since time.Time) ([]domain.IncidentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.IncidentRecord, 0, len(r.records))
	for _, rec := range r.records {
		if !rec.ObservedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// RecentIncidents returns up to limit records, newest first
func (r *Repository) RecentIncidents(ctx context.Context, limit int) ([]domain.IncidentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := append([]domain.IncidentRecord(nil), r.records...)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservedAt.After(out[j].ObservedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveIncident stores rec under a new cuid unless it already has an ID
func (r *Repository) SaveIncident(ctx context.Context, rec domain.IncidentRecord) (domain.IncidentRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.IncidentRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = cuid.New()
	}
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = time.Now().UTC()
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	return rec, nil
}

// Len returns the number of stored records
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Health always returns nil in memory mode
func (r *Repository) Health(ctx context.Context) error {
	return nil
}
