package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smartcity/saferoute/internal/domain"
)

// DefaultCacheRefreshTimeout bounds an on-demand refresh made for a request
const DefaultCacheRefreshTimeout = 10 * time.Second

// IncidentCache keeps the routing lookback window of incidents in memory.
// It is refreshed on demand when older than ttl and by the serve cron.
// A failed refresh keeps serving the previous snapshot.
type IncidentCache struct {
	source domain.IncidentSource
	ttl    time.Duration
	now    func() time.Time

	refreshTimeout time.Duration

	refreshMu sync.Mutex

	mu          sync.RWMutex
	records     []domain.IncidentRecord
	windowStart time.Time
	fetchedAt   time.Time
}

// NewIncidentCache wraps source. A non-positive ttl disables caching.
func NewIncidentCache(source domain.IncidentSource, ttl time.Duration) *IncidentCache {
	return &IncidentCache{source: source, ttl: ttl, now: time.Now, refreshTimeout: DefaultCacheRefreshTimeout}
}

// SetRefreshTimeout bounds on-demand refreshes. Non-positive values are ignored.
func (c *IncidentCache) SetRefreshTimeout(d time.Duration) {
	if d > 0 {
		c.refreshTimeout = d
	}
}

// Refresh reloads the lookback window from the source
func (c *IncidentCache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *IncidentCache) refreshLocked(ctx context.Context) error {
	now := c.now()
	// the window reaches one ttl further back so a snapshot up to ttl old
	// still covers a request for the full lookback
	windowStart := now.Add(-domain.IncidentLookback - c.ttl)
	records, err := c.source.FetchIncidents(ctx, windowStart)
	if err != nil {
		return fmt.Errorf("cache: failed to refresh incidents: %w", err)
	}

	c.mu.Lock()
	c.records = records
	c.windowStart = windowStart
	c.fetchedAt = now
	c.mu.Unlock()

	slog.Debug("incident cache refreshed", "records", len(records))
	return nil
}

// Invalidate marks the snapshot stale so the next read reloads it
func (c *IncidentCache) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

// FetchIncidents serves records observed at or after since. Requests reaching
// further back than the cached window go straight to the source.
func (c *IncidentCache) FetchIncidents(ctx context.Context, since time.Time) ([]domain.IncidentRecord, error) {
	if c.ttl <= 0 {
		return c.source.FetchIncidents(ctx, since)
	}

	if !c.fresh() {
		c.refreshMu.Lock()
		if !c.fresh() {
			refreshCtx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
			err := c.refreshLocked(refreshCtx)
			cancel()
			if err != nil {
				if !c.loaded() {
					c.refreshMu.Unlock()
					return nil, err
				}
				slog.Warn("serving stale incidents", "error", err)
			}
		}
		c.refreshMu.Unlock()
	}

	c.mu.RLock()
	records, windowStart := c.records, c.windowStart
	c.mu.RUnlock()
	if since.Before(windowStart) {
		return c.source.FetchIncidents(ctx, since)
	}

	out := make([]domain.IncidentRecord, 0, len(records))
	for _, r := range records {
		if !r.ObservedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *IncidentCache) fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl
}

func (c *IncidentCache) loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records != nil || !c.windowStart.IsZero()
}
