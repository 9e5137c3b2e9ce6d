// Package dashboard fetches the aggregate statistics panel: totals, occupancy,
// recent activity, and the most-booked hotels. Read-only, so there is no
// optimistic state to manage, only the cache window.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"teranga.app/internal/api"
	"teranga.app/internal/cache"
	"teranga.app/internal/obs"
)

// Activity is one line of the recent-activity feed.
type Activity struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PopularHotel pairs a hotel with its booking count.
type PopularHotel struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	City     string  `json:"city"`
	Bookings int     `json:"bookings"`
	Rating   float64 `json:"rating"`
}

// Stats is the aggregate payload from the stats endpoint. The server emits
// camelCase here, unlike the snake_case entity resources.
type Stats struct {
	TotalHotels    int            `json:"totalHotels"`
	ActiveHotels   int            `json:"activeHotels"`
	TotalRooms     int            `json:"totalRooms"`
	AvailableRooms int            `json:"availableRooms"`
	OccupancyRate  float64        `json:"occupancyRate"`
	AverageRating  float64        `json:"averageRating"`
	RecentActivity []Activity     `json:"recentActivity"`
	PopularHotels  []PopularHotel `json:"popularHotels"`
}

// Store holds the latest stats snapshot.
type Store struct {
	client *api.Client
	caches *cache.Cache

	mu      sync.Mutex
	stats   Stats
	fetched bool
	loading bool
	err     error
}

// New creates the store and hydrates it from the persisted cache.
func New(client *api.Client, caches *cache.Cache) *Store {
	s := &Store{client: client, caches: caches, loading: true}
	var cached Stats
	if caches.Get(cache.DashboardKey, &cached) {
		s.stats = cached
		s.fetched = true
		s.loading = false
	}
	return s
}

// Stats returns the latest snapshot and whether one has been loaded.
func (s *Store) Stats() (Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats, s.fetched
}

// Loading reports whether the initial fetch is still pending.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last fetch error.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Fetch refreshes the snapshot. A valid cache entry short-circuits the
// network unless force is set.
func (s *Store) Fetch(ctx context.Context, force bool) error {
	if !force && s.caches.IsValid(cache.DashboardKey, cache.DefaultTTL) {
		var cached Stats
		if s.caches.Get(cache.DashboardKey, &cached) {
			s.mu.Lock()
			s.stats = cached
			s.fetched = true
			s.loading = false
			s.err = nil
			s.mu.Unlock()
			return nil
		}
	}

	var stats Stats
	err := s.client.Do(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/hotels/dashboard/stats/",
	}, &stats)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err
		s.mu.Unlock()
		return fmt.Errorf("fetch dashboard stats: %w", err)
	}
	s.stats = stats
	s.fetched = true
	s.err = nil
	s.mu.Unlock()

	if err := s.caches.Set(cache.DashboardKey, stats); err != nil {
		obs.Logger().WithError(err).Warn("cache dashboard stats")
	}
	return nil
}

// Watch re-fetches on the given interval until ctx is cancelled. Fetch
// errors are recorded on the store and logged, never fatal to the loop.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Fetch(ctx, true); err != nil {
				obs.Logger().WithError(err).Warn("dashboard refresh")
			}
		}
	}
}
