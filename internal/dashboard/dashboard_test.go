package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"teranga.app/internal/api"
	"teranga.app/internal/cache"
	"teranga.app/internal/kvstore"
)

type staticTokens struct{}

func (staticTokens) AccessToken() string     { return "test-token" }
func (staticTokens) RefreshToken() string    { return "" }
func (staticTokens) StoreAccessToken(string) {}
func (staticTokens) ClearTokens()            {}

const statsBody = `{
	"totalHotels": 12,
	"activeHotels": 10,
	"totalRooms": 480,
	"availableRooms": 150,
	"occupancyRate": 68.75,
	"averageRating": 4.2,
	"recentActivity": [
		{"id": 1, "type": "booking", "message": "New booking at Radisson", "timestamp": "2025-06-01T10:00:00Z"}
	],
	"popularHotels": [
		{"id": 3, "name": "Pullman", "city": "Dakar", "bookings": 42, "rating": 4.6}
	]
}`

func newTestStore(t *testing.T, hits *atomic.Int32) (*Store, *cache.Cache) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hotels/dashboard/stats/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if hits != nil {
			hits.Add(1)
		}
		fmt.Fprint(w, statsBody)
	}))
	t.Cleanup(srv.Close)
	kv := kvstore.NewMemory()
	caches := cache.New(kv)
	client := api.New(srv.URL, staticTokens{}, api.WithRateLimit(1000, 1000))
	return New(client, caches), caches
}

func TestFetchDecodesCamelCaseStats(t *testing.T) {
	s, _ := newTestStore(t, nil)
	if err := s.Fetch(context.Background(), true); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	stats, ok := s.Stats()
	if !ok {
		t.Fatal("stats not loaded")
	}
	if stats.TotalHotels != 12 || stats.OccupancyRate != 68.75 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(stats.RecentActivity) != 1 || stats.RecentActivity[0].Type != "booking" {
		t.Fatalf("activity not decoded: %+v", stats.RecentActivity)
	}
	if len(stats.PopularHotels) != 1 || stats.PopularHotels[0].Bookings != 42 {
		t.Fatalf("popular hotels not decoded: %+v", stats.PopularHotels)
	}
	if s.Loading() {
		t.Fatal("loading not cleared after fetch")
	}
}

func TestFetchSkipsNetworkWhenCacheValid(t *testing.T) {
	var hits atomic.Int32
	s, _ := newTestStore(t, &hits)

	if err := s.Fetch(context.Background(), true); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if err := s.Fetch(context.Background(), false); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("valid cache must skip the network, got %d requests", hits.Load())
	}
	if err := s.Fetch(context.Background(), true); err != nil {
		t.Fatalf("forced fetch: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("forced fetch must hit the network, got %d requests", hits.Load())
	}
}

func TestConstructorHydratesFromCache(t *testing.T) {
	kv := kvstore.NewMemory()
	caches := cache.New(kv)
	seeded := Stats{TotalHotels: 7, AverageRating: 3.9}
	if err := caches.Set(cache.DashboardKey, seeded); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	client := api.New("http://unused.invalid", staticTokens{})
	s := New(client, caches)
	stats, ok := s.Stats()
	if !ok || stats.TotalHotels != 7 {
		t.Fatalf("hydration mismatch: %+v ok=%v", stats, ok)
	}
	if s.Loading() {
		t.Fatal("loading must be false after cache hydration")
	}
}

func TestFetchErrorKeepsSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"detail":"stats unavailable"}`)
	}))
	t.Cleanup(srv.Close)
	kv := kvstore.NewMemory()
	caches := cache.New(kv)
	if err := caches.Set(cache.DashboardKey, Stats{TotalHotels: 7}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	client := api.New(srv.URL, staticTokens{}, api.WithRateLimit(1000, 1000))
	s := New(client, caches)

	if err := s.Fetch(context.Background(), true); err == nil {
		t.Fatal("expected fetch error")
	}
	if s.Err() == nil {
		t.Fatal("fetch failure must be recorded")
	}
	stats, ok := s.Stats()
	if !ok || stats.TotalHotels != 7 {
		t.Fatalf("failed fetch must not drop the snapshot: %+v", stats)
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	var hits atomic.Int32
	s, _ := newTestStore(t, &hits)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Watch(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for hits.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("watch never fetched")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}
