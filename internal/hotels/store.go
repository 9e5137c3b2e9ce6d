package hotels

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"teranga.app/internal/api"
	"teranga.app/internal/audit"
	"teranga.app/internal/cache"
	"teranga.app/internal/forms"
	"teranga.app/internal/ids"
	"teranga.app/internal/obs"
	"teranga.app/internal/prompt"
)

// ErrNotFound indicates the id is not in the local collection.
var ErrNotFound = errors.New("hotel not found")

// Store owns the in-memory hotel collection. Mutations apply optimistically
// before their request is dispatched and roll back per record on failure,
// so concurrent mutations on different ids cannot clobber each other.
type Store struct {
	client  *api.Client
	caches  *cache.Cache
	confirm prompt.Confirmer

	mu      sync.Mutex
	hotels  []Hotel
	loading bool
	err     error
	filters Filters
	syncing map[int64]struct{}
}

// New creates a store and hydrates it synchronously from the persisted
// cache so the first render has data even before any fetch.
func New(client *api.Client, caches *cache.Cache, confirm prompt.Confirmer) *Store {
	s := &Store{
		client:  client,
		caches:  caches,
		confirm: confirm,
		loading: true,
		syncing: make(map[int64]struct{}),
	}
	var cached []Hotel
	if caches.Get(cache.HotelsKey, &cached) {
		s.hotels = cached
		s.loading = false
	}
	return s
}

// Hotels returns a copy of the collection in server order.
func (s *Store) Hotels() []Hotel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.hotels)
}

// Loading reports whether an initial fetch is still pending.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last fetch or mutation error.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Filters returns the active filter set.
func (s *Store) Filters() Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// SyncingIDs lists ids with a server round trip in flight. Advisory only:
// the console greys those rows out, nothing is locked.
func (s *Store) SyncingIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.syncing))
	for id := range s.syncing {
		out = append(out, id)
	}
	return out
}

// SetFilters replaces the filter set and forces a re-fetch with it.
func (s *Store) SetFilters(ctx context.Context, f Filters) error {
	s.mu.Lock()
	s.filters = f
	s.mu.Unlock()
	return s.Fetch(ctx, true)
}

// cacheKey derives the cache key for the active filters. Filtered fetches
// get their own key, so a filtered view is never satisfied by stale
// unfiltered data.
func (s *Store) cacheKey(f Filters) string {
	return cache.QueryKey(cache.HotelsKey, f.values().Encode())
}

// Fetch reconciles the collection with the server. A valid cache entry for
// the exact active query short-circuits the network unless force is set.
// Fetch failures are recorded on the store rather than rolled into any
// optimistic state.
func (s *Store) Fetch(ctx context.Context, force bool) error {
	s.mu.Lock()
	filters := s.filters
	s.mu.Unlock()
	key := s.cacheKey(filters)

	if !force && s.caches.IsValid(key, cache.HotelsTTL) {
		var cached []Hotel
		if s.caches.Get(key, &cached) {
			s.mu.Lock()
			s.hotels = cached
			s.loading = false
			s.err = nil
			s.mu.Unlock()
			return nil
		}
	}

	s.mu.Lock()
	s.loading = len(s.hotels) == 0
	s.err = nil
	s.mu.Unlock()

	items, err := api.List[Hotel](ctx, s.client, "/hotels/", filters.values())
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.err = err
		s.mu.Unlock()
		return fmt.Errorf("fetch hotels: %w", err)
	}

	s.mu.Lock()
	s.hotels = items
	s.loading = false
	s.err = nil
	s.mu.Unlock()

	// Cache without image payloads to bound entry size; cached list views
	// show no images until a live fetch happens.
	stripped := slices.Clone(items)
	for i := range stripped {
		stripped[i].Image = ""
	}
	if err := s.caches.Set(key, stripped); err != nil {
		obs.Logger().WithError(err).Warn("cache hotels list")
	}
	return nil
}

// Create inserts an optimistic record, then issues the create request. On
// success the placeholder is replaced by the server record and a forced
// re-fetch reconciles server-derived fields; on failure the placeholder is
// removed and the error propagates.
func (s *Store) Create(ctx context.Context, input Input) (Hotel, error) {
	if err := forms.Validate(input); err != nil {
		return Hotel{}, err
	}

	placeholder := ids.Placeholder()
	optimistic := input.record(placeholder, time.Now().UTC())

	s.mu.Lock()
	s.hotels = append([]Hotel{optimistic}, s.hotels...)
	s.mu.Unlock()
	s.caches.InvalidatePrefix(cache.HotelsKey)

	var created Hotel
	if err := s.client.Do(ctx, input.request(), &created); err != nil {
		s.mu.Lock()
		s.hotels = slices.DeleteFunc(s.hotels, func(h Hotel) bool { return h.ID == placeholder })
		s.err = err
		s.mu.Unlock()
		return Hotel{}, fmt.Errorf("create hotel: %w", err)
	}

	s.mu.Lock()
	for i := range s.hotels {
		if s.hotels[i].ID == placeholder {
			s.hotels[i] = created
			break
		}
	}
	s.mu.Unlock()

	_ = audit.LogEvent(ctx, "hotel.create", map[string]any{"id": created.ID, "name": created.Name})

	if err := s.Fetch(ctx, true); err != nil {
		obs.Logger().WithError(err).Warn("reconcile after create")
	}
	return created, nil
}

// Update applies the patch optimistically (image excluded: its final form
// is server-side), then sends it. Rollback restores only the mutated
// record from its own snapshot.
func (s *Store) Update(ctx context.Context, id int64, patch Patch) (Hotel, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return Hotel{}, fmt.Errorf("update hotel %d: %w", id, ErrNotFound)
	}
	snapshot := s.hotels[idx]
	s.syncing[id] = struct{}{}
	patch.applyTo(&s.hotels[idx])
	s.hotels[idx].UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
	s.caches.InvalidatePrefix(cache.HotelsKey)

	var updated Hotel
	err := s.client.Do(ctx, patch.request(id), &updated)

	s.mu.Lock()
	delete(s.syncing, id)
	if err != nil {
		if i := s.indexLocked(id); i >= 0 {
			s.hotels[i] = snapshot
		}
		s.err = err
		s.mu.Unlock()
		return Hotel{}, fmt.Errorf("update hotel %d: %w", id, err)
	}
	if i := s.indexLocked(id); i >= 0 {
		s.hotels[i] = updated
	}
	s.mu.Unlock()

	_ = audit.LogEvent(ctx, "hotel.update", map[string]any{"id": id})
	return updated, nil
}

// Delete asks the confirmer first; a declined prompt is a no-op with no
// network traffic. Confirmed deletes remove the record optimistically and
// restore it at its original position on failure.
func (s *Store) Delete(ctx context.Context, id int64) error {
	confirmed, err := s.confirm.Confirm(ctx, fmt.Sprintf("Delete hotel %d? This cannot be undone.", id))
	if err != nil {
		return err
	}
	if !confirmed {
		return nil
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("delete hotel %d: %w", id, ErrNotFound)
	}
	snapshot := s.hotels[idx]
	position := idx
	s.syncing[id] = struct{}{}
	s.hotels = slices.Delete(s.hotels, idx, idx+1)
	s.mu.Unlock()
	s.caches.InvalidatePrefix(cache.HotelsKey)

	reqErr := s.client.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/hotels/%d/", id),
	}, nil)

	s.mu.Lock()
	delete(s.syncing, id)
	if reqErr != nil {
		if position > len(s.hotels) {
			position = len(s.hotels)
		}
		s.hotels = slices.Insert(s.hotels, position, snapshot)
		s.err = reqErr
		s.mu.Unlock()
		return fmt.Errorf("delete hotel %d: %w", id, reqErr)
	}
	s.mu.Unlock()

	_ = audit.LogEvent(ctx, "hotel.delete", map[string]any{"id": id, "name": snapshot.Name})
	return nil
}

func (s *Store) indexLocked(id int64) int {
	for i := range s.hotels {
		if s.hotels[i].ID == id {
			return i
		}
	}
	return -1
}
