// Package cache provides the TTL cache the entity stores read through. Each
// cached payload is a JSON blob stored under its entity key with a companion
// "<key>_time" entry holding the write time in epoch milliseconds. The two
// entries are created and removed together: there is never a timestamp
// without a payload or a payload without a timestamp.
package cache

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"teranga.app/internal/kvstore"
	"teranga.app/internal/obs"
)

// Entity cache keys. The companion timestamp key is derived, never stored
// independently.
const (
	HotelsKey    = "hotels_cache"
	DashboardKey = "dashboard_cache"
	TicketsKey   = "tickets_cache"
	MessagesKey  = "messages_cache"
	EmailsKey    = "emails_cache"

	timeSuffix = "_time"
)

// Freshness windows per entity. Configuration constants, not computed.
const (
	HotelsTTL  = 2 * time.Minute
	DefaultTTL = 5 * time.Minute
)

// EntityKeys lists every entity cache key. Session transitions (login,
// signup, logout) invalidate all of them, including filtered variants.
var EntityKeys = []string{HotelsKey, DashboardKey, TicketsKey, MessagesKey, EmailsKey}

// Cache wraps a key/value store with freshness bookkeeping.
type Cache struct {
	kv  kvstore.Store
	now func() time.Time
}

// New creates a cache over kv.
func New(kv kvstore.Store) *Cache {
	return &Cache{kv: kv, now: time.Now}
}

// QueryKey derives the cache key for a filtered fetch. Validity is keyed by
// the exact query the entry was populated from, so a filtered view can never
// be satisfied by stale unfiltered data.
func QueryKey(base, query string) string {
	if query == "" {
		return base
	}
	return base + "?" + query
}

// Get unmarshals the cached payload for key into v. A missing entry or a
// payload that no longer parses is reported as a miss; corrupt entries never
// crash a fetch.
func (c *Cache) Get(key string, v any) bool {
	raw, ok := c.kv.Get(key)
	if !ok {
		obs.CacheEvent(key, "miss")
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		obs.CacheEvent(key, "corrupt")
		return false
	}
	obs.CacheEvent(key, "hit")
	return true
}

// Set stores v under key together with the current timestamp. If either
// write fails the pair is removed so the invariant holds.
func (c *Cache) Set(key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.kv.Set(key, string(payload)); err != nil {
		return err
	}
	millis := strconv.FormatInt(c.now().UnixMilli(), 10)
	if err := c.kv.Set(key+timeSuffix, millis); err != nil {
		c.kv.Remove(key)
		return err
	}
	obs.CacheEvent(key, "write")
	return nil
}

// IsValid reports whether key holds an entry younger than maxAge.
func (c *Cache) IsValid(key string, maxAge time.Duration) bool {
	raw, ok := c.kv.Get(key + timeSuffix)
	if !ok {
		return false
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	return c.now().UnixMilli()-millis < maxAge.Milliseconds()
}

// Invalidate removes the payload and its timestamp.
func (c *Cache) Invalidate(key string) {
	c.kv.Remove(key)
	c.kv.Remove(key + timeSuffix)
	obs.CacheEvent(key, "invalidate")
}

// InvalidatePrefix removes every entry whose key starts with base. Entity
// mutations call this so filtered variants expire together with the
// unfiltered list.
func (c *Cache) InvalidatePrefix(base string) {
	for _, k := range c.kv.Keys() {
		if strings.HasPrefix(k, base) && !strings.HasSuffix(k, timeSuffix) {
			c.Invalidate(k)
		}
	}
}

// InvalidateAll removes every entity cache entry, filtered variants
// included.
func (c *Cache) InvalidateAll() {
	for _, base := range EntityKeys {
		c.InvalidatePrefix(base)
	}
}

// Info describes a cache entry for diagnostics.
type Info struct {
	Key      string
	Present  bool
	Size     int
	StoredAt time.Time
}

// Stat returns diagnostics for key.
func (c *Cache) Stat(key string) Info {
	info := Info{Key: key}
	raw, ok := c.kv.Get(key)
	if !ok {
		return info
	}
	info.Present = true
	info.Size = len(raw)
	if ts, ok := c.kv.Get(key + timeSuffix); ok {
		if millis, err := strconv.ParseInt(ts, 10, 64); err == nil {
			info.StoredAt = time.UnixMilli(millis)
		}
	}
	return info
}
