package kvstore

// Store is the durable key/value substrate under the session state and the
// entity caches. Implementations must be safe for concurrent use. A failed
// read is indistinguishable from an absent key on purpose: callers treat
// both as a miss.
type Store interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (string, bool)
	// Set stores the value under key, overwriting any previous value.
	Set(key, value string) error
	// Remove deletes the key. Removing an absent key is a no-op.
	Remove(key string)
	// Keys returns every stored key, in no particular order.
	Keys() []string
	// Close releases underlying resources.
	Close() error
}
