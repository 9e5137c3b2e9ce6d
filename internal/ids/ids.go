package ids

import (
	mathrand "math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)

	placeholderSeq atomic.Int64
)

// New returns a lexicographically sortable identifier suitable for request
// correlation and storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Placeholder returns a synthetic negative identifier for a record that has
// not yet been assigned a server id. Server ids are positive, so a
// placeholder can never collide with one.
func Placeholder() int64 {
	return -placeholderSeq.Add(1)
}
