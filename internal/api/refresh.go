package api

import (
	"context"
	"sync"
)

type refreshResult struct {
	token string
	err   error
}

// refreshCoordinator serializes token refresh. Several operations can hit a
// 401 at once; exactly one refresh call goes out and every concurrent waiter
// shares its outcome. A caller whose stored token already changed since its
// request was issued gets the new token without triggering another refresh.
type refreshCoordinator struct {
	mu       sync.Mutex
	inflight bool
	waiters  []chan refreshResult
	run      func(ctx context.Context) (string, error)
	current  func() string
}

// token returns an access token expected to supersede staleToken. It either
// joins the in-flight refresh, observes that a refresh already happened, or
// performs the refresh itself.
func (rc *refreshCoordinator) token(ctx context.Context, staleToken string) (string, error) {
	rc.mu.Lock()
	if rc.inflight {
		ch := make(chan refreshResult, 1)
		rc.waiters = append(rc.waiters, ch)
		rc.mu.Unlock()
		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if now := rc.current(); now != "" && now != staleToken {
		// Another caller already refreshed between our request and its 401.
		rc.mu.Unlock()
		return now, nil
	}
	rc.inflight = true
	rc.mu.Unlock()

	token, err := rc.run(ctx)

	rc.mu.Lock()
	rc.inflight = false
	waiters := rc.waiters
	rc.waiters = nil
	rc.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshResult{token: token, err: err}
	}
	return token, err
}
