package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
	cleared bool
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access
}

func (f *fakeTokens) RefreshToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refresh
}

func (f *fakeTokens) StoreAccessToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = token
}

func (f *fakeTokens) ClearTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access, f.refresh = "", ""
	f.cleared = true
}

func (f *fakeTokens) wasCleared() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared
}

func TestBearerAttached(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := New(srv.URL, &fakeTokens{access: "tok-123"})
	if err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/hotels/"}, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if got != "Bearer tok-123" {
		t.Fatalf("authorization header = %q", got)
	}
}

func TestNoBearerWithoutToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := New(srv.URL, &fakeTokens{})
	if err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/auth/login/", NoAuth: true}, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if got != "" {
		t.Fatalf("unexpected authorization header %q on no-auth request", got)
	}
}

func TestMultipartContentTypeIsInferred(t *testing.T) {
	var contentType, name string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		name = r.FormValue("name")
		fmt.Fprint(w, `{"id":1}`)
	}))
	defer srv.Close()

	c := New(srv.URL, &fakeTokens{access: "t"})
	req := Request{
		Method: http.MethodPost,
		Path:   "/hotels/",
		Multipart: &Multipart{
			Fields: map[string]string{"name": "Test Hotel"},
			Files:  []File{{Field: "image", Name: "front.jpg", Content: []byte("jpegdata")}},
		},
	}
	if err := c.Do(context.Background(), req, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if !strings.HasPrefix(contentType, "multipart/form-data; boundary=") {
		t.Fatalf("content type not inferred from encoder: %q", contentType)
	}
	if name != "Test Hotel" {
		t.Fatalf("form field lost: %q", name)
	}
}

func TestErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"detail":"invalid hotel","name":["This field is required."]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, &fakeTokens{access: "t"})
	err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/hotels/"}, nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Detail != "invalid hotel" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if _, ok := apiErr.Fields["name"]; !ok {
		t.Fatalf("field detail not preserved: %+v", apiErr.Fields)
	}
}

func TestErrorFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `<html>oops</html>`)
	}))
	defer srv.Close()

	c := New(srv.URL, &fakeTokens{access: "t"})
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/hotels/"}, nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Detail != "request failed" {
		t.Fatalf("expected generic fallback, got %q", apiErr.Detail)
	}
}

func TestListShapeTolerance(t *testing.T) {
	type hotel struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	bodies := []string{
		`[{"id":1,"name":"A"},{"id":2,"name":"B"}]`,
		`{"results":[{"id":1,"name":"A"},{"id":2,"name":"B"}]}`,
		`{"data":[{"id":1,"name":"A"},{"id":2,"name":"B"}]}`,
	}
	for _, body := range bodies {
		body := body
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		}))
		c := New(srv.URL, &fakeTokens{access: "t"})
		items, err := List[hotel](context.Background(), c, "/hotels/", nil)
		srv.Close()
		if err != nil {
			t.Fatalf("list for %q: %v", body, err)
		}
		if len(items) != 2 || items[0].Name != "A" || items[1].ID != 2 {
			t.Fatalf("shape %q yielded %+v", body, items)
		}
	}
}

// newRefreshServer serves /hotels/ behind a token that only the refresh
// endpoint hands out.
func newRefreshServer(t *testing.T, refreshCalls *atomic.Int32, gate func()) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Refresh string `json:"refresh"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Refresh != "good-refresh" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"detail":"refresh token invalid"}`)
			return
		}
		refreshCalls.Add(1)
		fmt.Fprint(w, `{"access":"fresh"}`)
	})
	mux.HandleFunc("/hotels/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer fresh" {
			fmt.Fprint(w, `[{"id":7,"name":"Radisson"}]`)
			return
		}
		if gate != nil {
			gate()
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"detail":"token expired"}`)
	})
	return httptest.NewServer(mux)
}

func TestRefreshReplaySucceeds(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := newRefreshServer(t, &refreshCalls, nil)
	defer srv.Close()

	tokens := &fakeTokens{access: "stale", refresh: "good-refresh"}
	c := New(srv.URL, tokens)

	type hotel struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	items, err := List[hotel](context.Background(), c, "/hotels/", nil)
	if err != nil {
		t.Fatalf("caller must receive the list, got error: %v", err)
	}
	if len(items) != 1 || items[0].ID != 7 {
		t.Fatalf("unexpected items: %+v", items)
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Fatalf("refresh endpoint called %d times, want 1", got)
	}
	if tokens.AccessToken() != "fresh" {
		t.Fatalf("new access token not stored: %q", tokens.AccessToken())
	}
}

func TestSingleInFlightRefresh(t *testing.T) {
	const n = 8

	// Hold every stale request until all n have arrived, so each one read
	// the stale token before any refresh could complete.
	var (
		arrivals atomic.Int32
		release  = make(chan struct{})
		once     sync.Once
	)
	gate := func() {
		if arrivals.Add(1) == n {
			once.Do(func() { close(release) })
		}
		<-release
	}

	var refreshCalls atomic.Int32
	srv := newRefreshServer(t, &refreshCalls, gate)
	defer srv.Close()

	tokens := &fakeTokens{access: "stale", refresh: "good-refresh"}
	c := New(srv.URL, tokens, WithRateLimit(1000, 1000))

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var raw json.RawMessage
			errs[i] = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/hotels/"}, &raw)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Fatalf("refresh endpoint called %d times under %d concurrent 401s, want exactly 1", got, n)
	}
}

func TestRefreshFailureTerminatesSession(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := newRefreshServer(t, &refreshCalls, nil)
	defer srv.Close()

	var expired atomic.Bool
	tokens := &fakeTokens{access: "stale", refresh: "bad-refresh"}
	c := New(srv.URL, tokens, WithSessionExpiredHook(func() { expired.Store(true) }))

	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/hotels/"}, nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if !tokens.wasCleared() {
		t.Fatal("tokens must be cleared on refresh failure")
	}
	if !expired.Load() {
		t.Fatal("session-expired hook not invoked")
	}
}

func TestMissingRefreshTokenFailsWithoutRefreshCall(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := newRefreshServer(t, &refreshCalls, nil)
	defer srv.Close()

	var expired atomic.Bool
	tokens := &fakeTokens{access: "stale"}
	c := New(srv.URL, tokens, WithSessionExpiredHook(func() { expired.Store(true) }))

	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/hotels/"}, nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if refreshCalls.Load() != 0 {
		t.Fatal("refresh endpoint must not be called without a refresh token")
	}
	if !expired.Load() {
		t.Fatal("session-expired hook not invoked")
	}
}

func TestNoSecondReplayAfterRefreshed401(t *testing.T) {
	var protectedHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access":"fresh"}`)
	})
	mux.HandleFunc("/hotels/", func(w http.ResponseWriter, r *http.Request) {
		protectedHits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"detail":"still unauthorized"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var expired atomic.Bool
	tokens := &fakeTokens{access: "stale", refresh: "good-refresh"}
	c := New(srv.URL, tokens, WithSessionExpiredHook(func() { expired.Store(true) }))

	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/hotels/"}, nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if got := protectedHits.Load(); got != 2 {
		t.Fatalf("request sent %d times, want exactly 2 (original + one replay)", got)
	}
	if !expired.Load() {
		t.Fatal("session-expired hook not invoked")
	}
	if !tokens.wasCleared() {
		t.Fatal("tokens must be cleared after a replayed 401")
	}
}
