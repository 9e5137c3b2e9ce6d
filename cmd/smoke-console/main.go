// Command smoke-console drives the full client stack against an in-process
// stub of the back office API: login, hotel CRUD with optimistic state, a
// forced token rotation to exercise the refresh-and-replay path, and logout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"teranga.app/internal/api"
	"teranga.app/internal/cache"
	"teranga.app/internal/hotels"
	"teranga.app/internal/kvstore"
	"teranga.app/internal/obs"
	"teranga.app/internal/prompt"
	"teranga.app/internal/session"
)

// stubAPI is a minimal in-memory rendition of the remote back office.
type stubAPI struct {
	mu      sync.Mutex
	access  string
	refresh string
	nextID  int64
	hotels  []hotels.Hotel
}

func (s *stubAPI) authorized(r *http.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.Header.Get("Authorization") == "Bearer "+s.access
}

// rotate invalidates the issued access token, forcing the next request
// through the refresh protocol.
func (s *stubAPI) rotate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = "acc-rotated"
}

func (s *stubAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.access, s.refresh = "acc-1", "ref-1"
		s.mu.Unlock()
		fmt.Fprint(w, `{"access":"acc-1","refresh":"ref-1","user":{"id":1,"email":"admin@teranga.app","first_name":"Awa","last_name":"Diop"}}`)
	})

	mux.HandleFunc("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Refresh string `json:"refresh"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		defer s.mu.Unlock()
		if body.Refresh != s.refresh {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"detail":"invalid refresh token"}`)
			return
		}
		fmt.Fprintf(w, `{"access":%q}`, s.access)
	})

	mux.HandleFunc("/hotels/", func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"detail":"token expired"}`)
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.mu.Lock()
			defer s.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{"results": s.hotels})
		case http.MethodPost:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			s.mu.Lock()
			s.nextID++
			h := hotels.Hotel{
				ID:            s.nextID,
				Name:          body["name"].(string),
				City:          body["city"].(string),
				PricePerNight: body["price_per_night"].(float64),
				IsActive:      true,
				CreatedAt:     time.Now().UTC(),
				UpdatedAt:     time.Now().UTC(),
			}
			s.hotels = append(s.hotels, h)
			s.mu.Unlock()
			_ = json.NewEncoder(w).Encode(h)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	return mux
}

// hotelByID serves PATCH and DELETE on /hotels/{id}/.
func (s *stubAPI) hotelByID(w http.ResponseWriter, r *http.Request, id int64) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"detail":"token expired"}`)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i := range s.hotels {
		if s.hotels[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail":"not found"}`)
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if price, ok := body["price_per_night"].(float64); ok {
			s.hotels[idx].PricePerNight = price
		}
		if name, ok := body["name"].(string); ok {
			s.hotels[idx].Name = name
		}
		s.hotels[idx].UpdatedAt = time.Now().UTC()
		_ = json.NewEncoder(w).Encode(s.hotels[idx])
	case http.MethodDelete:
		s.hotels = append(s.hotels[:idx], s.hotels[idx+1:]...)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func main() {
	obs.Init()

	stub := &stubAPI{}
	base := stub.handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /hotels/{id}/ needs id extraction; everything else goes to the mux.
		trimmed := strings.TrimPrefix(r.URL.Path, "/hotels/")
		if trimmed != r.URL.Path && trimmed != "" && trimmed != "dashboard/stats/" {
			if id, err := strconv.ParseInt(strings.TrimSuffix(trimmed, "/"), 10, 64); err == nil {
				stub.hotelByID(w, r, id)
				return
			}
		}
		base.ServeHTTP(w, r)
	}))
	defer srv.Close()

	kv := kvstore.NewMemory()
	caches := cache.New(kv)
	sess := session.NewManager(kv, caches)
	client := api.New(srv.URL, sess, api.WithSessionExpiredHook(sess.Expire), api.WithRateLimit(1000, 1000))
	sess.SetClient(client)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := sess.Login(ctx, session.LoginInput{Email: "admin@teranga.app", Password: "secret"})
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	if user.Email != "admin@teranga.app" {
		log.Fatalf("unexpected user: %+v", user)
	}

	store := hotels.New(client, caches, prompt.Always)
	if err := store.Fetch(ctx, true); err != nil {
		log.Fatalf("initial fetch: %v", err)
	}
	if n := len(store.Hotels()); n != 0 {
		log.Fatalf("expected empty catalog, got %d", n)
	}

	created, err := store.Create(ctx, hotels.Input{Name: "Radisson Blu", City: "Dakar", PricePerNight: 95000})
	if err != nil {
		log.Fatalf("create: %v", err)
	}
	if created.ID <= 0 {
		log.Fatalf("create returned a non-server id: %d", created.ID)
	}
	items := store.Hotels()
	if len(items) != 1 || items[0].ID != created.ID {
		log.Fatalf("catalog after create: %+v", items)
	}

	// Invalidate the issued access token; the next request must refresh and
	// replay transparently.
	stub.rotate()
	newPrice := 102000.0
	updated, err := store.Update(ctx, created.ID, hotels.Patch{PricePerNight: &newPrice})
	if err != nil {
		log.Fatalf("update across token rotation: %v", err)
	}
	if updated.PricePerNight != 102000 {
		log.Fatalf("update not applied: %+v", updated)
	}
	if got := sess.AccessToken(); got != "acc-rotated" {
		log.Fatalf("refresh did not persist the rotated token: %q", got)
	}

	if err := store.Delete(ctx, created.ID); err != nil {
		log.Fatalf("delete: %v", err)
	}
	if n := len(store.Hotels()); n != 0 {
		log.Fatalf("catalog after delete: %d records", n)
	}

	sess.Logout(ctx)
	if sess.IsAuthenticated() {
		log.Fatal("still authenticated after logout")
	}
	if _, ok := kv.Get(cache.HotelsKey); ok {
		log.Fatal("hotel cache survived logout")
	}

	fmt.Println("✅ console smoke test passed")
}
