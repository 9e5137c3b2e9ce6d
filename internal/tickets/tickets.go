// Package tickets maintains the support-ticket collection: optimistic
// create and delete, full-record updates, and the shared cache window.
package tickets

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
var ErrNotFound = errors.New("ticket not found")

// Status is the ticket lifecycle state.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// Priority orders the support queue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Ticket is one support request. Server ids are positive; optimistic
// records carry a negative placeholder until the server assigns one.
type Ticket struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Pending reports whether the record is still waiting for its server id.
func (t Ticket) Pending() bool { return t.ID < 0 }

// Input carries the writable ticket fields. Updates are full replacements
// (PUT), so the same input serves create and update.
type Input struct {
	Title       string   `validate:"required"`
	Description string   `validate:"-"`
	Priority    Priority `validate:"required,oneof=low medium high"`
	Status      Status   `validate:"omitempty,oneof=open in_progress closed"`
}

func (in Input) body() map[string]any {
	body := map[string]any{
		"title":       in.Title,
		"description": in.Description,
		"priority":    in.Priority,
	}
	if in.Status != "" {
		body["status"] = in.Status
	}
	return body
}

// Store owns the in-memory ticket collection.
type Store struct {
	client  *api.Client
	caches  *cache.Cache
	confirm prompt.Confirmer

	mu      sync.Mutex
	tickets []Ticket
	loading bool
	err     error
	syncing map[int64]struct{}
}

// New creates a store hydrated from the persisted cache.
func New(client *api.Client, caches *cache.Cache, confirm prompt.Confirmer) *Store {
	s := &Store{
		client:  client,
		caches:  caches,
		confirm: confirm,
		loading: true,
		syncing: make(map[int64]struct{}),
	}
	var cached []Ticket
	if caches.Get(cache.TicketsKey, &cached) {
		s.tickets = cached
		s.loading = false
	}
	return s
}

// Tickets returns a copy of the collection in server order.
func (s *Store) Tickets() []Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tickets)
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

// SyncingIDs lists ids with a server round trip in flight.
func (s *Store) SyncingIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.syncing))
	for id := range s.syncing {
		out = append(out, id)
	}
	return out
}

// Fetch reconciles the collection with the server. A valid cache entry
// short-circuits the network unless force is set.
func (s *Store) Fetch(ctx context.Context, force bool) error {
	if !force && s.caches.IsValid(cache.TicketsKey, cache.DefaultTTL) {
		var cached []Ticket
		if s.caches.Get(cache.TicketsKey, &cached) {
			s.mu.Lock()
			s.tickets = cached
			s.loading = false
			s.err = nil
			s.mu.Unlock()
			return nil
		}
	}

	s.mu.Lock()
	s.loading = len(s.tickets) == 0
	s.err = nil
	s.mu.Unlock()

	items, err := api.List[Ticket](ctx, s.client, "/tickets/", nil)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.err = err
		s.mu.Unlock()
		return fmt.Errorf("fetch tickets: %w", err)
	}

	s.mu.Lock()
	s.tickets = items
	s.loading = false
	s.err = nil
	s.mu.Unlock()

	if err := s.caches.Set(cache.TicketsKey, items); err != nil {
		obs.Logger().WithError(err).Warn("cache tickets list")
	}
	return nil
}

// Create inserts an optimistic open ticket, then issues the request. The
// placeholder is replaced by the server record on success and removed on
// failure.
func (s *Store) Create(ctx context.Context, input Input) (Ticket, error) {
	if err := forms.Validate(input); err != nil {
		return Ticket{}, err
	}

	now := time.Now().UTC()
	placeholder := ids.Placeholder()
	optimistic := Ticket{
		ID:          placeholder,
		Title:       input.Title,
		Description: input.Description,
		Status:      StatusOpen,
		Priority:    input.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.tickets = append([]Ticket{optimistic}, s.tickets...)
	s.mu.Unlock()
	s.caches.Invalidate(cache.TicketsKey)

	var created Ticket
	err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/tickets/",
		Body:   input.body(),
	}, &created)
	if err != nil {
		s.mu.Lock()
		s.tickets = slices.DeleteFunc(s.tickets, func(t Ticket) bool { return t.ID == placeholder })
		s.err = err
		s.mu.Unlock()
		return Ticket{}, fmt.Errorf("create ticket: %w", err)
	}

	s.mu.Lock()
	for i := range s.tickets {
		if s.tickets[i].ID == placeholder {
			s.tickets[i] = created
			break
		}
	}
	s.mu.Unlock()

	_ = audit.LogEvent(ctx, "ticket.create", map[string]any{"id": created.ID, "title": created.Title})
	return created, nil
}

// Update sends a full replacement (PUT) for the ticket, applying it
// optimistically first. Rollback restores only the mutated record.
func (s *Store) Update(ctx context.Context, id int64, input Input) (Ticket, error) {
	if err := forms.Validate(input); err != nil {
		return Ticket{}, err
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return Ticket{}, fmt.Errorf("update ticket %d: %w", id, ErrNotFound)
	}
	snapshot := s.tickets[idx]
	s.syncing[id] = struct{}{}
	s.tickets[idx].Title = input.Title
	s.tickets[idx].Description = input.Description
	s.tickets[idx].Priority = input.Priority
	if input.Status != "" {
		s.tickets[idx].Status = input.Status
	}
	s.tickets[idx].UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
	s.caches.Invalidate(cache.TicketsKey)

	var updated Ticket
	err := s.client.Do(ctx, api.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/tickets/%d/", id),
		Body:   input.body(),
	}, &updated)

	s.mu.Lock()
	delete(s.syncing, id)
	if err != nil {
		if i := s.indexLocked(id); i >= 0 {
			s.tickets[i] = snapshot
		}
		s.err = err
		s.mu.Unlock()
		return Ticket{}, fmt.Errorf("update ticket %d: %w", id, err)
	}
	if i := s.indexLocked(id); i >= 0 {
		s.tickets[i] = updated
	}
	s.mu.Unlock()

	_ = audit.LogEvent(ctx, "ticket.update", map[string]any{"id": id})
	return updated, nil
}

// SetStatus moves the ticket through its lifecycle, keeping the other
// fields as they are locally.
func (s *Store) SetStatus(ctx context.Context, id int64, status Status) (Ticket, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return Ticket{}, fmt.Errorf("update ticket %d: %w", id, ErrNotFound)
	}
	current := s.tickets[idx]
	s.mu.Unlock()

	return s.Update(ctx, id, Input{
		Title:       current.Title,
		Description: current.Description,
		Priority:    current.Priority,
		Status:      status,
	})
}

// Delete asks the confirmer first; declined means no network traffic.
// Confirmed deletes remove the record optimistically and restore it at its
// original position on failure.
func (s *Store) Delete(ctx context.Context, id int64) error {
	confirmed, err := s.confirm.Confirm(ctx, fmt.Sprintf("Delete ticket %d?", id))
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
		return fmt.Errorf("delete ticket %d: %w", id, ErrNotFound)
	}
	snapshot := s.tickets[idx]
	position := idx
	s.syncing[id] = struct{}{}
	s.tickets = slices.Delete(s.tickets, idx, idx+1)
	s.mu.Unlock()
	s.caches.Invalidate(cache.TicketsKey)

	reqErr := s.client.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/tickets/%d/", id),
	}, nil)

	s.mu.Lock()
	delete(s.syncing, id)
	if reqErr != nil {
		if position > len(s.tickets) {
			position = len(s.tickets)
		}
		s.tickets = slices.Insert(s.tickets, position, snapshot)
		s.err = reqErr
		s.mu.Unlock()
		return fmt.Errorf("delete ticket %d: %w", id, reqErr)
	}
	s.mu.Unlock()

	_ = audit.LogEvent(ctx, "ticket.delete", map[string]any{"id": id, "title": snapshot.Title})
	return nil
}

func (s *Store) indexLocked(id int64) int {
	for i := range s.tickets {
		if s.tickets[i].ID == id {
			return i
		}
	}
	return -1
}
