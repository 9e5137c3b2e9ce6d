// Package emails maintains the outbound email log: compose, list, delete.
// The server owns actual delivery; is_sent and sent_at are reconciled by
// re-fetching after a compose.
package emails

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
var ErrNotFound = errors.New("email not found")

// Email is one outbound email record. SentAt is nil until the server has
// actually delivered it.
type Email struct {
	ID        int64      `json:"id"`
	Recipient string     `json:"recipient"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	IsSent    bool       `json:"is_sent"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at"`
}

// Pending reports whether the record is still waiting for its server id.
func (e Email) Pending() bool { return e.ID < 0 }

// ComposeInput carries a new outbound email.
type ComposeInput struct {
	Recipient string `json:"recipient" validate:"required,email"`
	Subject   string `json:"subject" validate:"required"`
	Body      string `json:"body" validate:"required"`
}

// Store owns the email log.
type Store struct {
	client  *api.Client
	caches  *cache.Cache
	confirm prompt.Confirmer

	mu      sync.Mutex
	emails  []Email
	loading bool
	err     error
}

// New creates a store hydrated from the persisted cache.
func New(client *api.Client, caches *cache.Cache, confirm prompt.Confirmer) *Store {
	s := &Store{client: client, caches: caches, confirm: confirm, loading: true}
	var cached []Email
	if caches.Get(cache.EmailsKey, &cached) {
		s.emails = cached
		s.loading = false
	}
	return s
}

// Emails returns a copy of the log in server order.
func (s *Store) Emails() []Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.emails)
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

// Fetch reconciles the log with the server. A valid cache entry
// short-circuits the network unless force is set.
func (s *Store) Fetch(ctx context.Context, force bool) error {
	if !force && s.caches.IsValid(cache.EmailsKey, cache.DefaultTTL) {
		var cached []Email
		if s.caches.Get(cache.EmailsKey, &cached) {
			s.mu.Lock()
			s.emails = cached
			s.loading = false
			s.err = nil
			s.mu.Unlock()
			return nil
		}
	}

	s.mu.Lock()
	s.loading = len(s.emails) == 0
	s.err = nil
	s.mu.Unlock()

	items, err := api.List[Email](ctx, s.client, "/emails/", nil)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.err = err
		s.mu.Unlock()
		return fmt.Errorf("fetch emails: %w", err)
	}

	s.mu.Lock()
	s.emails = items
	s.loading = false
	s.err = nil
	s.mu.Unlock()

	if err := s.caches.Set(cache.EmailsKey, items); err != nil {
		obs.Logger().WithError(err).Warn("cache emails list")
	}
	return nil
}

// Compose queues an outbound email: optimistic insert, then a forced
// re-fetch so delivery state (is_sent, sent_at) comes from the server.
func (s *Store) Compose(ctx context.Context, input ComposeInput) (Email, error) {
	if err := forms.Validate(input); err != nil {
		return Email{}, err
	}

	placeholder := ids.Placeholder()
	optimistic := Email{
		ID:        placeholder,
		Recipient: input.Recipient,
		Subject:   input.Subject,
		Body:      input.Body,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.emails = append([]Email{optimistic}, s.emails...)
	s.mu.Unlock()
	s.caches.Invalidate(cache.EmailsKey)

	var created Email
	err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/emails/",
		Body:   input,
	}, &created)
	if err != nil {
		s.mu.Lock()
		s.emails = slices.DeleteFunc(s.emails, func(e Email) bool { return e.ID == placeholder })
		s.err = err
		s.mu.Unlock()
		return Email{}, fmt.Errorf("compose email: %w", err)
	}

	s.mu.Lock()
	for i := range s.emails {
		if s.emails[i].ID == placeholder {
			s.emails[i] = created
			break
		}
	}
	s.mu.Unlock()

	_ = audit.LogEvent(ctx, "email.compose", map[string]any{"id": created.ID, "recipient": created.Recipient})

	if err := s.Fetch(ctx, true); err != nil {
		obs.Logger().WithError(err).Warn("reconcile after compose")
	}
	return created, nil
}

// Delete asks the confirmer first; declined means no network traffic.
// Confirmed deletes remove the record optimistically and restore it at its
// original position on failure.
func (s *Store) Delete(ctx context.Context, id int64) error {
	confirmed, err := s.confirm.Confirm(ctx, fmt.Sprintf("Delete email %d?", id))
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
		return fmt.Errorf("delete email %d: %w", id, ErrNotFound)
	}
	snapshot := s.emails[idx]
	position := idx
	s.emails = slices.Delete(s.emails, idx, idx+1)
	s.mu.Unlock()
	s.caches.Invalidate(cache.EmailsKey)

	reqErr := s.client.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/emails/%d/", id),
	}, nil)

	s.mu.Lock()
	if reqErr != nil {
		if position > len(s.emails) {
			position = len(s.emails)
		}
		s.emails = slices.Insert(s.emails, position, snapshot)
		s.err = reqErr
		s.mu.Unlock()
		return fmt.Errorf("delete email %d: %w", id, reqErr)
	}
	s.mu.Unlock()

	_ = audit.LogEvent(ctx, "email.delete", map[string]any{"id": id, "recipient": snapshot.Recipient})
	return nil
}

func (s *Store) indexLocked(id int64) int {
	for i := range s.emails {
		if s.emails[i].ID == id {
			return i
		}
	}
	return -1
}
