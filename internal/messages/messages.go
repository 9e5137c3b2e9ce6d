// Package messages maintains the internal staff messaging inbox. Sending is
// optimistic: the outgoing message appears immediately with the signed-in
// user as sender and the recipient resolved from the user directory.
package messages

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

// Errors surfaced by the store.
var (
	ErrNotFound         = errors.New("message not found")
	ErrUnknownRecipient = errors.New("recipient not in user directory")
	ErrNoSender         = errors.New("no signed-in user to send as")
)

// Party identifies one side of a message.
type Party struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Name returns a display name, falling back to the email address.
func (p Party) Name() string {
	if p.FirstName == "" && p.LastName == "" {
		return p.Email
	}
	return p.FirstName + " " + p.LastName
}

// Message is one inbox record. Server ids are positive; optimistic records
// carry a negative placeholder until the server assigns one.
type Message struct {
	ID        int64     `json:"id"`
	Sender    Party     `json:"sender"`
	Recipient Party     `json:"recipient"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pending reports whether the record is still waiting for its server id.
func (m Message) Pending() bool { return m.ID < 0 }

// SendInput carries a new outgoing message.
type SendInput struct {
	RecipientID int64  `validate:"required"`
	Content     string `validate:"required"`
}

// Store owns the inbox collection and the recipient directory.
type Store struct {
	client  *api.Client
	caches  *cache.Cache
	confirm prompt.Confirmer
	self    func() (Party, bool)

	mu       sync.Mutex
	messages []Message
	users    []Party
	loading  bool
	err      error
}

// New creates a store hydrated from the persisted cache. self reports the
// signed-in user; optimistic sends are stamped with it.
func New(client *api.Client, caches *cache.Cache, confirm prompt.Confirmer, self func() (Party, bool)) *Store {
	s := &Store{
		client:  client,
		caches:  caches,
		confirm: confirm,
		self:    self,
		loading: true,
	}
	var cached []Message
	if caches.Get(cache.MessagesKey, &cached) {
		s.messages = cached
		s.loading = false
	}
	return s
}

// Messages returns a copy of the inbox in server order.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
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

// Fetch reconciles the inbox with the server. A valid cache entry
// short-circuits the network unless force is set.
func (s *Store) Fetch(ctx context.Context, force bool) error {
	if !force && s.caches.IsValid(cache.MessagesKey, cache.DefaultTTL) {
		var cached []Message
		if s.caches.Get(cache.MessagesKey, &cached) {
			s.mu.Lock()
			s.messages = cached
			s.loading = false
			s.err = nil
			s.mu.Unlock()
			return nil
		}
	}

	s.mu.Lock()
	s.loading = len(s.messages) == 0
	s.err = nil
	s.mu.Unlock()

	items, err := api.List[Message](ctx, s.client, "/messages/", nil)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.err = err
		s.mu.Unlock()
		return fmt.Errorf("fetch messages: %w", err)
	}

	s.mu.Lock()
	s.messages = items
	s.loading = false
	s.err = nil
	s.mu.Unlock()

	if err := s.caches.Set(cache.MessagesKey, items); err != nil {
		obs.Logger().WithError(err).Warn("cache messages list")
	}
	return nil
}

// FetchUsers loads the recipient directory.
func (s *Store) FetchUsers(ctx context.Context) ([]Party, error) {
	users, err := api.List[Party](ctx, s.client, "/auth/users/", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	return slices.Clone(users), nil
}

// Users returns the loaded directory.
func (s *Store) Users() []Party {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.users)
}

// Send posts a message. The optimistic record carries the signed-in user as
// sender and the directory entry as recipient; the recipient must already
// be in the loaded directory. Rollback removes the placeholder.
func (s *Store) Send(ctx context.Context, input SendInput) (Message, error) {
	if err := forms.Validate(input); err != nil {
		return Message{}, err
	}
	sender, ok := s.self()
	if !ok {
		return Message{}, ErrNoSender
	}

	s.mu.Lock()
	var recipient Party
	found := false
	for _, u := range s.users {
		if u.ID == input.RecipientID {
			recipient = u
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return Message{}, fmt.Errorf("send to %d: %w", input.RecipientID, ErrUnknownRecipient)
	}

	now := time.Now().UTC()
	placeholder := ids.Placeholder()
	optimistic := Message{
		ID:        placeholder,
		Sender:    sender,
		Recipient: recipient,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.messages = append([]Message{optimistic}, s.messages...)
	s.mu.Unlock()
	s.caches.Invalidate(cache.MessagesKey)

	var sent Message
	err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/messages/",
		Body: map[string]any{
			"recipient_id": input.RecipientID,
			"content":      input.Content,
		},
	}, &sent)
	if err != nil {
		s.mu.Lock()
		s.messages = slices.DeleteFunc(s.messages, func(m Message) bool { return m.ID == placeholder })
		s.err = err
		s.mu.Unlock()
		return Message{}, fmt.Errorf("send message: %w", err)
	}

	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].ID == placeholder {
			s.messages[i] = sent
			break
		}
	}
	s.mu.Unlock()

	_ = audit.LogEvent(ctx, "message.send", map[string]any{"id": sent.ID, "recipient": recipient.Email})
	return sent, nil
}

// MarkRead flags the message as read, optimistically and on the server.
func (s *Store) MarkRead(ctx context.Context, id int64) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("mark read %d: %w", id, ErrNotFound)
	}
	snapshot := s.messages[idx]
	s.messages[idx].IsRead = true
	s.mu.Unlock()
	s.caches.Invalidate(cache.MessagesKey)

	err := s.client.Do(ctx, api.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/messages/%d/", id),
		Body:   map[string]any{"is_read": true},
	}, nil)
	if err != nil {
		s.mu.Lock()
		if i := s.indexLocked(id); i >= 0 {
			s.messages[i] = snapshot
		}
		s.err = err
		s.mu.Unlock()
		return fmt.Errorf("mark read %d: %w", id, err)
	}
	return nil
}

// Delete asks the confirmer first; declined means no network traffic.
// Confirmed deletes remove the record optimistically and restore it at its
// original position on failure.
func (s *Store) Delete(ctx context.Context, id int64) error {
	confirmed, err := s.confirm.Confirm(ctx, fmt.Sprintf("Delete message %d?", id))
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
		return fmt.Errorf("delete message %d: %w", id, ErrNotFound)
	}
	snapshot := s.messages[idx]
	position := idx
	s.messages = slices.Delete(s.messages, idx, idx+1)
	s.mu.Unlock()
	s.caches.Invalidate(cache.MessagesKey)

	reqErr := s.client.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/messages/%d/", id),
	}, nil)

	s.mu.Lock()
	if reqErr != nil {
		if position > len(s.messages) {
			position = len(s.messages)
		}
		s.messages = slices.Insert(s.messages, position, snapshot)
		s.err = reqErr
		s.mu.Unlock()
		return fmt.Errorf("delete message %d: %w", id, reqErr)
	}
	s.mu.Unlock()

	_ = audit.LogEvent(ctx, "message.delete", map[string]any{"id": id})
	return nil
}

func (s *Store) indexLocked(id int64) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}
