// Package session owns the token lifecycle: login, signup, password reset,
// logout, and the persisted access/refresh pair the HTTP client reads. Any
// session transition also wipes every entity cache so the next screen
// starts from server-backed state.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"teranga.app/internal/api"
	"teranga.app/internal/audit"
	"teranga.app/internal/cache"
	"teranga.app/internal/forms"
	"teranga.app/internal/kvstore"
	"teranga.app/internal/obs"
)

// Keys for the persisted session state in the profile store.
const (
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
	userKey         = "user"
)

// User is the signed-in account summary the server returns on login.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginInput carries sign-in credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignupInput carries registration fields.
type SignupInput struct {
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=8"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
	FirstName       string `validate:"required"`
	LastName        string `validate:"required"`
}

type authResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    User   `json:"user"`
}

// Manager implements api.TokenSource over the persisted store and drives
// the auth lifecycle endpoints.
type Manager struct {
	kv     kvstore.Store
	caches *cache.Cache
	client *api.Client
}

// NewManager creates a manager over the store and cache. Call SetClient
// before using the network operations.
func NewManager(kv kvstore.Store, caches *cache.Cache) *Manager {
	return &Manager{kv: kv, caches: caches}
}

// SetClient wires the HTTP client. The client and manager reference each
// other (the client reads tokens, the manager issues requests), so wiring
// happens after both are constructed.
func (m *Manager) SetClient(client *api.Client) { m.client = client }

// AccessToken implements api.TokenSource.
func (m *Manager) AccessToken() string {
	v, _ := m.kv.Get(accessTokenKey)
	return v
}

// RefreshToken implements api.TokenSource.
func (m *Manager) RefreshToken() string {
	v, _ := m.kv.Get(refreshTokenKey)
	return v
}

// StoreAccessToken implements api.TokenSource.
func (m *Manager) StoreAccessToken(token string) {
	if err := m.kv.Set(accessTokenKey, token); err != nil {
		obs.Logger().WithError(err).Error("persist access token")
	}
}

// ClearTokens implements api.TokenSource. The user summary goes with the
// tokens: an expired session leaves nothing behind.
func (m *Manager) ClearTokens() {
	m.kv.Remove(accessTokenKey)
	m.kv.Remove(refreshTokenKey)
	m.kv.Remove(userKey)
}

// IsAuthenticated reports whether a non-empty access token is stored. A
// refresh token alone does not count.
func (m *Manager) IsAuthenticated() bool {
	return m.AccessToken() != ""
}

// CurrentUser returns the stored account summary, if any.
func (m *Manager) CurrentUser() (User, bool) {
	raw, ok := m.kv.Get(userKey)
	if !ok {
		return User{}, false
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return User{}, false
	}
	return u, true
}

// TokenExpiry reads the exp claim from the stored access token without
// verifying the signature. The console only introspects; the server
// verifies.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	token := m.AccessToken()
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Login authenticates, persists the session, and wipes every entity cache.
func (m *Manager) Login(ctx context.Context, input LoginInput) (User, error) {
	if err := forms.Validate(input); err != nil {
		return User{}, err
	}
	var resp authResponse
	err := m.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/auth/login/",
		Body:   map[string]string{"email": input.Email, "password": input.Password},
		NoAuth: true,
	}, &resp)
	if err != nil {
		return User{}, fmt.Errorf("login: %w", err)
	}
	if err := m.establish(resp); err != nil {
		return User{}, err
	}
	_ = audit.LogEvent(audit.WithActor(ctx, resp.User.Email), "session.login", nil)
	return resp.User, nil
}

// Signup registers a new account and signs it in.
func (m *Manager) Signup(ctx context.Context, input SignupInput) (User, error) {
	if err := forms.Validate(input); err != nil {
		return User{}, err
	}
	var resp authResponse
	err := m.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/auth/register/",
		Body: map[string]string{
			"email":      input.Email,
			"password":   input.Password,
			"password2":  input.ConfirmPassword,
			"first_name": input.FirstName,
			"last_name":  input.LastName,
		},
		NoAuth: true,
	}, &resp)
	if err != nil {
		return User{}, fmt.Errorf("signup: %w", err)
	}
	if err := m.establish(resp); err != nil {
		return User{}, err
	}
	_ = audit.LogEvent(audit.WithActor(ctx, resp.User.Email), "session.signup", nil)
	return resp.User, nil
}

// establish persists a fresh session and invalidates the entity caches so
// no data from a previous account leaks into this one.
func (m *Manager) establish(resp authResponse) error {
	if err := m.kv.Set(accessTokenKey, resp.Access); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if err := m.kv.Set(refreshTokenKey, resp.Refresh); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	userJSON, err := json.Marshal(resp.User)
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if err := m.kv.Set(userKey, string(userJSON)); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	m.caches.InvalidateAll()
	return nil
}

// ResetPassword asks the server to send a password-reset email.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	input := struct {
		Email string `validate:"required,email"`
	}{Email: email}
	if err := forms.Validate(input); err != nil {
		return err
	}
	err := m.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/auth/forgot-password/",
		Body:   map[string]string{"email": email},
		NoAuth: true,
	}, nil)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// Logout clears the session and every entity cache. Safe to call with no
// session at all.
func (m *Manager) Logout(ctx context.Context) {
	actor := ""
	if u, ok := m.CurrentUser(); ok {
		actor = u.Email
	}
	m.caches.InvalidateAll()
	m.ClearTokens()
	_ = audit.LogEvent(audit.WithActor(ctx, actor), "session.logout", nil)
}

// Expire is the session-expired hook for the HTTP client: the tokens are
// already cleared, so only the caches and the audit trail remain.
func (m *Manager) Expire() {
	m.caches.InvalidateAll()
	obs.Logger().Warn("session expired, sign in again")
	_ = audit.LogEvent(context.Background(), "session.expired", nil)
}
