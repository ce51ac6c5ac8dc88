// Package session holds the client's authentication state: the bearer
// token, the signed-in user and the token's expiry. State lives in memory
// and in a durable Store, and is dropped whenever the server answers 401.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Skotchmaster/message_board/internal/client/api"
	"github.com/Skotchmaster/message_board/internal/client/storage"
	"github.com/Skotchmaster/message_board/internal/logging"
)

// DefaultTTL is assumed when the server does not report an expiry.
const DefaultTTL = 60 * time.Minute

var (
	ErrLoginRequired     = errors.New("account created, please log in")
	ErrMalformedResponse = errors.New("malformed auth response")
)

// API is the part of the HTTP client the session depends on.
type API interface {
	Register(ctx context.Context, username, email, password string) (*api.AuthResponse, error)
	Login(ctx context.Context, username, password string) (*api.AuthResponse, error)
	Me(ctx context.Context) (*api.User, error)
	SetToken(token string)
	ClearToken()
	OnUnauthorized(fn func()) (unsubscribe func())
}

type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithFallbackTTL(d time.Duration) Option {
	return func(s *Session) { s.fallbackTTL = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

type Session struct {
	api   API
	store storage.Store

	now         func() time.Time
	fallbackTTL time.Duration
	log         *slog.Logger

	mu      sync.Mutex
	token   string
	user    *api.User
	expiry  time.Time
	nextID  int
	subs    []subscriber
	unsubUA func()
}

type subscriber struct {
	id int
	fn func(authenticated bool)
}

// New builds an unauthenticated session and subscribes it to the client's
// unauthorized events. Call Close to detach it.
func New(a API, store storage.Store, opts ...Option) *Session {
	s := &Session{
		api:         a,
		store:       store,
		now:         time.Now,
		fallbackTTL: DefaultTTL,
		log:         logging.NewWithWriter(io.Discard, "error"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsubUA = a.OnUnauthorized(func() {
		s.log.Warn("unauthorized_response", "action", "logout")
		if err := s.Logout(context.Background()); err != nil {
			s.log.Error("logout_error", "error", err)
		}
	})
	return s
}

func (s *Session) Close() {
	s.mu.Lock()
	unsub := s.unsubUA
	s.unsubUA = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

func (s *Session) CurrentUser() (api.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return api.User{}, false
	}
	return *s.user, true
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) Expiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiry
}

// OnAuthChange registers cb to run after every login, registration, restore
// and logout. Callbacks run synchronously in registration order.
func (s *Session) OnAuthChange(cb func(authenticated bool)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: cb})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	authed := s.token != ""
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(authed)
	}
}

func (s *Session) Login(ctx context.Context, username, password string) error {
	res, err := s.api.Login(ctx, username, password)
	if err != nil {
		s.log.Warn("login_failed", "error", err)
		return err
	}
	return s.establish(ctx, res)
}

// Register creates the account and signs in with the returned token. A
// server that creates the account without a token yields ErrLoginRequired.
func (s *Session) Register(ctx context.Context, username, email, password string) error {
	res, err := s.api.Register(ctx, username, email, password)
	if err != nil {
		s.log.Warn("register_failed", "error", err)
		return err
	}
	if res.Token == "" {
		return ErrLoginRequired
	}
	return s.establish(ctx, res)
}

func (s *Session) establish(ctx context.Context, res *api.AuthResponse) error {
	if res.Token == "" || res.User == nil {
		return ErrMalformedResponse
	}

	expiry := s.now().Add(s.fallbackTTL)
	if res.ExpiresAt != nil && !res.ExpiresAt.IsZero() {
		expiry = *res.ExpiresAt
	}

	if err := s.persist(ctx, res.Token, expiry, res.User); err != nil {
		s.rollback(ctx)
		return err
	}

	user := *res.User
	s.mu.Lock()
	s.token = res.Token
	s.user = &user
	s.expiry = expiry
	s.mu.Unlock()
	s.api.SetToken(res.Token)

	s.log.Info("session_established", "user_id", user.ID, "expires_at", expiry)
	s.notify()
	return nil
}

func (s *Session) persist(ctx context.Context, token string, expiry time.Time, user *api.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.store.Set(ctx, storage.KeyToken, token); err != nil {
		return err
	}
	if err := s.store.Set(ctx, storage.KeyTokenExpiry, expiry.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return s.store.Set(ctx, storage.KeyCurrentUser, string(data))
}

// rollback puts storage back in line with the in-memory session after a
// failed persist, so a restart sees the same state as now.
func (s *Session) rollback(ctx context.Context) {
	s.mu.Lock()
	token, expiry := s.token, s.expiry
	var user *api.User
	if s.user != nil {
		u := *s.user
		user = &u
	}
	s.mu.Unlock()

	var err error
	if token == "" {
		err = s.clearStore(ctx)
	} else {
		err = s.persist(ctx, token, expiry, user)
	}
	if err != nil {
		s.log.Error("session_rollback_failed", "error", err)
	}
}

// Logout clears memory and storage and notifies subscribers. It never
// calls the server.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.expiry = time.Time{}
	s.mu.Unlock()
	s.api.ClearToken()

	err := s.clearStore(ctx)
	s.notify()
	return err
}

func (s *Session) clearStore(ctx context.Context) error {
	var errs []error
	for _, k := range []string{storage.KeyToken, storage.KeyTokenExpiry, storage.KeyCurrentUser} {
		if err := s.store.Delete(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RestoreSession loads a persisted session. An absent or past expiry wipes
// storage without touching the network. Otherwise the token is confirmed
// with one Me call; a 401 there logs out.
func (s *Session) RestoreSession(ctx context.Context) error {
	token, user, expiry, ok, err := s.load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return s.clearStore(ctx)
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.expiry = expiry
	s.mu.Unlock()
	s.api.SetToken(token)
	s.notify()

	if _, err := s.api.Me(ctx); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			// the unauthorized subscription normally logged out already
			if s.IsAuthenticated() {
				return s.Logout(ctx)
			}
			return nil
		}
		s.log.Warn("restore_verify_failed", "error", err)
		return fmt.Errorf("verify session: %w", err)
	}
	return nil
}

func (s *Session) load(ctx context.Context) (token string, user *api.User, expiry time.Time, ok bool, err error) {
	token, hasToken, err := s.store.Get(ctx, storage.KeyToken)
	if err != nil {
		return "", nil, time.Time{}, false, err
	}
	rawExp, hasExp, err := s.store.Get(ctx, storage.KeyTokenExpiry)
	if err != nil {
		return "", nil, time.Time{}, false, err
	}
	rawUser, hasUser, err := s.store.Get(ctx, storage.KeyCurrentUser)
	if err != nil {
		return "", nil, time.Time{}, false, err
	}
	if !hasToken || token == "" || !hasExp || !hasUser {
		return "", nil, time.Time{}, false, nil
	}

	expiry, err = time.Parse(time.RFC3339, rawExp)
	if err != nil || !expiry.After(s.now()) {
		return "", nil, time.Time{}, false, nil
	}

	var u api.User
	if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
		s.log.Warn("restore_corrupt_user", "error", err)
		return "", nil, time.Time{}, false, nil
	}
	return token, &u, expiry, true, nil
}
