// Package session keeps the logged-in user of a client. The active user is
// persisted in the metadata store, restored on start and pushed into the
// network manager so every request carries its token.
//
// Besides username/password login, Session implements the OAuth
// authorization-code flow of the hosted login page: BeginExternalLogin
// returns the page URL and CompleteExternalLogin finishes the flow once the
// browser is redirected back.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/client/network"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/kinveysync/internal/logging"
)

const DefaultExternalLoginTimeout = 5 * time.Minute

var (
	ErrNotLoggedIn       = errors.New("no active user")
	ErrUnknownLoginState = errors.New("unknown or expired login state")
	ErrLoginDenied       = errors.New("external login denied")
)

type Session struct {
	net     network.Manager
	meta    metadata.Repository
	client  *http.Client
	authURL string
	appKey  string
	timeout time.Duration
	now     func() time.Time
	newID   func() string
	logger  logging.Logger

	mu      sync.Mutex
	user    *models.User
	pending map[string]*pendingLogin
}

type Option func(*Session)

// WithAuthBaseURL sets the host of the hosted login page and token endpoint.
func WithAuthBaseURL(u string) Option {
	return func(s *Session) { s.authURL = u }
}

// WithAppKey sets the OAuth client_id.
func WithAppKey(k string) Option {
	return func(s *Session) { s.appKey = k }
}

func WithExternalLoginTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.client = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(net network.Manager, meta metadata.Repository, opts ...Option) *Session {
	s := &Session{
		net:     net,
		meta:    meta,
		client:  &http.Client{},
		timeout: DefaultExternalLoginTimeout,
		now:     time.Now,
		newID:   newState,
		logger:  logging.Nop{},
		pending: make(map[string]*pendingLogin),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "session")
	return s
}

// Restore loads the persisted user. A user whose token has expired is
// dropped. It reports whether a user is active afterwards.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	var u models.User
	ok, err := s.meta.GetJSON(ctx, metadata.KeyActiveUser, &u)
	if err != nil {
		return false, fmt.Errorf("failed to restore session: %w", err)
	}
	if !ok || u.AuthToken == "" {
		return false, nil
	}
	if exp := TokenExpiry(u.AuthToken); !exp.IsZero() && !s.now().Before(exp) {
		s.logger.Info(ctx, "stored session expired", "user", u.Username)
		return false, s.clear(ctx)
	}
	s.activate(&u)
	return true, nil
}

func (s *Session) activate(u *models.User) {
	s.mu.Lock()
	c := *u
	s.user = &c
	s.mu.Unlock()
	s.net.SetAuthToken(u.AuthToken)
}

func (s *Session) persist(ctx context.Context, u *models.User) error {
	if err := s.meta.SetJSON(ctx, metadata.KeyActiveUser, u); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	s.activate(u)
	return nil
}

func (s *Session) clear(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	s.net.SetAuthToken("")
	if err := s.meta.Delete(ctx, metadata.KeyActiveUser); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (s *Session) Login(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.net.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	if err := s.persist(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "logged in", "user", u.Username)
	return u, nil
}

// Signup creates the user and logs it in.
func (s *Session) Signup(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.net.Signup(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("signup error: %w", err)
	}
	if err := s.persist(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	active := s.user != nil
	s.mu.Unlock()
	if !active {
		return ErrNotLoggedIn
	}
	return s.clear(ctx)
}

// ActiveUser returns a copy of the logged-in user, or nil.
func (s *Session) ActiveUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	c := *s.user
	return &c
}

// ExpiresAt is the expiry of the active token, or the zero time when there
// is none or the token carries no exp claim.
func (s *Session) ExpiresAt() time.Time {
	u := s.ActiveUser()
	if u == nil {
		return time.Time{}
	}
	return TokenExpiry(u.AuthToken)
}

// TokenExpiry reads the exp claim of a JWT without verifying it. Opaque
// tokens yield the zero time.
func TokenExpiry(token string) time.Time {
	claims, err := parseUnverified(token)
	if err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func parseUnverified(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
