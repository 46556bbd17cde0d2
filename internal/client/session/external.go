package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/common"
)

// LoginCallback receives the outcome of an external login exactly once.
type LoginCallback func(*models.User, error)

type pendingLogin struct {
	redirectURI string
	deadline    time.Time
	cb          LoginCallback
}

func newState() string { return uuid.NewString() }

// BeginExternalLogin registers a pending login and returns the URL of the
// hosted login page. The page eventually redirects to redirectURI with the
// returned state and an authorization code.
func (s *Session) BeginExternalLogin(redirectURI string, cb LoginCallback) (loginURL, state string, err error) {
	if s.authURL == "" {
		return "", "", errors.New("external login needs an auth base url")
	}
	if _, err := url.Parse(redirectURI); err != nil || redirectURI == "" {
		return "", "", fmt.Errorf("invalid redirect uri %q", redirectURI)
	}
	if cb == nil {
		cb = func(*models.User, error) {}
	}

	s.expirePending()

	state = s.newID()
	s.mu.Lock()
	s.pending[state] = &pendingLogin{redirectURI: redirectURI, deadline: s.now().Add(s.timeout), cb: cb}
	s.mu.Unlock()

	v := url.Values{}
	v.Set("client_id", s.appKey)
	v.Set("redirect_uri", redirectURI)
	v.Set("response_type", "code")
	v.Set("state", state)
	return strings.TrimRight(s.authURL, "/") + "/oauth/auth?" + v.Encode(), state, nil
}

// CompleteExternalLogin finishes the login the redirect belongs to. It
// exchanges the code for a token, activates the user and invokes the
// callback registered by BeginExternalLogin. A redirect whose state is
// unknown or expired fails with ErrUnknownLoginState and invokes nothing.
func (s *Session) CompleteExternalLogin(ctx context.Context, redirectURL string) (*models.User, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect url: %w", err)
	}
	params := u.Query()

	s.expirePending()

	state := params.Get("state")
	s.mu.Lock()
	p, ok := s.pending[state]
	delete(s.pending, state)
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLoginState, state)
	}

	user, err := s.completeExternal(ctx, p, params)
	p.cb(user, err)
	return user, err
}

func (s *Session) completeExternal(ctx context.Context, p *pendingLogin, params url.Values) (*models.User, error) {
	if e := params.Get("error"); e != "" {
		return nil, fmt.Errorf("%w: %s %s", ErrLoginDenied, e, params.Get("error_description"))
	}
	code := params.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: redirect carries no code", ErrLoginDenied)
	}
	token, err := s.exchange(ctx, p.redirectURI, code)
	if err != nil {
		return nil, err
	}
	user := userFromToken(token)
	if err := s.persist(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "external login completed", "user", user.ID)
	return user, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (s *Session) exchange(ctx context.Context, redirectURI, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", s.appKey)
	form.Set("redirect_uri", redirectURI)
	form.Set("code", code)

	endpoint := strings.TrimRight(s.authURL, "/") + "/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("token exchange: malformed response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || tr.AccessToken == "" {
		return "", fmt.Errorf("%w: %s %s", ErrLoginDenied, tr.Error, tr.ErrorDescription)
	}
	return tr.AccessToken, nil
}

// userFromToken takes the user id and name from the sub and username
// claims when the token is a JWT.
func userFromToken(token string) *models.User {
	u := &models.User{AuthToken: token}
	claims, err := parseUnverified(token)
	if err != nil {
		return u
	}
	u.ID, _ = claims.GetSubject()
	if name, ok := claims[common.FieldUsername].(string); ok {
		u.Username = name
	}
	return u
}

// expirePending drops timed-out logins and tells their callbacks.
func (s *Session) expirePending() {
	now := s.now()
	var expired []LoginCallback
	s.mu.Lock()
	for state, p := range s.pending {
		if !now.Before(p.deadline) {
			expired = append(expired, p.cb)
			delete(s.pending, state)
		}
	}
	s.mu.Unlock()
	for _, cb := range expired {
		cb(nil, ErrUnknownLoginState)
	}
}

// PendingLogins is the number of external logins awaiting a redirect.
func (s *Session) PendingLogins() int {
	s.expirePending()
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
