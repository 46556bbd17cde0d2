package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/kinveysync/internal/client/localdb"
	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/client/network"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/metadata"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func newMeta(t *testing.T) metadata.Repository {
	t.Helper()
	db, err := localdb.OpenInMemory(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return metadata.NewSQLiteRepository(db)
}

func TestLogin_PersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	meta := newMeta(t)
	net := network.NewMemoryManager()
	_, err := net.Signup(ctx, "ann", "secret")
	require.NoError(t, err)

	s := New(net, meta)
	u, err := s.Login(ctx, "ann", "secret")
	require.NoError(t, err)
	assert.Equal(t, u.AuthToken, net.AuthToken())
	assert.Equal(t, "ann", s.ActiveUser().Username)

	net.SetAuthToken("")
	restored := New(net, meta)
	ok, err := restored.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, u.ID, restored.ActiveUser().ID)
	assert.Equal(t, u.AuthToken, net.AuthToken())

	require.NoError(t, restored.Logout(ctx))
	assert.Nil(t, restored.ActiveUser())
	assert.Empty(t, net.AuthToken())
	assert.ErrorIs(t, restored.Logout(ctx), ErrNotLoggedIn)

	ok, err = New(net, meta).Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogin_WrongPassword(t *testing.T) {
	ctx := context.Background()
	net := network.NewMemoryManager()
	_, err := net.Signup(ctx, "ann", "secret")
	require.NoError(t, err)

	s := New(net, newMeta(t))
	_, err = s.Login(ctx, "ann", "nope")
	assert.ErrorIs(t, err, network.ErrUnauthorized)
	assert.Nil(t, s.ActiveUser())
}

func TestRestore_DropsExpiredToken(t *testing.T) {
	ctx := context.Background()
	meta := newMeta(t)
	token := signed(t, jwt.MapClaims{"sub": "u1", "exp": epoch.Add(time.Hour).Unix()})
	require.NoError(t, meta.SetJSON(ctx, metadata.KeyActiveUser, models.User{ID: "u1", AuthToken: token}))

	c := &clock{now: epoch}
	s := New(network.NewMemoryManager(), meta, WithClock(c.Now))
	ok, err := s.Restore(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, epoch.Add(time.Hour).Equal(s.ExpiresAt()))

	c.Advance(2 * time.Hour)
	later := New(network.NewMemoryManager(), meta, WithClock(c.Now))
	ok, err = later.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	raw, err := meta.Get(ctx, metadata.KeyActiveUser)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestTokenExpiry_OpaqueToken(t *testing.T) {
	assert.True(t, TokenExpiry("not-a-jwt").IsZero())
	assert.True(t, TokenExpiry(signed(t, jwt.MapClaims{"sub": "x"})).IsZero())
}

type authServer struct {
	*httptest.Server
	mu    sync.Mutex
	forms []url.Values
	token string
}

func newAuthServer(t *testing.T, token string) *authServer {
	t.Helper()
	a := &authServer{token: token}
	a.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		a.mu.Lock()
		a.forms = append(a.forms, r.PostForm)
		a.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"` + a.token + `","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(a.Close)
	return a
}

func (a *authServer) received() []url.Values {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]url.Values(nil), a.forms...)
}

func TestExternalLogin_CompletesAndCallsBackOnce(t *testing.T) {
	ctx := context.Background()
	token := signed(t, jwt.MapClaims{"sub": "u42", "username": "ann", "exp": time.Now().Add(time.Hour).Unix()})
	auth := newAuthServer(t, token)
	net := network.NewMemoryManager()
	s := New(net, newMeta(t), WithAuthBaseURL(auth.URL), WithAppKey("kid_app"))

	var calls []*models.User
	loginURL, state, err := s.BeginExternalLogin("myapp://callback", func(u *models.User, err error) {
		require.NoError(t, err)
		calls = append(calls, u)
	})
	require.NoError(t, err)

	parsed, err := url.Parse(loginURL)
	require.NoError(t, err)
	assert.Equal(t, "/oauth/auth", parsed.Path)
	assert.Equal(t, "kid_app", parsed.Query().Get("client_id"))
	assert.Equal(t, "myapp://callback", parsed.Query().Get("redirect_uri"))
	assert.Equal(t, "code", parsed.Query().Get("response_type"))
	assert.Equal(t, state, parsed.Query().Get("state"))
	assert.Equal(t, 1, s.PendingLogins())

	u, err := s.CompleteExternalLogin(ctx, "myapp://callback?code=abc&state="+state)
	require.NoError(t, err)
	assert.Equal(t, "u42", u.ID)
	assert.Equal(t, "ann", u.Username)
	assert.Equal(t, token, net.AuthToken())
	require.Len(t, calls, 1)
	assert.Equal(t, 0, s.PendingLogins())

	forms := auth.received()
	require.Len(t, forms, 1)
	assert.Equal(t, "authorization_code", forms[0].Get("grant_type"))
	assert.Equal(t, "abc", forms[0].Get("code"))
	assert.Equal(t, "myapp://callback", forms[0].Get("redirect_uri"))

	// replaying the redirect hits no pending login
	_, err = s.CompleteExternalLogin(ctx, "myapp://callback?code=abc&state="+state)
	assert.ErrorIs(t, err, ErrUnknownLoginState)
	assert.Len(t, calls, 1)
}

func TestExternalLogin_StatesAreCorrelated(t *testing.T) {
	ctx := context.Background()
	auth := newAuthServer(t, "opaque-token")
	s := New(network.NewMemoryManager(), newMeta(t), WithAuthBaseURL(auth.URL))

	results := map[string]error{}
	_, first, err := s.BeginExternalLogin("app://cb", func(_ *models.User, err error) { results["first"] = err })
	require.NoError(t, err)
	_, second, err := s.BeginExternalLogin("app://cb", func(_ *models.User, err error) { results["second"] = err })
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = s.CompleteExternalLogin(ctx, "app://cb?code=bad&state="+second)
	assert.ErrorIs(t, err, ErrLoginDenied)
	assert.Contains(t, results, "second")
	assert.NotContains(t, results, "first")

	_, err = s.CompleteExternalLogin(ctx, "app://cb?error=access_denied&state="+first)
	assert.ErrorIs(t, err, ErrLoginDenied)
	assert.ErrorIs(t, results["first"], ErrLoginDenied)
	assert.Nil(t, s.ActiveUser())
}

func TestExternalLogin_Expires(t *testing.T) {
	c := &clock{now: epoch}
	auth := newAuthServer(t, "opaque-token")
	s := New(network.NewMemoryManager(), newMeta(t),
		WithAuthBaseURL(auth.URL), WithClock(c.Now), WithExternalLoginTimeout(time.Minute))

	var got []error
	_, state, err := s.BeginExternalLogin("app://cb", func(_ *models.User, err error) { got = append(got, err) })
	require.NoError(t, err)

	c.Advance(2 * time.Minute)
	_, err = s.CompleteExternalLogin(context.Background(), "app://cb?code=abc&state="+state)
	assert.ErrorIs(t, err, ErrUnknownLoginState)
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0], ErrUnknownLoginState)
	assert.Empty(t, auth.received())
}

func TestExternalLogin_NeedsAuthURL(t *testing.T) {
	s := New(network.NewMemoryManager(), newMeta(t))
	_, _, err := s.BeginExternalLogin("app://cb", nil)
	assert.Error(t, err)
}
