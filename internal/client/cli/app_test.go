package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/kinveysync/internal/client/client"
	"github.com/dmitrijs2005/kinveysync/internal/client/config"
	"github.com/dmitrijs2005/kinveysync/internal/client/datastore"
	"github.com/dmitrijs2005/kinveysync/internal/client/network"
	"github.com/dmitrijs2005/kinveysync/internal/logging"
)

type testApp struct {
	*App
	mem *network.MemoryManager
	out *bytes.Buffer
}

func newTestApp(t *testing.T, input string) *testApp {
	t.Helper()
	cfg := config.Default()
	cfg.Transport = config.TransportMemory
	cfg.DatabasePath = filepath.Join(t.TempDir(), "cli.db")

	mem := network.NewMemoryManager()
	c, err := client.New(context.Background(), cfg, client.WithLogger(logging.Nop{}), client.WithNetworkManager(mem))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	out := &bytes.Buffer{}
	app, err := NewApp(c, strings.NewReader(input), out)
	require.NoError(t, err)

	old := getPassword
	getPassword = func(io.Writer) (string, error) { return "secret", nil }
	t.Cleanup(func() { getPassword = old })

	return &testApp{App: app, mem: mem, out: out}
}

func (a *testApp) output() string {
	s := a.out.String()
	a.out.Reset()
	return s
}

func TestApp_SignupLoginLogout(t *testing.T) {
	a := newTestApp(t, "bob\n")
	ctx := context.Background()

	require.NoError(t, a.Signup(ctx, []string{"ann"}))
	assert.Contains(t, a.output(), "Logged in as ann")
	assert.True(t, a.isLoggedIn())
	assert.Contains(t, a.status(), "ann items:SYNC")

	require.NoError(t, a.Logout(ctx, nil))
	assert.False(t, a.isLoggedIn())
	require.NoError(t, a.Logout(ctx, nil))
	assert.Contains(t, a.output(), "Not logged in")

	assert.ErrorIs(t, a.Login(ctx, nil), network.ErrUnauthorized)

	require.NoError(t, a.Login(ctx, []string{"ann"}))
	require.NoError(t, a.Whoami(ctx, nil))
	assert.Contains(t, a.output(), "ann (")
}

func TestApp_OfflineEditsThenSync(t *testing.T) {
	a := newTestApp(t, "title=Dune\npages=412\n\n")
	ctx := context.Background()
	a.mem.SetOffline(true)

	require.NoError(t, a.Save(ctx, nil))
	require.NoError(t, a.Save(ctx, []string{`{"title":`, `"Emma",`, `"pages":`, `300}`}))
	a.output()

	require.NoError(t, a.Pending(ctx, nil))
	assert.Contains(t, a.output(), "2 pending")

	require.NoError(t, a.Count(ctx, []string{`{"pages":`, `{"$gt":`, `350}}`}))
	assert.Equal(t, "1\n", a.output())

	require.NoError(t, a.Group(ctx, []string{"sum:pages"}))
	out := a.output()
	assert.Contains(t, out, `"_result":712`)
	assert.Contains(t, out, "1 group(s)")
	require.NoError(t, a.Group(ctx, []string{"count", "title", `{"pages":`, `{"$lt":`, `350}}`}))
	assert.Contains(t, a.output(), `{"_result":1,"title":"Emma"}`)
	assert.ErrorIs(t, a.Group(ctx, []string{"median:pages"}), datastore.ErrInvalidArgument)

	err := a.Sync(ctx, nil)
	assert.ErrorIs(t, err, datastore.ErrNetwork)

	a.mem.SetOffline(false)
	require.NoError(t, a.Sync(ctx, nil))
	out = a.output()
	assert.Contains(t, out, "Pushed 2 of 2 change(s)")
	assert.Contains(t, out, "Pulled 2 item(s), removed 0")
	assert.Equal(t, 2, a.mem.Len("items"))

	require.NoError(t, a.Find(ctx, []string{`{"title":"Emma"}`}))
	assert.Contains(t, a.output(), "1 item(s)")
}

func TestApp_UseAndStoreTypes(t *testing.T) {
	a := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.Use(ctx, []string{"books", "network"}))
	assert.Contains(t, a.status(), "books:NETWORK")
	assert.Error(t, a.Push(ctx, nil))

	require.NoError(t, a.Save(ctx, []string{`{"_id":"b1","title":"Dune"}`}))
	assert.Equal(t, 1, a.mem.Len("books"))

	require.NoError(t, a.Use(ctx, []string{"books", "cache"}))
	a.output()
	require.NoError(t, a.Get(ctx, []string{"b1"}))
	assert.Contains(t, a.output(), `"title": "Dune"`)

	assert.ErrorIs(t, a.Use(ctx, nil), errUsage)
	assert.ErrorIs(t, a.Use(ctx, []string{"books", "carrier-pigeon"}), datastore.ErrInvalidArgument)
	assert.ErrorIs(t, a.Get(ctx, nil), errUsage)
	assert.ErrorIs(t, a.Delete(ctx, nil), errUsage)
}

func TestApp_PurgeAndClear(t *testing.T) {
	a := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, []string{`{"title":"draft"}`}))
	require.NoError(t, a.Purge(ctx, nil))
	assert.Contains(t, a.output(), "Purged 1 change(s)")

	require.NoError(t, a.Save(ctx, []string{`{"title":"draft"}`}))
	require.NoError(t, a.Clear(ctx, nil))
	require.NoError(t, a.Pending(ctx, nil))
	assert.Contains(t, a.output(), "0 pending")
}

func TestApp_Download_RemovesPartialFile(t *testing.T) {
	a := newTestApp(t, "")
	target := filepath.Join(t.TempDir(), "out.bin")

	err := a.Download(context.Background(), []string{"missing", target})
	assert.ErrorIs(t, err, datastore.ErrNotFound)
	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr))

	assert.ErrorIs(t, a.Upload(context.Background(), nil), errUsage)
}

func TestParseQuery(t *testing.T) {
	q, err := parseQuery(nil)
	require.NoError(t, err)
	assert.Nil(t, q)

	q, err = parseQuery([]string{`{"genre":`, `"sf"}`, `{"title":`, `-1}`})
	require.NoError(t, err)
	assert.Len(t, q.Predicates(), 1)
	assert.Len(t, q.SortFields(), 1)

	_, err = parseQuery([]string{"not-json"})
	assert.Error(t, err)
}
