package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/kinveysync/internal/client/client"
	"github.com/dmitrijs2005/kinveysync/internal/client/datastore"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const (
	defaultCollection   = "items"
	defaultPingInterval = 10 * time.Second
	commandTimeout      = 30 * time.Second
)

type App struct {
	client *client.Client
	reader *bufio.Reader
	out    io.Writer

	mu    sync.Mutex
	mode  Mode
	store *datastore.DataStore
}

func NewApp(c *client.Client, in io.Reader, out io.Writer) (*App, error) {
	store, err := c.DataStore(defaultCollection, datastore.Sync)
	if err != nil {
		return nil, err
	}
	return &App{client: c, reader: bufio.NewReader(in), out: out, store: store}, nil
}

// Run starts the connectivity watcher and blocks in the REPL until the
// input ends or the user exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.StartOnlineStatusWatcher(ctx, defaultPingInterval)

	fmt.Fprintln(a.out, "kinveysync CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()
	if changed {
		a.client.Logger().Info(context.Background(), "connectivity changed", "mode", mode)
	}
}

func (a *App) current() *datastore.DataStore {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store
}

func (a *App) isLoggedIn() bool {
	return a.client.Session().ActiveUser() != nil
}

func (a *App) status() string {
	a.mu.Lock()
	mode := a.mode
	store := a.store
	a.mu.Unlock()

	s := store.Collection() + ":" + store.StoreType().String()
	if u := a.client.Session().ActiveUser(); u != nil {
		s = u.Username + " " + s
	}
	if mode != "" {
		s += " " + string(mode)
	}
	return fmt.Sprintf("(%s)", s)
}

// checkOnline pings once and records the result.
func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.client.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	a.checkOnline(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
