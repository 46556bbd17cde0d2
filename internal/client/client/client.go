package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/kinveysync/internal/client/async"
	"github.com/dmitrijs2005/kinveysync/internal/client/autosync"
	"github.com/dmitrijs2005/kinveysync/internal/client/config"
	"github.com/dmitrijs2005/kinveysync/internal/client/files"
	"github.com/dmitrijs2005/kinveysync/internal/client/localdb"
	"github.com/dmitrijs2005/kinveysync/internal/client/network"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/kinveysync/internal/client/session"
	"github.com/dmitrijs2005/kinveysync/internal/client/syncmanager"
	"github.com/dmitrijs2005/kinveysync/internal/filex"
	"github.com/dmitrijs2005/kinveysync/internal/logging"
)

var ErrClosed = errors.New("client is closed")

type storeKey struct {
	collection string
	storeType  string
	item       reflect.Type
}

type Client struct {
	cfg    *config.Config
	logger logging.Logger

	db        *sql.DB
	net       network.Manager
	ownsNet   bool
	sm        *syncmanager.Manager
	session   *session.Session
	files     *files.Store
	workers   *async.Dispatcher
	scheduler *autosync.Scheduler

	mu     sync.Mutex
	stores map[storeKey]any
	closed bool

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	logger   logging.Logger
	net      network.Manager
	dialOpts []grpc.DialOption
	executor async.Executor
}

type Option func(*options)

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithNetworkManager replaces the transport selected by the config. The
// caller keeps ownership; Close does not close it.
func WithNetworkManager(m network.Manager) Option {
	return func(o *options) { o.net = m }
}

// WithDialOptions adds gRPC dial options, e.g. a bufconn dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.dialOpts = append(o.dialOpts, opts...) }
}

// WithExecutor sets where async callbacks run.
func WithExecutor(e async.Executor) Option {
	return func(o *options) { o.executor = e }
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		l, err := logging.New(os.Stderr, logging.FormatText, cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		o.logger = l
	}

	c := &Client{
		cfg:    cfg,
		logger: o.logger.With("module", "client"),
		stores: make(map[storeKey]any),
	}

	if filex.IsLocalPath(cfg.DatabasePath) {
		if _, err := filex.EnsureParentDir(cfg.DatabasePath); err != nil {
			return nil, fmt.Errorf("failed to prepare database directory: %w", err)
		}
	}
	db, err := localdb.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	c.db = db

	if o.net != nil {
		c.net = o.net
	} else {
		c.net, err = newNetworkManager(cfg, o.logger, o.dialOpts)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		c.ownsNet = true
	}

	repos := repomanager.NewSQLiteRepositoryManager(db)
	c.sm = syncmanager.New(repos, o.logger)

	c.session = session.New(c.net, repos.Metadata(),
		session.WithAppKey(cfg.AppKey),
		session.WithAuthBaseURL(cfg.AuthBaseURL),
		session.WithExternalLoginTimeout(cfg.ExternalLoginTimeout),
		session.WithLogger(o.logger),
	)
	if _, err := c.session.Restore(ctx); err != nil {
		_ = c.shutdown()
		return nil, err
	}

	c.files = files.New(c.net)

	dispatcherOpts := []async.Option{async.WithLogger(o.logger)}
	if o.executor != nil {
		dispatcherOpts = append(dispatcherOpts, async.WithExecutor(o.executor))
	}
	c.workers = async.NewDispatcher(cfg.Workers, dispatcherOpts...)

	c.scheduler = autosync.New(c.net,
		autosync.WithBatchSize(cfg.BatchSize),
		autosync.WithStaggerTime(cfg.StaggerTime),
		autosync.WithLogger(o.logger),
	)
	if cfg.SyncSchedule != "" {
		if err := c.scheduler.Start(cfg.SyncSchedule); err != nil {
			_ = c.shutdown()
			return nil, err
		}
	}

	c.logger.Info(ctx, "client ready",
		"transport", transportName(cfg, o.net != nil),
		"database", cfg.DatabasePath,
		"user", c.activeUserName(),
	)
	return c, nil
}

func newNetworkManager(cfg *config.Config, logger logging.Logger, dialOpts []grpc.DialOption) (network.Manager, error) {
	creds := network.Credentials{AppKey: cfg.AppKey, AppSecret: cfg.AppSecret}
	switch cfg.Transport {
	case config.TransportHTTP:
		return network.NewHTTPManager(cfg.BaseURL, creds,
			network.WithRequestTimeout(cfg.RequestTimeout),
			network.WithHTTPLogger(logger),
		)
	case config.TransportGRPC:
		if cfg.RequestTimeout > 0 {
			dialOpts = append([]grpc.DialOption{grpc.WithChainUnaryInterceptor(timeoutInterceptor(cfg.RequestTimeout))}, dialOpts...)
		}
		return network.NewGRPCManager(cfg.GRPCAddr, creds, dialOpts...)
	case config.TransportMemory:
		return network.NewMemoryManager(), nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}

// timeoutInterceptor bounds each unary call unless the caller already set
// a deadline.
func timeoutInterceptor(d time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func transportName(cfg *config.Config, injected bool) string {
	if injected {
		return "custom"
	}
	return cfg.Transport
}

func (c *Client) activeUserName() string {
	if u := c.session.ActiveUser(); u != nil {
		return u.Username
	}
	return ""
}

func (c *Client) Config() *config.Config            { return c.cfg }
func (c *Client) Network() network.Manager          { return c.net }
func (c *Client) SyncManager() *syncmanager.Manager { return c.sm }
func (c *Client) Session() *session.Session         { return c.session }
func (c *Client) Files() *files.Store               { return c.files }
func (c *Client) Dispatcher() *async.Dispatcher     { return c.workers }
func (c *Client) AutoSync() *autosync.Scheduler     { return c.scheduler }
func (c *Client) Ping(ctx context.Context) error    { return c.net.Ping(ctx) }
func (c *Client) Logger() logging.Logger            { return c.logger }

// Close releases every resource. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.closeErr = c.shutdown()
	})
	return c.closeErr
}

func (c *Client) shutdown() error {
	var errs []error
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	if c.workers != nil {
		c.workers.Close()
	}
	if c.ownsNet && c.net != nil {
		if err := c.net.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
