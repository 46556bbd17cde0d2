// Package repomanager vends the client-side repositories bound to one
// database handle and runs groups of repository calls in a transaction.
package repomanager

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/cache"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/queue"
	"github.com/dmitrijs2005/kinveysync/internal/dbx"
)

type RepositoryManager interface {
	Cache(collection string, ttl time.Duration) cache.Repository
	Queue() queue.Repository
	Metadata() metadata.Repository

	// WithTx runs fn with a manager whose repositories share one
	// transaction. Calling WithTx on such a manager joins the outer
	// transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, rm RepositoryManager) error) error
}

// SQLiteRepositoryManager is the RepositoryManager over the local SQLite file.
type SQLiteRepositoryManager struct {
	db  *sql.DB
	tx  dbx.DBTX
	now func() time.Time
}

type Option func(*SQLiteRepositoryManager)

// WithClock overrides the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(m *SQLiteRepositoryManager) { m.now = now }
}

func NewSQLiteRepositoryManager(db *sql.DB, opts ...Option) *SQLiteRepositoryManager {
	m := &SQLiteRepositoryManager{db: db, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *SQLiteRepositoryManager) handle() dbx.DBTX {
	if m.tx != nil {
		return m.tx
	}
	return m.db
}

func (m *SQLiteRepositoryManager) Cache(collection string, ttl time.Duration) cache.Repository {
	return cache.NewSQLiteRepository(m.handle(), collection, ttl, cache.WithClock(m.now))
}

func (m *SQLiteRepositoryManager) Queue() queue.Repository {
	return queue.NewSQLiteRepository(m.handle())
}

func (m *SQLiteRepositoryManager) Metadata() metadata.Repository {
	return metadata.NewSQLiteRepository(m.handle())
}

func (m *SQLiteRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, rm RepositoryManager) error) error {
	if m.tx != nil {
		return fn(ctx, m)
	}
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &SQLiteRepositoryManager{db: m.db, tx: tx, now: m.now})
	})
}
