// Package repomanager vends the backend repositories and runs groups of
// repository calls in a transaction.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/kinveysync/internal/server/config"
	"github.com/dmitrijs2005/kinveysync/internal/server/repositories/appdata"
	"github.com/dmitrijs2005/kinveysync/internal/server/repositories/users"
)

type RepositoryManager interface {
	Users() users.Repository
	AppData() appdata.Repository

	// WithTx runs fn with a manager whose repositories share one
	// transaction. Calling WithTx on such a manager joins the outer one.
	WithTx(ctx context.Context, fn func(ctx context.Context, rm RepositoryManager) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Open returns the in-memory manager for config.MemoryDSN and a migrated
// PostgreSQL manager otherwise.
func Open(ctx context.Context, dsn string) (RepositoryManager, error) {
	if dsn == config.MemoryDSN {
		return NewMemoryRepositoryManager(), nil
	}
	return OpenPostgres(ctx, dsn)
}
