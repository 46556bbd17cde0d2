package repomanager

import (
	"context"

	"github.com/dmitrijs2005/kinveysync/internal/server/repositories/appdata"
	"github.com/dmitrijs2005/kinveysync/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps everything in process memory. WithTx runs
// fn directly: there is no rollback.
type MemoryRepositoryManager struct {
	users   *users.MemoryRepository
	appdata *appdata.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:   users.NewMemoryRepository(),
		appdata: appdata.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) Users() users.Repository     { return m.users }
func (m *MemoryRepositoryManager) AppData() appdata.Repository { return m.appdata }

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, rm RepositoryManager) error) error {
	return fn(ctx, m)
}

func (m *MemoryRepositoryManager) Ping(context.Context) error { return nil }
func (m *MemoryRepositoryManager) Close() error               { return nil }
