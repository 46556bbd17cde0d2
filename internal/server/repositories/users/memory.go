package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/server/models"
)

type key struct {
	appKey, v string
}

// MemoryRepository keeps users in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	byLogin map[key]models.User
	byID    map[key]models.User
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byLogin: map[key]models.User{},
		byID:    map[key]models.User{},
		now:     time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	login := key{user.AppKey, user.UserName}
	if _, ok := r.byLogin[login]; ok {
		return nil, common.ErrorAlreadyExists
	}
	now := r.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.byLogin[login] = *user
	r.byID[key{user.AppKey, user.ID}] = *user
	return user, nil
}

func (r *MemoryRepository) GetUserByLogin(_ context.Context, appKey, userName string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byLogin[key{appKey, userName}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) GetUserByID(_ context.Context, appKey, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[key{appKey, id}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}
