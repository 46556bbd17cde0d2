// Package users persists app users.
package users

import (
	"context"

	"github.com/dmitrijs2005/kinveysync/internal/server/models"
)

// Repository looks users up within one app key. Create returns
// common.ErrorAlreadyExists for a taken username and lookups return
// common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, appKey, userName string) (*models.User, error)
	GetUserByID(ctx context.Context, appKey, id string) (*models.User, error)
}
