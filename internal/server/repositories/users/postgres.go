package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/dbx"
	"github.com/dmitrijs2005/kinveysync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (id, app_key, username, password_hash)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (app_key, username) DO NOTHING
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.AppKey, user.UserName, user.PasswordHash).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) get(ctx context.Context, where string, args ...any) (*models.User, error) {
	query :=
		`SELECT id, app_key, username, password_hash, created_at, updated_at FROM users
		 WHERE ` + where

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&user.ID, &user.AppKey, &user.UserName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, appKey, userName string) (*models.User, error) {
	return r.get(ctx, "app_key = $1 AND username = $2", appKey, userName)
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, appKey, id string) (*models.User, error) {
	return r.get(ctx, "app_key = $1 AND id = $2", appKey, id)
}
