// Package network talks to the backend. Manager is the remote half of every
// data store; HTTPManager speaks the REST appdata API and GRPCManager the
// kinveysync.AppData service. Both map transport failures to the sentinels
// in errors.go.
package network

import (
	"context"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

type Manager interface {
	GetByID(ctx context.Context, collection, id string) (models.Entity, error)
	// Find honors the query's filter, sort, skip and limit. A nil query
	// selects the whole collection.
	Find(ctx context.Context, collection string, q *query.Query) ([]models.Entity, error)
	Count(ctx context.Context, collection string, q *query.Query) (int, error)
	// Create posts a new entity and returns the server copy, which may carry
	// a different _id than the one sent.
	Create(ctx context.Context, collection string, e models.Entity) (models.Entity, error)
	Update(ctx context.Context, collection string, e models.Entity) (models.Entity, error)
	Delete(ctx context.Context, collection, id string) (int, error)
	DeleteByQuery(ctx context.Context, collection string, q *query.Query) (int, error)
	// Group runs a over the documents matching condition; sort, skip and
	// limit of condition are ignored.
	Group(ctx context.Context, collection string, a query.Aggregation, condition *query.Query) ([]query.Group, error)

	Login(ctx context.Context, username, password string) (*models.User, error)
	Signup(ctx context.Context, username, password string) (*models.User, error)
	// SetAuthToken switches subsequent requests to the given session token.
	// An empty token falls back to app credentials.
	SetAuthToken(token string)
	Ping(ctx context.Context) error
	Close() error
}

// Credentials identify the application before a user logs in.
type Credentials struct {
	AppKey    string
	AppSecret string
}
