// Package appdata persists the documents of the appdata collections. Each
// document is stored whole as JSON; queries are evaluated with package
// query over the documents of one collection in insertion order.
package appdata

import (
	"context"

	"github.com/dmitrijs2005/kinveysync/internal/query"
	"github.com/dmitrijs2005/kinveysync/internal/server/models"
)

// Repository stores documents by (app key, collection, _id). Get returns
// common.ErrorNotFound for a missing document and Insert returns
// common.ErrorAlreadyExists for a taken _id.
type Repository interface {
	Get(ctx context.Context, appKey, collection, id string) (models.Document, error)
	Find(ctx context.Context, appKey, collection string, q *query.Query) ([]models.Document, error)
	Count(ctx context.Context, appKey, collection string, q *query.Query) (int, error)
	Insert(ctx context.Context, appKey, collection string, doc models.Document) error
	Save(ctx context.Context, appKey, collection string, doc models.Document) error
	Delete(ctx context.Context, appKey, collection, id string) (int, error)
	DeleteByQuery(ctx context.Context, appKey, collection string, q *query.Query) (int, error)
}
