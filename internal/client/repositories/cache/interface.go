package cache

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

var ErrMissingID = errors.New("entity has no _id")

// Repository is a collection-scoped document cache with query support.
type Repository interface {
	Collection() string
	TTL() time.Duration

	// Get returns the live document with the given id, or nil when it is
	// absent or expired.
	Get(ctx context.Context, id string) (models.Entity, error)

	// GetByIDs returns the live documents among ids, in insertion order.
	GetByIDs(ctx context.Context, ids []string) ([]models.Entity, error)

	// StoredIDs returns the ids among ids that have a row, expired or not,
	// in insertion order.
	StoredIDs(ctx context.Context, ids []string) ([]string, error)

	// GetByQuery evaluates q over the live documents. A nil q returns all.
	GetByQuery(ctx context.Context, q *query.Query) ([]models.Entity, error)

	GetAll(ctx context.Context) ([]models.Entity, error)

	// Count returns the number of live documents matching q's filter;
	// skip and limit are ignored.
	Count(ctx context.Context, q *query.Query) (int, error)

	// Save upserts e and returns its id. e must carry an _id.
	Save(ctx context.Context, e models.Entity) (string, error)

	// SaveAll upserts every entity atomically.
	SaveAll(ctx context.Context, es []models.Entity) ([]string, error)

	// Delete removes a live document and reports how many were removed.
	Delete(ctx context.Context, id string) (int, error)
	DeleteByIDs(ctx context.Context, ids []string) (int, error)
	DeleteByQuery(ctx context.Context, q *query.Query) (int, error)

	// Apply removes deletes and then upserts upserts, atomically.
	Apply(ctx context.Context, upserts []models.Entity, deletes []string) error

	// Clear removes every row of the collection, expired or not.
	Clear(ctx context.Context) error

	// PurgeExpired drops expired rows and reports how many were dropped.
	PurgeExpired(ctx context.Context) (int, error)
}
