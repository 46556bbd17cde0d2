// Package queue persists the pending-mutation queue: an append-only,
// per-collection FIFO of local writes awaiting delivery to the backend.
// Entries are never merged or reordered; they leave the queue only through
// Delete (after a confirmed replay) or Clear.
package queue

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
)

var (
	ErrNotFound         = errors.New("mutation not found")
	ErrInvalidOperation = errors.New("invalid mutation operation")
)

type Repository interface {
	// Enqueue appends m and fills in its Seq and CreatedAt.
	Enqueue(ctx context.Context, m *models.Mutation) error

	// List returns the collection's mutations in enqueue order.
	List(ctx context.Context, collection string) ([]models.Mutation, error)

	Count(ctx context.Context, collection string) (int, error)

	// CountForEntity counts mutations targeting one entity id.
	CountForEntity(ctx context.Context, collection, id string) (int, error)

	// Delete removes a single mutation by sequence number.
	Delete(ctx context.Context, seq int64) error

	// Clear drops every mutation of the collection and reports how many.
	Clear(ctx context.Context, collection string) (int, error)

	// Retarget rewrites the entity id (and payload _id) of queued mutations.
	Retarget(ctx context.Context, collection, oldID, newID string) (int, error)

	// Collections lists collections that have pending mutations.
	Collections(ctx context.Context) ([]string, error)
}
