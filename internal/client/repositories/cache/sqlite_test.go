package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/kinveysync/internal/client/localdb"
	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/dbx"
	"github.com/dmitrijs2005/kinveysync/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := localdb.OpenInMemory(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func ids(es []models.Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID())
	}
	return out
}

func TestSaveGet_RoundTripAndUpsert(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, "people", 0)
	ctx := context.Background()

	id, err := r.Save(ctx, models.Entity{"_id": "p1", "name": "ann", "age": 30})
	require.NoError(t, err)
	assert.Equal(t, "p1", id)

	got, err := r.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "ann", got["name"])
	assert.Equal(t, 30.0, got["age"])

	_, err = r.Save(ctx, models.Entity{"_id": "p1", "name": "anna"})
	require.NoError(t, err)
	got, err = r.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "anna", got["name"])
	_, hasAge := got["age"]
	assert.False(t, hasAge, "save replaces the whole document")

	missing, err := r.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSave_RequiresID(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t), "people", 0)
	_, err := r.Save(context.Background(), models.Entity{"name": "x"})
	require.ErrorIs(t, err, ErrMissingID)
}

func TestCollectionsAreIsolated(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	a := NewSQLiteRepository(db, "a", 0)
	b := NewSQLiteRepository(db, "b", 0)

	_, err := a.Save(ctx, models.Entity{"_id": "1"})
	require.NoError(t, err)

	got, err := b.Get(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, b.Clear(ctx))
	n, err := a.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertionOrderSurvivesUpdates(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, "c", 0)
	ctx := context.Background()

	for _, id := range []string{"x", "y", "z"} {
		_, err := r.Save(ctx, models.Entity{"_id": id})
		require.NoError(t, err)
	}
	_, err := r.Save(ctx, models.Entity{"_id": "x", "v": 2})
	require.NoError(t, err)

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, ids(all))

	some, err := r.GetByIDs(ctx, []string{"z", "x", "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "z"}, ids(some))
}

func TestGetByQuery_PaginationOverInsertionOrder(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, "n", 0)
	ctx := context.Background()

	batch := make([]models.Entity, 0, 10)
	for i := 0; i < 10; i++ {
		batch = append(batch, models.Entity{"_id": fmt.Sprintf("e%d", i), "i": i})
	}
	_, err := r.SaveAll(ctx, batch)
	require.NoError(t, err)

	got, err := r.GetByQuery(ctx, query.New().SetSkip(6).SetLimit(6))
	require.NoError(t, err)
	assert.Equal(t, []string{"e6", "e7", "e8", "e9"}, ids(got))

	for _, skip := range []int{10, 11} {
		got, err = r.GetByQuery(ctx, query.New().SetSkip(skip).SetLimit(6))
		require.NoError(t, err)
		assert.Empty(t, got)
	}

	got, err = r.GetByQuery(ctx, query.New().GreaterThanEqual("i", 7).AddSort("i", query.Descending))
	require.NoError(t, err)
	assert.Equal(t, []string{"e9", "e8", "e7"}, ids(got))

	n, err := r.Count(ctx, query.New().LessThan("i", 4).SetLimit(1))
	require.NoError(t, err)
	assert.Equal(t, 4, n, "count ignores pagination")

	_, err = r.GetByQuery(ctx, query.New().SetSkip(-1))
	require.ErrorIs(t, err, query.ErrInvalidQuery)
}

func TestTTL_ExpiredRowsAreAbsent(t *testing.T) {
	db := setupDB(t)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	r := NewSQLiteRepository(db, "ttl", time.Minute, WithClock(clock.Now))
	ctx := context.Background()

	_, err := r.Save(ctx, models.Entity{"_id": "a", "k": 1})
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	got, err := r.GetByQuery(ctx, query.New().Equals("_id", "a"))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	clock.Advance(31 * time.Second)
	got, err = r.GetByQuery(ctx, query.New().Equals("_id", "a"))
	require.NoError(t, err)
	assert.Empty(t, got)

	one, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, one)

	n, err := r.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	stored, err := r.StoredIDs(ctx, []string{"a", "zz"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, stored, "expired rows are still stored")

	removed, err := r.Delete(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "an expired row is not reported as deleted")

	purged, err := r.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}

func TestTTL_RealClock(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t), "ttl", time.Millisecond)
	ctx := context.Background()

	_, err := r.Save(ctx, models.Entity{"_id": "a"})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	got, err := r.GetByQuery(ctx, query.New().Equals("_id", "a"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStoredIDs_InsertionOrder(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t), "s", 0)
	ctx := context.Background()

	_, err := r.SaveAll(ctx, []models.Entity{{"_id": "x"}, {"_id": "y"}, {"_id": "z"}})
	require.NoError(t, err)

	got, err := r.StoredIDs(ctx, []string{"z", "nope", "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "z"}, got)

	got, err = r.StoredIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteVariants(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, "d", 0)
	ctx := context.Background()

	_, err := r.SaveAll(ctx, []models.Entity{
		{"_id": "1", "kind": "a"},
		{"_id": "2", "kind": "b"},
		{"_id": "3", "kind": "a"},
		{"_id": "4", "kind": "c"},
	})
	require.NoError(t, err)

	n, err := r.Delete(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.Delete(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = r.DeleteByQuery(ctx, query.New().Equals("kind", "a"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = r.DeleteByIDs(ctx, []string{"2", "404"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left, err := r.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSaveAll_IsAtomic(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, "atomic", 0)
	ctx := context.Background()

	_, err := r.SaveAll(ctx, []models.Entity{
		{"_id": "ok1"},
		{"name": "no id"},
		{"_id": "ok2"},
	})
	require.ErrorIs(t, err, ErrMissingID)

	n, err := r.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a failing batch must leave no rows behind")
}

func TestApply_DeletesThenUpserts(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, "apply", 0)
	ctx := context.Background()

	_, err := r.SaveAll(ctx, []models.Entity{{"_id": "old"}, {"_id": "keep", "v": 1}})
	require.NoError(t, err)

	require.NoError(t, r.Apply(ctx,
		[]models.Entity{{"_id": "keep", "v": 2}, {"_id": "new"}},
		[]string{"old"}))

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep", "new"}, ids(all))
	assert.Equal(t, 2.0, all[0]["v"])
}

func TestJoinsCallerTransaction(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := NewSQLiteRepository(tx, "tx", 0)
		if _, err := r.SaveAll(ctx, []models.Entity{{"_id": "1"}, {"_id": "2"}}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	n, err := NewSQLiteRepository(db, "tx", 0).Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
