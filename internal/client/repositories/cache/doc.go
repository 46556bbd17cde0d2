// Package cache provides the client-side document cache used by SYNC and
// CACHE data stores.
//
// # Overview
//
// A Repository is bound to one collection and one time-to-live. Documents
// are stored as JSON rows keyed by (collection, id) together with an
// expiry instant computed at write time. Reads treat expired rows as
// absent; they stay on disk until overwritten, deleted, or removed by
// PurgeExpired.
//
// # Ordering
//
// Every row keeps the sequence number of its first insertion, also across
// updates. Queries are evaluated over rows in that order, so results
// without an explicit sort (and sort ties) come back in insertion order.
//
// # Transactions
//
// Batch operations (SaveAll, DeleteByIDs, DeleteByQuery, Apply) run inside
// a single transaction when the repository is bound to a *sql.DB, and join
// the caller's transaction when it is bound to a *sql.Tx.
//
// Key Types
//
//   - type Repository: interface used by the data store engine
//   - type SQLiteRepository: SQLite implementation over dbx.DBTX
//
// Typical Usage
//
//	people := cache.NewSQLiteRepository(db, "people", time.Hour)
//	id, _ := people.Save(ctx, models.Entity{"_id": "p1", "name": "ann"})
//	adults, _ := people.GetByQuery(ctx, query.New().GreaterThanEqual("age", 18))
package cache
