package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/dbx"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

const neverExpires = int64(math.MaxInt64)

type SQLiteRepository struct {
	db         dbx.DBTX
	collection string
	ttl        time.Duration
	now        func() time.Time
}

type Option func(*SQLiteRepository)

// WithClock replaces time.Now, mainly for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) { r.now = now }
}

// NewSQLiteRepository binds a cache to collection. A ttl <= 0 means rows
// never expire.
func NewSQLiteRepository(db dbx.DBTX, collection string, ttl time.Duration, opts ...Option) *SQLiteRepository {
	r := &SQLiteRepository{db: db, collection: collection, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *SQLiteRepository) Collection() string { return r.collection }
func (r *SQLiteRepository) TTL() time.Duration { return r.ttl }

func (r *SQLiteRepository) withDB(db dbx.DBTX) *SQLiteRepository {
	c := *r
	c.db = db
	return &c
}

func (r *SQLiteRepository) expiry(now time.Time) int64 {
	if r.ttl <= 0 || r.ttl > time.Duration(neverExpires-now.UnixNano()) {
		return neverExpires
	}
	return now.Add(r.ttl).UnixNano()
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (models.Entity, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM cache_entries WHERE collection = ? AND id = ? AND expires_at > ?`,
		r.collection, id, r.now().UnixNano()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s[%s]: %w", r.collection, id, err)
	}
	e, err := models.UnmarshalEntity([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to get %s[%s]: %w", r.collection, id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Entity, error) {
	if len(ids) == 0 {
		return []models.Entity{}, nil
	}
	args := make([]any, 0, len(ids)+2)
	args = append(args, r.collection, r.now().UnixNano())
	for _, id := range ids {
		args = append(args, id)
	}
	q := `SELECT data FROM cache_entries
		WHERE collection = ? AND expires_at > ? AND id IN (` + placeholders(len(ids)) + `)
		ORDER BY seq`
	return r.list(ctx, q, args...)
}

func (r *SQLiteRepository) StoredIDs(ctx context.Context, ids []string) ([]string, error) {
	out := []string{}
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, r.collection)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM cache_entries WHERE collection = ? AND id IN (` + placeholders(len(ids)) + `) ORDER BY seq`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s ids: %w", r.collection, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to look up %s ids: %w", r.collection, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to look up %s ids: %w", r.collection, err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Entity, error) {
	return r.list(ctx,
		`SELECT data FROM cache_entries WHERE collection = ? AND expires_at > ? ORDER BY seq`,
		r.collection, r.now().UnixNano())
}

func (r *SQLiteRepository) GetByQuery(ctx context.Context, q *query.Query) ([]models.Entity, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return query.Apply(q, all), nil
}

func (r *SQLiteRepository) Count(ctx context.Context, q *query.Query) (int, error) {
	if q == nil {
		var n int
		err := r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM cache_entries WHERE collection = ? AND expires_at > ?`,
			r.collection, r.now().UnixNano()).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("failed to count %s: %w", r.collection, err)
		}
		return n, nil
	}
	matched, err := r.GetByQuery(ctx, q.Unpaginated())
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (r *SQLiteRepository) Save(ctx context.Context, e models.Entity) (string, error) {
	id := e.ID()
	if id == "" {
		return "", ErrMissingID
	}
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s[%s]: %w", r.collection, id, err)
	}
	now := r.now()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO cache_entries (collection, id, data, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			data = excluded.data,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, r.collection, id, string(data), r.expiry(now), now.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to save %s[%s]: %w", r.collection, id, err)
	}
	return id, nil
}

func (r *SQLiteRepository) SaveAll(ctx context.Context, es []models.Entity) ([]string, error) {
	ids := make([]string, 0, len(es))
	err := dbx.WithinTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		txr := r.withDB(tx)
		for _, e := range es {
			id, err := txr.Save(ctx, e)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE collection = ? AND id = ? AND expires_at > ?`,
		r.collection, id, r.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s[%s]: %w", r.collection, id, err)
	}
	return dbx.Affected(res)
}

func (r *SQLiteRepository) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	total := 0
	err := dbx.WithinTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		txr := r.withDB(tx)
		for _, id := range ids {
			n, err := txr.Delete(ctx, id)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *SQLiteRepository) DeleteByQuery(ctx context.Context, q *query.Query) (int, error) {
	total := 0
	err := dbx.WithinTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		txr := r.withDB(tx)
		matched, err := txr.GetByQuery(ctx, q)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(matched))
		for _, e := range matched {
			ids = append(ids, e.ID())
		}
		total, err = txr.DeleteByIDs(ctx, ids)
		return err
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *SQLiteRepository) Apply(ctx context.Context, upserts []models.Entity, deletes []string) error {
	return dbx.WithinTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		txr := r.withDB(tx)
		for _, id := range deletes {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM cache_entries WHERE collection = ? AND id = ?`, r.collection, id); err != nil {
				return fmt.Errorf("failed to delete %s[%s]: %w", r.collection, id, err)
			}
		}
		for _, e := range upserts {
			if _, err := txr.Save(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE collection = ?`, r.collection)
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", r.collection, err)
	}
	return nil
}

func (r *SQLiteRepository) PurgeExpired(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE collection = ? AND expires_at <= ?`,
		r.collection, r.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired %s: %w", r.collection, err)
	}
	return dbx.Affected(res)
}

func (r *SQLiteRepository) list(ctx context.Context, q string, args ...any) ([]models.Entity, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.collection, err)
	}
	defer rows.Close()

	out := make([]models.Entity, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", r.collection, err)
		}
		e, err := models.UnmarshalEntity([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", r.collection, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", r.collection, err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
