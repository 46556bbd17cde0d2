package appdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/dbx"
	"github.com/dmitrijs2005/kinveysync/internal/query"
	"github.com/dmitrijs2005/kinveysync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func decode(raw []byte) (models.Document, error) {
	var d models.Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return d, nil
}

func encode(d models.Document) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return string(b), nil
}

// filtered reports whether q narrows the collection at all.
func filtered(q *query.Query) bool {
	return q != nil && len(q.Predicates()) > 0
}

func (r *PostgresRepository) Get(ctx context.Context, appKey, collection, id string) (models.Document, error) {
	query :=
		`SELECT body FROM documents
		 WHERE app_key = $1 AND collection = $2 AND id = $3`

	var raw []byte
	err := r.db.QueryRowContext(ctx, query, appKey, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return decode(raw)
}

// scan loads the whole collection in insertion order.
func (r *PostgresRepository) scan(ctx context.Context, appKey, collection string) ([]models.Document, error) {
	query :=
		`SELECT body FROM documents
		 WHERE app_key = $1 AND collection = $2
		 ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, appKey, collection)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		d, err := decode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return docs, nil
}

func (r *PostgresRepository) Find(ctx context.Context, appKey, collection string, q *query.Query) ([]models.Document, error) {
	docs, err := r.scan(ctx, appKey, collection)
	if err != nil {
		return nil, err
	}
	return query.Apply(q, docs), nil
}

func (r *PostgresRepository) Count(ctx context.Context, appKey, collection string, q *query.Query) (int, error) {
	if !filtered(q) {
		var n int
		err := r.db.QueryRowContext(ctx,
			`SELECT count(*) FROM documents WHERE app_key = $1 AND collection = $2`,
			appKey, collection).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("db error: %w", err)
		}
		return n, nil
	}
	docs, err := r.Find(ctx, appKey, collection, q.Unpaginated())
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (r *PostgresRepository) Insert(ctx context.Context, appKey, collection string, doc models.Document) error {
	body, err := encode(doc)
	if err != nil {
		return err
	}

	query :=
		`INSERT INTO documents (app_key, collection, id, body)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (app_key, collection, id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, appKey, collection, doc.ID(), body)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := dbx.Affected(res)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, appKey, collection string, doc models.Document) error {
	body, err := encode(doc)
	if err != nil {
		return err
	}

	query :=
		`INSERT INTO documents (app_key, collection, id, body)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (app_key, collection, id)
		 DO UPDATE SET body = EXCLUDED.body, updated_at = now()`

	if _, err := r.db.ExecContext(ctx, query, appKey, collection, doc.ID(), body); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, appKey, collection, id string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE app_key = $1 AND collection = $2 AND id = $3`,
		appKey, collection, id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.Affected(res)
}

// DeleteByQuery removes the documents matching q, ignoring its sort and
// pagination. Callers wanting all-or-nothing run it inside a transaction.
func (r *PostgresRepository) DeleteByQuery(ctx context.Context, appKey, collection string, q *query.Query) (int, error) {
	if !filtered(q) {
		res, err := r.db.ExecContext(ctx,
			`DELETE FROM documents WHERE app_key = $1 AND collection = $2`,
			appKey, collection)
		if err != nil {
			return 0, fmt.Errorf("db error: %w", err)
		}
		return dbx.Affected(res)
	}

	docs, err := r.Find(ctx, appKey, collection, q.Unpaginated())
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, d := range docs {
		n, err := r.Delete(ctx, appKey, collection, d.ID())
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, nil
}
