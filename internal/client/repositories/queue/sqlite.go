package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/dbx"
)

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, m *models.Mutation) error {
	if !m.Operation.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOperation, m.Operation)
	}

	var payload sql.NullString
	if m.Payload != nil {
		b, err := json.Marshal(m.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode mutation payload: %w", err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}

	m.CreatedAt = r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_queue (collection, operation, entity_id, query, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.Collection, string(m.Operation), m.EntityID, m.Query, payload, m.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to enqueue %s %s: %w", m.Operation, m.Collection, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read mutation seq: %w", err)
	}
	m.Seq = seq
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, collection string) ([]models.Mutation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, collection, operation, entity_id, query, payload, created_at
		FROM sync_queue WHERE collection = ? ORDER BY seq
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue of %s: %w", collection, err)
	}
	defer rows.Close()

	out := make([]models.Mutation, 0)
	for rows.Next() {
		var (
			m       models.Mutation
			op      string
			payload sql.NullString
			created int64
		)
		if err := rows.Scan(&m.Seq, &m.Collection, &op, &m.EntityID, &m.Query, &payload, &created); err != nil {
			return nil, fmt.Errorf("failed to scan queue row: %w", err)
		}
		m.Operation = models.Operation(op)
		m.CreatedAt = time.Unix(0, created).UTC()
		if payload.Valid {
			e, err := models.UnmarshalEntity([]byte(payload.String))
			if err != nil {
				return nil, fmt.Errorf("failed to decode payload of mutation %d: %w", m.Seq, err)
			}
			m.Payload = e
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue of %s: %w", collection, err)
	}
	return n, nil
}

func (r *SQLiteRepository) CountForEntity(ctx context.Context, collection, id string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE collection = ? AND entity_id = ?`, collection, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue of %s[%s]: %w", collection, id, err)
	}
	return n, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, seq int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE seq = ?`, seq)
	if err != nil {
		return fmt.Errorf("failed to delete mutation %d: %w", seq, err)
	}
	n, err := dbx.Affected(res)
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: seq %d", ErrNotFound, seq)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context, collection string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE collection = ?`, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to clear queue of %s: %w", collection, err)
	}
	return dbx.Affected(res)
}

func (r *SQLiteRepository) Retarget(ctx context.Context, collection, oldID, newID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET entity_id = ?,
		    payload = CASE WHEN payload IS NULL THEN NULL ELSE json_set(payload, '$._id', ?) END
		WHERE collection = ? AND entity_id = ?
	`, newID, newID, collection, oldID)
	if err != nil {
		return 0, fmt.Errorf("failed to retarget %s[%s]: %w", collection, oldID, err)
	}
	return dbx.Affected(res)
}

func (r *SQLiteRepository) Collections(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT collection FROM sync_queue GROUP BY collection ORDER BY MIN(seq)`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued collections: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collections: %w", err)
	}
	return out, nil
}
