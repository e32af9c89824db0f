package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the store can
// run inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps every collection in a single documents table with
// a JSONB payload column, queried through containment predicates.
type PostgresStore struct {
	db DBTX
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, collection, id string, data any) (*Document, error) {
	if id == "" {
		id = uuid.NewString()
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	query := `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3)
		RETURNING data, created_at
	`

	doc := Document{ID: id}
	err = s.db.QueryRow(ctx, query, collection, id, payload).Scan(&doc.Data, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	query := `
		SELECT id, data, created_at
		FROM documents
		WHERE collection = $1 AND id = $2
	`

	var doc Document
	err := s.db.QueryRow(ctx, query, collection, id).Scan(&doc.ID, &doc.Data, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &doc, nil
}

func (s *PostgresStore) List(ctx context.Context, collection string, q Query) ([]Document, int, error) {
	where, args, err := buildWhere(collection, q.Filters)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM documents WHERE " + where
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := "SELECT id, data, created_at FROM documents WHERE " + where + orderClause(q)
	if q.Limit > 0 {
		listQuery += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		listQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Data, &doc.CreatedAt); err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, patch map[string]any) (*Document, error) {
	payload, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshal patch: %w", err)
	}

	query := `
		UPDATE documents
		SET data = data || $3::jsonb
		WHERE collection = $1 AND id = $2
		RETURNING id, data, created_at
	`

	var doc Document
	err = s.db.QueryRow(ctx, query, collection, id, payload).Scan(&doc.ID, &doc.Data, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &doc, nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM documents
		WHERE collection = $1 AND id = $2
	`, collection, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func buildWhere(collection string, filters []Filter) (string, []any, error) {
	clauses := []string{"collection = $1"}
	args := []any{collection}

	for _, f := range filters {
		var predicate any
		switch f.Op {
		case OpEqual:
			predicate = map[string]any{f.Field: f.Value}
		case OpContains:
			predicate = map[string]any{f.Field: []any{f.Value}}
		default:
			return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}

		encoded, err := json.Marshal(predicate)
		if err != nil {
			return "", nil, fmt.Errorf("marshal filter: %w", err)
		}

		args = append(args, encoded)
		clauses = append(clauses, fmt.Sprintf("data @> $%d::jsonb", len(args)))
	}

	return strings.Join(clauses, " AND "), args, nil
}

func orderClause(q Query) string {
	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}

	if q.OrderField == "" {
		return fmt.Sprintf(" ORDER BY created_at %s, seq %s", direction, direction)
	}
	// Cast instead of comparing strings: RFC3339 fractions are
	// variable-width, so text order and time order disagree.
	return fmt.Sprintf(" ORDER BY (data->>'%s')::timestamptz %s, seq %s", q.OrderField, direction, direction)
}
