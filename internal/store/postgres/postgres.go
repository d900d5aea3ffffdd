// Package postgres stores documents as JSONB rows in a single table keyed by
// (collection, id).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	"github.com/tieenbuii/WEB-API/pkg/database"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

const returning = "RETURNING id, doc, created_at, updated_at"

// Backend opens collections on a PostgreSQL pool.
type Backend struct {
	db database.DBTX
}

var _ store.Backend = (*Backend)(nil)

// NewBackend creates a backend over db.
func NewBackend(db database.DBTX) *Backend {
	return &Backend{db: db}
}

// Collection returns the accessor for name.
func (b *Backend) Collection(name string) store.Accessor {
	return &Collection{db: b.db, name: name}
}

// Ping checks the pool when it supports pinging.
func (b *Backend) Ping(ctx context.Context) error {
	if p, ok := b.db.(database.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (b *Backend) Close(context.Context) error { return nil }

// Collection implements store.Accessor for one collection.
type Collection struct {
	db   database.DBTX
	name string
}

var _ store.Accessor = (*Collection)(nil)

// FindByID retrieves a document by id.
func (c *Collection) FindByID(ctx context.Context, id string) (doc domain.Document, err error) {
	query := `SELECT id, doc, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`
	ctx, end := database.TraceQuery(ctx, "FindByID", query)
	defer func() { end(err) }()

	return scanOne(c.db.QueryRow(ctx, query, c.name, id))
}

// Find runs a filtered, sorted and paged query. Projection is applied after
// decoding.
func (c *Collection) Find(ctx context.Context, q store.Query) (docs []domain.Document, err error) {
	w, err := buildWhere(c.name, q.Filter)
	if err != nil {
		return nil, err
	}
	order, err := orderBy(q.Sort)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, doc, created_at, updated_at FROM documents WHERE %s ORDER BY %s`, w.sql(), order)
	if q.Limit > 0 {
		query += " LIMIT " + w.arg(q.Limit)
	}
	if q.Skip > 0 {
		query += " OFFSET " + w.arg(q.Skip)
	}

	ctx, end := database.TraceQuery(ctx, "Find", query)
	defer func() { end(err) }()

	rows, err := c.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.name, err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, domain.Document(q.Fields.Apply(doc)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.name, err)
	}
	return docs, nil
}

// Count returns the number of documents matching f.
func (c *Collection) Count(ctx context.Context, f store.Filter) (n int64, err error) {
	w, err := buildWhere(c.name, f)
	if err != nil {
		return 0, err
	}
	query := "SELECT COUNT(*) FROM documents WHERE " + w.sql()
	ctx, end := database.TraceQuery(ctx, "Count", query)
	defer func() { end(err) }()

	if err := c.db.QueryRow(ctx, query, w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return n, nil
}

// Create inserts a new document.
func (c *Collection) Create(ctx context.Context, doc domain.Document) (out domain.Document, err error) {
	d := store.PrepareCreate(doc)
	body, createdAt, updatedAt, err := split(d)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO documents (collection, id, doc, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		` + returning
	ctx, end := database.TraceQuery(ctx, "Create", query)
	defer func() { end(err) }()

	out, err = scanOne(c.db.QueryRow(ctx, query, c.name, d.ID(), body, createdAt, updatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("document %s: %w", d.ID(), apperrors.ErrConflict)
		}
		return nil, err
	}
	return out, nil
}

// FindByIDAndUpdate merges patch into the stored document.
func (c *Collection) FindByIDAndUpdate(ctx context.Context, id string, patch domain.Document, _ store.UpdateOptions) (out domain.Document, err error) {
	body, _, updatedAt, err := split(store.PreparePatch(patch))
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE documents SET doc = doc || $3::jsonb, updated_at = COALESCE($4, NOW())
		WHERE collection = $1 AND id = $2
		` + returning
	ctx, end := database.TraceQuery(ctx, "FindByIDAndUpdate", query)
	defer func() { end(err) }()

	return scanOne(c.db.QueryRow(ctx, query, c.name, id, body, updatedAt))
}

// FindByIDAndDelete removes a document and returns it.
func (c *Collection) FindByIDAndDelete(ctx context.Context, id string) (out domain.Document, err error) {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2 ` + returning
	ctx, end := database.TraceQuery(ctx, "FindByIDAndDelete", query)
	defer func() { end(err) }()

	return scanOne(c.db.QueryRow(ctx, query, c.name, id))
}

// Save replaces the stored document body and bumps its version.
func (c *Collection) Save(ctx context.Context, doc domain.Document, _ store.SaveOptions) (out domain.Document, err error) {
	d := store.PrepareSave(doc)
	d[domain.FieldUpdatedAt] = store.Now()
	body, _, updatedAt, err := split(d)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE documents SET doc = $3::jsonb, updated_at = COALESCE($4, NOW())
		WHERE collection = $1 AND id = $2
		` + returning
	ctx, end := database.TraceQuery(ctx, "Save", query)
	defer func() { end(err) }()

	return scanOne(c.db.QueryRow(ctx, query, c.name, d.ID(), body, updatedAt))
}

// DeleteMany removes the listed ids and returns how many existed.
func (c *Collection) DeleteMany(ctx context.Context, ids []string) (n int64, err error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM documents WHERE collection = $1 AND id = ANY($2)`
	ctx, end := database.TraceQuery(ctx, "DeleteMany", query)
	defer func() { end(err) }()

	tag, err := c.db.Exec(ctx, query, c.name, ids)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.name, err)
	}
	return tag.RowsAffected(), nil
}

// Increment adds delta to an integer field in one statement.
func (c *Collection) Increment(ctx context.Context, id, field string, delta int64) (out domain.Document, err error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		UPDATE documents
		SET doc = jsonb_set(doc, '{%[1]s}', to_jsonb(COALESCE((doc->>'%[1]s')::bigint, 0) + $3)),
		    updated_at = NOW()
		WHERE collection = $1 AND id = $2
		`, field) + returning
	ctx, end := database.TraceQuery(ctx, "Increment", query)
	defer func() { end(err) }()

	return scanOne(c.db.QueryRow(ctx, query, c.name, id, delta))
}

// DecrementIfAvailable subtracts n only while the field holds at least n.
// The guard and the write are one UPDATE, so the row lock serializes
// concurrent callers.
func (c *Collection) DecrementIfAvailable(ctx context.Context, id, field string, n int64) (out domain.Document, err error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		UPDATE documents
		SET doc = jsonb_set(doc, '{%[1]s}', to_jsonb(COALESCE((doc->>'%[1]s')::bigint, 0) - $3)),
		    updated_at = NOW()
		WHERE collection = $1 AND id = $2 AND COALESCE((doc->>'%[1]s')::bigint, 0) >= $3
		`, field) + returning
	ctx, end := database.TraceQuery(ctx, "DecrementIfAvailable", query)
	defer func() { end(err) }()

	out, err = scanOne(c.db.QueryRow(ctx, query, c.name, id, n))
	if !errors.Is(err, apperrors.ErrNotFound) {
		return out, err
	}

	var exists bool
	err = c.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`, c.name, id,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check %s %s: %w", c.name, id, err)
	}
	if exists {
		return nil, apperrors.ErrInsufficient
	}
	return nil, apperrors.ErrNotFound
}

// split separates the column-backed keys from the JSONB body.
func split(d domain.Document) (body string, createdAt, updatedAt any, err error) {
	createdAt = timeOrNil(d[domain.FieldCreatedAt])
	updatedAt = timeOrNil(d[domain.FieldUpdatedAt])
	raw, err := json.Marshal(d.Without(domain.FieldID, domain.FieldCreatedAt, domain.FieldUpdatedAt))
	if err != nil {
		return "", nil, nil, fmt.Errorf("encode document: %w", err)
	}
	return string(raw), createdAt, updatedAt, nil
}

func timeOrNil(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	}
	return nil
}

func scanOne(row pgx.Row) (domain.Document, error) {
	var (
		id                   string
		raw                  []byte
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &raw, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc := domain.Document{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
	}
	doc[domain.FieldID] = id
	doc[domain.FieldCreatedAt] = createdAt.UTC()
	doc[domain.FieldUpdatedAt] = updatedAt.UTC()
	return doc, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
