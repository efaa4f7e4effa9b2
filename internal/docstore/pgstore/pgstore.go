// Package pgstore implements docstore.Store on PostgreSQL. Each
// collection is a table of (id uuid, doc jsonb, seq bigserial); seq keeps
// natural insertion order so "first matching document" is well defined.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/JonMunkholm/roster/internal/docstore"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the subset of pgx used here.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Config holds pool settings.
type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a docstore.Store over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var fieldName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Open creates the pool, pings it and makes sure a table exists for every
// named collection.
func Open(ctx context.Context, cfg Config, collections ...string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %w", docstore.ErrConnection, err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", docstore.ErrConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", docstore.ErrConnection, err)
	}

	s := &Store{pool: pool}
	for _, name := range collections {
		if err := s.EnsureCollection(ctx, name); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// EnsureCollection creates the backing table for name.
func (s *Store) EnsureCollection(ctx context.Context, name string) error {
	table := pgx.Identifier{name}.Sanitize()
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id  uuid PRIMARY KEY,
			doc jsonb NOT NULL,
			seq bigserial
		)`, table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	return nil
}

// EnsureIndex indexes the sortable form of a top-level field.
func (s *Store) EnsureIndex(ctx context.Context, collection, field string, desc bool) error {
	if !fieldName.MatchString(field) {
		return fmt.Errorf("invalid index field %q", field)
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	index := pgx.Identifier{collection + "_" + field + "_idx"}.Sanitize()
	table := pgx.Identifier{collection}.Sanitize()
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s ((COALESCE(doc->'%s'->>'$date', doc->>'%s')) %s)`,
		index, table, field, field, dir))
	if err != nil {
		return fmt.Errorf("create index %s.%s: %w", collection, field, err)
	}
	return nil
}

// Collection returns a handle on the named table. The table must exist.
func (s *Store) Collection(name string) docstore.Collection {
	return NewCollection(s.pool, name)
}

// Ping checks the pool can reach the server.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", docstore.ErrConnection, err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

// Collection is a docstore.Collection over one table.
type Collection struct {
	db    DBTX
	table string
}

// NewCollection binds a collection to db, which may be a pool or a tx.
func NewCollection(db DBTX, name string) *Collection {
	return &Collection{db: db, table: pgx.Identifier{name}.Sanitize()}
}

func (c *Collection) InsertOne(ctx context.Context, doc docstore.Document) (string, error) {
	body, err := encodeDocument(doc)
	if err != nil {
		return "", err
	}

	id := uuid.New()
	_, err = c.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)`, c.table), id, body)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (c *Collection) FindOne(ctx context.Context, f docstore.Filter) (docstore.Document, error) {
	q := newQuery(c.table)
	if err := q.match(f); err != nil {
		return nil, err
	}
	q.limit = q.arg(1)

	var (
		id   string
		body []byte
		seq  int64
	)
	err := c.db.QueryRow(ctx, q.sql(), q.args...).Scan(&id, &body, &seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, err
	}
	return decodeDocument(id, body)
}

func (c *Collection) Aggregate(ctx context.Context, p docstore.Pipeline) ([]docstore.Document, error) {
	q, err := compilePipeline(c.table, p)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.Query(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var (
			id   string
			body []byte
			seq  int64
		)
		if err := rows.Scan(&id, &body, &seq); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(id, body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Collection) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	q := newQuery(c.table)
	if err := q.match(f); err != nil {
		return 0, err
	}

	var n int64
	err := c.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s%s`, c.table, q.whereClause()), q.args...).Scan(&n)
	return n, err
}

// UpdateOne merges set into the stored document. Rows whose document
// already contains every key/value of set are not touched, so a no-op
// patch reports zero modifications like MongoDB does.
func (c *Collection) UpdateOne(ctx context.Context, f docstore.Filter, set docstore.Document) (int64, error) {
	body, err := encodeDocument(set)
	if err != nil {
		return 0, err
	}

	q := newQuery(c.table)
	patch := q.arg(body)
	if err := q.match(f); err != nil {
		return 0, err
	}

	tag, err := c.db.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET doc = doc || %s::jsonb
		 WHERE id = (SELECT id FROM %s%s ORDER BY seq LIMIT 1)
		   AND NOT (doc @> %s::jsonb)`,
		c.table, patch, c.table, q.whereClause(), patch), q.args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *Collection) DeleteOne(ctx context.Context, f docstore.Filter) (int64, error) {
	q := newQuery(c.table)
	if err := q.match(f); err != nil {
		return 0, err
	}

	tag, err := c.db.Exec(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE id = (SELECT id FROM %s%s ORDER BY seq LIMIT 1)`,
		c.table, c.table, q.whereClause()), q.args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReplaceOne is an UPDATE followed, when upserting and nothing matched,
// by an INSERT. The pair is not atomic.
func (c *Collection) ReplaceOne(ctx context.Context, f docstore.Filter, doc docstore.Document, upsert bool) error {
	body, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	q := newQuery(c.table)
	replacement := q.arg(body)
	if err := q.match(f); err != nil {
		return err
	}

	tag, err := c.db.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET doc = %s::jsonb
		 WHERE id = (SELECT id FROM %s%s ORDER BY seq LIMIT 1)`,
		c.table, replacement, c.table, q.whereClause()), q.args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 || !upsert {
		return nil
	}

	_, err = c.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)`, c.table), uuid.New(), body)
	return err
}
