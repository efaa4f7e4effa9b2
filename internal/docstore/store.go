// Package docstore defines the document-store contract shared by the
// configuration store and the student directory.
//
// Three backends implement it:
//
//   - mongostore: MongoDB through the official v2 driver (production default)
//   - pgstore: PostgreSQL JSONB tables through pgxpool
//   - memstore: an in-process map used by tests and the "memory" driver
//
// Documents are plain map[string]any values. Every backend round-trips
// time.Time values and reports the store-assigned identifier under the
// "id" key, so callers never see driver-specific types.
package docstore

import (
	"context"
	"errors"
)

// IDField is the document key that carries the store-assigned identifier.
const IDField = "id"

var (
	// ErrNotFound is returned by FindOne when no document matches.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidID is returned when an identifier is not syntactically valid
	// for the backend (e.g. not a 24-hex ObjectID for MongoDB).
	ErrInvalidID = errors.New("invalid document id")

	// ErrConnection is returned when the store cannot be reached at
	// acquisition time. It is fatal and never retried.
	ErrConnection = errors.New("document store connection failed")
)

// Document is a semi-structured record.
type Document map[string]any

// Store hands out collections backed by one long-lived client.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Collection is the set of operations the core consumes. Each call is
// atomic on its own; sequences of calls are not.
type Collection interface {
	// InsertOne stores doc and returns the new identifier.
	InsertOne(ctx context.Context, doc Document) (string, error)

	// FindOne returns the first document matching f, or ErrNotFound.
	FindOne(ctx context.Context, f Filter) (Document, error)

	// Aggregate runs the stages of p in order.
	Aggregate(ctx context.Context, p Pipeline) ([]Document, error)

	// Count returns the number of documents matching f.
	Count(ctx context.Context, f Filter) (int64, error)

	// UpdateOne merges set into the first document matching f and returns
	// the number of documents whose contents actually changed.
	UpdateOne(ctx context.Context, f Filter, set Document) (int64, error)

	// DeleteOne removes the first document matching f and returns the
	// number removed.
	DeleteOne(ctx context.Context, f Filter) (int64, error)

	// ReplaceOne replaces the first document matching f with doc. With
	// upsert, doc is inserted when nothing matches.
	ReplaceOne(ctx context.Context, f Filter, doc Document, upsert bool) error
}
