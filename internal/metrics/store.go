package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/roster/internal/docstore"
)

// InstrumentStore wraps s so every collection operation is timed.
func InstrumentStore(s docstore.Store, m *Metrics) docstore.Store {
	if m == nil {
		return s
	}
	return &instrumentedStore{Store: s, m: m}
}

type instrumentedStore struct {
	docstore.Store
	m *Metrics
}

func (s *instrumentedStore) Collection(name string) docstore.Collection {
	return &instrumentedCollection{next: s.Store.Collection(name), name: name, m: s.m}
}

// Unwrap returns the wrapped store, for callers that need backend
// specific methods such as EnsureIndex.
func (s *instrumentedStore) Unwrap() docstore.Store {
	return s.Store
}

type instrumentedCollection struct {
	next docstore.Collection
	name string
	m    *Metrics
}

func (c *instrumentedCollection) InsertOne(ctx context.Context, doc docstore.Document) (id string, err error) {
	defer c.observe("insert_one", time.Now(), &err)
	return c.next.InsertOne(ctx, doc)
}

func (c *instrumentedCollection) FindOne(ctx context.Context, f docstore.Filter) (doc docstore.Document, err error) {
	defer c.observe("find_one", time.Now(), &err)
	return c.next.FindOne(ctx, f)
}

func (c *instrumentedCollection) Aggregate(ctx context.Context, p docstore.Pipeline) (docs []docstore.Document, err error) {
	defer c.observe("aggregate", time.Now(), &err)
	return c.next.Aggregate(ctx, p)
}

func (c *instrumentedCollection) Count(ctx context.Context, f docstore.Filter) (n int64, err error) {
	defer c.observe("count", time.Now(), &err)
	return c.next.Count(ctx, f)
}

func (c *instrumentedCollection) UpdateOne(ctx context.Context, f docstore.Filter, set docstore.Document) (n int64, err error) {
	defer c.observe("update_one", time.Now(), &err)
	return c.next.UpdateOne(ctx, f, set)
}

func (c *instrumentedCollection) DeleteOne(ctx context.Context, f docstore.Filter) (n int64, err error) {
	defer c.observe("delete_one", time.Now(), &err)
	return c.next.DeleteOne(ctx, f)
}

func (c *instrumentedCollection) ReplaceOne(ctx context.Context, f docstore.Filter, doc docstore.Document, upsert bool) (err error) {
	defer c.observe("replace_one", time.Now(), &err)
	return c.next.ReplaceOne(ctx, f, doc, upsert)
}

// observe treats not-found as a normal result rather than a store error.
func (c *instrumentedCollection) observe(op string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, docstore.ErrNotFound) {
		err = nil
	}
	c.m.ObserveStoreOp(c.name, op, start, err)
}
