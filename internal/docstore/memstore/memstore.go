// Package memstore is an in-process docstore.Store. It backs the "memory"
// store driver and every package test that needs a document store.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/roster/internal/docstore"
	"github.com/google/uuid"
)

// Store holds named collections in memory.
type Store struct {
	mu          sync.Mutex
	collections map[string]*Collection
}

// New returns an empty Store.
func New() *Store {
	return &Store{collections: make(map[string]*Collection)}
}

// Collection returns the named collection, creating it on first use.
func (s *Store) Collection(name string) docstore.Collection {
	return s.collection(name)
}

func (s *Store) collection(name string) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &Collection{name: name}
		s.collections[name] = c
	}
	return c
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

// Collection is an ordered slice of documents guarded by a mutex.
type Collection struct {
	name string

	mu   sync.RWMutex
	docs []docstore.Document
}

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

func (c *Collection) InsertOne(ctx context.Context, doc docstore.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stored := copyDocument(doc)
	id := uuid.NewString()
	stored[docstore.IDField] = id

	c.mu.Lock()
	c.docs = append(c.docs, stored)
	c.mu.Unlock()

	return id, nil
}

func (c *Collection) FindOne(ctx context.Context, f docstore.Filter) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateFilter(f); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, d := range c.docs {
		if Matches(d, f) {
			return copyDocument(d), nil
		}
	}
	return nil, docstore.ErrNotFound
}

func (c *Collection) Aggregate(ctx context.Context, p docstore.Pipeline) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	out := make([]docstore.Document, 0, len(c.docs))
	for _, d := range c.docs {
		out = append(out, copyDocument(d))
	}
	c.mu.RUnlock()

	for _, st := range p {
		switch st := st.(type) {
		case docstore.Match:
			if err := validateFilter(st.Filter); err != nil {
				return nil, err
			}
			kept := out[:0]
			for _, d := range out {
				if Matches(d, st.Filter) {
					kept = append(kept, d)
				}
			}
			out = kept
		case docstore.Sort:
			sortDocuments(out, st.Fields)
		case docstore.Skip:
			if st.N >= int64(len(out)) {
				out = out[:0]
			} else if st.N > 0 {
				out = out[st.N:]
			}
		case docstore.Limit:
			if st.N >= 0 && st.N < int64(len(out)) {
				out = out[:st.N]
			}
		default:
			return nil, fmt.Errorf("memstore: unsupported stage %T", st)
		}
	}
	return out, nil
}

func (c *Collection) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateFilter(f); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var n int64
	for _, d := range c.docs {
		if Matches(d, f) {
			n++
		}
	}
	return n, nil
}

func (c *Collection) UpdateOne(ctx context.Context, f docstore.Filter, set docstore.Document) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateFilter(f); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range c.docs {
		if !Matches(d, f) {
			continue
		}
		changed := false
		for k, v := range set {
			if k == docstore.IDField {
				continue
			}
			if old, ok := d[k]; ok && equalValues(old, v) {
				continue
			}
			d[k] = copyValue(v)
			changed = true
		}
		if changed {
			return 1, nil
		}
		return 0, nil
	}
	return 0, nil
}

func (c *Collection) DeleteOne(ctx context.Context, f docstore.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateFilter(f); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, d := range c.docs {
		if Matches(d, f) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (c *Collection) ReplaceOne(ctx context.Context, f docstore.Filter, doc docstore.Document, upsert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateFilter(f); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, d := range c.docs {
		if Matches(d, f) {
			replaced := copyDocument(doc)
			replaced[docstore.IDField] = d[docstore.IDField]
			c.docs[i] = replaced
			return nil
		}
	}
	if !upsert {
		return nil
	}

	inserted := copyDocument(doc)
	inserted[docstore.IDField] = uuid.NewString()
	c.docs = append(c.docs, inserted)
	return nil
}

// Matches reports whether d satisfies f.
func Matches(d docstore.Document, f docstore.Filter) bool {
	if f.ID != "" && d.String(docstore.IDField) != f.ID {
		return false
	}
	if f.Search != nil {
		term := strings.ToLower(f.Search.Term)
		for _, field := range f.Search.Fields {
			if strings.Contains(strings.ToLower(d.String(field)), term) {
				return true
			}
		}
		return false
	}
	return true
}

func validateFilter(f docstore.Filter) error {
	if f.ID == "" {
		return nil
	}
	if _, err := uuid.Parse(f.ID); err != nil {
		return fmt.Errorf("%w: %q", docstore.ErrInvalidID, f.ID)
	}
	return nil
}

func sortDocuments(docs []docstore.Document, fields []docstore.SortField) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, sf := range fields {
			c := compareValues(docs[i][sf.Field], docs[j][sf.Field])
			if c == 0 {
				continue
			}
			if sf.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareValues orders missing values first, like MongoDB does.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func equalValues(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func copyDocument(d docstore.Document) docstore.Document {
	out := make(docstore.Document, len(d))
	for k, v := range d {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue detaches nested maps and slices so callers cannot mutate
// stored state. Nested maps are normalized to map[string]any to match
// what the other backends return.
func copyValue(v any) any {
	switch v := v.(type) {
	case docstore.Document:
		return map[string]any(copyDocument(v))
	case map[string]any:
		return map[string]any(copyDocument(v))
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
