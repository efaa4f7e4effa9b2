// Package settings keeps runtime configuration in a single persisted
// document and serves it from a process-wide cache.
//
// The stored layout is one document per collection:
//
//	{ "values": { "ALGORITHM": "HS256", ... } }
//
// Reconcile fills missing or empty keys from a set of defaults without
// touching values an operator has already set, writes the result back
// with a full replace, refreshes the cache and mirrors every value into
// the process environment for code that still reads os.Getenv.
//
// Reconcile is a read-modify-replace with no compare-and-swap. Call it
// once at startup, before serving traffic. Concurrent callers inside one
// process are serialized; separate processes reconciling at the same
// time can lose each other's additions.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/JonMunkholm/roster/internal/docstore"
	"github.com/JonMunkholm/roster/internal/metrics"
)

// DefaultCollection is the collection holding the configuration document.
const DefaultCollection = "app_config"

const valuesField = "values"

// Environment is the process environment. Tests substitute a map.
type Environment interface {
	LookupEnv(key string) (string, bool)
	Setenv(key, value string) error
}

type osEnvironment struct{}

func (osEnvironment) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }
func (osEnvironment) Setenv(key, value string) error      { return os.Setenv(key, value) }

// Store is the configuration store.
type Store struct {
	coll    docstore.Collection
	cache   *Cache
	env     Environment
	metrics *metrics.Metrics

	// reconcileMu serializes Reconcile within the process.
	reconcileMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithEnvironment replaces the process environment used for mirroring.
func WithEnvironment(env Environment) Option {
	return func(s *Store) { s.env = env }
}

// WithCache shares an existing cache.
func WithCache(c *Cache) Option {
	return func(s *Store) { s.cache = c }
}

// WithMetrics records cache hits and reconciliations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New returns a Store over coll.
func New(coll docstore.Collection, opts ...Option) *Store {
	s := &Store{
		coll:  coll,
		cache: NewCache(),
		env:   osEnvironment{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile merges defaults into the stored configuration. A key is
// filled when it is absent, or when it is stored empty and the default
// is not. Existing non-empty values always win.
func (s *Store) Reconcile(ctx context.Context, defaults map[string]string) error {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	values, found, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var added []string
	for k, v := range defaults {
		cur, ok := values[k]
		if ok && (cur != "" || v == "") {
			continue
		}
		values[k] = v
		added = append(added, k)
	}

	written := len(added) > 0 || !found
	if written {
		doc := docstore.Document{valuesField: values}
		if err := s.coll.ReplaceOne(ctx, docstore.Filter{}, doc, true); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	s.cache.Replace(values)

	var exported []string
	for k, v := range values {
		if _, ok := s.env.LookupEnv(k); ok {
			continue
		}
		if err := s.env.Setenv(k, v); err != nil {
			return fmt.Errorf("failed to export config %s: %w", k, err)
		}
		exported = append(exported, k)
	}

	sort.Strings(added)
	sort.Strings(exported)
	s.metrics.ObserveReconcile(written)
	slog.Info("config reconciled",
		"keys", len(values),
		"added", added,
		"exported", exported,
		"written", written,
	)
	return nil
}

// Get returns the value for key, consulting the stored document on a
// cache miss. def is returned when neither has the key. Get never writes.
func (s *Store) Get(ctx context.Context, key, def string) (string, error) {
	if v, ok := s.cache.Lookup(key); ok {
		s.metrics.ObserveConfigLookup(true)
		return v, nil
	}
	s.metrics.ObserveConfigLookup(false)

	values, found, err := s.load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if !found {
		return def, nil
	}

	s.cache.Merge(values)
	if v, ok := values[key]; ok {
		return v, nil
	}
	return def, nil
}

// GetAll returns a copy of every configuration value.
func (s *Store) GetAll(ctx context.Context) (map[string]string, error) {
	if s.cache.Len() > 0 {
		s.metrics.ObserveConfigLookup(true)
		return s.cache.Snapshot(), nil
	}
	s.metrics.ObserveConfigLookup(false)

	values, _, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	s.cache.Merge(values)

	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out, nil
}

// Invalidate drops every cached value. The next read reloads from the
// stored document.
func (s *Store) Invalidate() {
	s.cache.Clear()
}

// load reads the singleton document. found is false when the collection
// is empty; values is never nil.
func (s *Store) load(ctx context.Context) (values map[string]string, found bool, err error) {
	doc, err := s.coll.FindOne(ctx, docstore.Filter{})
	if errors.Is(err, docstore.ErrNotFound) {
		return make(map[string]string), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return decodeValues(doc[valuesField]), true, nil
}

func decodeValues(raw any) map[string]string {
	out := make(map[string]string)
	switch m := raw.(type) {
	case map[string]any:
		for k, v := range m {
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				out[k] = s
			} else {
				out[k] = fmt.Sprint(v)
			}
		}
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
