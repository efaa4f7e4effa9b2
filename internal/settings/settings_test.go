package settings

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/JonMunkholm/roster/internal/docstore"
	"github.com/JonMunkholm/roster/internal/docstore/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapEnv map[string]string

func (e mapEnv) LookupEnv(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

func (e mapEnv) Setenv(key, value string) error {
	e[key] = value
	return nil
}

// countingCollection counts replace calls to detect persisted writes.
type countingCollection struct {
	docstore.Collection
	replaces int
	finds    int
}

func (c *countingCollection) ReplaceOne(ctx context.Context, f docstore.Filter, doc docstore.Document, upsert bool) error {
	c.replaces++
	return c.Collection.ReplaceOne(ctx, f, doc, upsert)
}

func (c *countingCollection) FindOne(ctx context.Context, f docstore.Filter) (docstore.Document, error) {
	c.finds++
	return c.Collection.FindOne(ctx, f)
}

func newTestStore(t *testing.T) (*Store, *countingCollection, mapEnv) {
	t.Helper()
	coll := &countingCollection{Collection: memstore.New().Collection(DefaultCollection)}
	env := mapEnv{}
	return New(coll, WithEnvironment(env)), coll, env
}

func storedValues(t *testing.T, coll docstore.Collection) map[string]any {
	t.Helper()
	doc, err := coll.FindOne(context.Background(), docstore.Filter{})
	require.NoError(t, err)
	values, ok := doc[valuesField].(map[string]any)
	require.True(t, ok, "values has type %T", doc[valuesField])
	return values
}

func TestReconcile_EmptyCollection(t *testing.T) {
	s, coll, env := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Reconcile(ctx, map[string]string{"ALGORITHM": "HS256"}))

	assert.Equal(t, map[string]any{"ALGORITHM": "HS256"}, storedValues(t, coll.Collection))
	v, ok := s.cache.Lookup("ALGORITHM")
	assert.True(t, ok)
	assert.Equal(t, "HS256", v)
	assert.Equal(t, "HS256", env["ALGORITHM"])
	assert.Equal(t, 1, coll.replaces)
}

func TestReconcile_NeverOverwritesExistingValues(t *testing.T) {
	s, coll, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, coll.Collection.ReplaceOne(ctx, docstore.Filter{}, docstore.Document{
		valuesField: map[string]string{"ALGORITHM": "RS256", "SECRET_KEY": ""},
	}, true))

	require.NoError(t, s.Reconcile(ctx, map[string]string{
		"ALGORITHM":  "HS256",
		"SECRET_KEY": "generated",
		"NEW_KEY":    "fresh",
	}))

	assert.Equal(t, map[string]any{
		"ALGORITHM":  "RS256",
		"SECRET_KEY": "generated",
		"NEW_KEY":    "fresh",
	}, storedValues(t, coll.Collection))
}

func TestReconcile_Idempotent(t *testing.T) {
	s, coll, env := newTestStore(t)
	ctx := context.Background()
	defaults := map[string]string{
		"ALGORITHM":                   "HS256",
		"ACCESS_TOKEN_EXPIRE_MINUTES": "30",
		"SECRET_KEY":                  "",
	}

	require.NoError(t, s.Reconcile(ctx, defaults))
	first := storedValues(t, coll.Collection)
	firstCache := s.cache.Snapshot()
	firstEnv := map[string]string{}
	for k, v := range env {
		firstEnv[k] = v
	}
	require.Equal(t, 1, coll.replaces)

	require.NoError(t, s.Reconcile(ctx, defaults))

	assert.Equal(t, 1, coll.replaces, "second reconcile should not write")
	assert.Equal(t, first, storedValues(t, coll.Collection))
	assert.Equal(t, firstCache, s.cache.Snapshot())
	assert.Equal(t, firstEnv, map[string]string(env))
}

func TestReconcile_ExistingDocumentWithNothingMissing(t *testing.T) {
	s, coll, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, coll.Collection.ReplaceOne(ctx, docstore.Filter{}, docstore.Document{
		valuesField: map[string]string{"ALGORITHM": "HS256"},
	}, true))

	require.NoError(t, s.Reconcile(ctx, map[string]string{"ALGORITHM": "HS512"}))
	assert.Equal(t, 0, coll.replaces)
}

func TestReconcile_EnvironmentAlreadySetWins(t *testing.T) {
	s, _, env := newTestStore(t)
	env["ALGORITHM"] = "from-env"

	require.NoError(t, s.Reconcile(context.Background(), map[string]string{"ALGORITHM": "HS256"}))

	assert.Equal(t, "from-env", env["ALGORITHM"])
	v, _ := s.cache.Lookup("ALGORITHM")
	assert.Equal(t, "HS256", v)
}

func TestReconcile_ClearsStaleCacheEntries(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.cache.Merge(map[string]string{"STALE": "x"})

	require.NoError(t, s.Reconcile(context.Background(), map[string]string{"A": "1"}))

	_, ok := s.cache.Lookup("STALE")
	assert.False(t, ok)
}

func TestReconcile_UsesProcessEnvironment(t *testing.T) {
	coll := memstore.New().Collection(DefaultCollection)
	s := New(coll)
	t.Setenv("ROSTER_TEST_RECONCILE_KEY", "preset")

	require.NoError(t, s.Reconcile(context.Background(), map[string]string{
		"ROSTER_TEST_RECONCILE_KEY": "default",
	}))

	v, err := s.Get(context.Background(), "ROSTER_TEST_RECONCILE_KEY", "")
	require.NoError(t, err)
	assert.Equal(t, "default", v)
	assert.Equal(t, "preset", os.Getenv("ROSTER_TEST_RECONCILE_KEY"))
}

func TestGet(t *testing.T) {
	t.Run("missing document returns default", func(t *testing.T) {
		s, coll, _ := newTestStore(t)
		v, err := s.Get(context.Background(), "ALGORITHM", "HS256")
		require.NoError(t, err)
		assert.Equal(t, "HS256", v)
		assert.Equal(t, 0, coll.replaces, "get must never write")
	})

	t.Run("miss loads document and caches every value", func(t *testing.T) {
		s, coll, _ := newTestStore(t)
		ctx := context.Background()
		require.NoError(t, coll.Collection.ReplaceOne(ctx, docstore.Filter{}, docstore.Document{
			valuesField: map[string]string{"A": "1", "B": "2"},
		}, true))

		v, err := s.Get(ctx, "A", "")
		require.NoError(t, err)
		assert.Equal(t, "1", v)
		assert.Equal(t, 1, coll.finds)

		v, err = s.Get(ctx, "B", "")
		require.NoError(t, err)
		assert.Equal(t, "2", v)
		assert.Equal(t, 1, coll.finds, "B should be served from cache")
	})

	t.Run("missing key returns default", func(t *testing.T) {
		s, coll, _ := newTestStore(t)
		ctx := context.Background()
		require.NoError(t, coll.Collection.ReplaceOne(ctx, docstore.Filter{}, docstore.Document{
			valuesField: map[string]string{"A": "1"},
		}, true))

		v, err := s.Get(ctx, "Z", "fallback")
		require.NoError(t, err)
		assert.Equal(t, "fallback", v)
	})

	t.Run("cache is authoritative once populated", func(t *testing.T) {
		s, coll, _ := newTestStore(t)
		ctx := context.Background()
		require.NoError(t, s.Reconcile(ctx, map[string]string{"A": "1"}))

		require.NoError(t, coll.Collection.ReplaceOne(ctx, docstore.Filter{}, docstore.Document{
			valuesField: map[string]string{"A": "changed"},
		}, true))

		v, err := s.Get(ctx, "A", "")
		require.NoError(t, err)
		assert.Equal(t, "1", v)

		s.Invalidate()
		v, err = s.Get(ctx, "A", "")
		require.NoError(t, err)
		assert.Equal(t, "changed", v)
	})
}

func TestGetAll(t *testing.T) {
	s, coll, _ := newTestStore(t)
	ctx := context.Background()

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, coll.Collection.ReplaceOne(ctx, docstore.Filter{}, docstore.Document{
		valuesField: map[string]string{"A": "1", "B": "2"},
	}, true))

	all, err = s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, all)

	all["A"] = "mutated"
	again, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", again["A"], "GetAll must return a copy")
	assert.Equal(t, 2, coll.finds)
}

type failingCollection struct{ docstore.Collection }

func (failingCollection) FindOne(context.Context, docstore.Filter) (docstore.Document, error) {
	return nil, errors.New("socket closed")
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	s := New(failingCollection{}, WithEnvironment(mapEnv{}))
	ctx := context.Background()

	err := s.Reconcile(ctx, map[string]string{"A": "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Contains(t, err.Error(), "socket closed")

	_, err = s.Get(ctx, "A", "")
	assert.Error(t, err)

	_, err = s.GetAll(ctx)
	assert.Error(t, err)
}
