// Package docstoretest holds a behavioural test suite that every
// docstore.Store backend must pass.
package docstoretest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/JonMunkholm/roster/internal/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a Store with an empty collection named by the second
// return value. Each call must yield an isolated collection.
type Factory func(t *testing.T) (docstore.Store, string)

// Run exercises the full Collection contract against the backend.
func Run(t *testing.T, newStore Factory) {
	t.Run("insert then find by id", func(t *testing.T) {
		store, name := newStore(t)
		coll := store.Collection(name)
		ctx := context.Background()

		created := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
		id, err := coll.InsertOne(ctx, docstore.Document{"name": "Jane", "created_at": created})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, err := coll.FindOne(ctx, docstore.ByID(id))
		require.NoError(t, err)
		assert.Equal(t, id, doc.String(docstore.IDField))
		assert.Equal(t, "Jane", doc.String("name"))

		got, ok := doc.Time("created_at")
		require.True(t, ok, "created_at should round-trip as a time")
		assert.True(t, got.Equal(created), "created_at = %v, want %v", got, created)
	})

	t.Run("find one on empty collection", func(t *testing.T) {
		store, name := newStore(t)
		_, err := store.Collection(name).FindOne(context.Background(), docstore.Filter{})
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("malformed id is reported as invalid", func(t *testing.T) {
		store, name := newStore(t)
		_, err := store.Collection(name).FindOne(context.Background(), docstore.ByID("not-an-id"))
		assert.ErrorIs(t, err, docstore.ErrInvalidID)
	})

	t.Run("search is case-insensitive literal substring across fields", func(t *testing.T) {
		store, name := newStore(t)
		coll := store.Collection(name)
		ctx := context.Background()

		seed(t, coll,
			docstore.Document{"name": "Alice Smith", "mobile": "111"},
			docstore.Document{"name": "Bob", "college_name": "SMITH College"},
			docstore.Document{"name": "Carol", "mobile": "999"},
			docstore.Document{"name": "a.b", "mobile": "222"},
		)

		n, err := coll.Count(ctx, docstore.ContainsAny("smith", "name", "mobile", "college_name"))
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		n, err = coll.Count(ctx, docstore.ContainsAny("99", "name", "mobile", "college_name"))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		// "." must not behave as a wildcard.
		n, err = coll.Count(ctx, docstore.ContainsAny(".", "name", "mobile", "college_name"))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = coll.Count(ctx, docstore.Filter{})
		require.NoError(t, err)
		assert.EqualValues(t, 4, n)
	})

	t.Run("aggregate matches sorts and pages", func(t *testing.T) {
		store, name := newStore(t)
		coll := store.Collection(name)
		ctx := context.Background()

		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			seed(t, coll, docstore.Document{
				"name":       fmt.Sprintf("student-%d", i),
				"created_at": base.Add(time.Duration(i) * time.Hour),
			})
		}

		docs, err := coll.Aggregate(ctx, docstore.Pipeline{
			docstore.Match{Filter: docstore.Filter{}},
			docstore.Sort{Fields: []docstore.SortField{{Field: "created_at", Desc: true}}},
			docstore.Skip{N: 1},
			docstore.Limit{N: 2},
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "student-3", docs[0].String("name"))
		assert.Equal(t, "student-2", docs[1].String("name"))

		docs, err = coll.Aggregate(ctx, docstore.Pipeline{
			docstore.Skip{N: 10},
			docstore.Limit{N: 2},
		})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("update reports modifications", func(t *testing.T) {
		store, name := newStore(t)
		coll := store.Collection(name)
		ctx := context.Background()

		id, err := coll.InsertOne(ctx, docstore.Document{"name": "Jane", "mobile": "1"})
		require.NoError(t, err)

		n, err := coll.UpdateOne(ctx, docstore.ByID(id), docstore.Document{"mobile": "2"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = coll.UpdateOne(ctx, docstore.ByID(id), docstore.Document{"mobile": "2"})
		require.NoError(t, err)
		assert.EqualValues(t, 0, n, "identical patch should not count as modified")

		doc, err := coll.FindOne(ctx, docstore.ByID(id))
		require.NoError(t, err)
		assert.Equal(t, "Jane", doc.String("name"))
		assert.Equal(t, "2", doc.String("mobile"))
	})

	t.Run("delete reports removals", func(t *testing.T) {
		store, name := newStore(t)
		coll := store.Collection(name)
		ctx := context.Background()

		id, err := coll.InsertOne(ctx, docstore.Document{"name": "Jane"})
		require.NoError(t, err)

		n, err := coll.DeleteOne(ctx, docstore.ByID(id))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = coll.DeleteOne(ctx, docstore.ByID(id))
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		_, err = coll.FindOne(ctx, docstore.ByID(id))
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("replace with upsert keeps a singleton", func(t *testing.T) {
		store, name := newStore(t)
		coll := store.Collection(name)
		ctx := context.Background()

		require.NoError(t, coll.ReplaceOne(ctx, docstore.Filter{},
			docstore.Document{"values": map[string]any{"A": "1"}}, true))
		require.NoError(t, coll.ReplaceOne(ctx, docstore.Filter{},
			docstore.Document{"values": map[string]any{"A": "1", "B": "2"}}, true))

		n, err := coll.Count(ctx, docstore.Filter{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		doc, err := coll.FindOne(ctx, docstore.Filter{})
		require.NoError(t, err)
		values, ok := doc["values"].(map[string]any)
		require.True(t, ok, "values should decode as map[string]any, got %T", doc["values"])
		assert.Equal(t, map[string]any{"A": "1", "B": "2"}, values)
	})

	t.Run("replace without upsert on empty collection", func(t *testing.T) {
		store, name := newStore(t)
		coll := store.Collection(name)
		ctx := context.Background()

		require.NoError(t, coll.ReplaceOne(ctx, docstore.Filter{}, docstore.Document{"x": "y"}, false))
		n, err := coll.Count(ctx, docstore.Filter{})
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)
	})
}

func seed(t *testing.T, coll docstore.Collection, docs ...docstore.Document) {
	t.Helper()
	for _, d := range docs {
		_, err := coll.InsertOne(context.Background(), d)
		require.NoError(t, err)
	}
}
