package mongostore

import (
	"testing"
	"time"

	"github.com/JonMunkholm/roster/internal/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestBuildFilter(t *testing.T) {
	t.Run("empty filter matches everything", func(t *testing.T) {
		f, err := buildFilter(docstore.Filter{})
		require.NoError(t, err)
		assert.Empty(t, f)
	})

	t.Run("id becomes ObjectID", func(t *testing.T) {
		oid := bson.NewObjectID()
		f, err := buildFilter(docstore.ByID(oid.Hex()))
		require.NoError(t, err)
		assert.Equal(t, bson.D{{Key: "_id", Value: oid}}, f)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := buildFilter(docstore.ByID("123"))
		assert.ErrorIs(t, err, docstore.ErrInvalidID)
	})

	t.Run("search escapes regex metacharacters", func(t *testing.T) {
		f, err := buildFilter(docstore.ContainsAny("a+b", "name", "mobile"))
		require.NoError(t, err)
		want := bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "name", Value: bson.Regex{Pattern: `a\+b`, Options: "i"}}},
			bson.D{{Key: "mobile", Value: bson.Regex{Pattern: `a\+b`, Options: "i"}}},
		}}}
		assert.Equal(t, want, f)
	})
}

func TestBuildPipeline(t *testing.T) {
	p, err := buildPipeline(docstore.Pipeline{
		docstore.Match{Filter: docstore.Filter{}},
		docstore.Sort{Fields: []docstore.SortField{{Field: "created_at", Desc: true}}},
		docstore.Skip{N: 20},
		docstore.Limit{N: 10},
	})
	require.NoError(t, err)
	require.Len(t, p, 4)
	assert.Equal(t, "$match", p[0][0].Key)
	assert.Equal(t, bson.D{{Key: "created_at", Value: -1}}, p[1][0].Value)
	assert.Equal(t, int64(20), p[2][0].Value)
	assert.Equal(t, int64(10), p[3][0].Value)
}

func TestFromBSONNormalizesDriverTypes(t *testing.T) {
	oid := bson.NewObjectID()
	at := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)

	doc := fromBSON(bson.M{
		"_id":        oid,
		"created_at": bson.NewDateTimeFromTime(at),
		"values":     bson.D{{Key: "ALGORITHM", Value: "HS256"}},
	})

	assert.Equal(t, oid.Hex(), doc.String(docstore.IDField))
	got, ok := doc.Time("created_at")
	require.True(t, ok)
	assert.True(t, got.Equal(at))
	assert.Equal(t, map[string]any{"ALGORITHM": "HS256"}, doc["values"])
	_, hasRaw := doc["_id"]
	assert.False(t, hasRaw)
}

func TestToBSONDropsSyntheticID(t *testing.T) {
	out := toBSON(docstore.Document{docstore.IDField: "x", "name": "Jane"})
	assert.Equal(t, bson.M{"name": "Jane"}, out)
}
