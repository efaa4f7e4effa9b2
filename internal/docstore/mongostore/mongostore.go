// Package mongostore implements docstore.Store on MongoDB using the
// official v2 driver.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/JonMunkholm/roster/internal/docstore"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Config holds connection settings.
type Config struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
}

// Store is a docstore.Store over one mongo.Client.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects and pings the server. A failed ping is reported as
// docstore.ErrConnection and the client is disconnected.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
		opts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", docstore.ErrConnection, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping: %w", docstore.ErrConnection, err)
	}

	return &Store{client: client, db: client.Database(cfg.Database)}, nil
}

// Collection returns a handle on the named collection.
func (s *Store) Collection(name string) docstore.Collection {
	return &Collection{coll: s.db.Collection(name)}
}

// Ping checks the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: ping: %w", docstore.ErrConnection, err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndex creates a single-field index if it does not already exist.
func (s *Store) EnsureIndex(ctx context.Context, collection, field string, desc bool) error {
	dir := 1
	if desc {
		dir = -1
	}
	_, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: field, Value: dir}},
	})
	if err != nil {
		return fmt.Errorf("create index %s.%s: %w", collection, field, err)
	}
	return nil
}

// Collection adapts *mongo.Collection to docstore.Collection.
type Collection struct {
	coll *mongo.Collection
}

func (c *Collection) InsertOne(ctx context.Context, doc docstore.Document) (string, error) {
	res, err := c.coll.InsertOne(ctx, toBSON(doc))
	if err != nil {
		return "", err
	}
	return idString(res.InsertedID), nil
}

func (c *Collection) FindOne(ctx context.Context, f docstore.Filter) (docstore.Document, error) {
	filter, err := buildFilter(f)
	if err != nil {
		return nil, err
	}

	var raw bson.M
	if err := c.coll.FindOne(ctx, filter).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, docstore.ErrNotFound
		}
		return nil, err
	}
	return fromBSON(raw), nil
}

func (c *Collection) Aggregate(ctx context.Context, p docstore.Pipeline) ([]docstore.Document, error) {
	pipeline, err := buildPipeline(p)
	if err != nil {
		return nil, err
	}

	cursor, err := c.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	docs := make([]docstore.Document, len(raw))
	for i, m := range raw {
		docs[i] = fromBSON(m)
	}
	return docs, nil
}

func (c *Collection) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	filter, err := buildFilter(f)
	if err != nil {
		return 0, err
	}
	return c.coll.CountDocuments(ctx, filter)
}

func (c *Collection) UpdateOne(ctx context.Context, f docstore.Filter, set docstore.Document) (int64, error) {
	filter, err := buildFilter(f)
	if err != nil {
		return 0, err
	}

	res, err := c.coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: toBSON(set)}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (c *Collection) DeleteOne(ctx context.Context, f docstore.Filter) (int64, error) {
	filter, err := buildFilter(f)
	if err != nil {
		return 0, err
	}

	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *Collection) ReplaceOne(ctx context.Context, f docstore.Filter, doc docstore.Document, upsert bool) error {
	filter, err := buildFilter(f)
	if err != nil {
		return err
	}

	_, err = c.coll.ReplaceOne(ctx, filter, toBSON(doc), options.Replace().SetUpsert(upsert))
	return err
}

// buildFilter translates a docstore.Filter. Search terms are matched
// literally: regex metacharacters in the term are escaped.
func buildFilter(f docstore.Filter) (bson.D, error) {
	filter := bson.D{}

	if f.ID != "" {
		oid, err := bson.ObjectIDFromHex(f.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidID, f.ID)
		}
		filter = append(filter, bson.E{Key: "_id", Value: oid})
	}

	if f.Search != nil {
		pattern := regexp.QuoteMeta(f.Search.Term)
		or := make(bson.A, 0, len(f.Search.Fields))
		for _, field := range f.Search.Fields {
			or = append(or, bson.D{{Key: field, Value: bson.Regex{Pattern: pattern, Options: "i"}}})
		}
		filter = append(filter, bson.E{Key: "$or", Value: or})
	}

	return filter, nil
}

func buildPipeline(p docstore.Pipeline) (mongo.Pipeline, error) {
	pipeline := make(mongo.Pipeline, 0, len(p))

	for _, st := range p {
		switch st := st.(type) {
		case docstore.Match:
			filter, err := buildFilter(st.Filter)
			if err != nil {
				return nil, err
			}
			pipeline = append(pipeline, bson.D{{Key: "$match", Value: filter}})
		case docstore.Sort:
			keys := make(bson.D, 0, len(st.Fields))
			for _, sf := range st.Fields {
				dir := 1
				if sf.Desc {
					dir = -1
				}
				keys = append(keys, bson.E{Key: sf.Field, Value: dir})
			}
			pipeline = append(pipeline, bson.D{{Key: "$sort", Value: keys}})
		case docstore.Skip:
			pipeline = append(pipeline, bson.D{{Key: "$skip", Value: st.N}})
		case docstore.Limit:
			pipeline = append(pipeline, bson.D{{Key: "$limit", Value: st.N}})
		default:
			return nil, fmt.Errorf("mongostore: unsupported stage %T", st)
		}
	}

	return pipeline, nil
}

// toBSON drops the synthetic id key; MongoDB owns _id.
func toBSON(doc docstore.Document) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		if k == docstore.IDField {
			continue
		}
		out[k] = v
	}
	return out
}

// fromBSON renames _id to id and converts driver types to plain Go values.
func fromBSON(m bson.M) docstore.Document {
	doc := make(docstore.Document, len(m))
	for k, v := range m {
		if k == "_id" {
			doc[docstore.IDField] = idString(v)
			continue
		}
		doc[k] = normalize(v)
	}
	return doc
}

func normalize(v any) any {
	switch v := v.(type) {
	case bson.DateTime:
		return v.Time().UTC()
	case bson.ObjectID:
		return v.Hex()
	case bson.M:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(v))
		for _, e := range v {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

func idString(v any) string {
	switch id := v.(type) {
	case bson.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
