package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOptions configures the MongoDB cache backend.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
}

// MongoCache stores cache entries in a MongoDB collection, one document per
// entry with a unique (ns, id) index.
type MongoCache struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// mongoEntry is the document shape for one cache entry.
type mongoEntry struct {
	NS    string `bson:"ns"`
	ID    string `bson:"id"`
	Value []byte `bson:"value"`
}

// NewMongoCache connects to MongoDB, verifies the connection and ensures the
// (ns, id) index exists.
func NewMongoCache(ctx context.Context, opts MongoOptions) (Cache, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	database := opts.Database
	if database == "" {
		database = "plantpipe"
	}
	collection := opts.Collection
	if collection == "" {
		collection = "entries"
	}
	coll := client.Database(database).Collection(collection)

	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "ns", Value: 1}, {Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create cache index: %w", err)
	}

	return &MongoCache{client: client, coll: coll}, nil
}

// Get retrieves a value from the cache.
func (c *MongoCache) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	var entry mongoEntry
	err := c.coll.FindOne(ctx, mongoFilter(key)).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return entry.Value, true, nil
}

// Set stores a value in the cache, replacing any previous value.
func (c *MongoCache) Set(ctx context.Context, key Key, data []byte) error {
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "value", Value: data}}}}
	_, err := c.coll.UpdateOne(ctx, mongoFilter(key), update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete removes a value from the cache.
func (c *MongoCache) Delete(ctx context.Context, key Key) error {
	if _, err := c.coll.DeleteOne(ctx, mongoFilter(key)); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (c *MongoCache) Close() error {
	return c.client.Disconnect(context.Background())
}

// Prune removes every diagram whose access stamp is older than the cutoff.
// Like the Redis backend, only stamped diagrams are considered.
func (c *MongoCache) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	cur, err := c.coll.Find(ctx, bson.D{{Key: "ns", Value: string(NamespaceAccess)}})
	if err != nil {
		return 0, fmt.Errorf("find access stamps: %w", err)
	}
	defer cur.Close(ctx)

	var stale []string
	for cur.Next(ctx) {
		var entry mongoEntry
		if err := cur.Decode(&entry); err != nil {
			return 0, fmt.Errorf("decode access stamp: %w", err)
		}
		if last, err := ParseAccessTime(entry.Value); err == nil && !last.Before(olderThan) {
			continue
		}
		stale = append(stale, entry.ID)
	}
	if err := cur.Err(); err != nil {
		return 0, fmt.Errorf("iterate access stamps: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	filter := bson.D{{Key: "id", Value: bson.D{{Key: "$in", Value: stale}}}}
	if _, err := c.coll.DeleteMany(ctx, filter); err != nil {
		return 0, fmt.Errorf("delete stale entries: %w", err)
	}
	return len(stale), nil
}

// Wipe removes every entry in the collection.
func (c *MongoCache) Wipe(ctx context.Context) (int, error) {
	res, err := c.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("wipe cache: %w", err)
	}
	return int(res.DeletedCount), nil
}

// mongoFilter builds the document filter for a tagged key.
func mongoFilter(key Key) bson.D {
	return bson.D{
		{Key: "ns", Value: string(key.Namespace)},
		{Key: "id", Value: key.ID},
	}
}

// Ensure MongoCache implements Cache and Janitor.
var (
	_ Cache   = (*MongoCache)(nil)
	_ Janitor = (*MongoCache)(nil)
)
