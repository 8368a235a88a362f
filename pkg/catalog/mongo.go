package catalog

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/matzehuels/tracktree/pkg/grow"
	"github.com/matzehuels/tracktree/pkg/tags"
	"github.com/matzehuels/tracktree/pkg/track"
)

// mongoFetchLimit caps result sizes per query. Growth only ever consumes
// a handful of candidates per tag, so large result sets are wasted work.
const mongoFetchLimit = 50

// Mongo is a catalog backed by a MongoDB collection of track documents.
// Documents use the bson tags of [track.Track]: title, artist, album,
// tags (array of "category:value" strings).
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo connects to MongoDB and verifies the connection with a ping.
func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &Mongo{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

// Close disconnects from MongoDB.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// FetchRelatedTracks returns tracks whose tag array contains the exact tag.
func (m *Mongo) FetchRelatedTracks(ctx context.Context, tag string, exclude track.Track) ([]track.Track, error) {
	return m.find(ctx, bson.D{{Key: "tags", Value: tag}}, exclude)
}

// FetchByCategory returns tracks carrying any tag with the given
// category prefix, using an anchored regex over the tag array.
func (m *Mongo) FetchByCategory(ctx context.Context, category string, exclude track.Track) ([]track.Track, error) {
	pattern := "^" + regexp.QuoteMeta(category) + regexp.QuoteMeta(tags.Separator)
	filter := bson.D{{Key: "tags", Value: primitive.Regex{Pattern: pattern}}}
	return m.find(ctx, filter, exclude)
}

// FetchRandom samples up to n random tracks from the whole collection.
func (m *Mongo) FetchRandom(ctx context.Context, n int, exclude track.Track) ([]track.Track, error) {
	// Oversample to survive the exclusion filter.
	pipeline := mongo.Pipeline{
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: n + 1}}}},
	}
	cursor, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("sample tracks: %w", err)
	}
	defer cursor.Close(ctx)

	found, err := decodeTracks(ctx, cursor, exclude)
	if err != nil {
		return nil, err
	}
	if len(found) > n {
		found = found[:n]
	}
	return found, nil
}

func (m *Mongo) find(ctx context.Context, filter bson.D, exclude track.Track) ([]track.Track, error) {
	cursor, err := m.coll.Find(ctx, filter, options.Find().SetLimit(mongoFetchLimit))
	if err != nil {
		return nil, fmt.Errorf("find tracks: %w", err)
	}
	defer cursor.Close(ctx)
	return decodeTracks(ctx, cursor, exclude)
}

func decodeTracks(ctx context.Context, cursor *mongo.Cursor, exclude track.Track) ([]track.Track, error) {
	var out []track.Track
	for cursor.Next(ctx) {
		var t track.Track
		if err := cursor.Decode(&t); err != nil {
			return nil, fmt.Errorf("decode track: %w", err)
		}
		if t.Equal(exclude) {
			continue
		}
		out = append(out, t)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}
	return out, nil
}

// Ensure Mongo implements the orchestrator's source interface.
var _ grow.TrackSource = (*Mongo)(nil)
