// Package metastore stores chunk metadata documents in MongoDB, keyed by
// vector slot. The index and this store are built together and must stay in
// lockstep; the retriever tolerates drift by dropping slots it cannot
// resolve.
package metastore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChunkDoc is one indexed chunk: the vector slot it occupies and the text
// that slot resolves to.
type ChunkDoc struct {
	VectorSlot int64  `bson:"vector_slot"`
	ChunkID    string `bson:"chunk_id"`
	Text       string `bson:"text"`
}

// Store wraps the chunk metadata collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// New connects to MongoDB and binds the given database/collection.
func New(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("metastore: connect %s: %w", uri, err)
	}
	return &Store{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Insert writes chunk documents. No-op on empty input.
func (s *Store) Insert(ctx context.Context, docs []ChunkDoc) error {
	if len(docs) == 0 {
		return nil
	}
	models := make([]any, len(docs))
	for i, d := range docs {
		models[i] = d
	}
	if _, err := s.coll.InsertMany(ctx, models); err != nil {
		return fmt.Errorf("metastore: insert %d docs: %w", len(docs), err)
	}
	return nil
}

// Drop removes the collection. Full rebuilds drop before inserting so slots
// never collide with a previous build.
func (s *Store) Drop(ctx context.Context) error {
	if err := s.coll.Drop(ctx); err != nil {
		return fmt.Errorf("metastore: drop: %w", err)
	}
	return nil
}

// TextsBySlots fetches the text for all given slots in one query and returns
// a slot→text map. Slots absent from the store are simply absent from the
// map; that is the caller's drift signal, not an error.
func (s *Store) TextsBySlots(ctx context.Context, slots []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(slots))
	if len(slots) == 0 {
		return out, nil
	}

	cur, err := s.coll.Find(ctx, bson.M{"vector_slot": bson.M{"$in": slots}})
	if err != nil {
		return nil, fmt.Errorf("metastore: find slots: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var d ChunkDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("metastore: decode: %w", err)
		}
		out[d.VectorSlot] = d.Text
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("metastore: cursor: %w", err)
	}
	return out, nil
}
