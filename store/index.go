package store

import (
	"context"
	"time"

	"github.com/256dpi/xo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Index describes an index on a collection.
type Index struct {
	// The index keys.
	Keys bson.D

	// Whether the index is unique.
	Unique bool

	// The partial filter expression.
	Filter bson.M

	// The automatic expiry of documents.
	Expiry time.Duration
}

// Compile will compile the index to a mongo.IndexModel.
func (i *Index) Compile() mongo.IndexModel {
	// prepare options
	opts := options.Index().SetUnique(i.Unique)

	// set filter if available
	if i.Filter != nil {
		opts.SetPartialFilterExpression(i.Filter)
	}

	// set expiry if available
	if i.Expiry > 0 {
		opts.SetExpireAfterSeconds(int32(i.Expiry / time.Second))
	}

	return mongo.IndexModel{
		Keys:    i.Keys,
		Options: opts,
	}
}

// EnsureIndexes will ensure that the provided indexes exist on the named
// collection. It may fail early if an index already exists with a different
// definition.
func (s *Store) EnsureIndexes(coll string, indexes ...Index) error {
	// create context
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// ensure all indexes
	for _, index := range indexes {
		_, err := s.C(coll).Native().Indexes().CreateOne(ctx, index.Compile())
		if err != nil {
			return xo.W(err)
		}
	}

	return nil
}
