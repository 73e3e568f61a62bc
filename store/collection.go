package store

import (
	"context"
	"strings"

	"github.com/256dpi/lungo"
	"github.com/256dpi/xo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicate is returned by Insert if a unique index rejected the document.
var ErrDuplicate = xo.BF("duplicate document")

// ErrConflict is returned by Replace and Update if a unique index rejected
// the change.
var ErrConflict = xo.BF("conflicting document")

// isUniquenessError returns whether the provided error originates from a
// violated unique index. The message is consulted as a fallback since the
// in-memory database does not return typed write exceptions.
func isUniquenessError(err error) bool {
	// check error
	if err == nil {
		return false
	}

	// check typed errors
	if mongo.IsDuplicateKeyError(err) {
		return true
	}

	return strings.Contains(err.Error(), "duplicate")
}

// Collection wraps a native collection with typed operations.
type Collection struct {
	coll lungo.ICollection
}

// Native returns the underlying native collection.
func (c *Collection) Native() lungo.ICollection {
	return c.coll
}

// FindOne will find the first document that matches the provided filter and
// decode it to the provided model. It returns whether a document was found.
func (c *Collection) FindOne(ctx context.Context, model interface{}, filter bson.M, opts ...*options.FindOneOptions) (bool, error) {
	// find and decode document
	err := c.coll.FindOne(ctx, filter, opts...).Decode(model)
	if err == mongo.ErrNoDocuments {
		return false, nil
	} else if err != nil {
		return false, xo.W(err)
	}

	return true, nil
}

// FindAll will find all documents that match the provided filter and decode
// them to the provided slice.
func (c *Collection) FindAll(ctx context.Context, slicePtr interface{}, filter bson.M, opts ...*options.FindOptions) error {
	// find documents
	csr, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return xo.W(err)
	}

	// decode documents
	err = csr.All(ctx, slicePtr)
	if err != nil {
		return xo.W(err)
	}

	return nil
}

// Count will count the documents that match the provided filter.
func (c *Collection) Count(ctx context.Context, filter bson.M) (int64, error) {
	// count documents
	num, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, xo.W(err)
	}

	return num, nil
}

// Insert will insert the provided document. A document rejected by a unique
// index yields ErrDuplicate.
func (c *Collection) Insert(ctx context.Context, model interface{}) error {
	// insert document
	_, err := c.coll.InsertOne(ctx, model)
	if isUniquenessError(err) {
		return ErrDuplicate.Wrap()
	} else if err != nil {
		return xo.W(err)
	}

	return nil
}

// Replace will replace the document with the provided id. A change rejected
// by a unique index yields ErrConflict. It returns whether a document has
// been matched.
func (c *Collection) Replace(ctx context.Context, id ID, model interface{}) (bool, error) {
	// replace document
	res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": id}, model)
	if isUniquenessError(err) {
		return false, ErrConflict.Wrap()
	} else if err != nil {
		return false, xo.W(err)
	}

	return res.MatchedCount == 1, nil
}

// Update will apply the provided update document to the document with the
// provided id. A change rejected by a unique index yields ErrConflict. It
// returns whether a document has been matched.
func (c *Collection) Update(ctx context.Context, id ID, update bson.M) (bool, error) {
	// update document
	res, err := c.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if isUniquenessError(err) {
		return false, ErrConflict.Wrap()
	} else if err != nil {
		return false, xo.W(err)
	}

	return res.MatchedCount == 1, nil
}

// SoftDelete will flag the live document with the provided id as deleted.
// Deleted documents are skipped by lookups that exclude them. It returns
// whether a live document has been matched.
func (c *Collection) SoftDelete(ctx context.Context, id ID) (bool, error) {
	// flag live document
	res, err := c.coll.UpdateOne(ctx, bson.M{"_id": id, "deleted": false}, bson.M{
		"$set": bson.M{
			"deleted": true,
		},
	})
	if err != nil {
		return false, xo.W(err)
	}

	return res.MatchedCount == 1, nil
}

// DeleteMany will remove all documents that match the provided filter and
// return the number of removed documents.
func (c *Collection) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	// delete documents
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, xo.W(err)
	}

	return res.DeletedCount, nil
}

// Swap will atomically apply the provided update to the first document that
// matches the provided filter and decode the matched document to the provided
// model. The document state before the update is decoded unless after is set.
// It returns whether a document has been matched.
func (c *Collection) Swap(ctx context.Context, model interface{}, filter, update bson.M, after bool) (bool, error) {
	// prepare options
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	if after {
		opts.SetReturnDocument(options.After)
	}

	// swap document
	err := c.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(model)
	if err == mongo.ErrNoDocuments {
		return false, nil
	} else if err != nil {
		return false, xo.W(err)
	}

	return true, nil
}
