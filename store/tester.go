package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// A Tester provides facilities to test code that uses a store.
type Tester struct {
	// The store used by the tester.
	Store *Store

	// The registered collections.
	Collections []string
}

// NewTester returns a new tester.
func NewTester(store *Store, collections ...string) *Tester {
	return &Tester{
		Store:       store,
		Collections: collections,
	}
}

// Clean will remove all documents from the registered collections.
func (t *Tester) Clean() {
	for _, coll := range t.Collections {
		// remove all is faster than dropping the collection
		_, err := t.Store.C(coll).DeleteMany(context.Background(), bson.M{})
		if err != nil {
			panic(err)
		}
	}
}

// Save will insert the specified model into the named collection.
func (t *Tester) Save(coll string, model Model) Model {
	// ensure id
	if model.GetBase().DocID.IsZero() {
		model.GetBase().DocID = New()
	}

	// insert document
	err := t.Store.C(coll).Insert(context.Background(), model)
	if err != nil {
		panic(err)
	}

	return model
}

// FindAll will decode all documents of the named collection to the provided
// slice, sorted by id.
func (t *Tester) FindAll(coll string, slicePtr interface{}) {
	// find all documents
	err := t.Store.C(coll).FindAll(context.Background(), slicePtr, bson.M{}, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		panic(err)
	}
}

// Fetch will decode the document with the provided id to the provided model.
func (t *Tester) Fetch(coll string, model Model, id ID) Model {
	// find specific document
	found, err := t.Store.C(coll).FindOne(context.Background(), model, bson.M{
		"_id": id,
	})
	if err != nil {
		panic(err)
	} else if !found {
		panic("store: document not found")
	}

	return model
}

// Update will replace the specified model in the named collection.
func (t *Tester) Update(coll string, model Model) Model {
	// replace document
	found, err := t.Store.C(coll).Replace(context.Background(), model.ID(), model)
	if err != nil {
		panic(err)
	} else if !found {
		panic("store: document not found")
	}

	return model
}

// Count will return the number of documents in the named collection.
func (t *Tester) Count(coll string) int64 {
	// count documents
	num, err := t.Store.C(coll).Count(context.Background(), bson.M{})
	if err != nil {
		panic(err)
	}

	return num
}
