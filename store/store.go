// Package store implements a thin persistence layer on top of MongoDB that
// also runs against in-memory databases for tests and development setups.
package store

import (
	"net/url"
	"strings"

	"github.com/256dpi/lungo"
	"github.com/256dpi/xo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connect will connect to the database specified by the provided MongoDB URI.
// The URI must name the database to be used.
func Connect(uri string) (*Store, error) {
	// parse uri
	parsedURL, err := url.Parse(uri)
	if err != nil {
		return nil, xo.W(err)
	}

	// get database
	db := strings.Trim(parsedURL.Path, "/")
	if db == "" {
		return nil, xo.F("missing database in uri")
	}

	// create client
	client, err := lungo.Connect(nil, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, xo.W(err)
	}

	// ping server
	err = client.Ping(nil, nil)
	if err != nil {
		return nil, xo.W(err)
	}

	return &Store{
		client: client,
		db:     db,
	}, nil
}

// MustConnect will call Connect and panic on errors.
func MustConnect(uri string) *Store {
	// connect store
	store, err := Connect(uri)
	if err != nil {
		panic(err)
	}

	return store
}

// Open will open the database with the specified name using the provided lungo
// store. If no lungo store is provided an in-memory store is used.
func Open(lungoStore lungo.Store, db string) (*Store, error) {
	// ensure store
	if lungoStore == nil {
		lungoStore = lungo.NewMemoryStore()
	}

	// open database
	client, engine, err := lungo.Open(nil, lungo.Options{
		Store: lungoStore,
	})
	if err != nil {
		return nil, xo.W(err)
	}

	return &Store{
		client: client,
		engine: engine,
		db:     db,
	}, nil
}

// MustOpen will call Open and panic on errors.
func MustOpen(lungoStore lungo.Store, db string) *Store {
	// open store
	store, err := Open(lungoStore, db)
	if err != nil {
		panic(err)
	}

	return store
}

// Store provides access to the configured database.
type Store struct {
	client lungo.IClient
	engine *lungo.Engine
	db     string
}

// Client returns the client used by the store.
func (s *Store) Client() lungo.IClient {
	return s.client
}

// DB returns the database used by the store.
func (s *Store) DB() lungo.IDatabase {
	return s.client.Database(s.db)
}

// C returns a wrapped collection with the provided name.
func (s *Store) C(name string) *Collection {
	return &Collection{coll: s.DB().Collection(name)}
}

// Close will close the store and its underlying client.
func (s *Store) Close() error {
	// disconnect client
	err := s.client.Disconnect(nil)
	if err != nil {
		return xo.W(err)
	}

	// close engine if open
	if s.engine != nil {
		s.engine.Close()
	}

	return nil
}
