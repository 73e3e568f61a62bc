// Package session provides the Redis backed session store used to associate
// authenticated principals with opaque session ids.
package session

import (
	"context"

	"github.com/256dpi/xo"
)

// ErrNoSession is returned if no value exists for the provided key and field.
var ErrNoSession = xo.BF("no session")

// The hash fields used to store principal ids by kind.
const (
	AdminField    = "admin_sess_id"
	EndUserField  = "end_user_sess_id"
	ClientField   = "client_sess_id"
	ResourceField = "resource_sess_id"
)

// Store is implemented by session stores.
type Store interface {
	// Set will associate the field with the provided value on the session
	// with the provided key and reset the session expiry.
	Set(ctx context.Context, key, field, value string) error

	// Get will return the value associated with the field on the session
	// with the provided key. It returns ErrNoSession if either the session
	// or the field is absent.
	Get(ctx context.Context, key, field string) (string, error)

	// Del will remove the provided fields from the session with the provided
	// key or the whole session if no fields are given.
	Del(ctx context.Context, key string, fields ...string) error
}
