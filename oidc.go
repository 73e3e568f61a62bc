// Package oidc implements an OpenID Connect provider that issues
// authorization codes, access tokens, refresh tokens and signed ID tokens to
// registered clients. Entities are persisted in MongoDB while sessions are
// tracked in Redis.
package oidc

import (
	"errors"
	"net/http"
	"strings"

	"github.com/256dpi/oauth2/v2"
	"github.com/256dpi/oauth2/v2/bearer"
	"github.com/256dpi/xo"

	"github.com/256dpi/oidc/session"
	"github.com/256dpi/oidc/store"
)

// Provider implements the authorization engine. It serves the authorize,
// accept, tokens, introspect, userinfo and publickey endpoints.
type Provider struct {
	store    *store.Store
	sessions session.Store
	policy   *Policy
	reporter func(error)
}

// NewProvider constructs a provider from a store, session store and policy.
// The reporter is invoked with unexpected internal errors and may be nil.
func NewProvider(store *store.Store, sessions session.Store, policy *Policy, reporter func(error)) *Provider {
	return &Provider{
		store:    store,
		sessions: sessions,
		policy:   policy,
		reporter: reporter,
	}
}

// Endpoint returns a handler that serves the provider endpoints under the
// provided prefix.
func (p *Provider) Endpoint(prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// trim and split path
		s := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"), "/")
		if len(s) != 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		// call endpoints
		switch s[0] {
		case "authorize":
			p.handle(w, r, "GET", p.authorize)
		case "accept":
			p.handle(w, r, "POST", p.accept)
		case "tokens":
			p.handle(w, r, "POST", p.tokens)
		case "introspect":
			p.handle(w, r, "POST", p.introspect)
		case "userinfo":
			p.handle(w, r, "GET", p.userinfo)
		case "publickey":
			p.handle(w, r, "GET", p.publicKey)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (p *Provider) handle(w http.ResponseWriter, r *http.Request, method string, fn func(http.ResponseWriter, *http.Request) error) {
	// check method
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// run handler and recover panics
	err := xo.Catch(func() error {
		return fn(w, r)
	})
	if err != nil {
		handleError(w, err, p.reporter)
	}
}

// handleError writes the provided error to the response. Unexpected errors
// are passed to the reporter and masked as generic server errors.
func handleError(w http.ResponseWriter, err error, reporter func(error)) {
	// write protocol errors
	var oauth2Error *oauth2.Error
	if errors.As(err, &oauth2Error) {
		_ = oauth2.WriteError(w, oauth2Error)
		return
	}

	// write bearer errors
	var bearerError *bearer.Error
	if errors.As(err, &bearerError) {
		_ = bearer.WriteError(w, bearerError)
		return
	}

	// write endpoint errors
	var endpointError *Error
	if errors.As(err, &endpointError) {
		_ = WriteError(w, endpointError)
		return
	}

	// report unexpected errors
	if reporter != nil {
		reporter(err)
	}

	// write a generic server error
	_ = oauth2.WriteError(w, oauth2.ServerError(""))
}
