package oidc

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/256dpi/oidc/store"
)

// A Tester provides facilities to test providers and managers.
type Tester struct {
	*store.Tester

	// The handler to be tested.
	Handler http.Handler

	// The header to be set on all requests.
	Header map[string]string
}

// NewTester returns a tester that manages all provider collections.
func NewTester(s *store.Store) *Tester {
	return &Tester{
		Tester: store.NewTester(s, Collections()...),
		Header: make(map[string]string),
	}
}

// Clean will remove all documents from the managed collections and reset the
// header map.
func (t *Tester) Clean() {
	// clean collections
	t.Tester.Clean()

	// reset header
	t.Header = make(map[string]string)
}

// Path returns a root prefixed path for the supplied path.
func (t *Tester) Path(path string) string {
	return "/" + strings.Trim(path, "/")
}

// Request will run the specified request against the registered handler. This
// function can be used to create custom testing facilities.
func (t *Tester) Request(method, path, payload string, callback func(*httptest.ResponseRecorder, *http.Request)) {
	// create request
	request, err := http.NewRequest(method, t.Path(path), strings.NewReader(payload))
	if err != nil {
		panic(err)
	}

	// preset content type for writes
	if method == "POST" || method == "PUT" {
		request.Header.Set("Content-Type", "application/json")
	}

	// set custom headers
	for k, v := range t.Header {
		request.Header.Set(k, v)
	}

	// prepare recorder
	recorder := httptest.NewRecorder()

	// serve request
	t.Handler.ServeHTTP(recorder, request)

	// run callback
	callback(recorder, request)
}

// DebugRequest returns a string of information to debug requests.
func (t *Tester) DebugRequest(r *http.Request, rr *httptest.ResponseRecorder) string {
	return fmt.Sprintf(`
	URL:    %s
	Header: %s
	Status: %d
	Header: %v
	Body:   %v`, r.URL.String(), r.Header, rr.Code, rr.Header(), rr.Body.String())
}
