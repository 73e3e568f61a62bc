package oidc

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointRouting(t *testing.T) {
	withTester(t, func(t *testing.T, tester *Tester) {
		tester.Handler = newHandler(tester, newSessions(t))

		// unknown endpoints are not found
		tester.Request("GET", "oauth/foo", "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusNotFound, r.Code, tester.DebugRequest(rq, r))
		})

		// nested paths are not found
		tester.Request("GET", "oauth/authorize/foo", "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusNotFound, r.Code, tester.DebugRequest(rq, r))
		})

		// wrong methods are not allowed
		tester.Request("POST", "oauth/publickey", "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusMethodNotAllowed, r.Code, tester.DebugRequest(rq, r))
		})
	})
}

func TestPublicKey(t *testing.T) {
	withTester(t, func(t *testing.T, tester *Tester) {
		tester.Handler = newHandler(tester, newSessions(t))

		// the verification key is served as pem
		tester.Request("GET", "oauth/publickey", "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			assert.Equal(t, "application/x-pem-file", r.Header().Get("Content-Type"))
			assert.Contains(t, r.Body.String(), "BEGIN PUBLIC KEY")
		})
	})
}
