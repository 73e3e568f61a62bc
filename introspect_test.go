package oidc

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/256dpi/oauth2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"github.com/256dpi/oidc/keys"
	"github.com/256dpi/oidc/store"
)

func TestIntrospect(t *testing.T) {
	withTester(t, func(t *testing.T, tester *Tester) {
		tester.Handler = newHandler(tester, newSessions(t))

		resource := tester.Save(ResourceColl, &Resource{
			Name: "Files API",
			Scope: []Scope{
				{Name: "files.read"},
			},
		}).(*Resource)

		client := tester.Save(ClientColl, &Client{
			Name:         "Files App",
			Type:         ConfidentialClient,
			Secret:       "app-secret",
			RedirectURIs: []string{"http://example.com/callback"},
			ResourceID:   resource.ID(),
		}).(*Client)

		user := tester.Save(EndUserColl, &EndUser{
			Name:  "user",
			Email: "user@example.com",
		}).(*EndUser)

		userToken := tester.Save(AccessTokenColl, &AccessToken{
			ClientID:   client.ID(),
			ResourceID: resource.ID(),
			EndUserID:  user.ID(),
			Token:      keys.MustRandString(64),
			Scope:      oauth2.Scope{"files.read", "legacy"},
			CreatedAt:  time.Now(),
			ExpiresIn:  3600,
		}).(*AccessToken)

		clientToken := tester.Save(AccessTokenColl, &AccessToken{
			ClientID:   client.ID(),
			ResourceID: resource.ID(),
			Token:      keys.MustRandString(64),
			Scope:      oauth2.Scope{"files.read"},
			CreatedAt:  time.Now(),
			ExpiresIn:  3600,
		}).(*AccessToken)

		expiredToken := tester.Save(AccessTokenColl, &AccessToken{
			ClientID:   client.ID(),
			ResourceID: resource.ID(),
			EndUserID:  user.ID(),
			Token:      keys.MustRandString(64),
			Scope:      oauth2.Scope{"files.read"},
			CreatedAt:  time.Now().Add(-2 * time.Hour),
			ExpiresIn:  3600,
		}).(*AccessToken)

		tester.Header["Authorization"] = basicAuth(client.ID().Hex(), "app-secret")
		tester.Header["Content-Type"] = "application/x-www-form-urlencoded"

		// an end user token reports the full context
		form := url.Values{
			"token": {userToken.Token},
		}
		tester.Request("POST", "oauth/introspect", form.Encode(), func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			body := r.Body.String()
			assert.True(t, gjson.Get(body, "active").Bool())
			assert.Equal(t, "files.read", gjson.Get(body, "scope").String())
			assert.Equal(t, client.ID().Hex(), gjson.Get(body, "client_id").String())
			assert.Equal(t, client.ID().Hex(), gjson.Get(body, "aud").String())
			assert.Equal(t, "user", gjson.Get(body, "username").String())
			assert.Equal(t, user.ID().Hex(), gjson.Get(body, "sub").String())
			assert.Equal(t, "Bearer", gjson.Get(body, "token_type").String())
			assert.Equal(t, "http://auth.example.com", gjson.Get(body, "iss").String())
			assert.True(t, gjson.Get(body, "exp").Int() > time.Now().Unix())
		})

		// a client token has no end user context
		form.Set("token", clientToken.Token)
		tester.Request("POST", "oauth/introspect", form.Encode(), func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			body := r.Body.String()
			assert.True(t, gjson.Get(body, "active").Bool())
			assert.False(t, gjson.Get(body, "sub").Exists())
			assert.False(t, gjson.Get(body, "username").Exists())
		})

		// an expired token is reported inactive
		form.Set("token", expiredToken.Token)
		tester.Request("POST", "oauth/introspect", form.Encode(), func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"active": false
			}`, r.Body.String())
		})

		// an unknown token is reported inactive
		form.Set("token", "foo")
		tester.Request("POST", "oauth/introspect", form.Encode(), func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"active": false
			}`, r.Body.String())
		})

		// a missing token is rejected
		form.Del("token")
		tester.Request("POST", "oauth/introspect", form.Encode(), func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "invalid_request",
				"error_description": "missing token"
			}`, r.Body.String())
		})

		// an unauthenticated caller is rejected
		form.Set("token", userToken.Token)
		tester.Header["Authorization"] = basicAuth(store.New().Hex(), "app-secret")
		tester.Request("POST", "oauth/introspect", form.Encode(), func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusUnauthorized, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "unauthorized_client",
				"error_description": "unknown client"
			}`, r.Body.String())
		})
	})
}
