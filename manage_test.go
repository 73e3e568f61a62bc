package oidc

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"github.com/256dpi/oidc/session"
	"github.com/256dpi/oidc/store"
)

func TestInitialize(t *testing.T) {
	withTester(t, func(t *testing.T, tester *Tester) {
		// the first call seeds the default admin
		assert.NoError(t, Initialize(tester.Store, "admin"))

		// further calls are no-ops
		assert.NoError(t, Initialize(tester.Store, "other"))
		assert.Equal(t, int64(1), tester.Count(AdminColl))

		var admins []Admin
		tester.FindAll(AdminColl, &admins)
		assert.Equal(t, "admin", admins[0].Name)
		assert.True(t, admins[0].ValidPassword("admin"))
		assert.False(t, admins[0].ValidPassword("other"))
	})
}

func TestHealth(t *testing.T) {
	withTester(t, func(t *testing.T, tester *Tester) {
		tester.Handler = newHandler(tester, newSessions(t))

		tester.Request("GET", "health", "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"status": "ok"
			}`, r.Body.String())
		})
	})
}

func TestEndUserRegistration(t *testing.T) {
	withTester(t, func(t *testing.T, tester *Tester) {
		assert.NoError(t, EnsureIndexes(tester.Store))
		tester.Handler = newHandler(tester, newSessions(t))

		// registration resets server managed fields
		var userID string
		tester.Request("POST", "end_users", `{
			"name": "user",
			"email": "user@example.com",
			"password": "secret1234",
			"email_verified": true
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusCreated, r.Code, tester.DebugRequest(rq, r))
			body := r.Body.String()
			userID = gjson.Get(body, "id").String()
			assert.NotEmpty(t, userID)
			assert.Equal(t, "user", gjson.Get(body, "name").String())
			assert.False(t, gjson.Get(body, "email_verified").Bool())
			assert.False(t, gjson.Get(body, "password").Exists())
		})

		// the password is stored hashed
		var user EndUser
		tester.Fetch(EndUserColl, &user, store.MustFromHex(userID))
		assert.True(t, user.ValidPassword("secret1234"))

		// names are unique
		tester.Request("POST", "end_users", `{
			"name": "user",
			"email": "other@example.com",
			"password": "secret1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "duplicated_entity",
				"error_description": "name already taken"
			}`, r.Body.String())
		})

		// a password is required
		tester.Request("POST", "end_users", `{
			"name": "other",
			"email": "other@example.com"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "invalid_request",
				"error_description": "missing password"
			}`, r.Body.String())
		})

		// a valid email is required
		tester.Request("POST", "end_users", `{
			"name": "other",
			"email": "not an email",
			"password": "secret1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "invalid_request",
				"error_description": "invalid email"
			}`, r.Body.String())
		})

		// summaries are listed openly
		tester.Request("GET", "end_users", "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			body := r.Body.String()
			assert.Equal(t, int64(1), gjson.Get(body, "list.#").Int())
			assert.Equal(t, "user", gjson.Get(body, "list.0.name").String())
			assert.False(t, gjson.Get(body, "list.0.email").Exists())
		})
	})
}

func TestEndUserSessions(t *testing.T) {
	withTester(t, func(t *testing.T, tester *Tester) {
		tester.Handler = newHandler(tester, newSessions(t))

		var userID string
		tester.Request("POST", "end_users", `{
			"name": "user",
			"email": "user@example.com",
			"password": "secret1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusCreated, r.Code, tester.DebugRequest(rq, r))
			userID = gjson.Get(r.Body.String(), "id").String()
		})

		// a login yields a session
		var sid string
		tester.Request("POST", "end_users/login", `{
			"name": "user",
			"password": "secret1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			sid = gjson.Get(r.Body.String(), "sid").String()
			assert.NotEmpty(t, sid)
			assert.Equal(t, userID, gjson.Get(r.Body.String(), "end_user_id").String())
		})

		// the authentication time is tracked
		var user EndUser
		tester.Fetch(EndUserColl, &user, store.MustFromHex(userID))
		assert.False(t, user.AuthenticatedAt.IsZero())

		// wrong credentials are opaquely rejected
		tester.Request("POST", "end_users/login", `{
			"name": "user",
			"password": "wrong"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "login_failed"
			}`, r.Body.String())
		})

		// unknown names are rejected the same way
		tester.Request("POST", "end_users/login", `{
			"name": "nobody",
			"password": "secret1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "login_failed"
			}`, r.Body.String())
		})

		// the session authorizes the detailed view
		tester.Header["Authorization"] = "Bearer " + sid
		tester.Request("GET", "end_users/"+userID, "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			assert.Equal(t, "user@example.com", gjson.Get(r.Body.String(), "email").String())
		})

		// a logout removes the session
		tester.Request("POST", "end_users/logout", "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusNoContent, r.Code, tester.DebugRequest(rq, r))
		})
		tester.Request("GET", "end_users/"+userID, "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusUnauthorized, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "require_login",
				"error_description": "missing session"
			}`, r.Body.String())
		})
	})
}

func TestEndUserAuthorization(t *testing.T) {
	withTester(t, func(t *testing.T, tester *Tester) {
		sessions := newSessions(t)
		tester.Handler = newHandler(tester, sessions)

		user := tester.Save(EndUserColl, &EndUser{
			Name:  "user",
			Email: "user@example.com",
		}).(*EndUser)

		other := tester.Save(EndUserColl, &EndUser{
			Name:  "other",
			Email: "other@example.com",
		}).(*EndUser)

		admin := tester.Save(AdminColl, &Admin{
			Name: "admin",
		}).(*Admin)

		// without a session the detailed view requires a login
		tester.Request("GET", "end_users/"+user.ID().Hex(), "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusUnauthorized, r.Code, tester.DebugRequest(rq, r))
		})

		// a foreign session is denied
		tester.Header["Authorization"] = "Bearer " + mustLogin(sessions, session.EndUserField, other.ID())
		tester.Request("GET", "end_users/"+user.ID().Hex(), "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "access_denied",
				"error_description": "insufficient permissions"
			}`, r.Body.String())
		})

		// an admin session is allowed
		tester.Header["Authorization"] = "Bearer " + mustLogin(sessions, session.AdminField, admin.ID())
		tester.Request("GET", "end_users/"+user.ID().Hex(), "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
		})

		// unknown ids are not found
		tester.Request("GET", "end_users/"+store.New().Hex(), "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "entity_not_found",
				"error_description": "end user not found"
			}`, r.Body.String())
		})
	})
}

func TestEndUserUpdate(t *testing.T) {
	withTester(t, func(t *testing.T, tester *Tester) {
		sessions := newSessions(t)
		tester.Handler = newHandler(tester, sessions)

		user := &EndUser{
			Name:          "user",
			Email:         "user@example.com",
			EmailVerified: true,
			Password:      "secret1234",
		}
		assert.NoError(t, user.HashPassword())
		tester.Save(EndUserColl, user)

		tester.Header["Authorization"] = "Bearer " + mustLogin(sessions, session.EndUserField, user.ID())

		// profile changes are applied field by field
		tester.Request("PUT", "end_users/"+user.ID().Hex(), `{
			"given_name": "Jane",
			"locale": "en-US"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			body := r.Body.String()
			assert.Equal(t, "Jane", gjson.Get(body, "given_name").String())
			assert.Equal(t, "en-US", gjson.Get(body, "locale").String())
			assert.Equal(t, "user", gjson.Get(body, "name").String())
			assert.True(t, gjson.Get(body, "email_verified").Bool())
		})

		// an email change resets the verification
		tester.Request("PUT", "end_users/"+user.ID().Hex(), `{
			"email": "new@example.com"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			assert.Equal(t, "new@example.com", gjson.Get(r.Body.String(), "email").String())
			assert.False(t, gjson.Get(r.Body.String(), "email_verified").Bool())
		})

		// a password change requires the current password
		tester.Request("PUT", "end_users/"+user.ID().Hex(), `{
			"current_password": "wrong",
			"new_password": "changed1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "wrong_password",
				"error_description": "wrong current password"
			}`, r.Body.String())
		})
		tester.Request("PUT", "end_users/"+user.ID().Hex(), `{
			"current_password": "secret1234",
			"new_password": "changed1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
		})

		// the new password is in effect
		tester.Request("POST", "end_users/login", `{
			"name": "user",
			"password": "changed1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
		})

		// invalid changes are rejected
		tester.Request("PUT", "end_users/"+user.ID().Hex(), `{
			"email": "not an email"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "invalid_request",
				"error_description": "invalid email"
			}`, r.Body.String())
		})
	})
}

func TestEndUserDeletion(t *testing.T) {
	withTester(t, func(t *testing.T, tester *Tester) {
		assert.NoError(t, EnsureIndexes(tester.Store))
		sessions := newSessions(t)
		tester.Handler = newHandler(tester, sessions)

		user := tester.Save(EndUserColl, &EndUser{
			Name:  "user",
			Email: "user@example.com",
		}).(*EndUser)

		tester.Header["Authorization"] = "Bearer " + mustLogin(sessions, session.EndUserField, user.ID())

		// a deletion soft deletes the document
		tester.Request("DELETE", "end_users/"+user.ID().Hex(), "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusNoContent, r.Code, tester.DebugRequest(rq, r))
		})

		var deleted EndUser
		tester.Fetch(EndUserColl, &deleted, user.ID())
		assert.True(t, deleted.Deleted)

		// deleted documents are gone from the api
		tester.Request("GET", "end_users/"+user.ID().Hex(), "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "entity_not_found",
				"error_description": "end user not found"
			}`, r.Body.String())
		})

		// a second deletion is not found either
		tester.Request("DELETE", "end_users/"+user.ID().Hex(), "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
		})

		// logins are rejected
		tester.Request("POST", "end_users/login", `{
			"name": "user",
			"password": "secret1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "login_failed"
			}`, r.Body.String())
		})

		// the name becomes available again
		tester.Request("POST", "end_users", `{
			"name": "user",
			"email": "user@example.com",
			"password": "secret1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusCreated, r.Code, tester.DebugRequest(rq, r))
		})
	})
}

func TestClientManagement(t *testing.T) {
	withTester(t, func(t *testing.T, tester *Tester) {
		sessions := newSessions(t)
		tester.Handler = newHandler(tester, sessions)

		resource := tester.Save(ResourceColl, &Resource{
			Name: "Files API",
			Scope: []Scope{
				{Name: "files.read"},
			},
		}).(*Resource)

		// a registration generates the client secret
		var clientID, clientSecret string
		tester.Request("POST", "clients", `{
			"name": "Files App",
			"password": "secret1234",
			"redirect_uris": ["http://example.com/callback"],
			"resource_id": "`+resource.ID().Hex()+`"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusCreated, r.Code, tester.DebugRequest(rq, r))
			body := r.Body.String()
			clientID = gjson.Get(body, "id").String()
			clientSecret = gjson.Get(body, "client_secret").String()
			assert.NotEmpty(t, clientID)
			assert.Len(t, clientSecret, 64)
			assert.Equal(t, "confidential", gjson.Get(body, "client_type").String())
			assert.Equal(t, resource.ID().Hex(), gjson.Get(body, "resource_id").String())
		})

		// the referenced resource must exist
		tester.Request("POST", "clients", `{
			"name": "Other App",
			"password": "secret1234",
			"redirect_uris": ["http://example.com/callback"],
			"resource_id": "`+store.New().Hex()+`"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "entity_not_found",
				"error_description": "resource not found"
			}`, r.Body.String())
		})

		// redirect uris must parse
		tester.Request("POST", "clients", `{
			"name": "Other App",
			"password": "secret1234",
			"redirect_uris": ["not a url"],
			"resource_id": "`+resource.ID().Hex()+`"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "invalid_request",
				"error_description": "invalid redirect uri"
			}`, r.Body.String())
		})

		// the client may log in and inspect itself
		var sid string
		tester.Request("POST", "clients/login", `{
			"name": "Files App",
			"password": "secret1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			sid = gjson.Get(r.Body.String(), "sid").String()
			assert.Equal(t, clientID, gjson.Get(r.Body.String(), "client_id").String())
		})

		tester.Header["Authorization"] = "Bearer " + sid
		tester.Request("GET", "clients/"+clientID, "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			assert.Equal(t, clientSecret, gjson.Get(r.Body.String(), "client_secret").String())
		})

		// redirect uris may be replaced
		tester.Request("PUT", "clients/"+clientID, `{
			"redirect_uris": ["http://example.com/callback", "http://example.com/other"]
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			assert.Equal(t, int64(2), gjson.Get(r.Body.String(), "redirect_uris.#").Int())
		})

		// summaries include the resource binding
		tester.Request("GET", "clients", "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			body := r.Body.String()
			assert.Equal(t, int64(1), gjson.Get(body, "list.#").Int())
			assert.Equal(t, resource.ID().Hex(), gjson.Get(body, "list.0.resource_id").String())
			assert.False(t, gjson.Get(body, "list.0.client_secret").Exists())
		})
	})
}

func TestResourceManagement(t *testing.T) {
	withTester(t, func(t *testing.T, tester *Tester) {
		sessions := newSessions(t)
		tester.Handler = newHandler(tester, sessions)

		// a registration generates the resource secret
		var resourceID string
		tester.Request("POST", "resources", `{
			"name": "Files API",
			"password": "secret1234",
			"scope": [
				{"name": "files.read", "description": "Read your files"}
			]
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusCreated, r.Code, tester.DebugRequest(rq, r))
			body := r.Body.String()
			resourceID = gjson.Get(body, "id").String()
			assert.NotEmpty(t, resourceID)
			assert.Len(t, gjson.Get(body, "resource_secret").String(), 64)
		})

		// unnamed scopes are rejected
		tester.Request("POST", "resources", `{
			"name": "Other API",
			"password": "secret1234",
			"scope": [
				{"description": "unnamed"}
			]
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.Equal(t, "invalid_request", gjson.Get(r.Body.String(), "error").String())
		})

		// the resource may extend its scope
		tester.Header["Authorization"] = "Bearer " + mustLogin(sessions, session.ResourceField, store.MustFromHex(resourceID))
		tester.Request("PUT", "resources/"+resourceID, `{
			"scope": [
				{"name": "files.read", "description": "Read your files"},
				{"name": "files.write", "description": "Write your files"}
			]
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			assert.Equal(t, int64(2), gjson.Get(r.Body.String(), "scope.#").Int())
		})
	})
}

func TestAdminManagement(t *testing.T) {
	withTester(t, func(t *testing.T, tester *Tester) {
		sessions := newSessions(t)
		tester.Handler = newHandler(tester, sessions)

		assert.NoError(t, Initialize(tester.Store, "admin"))

		// admin registration requires an admin session
		tester.Request("POST", "admins", `{
			"name": "second",
			"password": "secret1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "access_denied",
				"error_description": "insufficient permissions"
			}`, r.Body.String())
		})

		// the default admin may log in
		var sid string
		tester.Request("POST", "admins/login", `{
			"name": "admin",
			"password": "admin"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			sid = gjson.Get(r.Body.String(), "sid").String()
			assert.NotEmpty(t, gjson.Get(r.Body.String(), "admin_id").String())
		})

		// and register further admins
		tester.Header["Authorization"] = "Bearer " + sid
		var secondID string
		tester.Request("POST", "admins", `{
			"name": "second",
			"password": "secret1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusCreated, r.Code, tester.DebugRequest(rq, r))
			secondID = gjson.Get(r.Body.String(), "id").String()
			assert.NotEmpty(t, secondID)
		})

		// admins may manage other admins
		tester.Request("PUT", "admins/"+secondID, `{
			"name": "renamed"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusOK, r.Code, tester.DebugRequest(rq, r))
			assert.Equal(t, "renamed", gjson.Get(r.Body.String(), "name").String())
		})
		tester.Request("DELETE", "admins/"+secondID, "", func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusNoContent, r.Code, tester.DebugRequest(rq, r))
		})

		// the sessions of removed admins lose their power
		tester.Header["Authorization"] = "Bearer " + mustLogin(sessions, session.AdminField, store.MustFromHex(secondID))
		tester.Request("POST", "admins", `{
			"name": "third",
			"password": "secret1234"
		}`, func(r *httptest.ResponseRecorder, rq *http.Request) {
			assert.Equal(t, http.StatusBadRequest, r.Code, tester.DebugRequest(rq, r))
			assert.JSONEq(t, `{
				"error": "access_denied",
				"error_description": "insufficient permissions"
			}`, r.Body.String())
		})
	})
}
