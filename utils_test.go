package oidc

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/256dpi/oidc/keys"
	"github.com/256dpi/oidc/session"
	"github.com/256dpi/oidc/store"
)

var mongoStore = store.MustConnect("mongodb://0.0.0.0/test-oidc")
var lungoStore = store.MustOpen(nil, "test-oidc")

var testPolicy = DefaultPolicy("http://auth.example.com")

func init() {
	keys.UnsafeFastHash()
}

func panicReporter(err error) {
	panic(err)
}

func withTester(t *testing.T, fn func(*testing.T, *Tester)) {
	t.Run("Mongo", func(t *testing.T) {
		tester := NewTester(mongoStore)
		tester.Clean()
		fn(t, tester)
	})

	t.Run("Lungo", func(t *testing.T) {
		tester := NewTester(lungoStore)
		tester.Clean()
		fn(t, tester)
	})
}

func newSessions(t *testing.T) session.Store {
	// run in-memory redis server
	srv := miniredis.RunT(t)

	// create client
	client := redis.NewClient(&redis.Options{
		Addr: srv.Addr(),
	})

	return session.NewRedisStore(client, time.Minute)
}

func newHandler(tester *Tester, sessions session.Store) http.Handler {
	// create provider and manager
	provider := NewProvider(tester.Store, sessions, testPolicy, panicReporter)
	manager := NewManager(tester.Store, sessions, panicReporter)

	// create router
	router := http.NewServeMux()
	router.Handle("/oauth/", provider.Endpoint("/oauth/"))
	router.Handle("/", manager.Endpoint("/"))

	return router
}

func mustLogin(sessions session.Store, field string, id store.ID) string {
	// create session
	sid := keys.MustRandString(64)
	err := sessions.Set(context.Background(), sid, field, id.Hex())
	if err != nil {
		panic(err)
	}

	return sid
}

func basicAuth(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}
