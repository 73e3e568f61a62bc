package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/256dpi/serve"
	"github.com/256dpi/xo"
	"github.com/redis/go-redis/v9"

	"github.com/256dpi/oidc"
	"github.com/256dpi/oidc/session"
	"github.com/256dpi/oidc/store"
)

func main() {
	// load config
	config, err := oidc.ConfigFromEnv()
	if err != nil {
		xo.Crash(err)
	}

	// connect store
	s, err := store.Connect(config.MongoURI)
	if err != nil {
		xo.Crash(err)
	}

	// create session store
	client := redis.NewClient(&redis.Options{
		Addr: config.RedisEndpoint,
	})
	sessions := session.NewRedisStore(client, config.SessionLifetime)

	// load policy or fall back to a generated key pair
	policy, err := oidc.PolicyFromConfig(config)
	if err != nil {
		policy = oidc.DefaultPolicy(config.Issuer)
		policy.GrantLifetime = config.GrantLifetime
		policy.AccessTokenLifetime = config.AccessTokenLifetime
		policy.IDTokenLifetime = config.IDTokenLifetime
		policy.RefreshTokenLifetime = config.RefreshTokenLifetime
	}

	// ensure indexes and the default admin
	err = oidc.EnsureIndexes(s)
	if err != nil {
		xo.Crash(err)
	}
	err = oidc.Initialize(s, config.AdminPassword)
	if err != nil {
		xo.Crash(err)
	}

	// prepare reporter
	reporter := func(err error) {
		_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
	}

	// run reaper
	reaper := oidc.NewReaper(s, 5*time.Minute, 2*config.RefreshTokenLifetime, reporter)
	reaper.Run()
	defer reaper.Close()

	// create provider and manager
	provider := oidc.NewProvider(s, sessions, policy, reporter)
	manager := oidc.NewManager(s, sessions, reporter)

	// create router
	router := http.NewServeMux()
	router.Handle("/oauth/", provider.Endpoint("/oauth/"))
	router.Handle("/", manager.Endpoint("/"))

	// compose handler
	handler := serve.Compose(
		xo.RootHandler(),
		oidc.DefaultRequestLogger(),
		router,
	)

	// run server
	err = http.ListenAndServe(config.BindAddr, handler)
	if err != nil {
		xo.Crash(err)
	}
}
