package oidc

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/tomb.v2"

	"github.com/256dpi/oidc/store"
)

// Reaper removes stale grants and tokens in the background. Documents are
// removed for good once they fall behind the configured retention, therefore
// the retention must exceed the configured token lifetimes.
type Reaper struct {
	store     *store.Store
	interval  time.Duration
	retention time.Duration
	reporter  func(error)
	tomb      tomb.Tomb
}

// NewReaper constructs a reaper using the provided intervals. The reporter is
// invoked with background errors and may be nil.
func NewReaper(store *store.Store, interval, retention time.Duration, reporter func(error)) *Reaper {
	return &Reaper{
		store:     store,
		interval:  interval,
		retention: retention,
		reporter:  reporter,
	}
}

// Run will start the background process.
func (r *Reaper) Run() {
	r.tomb.Go(r.process)
}

// Close will stop the background process and await its termination.
func (r *Reaper) Close() {
	// kill and wait
	r.tomb.Kill(nil)
	_ = r.tomb.Wait()
}

func (r *Reaper) process() error {
	for {
		select {
		case <-r.tomb.Dying():
			return tomb.ErrDying
		case <-time.After(r.interval):
			err := r.reap()
			if err != nil && r.reporter != nil {
				r.reporter(err)
			}
		}
	}
}

func (r *Reaper) reap() error {
	// create context
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// get cutoff
	cutoff := time.Now().Add(-r.retention)

	// remove stale grants and access tokens
	for _, coll := range []string{GrantColl, AccessTokenColl} {
		_, err := r.store.C(coll).DeleteMany(ctx, bson.M{
			"created_at": bson.M{"$lt": cutoff},
		})
		if err != nil {
			return err
		}
	}

	// remove stale id tokens and refresh tokens
	for _, coll := range []string{IDTokenColl, RefreshTokenColl} {
		_, err := r.store.C(coll).DeleteMany(ctx, bson.M{
			"expires_at": bson.M{"$lt": cutoff},
		})
		if err != nil {
			return err
		}
	}

	return nil
}
