package oidc

import (
	"time"

	"github.com/256dpi/oauth2/v2"

	"github.com/256dpi/oidc/store"
)

// GrantStatus enumerates the lifecycle states of a grant.
type GrantStatus string

// The available grant statuses. A grant starts out as created, becomes
// activated once a code or tokens have been issued for it and is expired
// when its code has been redeemed.
const (
	GrantCreated   GrantStatus = "created"
	GrantActivated GrantStatus = "activated"
	GrantExpired   GrantStatus = "expired"
)

// Grant tracks a single authorization request from creation to redemption.
type Grant struct {
	store.Base   `bson:",inline"`
	EndUserID    store.ID     `bson:"end_user_id"`
	ClientID     store.ID     `bson:"client_id"`
	ResourceID   store.ID     `bson:"resource_id"`
	RedirectURI  string       `bson:"redirect_uri"`
	Code         string       `bson:"code"`
	ResponseType string       `bson:"response_type"`
	Scope        oauth2.Scope `bson:"scope"`
	State        string       `bson:"state,omitempty"`
	Nonce        string       `bson:"nonce,omitempty"`
	Status       GrantStatus  `bson:"status"`
	CreatedAt    time.Time    `bson:"created_at"`
	ExpiresIn    int64        `bson:"expires_in"`
}

// ExpiresAt returns the point in time the grant expires.
func (g *Grant) ExpiresAt() time.Time {
	return g.CreatedAt.Add(time.Duration(g.ExpiresIn) * time.Second)
}

// Valid returns whether the grant may still be redeemed.
func (g *Grant) Valid() bool {
	return g.Status != GrantExpired && time.Now().Before(g.ExpiresAt())
}

// AccessToken is an issued OAuth2 access token. The end user is absent for
// tokens obtained through the client credentials grant.
type AccessToken struct {
	store.Base `bson:",inline"`
	ClientID   store.ID     `bson:"client_id"`
	ResourceID store.ID     `bson:"resource_id"`
	EndUserID  store.ID     `bson:"end_user_id,omitempty"`
	Token      string       `bson:"token"`
	Scope      oauth2.Scope `bson:"scope"`
	State      string       `bson:"state,omitempty"`
	Nonce      string       `bson:"nonce,omitempty"`
	CreatedAt  time.Time    `bson:"created_at"`
	ExpiresIn  int64        `bson:"expires_in"`
}

// ExpiresAt returns the point in time the access token expires.
func (t *AccessToken) ExpiresAt() time.Time {
	return t.CreatedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Valid returns whether the access token is active.
func (t *AccessToken) Valid() bool {
	return !t.Deleted && time.Now().Before(t.ExpiresAt())
}

// IDToken tracks an issued OpenID Connect ID token.
type IDToken struct {
	store.Base `bson:",inline"`
	EndUserID  store.ID  `bson:"end_user_id"`
	Token      string    `bson:"token"`
	CreatedAt  time.Time `bson:"created_at"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

// RefreshToken is an issued OAuth2 refresh token. It references the access
// token it rotates and optionally the ID token it refreshes.
type RefreshToken struct {
	store.Base    `bson:",inline"`
	Token         string    `bson:"token"`
	AccessTokenID store.ID  `bson:"access_token_id"`
	IDTokenID     store.ID  `bson:"id_token_id,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
	ExpiresAt     time.Time `bson:"expires_at"`
}

// Valid returns whether the refresh token may still be used.
func (t *RefreshToken) Valid() bool {
	return !t.Deleted && time.Now().Before(t.ExpiresAt)
}
