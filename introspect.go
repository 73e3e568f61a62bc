package oidc

import (
	"net/http"

	"github.com/256dpi/oauth2/v2"
	"go.mongodb.org/mongo-driver/bson"
)

type introspectResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Audience  string `json:"aud,omitempty"`
	Issuer    string `json:"iss,omitempty"`
}

func (p *Provider) introspect(w http.ResponseWriter, r *http.Request) error {
	// get context
	ctx := r.Context()

	// parse form
	err := r.ParseForm()
	if err != nil {
		return oauth2.InvalidRequest("malformed request")
	}

	// get client credentials
	id, secret, _ := r.BasicAuth()

	// authenticate client
	client, err := p.authenticateClient(ctx, id, secret)
	if err != nil {
		return err
	}

	// get token
	token := r.PostForm.Get("token")
	if token == "" {
		return oauth2.InvalidRequest("missing token")
	}

	// unknown, revoked and expired tokens are reported as inactive
	inactive := func() error {
		return writeJSON(w, http.StatusOK, introspectResponse{Active: false})
	}

	// load access token
	var accessToken AccessToken
	found, err := p.store.C(AccessTokenColl).FindOne(ctx, &accessToken, bson.M{
		"token":   token,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found || !accessToken.Valid() {
		return inactive()
	}

	// load resource
	var resource Resource
	found, err = p.store.C(ResourceColl).FindOne(ctx, &resource, bson.M{
		"_id":     accessToken.ResourceID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return inactive()
	}

	// prepare response
	res := introspectResponse{
		Active:    true,
		Scope:     resource.FilterScope(accessToken.Scope).String(),
		ClientID:  client.ID().Hex(),
		TokenType: "Bearer",
		ExpiresAt: accessToken.ExpiresAt().Unix(),
		IssuedAt:  accessToken.CreatedAt.Unix(),
		Audience:  client.ID().Hex(),
		Issuer:    p.policy.Issuer,
	}

	// resolve end user if bound
	if !accessToken.EndUserID.IsZero() {
		var user EndUser
		found, err = p.store.C(EndUserColl).FindOne(ctx, &user, bson.M{
			"_id":     accessToken.EndUserID,
			"deleted": false,
		})
		if err != nil {
			return err
		} else if !found {
			return inactive()
		}
		res.Username = user.Name
		res.Subject = user.ID().Hex()
	}

	return writeJSON(w, http.StatusOK, res)
}
