package oidc

import (
	"net/http"

	"github.com/256dpi/oauth2/v2/bearer"
	"github.com/256dpi/xo"
	"go.mongodb.org/mongo-driver/bson"
)

func (p *Provider) userinfo(w http.ResponseWriter, r *http.Request) error {
	// get context
	ctx := r.Context()

	// get access token
	token, err := bearer.ParseToken(r)
	if err != nil {
		return UserinfoError("missing access token")
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
		return UserinfoError("invalid access token")
	}

	// the token must be bound to an end user
	if accessToken.EndUserID.IsZero() {
		return UserinfoError("token not bound to an end user")
	}

	// load end user
	var user EndUser
	found, err = p.store.C(EndUserColl).FindOne(ctx, &user, bson.M{
		"_id":     accessToken.EndUserID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return UserinfoError("end user not found")
	}

	return writeJSON(w, http.StatusOK, newUserinfoClaims(p.policy.Issuer, &user, accessToken.ClientID))
}

func (p *Provider) publicKey(w http.ResponseWriter, _ *http.Request) error {
	// write public key
	w.Header().Set("Content-Type", "application/x-pem-file")
	_, err := w.Write([]byte(p.policy.PublicKeyPEM))
	return xo.W(err)
}
