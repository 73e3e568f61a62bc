package oidc

import (
	"context"
	"net/http"
	"time"

	"github.com/256dpi/oauth2/v2"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/256dpi/oidc/keys"
	"github.com/256dpi/oidc/store"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	IDToken      string `json:"id_token,omitempty"`
}

func (p *Provider) tokens(w http.ResponseWriter, r *http.Request) error {
	// get context
	ctx := r.Context()

	// parse token request
	req, err := oauth2.ParseTokenRequest(r)
	if err != nil {
		return err
	}

	// make sure the grant type is known
	if !oauth2.KnownGrantType(req.GrantType) {
		return oauth2.UnsupportedGrantType("")
	}

	// authenticate client
	client, err := p.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return err
	}

	// handle grant type
	switch req.GrantType {
	case oauth2.AuthorizationCodeGrantType:
		return p.redeemCode(ctx, w, client, req)
	case oauth2.RefreshTokenGrantType:
		return p.refreshTokens(ctx, w, client, req)
	case oauth2.ClientCredentialsGrantType:
		return p.clientCredentials(ctx, w, client, req)
	case oauth2.PasswordGrantType:
		return p.passwordCredentials(ctx, w, client, req)
	}

	return oauth2.UnsupportedGrantType("")
}

// authenticateClient resolves and verifies the client credentials carried in
// a token or introspection request.
func (p *Provider) authenticateClient(ctx context.Context, id, secret string) (*Client, error) {
	// parse client id
	clientID, err := store.FromHex(id)
	if err != nil {
		return nil, UnauthorizedClient("unknown client")
	}

	// load client
	var client Client
	found, err := p.store.C(ClientColl).FindOne(ctx, &client, bson.M{
		"_id":     clientID,
		"deleted": false,
	})
	if err != nil {
		return nil, err
	} else if !found {
		return nil, UnauthorizedClient("unknown client")
	}

	// verify secret
	if !client.ValidSecret(secret) {
		return nil, UnauthorizedClient("wrong client secret")
	}

	return &client, nil
}

func (p *Provider) redeemCode(ctx context.Context, w http.ResponseWriter, client *Client, req *oauth2.TokenRequest) error {
	// check code
	if req.Code == "" {
		return oauth2.InvalidRequest("missing code")
	}

	// expire grant and get its prior state
	var grant Grant
	found, err := p.store.C(GrantColl).Swap(ctx, &grant, bson.M{
		"code":    req.Code,
		"deleted": false,
	}, bson.M{
		"$set": bson.M{"status": GrantExpired},
	}, false)
	if err != nil {
		return err
	} else if !found {
		return oauth2.InvalidRequest("grant not found")
	}

	// the grant must have been activated exactly once and still be valid
	if grant.Status != GrantActivated || !grant.Valid() {
		return oauth2.InvalidGrant("grant already redeemed or expired")
	}

	// verify ownership
	if grant.ClientID != client.ID() {
		return oauth2.InvalidGrant("grant does not belong to client")
	}

	// verify redirect uri if provided
	if req.RedirectURI != "" && req.RedirectURI != grant.RedirectURI {
		return oauth2.InvalidGrant("redirect uri mismatch")
	}

	// load end user
	var user EndUser
	found, err = p.store.C(EndUserColl).FindOne(ctx, &user, bson.M{
		"_id":     grant.EndUserID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return oauth2.InvalidGrant("end user not found")
	}

	// issue access token
	accessToken, err := p.issueAccessToken(ctx, grant.ClientID, grant.ResourceID, grant.EndUserID, grant.Scope, grant.State, grant.Nonce)
	if err != nil {
		return err
	}

	// issue id token for openid grants
	var idToken *IDToken
	if ParseResponseType(grant.ResponseType).HasIDToken() || grant.Scope.Includes(oauth2.Scope{"openid"}) {
		idToken, err = p.issueIDToken(ctx, &user, grant.ClientID, grant.Nonce)
		if err != nil {
			return err
		}
	}

	// issue refresh token
	refreshToken := &RefreshToken{
		Base:          store.B(),
		Token:         keys.MustRandString(64),
		AccessTokenID: accessToken.ID(),
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(p.policy.RefreshTokenLifetime),
	}
	if idToken != nil {
		refreshToken.IDTokenID = idToken.ID()
	}

	// insert refresh token
	err = p.store.C(RefreshTokenColl).Insert(ctx, refreshToken)
	if err != nil {
		return err
	}

	return writeTokenResponse(w, accessToken, refreshToken, idToken)
}

func (p *Provider) refreshTokens(ctx context.Context, w http.ResponseWriter, client *Client, req *oauth2.TokenRequest) error {
	// check refresh token
	if req.RefreshToken == "" {
		return oauth2.InvalidRequest("missing refresh token")
	}

	// load refresh token
	var refreshToken RefreshToken
	found, err := p.store.C(RefreshTokenColl).FindOne(ctx, &refreshToken, bson.M{
		"token":   req.RefreshToken,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return oauth2.InvalidRequest("refresh token not found")
	}

	// check validity
	if !refreshToken.Valid() {
		return oauth2.InvalidGrant("refresh token has expired")
	}

	// load access token
	var accessToken AccessToken
	found, err = p.store.C(AccessTokenColl).FindOne(ctx, &accessToken, bson.M{
		"_id":     refreshToken.AccessTokenID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return oauth2.InvalidGrant("access token not found")
	}

	// verify ownership
	if accessToken.ClientID != client.ID() {
		return oauth2.InvalidGrant("refresh token does not belong to client")
	}

	// rotate access token in place
	accessToken.Token = keys.MustRandString(64)
	accessToken.CreatedAt = time.Now()
	_, err = p.store.C(AccessTokenColl).Replace(ctx, accessToken.ID(), &accessToken)
	if err != nil {
		return err
	}

	// refresh id token if requested and originally issued
	var idToken *IDToken
	if req.Scope.Includes(oauth2.Scope{"openid"}) && !refreshToken.IDTokenID.IsZero() {
		idToken, err = p.refreshIDToken(ctx, &refreshToken, &accessToken)
		if err != nil {
			return err
		}
	}

	// the refresh token itself is not rotated
	return writeTokenResponse(w, &accessToken, &refreshToken, idToken)
}

// refreshIDToken reissues the ID token referenced by the provided refresh
// token. The new token preserves the authentication context of its
// predecessor but carries fresh issuance and expiry times.
func (p *Provider) refreshIDToken(ctx context.Context, refreshToken *RefreshToken, accessToken *AccessToken) (*IDToken, error) {
	// load id token
	var idToken IDToken
	found, err := p.store.C(IDTokenColl).FindOne(ctx, &idToken, bson.M{
		"_id":     refreshToken.IDTokenID,
		"deleted": false,
	})
	if err != nil {
		return nil, err
	} else if !found {
		return nil, oauth2.InvalidGrant("id token not found")
	}

	// recover prior claims
	var prior IDTokenClaims
	err = keys.Parse(p.policy.PublicKey, idToken.Token, &prior)
	if err != nil {
		return nil, err
	}

	// load end user
	var user EndUser
	found, err = p.store.C(EndUserColl).FindOne(ctx, &user, bson.M{
		"_id":     idToken.EndUserID,
		"deleted": false,
	})
	if err != nil {
		return nil, err
	} else if !found {
		return nil, oauth2.InvalidGrant("end user not found")
	}

	// prepare claims preserving the original authentication context
	claims := p.policy.NewIDTokenClaims(&user, accessToken.ClientID)
	claims.AuthTime = prior.AuthTime
	claims.Nonce = prior.Nonce
	claims.AZP = prior.AZP

	// sign claims
	token, err := keys.Sign(p.policy.PrivateKey, claims)
	if err != nil {
		return nil, err
	}

	// update id token in place
	idToken.Token = token
	idToken.CreatedAt = time.Unix(claims.IssuedAt, 0)
	idToken.ExpiresAt = time.Unix(claims.ExpiresAt, 0)
	_, err = p.store.C(IDTokenColl).Replace(ctx, idToken.ID(), &idToken)
	if err != nil {
		return nil, err
	}

	return &idToken, nil
}

func (p *Provider) clientCredentials(ctx context.Context, w http.ResponseWriter, client *Client, req *oauth2.TokenRequest) error {
	// load resource
	var resource Resource
	found, err := p.store.C(ResourceColl).FindOne(ctx, &resource, bson.M{
		"_id":     client.ResourceID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("resource not found")
	}

	// reduce scope to the resource defined scope
	scope := resource.FilterScope(req.Scope)

	// issue access token without an end user
	accessToken, err := p.issueAccessToken(ctx, client.ID(), resource.ID(), store.Z(), scope, "", "")
	if err != nil {
		return err
	}

	return writeTokenResponse(w, accessToken, nil, nil)
}

func (p *Provider) passwordCredentials(ctx context.Context, w http.ResponseWriter, client *Client, req *oauth2.TokenRequest) error {
	// check credentials
	if req.Username == "" || req.Password == "" {
		return oauth2.InvalidRequest("missing credentials")
	}

	// load end user
	var user EndUser
	found, err := p.store.C(EndUserColl).FindOne(ctx, &user, bson.M{
		"name":    req.Username,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return AccessDenied("") // never expose reason!
	}

	// verify password
	if !user.ValidPassword(req.Password) {
		return AccessDenied("") // never expose reason!
	}

	// track authentication time
	user.AuthenticatedAt = time.Now()
	_, err = p.store.C(EndUserColl).Update(ctx, user.ID(), bson.M{
		"$set": bson.M{"authenticated_at": user.AuthenticatedAt},
	})
	if err != nil {
		return err
	}

	// load resource
	var resource Resource
	found, err = p.store.C(ResourceColl).FindOne(ctx, &resource, bson.M{
		"_id":     client.ResourceID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("resource not found")
	}

	// reduce scope to the resource defined scope
	scope := resource.FilterScope(req.Scope)

	// issue access token
	accessToken, err := p.issueAccessToken(ctx, client.ID(), resource.ID(), user.ID(), scope, "", "")
	if err != nil {
		return err
	}

	return writeTokenResponse(w, accessToken, nil, nil)
}

func writeTokenResponse(w http.ResponseWriter, accessToken *AccessToken, refreshToken *RefreshToken, idToken *IDToken) error {
	// prepare response
	res := tokenResponse{
		AccessToken: accessToken.Token,
		TokenType:   "Bearer",
		ExpiresIn:   accessToken.ExpiresIn,
	}

	// set refresh token if available
	if refreshToken != nil {
		res.RefreshToken = refreshToken.Token
	}

	// set id token if available
	if idToken != nil {
		res.IDToken = idToken.Token
	}

	return writeJSON(w, http.StatusOK, res)
}
