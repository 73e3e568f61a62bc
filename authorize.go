package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/256dpi/oauth2/v2"
	"github.com/256dpi/oauth2/v2/bearer"
	"github.com/256dpi/xo"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/256dpi/oidc/keys"
	"github.com/256dpi/oidc/session"
	"github.com/256dpi/oidc/store"
)

type requireAcceptance struct {
	GrantID string  `json:"grant_id"`
	Scope   []Scope `json:"scope"`
}

type acceptRequest struct {
	Action  string `json:"action"`
	GrantID string `json:"grant_id"`
}

func (p *Provider) authorize(w http.ResponseWriter, r *http.Request) error {
	// get context
	ctx := r.Context()

	// parse authorization request
	req, err := oauth2.ParseAuthorizationRequest(r)
	if err != nil {
		return err
	}

	// authenticate end user
	user, err := p.authenticateEndUser(ctx, r)
	if err != nil {
		return err
	}

	// parse client id
	clientID, err := store.FromHex(req.ClientID)
	if err != nil {
		return EntityNotFound("client not found")
	}

	// load client
	var client Client
	found, err := p.store.C(ClientColl).FindOne(ctx, &client, bson.M{
		"_id":     clientID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("client not found")
	}

	// validate redirect uri
	if !client.ValidRedirectURI(req.RedirectURI) {
		return oauth2.InvalidRequest("invalid redirect uri")
	}

	// derive flow
	responseType := ParseResponseType(req.ResponseType)
	if responseType.Flow() == UndefinedFlow {
		return oauth2.InvalidRequest("invalid response type").SetRedirect(req.RedirectURI, req.State, false)
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

	// prepare grant
	grant := &Grant{
		Base:         store.B(),
		EndUserID:    user.ID(),
		ClientID:     client.ID(),
		ResourceID:   resource.ID(),
		RedirectURI:  req.RedirectURI,
		Code:         keys.MustRandString(64),
		ResponseType: req.ResponseType,
		Scope:        scope,
		State:        req.State,
		Nonce:        r.URL.Query().Get("nonce"),
		Status:       GrantCreated,
		CreatedAt:    time.Now(),
		ExpiresIn:    int64(p.policy.GrantLifetime / time.Second),
	}

	// insert grant
	err = p.store.C(GrantColl).Insert(ctx, grant)
	if err != nil {
		return err
	}

	// redeem immediately if the scope has been accepted before
	if user.HasAccepted(client.ID(), scope) {
		return p.generateCodeOrTokens(ctx, w, user, grant)
	}

	// ask for acceptance otherwise
	return writeJSON(w, http.StatusOK, requireAcceptance{
		GrantID: grant.ID().Hex(),
		Scope:   resource.DescribeScope(scope),
	})
}

func (p *Provider) accept(w http.ResponseWriter, r *http.Request) error {
	// get context
	ctx := r.Context()

	// decode request
	var req acceptRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		return oauth2.InvalidRequest("malformed request body")
	}

	// parse grant id
	grantID, err := store.FromHex(req.GrantID)
	if err != nil {
		return oauth2.InvalidRequest("grant not found")
	}

	// load grant
	var grant Grant
	found, err := p.store.C(GrantColl).FindOne(ctx, &grant, bson.M{
		"_id":     grantID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return oauth2.InvalidRequest("grant not found")
	}

	// load client
	var client Client
	found, err = p.store.C(ClientColl).FindOne(ctx, &client, bson.M{
		"_id":     grant.ClientID,
		"deleted": false,
	})
	if err != nil {
		return err
	} else if !found {
		return EntityNotFound("client not found")
	}

	// revalidate redirect uri
	if !client.ValidRedirectURI(grant.RedirectURI) {
		return oauth2.InvalidRequest("invalid redirect uri")
	}

	// authenticate end user
	user, err := p.authenticateEndUser(ctx, r)
	if err != nil {
		return err
	}

	// check grant ownership
	if grant.EndUserID != user.ID() {
		return AccessDenied("grant does not belong to end user")
	}

	// determine response mode
	useFragment := ParseResponseType(grant.ResponseType).Flow() != AuthorizationCodeFlow

	// handle rejection
	if req.Action != "accept" {
		return oauth2.AccessDenied("rejected by end user").SetRedirect(grant.RedirectURI, grant.State, useFragment)
	}

	// record acceptance
	user.AcceptClient(client.ID(), grant.Scope)
	user.UpdatedAt = time.Now()

	// save end user
	_, err = p.store.C(EndUserColl).Replace(ctx, user.ID(), user)
	if err != nil {
		return err
	}

	return p.generateCodeOrTokens(ctx, w, user, &grant)
}

// authenticateEndUser resolves the end user session carried in the request.
func (p *Provider) authenticateEndUser(ctx context.Context, r *http.Request) (*EndUser, error) {
	// get session id
	sid, err := bearer.ParseToken(r)
	if err != nil {
		return nil, RequireLogin("missing session")
	}

	// look up session
	value, err := p.sessions.Get(ctx, sid, session.EndUserField)
	if errors.Is(err, session.ErrNoSession) {
		return nil, RequireLogin("missing session")
	} else if err != nil {
		return nil, TemporarilyUnavailable("session store unavailable")
	}

	// parse end user id
	userID, err := store.FromHex(value)
	if err != nil {
		return nil, RequireLogin("invalid session")
	}

	// load end user
	var user EndUser
	found, err := p.store.C(EndUserColl).FindOne(ctx, &user, bson.M{
		"_id":     userID,
		"deleted": false,
	})
	if err != nil {
		return nil, err
	} else if !found {
		return nil, RequireLogin("invalid session")
	}

	return &user, nil
}

func (p *Provider) generateCodeOrTokens(ctx context.Context, w http.ResponseWriter, user *EndUser, grant *Grant) error {
	// determine response mode
	responseType := ParseResponseType(grant.ResponseType)
	useFragment := responseType.Flow() != AuthorizationCodeFlow

	// prepare redirect helper
	fail := func(err *oauth2.Error) error {
		return err.SetRedirect(grant.RedirectURI, grant.State, useFragment)
	}

	// activate grant if still unredeemed
	found, err := p.store.C(GrantColl).Swap(ctx, grant, bson.M{
		"_id":     grant.ID(),
		"status":  GrantCreated,
		"deleted": false,
	}, bson.M{
		"$set": bson.M{"status": GrantActivated},
	}, true)
	if err != nil {
		return err
	} else if !found {
		return fail(oauth2.InvalidRequest("grant already used"))
	}

	// check grant ownership
	if grant.EndUserID != user.ID() {
		return fail(oauth2.AccessDenied("grant does not belong to end user"))
	}

	// check grant validity
	if !grant.Valid() {
		return fail(oauth2.InvalidGrant("grant has expired"))
	}

	// prepare params
	params := map[string]string{}

	// add state if available
	if grant.State != "" {
		params["state"] = grant.State
	}

	// add code if requested
	if responseType.HasCode() {
		params["code"] = grant.Code
	}

	// issue access token if requested
	if responseType.HasToken() {
		accessToken, err := p.issueAccessToken(ctx, grant.ClientID, grant.ResourceID, grant.EndUserID, grant.Scope, grant.State, grant.Nonce)
		if err != nil {
			return err
		}
		params["access_token"] = accessToken.Token
		params["token_type"] = "Bearer"
		params["expires_in"] = strconv.FormatInt(accessToken.ExpiresIn, 10)
	}

	// issue id token if requested
	if responseType.HasIDToken() {
		idToken, err := p.issueIDToken(ctx, user, grant.ClientID, grant.Nonce)
		if err != nil {
			return err
		}
		params["id_token"] = idToken.Token
		params["token_type"] = "Bearer"
	}

	// write redirect
	return xo.W(oauth2.WriteRedirect(w, grant.RedirectURI, params, useFragment))
}

func (p *Provider) issueAccessToken(ctx context.Context, clientID, resourceID, endUserID store.ID, scope oauth2.Scope, state, nonce string) (*AccessToken, error) {
	// prepare access token
	accessToken := &AccessToken{
		Base:       store.B(),
		ClientID:   clientID,
		ResourceID: resourceID,
		EndUserID:  endUserID,
		Token:      keys.MustRandString(64),
		Scope:      scope,
		State:      state,
		Nonce:      nonce,
		CreatedAt:  time.Now(),
		ExpiresIn:  int64(p.policy.AccessTokenLifetime / time.Second),
	}

	// insert access token
	err := p.store.C(AccessTokenColl).Insert(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	return accessToken, nil
}

func (p *Provider) issueIDToken(ctx context.Context, user *EndUser, clientID store.ID, nonce string) (*IDToken, error) {
	// prepare claims
	claims := p.policy.NewIDTokenClaims(user, clientID)
	claims.Nonce = nonce

	// sign claims
	token, err := keys.Sign(p.policy.PrivateKey, claims)
	if err != nil {
		return nil, err
	}

	// prepare id token
	idToken := &IDToken{
		Base:      store.B(),
		EndUserID: user.ID(),
		Token:     token,
		CreatedAt: time.Unix(claims.IssuedAt, 0),
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}

	// insert id token
	err = p.store.C(IDTokenColl).Insert(ctx, idToken)
	if err != nil {
		return nil, err
	}

	return idToken, nil
}
