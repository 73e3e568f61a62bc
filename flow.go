package oidc

import "strings"

// ResponseType is the parsed list of requested response types.
type ResponseType []string

// ParseResponseType parses the provided space separated response type.
func ParseResponseType(str string) ResponseType {
	return strings.Fields(str)
}

// Has returns whether the response type contains the provided value.
func (t ResponseType) Has(value string) bool {
	// check values
	for _, v := range t {
		if v == value {
			return true
		}
	}

	return false
}

// HasCode returns whether an authorization code has been requested.
func (t ResponseType) HasCode() bool {
	return t.Has("code")
}

// HasToken returns whether an access token has been requested.
func (t ResponseType) HasToken() bool {
	return t.Has("token")
}

// HasIDToken returns whether an ID token has been requested.
func (t ResponseType) HasIDToken() bool {
	return t.Has("id_token")
}

// FlowType enumerates the supported authorization flows.
type FlowType int

// The available flow types.
const (
	UndefinedFlow FlowType = iota
	AuthorizationCodeFlow
	ImplicitFlow
	HybridFlow
)

// Flow derives the authorization flow from the requested response types.
// Unknown values are ignored.
func (t ResponseType) Flow() FlowType {
	// gather requests
	code := t.HasCode()
	token := t.HasToken()
	idToken := t.HasIDToken()

	// derive flow
	switch {
	case code && !token && !idToken:
		return AuthorizationCodeFlow
	case !code && (token || idToken):
		return ImplicitFlow
	case code && (token || idToken):
		return HybridFlow
	}

	return UndefinedFlow
}
