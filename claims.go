package oidc

import (
	"time"

	"github.com/256dpi/oidc/store"
)

// IDTokenClaims are the claims carried by an issued ID token.
type IDTokenClaims struct {
	Issuer    string `json:"iss"`
	Subject   string `json:"sub"`
	Audience  string `json:"aud"`
	ExpiresAt int64  `json:"exp"`
	IssuedAt  int64  `json:"iat"`
	AuthTime  int64  `json:"auth_time,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
	ACR       string `json:"acr,omitempty"`
	AMR       string `json:"amr,omitempty"`
	AZP       string `json:"azp,omitempty"`
}

// Valid implements the jwt.Claims interface. Validity is checked by the
// callers as expired ID tokens may still be refreshed.
func (c *IDTokenClaims) Valid() error {
	return nil
}

// UserinfoClaims are the end user claims returned by the userinfo endpoint.
type UserinfoClaims struct {
	Issuer        string    `json:"iss"`
	Subject       string    `json:"sub"`
	Audience      string    `json:"aud"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	GivenName     string    `json:"given_name,omitempty"`
	FamilyName    string    `json:"family_name,omitempty"`
	MiddleName    string    `json:"middle_name,omitempty"`
	Nickname      string    `json:"nickname,omitempty"`
	Profile       string    `json:"profile,omitempty"`
	Picture       string    `json:"picture,omitempty"`
	Website       string    `json:"website,omitempty"`
	Gender        string    `json:"gender,omitempty"`
	Birthdate     string    `json:"birthdate,omitempty"`
	Zoneinfo      string    `json:"zoneinfo,omitempty"`
	Locale        string    `json:"locale,omitempty"`
	PhoneNumber   string    `json:"phone_number,omitempty"`
	PhoneVerified bool      `json:"phone_number_verified"`
	AuthTime      int64     `json:"auth_time,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newUserinfoClaims(issuer string, user *EndUser, clientID store.ID) *UserinfoClaims {
	// prepare claims
	claims := &UserinfoClaims{
		Issuer:        issuer,
		Subject:       user.ID().Hex(),
		Audience:      clientID.Hex(),
		Name:          user.Name,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		GivenName:     user.GivenName,
		FamilyName:    user.FamilyName,
		MiddleName:    user.MiddleName,
		Nickname:      user.Nickname,
		Profile:       user.Profile,
		Picture:       user.Picture,
		Website:       user.Website,
		Gender:        user.Gender,
		Zoneinfo:      user.Zoneinfo,
		Locale:        user.Locale,
		PhoneNumber:   user.PhoneNumber,
		PhoneVerified: user.PhoneVerified,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}

	// set birthdate if available
	if user.Birthdate.IsValid() {
		claims.Birthdate = user.Birthdate.String()
	}

	// set auth time if available
	if !user.AuthenticatedAt.IsZero() {
		claims.AuthTime = user.AuthenticatedAt.Unix()
	}

	return claims
}
