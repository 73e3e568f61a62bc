package keys

import (
	"crypto/rsa"

	"github.com/256dpi/xo"
	"github.com/golang-jwt/jwt/v4"
)

var jwtSigningMethod = jwt.SigningMethodRS256

var jwtParser = &jwt.Parser{
	ValidMethods: []string{jwtSigningMethod.Name},
}

// ErrInvalidToken is returned if a token is in some way invalid.
var ErrInvalidToken = xo.BF("invalid token")

// Sign will sign the provided claims using RS256 and return the compact
// token.
func Sign(key *rsa.PrivateKey, claims jwt.Claims) (string, error) {
	// create and sign token
	token, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString(key)
	if err != nil {
		return "", xo.W(err)
	}

	return token, nil
}

// Parse will parse the provided token and decode its claims. The signature
// and signing method are always enforced while any further validation is up
// to the provided claims implementation.
func Parse(key *rsa.PublicKey, token string, claims jwt.Claims) error {
	// parse token
	tkn, err := jwtParser.ParseWithClaims(token, claims, func(_ *jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return ErrInvalidToken.Wrap()
	} else if !tkn.Valid {
		return ErrInvalidToken.Wrap()
	}

	return nil
}
