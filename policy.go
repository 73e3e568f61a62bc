package oidc

import (
	"crypto/rsa"
	"time"

	"github.com/256dpi/oidc/keys"
	"github.com/256dpi/oidc/store"
)

// Policy configures the token issuance of a provider.
type Policy struct {
	// The issuer included in all issued tokens.
	Issuer string

	// The lifetimes of the issued grants and tokens.
	GrantLifetime        time.Duration
	AccessTokenLifetime  time.Duration
	IDTokenLifetime      time.Duration
	RefreshTokenLifetime time.Duration

	// The key pair used to sign and verify ID tokens.
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey

	// The PEM encoded public key served to verifiers.
	PublicKeyPEM string
}

// DefaultPolicy returns a policy with a freshly generated key pair and
// reasonable defaults. It is intended for tests and development setups.
func DefaultPolicy(issuer string) *Policy {
	// generate key
	key := keys.MustGenerateKey(2048)

	// encode public key
	pemData, err := keys.EncodePublicKeyPEM(&key.PublicKey)
	if err != nil {
		panic(err)
	}

	return &Policy{
		Issuer:               issuer,
		GrantLifetime:        10 * time.Minute,
		AccessTokenLifetime:  time.Hour,
		IDTokenLifetime:      time.Hour,
		RefreshTokenLifetime: 30 * 24 * time.Hour,
		PrivateKey:           key,
		PublicKey:            &key.PublicKey,
		PublicKeyPEM:         pemData,
	}
}

// PolicyFromConfig returns a policy configured from the provided config. The
// referenced key files are loaded from disk.
func PolicyFromConfig(config Config) (*Policy, error) {
	// load private key
	privateKey, err := keys.LoadPrivateKey(config.PrivateKeyFile)
	if err != nil {
		return nil, err
	}

	// load public key
	publicKey, err := keys.LoadPublicKey(config.PublicKeyFile)
	if err != nil {
		return nil, err
	}

	// load or derive public key pem
	var pemData string
	if config.PublicKeyPEMFile != "" {
		pemData, err = keys.LoadPublicKeyPEM(config.PublicKeyPEMFile)
		if err != nil {
			return nil, err
		}
	} else {
		pemData, err = keys.EncodePublicKeyPEM(publicKey)
		if err != nil {
			return nil, err
		}
	}

	return &Policy{
		Issuer:               config.Issuer,
		GrantLifetime:        config.GrantLifetime,
		AccessTokenLifetime:  config.AccessTokenLifetime,
		IDTokenLifetime:      config.IDTokenLifetime,
		RefreshTokenLifetime: config.RefreshTokenLifetime,
		PrivateKey:           privateKey,
		PublicKey:            publicKey,
		PublicKeyPEM:         pemData,
	}, nil
}

// NewIDTokenClaims returns the base ID token claims for the provided end user
// and client.
func (p *Policy) NewIDTokenClaims(user *EndUser, clientID store.ID) *IDTokenClaims {
	// get time
	now := time.Now()

	// prepare claims
	claims := &IDTokenClaims{
		Issuer:    p.Issuer,
		Subject:   user.ID().Hex(),
		Audience:  clientID.Hex(),
		ExpiresAt: now.Add(p.IDTokenLifetime).Unix(),
		IssuedAt:  now.Unix(),
	}

	// set auth time if available
	if !user.AuthenticatedAt.IsZero() {
		claims.AuthTime = user.AuthenticatedAt.Unix()
	}

	return claims
}
