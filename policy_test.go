package oidc

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/256dpi/oidc/store"
)

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy("http://auth.example.com")
	assert.Equal(t, "http://auth.example.com", policy.Issuer)
	assert.Equal(t, 10*time.Minute, policy.GrantLifetime)
	assert.Equal(t, time.Hour, policy.AccessTokenLifetime)
	assert.Equal(t, time.Hour, policy.IDTokenLifetime)
	assert.Equal(t, 30*24*time.Hour, policy.RefreshTokenLifetime)
	assert.NotNil(t, policy.PrivateKey)
	assert.NotNil(t, policy.PublicKey)
	assert.Contains(t, policy.PublicKeyPEM, "BEGIN PUBLIC KEY")
}

func TestPolicyFromConfig(t *testing.T) {
	dir := t.TempDir()

	// encode keys
	privateDER := x509.MarshalPKCS1PrivateKey(testPolicy.PrivateKey)
	publicDER, err := x509.MarshalPKIXPublicKey(testPolicy.PublicKey)
	assert.NoError(t, err)

	// write key files
	privateFile := filepath.Join(dir, "private_key.der")
	publicFile := filepath.Join(dir, "public_key.der")
	assert.NoError(t, os.WriteFile(privateFile, privateDER, 0600))
	assert.NoError(t, os.WriteFile(publicFile, publicDER, 0600))

	// load keys and derive pem
	policy, err := PolicyFromConfig(Config{
		Issuer:               "http://auth.example.com",
		GrantLifetime:        5 * time.Minute,
		AccessTokenLifetime:  time.Minute,
		IDTokenLifetime:      time.Minute,
		RefreshTokenLifetime: time.Hour,
		PrivateKeyFile:       privateFile,
		PublicKeyFile:        publicFile,
	})
	assert.NoError(t, err)
	assert.Equal(t, "http://auth.example.com", policy.Issuer)
	assert.Equal(t, 5*time.Minute, policy.GrantLifetime)
	assert.Equal(t, time.Minute, policy.AccessTokenLifetime)
	assert.True(t, policy.PrivateKey.Equal(testPolicy.PrivateKey))
	assert.True(t, policy.PublicKey.Equal(testPolicy.PublicKey))
	assert.Equal(t, testPolicy.PublicKeyPEM, policy.PublicKeyPEM)

	// load pem from file
	pemFile := filepath.Join(dir, "public_key.pem")
	assert.NoError(t, os.WriteFile(pemFile, []byte(testPolicy.PublicKeyPEM), 0600))

	policy, err = PolicyFromConfig(Config{
		PrivateKeyFile:   privateFile,
		PublicKeyFile:    publicFile,
		PublicKeyPEMFile: pemFile,
	})
	assert.NoError(t, err)
	assert.Equal(t, testPolicy.PublicKeyPEM, policy.PublicKeyPEM)

	// missing key file
	_, err = PolicyFromConfig(Config{
		PrivateKeyFile: filepath.Join(dir, "missing.der"),
	})
	assert.Error(t, err)
}

func TestPolicyNewIDTokenClaims(t *testing.T) {
	user := &EndUser{
		Base: store.B(),
		Name: "user",
	}
	clientID := store.New()

	// check claims without auth time
	claims := testPolicy.NewIDTokenClaims(user, clientID)
	assert.Equal(t, "http://auth.example.com", claims.Issuer)
	assert.Equal(t, user.ID().Hex(), claims.Subject)
	assert.Equal(t, clientID.Hex(), claims.Audience)
	assert.Equal(t, int64(3600), claims.ExpiresAt-claims.IssuedAt)
	assert.Zero(t, claims.AuthTime)
	assert.Empty(t, claims.Nonce)

	// check claims with auth time
	user.AuthenticatedAt = time.Now().Add(-time.Minute)
	claims = testPolicy.NewIDTokenClaims(user, clientID)
	assert.Equal(t, user.AuthenticatedAt.Unix(), claims.AuthTime)
}
