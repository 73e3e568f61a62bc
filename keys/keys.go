// Package keys provides the key material handling, token signing and secure
// random value generation used by the provider.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/256dpi/xo"
)

// GenerateKey will generate an RSA key pair with the provided bit size.
func GenerateKey(bits int) (*rsa.PrivateKey, error) {
	// generate key
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, xo.W(err)
	}

	return key, nil
}

// MustGenerateKey will call GenerateKey and panic on errors.
func MustGenerateKey(bits int) *rsa.PrivateKey {
	// generate key
	key, err := GenerateKey(bits)
	if err != nil {
		panic(err)
	}

	return key
}

// LoadPrivateKey will read and parse a DER encoded RSA private key from the
// file at the provided path.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	// read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xo.W(err)
	}

	return ParsePrivateKey(data)
}

// ParsePrivateKey will parse a DER encoded RSA private key. Both PKCS#1 and
// PKCS#8 encodings are supported.
func ParsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	// try PKCS#1
	key, err := x509.ParsePKCS1PrivateKey(der)
	if err == nil {
		return key, nil
	}

	// try PKCS#8
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, xo.F("invalid private key")
	}

	// check type
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, xo.F("expected RSA private key")
	}

	return key, nil
}

// LoadPublicKey will read and parse a DER encoded RSA public key from the
// file at the provided path.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	// read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xo.W(err)
	}

	return ParsePublicKey(data)
}

// ParsePublicKey will parse a DER encoded RSA public key. Both PKIX and
// PKCS#1 encodings are supported.
func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	// try PKIX
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err == nil {
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, xo.F("expected RSA public key")
		}

		return key, nil
	}

	// try PKCS#1
	key, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, xo.F("invalid public key")
	}

	return key, nil
}

// EncodePublicKeyPEM will encode the provided RSA public key using the PKIX
// PEM encoding.
func EncodePublicKeyPEM(key *rsa.PublicKey) (string, error) {
	// marshal key
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", xo.W(err)
	}

	// encode block
	data := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	})

	return string(data), nil
}

// LoadPublicKeyPEM will read the PEM encoded public key from the file at the
// provided path and return its verbatim text.
func LoadPublicKeyPEM(path string) (string, error) {
	// read file
	data, err := os.ReadFile(path)
	if err != nil {
		return "", xo.W(err)
	}

	// check encoding
	block, _ := pem.Decode(data)
	if block == nil {
		return "", xo.F("invalid PEM encoding")
	}

	return string(data), nil
}
