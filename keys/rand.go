package keys

import (
	"crypto/rand"
	"io"

	"github.com/256dpi/xo"
)

// the alphabet used for random strings
const randAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Rand will return n secure random bytes.
func Rand(n int) ([]byte, error) {
	// read from random generator
	bytes := make([]byte, n)
	_, err := io.ReadFull(rand.Reader, bytes)
	if err != nil {
		return nil, xo.W(err)
	}

	return bytes, nil
}

// MustRand will call Rand and panic on errors.
func MustRand(n int) []byte {
	// generate bytes
	bytes, err := Rand(n)
	if err != nil {
		panic(err.Error())
	}

	return bytes
}

// RandString will return a secure random string of length n that consists of
// letters and digits only.
func RandString(n int) (string, error) {
	// prepare buffer
	buf := make([]byte, 0, n)

	// sample bytes and skip values beyond the last even alphabet multiple to
	// keep the distribution uniform
	limit := byte(256 - 256%len(randAlphabet))
	for len(buf) < n {
		bytes, err := Rand(n)
		if err != nil {
			return "", err
		}
		for _, b := range bytes {
			if b < limit && len(buf) < n {
				buf = append(buf, randAlphabet[int(b)%len(randAlphabet)])
			}
		}
	}

	return string(buf), nil
}

// MustRandString will call RandString and panic on errors.
func MustRandString(n int) string {
	// generate string
	str, err := RandString(n)
	if err != nil {
		panic(err.Error())
	}

	return str
}
