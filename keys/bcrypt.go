package keys

import (
	"github.com/256dpi/xo"
	"golang.org/x/crypto/bcrypt"
)

var hashCost = bcrypt.DefaultCost

// UnsafeFastHash can be called to set the minimum allowed hash cost. This
// should only be used for speeding up automated tests.
func UnsafeFastHash() {
	hashCost = bcrypt.MinCost
}

// Hash uses bcrypt to safely compute a hash. The returned hash can be
// converted to a readable string.
func Hash(str string) ([]byte, error) {
	// generate hash from password
	hash, err := bcrypt.GenerateFromPassword([]byte(str), hashCost)
	if err != nil {
		return nil, xo.W(err)
	}

	return hash, nil
}

// MustHash will call Hash and panic on errors.
func MustHash(str string) []byte {
	// hash string
	hash, err := Hash(str)
	if err != nil {
		panic(err.Error())
	}

	return hash
}

// Compare will safely compare the specified hash to its unhashed version and
// return nil if they match.
func Compare(hash []byte, str string) error {
	return xo.W(bcrypt.CompareHashAndPassword(hash, []byte(str)))
}
