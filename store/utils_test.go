package store

import (
	"testing"
)

var mongoStore = MustConnect("mongodb://0.0.0.0/test-oidc-store")
var lungoStore = MustOpen(nil, "test-oidc-store")

type noteModel struct {
	Base  `json:"-" bson:",inline"`
	Title string `json:"title" bson:"title"`
}

func withTester(t *testing.T, fn func(*testing.T, *Tester)) {
	t.Run("Mongo", func(t *testing.T) {
		tester := NewTester(mongoStore, "notes")
		tester.Clean()
		fn(t, tester)
	})

	t.Run("Lungo", func(t *testing.T) {
		tester := NewTester(lungoStore, "notes")
		tester.Clean()
		fn(t, tester)
	})
}
