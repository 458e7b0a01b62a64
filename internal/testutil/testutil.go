// Package testutil provides shared test helpers for setting up seeded stores.
package testutil

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/starford/gts-portal/internal/auth"
	"github.com/starford/gts-portal/internal/kv"
	"github.com/starford/gts-portal/internal/mockstore"
	"github.com/starford/gts-portal/internal/seed"
)

// FixedNow is the clock every seeded test store runs on. Fixture dates are
// relative to it.
var FixedNow = time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC)

// Now returns FixedNow.
func Now() time.Time { return FixedNow }

// FastHashing lowers the bcrypt cost of seeding and password writes so tests
// that log in stay fast.
func FastHashing() {
	seed.PasswordCost = bcrypt.MinCost
	auth.Cost = bcrypt.MinCost
}

// SeededStore opens a store over a fresh in-memory mirror, seeded from the
// fixtures at FixedNow.
func SeededStore(t *testing.T) *mockstore.Store {
	t.Helper()
	FastHashing()
	store, err := mockstore.Open(context.Background(), kv.NewMemory(), mockstore.Options{Now: Now})
	if err != nil {
		t.Fatal(err)
	}
	return store
}
