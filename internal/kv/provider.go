// Package kv defines the persistent key-value mirror the mock tables are
// serialised into, with file, SQLite, bbolt, Redis, and in-memory backends.
package kv

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Provider is the interface for mirror storage operations.
type Provider interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns every stored key in no particular order.
	Keys(ctx context.Context) ([]string, error)
	// Close releases the backend.
	Close() error
}

var keyRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// validKey rejects keys that cannot be used as a file name on every backend.
func validKey(key string) error {
	if key == "" || key == "." || key == ".." || !keyRe.MatchString(key) {
		return fmt.Errorf("kv: invalid key %q", key)
	}
	return nil
}
