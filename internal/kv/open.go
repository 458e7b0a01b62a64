package kv

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
)

// Backends lists every supported backend name.
var Backends = []string{BackendMemory, BackendFile, BackendSQLite, BackendBolt, BackendRedis}

// Options selects and configures a backend.
type Options struct {
	Backend   string
	Path      string // directory for file, database file for sqlite and bolt
	RedisURL  string
	Namespace string
}

// Open returns the Provider described by opts.
func Open(ctx context.Context, opts Options) (Provider, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendFile:
		return NewFS(opts.Path)
	case BackendSQLite:
		return OpenSQLite(opts.Path)
	case BackendBolt:
		return OpenBolt(opts.Path)
	case BackendRedis:
		return OpenRedis(ctx, opts.RedisURL, opts.Namespace)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", opts.Backend)
	}
}
