// Package store provides the key-value repository used by all persisted
// relay and agent state (registrations, notification history, allowlists).
//
// Every value is an opaque byte slice written with a single atomic
// overwrite. Readers must tolerate missing keys: Get reports presence
// with a bool, never an error, so callers substitute their empty-state
// default. Backends: file (standalone), sqlite (device agent),
// redis (managed relay mode), memory (tests).
package store

import (
	"context"
	"fmt"
)

// KV is the minimal atomic key-value contract the core depends on.
type KV interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put atomically overwrites the value for key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all keys beginning with prefix, in unspecified order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config selects and configures a KV backend.
type Config struct {
	// Backend: "file" (default), "sqlite", "redis" or "memory".
	Backend string `yaml:"backend"`

	// Dir is the data directory for the file backend.
	Dir string `yaml:"dir"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// RedisAddr is the host:port for the redis backend.
	RedisAddr string `yaml:"redis_addr"`

	// RedisPassword is optional.
	RedisPassword string `yaml:"redis_password"`

	// RedisDB selects the redis logical database.
	RedisDB int `yaml:"redis_db"`
}

// Open creates the KV backend selected by cfg.
func Open(cfg Config) (KV, error) {
	switch cfg.Backend {
	case "", "file":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("store: file backend requires dir")
		}
		return NewFileKV(cfg.Dir)
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("store: sqlite backend requires sqlite_path")
		}
		return NewSQLiteKV(cfg.SQLitePath)
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("store: redis backend requires redis_addr")
		}
		return NewRedisKV(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
	case "memory":
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
