// Package store provides the two key-value stores the engine depends on: a
// settings store without expiry and a job store whose entries carry a TTL.
// Backends are SQLite (default), Redis and in-process memory.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
)

// ConfigStore holds read-mostly settings, posts and assistant records.
type ConfigStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// JobStore holds job records and results. Each key is written by a single
// writer; expired keys read as errs.ErrNotFound.
type JobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	// PurgeExpired removes expired entries and reports how many it removed.
	// Backends with native expiry return zero.
	PurgeExpired(ctx context.Context) (int64, error)
}

// Backend bundles the stores of one opened backend.
type Backend struct {
	Settings ConfigStore
	Jobs     JobStore
	close    func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open selects the backend named by cfg.Driver.
func Open(cfg config.StoreConfig) (*Backend, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		s, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Backend{Settings: s.Settings(), Jobs: s.Jobs(), close: s.Close}, nil
	case "redis":
		r, err := NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return &Backend{Settings: r.Settings(), Jobs: r.Jobs(), close: r.Close}, nil
	case "memory":
		m := NewMemory()
		return &Backend{Settings: m.Settings(), Jobs: m.Jobs()}, nil
	}
	return nil, errs.Config("unknown store driver %q", cfg.Driver)
}

// GetJSON decodes the value at key into v.
func GetJSON(ctx context.Context, s interface {
	Get(context.Context, string) ([]byte, error)
}, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// SetJSON stores v as JSON in a settings store.
func SetJSON(ctx context.Context, s ConfigStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// PutJSON stores v as JSON in a job store with a TTL.
func PutJSON(ctx context.Context, s JobStore, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}

// normalizeKey trims whitespace and applies Unicode NFC normalization so
// visually identical keys compare equal.
func normalizeKey(key string) string {
	return norm.NFC.String(strings.TrimSpace(key))
}
