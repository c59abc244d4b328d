package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valpere/polytran/internal/errs"
)

type memEntry struct {
	value   []byte
	expires time.Time // zero for settings
	created time.Time
}

// Memory is an in-process backend for tests and single-process runs.
type Memory struct {
	mu       sync.Mutex
	settings map[string]memEntry
	jobs     map[string]memEntry
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		settings: make(map[string]memEntry),
		jobs:     make(map[string]memEntry),
		now:      time.Now,
	}
}

// SetClock replaces the time source, for expiry tests.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Settings() ConfigStore { return memSettings{m} }

func (m *Memory) Jobs() JobStore { return memJobs{m} }

func (m *Memory) get(table map[string]memEntry, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := table[normalizeKey(key)]
	if !ok || (!e.expires.IsZero() && !m.now().Before(e.expires)) {
		return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, key)
	}
	return append([]byte(nil), e.value...), nil
}

func (m *Memory) set(table map[string]memEntry, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{value: append([]byte(nil), value...), created: m.now()}
	if ttl > 0 {
		e.expires = e.created.Add(ttl)
	}
	table[normalizeKey(key)] = e
}

func (m *Memory) del(table map[string]memEntry, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(table, normalizeKey(key))
}

func (m *Memory) keys(table map[string]memEntry, prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix = normalizeKey(prefix)
	now := m.now()

	type kv struct {
		key     string
		created time.Time
	}
	var found []kv
	for k, e := range table {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if !e.expires.IsZero() && !now.Before(e.expires) {
			continue
		}
		found = append(found, kv{k, e.created})
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].created.Equal(found[j].created) {
			return found[i].key < found[j].key
		}
		return found[i].created.Before(found[j].created)
	})

	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.key
	}
	return out
}

type memSettings struct{ m *Memory }

func (v memSettings) Get(ctx context.Context, key string) ([]byte, error) {
	return v.m.get(v.m.settings, key)
}

func (v memSettings) Set(ctx context.Context, key string, value []byte) error {
	v.m.set(v.m.settings, key, value, 0)
	return nil
}

func (v memSettings) Delete(ctx context.Context, key string) error {
	v.m.del(v.m.settings, key)
	return nil
}

func (v memSettings) Keys(ctx context.Context, prefix string) ([]string, error) {
	return v.m.keys(v.m.settings, prefix), nil
}

type memJobs struct{ m *Memory }

func (v memJobs) Get(ctx context.Context, key string) ([]byte, error) {
	return v.m.get(v.m.jobs, key)
}

func (v memJobs) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("job key %s: ttl must be positive", key)
	}
	v.m.set(v.m.jobs, key, value, ttl)
	return nil
}

func (v memJobs) Delete(ctx context.Context, key string) error {
	v.m.del(v.m.jobs, key)
	return nil
}

func (v memJobs) Keys(ctx context.Context, prefix string) ([]string, error) {
	return v.m.keys(v.m.jobs, prefix), nil
}

func (v memJobs) PurgeExpired(ctx context.Context) (int64, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	now := v.m.now()
	var n int64
	for k, e := range v.m.jobs {
		if !now.Before(e.expires) {
			delete(v.m.jobs, k)
			n++
		}
	}
	return n, nil
}
