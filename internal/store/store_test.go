package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
)

// clock is a settable time source shared by the backends under test.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type backendCase struct {
	name     string
	settings ConfigStore
	jobs     JobStore
	advance  func(time.Duration)
}

func backends(t *testing.T) []backendCase {
	t.Helper()

	sqliteClock := &clock{t: time.Unix(1_700_000_000, 0)}
	sq, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	sq.now = sqliteClock.now
	t.Cleanup(func() { sq.Close() })

	memClock := &clock{t: time.Unix(1_700_000_000, 0)}
	mem := NewMemory()
	mem.SetClock(memClock.now)

	mr := miniredis.RunT(t)
	rd, err := NewRedis(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { rd.Close() })

	return []backendCase{
		{"sqlite", sq.Settings(), sq.Jobs(), sqliteClock.advance},
		{"memory", mem.Settings(), mem.Jobs(), memClock.advance},
		{"redis", rd.Settings(), rd.Jobs(), mr.FastForward},
	}
}

func TestSettings_CRUD(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			_, err := b.settings.Get(ctx, "missing")
			assert.True(t, errors.Is(err, errs.ErrNotFound))

			require.NoError(t, b.settings.Set(ctx, "post:1", []byte(`{"title":"a"}`)))
			require.NoError(t, b.settings.Set(ctx, "post:1", []byte(`{"title":"b"}`)))
			require.NoError(t, b.settings.Set(ctx, "post:2", []byte(`x`)))
			require.NoError(t, b.settings.Set(ctx, "workflows", []byte(`[]`)))

			got, err := b.settings.Get(ctx, "  post:1 ")
			require.NoError(t, err)
			assert.Equal(t, `{"title":"b"}`, string(got))

			keys, err := b.settings.Keys(ctx, "post:")
			require.NoError(t, err)
			assert.Equal(t, []string{"post:1", "post:2"}, keys)

			require.NoError(t, b.settings.Delete(ctx, "post:1"))
			_, err = b.settings.Get(ctx, "post:1")
			assert.True(t, errors.Is(err, errs.ErrNotFound))
		})
	}
}

func TestJobs_TTL(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			require.NoError(t, b.jobs.Set(ctx, "job_record:abc", []byte("r"), time.Minute))
			require.NoError(t, b.jobs.Set(ctx, "job_result:abc", []byte("done"), time.Hour))

			got, err := b.jobs.Get(ctx, "job_record:abc")
			require.NoError(t, err)
			assert.Equal(t, "r", string(got))

			keys, err := b.jobs.Keys(ctx, "job_")
			require.NoError(t, err)
			assert.Len(t, keys, 2)

			b.advance(2 * time.Minute)

			_, err = b.jobs.Get(ctx, "job_record:abc")
			assert.True(t, errors.Is(err, errs.ErrNotFound), "record expired")

			got, err = b.jobs.Get(ctx, "job_result:abc")
			require.NoError(t, err)
			assert.Equal(t, "done", string(got))

			_, err = b.jobs.PurgeExpired(ctx)
			require.NoError(t, err)

			keys, err = b.jobs.Keys(ctx, "job_")
			require.NoError(t, err)
			assert.Equal(t, []string{"job_result:abc"}, keys)

			assert.Error(t, b.jobs.Set(ctx, "k", []byte("v"), 0), "zero ttl rejected")
		})
	}
}

func TestSQLite_PurgeExpiredCounts(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "purge.db"))
	require.NoError(t, err)
	defer s.Close()
	s.now = c.now

	jobs := s.Jobs()
	require.NoError(t, jobs.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, jobs.Set(ctx, "b", []byte("2"), time.Second))
	require.NoError(t, jobs.Set(ctx, "c", []byte("3"), time.Hour))
	c.advance(time.Minute)

	n, err := jobs.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestKeys_PrefixIsLiteral(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			require.NoError(t, b.settings.Set(ctx, "a_b", []byte("1")))
			require.NoError(t, b.settings.Set(ctx, "axb", []byte("2")))

			keys, err := b.settings.Keys(ctx, "a_")
			require.NoError(t, err)
			assert.Equal(t, []string{"a_b"}, keys)
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	type rec struct {
		Name string `json:"name"`
	}
	require.NoError(t, SetJSON(ctx, m.Settings(), "k", rec{Name: "x"}))
	var got rec
	require.NoError(t, GetJSON(ctx, m.Settings(), "k", &got))
	assert.Equal(t, "x", got.Name)

	require.NoError(t, PutJSON(ctx, m.Jobs(), "j", rec{Name: "y"}, time.Minute))
	require.NoError(t, GetJSON(ctx, m.Jobs(), "j", &got))
	assert.Equal(t, "y", got.Name)

	require.NoError(t, m.Settings().Set(ctx, "bad", []byte("{")))
	assert.Error(t, GetJSON(ctx, m.Settings(), "bad", &got))
}

func TestOpen(t *testing.T) {
	b, err := Open(config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.NoError(t, b.Close())

	b, err = Open(config.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.NoError(t, b.Close())

	_, err = Open(config.StoreConfig{Driver: "etcd"})
	assert.Equal(t, errs.KindConfiguration, errs.KindOf(err))
}
