package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/valpere/polytran/internal/errs"
)

// SQLite stores settings and jobs in two tables of one database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLite(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; workers in other processes retry on busy
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- jobs holds job records and results; expires_at is unix nanoseconds
	CREATE TABLE IF NOT EXISTS jobs (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_expiry ON jobs(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Settings is the ConfigStore view.
func (s *SQLite) Settings() ConfigStore { return sqliteSettings{s} }

// Jobs is the JobStore view.
func (s *SQLite) Jobs() JobStore { return sqliteJobs{s} }

type sqliteSettings struct{ s *SQLite }

func (v sqliteSettings) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := v.s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, normalizeKey(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, key)
	}
	return value, err
}

func (v sqliteSettings) Set(ctx context.Context, key string, value []byte) error {
	_, err := v.s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		normalizeKey(key), value, v.s.now())
	return err
}

func (v sqliteSettings) Delete(ctx context.Context, key string) error {
	_, err := v.s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, normalizeKey(key))
	return err
}

func (v sqliteSettings) Keys(ctx context.Context, prefix string) ([]string, error) {
	return v.s.keys(ctx, `SELECT key FROM settings WHERE key LIKE ? ESCAPE '\' ORDER BY key`, prefix)
}

type sqliteJobs struct{ s *SQLite }

func (v sqliteJobs) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := v.s.db.QueryRowContext(ctx,
		`SELECT value FROM jobs WHERE key = ? AND expires_at > ?`,
		normalizeKey(key), v.s.now().UnixNano()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, key)
	}
	return value, err
}

func (v sqliteJobs) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("job key %s: ttl must be positive", key)
	}
	_, err := v.s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO jobs (key, value, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		normalizeKey(key), value, v.s.now().Add(ttl).UnixNano(), v.s.now())
	return err
}

func (v sqliteJobs) Delete(ctx context.Context, key string) error {
	_, err := v.s.db.ExecContext(ctx, `DELETE FROM jobs WHERE key = ?`, normalizeKey(key))
	return err
}

func (v sqliteJobs) Keys(ctx context.Context, prefix string) ([]string, error) {
	return v.s.keys(ctx,
		fmt.Sprintf(`SELECT key FROM jobs WHERE key LIKE ? ESCAPE '\' AND expires_at > %d ORDER BY created_at`, v.s.now().UnixNano()),
		prefix)
}

func (v sqliteJobs) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := v.s.db.ExecContext(ctx, `DELETE FROM jobs WHERE expires_at <= ?`, v.s.now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLite) keys(ctx context.Context, query, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, likePrefix(normalizeKey(prefix)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
