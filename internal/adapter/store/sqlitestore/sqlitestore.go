// Package sqlitestore persists the central store in a single SQLite file, the
// zero-dependency option for self-hosted deployments. One connection in WAL
// mode serves all readers and the single writer; expired rows are filtered on
// read and reaped by a background sweeper.
package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/tidwall/gjson"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/lookout-monitor/lookout/internal/core/ports"
)

const (
	migrationsPath = "migrations"
	sweepInterval  = 10 * time.Minute
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db     *sql.DB
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
	doneWG sync.WaitGroup
}

var _ ports.KeyValueStore = (*Store)(nil)

// Open creates or opens the database at path, applies pending migrations and
// starts the expiry sweeper. Use ":memory:" for throwaway instances.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// Single-writer: one connection avoids SQLITE_BUSY under concurrency.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q on %s: %w", p, path, err)
		}
	}

	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, now: time.Now, stop: make(chan struct{})}
	s.doneWG.Add(1)
	go s.sweepLoop()
	return s, nil
}

func migrateDB(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, migrationsPath)
	if err != nil {
		return fmt.Errorf("migrate: init source: %w", err)
	}
	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migrate: init db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("migrate: init migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}

func (s *Store) nowMs() int64 {
	return s.now().UnixMilli()
}

func (s *Store) expiryFor(ttl time.Duration) any {
	if ttl <= 0 {
		return nil
	}
	return s.now().Add(ttl).UnixMilli()
}

func (s *Store) Put(ctx context.Context, rec ports.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (pk, sk, value, expires_at_ms) VALUES (?, ?, ?, ?)
		ON CONFLICT (pk, sk) DO UPDATE SET value = excluded.value, expires_at_ms = excluded.expires_at_ms`,
		rec.PK, rec.SK, string(rec.Value), s.expiryFor(rec.TTL))
	if err != nil {
		return fmt.Errorf("sqlite put %s/%s: %w", rec.PK, rec.SK, err)
	}
	return nil
}

func (s *Store) PutIfNewer(ctx context.Context, rec ports.Record, lastCheckMs int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite conditional put %s/%s: begin: %w", rec.PK, rec.SK, err)
	}
	defer tx.Rollback()

	var stored string
	err = tx.QueryRowContext(ctx, `
		SELECT value FROM kv WHERE pk = ? AND sk = ? AND (expires_at_ms IS NULL OR expires_at_ms > ?)`,
		rec.PK, rec.SK, s.nowMs()).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("sqlite conditional put %s/%s: read: %w", rec.PK, rec.SK, err)
	default:
		if gjson.Get(stored, "last_check_ms").Int() >= lastCheckMs {
			return ports.ErrConditionFailed
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kv (pk, sk, value, expires_at_ms) VALUES (?, ?, ?, ?)
		ON CONFLICT (pk, sk) DO UPDATE SET value = excluded.value, expires_at_ms = excluded.expires_at_ms`,
		rec.PK, rec.SK, string(rec.Value), s.expiryFor(rec.TTL)); err != nil {
		return fmt.Errorf("sqlite conditional put %s/%s: write: %w", rec.PK, rec.SK, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite conditional put %s/%s: commit: %w", rec.PK, rec.SK, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, pk, sk string) (ports.Record, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM kv WHERE pk = ? AND sk = ? AND (expires_at_ms IS NULL OR expires_at_ms > ?)`,
		pk, sk, s.nowMs()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Record{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.Record{}, fmt.Errorf("sqlite get %s/%s: %w", pk, sk, err)
	}
	return ports.Record{PK: pk, SK: sk, Value: []byte(value)}, nil
}

func (s *Store) Query(ctx context.Context, pk string, opts ports.QueryOptions) ([]ports.Record, error) {
	query := `SELECT sk, value FROM kv WHERE pk = ? AND (expires_at_ms IS NULL OR expires_at_ms > ?)`
	args := []any{pk, s.nowMs()}
	if opts.After != "" {
		query += ` AND sk > ?`
		args = append(args, opts.After)
	}
	if opts.Before != "" {
		query += ` AND sk < ?`
		args = append(args, opts.Before)
	}
	if opts.Descending {
		query += ` ORDER BY sk DESC`
	} else {
		query += ` ORDER BY sk ASC`
	}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query %s: %w", pk, err)
	}
	defer rows.Close()

	var records []ports.Record
	for rows.Next() {
		var (
			sk    string
			value string
		)
		if err := rows.Scan(&sk, &value); err != nil {
			return nil, fmt.Errorf("sqlite query %s: scan: %w", pk, err)
		}
		records = append(records, ports.Record{PK: pk, SK: sk, Value: []byte(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite query %s: %w", pk, err)
	}
	return records, nil
}

func (s *Store) ScanPrefix(ctx context.Context, pkPrefix string) ([]ports.Record, error) {
	// Keys are ASCII, so prefix+0xFF upper-bounds the range.
	rows, err := s.db.QueryContext(ctx, `
		SELECT pk, sk, value FROM kv
		WHERE pk >= ? AND pk < ? AND (expires_at_ms IS NULL OR expires_at_ms > ?)
		ORDER BY pk ASC, sk ASC`,
		pkPrefix, pkPrefix+"\xff", s.nowMs())
	if err != nil {
		return nil, fmt.Errorf("sqlite scan %q: %w", pkPrefix, err)
	}
	defer rows.Close()

	var records []ports.Record
	for rows.Next() {
		var rec ports.Record
		var value string
		if err := rows.Scan(&rec.PK, &rec.SK, &value); err != nil {
			return nil, fmt.Errorf("sqlite scan %q: scan: %w", pkPrefix, err)
		}
		rec.Value = []byte(value)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite scan %q: %w", pkPrefix, err)
	}
	return records, nil
}

func (s *Store) Delete(ctx context.Context, pk, sk string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE pk = ? AND sk = ?`, pk, sk); err != nil {
		return fmt.Errorf("sqlite delete %s/%s: %w", pk, sk, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.doneWG.Wait()
	return s.db.Close()
}

func (s *Store) sweepLoop() {
	defer s.doneWG.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// Best effort, expired rows are invisible to readers either way.
	_, _ = s.db.ExecContext(ctx, `DELETE FROM kv WHERE expires_at_ms IS NOT NULL AND expires_at_ms <= ?`, s.nowMs())
}
