package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/hh6422123-cyber/Eak/internal/log"
	"github.com/hh6422123-cyber/Eak/internal/store"
)

// Schema creates the key-value table. Every write bumps version so pollers
// in any process can spot rewrites.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DefaultWatchInterval is how often Watch polls key versions.
const DefaultWatchInterval = 250 * time.Millisecond

// SQLiteStore implements store.Area on a single SQLite table.
type SQLiteStore struct {
	db       *sql.DB
	interval time.Duration
	log      *zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// New opens (or creates) the database at dbPath and applies Schema.
func New(dbPath string, watchInterval time.Duration, logger *zerolog.Logger) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, watchInterval, logger, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup opens the database and runs setup instead of applying Schema.
// Useful for tests that need a custom or broken layout.
func NewWithSetup(dbPath string, watchInterval time.Duration, logger *zerolog.Logger, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if watchInterval <= 0 {
		watchInterval = DefaultWatchInterval
	}

	return &SQLiteStore{db: db, interval: watchInterval, log: log.OrNop(logger)}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}

// Get returns the blob stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.isClosed() {
		return nil, false, store.ErrUnavailable
	}

	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query kv: %w", err)
	}
	return value, true, nil
}

// Set upserts the blob under key and bumps its version.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	if s.isClosed() {
		return store.ErrUnavailable
	}

	query := `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			version    = kv.version + 1,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("upsert kv: %w", err)
	}
	return nil
}

// Watch polls key versions and emits a Change for every key whose version
// moved since the previous poll, whichever process wrote it.
func (s *SQLiteStore) Watch(ctx context.Context) (<-chan store.Change, error) {
	if s.isClosed() {
		return nil, store.ErrUnavailable
	}

	seen, err := s.versions(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan store.Change, 16)
	go func() {
		defer close(out)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current, err := s.versions(ctx)
				if err != nil {
					if s.isClosed() || ctx.Err() != nil {
						return
					}
					s.log.Warn().Err(err).Msg("poll kv versions")
					continue
				}
				for key, version := range current {
					if seen[key] == version {
						continue
					}
					select {
					case out <- store.Change{Key: key}:
					default:
					}
				}
				seen = current
			}
		}
	}()

	return out, nil
}

func (s *SQLiteStore) versions(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, version FROM kv`)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			key     string
			version int64
		)
		if err := rows.Scan(&key, &version); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out[key] = version
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
