package cookiestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/linkscrape/dbopen"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/fault"
)

// Schema is the DDL for the jar table.
const Schema = `CREATE TABLE IF NOT EXISTS cookie_jars (
	name     TEXT PRIMARY KEY,
	payload  TEXT NOT NULL,
	saved_at INTEGER NOT NULL
)`

// SQLiteStore keeps one named jar per row of cookie_jars.
type SQLiteStore struct {
	db     *sql.DB
	name   string
	logger *slog.Logger
	owned  bool
	mu     sync.Mutex
}

// OpenSQLiteStore opens (creating if needed) the database at path and
// returns a store for the jar called name. Close releases the database.
func OpenSQLiteStore(path, name string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("cookiestore: %w", err)
	}
	s := NewSQLiteStore(db, name, logger)
	s.owned = true
	return s, nil
}

// NewSQLiteStore wraps an open database whose schema already includes
// Schema.
func NewSQLiteStore(db *sql.DB, name string, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	if name == "" {
		name = "default"
	}
	return &SQLiteStore{db: db, name: name, logger: logger}
}

func (s *SQLiteStore) Load(ctx context.Context) (Jar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM cookie_jars WHERE name = ?`, s.name).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Jar{}, nil
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("cookiestore: query failed, starting empty", "jar", s.name, "error", err)
		return Jar{}, nil
	}

	var jar Jar
	if err := json.Unmarshal([]byte(payload), &jar); err != nil {
		s.logger.Warn("cookiestore: corrupt jar row, starting empty", "jar", s.name)
		return Jar{}, nil
	}
	return jar.Dedupe(), nil
}

func (s *SQLiteStore) Save(ctx context.Context, jar Jar) error {
	if jar == nil {
		jar = Jar{}
	}
	data, err := json.Marshal(jar.Dedupe())
	if err != nil {
		return fault.New(fault.ErrIO, "cookiestore.save", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cookie_jars (name, payload, saved_at) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
			s.name, string(data), time.Now().Unix())
		return err
	})
	if err != nil {
		return fault.New(fault.ErrIO, "cookiestore.save", err)
	}
	s.logger.Debug("cookiestore: saved", "jar", s.name, "cookies", len(jar))
	return nil
}

// Close closes the database if the store opened it.
func (s *SQLiteStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
