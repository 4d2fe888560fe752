// ABOUTME: SQLite implementation of the credential Store using modernc.org/sqlite
// ABOUTME: Keeps token and user_id as rows of a two-column key/value table

package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a single-table SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the credential database at path.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "credentials")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("credential store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			CHECK (key IN ('token', 'user_id'))
		);
	`)
	return err
}

// Load reads both rows; absent rows yield empty values.
func (s *SQLiteStore) Load(ctx context.Context) (Credentials, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM credentials`)
	if err != nil {
		return Credentials{}, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var creds Credentials
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Credentials{}, fmt.Errorf("scanning credential row: %w", err)
		}
		switch key {
		case KeyToken:
			creds.Token = value
		case KeyUserID:
			creds.UserID = value
		}
	}
	if err := rows.Err(); err != nil {
		return Credentials{}, fmt.Errorf("iterating credentials: %w", err)
	}
	return creds, nil
}

// Save upserts both rows in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, creds Credentials) error {
	if err := validate(creds); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	stmt := `
		INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	for key, value := range map[string]string{KeyToken: creds.Token, KeyUserID: creds.UserID} {
		if _, err := tx.ExecContext(ctx, stmt, key, value, now); err != nil {
			return fmt.Errorf("saving %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing credentials: %w", err)
	}
	return nil
}

// Clear deletes both rows.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return errors.New("store already closed")
	}
	err := s.db.Close()
	s.db = nil
	return err
}
