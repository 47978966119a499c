package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// sqliteBusyTimeoutMS is how long a writer waits on a locked database.
	sqliteBusyTimeoutMS = 5000

	// sqliteConnectTimeout bounds the connectivity check in OpenSQLiteStore.
	sqliteConnectTimeout = 5 * time.Second
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS credentials (
	client_id     TEXT PRIMARY KEY,
	username      TEXT NOT NULL,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	saved_at      INTEGER NOT NULL
)`

const sqliteUpsert = `
INSERT INTO credentials (client_id, username, access_token, refresh_token, saved_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(client_id) DO UPDATE SET
	username      = excluded.username,
	access_token  = excluded.access_token,
	refresh_token = excluded.refresh_token,
	saved_at      = excluded.saved_at`

// SQLiteStore keeps the credential set in a single SQLite row keyed by client
// id. The row is replaced by one UPSERT inside a transaction.
type SQLiteStore struct {
	db       *sql.DB
	clientID string
}

// OpenSQLiteStore opens (creating if needed) the database at path, applies the
// schema and verifies connectivity.
func OpenSQLiteStore(path, clientID string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, sqliteBusyTimeoutMS)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), sqliteConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	_ = os.Chmod(path, filePermissions)

	return NewSQLiteStore(db, clientID), nil
}

// NewSQLiteStore wraps an already-open database. The credentials table must
// exist (see [OpenSQLiteStore]).
func NewSQLiteStore(db *sql.DB, clientID string) *SQLiteStore {
	return &SQLiteStore{db: db, clientID: clientID}
}

func (s *SQLiteStore) Load(ctx context.Context) (*Session, error) {
	var (
		sess    Session
		savedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, access_token, refresh_token, saved_at FROM credentials WHERE client_id = ?`,
		s.clientID,
	).Scan(&sess.Username, &sess.AccessToken, &sess.RefreshToken, &savedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !sess.Complete() {
		return nil, nil
	}
	if savedAt > 0 {
		sess.SavedAt = time.Unix(savedAt, 0)
	}
	return &sess, nil
}

func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	if err := validateForSave(sess); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, sqliteUpsert,
		s.clientID, sess.Username, sess.AccessToken, sess.RefreshToken, time.Now().Unix(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE client_id = ?`, s.clientID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}
