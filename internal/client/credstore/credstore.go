// Package credstore persists session credentials in a local SQLite
// database. It is a dumb key-value layer; the session manager is the only
// writer and owns the meaning of the stored values.
package credstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyExpiresAt    = "expires_at"
	keyProfile      = "profile"
)

// Credentials is the durable slice of a session: both tokens, the access
// token expiry and the serialized user profile.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Profile      []byte
}

// Store is a SQLite-backed credential store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the credential database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		create table if not exists credentials (
			key   text primary key,
			value blob not null
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init credential store: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle, used by tests.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if _, err := db.Exec(`
		create table if not exists credentials (
			key   text primary key,
			value blob not null
		)`); err != nil {
		return nil, fmt.Errorf("init credential store: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save writes all credential fields in one transaction, so a reader never
// observes a token from one session and a profile from another.
func (s *Store) Save(ctx context.Context, c Credentials) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	pairs := map[string][]byte{
		keyAccessToken:  []byte(c.AccessToken),
		keyRefreshToken: []byte(c.RefreshToken),
		keyExpiresAt:    []byte(strconv.FormatInt(c.ExpiresAt.Unix(), 10)),
		keyProfile:      c.Profile,
	}
	for key, value := range pairs {
		if _, err := tx.ExecContext(ctx, `
			insert into credentials (key, value) values (?, ?)
			on conflict(key) do update set value = excluded.value
		`, key, value); err != nil {
			return fmt.Errorf("save credential %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Load reads the stored credentials. ok is false when no session has been
// saved or the record is incomplete.
func (s *Store) Load(ctx context.Context) (Credentials, bool, error) {
	rows, err := s.db.QueryContext(ctx, `select key, value from credentials`)
	if err != nil {
		return Credentials{}, false, err
	}
	defer rows.Close()

	values := make(map[string][]byte)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return Credentials{}, false, err
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return Credentials{}, false, err
	}

	access := string(values[keyAccessToken])
	refresh := string(values[keyRefreshToken])
	if access == "" || refresh == "" {
		return Credentials{}, false, nil
	}
	c := Credentials{
		AccessToken:  access,
		RefreshToken: refresh,
		Profile:      values[keyProfile],
	}
	if raw := string(values[keyExpiresAt]); raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			c.ExpiresAt = time.Unix(unix, 0).UTC()
		}
	}
	return c, true, nil
}

// Clear removes every stored credential in one transaction.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `delete from credentials`)
	return err
}
