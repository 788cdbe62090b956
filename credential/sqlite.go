package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

type (
	// SqliteStore persists credential records in a sqlite database. The
	// unique constraint on the username column is what closes the concurrent
	// signup race.
	SqliteStore struct {
		db *sql.DB
	}
)

// OpenSqliteStore opens (creating if needed) the credential database at path.
func OpenSqliteStore(ctx context.Context, path string) (*SqliteStore, error) {
	connstr := fmt.Sprintf("file:%v?_journal=wal&_busy_timeout=5000&mode=rwc", path)
	db, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open credential store %v, cause %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping credential store %v, cause %w", path, err)
	}
	s := &SqliteStore{db: db}
	if err := s.setup(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqliteStore) setup(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `create table if not exists credentials(
		user_id integer primary key autoincrement,
		username text not null unique,
		salt blob not null,
		iterations integer not null,
		key blob not null)`)
	if err != nil {
		return fmt.Errorf("unable to create credentials table, cause %w", err)
	}
	return nil
}

// Find returns the record for username or (nil, nil) when it does not exist.
func (s *SqliteStore) Find(ctx context.Context, username string) (*Record, error) {
	var rec Record
	err := s.db.QueryRowContext(ctx,
		`select username, salt, iterations, key from credentials where username = ?`, username).
		Scan(&rec.Username, &rec.Salt, &rec.Iterations, &rec.Key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("unable to find credentials for %v, cause %w", username, err)
	}
	return &rec, nil
}

// InsertUnique writes rec and returns ErrDuplicate when the username is
// already present. The check and the insert are one statement, so concurrent
// inserts for the same username cannot both succeed.
func (s *SqliteStore) InsertUnique(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`insert into credentials (username, salt, iterations, key) values (?, ?, ?, ?)`,
		rec.Username, rec.Salt, rec.Iterations, rec.Key)
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return ErrDuplicate
	} else if err != nil {
		return fmt.Errorf("unable to insert credentials for %v, cause %w", rec.Username, err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}
