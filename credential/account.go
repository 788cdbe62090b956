package credential

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrUsernameTaken is returned by CreateAccount when the username is
	// already registered, including when a concurrent signup won the race.
	ErrUsernameTaken = errors.New("credential: username already taken")
	// ErrInvalidUsername is returned when the username fails the allow-list
	// pattern.
	ErrInvalidUsername = errors.New("credential: username not allowed")
	// ErrWeakPassword is returned when the password is too short or contains
	// the username.
	ErrWeakPassword = errors.New("credential: password too weak")
	// ErrDuplicate is the store-level conflict sentinel implementations of
	// Store must return from InsertUnique.
	ErrDuplicate = errors.New("credential: duplicate username")
)

// Letters to start and end, letters and separators in between, 4 to 64 total.
var usernameRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z_. -]{2,62}[a-zA-Z]$`)

const minPasswordLength = 8

type (
	// Store is the persistence contract for credential records. Find returns
	// (nil, nil) when the username is unknown. InsertUnique must enforce
	// username uniqueness itself (a unique constraint, not check-then-insert)
	// and return ErrDuplicate on conflict.
	Store interface {
		Find(ctx context.Context, username string) (*Record, error)
		InsertUnique(ctx context.Context, rec Record) error
	}
)

// AllowedUsername reports whether username matches the signup allow-list.
func AllowedUsername(username string) bool {
	return usernameRE.MatchString(username)
}

// AllowedPassword rejects passwords shorter than eight characters and
// passwords containing the username, which are trivially guessable.
func AllowedPassword(password, username string) bool {
	return len(password) >= minPasswordLength && !strings.Contains(password, username)
}

// CreateAccount validates the signup input, hashes the password and persists
// the record. Uniqueness is delegated to the store so that two concurrent
// signups for the same username cannot both succeed; the loser observes
// ErrUsernameTaken.
func (p Params) CreateAccount(ctx context.Context, store Store, username, password string) error {
	if !AllowedUsername(username) {
		return ErrInvalidUsername
	}
	if !AllowedPassword(password, username) {
		return ErrWeakPassword
	}
	salt, key, err := p.Hash(ctx, password)
	if err != nil {
		return err
	}
	err = store.InsertUnique(ctx, Record{
		Username:   username,
		Salt:       salt,
		Iterations: p.iterations(),
		Key:        key,
	})
	if errors.Is(err, ErrDuplicate) {
		return ErrUsernameTaken
	} else if err != nil {
		return fmt.Errorf("unable to persist credentials for %v, cause %w", username, err)
	}
	return nil
}

// Authenticate looks up username and verifies password against the stored
// record. Unknown usernames still burn one derivation so that the response
// time does not reveal whether the account exists.
func (p Params) Authenticate(ctx context.Context, store Store, username, password string) (bool, error) {
	rec, err := store.Find(ctx, username)
	if err != nil {
		return false, err
	}
	if rec == nil {
		p.burn(ctx, password)
		return false, nil
	}
	return p.Verify(ctx, password, *rec)
}

var burnSalt = []byte("squeakd.credential.burn.salt.v1!")

func (p Params) burn(ctx context.Context, password string) {
	// The derived key is discarded; only the elapsed time matters.
	_, _ = p.derive(ctx, password, burnSalt, p.iterations(), p.keyLength())
}
