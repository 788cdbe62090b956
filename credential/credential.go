// Package credential turns plaintext passwords into verifiable, non-reversible
// records and decides which usernames and passwords are acceptable at signup.
package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"

	"github.com/squeakhq/squeakd/internal/kdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltLength is the number of random bytes behind every stored salt.
	SaltLength = 32
	// DefaultIterations is the cost applied when a deployment does not
	// choose its own.
	DefaultIterations = 100000
	// DefaultKeyLength is the derived-key size in bytes.
	DefaultKeyLength = 128
)

type (
	// Record is one row of the credential table. Username is unique and
	// immutable once created; Key is the PBKDF2-SHA512 output and never a
	// reversible transform of the password.
	Record struct {
		Username   string
		Salt       []byte
		Iterations int
		Key        []byte
	}

	// Params carries the KDF cost settings and the shared derivation gate.
	// The zero value uses the defaults above and an unbounded gate.
	Params struct {
		Iterations int
		KeyLength  int
		Gate       *kdf.Gate
	}
)

func (p Params) iterations() int {
	if p.Iterations < 1 {
		return DefaultIterations
	}
	return p.Iterations
}

func (p Params) keyLength() int {
	if p.KeyLength < 1 {
		return DefaultKeyLength
	}
	return p.KeyLength
}

// Hash generates a fresh random salt and derives the verification key for
// password. The result is deterministic given the salt.
func (p Params) Hash(ctx context.Context, password string) (salt, key []byte, err error) {
	salt = make([]byte, SaltLength)
	if _, err = rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("unable to generate salt, cause %w", err)
	}
	key, err = p.derive(ctx, password, salt, p.iterations(), p.keyLength())
	if err != nil {
		return nil, nil, err
	}
	return salt, key, nil
}

// Verify recomputes the derived key with the salt and iteration count stored
// in rec and compares it to the stored key in constant time. The cost of the
// recomputation is the same as the original hash on purpose.
func (p Params) Verify(ctx context.Context, password string, rec Record) (bool, error) {
	key, err := p.derive(ctx, password, rec.Salt, rec.Iterations, len(rec.Key))
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(key, rec.Key) == 1, nil
}

func (p Params) derive(ctx context.Context, password string, salt []byte, iterations, keyLen int) ([]byte, error) {
	release, err := p.Gate.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to acquire kdf slot, cause %w", err)
	}
	defer release()
	return pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha512.New), nil
}
