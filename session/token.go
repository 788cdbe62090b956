// Package session recognizes returning clients, either through a
// self-contained signed token (stateless mode) or through a server-persisted
// random identifier (stateful mode).
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidToken is the only verification failure callers ever see.
// Malformed, tampered, expired and wrongly-bound tokens are deliberately
// indistinguishable so a forger cannot probe which check tripped.
var ErrInvalidToken = errors.New("session: invalid token")

// MinSecretLength is the smallest server secret NewCodec accepts.
const MinSecretLength = 32

// Wire shape: decimal expiry, hex fingerprint, hex signature.
var tokenShapeRE = regexp.MustCompile(`^\d+-[a-f0-9]+-[a-f0-9]+$`)

type (
	// Codec issues and verifies stateless session tokens of the form
	// "<expiresAtMillis>-<fingerprintHex>-<signatureHex>". The signature is
	// an HMAC over the first two fields, so flipping any bit of either one
	// invalidates the token.
	Codec struct {
		secret []byte
	}
)

// NewCodec builds a token codec around the server secret. The secret must be
// provisioned out of band; short secrets are refused outright.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session: secret must be at least %v bytes, got %v", MinSecretLength, len(secret))
	}
	c := &Codec{secret: make([]byte, len(secret))}
	copy(c.secret, secret)
	return c, nil
}

// Issue builds a token bound to bindingInput and valid until expiresAt.
func (c *Codec) Issue(bindingInput string, expiresAt time.Time) string {
	exp := strconv.FormatInt(expiresAt.UnixMilli(), 10)
	fp := fingerprint(bindingInput)
	return exp + "-" + fp + "-" + c.sign(exp, fp)
}

// Verify checks token against the caller's current binding input at time now.
// Three checks must all pass: the fingerprint must match the current binding
// input (a token replayed in another context fails here), the signature must
// match a recomputation over the parsed fields (any tampering fails here),
// and the expiry must lie in the future.
func (c *Codec) Verify(token, bindingInput string, now time.Time) error {
	if !tokenShapeRE.MatchString(token) {
		return ErrInvalidToken
	}
	fields := strings.SplitN(token, "-", 3)
	if !hmac.Equal([]byte(fingerprint(bindingInput)), []byte(fields[1])) {
		return ErrInvalidToken
	}
	if !hmac.Equal([]byte(c.sign(fields[0], fields[1])), []byte(fields[2])) {
		return ErrInvalidToken
	}
	expiresAt, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		// Signed, but too large to parse. Treat like any other bad token.
		return ErrInvalidToken
	}
	if now.UnixMilli() >= expiresAt {
		return ErrInvalidToken
	}
	return nil
}

func fingerprint(bindingInput string) string {
	sum := sha256.Sum256([]byte(bindingInput))
	return hex.EncodeToString(sum[:])
}

// sign is a keyed MAC, not a bare hash over data plus secret; hashing a
// secret concatenated with attacker-influenced data invites length-extension
// style attacks that HMAC is immune to.
func (c *Codec) sign(expiry, fingerprintHex string) string {
	mac := hmac.New(sha256.New, c.secret)
	io.WriteString(mac, expiry)
	io.WriteString(mac, fingerprintHex)
	return hex.EncodeToString(mac.Sum(nil))
}
