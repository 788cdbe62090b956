// Package csrf issues and verifies anti-forgery tokens. A token is an
// authenticated-encrypted blob binding a short expiry to one session id: it
// only decrypts under the server's master key, and even then it only
// validates for the exact session it was minted for.
//
// Wire format, base64 (std) encoded: salt(64) || iv(16) || tag(16) ||
// ciphertext. The one-time AES key is derived from the master key and the
// per-token salt, so no two tokens share a key stream.
package csrf

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/squeakhq/squeakd/internal/kdf"
	"github.com/squeakhq/squeakd/internal/logutil"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 64
	ivLength   = 16
	tagLength  = 16
	headerLen  = saltLength + ivLength + tagLength

	keyLength = 32
	// The master key is high-entropy, unlike a password, so a light
	// stretching pass is enough here.
	kdfIterations = 4096
)

// ErrInvalidToken covers every verification failure. The reason (malformed,
// tampered, expired, wrong session) is logged for operators but never
// surfaced, so the response cannot be used as a decryption oracle.
var ErrInvalidToken = errors.New("csrf: invalid token")

type (
	// Codec issues and verifies CSRF tokens under one long-lived master key.
	Codec struct {
		masterKey []byte
		gate      *kdf.Gate
	}

	payload struct {
		Expires int64  `json:"expires"`
		Session string `json:"session"`
	}
)

// NewCodec builds a codec around a 32-byte master key. The key must be
// provisioned out of band; there is no default.
func NewCodec(masterKey []byte, gate *kdf.Gate) (*Codec, error) {
	if len(masterKey) != keyLength {
		return nil, fmt.Errorf("csrf: master key must be exactly %v bytes, got %v", keyLength, len(masterKey))
	}
	c := &Codec{masterKey: make([]byte, keyLength), gate: gate}
	copy(c.masterKey, masterKey)
	return c, nil
}

// Issue mints a token for sessionID that stops validating at expiresAt.
func (c *Codec) Issue(ctx context.Context, sessionID string, expiresAt time.Time) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("unable to generate token salt, cause %w", err)
	}
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("unable to generate token iv, cause %w", err)
	}
	gcm, err := c.cipherFor(ctx, salt)
	if err != nil {
		return "", err
	}
	plain, err := json.Marshal(payload{Expires: expiresAt.UnixMilli(), Session: sessionID})
	if err != nil {
		return "", fmt.Errorf("unable to encode token payload, cause %w", err)
	}
	sealed := gcm.Seal(nil, iv, plain, nil)
	ciphertext, tag := sealed[:len(sealed)-tagLength], sealed[len(sealed)-tagLength:]

	buf := make([]byte, 0, headerLen+len(ciphertext))
	buf = append(buf, salt...)
	buf = append(buf, iv...)
	buf = append(buf, tag...)
	buf = append(buf, ciphertext...)
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Verify checks that token decrypts under the master key, has not expired and
// was minted for sessionID. Any failure, including garbage input, is
// ErrInvalidToken; nothing in here panics or leaks a decode error to the
// caller.
func (c *Codec) Verify(ctx context.Context, token, sessionID string, now time.Time) error {
	log := logutil.GetOrDefault(ctx)
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		log.Warn().Msg("Rejecting malformed CSRF token")
		return ErrInvalidToken
	}
	if len(raw) < headerLen {
		log.Warn().Msg("Rejecting truncated CSRF token")
		return ErrInvalidToken
	}
	salt := raw[:saltLength]
	iv := raw[saltLength : saltLength+ivLength]
	tag := raw[saltLength+ivLength : headerLen]
	ciphertext := raw[headerLen:]

	gcm, err := c.cipherFor(ctx, salt)
	if err != nil {
		return err
	}
	sealed := make([]byte, 0, len(ciphertext)+tagLength)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		log.Warn().Msg("CSRF token failed authentication, possible tampering or forgery attempt")
		return ErrInvalidToken
	}
	var p payload
	if err := json.Unmarshal(plain, &p); err != nil {
		log.Warn().Msg("Rejecting CSRF token with unreadable payload")
		return ErrInvalidToken
	}
	if now.UnixMilli() >= p.Expires {
		log.Warn().Msg("Rejecting expired CSRF token")
		return ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(p.Session), []byte(sessionID)) != 1 {
		log.Warn().Msg("Rejecting CSRF token minted for another session")
		return ErrInvalidToken
	}
	return nil
}

// cipherFor stretches the master key with the per-token salt into a one-time
// AES-256-GCM instance.
func (c *Codec) cipherFor(ctx context.Context, salt []byte) (cipher.AEAD, error) {
	release, err := c.gate.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to acquire kdf slot, cause %w", err)
	}
	key := pbkdf2.Key(c.masterKey, salt, kdfIterations, keyLength, sha512.New)
	release()
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("unable to build token cipher, cause %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, fmt.Errorf("unable to build token cipher, cause %w", err)
	}
	return gcm, nil
}
