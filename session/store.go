package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// IDRandomBytes is the amount of entropy behind every stateful session id.
const IDRandomBytes = 64

type (
	// Store is the persistence contract of the stateful variant. FindActive
	// must only report true for a matching, non-expired record; Delete is
	// idempotent; DeleteAll exists for the startup sweep.
	Store interface {
		Insert(ctx context.Context, id string, expiresAt time.Time) error
		FindActive(ctx context.Context, id string, now time.Time) (bool, error)
		Delete(ctx context.Context, id string) error
		DeleteAll(ctx context.Context) error
	}

	// Manager drives a Store with the deployment's session TTL. A session is
	// valid iff its record exists and has not expired; deleting the record
	// revokes the session immediately.
	Manager struct {
		store Store
		ttl   time.Duration
		now   func() time.Time
	}
)

func NewManager(store Store, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl, now: time.Now}
}

// Open mints a fresh high-entropy session id, persists it with the
// configured TTL and returns it for the cookie.
func (m *Manager) Open(ctx context.Context) (string, error) {
	buf := make([]byte, IDRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("unable to generate session id, cause %w", err)
	}
	id := hex.EncodeToString(buf)
	if err := m.store.Insert(ctx, id, m.now().Add(m.ttl)); err != nil {
		return "", fmt.Errorf("unable to persist session, cause %w", err)
	}
	return id, nil
}

// IsActive reports whether id belongs to a live session.
func (m *Manager) IsActive(ctx context.Context, id string) (bool, error) {
	return m.store.FindActive(ctx, id, m.now())
}

// Close revokes the session. Closing an unknown or already-closed session is
// not an error.
func (m *Manager) Close(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// Sweep drops every session. It runs once at process start, before the
// listener accepts connections, so no session survives a restart.
func (m *Manager) Sweep(ctx context.Context) error {
	return m.store.DeleteAll(ctx)
}

// TTL returns the session lifetime the manager was configured with.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
