// Package jwtstore keeps the bearer tokens issued in the XUMM JWT flow
package jwtstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/alexbotov/xumm/pkg/xumm"
)

var ErrNotFound = errors.New("token not found")

// Store maps a key to the JWT issued for it
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, token string, expires time.Time) error
	Delete(ctx context.Context, key string) error
	// Purge removes tokens that expired before now and returns how many went
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// HashKey derives the storage key for a one-time token or user identifier.
// Raw OTTs are never stored.
func HashKey(raw string) string {
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

type entry struct {
	token   string
	expires time.Time
}

// Memory is a process-local Store
type Memory struct {
	mu     sync.RWMutex
	tokens map[string]entry
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{tokens: make(map[string]entry)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.tokens[key]
	if !ok {
		return "", ErrNotFound
	}
	return e.token, nil
}

func (m *Memory) Put(_ context.Context, key, token string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[key] = entry{token: token, expires: expires}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tokens, key)
	return nil
}

func (m *Memory) Purge(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for key, e := range m.tokens {
		if !e.expires.IsZero() && e.expires.Before(now) {
			delete(m.tokens, key)
			purged++
		}
	}
	return purged, nil
}

// Slot binds one key of a Store to the xumm.TokenStore interface, so a
// client can keep its JWT in a shared store
type Slot struct {
	store Store
	key   string
}

var _ xumm.TokenStore = (*Slot)(nil)

// NewSlot returns the slot for raw, which is hashed with HashKey
func NewSlot(store Store, raw string) *Slot {
	return &Slot{store: store, key: HashKey(raw)}
}

// Token returns the stored JWT, or "" when none is held
func (s *Slot) Token(ctx context.Context) (string, error) {
	token, err := s.store.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return token, err
}

// SetToken stores token together with its exp claim
func (s *Slot) SetToken(ctx context.Context, token string) error {
	expires, err := xumm.TokenExpiry(token)
	if err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return s.store.Put(ctx, s.key, token, expires)
}
