package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenKey is the fixed key the credential is stored under, namespaced per panel session.
const TokenKey = "authToken"

// Store holds the bearer credential of each panel session.
type Store interface {
	// Get returns the stored token, or "" when none is stored.
	Get(ctx context.Context, sessionID string) (string, error)
	// Set stores token for sessionID; ttl <= 0 means no expiry.
	Set(ctx context.Context, sessionID, token string, ttl time.Duration) error
	// Delete removes the token and reports whether one was present.
	Delete(ctx context.Context, sessionID string) (bool, error)
}

func storeKey(sessionID string) string {
	return "session:" + sessionID + ":" + TokenKey
}

// RedisStore keeps credentials in Redis so every server instance shares them.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed credential store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (string, error) {
	token, err := s.client.Get(ctx, storeKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return token, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, sessionID, token string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, storeKey(sessionID), token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements Store. DEL is atomic, so concurrent callers see true at most once.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Del(ctx, storeKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}

type memEntry struct {
	token   string
	expires time.Time // zero = never
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry), now: time.Now}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		return "", nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, sessionID)
		return "", nil
	}
	return e.token, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, sessionID, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{token: token}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.entries[sessionID] = e
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[sessionID]
	delete(s.entries, sessionID)
	return ok, nil
}
