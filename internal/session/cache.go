package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/codequest-dev/codequest/internal/domain"
)

// Cache keeps in-browser editor autosaves in Redis. Sessions are a
// convenience, never authoritative progress: a key expiring loses nothing
// but unsaved scratch work, so everything lives behind a TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a Redis-backed editor session cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{client: client, ttl: ttl}
}

// Save stores the latest editor snapshot for a (user, puzzle) pair,
// refreshing the TTL. StartedAt from an existing session is preserved.
func (c *Cache) Save(ctx context.Context, sess *domain.EditorSession) error {
	now := time.Now()
	sess.LastSaved = now
	if sess.StartedAt.IsZero() {
		if existing, err := c.Get(ctx, sess.UserID, sess.PuzzleID); err == nil {
			sess.StartedAt = existing.StartedAt
		} else {
			sess.StartedAt = now
		}
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := c.client.Set(ctx, sessionKey(sess.UserID, sess.PuzzleID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get retrieves the saved editor snapshot for a (user, puzzle) pair.
func (c *Cache) Get(ctx context.Context, userID, puzzleID uuid.UUID) (*domain.EditorSession, error) {
	data, err := c.client.Get(ctx, sessionKey(userID, puzzleID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess domain.EditorSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete drops the snapshot, typically after a successful submission.
func (c *Cache) Delete(ctx context.Context, userID, puzzleID uuid.UUID) error {
	if err := c.client.Del(ctx, sessionKey(userID, puzzleID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func sessionKey(userID, puzzleID uuid.UUID) string {
	return fmt.Sprintf("session:%s:%s", userID, puzzleID)
}
