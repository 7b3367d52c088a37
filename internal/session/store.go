// Package session keeps per-browser-session interview choices in Redis.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"lifestory-agent/internal/domain"
)

const (
	keyPrefix     = "sess:"
	personaPrefix = "persona:"
	debugPrefix   = "debug:"

	DefaultTTL = 24 * time.Hour
)

// Store reads and writes session hashes. Every write refreshes the TTL.
type Store struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// New creates a Store. A non-positive ttl falls back to DefaultTTL.
func New(rdb redis.UniversalClient, ttl time.Duration) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("session: redis client must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}, nil
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

// Load returns the session's choices. An unknown or expired session is empty.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.Session, error) {
	sess := domain.Session{Personas: map[string]string{}, Debug: map[string]bool{}}
	if strings.TrimSpace(sessionID) == "" {
		return sess, nil
	}
	fields, err := s.rdb.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return domain.Session{}, fmt.Errorf("session: load %q: %w", sessionID, err)
	}
	for field, value := range fields {
		switch {
		case strings.HasPrefix(field, personaPrefix):
			if value != "" {
				sess.Personas[strings.TrimPrefix(field, personaPrefix)] = value
			}
		case strings.HasPrefix(field, debugPrefix):
			sess.Debug[strings.TrimPrefix(field, debugPrefix)] = value == "1"
		}
	}
	return sess, nil
}

// SelectPersona records the persona chosen for a conversation. An empty
// personaID clears the selection.
func (s *Store) SelectPersona(ctx context.Context, sessionID, conversationID, personaID string) error {
	field := personaPrefix + conversationID
	if strings.TrimSpace(personaID) == "" {
		return s.write(ctx, sessionID, func(p redis.Pipeliner, key string) {
			p.HDel(ctx, key, field)
		})
	}
	return s.write(ctx, sessionID, func(p redis.Pipeliner, key string) {
		p.HSet(ctx, key, field, personaID)
	})
}

// SetDebug toggles reply tracing for a conversation.
func (s *Store) SetDebug(ctx context.Context, sessionID, conversationID string, on bool) error {
	field := debugPrefix + conversationID
	if !on {
		return s.write(ctx, sessionID, func(p redis.Pipeliner, key string) {
			p.HDel(ctx, key, field)
		})
	}
	return s.write(ctx, sessionID, func(p redis.Pipeliner, key string) {
		p.HSet(ctx, key, field, "1")
	})
}

func (s *Store) write(ctx context.Context, sessionID string, fn func(redis.Pipeliner, string)) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("session: session id is required")
	}
	key := sessionKey(sessionID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		fn(p, key)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: write %q: %w", sessionID, err)
	}
	return nil
}
