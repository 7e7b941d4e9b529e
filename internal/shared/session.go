package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager issues and resolves opaque bearer tokens backed by Redis.
type SessionManager struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type sessionPayload struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, prefix string, ttl time.Duration) *SessionManager {
	if prefix == "" {
		prefix = "kitarena:session"
	}
	return &SessionManager{client: client, prefix: prefix, ttl: ttl}
}

// Create stores a new session and returns its bearer token.
func (sm *SessionManager) Create(ctx context.Context, userID int64, role Role) (string, error) {
	token := uuid.NewString()
	data, err := json.Marshal(sessionPayload{UserID: userID, Role: string(role)})
	if err != nil {
		return "", fmt.Errorf("shared: marshal session: %w", err)
	}
	if err := sm.client.Set(ctx, sm.key(token), data, sm.ttl).Err(); err != nil {
		return "", fmt.Errorf("shared: store session: %w", err)
	}
	return token, nil
}

// Resolve maps a bearer token to the identity it was issued for.
// The session TTL slides on every successful resolution.
func (sm *SessionManager) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}
	data, err := sm.client.Get(ctx, sm.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Identity{}, ErrUnauthorized
		}
		return Identity{}, fmt.Errorf("shared: load session: %w", err)
	}
	var payload sessionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Identity{}, fmt.Errorf("shared: decode session: %w", err)
	}
	_ = sm.client.Expire(ctx, sm.key(token), sm.ttl).Err()
	return Identity{UserID: payload.UserID, Role: Role(payload.Role)}, nil
}

// Destroy removes a session, invalidating its token.
func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return sm.client.Del(ctx, sm.key(token)).Err()
}

func (sm *SessionManager) key(token string) string {
	return sm.prefix + ":" + token
}
