package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/stylinx/internal/domain"
	apperrors "github.com/utafrali/stylinx/pkg/errors"
)

const keyPrefix = "checkout:session:"

// DefaultSessionTTL is how long an idle session survives.
const DefaultSessionTTL = 24 * time.Hour

// SessionRepository implements repository.SessionRepository using Redis.
type SessionRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewSessionRepository creates a Redis-backed session repository. A
// non-positive ttl falls back to DefaultSessionTTL.
func NewSessionRepository(client redis.UniversalClient, ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionRepository{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return keyPrefix + id
}

// Get loads a session snapshot.
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.SessionState, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("session", id)
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &state, nil
}

// Save writes a snapshot with the configured TTL. The CVV is cleared even if
// the caller left it set.
func (r *SessionRepository) Save(ctx context.Context, state *domain.SessionState) error {
	if state == nil || state.ID == "" {
		return apperrors.InvalidInput("session id is required")
	}

	cp := *state
	cp.Payment.CVV = ""
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(state.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Delete removes a snapshot.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}
