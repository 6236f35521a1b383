package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/stylinx/internal/domain"
	apperrors "github.com/utafrali/stylinx/pkg/errors"
)

const ordersKeyPrefix = "checkout:orders:"

// DefaultHistoryLimit caps how many receipts a session keeps.
const DefaultHistoryLimit = 20

// OrderHistoryRepository implements repository.OrderHistoryRepository as a
// capped Redis list per session.
type OrderHistoryRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
	limit  int64
}

// NewOrderHistoryRepository creates a Redis-backed order history. A
// non-positive ttl falls back to DefaultSessionTTL and a non-positive limit
// to DefaultHistoryLimit.
func NewOrderHistoryRepository(client redis.UniversalClient, ttl time.Duration, limit int) *OrderHistoryRepository {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &OrderHistoryRepository{client: client, ttl: ttl, limit: int64(limit)}
}

func ordersKey(sessionID string) string {
	return ordersKeyPrefix + sessionID
}

// Append pushes the receipt to the head of the list, trims it to the limit
// and refreshes the expiry in one transaction.
func (r *OrderHistoryRepository) Append(ctx context.Context, sessionID string, receipt *domain.Receipt) error {
	if sessionID == "" || receipt == nil {
		return apperrors.InvalidInput("session id and receipt are required")
	}

	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	key := ordersKey(sessionID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, r.limit-1)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append order: %w", err)
	}
	return nil
}

// List returns the stored receipts, newest first.
func (r *OrderHistoryRepository) List(ctx context.Context, sessionID string) ([]domain.Receipt, error) {
	raw, err := r.client.LRange(ctx, ordersKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list orders: %w", err)
	}

	receipts := make([]domain.Receipt, 0, len(raw))
	for _, item := range raw {
		var rc domain.Receipt
		if err := json.Unmarshal([]byte(item), &rc); err != nil {
			return nil, fmt.Errorf("unmarshal receipt: %w", err)
		}
		receipts = append(receipts, rc)
	}
	return receipts, nil
}

// Delete removes the history list.
func (r *OrderHistoryRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, ordersKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del orders: %w", err)
	}
	return nil
}
