// Package scheduler keeps assignment acceptance deadlines so overdue assignments can be expired.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const assignmentDeadlineKey = "booking:assignment:deadlines"

// RedisDeadlineStore keeps deadlines in a sorted set scored by unix milliseconds.
type RedisDeadlineStore struct {
	client *redis.Client
	key    string
}

// NewRedisDeadlineStore creates a new RedisDeadlineStore.
func NewRedisDeadlineStore(client *redis.Client) *RedisDeadlineStore {
	return &RedisDeadlineStore{client: client, key: assignmentDeadlineKey}
}

// Schedule sets or replaces the deadline for a booking.
func (s *RedisDeadlineStore) Schedule(ctx context.Context, bookingID uuid.UUID, deadline time.Time) error {
	err := s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(deadline.UnixMilli()),
		Member: bookingID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule deadline: %w", err)
	}
	return nil
}

// Cancel removes a booking's deadline.
func (s *RedisDeadlineStore) Cancel(ctx context.Context, bookingID uuid.UUID) error {
	if err := s.client.ZRem(ctx, s.key, bookingID.String()).Err(); err != nil {
		return fmt.Errorf("failed to cancel deadline: %w", err)
	}
	return nil
}

// Due returns bookings whose deadline has passed. Each member is claimed with ZREM,
// so when several instances sweep at once only the one whose ZREM succeeds gets it.
func (s *RedisDeadlineStore) Due(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	opt := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}
	members, err := s.client.ZRangeByScore(ctx, s.key, opt).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due deadlines: %w", err)
	}

	var due []uuid.UUID
	for _, m := range members {
		removed, err := s.client.ZRem(ctx, s.key, m).Result()
		if err != nil {
			return due, fmt.Errorf("failed to claim deadline: %w", err)
		}
		if removed == 0 {
			continue
		}
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		due = append(due, id)
	}
	return due, nil
}
