package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
)

// SeatCache keeps seat map snapshots under seats:<showtime id>. Entries are
// short lived and dropped on every seat transition.
type SeatCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewSeatCache(client *goredis.Client, ttl time.Duration) *SeatCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &SeatCache{client: client, ttl: ttl}
}

func SeatsKey(showtimeID int64) string {
	return fmt.Sprintf("seats:%d", showtimeID)
}

func (c *SeatCache) GetSeats(ctx context.Context, showtimeID int64) ([]domain.Seat, bool, error) {
	raw, err := c.client.Get(ctx, SeatsKey(showtimeID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var seats []domain.Seat
	if err := json.Unmarshal(raw, &seats); err != nil {
		// A corrupt entry is a miss; the next write replaces it.
		return nil, false, nil
	}
	return seats, true, nil
}

func (c *SeatCache) SetSeats(ctx context.Context, showtimeID int64, seats []domain.Seat) error {
	payload, err := json.Marshal(seats)
	if err != nil {
		return fmt.Errorf("encode seats: %w", err)
	}
	if err := c.client.Set(ctx, SeatsKey(showtimeID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *SeatCache) Invalidate(ctx context.Context, showtimeID int64) error {
	if err := c.client.Del(ctx, SeatsKey(showtimeID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
