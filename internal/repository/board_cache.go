package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"stickyboard-server/internal/domain"
	"stickyboard-server/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// CachedBoardRepository keeps each user's board list in Redis. Reads go
// through the cache; every successful write evicts the user's entry so the
// next read sees the store's copy.
type CachedBoardRepository struct {
	base    BoardRepository
	redis   *redis.Client
	ttl     time.Duration
	metrics *metrics.Collector
}

func NewCachedBoardRepository(base BoardRepository, client *redis.Client, ttl time.Duration, collector *metrics.Collector) *CachedBoardRepository {
	if base == nil {
		panic("repository.NewCachedBoardRepository: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &CachedBoardRepository{
		base:    base,
		redis:   client,
		ttl:     ttl,
		metrics: collector,
	}
}

func (c *CachedBoardRepository) List(ctx context.Context, userID string) ([]*domain.Board, error) {
	if boards, ok := c.load(ctx, userID); ok {
		c.metrics.CacheLookup(true)
		return boards, nil
	}
	c.metrics.CacheLookup(false)

	boards, err := c.base.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, userID, boards)
	return boards, nil
}

func (c *CachedBoardRepository) Put(ctx context.Context, userID string, board *domain.Board) error {
	if err := c.base.Put(ctx, userID, board); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *CachedBoardRepository) Merge(ctx context.Context, userID string, boardID int64, fields map[string]interface{}) error {
	if err := c.base.Merge(ctx, userID, boardID, fields); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *CachedBoardRepository) load(ctx context.Context, userID string) ([]*domain.Board, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardsCacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			_ = c.redis.Del(ctx, boardsCacheKey(userID)).Err()
		}
		return nil, false
	}
	var boards []*domain.Board
	if err := json.Unmarshal(data, &boards); err != nil {
		_ = c.redis.Del(ctx, boardsCacheKey(userID)).Err()
		return nil, false
	}
	return boards, true
}

func (c *CachedBoardRepository) store(ctx context.Context, userID string, boards []*domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(boards)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardsCacheKey(userID), data, c.ttl).Err()
}

func (c *CachedBoardRepository) evict(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, boardsCacheKey(userID)).Err()
}

func boardsCacheKey(userID string) string {
	return "boards:" + userID
}
