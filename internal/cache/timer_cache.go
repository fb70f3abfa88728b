// Package cache はタイマー一覧のRedisキャッシュを提供する。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/countdown/internal/model"
)

// keyList はtarget_date昇順に並んだタイマー一覧のキー。
const keyList = "countdown:timers:list"

// cachedTimer はRedisに保存するタイマーのJSON表現。
type cachedTimer struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	TargetDate  time.Time `json:"target_date"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TimerCache はタイマー一覧をRedisにキャッシュする。
// 書き込み系の操作の後は必ずInvalidateを呼ぶこと。
type TimerCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTimerCache はTimerCacheを生成する。
func NewTimerCache(rdb *redis.Client, ttl time.Duration) *TimerCache {
	return &TimerCache{rdb: rdb, ttl: ttl}
}

// NewClient はREDIS_URL形式のURLからRedisクライアントを生成する。
// 例: "redis://localhost:6379/0"
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// GetList はキャッシュ済みの一覧を返す。キャッシュミスの場合はnil, nilを返す。
func (c *TimerCache) GetList(ctx context.Context) ([]*model.Timer, error) {
	b, err := c.rdb.Get(ctx, keyList).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached []cachedTimer
	if err := json.Unmarshal(b, &cached); err != nil {
		return nil, err
	}

	timers := make([]*model.Timer, len(cached))
	for i, ct := range cached {
		timers[i] = &model.Timer{
			ID:          ct.ID,
			Title:       ct.Title,
			TargetDate:  ct.TargetDate.UTC(),
			Description: ct.Description,
			CreatedAt:   ct.CreatedAt.UTC(),
			UpdatedAt:   ct.UpdatedAt.UTC(),
		}
	}
	return timers, nil
}

// SetList は一覧をTTL付きで保存する。
func (c *TimerCache) SetList(ctx context.Context, timers []*model.Timer) error {
	cached := make([]cachedTimer, len(timers))
	for i, t := range timers {
		cached[i] = cachedTimer{
			ID:          t.ID,
			Title:       t.Title,
			TargetDate:  t.TargetDate,
			Description: t.Description,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		}
	}

	b, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyList, b, c.ttl).Err()
}

// Invalidate は一覧キャッシュを削除する。
func (c *TimerCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, keyList).Err()
}
