package booking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const snapshotKey = "bookings:snapshot"

// SnapshotCache 最新快照的旁路缓存：写失败不影响主流程，
// 读路径只在数据库不可用时兜底（订阅方宁可拿到略旧的快照也不要报错）。
type SnapshotCache interface {
	Store(ctx context.Context, snapshot []Booking) error
	Load(ctx context.Context) ([]Booking, error)
}

// RedisSnapshotCache 把最新快照镜像到 Redis，供运维排查和冷启动预热。
type RedisSnapshotCache struct {
	client *redis.Client
}

var _ SnapshotCache = (*RedisSnapshotCache)(nil)

func NewRedisSnapshotCache(client *redis.Client) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client}
}

func (c *RedisSnapshotCache) Store(ctx context.Context, snapshot []Booking) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey, data, 0).Err()
}

func (c *RedisSnapshotCache) Load(ctx context.Context) ([]Booking, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	data, err := c.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		return nil, err
	}
	var snapshot []Booking
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}
