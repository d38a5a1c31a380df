package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const revokedKeyPrefix = "session:revoked:"

// TokenRegistry 服务端令牌吊销表。
// 登出只吊销单个 jti；吊销记录保留到令牌自然过期即可，之后签名校验自己会拒绝。
type TokenRegistry interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRegistry 基于 Redis 的吊销表：key 按令牌剩余有效期自动过期。
type RedisRegistry struct {
	client *redis.Client
}

var _ TokenRegistry = (*RedisRegistry)(nil)

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return fmt.Errorf("token id is empty")
	}
	if ttl <= 0 {
		// 已过期的令牌无需入表，签名校验会拒绝
		return nil
	}
	return r.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err()
}

func (r *RedisRegistry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryRegistry 内存吊销表（单实例 / 测试用）。
type MemoryRegistry struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // tokenID -> 记录到期时间
}

var _ TokenRegistry = (*MemoryRegistry)(nil)

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{revoked: make(map[string]time.Time)}
}

func (r *MemoryRegistry) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return fmt.Errorf("token id is empty")
	}
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	r.revoked[tokenID] = time.Now().Add(ttl)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return false, nil
	}
	r.mu.RLock()
	until, ok := r.revoked[tokenID]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(until) {
		r.mu.Lock()
		delete(r.revoked, tokenID)
		r.mu.Unlock()
		return false, nil
	}
	return true, nil
}
