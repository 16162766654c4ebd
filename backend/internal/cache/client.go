package cache

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"whiteboard/backend/internal/metrics"
)

// Client 包装 *redis.Client，所有方法内部带重试与退避。
// 调用方依赖 Client 本身，不允许绕过它直接访问 redis。
type Client struct {
	rdb *redis.Client
}

func NewClient(addr, password string) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		PoolSize:     20,
		DialTimeout:  DialTimeout,
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
	})
	return &Client{rdb: rdb}
}

// NewClientFromRedis 便于测试时注入已建好的连接。
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// isConnErr 区分连通性错误与其他 redis 错误：只有前者值得重试。
// redis.Nil 是正常未命中，不属于错误。
func isConnErr(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, redis.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// withRetry 对连通性错误做指数退避重试，最多 MaxRetries 次；
// 其他错误立即上抛。最终失败也上抛，由调用方决定是否降级。
func withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isConnErr(err) {
			return err
		}
		if attempt == MaxRetries-1 {
			break
		}
		backoff := BaseBackoff << attempt
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Dur("backoff", backoff).
			Msg("redis connection failed, retrying")
		metrics.CacheRetriesTotal.Inc()
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	log.Error().Err(err).Str("op", op).Int("attempts", MaxRetries).Msg("redis connection failed, giving up")
	return err
}

// Get 返回 (值, 是否命中, 错误)。未命中不算错误。
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var val []byte
	err := withRetry(ctx, "get", func() error {
		b, err := c.rdb.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		val = b
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *Client) SetEX(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return withRetry(ctx, "setex", func() error {
		return c.rdb.Set(ctx, key, val, ttl).Err()
	})
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return withRetry(ctx, "del", func() error {
		return c.rdb.Del(ctx, keys...).Err()
	})
}

// HSetWithExpire 用 pipeline 把字段写入与整个 hash 的 TTL 刷新作为一个单元提交，
// 避免 hash 在两步之间过期。
func (c *Client) HSetWithExpire(ctx context.Context, key, field string, val []byte, ttl time.Duration) error {
	return withRetry(ctx, "hset+expire", func() error {
		pipe := c.rdb.Pipeline()
		pipe.HSet(ctx, key, field, val)
		pipe.Expire(ctx, key, ttl)
		_, err := pipe.Exec(ctx)
		return err
	})
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var out map[string]string
	err := withRetry(ctx, "hgetall", func() error {
		m, err := c.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// HDel 批量删除 hash 字段，一次提交。
func (c *Client) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return withRetry(ctx, "hdel", func() error {
		return c.rdb.HDel(ctx, key, fields...).Err()
	})
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return withRetry(ctx, "expire", func() error {
		return c.rdb.Expire(ctx, key, ttl).Err()
	})
}

// ScanKeys 用 SCAN 遍历匹配键，避免阻塞式 KEYS。
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := withRetry(ctx, "scan", func() error {
		keys = keys[:0]
		iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		return iter.Err()
	})
	return keys, err
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Healthy 带重试的健康探测，全部失败才报不健康。
func (c *Client) Healthy(ctx context.Context) bool {
	for attempt := 0; attempt < MaxRetries; attempt++ {
		err := c.Ping(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().Msg("redis connection restored")
			}
			return true
		}
		if !isConnErr(err) {
			log.Error().Err(err).Msg("unexpected redis error during health check")
			return false
		}
		if attempt == MaxRetries-1 {
			log.Error().Err(err).Int("attempts", MaxRetries).Msg("redis health check failed")
			break
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("redis health check failed, retrying")
		select {
		case <-time.After(BaseBackoff << attempt):
		case <-ctx.Done():
			return false
		}
	}
	return false
}
