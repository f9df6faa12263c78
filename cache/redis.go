package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chaos-io/rembg-server/config"
)

// ResultCache 缓存已编码的 PNG 结果字节，键 = md5(原图) + 背景色。
// 只存不可变字节，不缓存任何中间 raster 状态；redis 挂了请求照常处理。
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultCache(cfg *config.RedisConfig) *ResultCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &ResultCache{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (c *ResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get 未命中返回 (nil, nil)
func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, "result:"+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (c *ResultCache) Set(ctx context.Context, key string, data []byte) error {
	return c.client.Set(ctx, "result:"+key, data, c.ttl).Err()
}

func (c *ResultCache) Close() error {
	return c.client.Close()
}
