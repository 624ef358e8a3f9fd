package data

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"xinyuan_tech/premium-service/internal/biz"
	"xinyuan_tech/premium-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// 订阅缓存 key 前缀
const subscriptionCacheKeyPrefix = "premium:subscription:user:"

// nullCacheValue 空值标记 (防止缓存穿透)
const nullCacheValue = "null"

// subscriptionCache 订阅记录读缓存 (cache-aside)
type subscriptionCache struct {
	rdb *redis.Client
	log *log.Helper
}

func newSubscriptionCache(rdb *redis.Client, logger log.Logger) *subscriptionCache {
	return &subscriptionCache{
		rdb: rdb,
		log: log.NewHelper(logger),
	}
}

func subscriptionCacheKey(userID string) string {
	return subscriptionCacheKeyPrefix + userID
}

// Get 读取缓存
// 第二个返回值表示是否命中 (命中空值标记时返回 nil, true)
func (c *subscriptionCache) Get(ctx context.Context, userID string) (*biz.Subscription, bool) {
	val, err := c.rdb.Get(ctx, subscriptionCacheKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warnf("Failed to read subscription cache for user %s: %v", userID, err)
		return nil, false
	}
	if val == nullCacheValue {
		return nil, true
	}

	var sub biz.Subscription
	if err := json.Unmarshal([]byte(val), &sub); err != nil {
		c.log.Warnf("Failed to decode subscription cache for user %s: %v", userID, err)
		return nil, false
	}
	return &sub, true
}

// Set 写入缓存, sub 为 nil 时写空值标记
// 过期时间加随机抖动, 防止缓存雪崩
func (c *subscriptionCache) Set(ctx context.Context, userID string, sub *biz.Subscription) {
	key := subscriptionCacheKey(userID)

	if sub == nil {
		if err := c.rdb.Set(ctx, key, nullCacheValue, constants.NullCacheExpiration).Err(); err != nil {
			c.log.Warnf("Failed to cache null subscription for user %s: %v", userID, err)
		}
		return
	}

	payload, err := json.Marshal(sub)
	if err != nil {
		c.log.Warnf("Failed to encode subscription for user %s: %v", userID, err)
		return
	}

	expiration := constants.DefaultCacheExpiration + time.Duration(rand.Intn(constants.CacheRandomMaxSeconds))*time.Second
	if err := c.rdb.Set(ctx, key, payload, expiration).Err(); err != nil {
		c.log.Warnf("Failed to cache subscription for user %s: %v", userID, err)
	}
}

// Invalidate 失效缓存 (写路径调用)
func (c *subscriptionCache) Invalidate(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	if err := c.rdb.Del(ctx, subscriptionCacheKey(userID)).Err(); err != nil {
		c.log.Warnf("Failed to invalidate subscription cache for user %s: %v", userID, err)
	}
}
