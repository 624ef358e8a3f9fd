package data

import (
	"context"
	"io"
	"testing"
	"time"

	"xinyuan_tech/premium-service/internal/biz"
	"xinyuan_tech/premium-service/internal/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*subscriptionCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return newSubscriptionCache(rdb, log.NewStdLogger(io.Discard)), mr
}

func TestSubscriptionCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	sub, hit := cache.Get(context.Background(), "user-1")
	assert.Nil(t, sub)
	assert.False(t, hit)
}

func TestSubscriptionCacheRoundtrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	periodEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	cache.Set(ctx, "user-2", &biz.Subscription{
		StripeSubscriptionID: "sub_2",
		UserID:               "user-2",
		Status:               constants.StatusActive,
		PriceID:              "price_2",
		CurrentPeriodEnd:     &periodEnd,
	})

	sub, hit := cache.Get(ctx, "user-2")
	require.True(t, hit)
	require.NotNil(t, sub)
	assert.Equal(t, "sub_2", sub.StripeSubscriptionID)
	assert.Equal(t, constants.StatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, periodEnd.Equal(*sub.CurrentPeriodEnd))
}

func TestSubscriptionCacheNullMarker(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	// 不存在的订阅缓存空值标记, 命中返回 nil, true (防止缓存穿透)
	cache.Set(ctx, "user-3", nil)

	sub, hit := cache.Get(ctx, "user-3")
	assert.Nil(t, sub)
	assert.True(t, hit)

	// 空值标记使用更短的过期时间
	ttl := mr.TTL(subscriptionCacheKey("user-3"))
	assert.LessOrEqual(t, ttl, constants.NullCacheExpiration)
}

func TestSubscriptionCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-4", &biz.Subscription{StripeSubscriptionID: "sub_4", UserID: "user-4"})
	cache.Invalidate(ctx, "user-4")

	_, hit := cache.Get(ctx, "user-4")
	assert.False(t, hit)
}

func TestSubscriptionCacheExpirationJitter(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-5", &biz.Subscription{StripeSubscriptionID: "sub_5", UserID: "user-5"})

	// 过期时间带随机抖动, 落在 [默认值, 默认值+上限] 区间 (防止缓存雪崩)
	ttl := mr.TTL(subscriptionCacheKey("user-5"))
	assert.GreaterOrEqual(t, ttl, constants.DefaultCacheExpiration-time.Second)
	assert.LessOrEqual(t, ttl, constants.DefaultCacheExpiration+constants.CacheRandomMaxSeconds*time.Second)
}
