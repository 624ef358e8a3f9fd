package constants

import "time"

// 缓存相关常量
const (
	// DefaultCacheExpiration 默认缓存过期时间
	DefaultCacheExpiration = time.Hour
	// NullCacheExpiration 空值缓存过期时间 (防止缓存穿透)
	NullCacheExpiration = 5 * time.Minute
	// CacheRandomMaxSeconds 缓存随机过期时间最大值(秒) - 防止缓存雪崩
	CacheRandomMaxSeconds = 600 // 10分钟
)

// 订阅状态(与 Stripe 保持一致, 本服务不自造状态)
const (
	StatusActive            = "active"
	StatusTrialing          = "trialing"
	StatusPastDue           = "past_due"
	StatusCanceled          = "canceled"
	StatusUnpaid            = "unpaid"
	StatusIncomplete        = "incomplete"
	StatusIncompleteExpired = "incomplete_expired"
	StatusPaused            = "paused"
)

// Webhook 事件类型(与 Stripe 保持一致)
const (
	EventCheckoutSessionCompleted   = "checkout.session.completed"
	EventCustomerSubscriptionCreate = "customer.subscription.created"
	EventCustomerSubscriptionUpdate = "customer.subscription.updated"
	EventCustomerSubscriptionDelete = "customer.subscription.deleted"
)

// MetadataUserIDKey 结算会话/订阅 metadata 中携带用户ID的键
// 在创建 checkout session 时写入, webhook 事件中读回, 用于事件归属
const MetadataUserIDKey = "userId"

// Webhook 事件日志相关常量
const (
	// WebhookEventRetention 已处理事件记录的保留时长
	WebhookEventRetention = 30 * 24 * time.Hour
)

// 订阅到期提醒相关常量
const (
	// DefaultExpiryDays 默认到期检查天数
	DefaultExpiryDays = 7
	// MaxExpiryDays 最大到期检查天数
	MaxExpiryDays = 30
	// DefaultPageSize 默认分页大小
	DefaultPageSize = 10
	// MaxPageSize 最大分页大小
	MaxPageSize = 100
)

// 分布式锁相关常量
const (
	// WebhookPruneLockExpiration 事件日志清理锁过期时间
	WebhookPruneLockExpiration = 10 * time.Minute
	// WebhookPruneLockRetries 事件日志清理锁重试次数
	WebhookPruneLockRetries = 1
)
