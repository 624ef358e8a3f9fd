package biz

import (
	"context"
	"time"

	"xinyuan_tech/premium-service/internal/conf"
	"xinyuan_tech/premium-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewSubscriptionUsecase,
	NewLocaleDetectionService,
)

// Subscription 订阅记录
// status 原样沿用 Stripe 的状态词汇, 本服务不自造状态
// 各时间字段为空时显式存 NULL, 读取方据此区分 "从未发生" 与 "零值"
type Subscription struct {
	StripeSubscriptionID string
	UserID               string
	Status               string // active, trialing, past_due, canceled, ...
	PriceID              string
	Quantity             int64
	CancelAtPeriodEnd    bool
	CancelAt             *time.Time
	CanceledAt           *time.Time
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	Created              *time.Time
	EndedAt              *time.Time
	TrialStart           *time.Time
	TrialEnd             *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// WebhookEvent 已处理的 webhook 事件记录 (用于去重与审计)
type WebhookEvent struct {
	EventID    string
	Type       string
	ReceivedAt time.Time
}

// SubscriptionRepo 订阅记录仓库接口
// 两种写入路径都是按 stripe_subscription_id 的幂等 upsert:
// 结算完成事件只落正向激活字段, 订阅生命周期事件整行覆盖
type SubscriptionRepo interface {
	UpsertCheckoutActivation(ctx context.Context, subscriptionID, userID, priceID string) error
	UpsertSubscription(ctx context.Context, sub *Subscription) error
	GetSubscriptionByID(ctx context.Context, subscriptionID string) (*Subscription, error)
	GetSubscriptionByUser(ctx context.Context, userID string) (*Subscription, error)
	GetExpiringSubscriptions(ctx context.Context, daysBeforeExpiry, page, pageSize int) ([]*Subscription, int, error)
}

// WebhookEventRepo webhook 事件日志仓库接口
type WebhookEventRepo interface {
	// RecordEvent 记录事件, 返回 false 表示该事件ID已处理过
	RecordEvent(ctx context.Context, event *WebhookEvent) (bool, error)
	// DeleteEvent 撤销事件记录 (处理失败时回滚, 让重投能够重新处理)
	DeleteEvent(ctx context.Context, eventID string) error
	PruneEventsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// PaymentGateway 支付服务客户端接口 (防腐层)
type PaymentGateway interface {
	// CreateCheckoutSession 创建托管结算会话, 返回会话ID
	CreateCheckoutSession(ctx context.Context, params *CheckoutParams) (string, error)
	// VerifyEvent 校验 webhook 签名并解析事件, 签名不合法时必须返回错误
	VerifyEvent(payload []byte, signature string) (*PaymentEvent, error)
}

// AuthDirectoryClient 认证服务目录客户端接口 (防腐层)
// 用于服务端凭证查询用户资料, 未配置时返回空值优雅降级
type AuthDirectoryClient interface {
	GetUserEmail(ctx context.Context, uid string) (string, error)
}

// SubscriptionUsecase 订阅业务逻辑
type SubscriptionUsecase struct {
	repo      SubscriptionRepo
	eventRepo WebhookEventRepo
	gateway   PaymentGateway
	directory AuthDirectoryClient
	rs        *redsync.Redsync
	config    *conf.Bootstrap
	log       *log.Helper
}

// NewSubscriptionUsecase 创建订阅业务用例
func NewSubscriptionUsecase(
	repo SubscriptionRepo,
	eventRepo WebhookEventRepo,
	gateway PaymentGateway,
	directory AuthDirectoryClient,
	rs *redsync.Redsync,
	config *conf.Bootstrap,
	logger log.Logger,
) *SubscriptionUsecase {
	return &SubscriptionUsecase{
		repo:      repo,
		eventRepo: eventRepo,
		gateway:   gateway,
		directory: directory,
		rs:        rs,
		config:    config,
		log:       log.NewHelper(logger),
	}
}

// GetMySubscription 获取用户当前订阅信息
// 返回 nil 表示用户从未订阅过
func (uc *SubscriptionUsecase) GetMySubscription(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := uc.repo.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// CanAccessPremium 判断用户是否可以访问付费内容
// 门禁条件: 存在订阅记录且状态为 active。状态由支付服务的 webhook 事件
// 驱动写入, 本地不做过期推断, past_due/canceled 等状态一律拒绝
func (uc *SubscriptionUsecase) CanAccessPremium(ctx context.Context, userID string) (bool, error) {
	sub, err := uc.repo.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return sub != nil && sub.Status == constants.StatusActive, nil
}
