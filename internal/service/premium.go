package service

import (
	"context"
	"time"

	"xinyuan_tech/premium-service/internal/auth"
	"xinyuan_tech/premium-service/internal/biz"
	"xinyuan_tech/premium-service/internal/constants"
	"xinyuan_tech/premium-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
)

// PremiumService 会员服务
type PremiumService struct {
	uc     *biz.SubscriptionUsecase
	locale biz.LocaleDetectionService
	log    *log.Helper
}

// NewPremiumService 创建会员服务实例
func NewPremiumService(uc *biz.SubscriptionUsecase, locale biz.LocaleDetectionService, logger log.Logger) *PremiumService {
	return &PremiumService{
		uc:     uc,
		locale: locale,
		log:    log.NewHelper(logger),
	}
}

// CreateCheckoutSessionRequest 创建结算会话请求
type CreateCheckoutSessionRequest struct {
	UserID  string `json:"userId"`
	PriceID string `json:"priceId"`
	Email   string `json:"email"`
}

// CreateCheckoutSessionReply 创建结算会话响应
type CreateCheckoutSessionReply struct {
	SessionID string `json:"sessionId"`
}

// CreateCheckoutSession 创建托管结算会话
// userId 取请求体, 缺省时回退到登录态; 已登录时只允许为自己创建会话
func (s *PremiumService) CreateCheckoutSession(ctx context.Context, req *CreateCheckoutSessionRequest) (*CreateCheckoutSessionReply, error) {
	userID := req.UserID
	if userID == "" {
		if uid, ok := auth.GetUIDFromContext(ctx); ok {
			userID = uid
		}
	}
	if userID == "" {
		return nil, errors.NewBizError(errors.ErrCodeCheckoutInvalidArgument, "userId is required")
	}
	if err := auth.CheckOwnership(ctx, userID); err != nil {
		return nil, err
	}

	email := req.Email
	if email == "" {
		if e, ok := auth.GetEmailFromContext(ctx); ok {
			email = e
		}
	}

	locale := s.detectLocale(ctx)

	sessionID, err := s.uc.CreateCheckoutSession(ctx, userID, req.PriceID, email, locale)
	if err != nil {
		return nil, err
	}
	return &CreateCheckoutSessionReply{SessionID: sessionID}, nil
}

// detectLocale 从传输层请求头推断结算页语言
func (s *PremiumService) detectLocale(ctx context.Context) string {
	acceptLanguage := ""
	xLanguage := ""
	if tr, ok := transport.FromServerContext(ctx); ok {
		acceptLanguage = tr.RequestHeader().Get("Accept-Language")
		xLanguage = tr.RequestHeader().Get("X-Language")
	}
	return s.locale.DetectLocale(ctx, acceptLanguage, xLanguage)
}

// HandleWebhook 处理支付服务的 webhook 投递
// payload 必须是未经改写的原始请求体, 签名校验依赖逐字节一致
func (s *PremiumService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	return s.uc.ProcessWebhook(ctx, payload, signature)
}

// SubscriptionInfo 订阅信息 (对外展示字段)
type SubscriptionInfo struct {
	SubscriptionID    string `json:"subscriptionId"`
	Status            string `json:"status"`
	PriceID           string `json:"priceId"`
	CancelAtPeriodEnd bool   `json:"cancelAtPeriodEnd"`
	CurrentPeriodEnd  *int64 `json:"currentPeriodEnd"`
	TrialEnd          *int64 `json:"trialEnd"`
	CanceledAt        *int64 `json:"canceledAt"`
}

// GetMySubscriptionReply 获取当前订阅响应
// 用户从未订阅过时 subscription 为 null
type GetMySubscriptionReply struct {
	IsActive     bool              `json:"isActive"`
	Subscription *SubscriptionInfo `json:"subscription"`
}

// GetMySubscription 获取当前登录用户的订阅信息
func (s *PremiumService) GetMySubscription(ctx context.Context) (*GetMySubscriptionReply, error) {
	uid, err := auth.RequireUID(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := s.uc.GetMySubscription(ctx, uid)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return &GetMySubscriptionReply{IsActive: false}, nil
	}

	return &GetMySubscriptionReply{
		IsActive: sub.Status == constants.StatusActive,
		Subscription: &SubscriptionInfo{
			SubscriptionID:    sub.StripeSubscriptionID,
			Status:            sub.Status,
			PriceID:           sub.PriceID,
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			CurrentPeriodEnd:  timeToEpoch(sub.CurrentPeriodEnd),
			TrialEnd:          timeToEpoch(sub.TrialEnd),
			CanceledAt:        timeToEpoch(sub.CanceledAt),
		},
	}, nil
}

// GetPremiumContentReply 付费内容响应
type GetPremiumContentReply struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// GetPremiumContent 获取付费内容
// 门禁条件: 订阅状态为 active, 其余状态一律 403
func (s *PremiumService) GetPremiumContent(ctx context.Context) (*GetPremiumContentReply, error) {
	uid, err := auth.RequireUID(ctx)
	if err != nil {
		return nil, err
	}

	allowed, err := s.uc.CanAccessPremium(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errors.NewBizError(errors.ErrCodeSubscriptionNotActive, "active subscription required")
	}

	return &GetPremiumContentReply{
		Title:   "Premium content",
		Content: "Thanks for subscribing! This content is only visible to active subscribers.",
	}, nil
}

// timeToEpoch 时间转 epoch 秒, nil 原样传递
func timeToEpoch(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	sec := t.Unix()
	return &sec
}
