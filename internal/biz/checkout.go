package biz

import (
	"context"

	"xinyuan_tech/premium-service/internal/errors"
)

// CheckoutParams 创建结算会话的参数
// UserID 同时写入 client_reference_id 和 subscription_data.metadata,
// 供后续 webhook 事件归属用户, 避免按邮箱反查的竞态
type CheckoutParams struct {
	UserID        string
	PriceID       string
	CustomerEmail string
	Locale        string
	SuccessURL    string
	CancelURL     string
}

// CreateCheckoutSession 创建托管结算会话
// priceID 为空时使用配置的默认价格; email 为空时尝试从认证服务目录补全
// 失败不自动重试, 由客户端重新发起
func (uc *SubscriptionUsecase) CreateCheckoutSession(ctx context.Context, userID, priceID, email, locale string) (string, error) {
	uc.log.WithContext(ctx).Infof("CreateCheckoutSession: userID=%s, priceID=%s", userID, priceID)

	if userID == "" {
		return "", errors.NewBizError(errors.ErrCodeCheckoutInvalidArgument, "userId is required")
	}
	if priceID == "" {
		priceID = uc.config.Stripe.PriceID
	}

	// email 缺失时从认证服务目录查询 (未配置服务端凭证时返回空, 优雅降级)
	if email == "" && uc.directory != nil {
		resolved, err := uc.directory.GetUserEmail(ctx, userID)
		if err != nil {
			uc.log.WithContext(ctx).Warnf("Failed to resolve email for user %s: %v", userID, err)
		} else {
			email = resolved
		}
	}

	params := &CheckoutParams{
		UserID:        userID,
		PriceID:       priceID,
		CustomerEmail: email,
		Locale:        locale,
		SuccessURL:    uc.config.Stripe.SuccessURL,
		CancelURL:     uc.config.Stripe.CancelURL,
	}

	sessionID, err := uc.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		uc.log.WithContext(ctx).Errorf("Failed to create checkout session: %v", err)
		return "", errors.NewBizError(errors.ErrCodeCheckoutUpstream, err.Error())
	}

	uc.log.WithContext(ctx).Infof("Checkout session created: %s", sessionID)
	return sessionID, nil
}
