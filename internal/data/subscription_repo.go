package data

import (
	"context"
	"errors"
	"time"

	"xinyuan_tech/premium-service/internal/biz"
	"xinyuan_tech/premium-service/internal/constants"
	"xinyuan_tech/premium-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionRepo 订阅记录仓库实现
type subscriptionRepo struct {
	data  *Data
	cache *subscriptionCache
	log   *log.Helper
}

// NewSubscriptionRepo 创建订阅记录仓库
func NewSubscriptionRepo(data *Data, logger log.Logger) biz.SubscriptionRepo {
	return &subscriptionRepo{
		data:  data,
		cache: newSubscriptionCache(data.rdb, logger),
		log:   log.NewHelper(logger),
	}
}

// 生命周期事件整行覆盖的列 (不含 user_id 和 created_at, 见 UpsertSubscription)
var subscriptionAssignColumns = []string{
	"status", "price_id", "quantity", "cancel_at_period_end",
	"cancel_at", "canceled_at", "current_period_start", "current_period_end",
	"created", "ended_at", "trial_start", "trial_end", "updated_at",
}

// UpsertCheckoutActivation 结算完成事件的激活写入
// 只落激活字段, 不碰生命周期事件填充的周期/试用列
func (r *subscriptionRepo) UpsertCheckoutActivation(ctx context.Context, subscriptionID, userID, priceID string) error {
	m := &model.Subscription{
		StripeSubscriptionID: subscriptionID,
		UserID:               userID,
		Status:               constants.StatusActive,
		PriceID:              priceID,
		Quantity:             1,
	}
	err := r.data.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "status", "price_id", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		r.log.Errorf("Failed to upsert checkout activation for subscription %s: %v", subscriptionID, err)
		return err
	}

	r.cache.Invalidate(ctx, userID)
	return nil
}

// UpsertSubscription 生命周期事件的整行覆盖写入
// 字段无条件以最新事件的值覆盖 (包括置 NULL); user_id 仅在事件携带时覆盖,
// 避免 metadata 缺失的事件抹掉既有归属
func (r *subscriptionRepo) UpsertSubscription(ctx context.Context, sub *biz.Subscription) error {
	m := &model.Subscription{
		StripeSubscriptionID: sub.StripeSubscriptionID,
		UserID:               sub.UserID,
		Status:               sub.Status,
		PriceID:              sub.PriceID,
		Quantity:             sub.Quantity,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		CancelAt:             sub.CancelAt,
		CanceledAt:           sub.CanceledAt,
		CurrentPeriodStart:   sub.CurrentPeriodStart,
		CurrentPeriodEnd:     sub.CurrentPeriodEnd,
		Created:              sub.Created,
		EndedAt:              sub.EndedAt,
		TrialStart:           sub.TrialStart,
		TrialEnd:             sub.TrialEnd,
	}

	assign := subscriptionAssignColumns
	if sub.UserID != "" {
		assign = append([]string{"user_id"}, assign...)
	}

	err := r.data.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_subscription_id"}},
		DoUpdates: clause.AssignmentColumns(assign),
	}).Create(m).Error
	if err != nil {
		r.log.Errorf("Failed to upsert subscription %s: %v", sub.StripeSubscriptionID, err)
		return err
	}

	r.cache.Invalidate(ctx, sub.UserID)
	return nil
}

// GetSubscriptionByID 按订阅ID获取记录 (写路径的属主回填用, 不走用户缓存)
func (r *subscriptionRepo) GetSubscriptionByID(ctx context.Context, subscriptionID string) (*biz.Subscription, error) {
	var m model.Subscription
	err := r.data.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", subscriptionID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get subscription %s: %v", subscriptionID, err)
		return nil, err
	}
	return toBizSubscription(&m), nil
}

// GetSubscriptionByUser 获取用户最近的订阅记录
// cache-aside: 先读缓存, 未命中回源后回填 (不存在时回填空值标记)
func (r *subscriptionRepo) GetSubscriptionByUser(ctx context.Context, userID string) (*biz.Subscription, error) {
	if sub, hit := r.cache.Get(ctx, userID); hit {
		return sub, nil
	}

	var m model.Subscription
	err := r.data.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.cache.Set(ctx, userID, nil)
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get subscription for user %s: %v", userID, err)
		return nil, err
	}

	sub := toBizSubscription(&m)
	r.cache.Set(ctx, userID, sub)
	return sub, nil
}

// GetExpiringSubscriptions 获取当前计费周期即将结束的活跃订阅
func (r *subscriptionRepo) GetExpiringSubscriptions(ctx context.Context, daysBeforeExpiry, page, pageSize int) ([]*biz.Subscription, int, error) {
	var models []model.Subscription
	var total int64

	now := time.Now().UTC()
	expiryDate := now.AddDate(0, 0, daysBeforeExpiry)

	// 获取总数
	if err := r.data.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("current_period_end BETWEEN ? AND ? AND status = ?", now, expiryDate, constants.StatusActive).
		Count(&total).Error; err != nil {
		r.log.Errorf("Failed to count expiring subscriptions: %v", err)
		return nil, 0, err
	}

	// 分页查询
	offset := (page - 1) * pageSize
	if err := r.data.db.WithContext(ctx).
		Where("current_period_end BETWEEN ? AND ? AND status = ?", now, expiryDate, constants.StatusActive).
		Order("current_period_end ASC").
		Limit(pageSize).
		Offset(offset).
		Find(&models).Error; err != nil {
		r.log.Errorf("Failed to get expiring subscriptions: %v", err)
		return nil, 0, err
	}

	// 转换为业务对象
	subscriptions := make([]*biz.Subscription, len(models))
	for i := range models {
		subscriptions[i] = toBizSubscription(&models[i])
	}

	return subscriptions, int(total), nil
}

func toBizSubscription(m *model.Subscription) *biz.Subscription {
	return &biz.Subscription{
		StripeSubscriptionID: m.StripeSubscriptionID,
		UserID:               m.UserID,
		Status:               m.Status,
		PriceID:              m.PriceID,
		Quantity:             m.Quantity,
		CancelAtPeriodEnd:    m.CancelAtPeriodEnd,
		CancelAt:             m.CancelAt,
		CanceledAt:           m.CanceledAt,
		CurrentPeriodStart:   m.CurrentPeriodStart,
		CurrentPeriodEnd:     m.CurrentPeriodEnd,
		Created:              m.Created,
		EndedAt:              m.EndedAt,
		TrialStart:           m.TrialStart,
		TrialEnd:             m.TrialEnd,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}
