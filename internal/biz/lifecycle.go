package biz

import (
	"context"
	"time"

	"xinyuan_tech/premium-service/internal/constants"

	"github.com/go-redsync/redsync/v4"
)

// GetExpiringSubscriptions 获取当前计费周期即将结束的订阅 (供定时提醒任务使用)
// 只读不写: 本地不推断过期状态, 状态始终以支付服务的事件为准
func (uc *SubscriptionUsecase) GetExpiringSubscriptions(ctx context.Context, daysBeforeExpiry, page, pageSize int) ([]*Subscription, int, error) {
	uc.log.Infof("GetExpiringSubscriptions: daysBeforeExpiry=%d, page=%d, pageSize=%d", daysBeforeExpiry, page, pageSize)

	// 参数验证
	if daysBeforeExpiry < 1 || daysBeforeExpiry > constants.MaxExpiryDays {
		daysBeforeExpiry = constants.DefaultExpiryDays
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > constants.MaxPageSize {
		pageSize = constants.DefaultPageSize
	}

	subscriptions, total, err := uc.repo.GetExpiringSubscriptions(ctx, daysBeforeExpiry, page, pageSize)
	if err != nil {
		uc.log.Errorf("Failed to get expiring subscriptions: %v", err)
		return nil, 0, err
	}

	uc.log.Infof("Found %d subscriptions ending within %d days", total, daysBeforeExpiry)
	return subscriptions, total, nil
}

// PruneWebhookEvents 清理超过保留期的 webhook 事件记录
// 使用分布式锁防止多实例同时清理
func (uc *SubscriptionUsecase) PruneWebhookEvents(ctx context.Context) (int, error) {
	mutex := uc.rs.NewMutex(
		"webhook_event_prune_lock",
		redsync.WithExpiry(constants.WebhookPruneLockExpiration),
		redsync.WithTries(constants.WebhookPruneLockRetries), // 只尝试一次,如果失败说明正在处理
	)

	if err := mutex.LockContext(ctx); err != nil {
		uc.log.Infof("Skipping webhook event prune: lock busy or already processing")
		return 0, nil
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			uc.log.Warnf("Failed to unlock webhook event prune lock: %v", err)
		}
	}()

	cutoff := time.Now().UTC().Add(-constants.WebhookEventRetention)
	count, err := uc.eventRepo.PruneEventsBefore(ctx, cutoff)
	if err != nil {
		uc.log.Errorf("Failed to prune webhook events: %v", err)
		return 0, err
	}

	uc.log.Infof("Pruned %d webhook events older than %s", count, cutoff.Format("2006-01-02"))
	return count, nil
}
