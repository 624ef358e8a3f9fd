package data

import (
	"context"
	"time"

	"xinyuan_tech/premium-service/internal/biz"
	"xinyuan_tech/premium-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm/clause"
)

// webhookEventRepo webhook 事件日志仓库实现
type webhookEventRepo struct {
	data *Data
	log  *log.Helper
}

// NewWebhookEventRepo 创建 webhook 事件日志仓库
func NewWebhookEventRepo(data *Data, logger log.Logger) biz.WebhookEventRepo {
	return &webhookEventRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// RecordEvent 记录事件
// 以事件ID为主键做 DO NOTHING 插入, 影响行数为 0 即为重投事件
func (r *webhookEventRepo) RecordEvent(ctx context.Context, event *biz.WebhookEvent) (bool, error) {
	m := &model.WebhookEvent{
		EventID:    event.EventID,
		Type:       event.Type,
		ReceivedAt: event.ReceivedAt,
	}
	result := r.data.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(m)
	if result.Error != nil {
		r.log.Errorf("Failed to record webhook event %s: %v", event.EventID, result.Error)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteEvent 撤销事件记录
func (r *webhookEventRepo) DeleteEvent(ctx context.Context, eventID string) error {
	err := r.data.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&model.WebhookEvent{}).Error
	if err != nil {
		r.log.Errorf("Failed to delete webhook event %s: %v", eventID, err)
		return err
	}
	return nil
}

// PruneEventsBefore 删除早于 cutoff 的事件记录
func (r *webhookEventRepo) PruneEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result := r.data.db.WithContext(ctx).
		Where("received_at < ?", cutoff).
		Delete(&model.WebhookEvent{})
	if result.Error != nil {
		r.log.Errorf("Failed to prune webhook events: %v", result.Error)
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}
