package model

import "time"

// WebhookEvent 已处理的 webhook 事件模型 (去重与审计)
// 事件ID由支付服务分配, 重投时主键冲突即判定为已处理
type WebhookEvent struct {
	EventID    string    `gorm:"primaryKey;column:event_id"`
	Type       string    `gorm:"column:event_type;index"`
	ReceivedAt time.Time `gorm:"column:received_at;index"`
}

func (WebhookEvent) TableName() string { return "webhook_event" }
