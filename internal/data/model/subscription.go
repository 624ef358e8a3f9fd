package model

import "time"

// Subscription 订阅记录模型
// 以支付服务分配的订阅ID为主键; 可空时间列缺失时显式存 NULL
type Subscription struct {
	StripeSubscriptionID string     `gorm:"primaryKey;column:stripe_subscription_id"`
	UserID               string     `gorm:"column:user_id;index"`
	Status               string     `gorm:"column:status"` // active, trialing, past_due, canceled, ...
	PriceID              string     `gorm:"column:price_id"`
	Quantity             int64      `gorm:"column:quantity;default:1"`
	CancelAtPeriodEnd    bool       `gorm:"column:cancel_at_period_end;default:false"`
	CancelAt             *time.Time `gorm:"column:cancel_at"`
	CanceledAt           *time.Time `gorm:"column:canceled_at"`
	CurrentPeriodStart   *time.Time `gorm:"column:current_period_start"`
	CurrentPeriodEnd     *time.Time `gorm:"column:current_period_end"`
	Created              *time.Time `gorm:"column:created"`
	EndedAt              *time.Time `gorm:"column:ended_at"`
	TrialStart           *time.Time `gorm:"column:trial_start"`
	TrialEnd             *time.Time `gorm:"column:trial_end"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Subscription) TableName() string { return "subscriptions" }
