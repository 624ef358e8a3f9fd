package biz

import "time"

// EventKind 识别的支付事件种类
// 未识别的事件类型统一归入 EventKindIgnored, 不做无类型访问
type EventKind int

const (
	// EventKindIgnored 未识别的事件类型 (接受并忽略)
	EventKindIgnored EventKind = iota
	// EventKindSessionCompleted 结算会话完成
	EventKindSessionCompleted
	// EventKindSubscriptionCreated 订阅创建
	EventKindSubscriptionCreated
	// EventKindSubscriptionUpdated 订阅更新
	EventKindSubscriptionUpdated
	// EventKindSubscriptionDeleted 订阅删除 (状态置为取消, 不删行)
	EventKindSubscriptionDeleted
)

// PaymentEvent 已通过签名校验的支付事件 (按事件种类封闭的标签联合)
// Session 仅在 EventKindSessionCompleted 时有值,
// Subscription 仅在订阅生命周期事件时有值
type PaymentEvent struct {
	ID           string // 支付服务分配的事件ID (evt_xxx)
	Type         string // 原始事件类型字符串
	Kind         EventKind
	Session      *CheckoutSessionCompleted
	Subscription *SubscriptionState
}

// CheckoutSessionCompleted 结算会话完成事件内容
type CheckoutSessionCompleted struct {
	SessionID         string
	SubscriptionID    string
	ClientReferenceID string // 创建会话时写入的用户ID (关联字段)
	CustomerEmail     string
	Metadata          map[string]string
}

// SubscriptionState 订阅生命周期事件内容
// 时间字段为支付服务的 epoch 秒, 缺失时为 nil (提交存储前统一翻译)
type SubscriptionState struct {
	ID                 string
	Status             string
	Metadata           map[string]string // 创建会话时写入的 subscription_data.metadata
	Items              []SubscriptionItemState
	CancelAtPeriodEnd  bool
	CancelAt           *int64
	CanceledAt         *int64
	CurrentPeriodStart *int64
	CurrentPeriodEnd   *int64
	Created            *int64
	EndedAt            *int64
	TrialStart         *int64
	TrialEnd           *int64
}

// SubscriptionItemState 订阅条目 (price + quantity)
type SubscriptionItemState struct {
	PriceID  string
	Quantity int64
}

// epochToTime 将 epoch 秒翻译为 UTC 时间, nil 原样传递
func epochToTime(sec *int64) *time.Time {
	if sec == nil {
		return nil
	}
	t := time.Unix(*sec, 0).UTC()
	return &t
}
