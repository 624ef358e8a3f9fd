package errors

// 会员服务错误码定义
// 错误码格式：SSMMEE (6位数字)，其中 SS=14 表示 premium-service
// 模块划分：
//   01: 结算会话模块
//   02: Webhook 模块
//   03: 订阅存储模块
//   04: 订阅读取模块

// 结算会话模块 (140100-140199)
const (
	// ErrCodeCheckoutUpstream 支付服务创建结算会话失败错误
	ErrCodeCheckoutUpstream = 140101
	// ErrCodeCheckoutInvalidArgument 结算请求参数无效错误
	ErrCodeCheckoutInvalidArgument = 140102
)

// Webhook 模块 (140200-140299)
const (
	// ErrCodeWebhookSignature Webhook 签名校验失败错误
	ErrCodeWebhookSignature = 140201
	// ErrCodeWebhookPayload Webhook 事件内容解析失败错误
	ErrCodeWebhookPayload = 140202
)

// 订阅存储模块 (140300-140399)
const (
	// ErrCodePersistenceWrite 订阅记录写入失败错误
	ErrCodePersistenceWrite = 140301
)

// 订阅读取模块 (140400-140499)
const (
	// ErrCodeSubscriptionNotFound 订阅不存在错误
	ErrCodeSubscriptionNotFound = 140401
	// ErrCodeSubscriptionNotActive 订阅未激活错误
	ErrCodeSubscriptionNotActive = 140402
)
