package errors

import (
	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// 错误码对应的 reason 标识
var reasons = map[int]string{
	ErrCodeCheckoutUpstream:        "CHECKOUT_UPSTREAM",
	ErrCodeCheckoutInvalidArgument: "CHECKOUT_INVALID_ARGUMENT",
	ErrCodeWebhookSignature:        "WEBHOOK_SIGNATURE_INVALID",
	ErrCodeWebhookPayload:          "WEBHOOK_PAYLOAD_INVALID",
	ErrCodePersistenceWrite:        "PERSISTENCE_WRITE_FAILED",
	ErrCodeSubscriptionNotFound:    "SUBSCRIPTION_NOT_FOUND",
	ErrCodeSubscriptionNotActive:   "SUBSCRIPTION_NOT_ACTIVE",
}

// NewBizError 根据错误码创建业务错误
func NewBizError(code int, message string) *kerrors.Error {
	reason, ok := reasons[code]
	if !ok {
		reason = "UNKNOWN"
	}
	return kerrors.New(code, reason, message)
}

// IsCode 判断错误是否为指定错误码的业务错误
func IsCode(err error, code int) bool {
	se := kerrors.FromError(err)
	return se != nil && int(se.Code) == code
}
