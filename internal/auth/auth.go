package auth

import (
	"context"

	"github.com/go-kratos/kratos/v2/errors"
)

// 定义 context key
type contextKey string

const (
	// UserIDKey 用户ID的context key（uid，字符串 UUID，由认证服务分配）
	UserIDKey contextKey = "user_id"
	// UserEmailKey 用户邮箱的context key
	UserEmailKey contextKey = "user_email"
)

// GetUIDFromContext 从context中获取用户ID（字符串 UUID）
func GetUIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(UserIDKey).(string)
	return uid, ok && uid != ""
}

// GetEmailFromContext 从context中获取用户邮箱
func GetEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailKey).(string)
	return email, ok && email != ""
}

// WithUser 将用户信息写入 context（中间件与测试使用）
func WithUser(ctx context.Context, uid, email string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, uid)
	return context.WithValue(ctx, UserEmailKey, email)
}

// CheckOwnership 检查当前登录用户是否有权限操作指定用户的资源
// 未登录时放行（结算接口允许匿名请求携带 userId，归属由 webhook 回传校验）
func CheckOwnership(ctx context.Context, resourceUID string) error {
	currentUID, ok := GetUIDFromContext(ctx)
	if !ok {
		return nil
	}

	if currentUID != resourceUID {
		return errors.Forbidden("FORBIDDEN", "permission denied: you can only access your own resources")
	}

	return nil
}

// RequireUID 获取当前登录用户ID，未登录返回错误
func RequireUID(ctx context.Context) (string, error) {
	uid, ok := GetUIDFromContext(ctx)
	if !ok {
		return "", errors.Unauthorized("UNAUTHORIZED", "authentication required")
	}
	return uid, nil
}
