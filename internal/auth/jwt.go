package auth

import (
	"context"
	"strings"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/golang-jwt/jwt/v5"
)

// accessTokenClaims 认证服务签发的访问令牌 claims
// 认证服务使用 HS256 对称签名, sub 为用户 UUID
type accessTokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenParser 校验认证服务签发的访问令牌
type TokenParser struct {
	secret []byte
}

// NewTokenParser 创建令牌解析器
func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{secret: []byte(secret)}
}

// Parse 校验令牌签名并返回用户ID和邮箱
func (p *TokenParser) Parse(tokenString string) (uid, email string, err error) {
	claims := &accessTokenClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return p.secret, nil
	})
	if err != nil {
		return "", "", err
	}
	return claims.Subject, claims.Email, nil
}

// Middleware 从 Authorization Header 提取访问令牌并将用户信息写入 context
// 令牌缺失时不拦截请求, 需要登录态的接口再调用 RequireUID
func Middleware(parser *TokenParser) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if tr, ok := transport.FromServerContext(ctx); ok {
				authorization := tr.RequestHeader().Get("Authorization")
				if token, found := strings.CutPrefix(authorization, "Bearer "); found {
					if uid, email, err := parser.Parse(token); err == nil {
						ctx = WithUser(ctx, uid, email)
					}
				}
			}
			return handler(ctx, req)
		}
	}
}
