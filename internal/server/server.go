package server

import (
	"xinyuan_tech/premium-service/internal/auth"
	"xinyuan_tech/premium-service/internal/conf"

	"github.com/google/wire"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer, NewTokenParser)

// NewTokenParser 创建访问令牌解析器
func NewTokenParser(c *conf.Bootstrap) *auth.TokenParser {
	secret := ""
	if c != nil && c.Client != nil && c.Client.AuthService != nil {
		secret = c.Client.AuthService.JwtSecret
	}
	return auth.NewTokenParser(secret)
}
