package server

import (
	"encoding/json"
	"io"
	stdhttp "net/http"
	"time"

	"xinyuan_tech/premium-service/internal/auth"
	"xinyuan_tech/premium-service/internal/conf"
	"xinyuan_tech/premium-service/internal/errors"
	"xinyuan_tech/premium-service/internal/service"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Bootstrap, premium *service.PremiumService, parser *auth.TokenParser, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			// 解析 Bearer token, 未携带时匿名放行
			auth.Middleware(parser),
		),
		http.ErrorEncoder(customErrorEncoder),
	}
	if c.Server.Http.Addr != "" {
		opts = append(opts, http.Address(c.Server.Http.Addr))
	}
	if c.Server.Http.Timeout != "" {
		if d, err := time.ParseDuration(c.Server.Http.Timeout); err == nil {
			opts = append(opts, http.Timeout(d))
		}
	}
	srv := http.NewServer(opts...)

	registerRoutes(srv, premium)

	// 注册健康检查端点
	srv.Route("/").GET("/health", func(ctx http.Context) error {
		return ctx.Result(200, map[string]string{
			"status":  "ok",
			"service": "premium-service",
		})
	})

	return srv
}

// registerRoutes 注册业务路由
// 业务端点只接受 POST/GET 指定方法, 错误方法显式返回 405
func registerRoutes(srv *http.Server, premium *service.PremiumService) {
	r := srv.Route("/api")

	r.POST("/checkout/session", func(ctx http.Context) error {
		var req service.CreateCheckoutSessionRequest
		if err := ctx.Bind(&req); err != nil {
			return errors.NewBizError(errors.ErrCodeCheckoutInvalidArgument, "invalid request body")
		}
		reply, err := premium.CreateCheckoutSession(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
	registerMethodNotAllowed(r, "/checkout/session")

	// webhook 端点读原始请求体, 不能走 Bind (签名校验依赖逐字节一致)
	r.POST("/webhooks/stripe", func(ctx http.Context) error {
		payload, err := io.ReadAll(ctx.Request().Body)
		if err != nil {
			return errors.NewBizError(errors.ErrCodeWebhookPayload, "failed to read request body")
		}
		signature := ctx.Header().Get("Stripe-Signature")
		if err := premium.HandleWebhook(ctx, payload, signature); err != nil {
			return err
		}
		return ctx.Result(200, map[string]bool{"received": true})
	})
	registerMethodNotAllowed(r, "/webhooks/stripe")

	r.GET("/subscriptions/me", func(ctx http.Context) error {
		reply, err := premium.GetMySubscription(ctx)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/content/premium", func(ctx http.Context) error {
		reply, err := premium.GetPremiumContent(ctx)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}

// registerMethodNotAllowed 为只接受 POST 的端点注册其余方法的显式 405 兜底
func registerMethodNotAllowed(r *http.Router, path string) {
	for _, method := range []string{
		stdhttp.MethodGet, stdhttp.MethodPut, stdhttp.MethodPatch,
		stdhttp.MethodDelete, stdhttp.MethodHead,
	} {
		r.Handle(method, path, methodNotAllowed)
	}
}

// methodNotAllowed 错误HTTP方法的显式兜底, 不触碰请求体
func methodNotAllowed(ctx http.Context) error {
	return ctx.Result(stdhttp.StatusMethodNotAllowed, map[string]string{
		"error": "Method not allowed",
	})
}

// customErrorEncoder 错误响应编码
// 响应体固定为 {"error": message}, 错误码按模块映射 HTTP 状态
func customErrorEncoder(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	status := stdhttp.StatusInternalServerError
	message := "internal server error"

	if se := kerrors.FromError(err); se != nil {
		status = mapErrorStatus(int(se.Code))
		message = se.Message
	} else if err != nil {
		message = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// mapErrorStatus 业务错误码到 HTTP 状态码的映射
func mapErrorStatus(code int) int {
	if code >= 100 && code < 600 {
		return code
	}
	switch code {
	case errors.ErrCodeCheckoutInvalidArgument,
		errors.ErrCodeWebhookSignature,
		errors.ErrCodeWebhookPayload:
		return stdhttp.StatusBadRequest
	case errors.ErrCodeSubscriptionNotFound:
		return stdhttp.StatusNotFound
	case errors.ErrCodeSubscriptionNotActive:
		return stdhttp.StatusForbidden
	case errors.ErrCodeCheckoutUpstream, errors.ErrCodePersistenceWrite:
		return stdhttp.StatusInternalServerError
	}
	return stdhttp.StatusInternalServerError
}
