package data

import (
	"context"
	"encoding/json"
	"fmt"

	"xinyuan_tech/premium-service/internal/biz"
	"xinyuan_tech/premium-service/internal/conf"
	"xinyuan_tech/premium-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeGateway Stripe 支付服务客户端实现
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	log           *log.Helper
}

// NewPaymentGateway 创建 Stripe 支付服务客户端
func NewPaymentGateway(c *conf.Bootstrap, logger log.Logger) *StripeGateway {
	api := &client.API{}
	api.Init(c.Stripe.SecretKey, nil)
	return &StripeGateway{
		api:           api,
		webhookSecret: c.Stripe.WebhookSecret,
		log:           log.NewHelper(logger),
	}
}

// CreateCheckoutSession 创建托管结算会话
// userID 同时写入 client_reference_id 与 subscription_data.metadata,
// 幂等键取随机 uuid, 重复提交由客户端重新发起而不是重放
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, params *biz.CheckoutParams) (string, error) {
	p := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(params.SuccessURL),
		CancelURL:         stripe.String(params.CancelURL),
		ClientReferenceID: stripe.String(params.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				constants.MetadataUserIDKey: params.UserID,
			},
		},
	}
	if params.CustomerEmail != "" {
		p.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	if params.Locale != "" {
		p.Locale = stripe.String(params.Locale)
	}
	p.Context = ctx
	p.SetIdempotencyKey(uuid.NewString())

	sess, err := g.api.CheckoutSessions.New(p)
	if err != nil {
		g.log.WithContext(ctx).Errorf("Failed to create stripe checkout session: %v", err)
		return "", err
	}
	return sess.ID, nil
}

// checkoutSessionPayload 结算会话事件的载荷 (只取本服务关心的字段)
type checkoutSessionPayload struct {
	ID                string `json:"id"`
	Subscription      string `json:"subscription"`
	ClientReferenceID string `json:"client_reference_id"`
	CustomerEmail     string `json:"customer_email"`
	CustomerDetails   *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

// subscriptionPayload 订阅对象事件的载荷
// 时间字段在 Stripe 侧缺失时为 null, 对应指针为 nil
// current_period_* 新版 API 移到条目上, 两处都读, 订阅级优先
type subscriptionPayload struct {
	ID                 string            `json:"id"`
	Status             string            `json:"status"`
	Metadata           map[string]string `json:"metadata"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CancelAt           *int64            `json:"cancel_at"`
	CanceledAt         *int64            `json:"canceled_at"`
	CurrentPeriodStart *int64            `json:"current_period_start"`
	CurrentPeriodEnd   *int64            `json:"current_period_end"`
	Created            *int64            `json:"created"`
	EndedAt            *int64            `json:"ended_at"`
	TrialStart         *int64            `json:"trial_start"`
	TrialEnd           *int64            `json:"trial_end"`
	Items              struct {
		Data []struct {
			Quantity           int64  `json:"quantity"`
			CurrentPeriodStart *int64 `json:"current_period_start"`
			CurrentPeriodEnd   *int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// VerifyEvent 校验 webhook 签名并解析事件
// 签名不合法时返回错误; 识别不了的事件类型归入 EventKindIgnored
func (g *StripeGateway) VerifyEvent(payload []byte, signature string) (*biz.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	result := &biz.PaymentEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	switch string(event.Type) {
	case constants.EventCheckoutSessionCompleted:
		var sess checkoutSessionPayload
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("parse checkout session payload: %w", err)
		}
		email := sess.CustomerEmail
		if email == "" && sess.CustomerDetails != nil {
			email = sess.CustomerDetails.Email
		}
		result.Kind = biz.EventKindSessionCompleted
		result.Session = &biz.CheckoutSessionCompleted{
			SessionID:         sess.ID,
			SubscriptionID:    sess.Subscription,
			ClientReferenceID: sess.ClientReferenceID,
			CustomerEmail:     email,
			Metadata:          sess.Metadata,
		}
	case constants.EventCustomerSubscriptionCreate,
		constants.EventCustomerSubscriptionUpdate,
		constants.EventCustomerSubscriptionDelete:
		var sub subscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("parse subscription payload: %w", err)
		}
		switch string(event.Type) {
		case constants.EventCustomerSubscriptionCreate:
			result.Kind = biz.EventKindSubscriptionCreated
		case constants.EventCustomerSubscriptionUpdate:
			result.Kind = biz.EventKindSubscriptionUpdated
		default:
			result.Kind = biz.EventKindSubscriptionDeleted
		}
		result.Subscription = toSubscriptionState(&sub)
	default:
		result.Kind = biz.EventKindIgnored
	}

	return result, nil
}

// toSubscriptionState 将订阅载荷转换为业务事件内容
func toSubscriptionState(sub *subscriptionPayload) *biz.SubscriptionState {
	state := &biz.SubscriptionState{
		ID:                 sub.ID,
		Status:             sub.Status,
		Metadata:           sub.Metadata,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CancelAt:           sub.CancelAt,
		CanceledAt:         sub.CanceledAt,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		Created:            sub.Created,
		EndedAt:            sub.EndedAt,
		TrialStart:         sub.TrialStart,
		TrialEnd:           sub.TrialEnd,
	}
	for _, item := range sub.Items.Data {
		state.Items = append(state.Items, biz.SubscriptionItemState{
			PriceID:  item.Price.ID,
			Quantity: item.Quantity,
		})
		if state.CurrentPeriodStart == nil {
			state.CurrentPeriodStart = item.CurrentPeriodStart
		}
		if state.CurrentPeriodEnd == nil {
			state.CurrentPeriodEnd = item.CurrentPeriodEnd
		}
	}
	return state
}
