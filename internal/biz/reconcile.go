package biz

import (
	"context"
	"time"

	"xinyuan_tech/premium-service/internal/constants"
	"xinyuan_tech/premium-service/internal/errors"
)

// ProcessWebhook 校验 webhook 签名并处理事件
// 签名校验失败返回 ErrCodeWebhookSignature (响应 400, 支付服务不会重投)
func (uc *SubscriptionUsecase) ProcessWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := uc.gateway.VerifyEvent(payload, signature)
	if err != nil {
		uc.log.WithContext(ctx).Warnf("Webhook signature verification failed: %v", err)
		return errors.NewBizError(errors.ErrCodeWebhookSignature, "webhook signature verification failed")
	}
	return uc.HandlePaymentEvent(ctx, event)
}

// HandlePaymentEvent 将已通过签名校验的支付事件落为订阅记录的 upsert
// 支付服务的投递为 at-least-once 且不保证有序, 因此:
//   - 每条写入都是按 stripe_subscription_id 的幂等 upsert
//   - 字段无条件以最新到达事件的值覆盖, 不按时间戳比较 (乱序时状态可能
//     短暂回退, 由后续重投/事件纠正, 这是已接受的弱一致性取舍)
//
// 写入失败返回 ErrCodePersistenceWrite, 由非 2xx 响应触发支付服务重投
func (uc *SubscriptionUsecase) HandlePaymentEvent(ctx context.Context, event *PaymentEvent) error {
	if event.Kind == EventKindIgnored {
		uc.log.WithContext(ctx).Infof("Ignoring unrecognized event type: %s", event.Type)
		return nil
	}

	// 事件去重: 同一事件ID重投时直接确认, 不重复落库
	// 日志写入失败不阻断主流程 (upsert 本身幂等)
	fresh, recordErr := uc.eventRepo.RecordEvent(ctx, &WebhookEvent{
		EventID:    event.ID,
		Type:       event.Type,
		ReceivedAt: time.Now().UTC(),
	})
	if recordErr != nil {
		uc.log.WithContext(ctx).Warnf("Failed to record webhook event %s: %v", event.ID, recordErr)
	} else if !fresh {
		uc.log.WithContext(ctx).Infof("Event %s already processed, skipping (idempotent)", event.ID)
		return nil
	}

	var applyErr error
	switch event.Kind {
	case EventKindSessionCompleted:
		applyErr = uc.applyCheckoutCompleted(ctx, event.Session)
	case EventKindSubscriptionCreated, EventKindSubscriptionUpdated, EventKindSubscriptionDeleted:
		applyErr = uc.applySubscriptionChange(ctx, event.Subscription)
	}

	// 落库失败时撤销事件记录: 非 2xx 响应会触发支付服务重投同一事件ID,
	// 记录留着会让重投命中去重分支被直接确认, 该次状态变更就永久丢失了
	if applyErr != nil && recordErr == nil && fresh {
		if err := uc.eventRepo.DeleteEvent(ctx, event.ID); err != nil {
			uc.log.WithContext(ctx).Warnf("Failed to roll back webhook event record %s: %v", event.ID, err)
		}
	}
	return applyErr
}

// applyCheckoutCompleted 处理结算会话完成事件
// 只落激活字段: 订阅ID来自事件, 用户ID来自关联字段, price 来自配置
func (uc *SubscriptionUsecase) applyCheckoutCompleted(ctx context.Context, session *CheckoutSessionCompleted) error {
	if session == nil || session.SubscriptionID == "" {
		return errors.NewBizError(errors.ErrCodeWebhookPayload, "checkout session has no subscription")
	}

	userID := session.ClientReferenceID
	if userID == "" {
		userID = session.Metadata[constants.MetadataUserIDKey]
	}
	if userID == "" {
		return errors.NewBizError(errors.ErrCodeWebhookPayload, "checkout session has no user reference")
	}

	uc.log.WithContext(ctx).Infof("Activating subscription %s for user %s", session.SubscriptionID, userID)

	if err := uc.repo.UpsertCheckoutActivation(ctx, session.SubscriptionID, userID, uc.config.Stripe.PriceID); err != nil {
		uc.log.WithContext(ctx).Errorf("Failed to upsert subscription activation: %v", err)
		return errors.NewBizError(errors.ErrCodePersistenceWrite, "failed to update subscription")
	}
	return nil
}

// applySubscriptionChange 处理订阅生命周期事件 (created/updated/deleted)
// 整行覆盖: 状态词汇原样沿用, epoch 秒翻译为时间, 缺失字段显式置 NULL
// deleted 同样走 upsert, 取消表现为状态变化而非删行, 保留周期/试用数据
func (uc *SubscriptionUsecase) applySubscriptionChange(ctx context.Context, state *SubscriptionState) error {
	if state == nil || state.ID == "" {
		return errors.NewBizError(errors.ErrCodeWebhookPayload, "subscription event has no subscription id")
	}

	sub := &Subscription{
		StripeSubscriptionID: state.ID,
		UserID:               state.Metadata[constants.MetadataUserIDKey],
		Status:               state.Status,
		CancelAtPeriodEnd:    state.CancelAtPeriodEnd,
		CancelAt:             epochToTime(state.CancelAt),
		CanceledAt:           epochToTime(state.CanceledAt),
		CurrentPeriodStart:   epochToTime(state.CurrentPeriodStart),
		CurrentPeriodEnd:     epochToTime(state.CurrentPeriodEnd),
		Created:              epochToTime(state.Created),
		EndedAt:              epochToTime(state.EndedAt),
		TrialStart:           epochToTime(state.TrialStart),
		TrialEnd:             epochToTime(state.TrialEnd),
	}
	if len(state.Items) > 0 {
		sub.PriceID = state.Items[0].PriceID
		sub.Quantity = state.Items[0].Quantity
	}

	// 事件未携带归属 metadata 时从既有记录回填 user_id,
	// 否则写后按属主失效缓存会落空, 属主的旧状态要等到缓存过期才消失
	if sub.UserID == "" {
		existing, err := uc.repo.GetSubscriptionByID(ctx, sub.StripeSubscriptionID)
		if err != nil {
			uc.log.WithContext(ctx).Warnf("Failed to resolve owner of subscription %s: %v", sub.StripeSubscriptionID, err)
		} else if existing != nil {
			sub.UserID = existing.UserID
		}
	}

	uc.log.WithContext(ctx).Infof("Reconciling subscription %s: status=%s, user=%s", sub.StripeSubscriptionID, sub.Status, sub.UserID)

	if err := uc.repo.UpsertSubscription(ctx, sub); err != nil {
		uc.log.WithContext(ctx).Errorf("Failed to upsert subscription %s: %v", sub.StripeSubscriptionID, err)
		return errors.NewBizError(errors.ErrCodePersistenceWrite, "failed to update subscription")
	}
	return nil
}
