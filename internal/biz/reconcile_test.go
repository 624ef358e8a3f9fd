package biz

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"xinyuan_tech/premium-service/internal/conf"
	"xinyuan_tech/premium-service/internal/constants"
	"xinyuan_tech/premium-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type activationWrite struct {
	SubscriptionID string
	UserID         string
	PriceID        string
}

// fakeSubscriptionRepo 内存订阅仓库, 按 stripe_subscription_id 幂等 upsert
type fakeSubscriptionRepo struct {
	activations []activationWrite
	upserts     []*Subscription
	rows        map[string]*Subscription
	failWrites  bool
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{rows: make(map[string]*Subscription)}
}

func (f *fakeSubscriptionRepo) UpsertCheckoutActivation(ctx context.Context, subscriptionID, userID, priceID string) error {
	if f.failWrites {
		return fmt.Errorf("db unavailable")
	}
	f.activations = append(f.activations, activationWrite{subscriptionID, userID, priceID})
	row, ok := f.rows[subscriptionID]
	if !ok {
		row = &Subscription{StripeSubscriptionID: subscriptionID, Quantity: 1}
		f.rows[subscriptionID] = row
	}
	row.UserID = userID
	row.Status = constants.StatusActive
	row.PriceID = priceID
	return nil
}

func (f *fakeSubscriptionRepo) UpsertSubscription(ctx context.Context, sub *Subscription) error {
	if f.failWrites {
		return fmt.Errorf("db unavailable")
	}
	f.upserts = append(f.upserts, sub)
	row, ok := f.rows[sub.StripeSubscriptionID]
	if !ok {
		row = &Subscription{}
		f.rows[sub.StripeSubscriptionID] = row
	}
	userID := row.UserID
	*row = *sub
	if sub.UserID == "" {
		row.UserID = userID
	}
	return nil
}

func (f *fakeSubscriptionRepo) GetSubscriptionByID(ctx context.Context, subscriptionID string) (*Subscription, error) {
	return f.rows[subscriptionID], nil
}

func (f *fakeSubscriptionRepo) GetSubscriptionByUser(ctx context.Context, userID string) (*Subscription, error) {
	for _, row := range f.rows {
		if row.UserID == userID {
			return row, nil
		}
	}
	return nil, nil
}

func (f *fakeSubscriptionRepo) GetExpiringSubscriptions(ctx context.Context, daysBeforeExpiry, page, pageSize int) ([]*Subscription, int, error) {
	return nil, 0, nil
}

func (f *fakeSubscriptionRepo) writeCount() int {
	return len(f.activations) + len(f.upserts)
}

// fakeWebhookEventRepo 内存事件日志
type fakeWebhookEventRepo struct {
	seen       map[string]bool
	failRecord bool
}

func newFakeWebhookEventRepo() *fakeWebhookEventRepo {
	return &fakeWebhookEventRepo{seen: make(map[string]bool)}
}

func (f *fakeWebhookEventRepo) RecordEvent(ctx context.Context, event *WebhookEvent) (bool, error) {
	if f.failRecord {
		return false, fmt.Errorf("db unavailable")
	}
	if f.seen[event.EventID] {
		return false, nil
	}
	f.seen[event.EventID] = true
	return true, nil
}

func (f *fakeWebhookEventRepo) DeleteEvent(ctx context.Context, eventID string) error {
	delete(f.seen, eventID)
	return nil
}

func (f *fakeWebhookEventRepo) PruneEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

// fakePaymentGateway 支付服务客户端桩
type fakePaymentGateway struct {
	sessionID string
	createErr error
	event     *PaymentEvent
	verifyErr error

	lastParams *CheckoutParams
}

func (f *fakePaymentGateway) CreateCheckoutSession(ctx context.Context, params *CheckoutParams) (string, error) {
	f.lastParams = params
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.sessionID, nil
}

func (f *fakePaymentGateway) VerifyEvent(payload []byte, signature string) (*PaymentEvent, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.event, nil
}

// fakeDirectory 认证服务目录桩
type fakeDirectory struct {
	emails map[string]string
}

func (f *fakeDirectory) GetUserEmail(ctx context.Context, uid string) (string, error) {
	if f.emails == nil {
		return "", nil
	}
	return f.emails[uid], nil
}

func testConfig() *conf.Bootstrap {
	return &conf.Bootstrap{
		Stripe: &conf.Stripe{
			PriceID:    "price_default",
			SuccessURL: "https://example.com/success",
			CancelURL:  "https://example.com/cancel",
		},
	}
}

func newTestUsecase(repo SubscriptionRepo, eventRepo WebhookEventRepo, gateway PaymentGateway, directory AuthDirectoryClient) *SubscriptionUsecase {
	logger := log.NewStdLogger(io.Discard)
	return NewSubscriptionUsecase(repo, eventRepo, gateway, directory, nil, testConfig(), logger)
}

func int64p(v int64) *int64 { return &v }

func TestHandlePaymentEventCheckoutCompleted(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	uc := newTestUsecase(repo, newFakeWebhookEventRepo(), &fakePaymentGateway{}, nil)

	err := uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:   "evt_1",
		Type: constants.EventCheckoutSessionCompleted,
		Kind: EventKindSessionCompleted,
		Session: &CheckoutSessionCompleted{
			SessionID:         "cs_1",
			SubscriptionID:    "sub_1",
			ClientReferenceID: "user-1",
		},
	})
	require.NoError(t, err)
	require.Len(t, repo.activations, 1)
	assert.Equal(t, "sub_1", repo.activations[0].SubscriptionID)
	assert.Equal(t, "user-1", repo.activations[0].UserID)
	assert.Equal(t, "price_default", repo.activations[0].PriceID)
}

func TestHandlePaymentEventCheckoutMetadataFallback(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	uc := newTestUsecase(repo, newFakeWebhookEventRepo(), &fakePaymentGateway{}, nil)

	// client_reference_id 缺失时回退到 metadata 中的用户ID
	err := uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:   "evt_2",
		Kind: EventKindSessionCompleted,
		Session: &CheckoutSessionCompleted{
			SubscriptionID: "sub_2",
			Metadata:       map[string]string{constants.MetadataUserIDKey: "user-2"},
		},
	})
	require.NoError(t, err)
	require.Len(t, repo.activations, 1)
	assert.Equal(t, "user-2", repo.activations[0].UserID)
}

func TestHandlePaymentEventCheckoutMissingUser(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	uc := newTestUsecase(repo, newFakeWebhookEventRepo(), &fakePaymentGateway{}, nil)

	err := uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:      "evt_3",
		Kind:    EventKindSessionCompleted,
		Session: &CheckoutSessionCompleted{SubscriptionID: "sub_3"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeWebhookPayload))
	assert.Zero(t, repo.writeCount())
}

func TestHandlePaymentEventCheckoutMissingSubscription(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	uc := newTestUsecase(repo, newFakeWebhookEventRepo(), &fakePaymentGateway{}, nil)

	err := uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:      "evt_4",
		Kind:    EventKindSessionCompleted,
		Session: &CheckoutSessionCompleted{ClientReferenceID: "user-4"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeWebhookPayload))
	assert.Zero(t, repo.writeCount())
}

func TestHandlePaymentEventDuplicateSkipped(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	uc := newTestUsecase(repo, newFakeWebhookEventRepo(), &fakePaymentGateway{}, nil)

	event := &PaymentEvent{
		ID:   "evt_dup",
		Kind: EventKindSessionCompleted,
		Session: &CheckoutSessionCompleted{
			SubscriptionID:    "sub_dup",
			ClientReferenceID: "user-dup",
		},
	}
	require.NoError(t, uc.HandlePaymentEvent(context.Background(), event))
	require.NoError(t, uc.HandlePaymentEvent(context.Background(), event))
	assert.Equal(t, 1, repo.writeCount())
}

func TestHandlePaymentEventDedupFailureDoesNotBlock(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	eventRepo := newFakeWebhookEventRepo()
	eventRepo.failRecord = true
	uc := newTestUsecase(repo, eventRepo, &fakePaymentGateway{}, nil)

	// 事件日志写入失败不阻断主流程 (upsert 本身幂等)
	err := uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:   "evt_5",
		Kind: EventKindSessionCompleted,
		Session: &CheckoutSessionCompleted{
			SubscriptionID:    "sub_5",
			ClientReferenceID: "user-5",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.writeCount())
}

func TestHandlePaymentEventSubscriptionUpdated(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	uc := newTestUsecase(repo, newFakeWebhookEventRepo(), &fakePaymentGateway{}, nil)

	periodStart := int64(1700000000)
	periodEnd := int64(1702592000)
	err := uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:   "evt_6",
		Type: constants.EventCustomerSubscriptionUpdate,
		Kind: EventKindSubscriptionUpdated,
		Subscription: &SubscriptionState{
			ID:                 "sub_6",
			Status:             constants.StatusActive,
			Metadata:           map[string]string{constants.MetadataUserIDKey: "user-6"},
			Items:              []SubscriptionItemState{{PriceID: "price_x", Quantity: 2}},
			CancelAtPeriodEnd:  true,
			CurrentPeriodStart: int64p(periodStart),
			CurrentPeriodEnd:   int64p(periodEnd),
		},
	})
	require.NoError(t, err)
	require.Len(t, repo.upserts, 1)

	sub := repo.upserts[0]
	assert.Equal(t, "sub_6", sub.StripeSubscriptionID)
	assert.Equal(t, "user-6", sub.UserID)
	assert.Equal(t, "price_x", sub.PriceID)
	assert.Equal(t, int64(2), sub.Quantity)
	assert.True(t, sub.CancelAtPeriodEnd)

	// epoch 秒翻译为 UTC 时间, 缺失字段保持 NULL
	require.NotNil(t, sub.CurrentPeriodStart)
	assert.Equal(t, time.Unix(periodStart, 0).UTC(), *sub.CurrentPeriodStart)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, time.Unix(periodEnd, 0).UTC(), *sub.CurrentPeriodEnd)
	assert.Nil(t, sub.CancelAt)
	assert.Nil(t, sub.CanceledAt)
	assert.Nil(t, sub.EndedAt)
	assert.Nil(t, sub.TrialStart)
	assert.Nil(t, sub.TrialEnd)
}

func TestHandlePaymentEventSubscriptionDeleted(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	uc := newTestUsecase(repo, newFakeWebhookEventRepo(), &fakePaymentGateway{}, nil)

	// 先建行, 再投递 deleted 事件
	require.NoError(t, uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:   "evt_7a",
		Kind: EventKindSessionCompleted,
		Session: &CheckoutSessionCompleted{
			SubscriptionID:    "sub_7",
			ClientReferenceID: "user-7",
		},
	}))

	canceledAt := int64(1700001234)
	require.NoError(t, uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:   "evt_7b",
		Kind: EventKindSubscriptionDeleted,
		Subscription: &SubscriptionState{
			ID:         "sub_7",
			Status:     constants.StatusCanceled,
			CanceledAt: int64p(canceledAt),
			EndedAt:    int64p(canceledAt),
		},
	}))

	// 取消表现为状态变化而不是删行
	row := repo.rows["sub_7"]
	require.NotNil(t, row)
	assert.Equal(t, constants.StatusCanceled, row.Status)
	// 事件未携带用户归属时保留既有 user_id
	assert.Equal(t, "user-7", row.UserID)
}

func TestHandlePaymentEventOutOfOrderLastWriteWins(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	uc := newTestUsecase(repo, newFakeWebhookEventRepo(), &fakePaymentGateway{}, nil)

	// deleted 先到, updated 后到: 字段无条件以最新到达事件覆盖
	require.NoError(t, uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:           "evt_8a",
		Kind:         EventKindSubscriptionDeleted,
		Subscription: &SubscriptionState{ID: "sub_8", Status: constants.StatusCanceled},
	}))
	require.NoError(t, uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:           "evt_8b",
		Kind:         EventKindSubscriptionUpdated,
		Subscription: &SubscriptionState{ID: "sub_8", Status: constants.StatusActive},
	}))

	assert.Equal(t, constants.StatusActive, repo.rows["sub_8"].Status)
}

func TestHandlePaymentEventIgnored(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	eventRepo := newFakeWebhookEventRepo()
	uc := newTestUsecase(repo, eventRepo, &fakePaymentGateway{}, nil)

	err := uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:   "evt_9",
		Type: "invoice.paid",
		Kind: EventKindIgnored,
	})
	require.NoError(t, err)
	assert.Zero(t, repo.writeCount())
	assert.Empty(t, eventRepo.seen)
}

func TestHandlePaymentEventRedeliveryAfterPersistenceFailure(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	eventRepo := newFakeWebhookEventRepo()
	uc := newTestUsecase(repo, eventRepo, &fakePaymentGateway{}, nil)

	event := &PaymentEvent{
		ID:   "evt_retry",
		Kind: EventKindSessionCompleted,
		Session: &CheckoutSessionCompleted{
			SubscriptionID:    "sub_retry",
			ClientReferenceID: "user-retry",
		},
	}

	// 落库失败, 非 2xx 响应触发支付服务重投
	repo.failWrites = true
	err := uc.HandlePaymentEvent(context.Background(), event)
	require.Error(t, err)
	assert.Zero(t, repo.writeCount())

	// 失败的事件不能留在去重日志里, 否则重投会被直接确认而丢失这次状态变更
	repo.failWrites = false
	require.NoError(t, uc.HandlePaymentEvent(context.Background(), event))
	assert.Equal(t, 1, repo.writeCount())
}

func TestHandlePaymentEventResolvesOwnerForMetadataLessEvent(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	uc := newTestUsecase(repo, newFakeWebhookEventRepo(), &fakePaymentGateway{}, nil)

	require.NoError(t, uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:   "evt_owner_a",
		Kind: EventKindSessionCompleted,
		Session: &CheckoutSessionCompleted{
			SubscriptionID:    "sub_owner",
			ClientReferenceID: "user-owner",
		},
	}))

	// metadata 缺失的生命周期事件回填既有记录的属主,
	// 写入层按 user_id 失效缓存才能命中真正的属主
	require.NoError(t, uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:           "evt_owner_b",
		Kind:         EventKindSubscriptionDeleted,
		Subscription: &SubscriptionState{ID: "sub_owner", Status: constants.StatusCanceled},
	}))

	require.Len(t, repo.upserts, 1)
	assert.Equal(t, "user-owner", repo.upserts[0].UserID)
}

func TestHandlePaymentEventPersistenceFailure(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	repo.failWrites = true
	uc := newTestUsecase(repo, newFakeWebhookEventRepo(), &fakePaymentGateway{}, nil)

	err := uc.HandlePaymentEvent(context.Background(), &PaymentEvent{
		ID:   "evt_10",
		Kind: EventKindSessionCompleted,
		Session: &CheckoutSessionCompleted{
			SubscriptionID:    "sub_10",
			ClientReferenceID: "user-10",
		},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodePersistenceWrite))
}

func TestProcessWebhookSignatureFailure(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	gateway := &fakePaymentGateway{verifyErr: fmt.Errorf("signature mismatch")}
	uc := newTestUsecase(repo, newFakeWebhookEventRepo(), gateway, nil)

	err := uc.ProcessWebhook(context.Background(), []byte(`{}`), "t=1,v1=bad")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeWebhookSignature))
	assert.Zero(t, repo.writeCount())
}

func TestCanAccessPremium(t *testing.T) {
	// 门禁有两种候选语义: 存在订阅记录即放行 (任何状态都算会员),
	// 或者只认 active 状态。采用后者: 下面的表把 trialing/past_due/canceled
	// 等有记录但非 active 的状态钉死为拒绝, 防止回退到记录即放行的语义
	cases := []struct {
		status string
		want   bool
	}{
		{constants.StatusActive, true},
		{constants.StatusTrialing, false},
		{constants.StatusPastDue, false},
		{constants.StatusCanceled, false},
		{constants.StatusUnpaid, false},
		{constants.StatusIncomplete, false},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			repo := newFakeSubscriptionRepo()
			repo.rows["sub_x"] = &Subscription{StripeSubscriptionID: "sub_x", UserID: "user-x", Status: tc.status}
			uc := newTestUsecase(repo, newFakeWebhookEventRepo(), &fakePaymentGateway{}, nil)

			got, err := uc.CanAccessPremium(context.Background(), "user-x")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanAccessPremiumNoSubscription(t *testing.T) {
	uc := newTestUsecase(newFakeSubscriptionRepo(), newFakeWebhookEventRepo(), &fakePaymentGateway{}, nil)

	got, err := uc.CanAccessPremium(context.Background(), "user-none")
	require.NoError(t, err)
	assert.False(t, got)
}
