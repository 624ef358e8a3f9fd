package biz

import (
	"context"
	"fmt"
	"testing"

	"xinyuan_tech/premium-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckoutSession(t *testing.T) {
	gateway := &fakePaymentGateway{sessionID: "cs_test_1"}
	uc := newTestUsecase(newFakeSubscriptionRepo(), newFakeWebhookEventRepo(), gateway, nil)

	sessionID, err := uc.CreateCheckoutSession(context.Background(), "user-1", "price_x", "user@example.com", "zh")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sessionID)

	require.NotNil(t, gateway.lastParams)
	assert.Equal(t, "user-1", gateway.lastParams.UserID)
	assert.Equal(t, "price_x", gateway.lastParams.PriceID)
	assert.Equal(t, "user@example.com", gateway.lastParams.CustomerEmail)
	assert.Equal(t, "zh", gateway.lastParams.Locale)
	assert.Equal(t, "https://example.com/success", gateway.lastParams.SuccessURL)
	assert.Equal(t, "https://example.com/cancel", gateway.lastParams.CancelURL)
}

func TestCreateCheckoutSessionMissingUser(t *testing.T) {
	gateway := &fakePaymentGateway{sessionID: "cs_test_2"}
	uc := newTestUsecase(newFakeSubscriptionRepo(), newFakeWebhookEventRepo(), gateway, nil)

	_, err := uc.CreateCheckoutSession(context.Background(), "", "price_x", "", "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCheckoutInvalidArgument))
	assert.Nil(t, gateway.lastParams)
}

func TestCreateCheckoutSessionDefaultPrice(t *testing.T) {
	gateway := &fakePaymentGateway{sessionID: "cs_test_3"}
	uc := newTestUsecase(newFakeSubscriptionRepo(), newFakeWebhookEventRepo(), gateway, nil)

	_, err := uc.CreateCheckoutSession(context.Background(), "user-3", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "price_default", gateway.lastParams.PriceID)
}

func TestCreateCheckoutSessionResolvesEmail(t *testing.T) {
	gateway := &fakePaymentGateway{sessionID: "cs_test_4"}
	directory := &fakeDirectory{emails: map[string]string{"user-4": "resolved@example.com"}}
	uc := newTestUsecase(newFakeSubscriptionRepo(), newFakeWebhookEventRepo(), gateway, directory)

	_, err := uc.CreateCheckoutSession(context.Background(), "user-4", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "resolved@example.com", gateway.lastParams.CustomerEmail)
}

func TestCreateCheckoutSessionUpstreamFailure(t *testing.T) {
	gateway := &fakePaymentGateway{createErr: fmt.Errorf("stripe: rate limited")}
	uc := newTestUsecase(newFakeSubscriptionRepo(), newFakeWebhookEventRepo(), gateway, nil)

	_, err := uc.CreateCheckoutSession(context.Background(), "user-5", "", "", "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCheckoutUpstream))
}
