package handler

import (
	"context"
	"testing"

	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/subscription"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(Options{Logger: zap.NewNop()})
	assert.Error(t, err)
}

func TestRegistryIsTotal(t *testing.T) {
	f := newFixture(t)

	for typ := TypeRecovered; typ <= TypeExpired; typ++ {
		h := f.registry.Get(typ)
		require.NotNil(t, h, typ.String())
		_, unknown := h.(*UnknownHandler)
		assert.False(t, unknown, typ.String())
	}

	for _, typ := range []NotificationType{TypeUnknown, 0, 14, 99} {
		_, unknown := f.registry.Get(typ).(*UnknownHandler)
		assert.True(t, unknown)
	}
}

func TestUnknownTypeSucceeds(t *testing.T) {
	f := newFixture(t)
	f.seedSub(t, "token-1", subscription.StatusActive)

	res, err := f.registry.Get(42).Handle(context.Background(), Args{
		Type:          42,
		PurchaseToken: "token-1",
		Snapshot:      snap("GPA.1", nextMonth),
	})
	require.NoError(t, err)
	assert.Equal(t, response.SUCCESS, res)
	assert.Equal(t, "UNKNOWN", NotificationType(42).String())
}

func TestSubscriptionForTokenOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedSub(t, "token-1", subscription.StatusExpired, withCreatedAt(testNow))
	grace := f.seedSub(t, "token-1", subscription.StatusGracePeriod, withCreatedAt(lastMonth))
	f.seedSub(t, "token-1", subscription.StatusCreated, withCreatedAt(nextMonth))

	sub, err := SubscriptionForToken(ctx, f.repo, "token-1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, grace.ID, sub.ID)

	older := f.seedSub(t, "token-2", subscription.StatusExpired, withCreatedAt(lastMonth))
	newer := f.seedSub(t, "token-2", subscription.StatusExpired, withCreatedAt(testNow))
	sub, err = SubscriptionForToken(ctx, f.repo, "token-2")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, sub.ID)
	assert.NotEqual(t, older.ID, sub.ID)

	sub, err = SubscriptionForToken(ctx, f.repo, "token-3")
	require.NoError(t, err)
	assert.Nil(t, sub)

	f.seedSub(t, "token-4", subscription.StatusCreated, withCreatedAt(lastMonth))
	failed := f.seedSub(t, "token-4", subscription.StatusError, withCreatedAt(testNow))
	sub, err = SubscriptionForToken(ctx, f.repo, "token-4")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, failed.ID, sub.ID)
}

func TestPaymentExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.seedSub(t, "token-1", subscription.StatusActive)
	f.seedPayment(t, sub, "GPA.1", nextMonth)

	exists, err := PaymentExists(ctx, f.repo, "GPA.1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = PaymentExists(ctx, f.repo, "GPA.2")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = PaymentExists(ctx, f.repo, "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClassifyUpgrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedSub(t, "known-token", subscription.StatusActive)

	upgrade, err := ClassifyUpgrade(ctx, f.repo, "new-token", snap("GPA.1", nextMonth, linked("old-token")))
	require.NoError(t, err)
	assert.True(t, upgrade)

	upgrade, err = ClassifyUpgrade(ctx, f.repo, "known-token", snap("GPA.1", nextMonth, linked("old-token")))
	require.NoError(t, err)
	assert.False(t, upgrade)

	upgrade, err = ClassifyUpgrade(ctx, f.repo, "new-token", snap("GPA.1", nextMonth))
	require.NoError(t, err)
	assert.False(t, upgrade)
}
