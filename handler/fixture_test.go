package handler

import (
	"context"
	"testing"
	"time"

	"github.com/zllovesuki/rtdn/broker"
	"github.com/zllovesuki/rtdn/db"
	"github.com/zllovesuki/rtdn/purchase"
	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/subscription"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	testNow   = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	testToday = purchase.Date(testNow)
	nextMonth = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	lastMonth = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	testPlans = []subscription.Plan{
		{
			ID:              "pro-monthly",
			Name:            "Pro",
			GoogleProductID: "pro.monthly",
			Price:           decimal.NewFromInt(49),
			Currency:        "SEK",
			Period:          "P1M",
		},
		{
			ID:              "pro-yearly",
			Name:            "Pro yearly",
			GoogleProductID: "pro.yearly",
			Price:           decimal.NewFromInt(490),
			Currency:        "SEK",
			Period:          "P1Y",
		},
	}
)

type fixture struct {
	db       *gorm.DB
	repo     *subscription.Manager
	producer *broker.MemoryProducer
	registry *Registry
}

func newFixture(t *testing.T) *fixture {
	gdb, err := db.New(db.Options{
		Dialector: sqlite.Open(":memory:"),
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if pool, err := gdb.DB(); err == nil {
			pool.Close()
		}
	})

	repo, err := subscription.NewManager(subscription.ManagerOptions{
		DB:     gdb,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	catalog, err := subscription.NewCatalog(testPlans)
	require.NoError(t, err)

	producer := &broker.MemoryProducer{}
	registry, err := NewRegistry(Options{
		Repository: repo,
		Catalog:    catalog,
		Producer:   producer,
		Logger:     zap.NewNop(),
		Now: func() time.Time {
			return testNow
		},
	})
	require.NoError(t, err)

	return &fixture{
		db:       gdb,
		repo:     repo,
		producer: producer,
		registry: registry,
	}
}

type subOption func(s *subscription.Subscription)

func withCreatedAt(t time.Time) subOption {
	return func(s *subscription.Subscription) {
		s.CreatedAt = t
	}
}

func withValidUntil(t time.Time) subOption {
	return func(s *subscription.Subscription) {
		s.ValidUntil = &t
	}
}

func withUser(userID string) subOption {
	return func(s *subscription.Subscription) {
		s.UserID = userID
	}
}

func (f *fixture) seedSub(t *testing.T, token string, status subscription.Status, opts ...subOption) *subscription.Subscription {
	ctx := context.Background()
	sub := &subscription.Subscription{
		UserID:       "user-1",
		PlanID:       "pro-monthly",
		Provider:     subscription.ProviderGoogle,
		Status:       status,
		ValidFrom:    time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		ChangeReason: subscription.ReasonGoogleNew,
	}
	for _, o := range opts {
		o(sub)
	}
	pm, err := f.repo.GetPaymentMethod(ctx, token)
	require.NoError(t, err)
	if pm == nil {
		pm = &subscription.PaymentMethod{
			UserID:              sub.UserID,
			Method:              subscription.MethodGoogle,
			ExternalRecurringID: token,
		}
		require.NoError(t, f.repo.CreatePaymentMethod(ctx, pm))
	}
	sub.PaymentMethodID = pm.ID
	require.NoError(t, f.repo.Create(ctx, sub))
	return sub
}

func (f *fixture) seedPayment(t *testing.T, sub *subscription.Subscription, orderID string, paidUntil time.Time) *subscription.PaymentTransaction {
	p := &subscription.PaymentTransaction{
		ExternalTransactionID: orderID,
		SubscriptionID:        sub.ID,
		PlanID:                sub.PlanID,
		UserID:                sub.UserID,
		Amount:                decimal.NewFromInt(49),
		Currency:              "SEK",
		Country:               "SE",
		Status:                subscription.PaymentApproved,
		Category:              subscription.CategoryInitial,
		Type:                  subscription.TypePayment,
		PaidUntil:             paidUntil,
	}
	require.NoError(t, f.repo.CreatePayment(context.Background(), p))
	return p
}

func (f *fixture) reload(t *testing.T, id string) *subscription.Subscription {
	var sub subscription.Subscription
	require.NoError(t, f.db.First(&sub, "id = ?", id).Error)
	return &sub
}

func (f *fixture) payment(t *testing.T, orderID string) *subscription.PaymentTransaction {
	p, err := f.repo.GetPayment(context.Background(), orderID)
	require.NoError(t, err)
	return p
}

func (f *fixture) subsOf(t *testing.T, token string) []subscription.Subscription {
	subs, err := f.repo.ListByToken(context.Background(), token)
	require.NoError(t, err)
	return subs
}

func (f *fixture) count(t *testing.T, model interface{}) int64 {
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) handle(t NotificationType, token string, s *purchase.Snapshot) (response.Result, error) {
	return f.registry.Get(t).Handle(context.Background(), Args{
		Type:           t,
		MessageID:      "message-1",
		PurchaseToken:  token,
		SubscriptionID: "pro.monthly",
		Snapshot:       s,
	})
}

type snapOption func(s *purchase.Snapshot)

func snap(orderID string, expiry time.Time, opts ...snapOption) *purchase.Snapshot {
	state := purchase.PaymentReceived
	s := &purchase.Snapshot{
		StartTime:       lastMonth,
		ExpiryTime:      expiry,
		AutoRenewing:    true,
		Currency:        "SEK",
		Price:           decimal.NewFromInt(49),
		CountryCode:     "SE",
		PaymentState:    &state,
		OrderID:         orderID,
		Acknowledgement: purchase.AcknowledgementAcknowledged,
		Raw: map[string]interface{}{
			"orderId": orderID,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func linked(token string) snapOption {
	return func(s *purchase.Snapshot) {
		s.LinkedPurchaseToken = token
	}
}

func account(userID string) snapOption {
	return func(s *purchase.Snapshot) {
		s.ExternalAccountID = userID
	}
}

func canceledBy(reason purchase.CancelReason) snapOption {
	return func(s *purchase.Snapshot) {
		s.AutoRenewing = false
		s.CancelReason = &reason
	}
}

func paymentState(state purchase.PaymentState) snapOption {
	return func(s *purchase.Snapshot) {
		s.PaymentState = &state
	}
}

func requireLevel(t *testing.T, err error, level response.Level, target *response.Error) {
	t.Helper()
	require.Error(t, err)
	var rErr *response.Error
	require.ErrorAs(t, err, &rErr)
	require.Equal(t, level, rErr.Level)
	require.ErrorIs(t, err, target)
}

func withPlan(planID string) subOption {
	return func(s *subscription.Subscription) {
		s.PlanID = planID
	}
}
