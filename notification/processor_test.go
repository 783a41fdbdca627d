package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zllovesuki/rtdn/broker"
	"github.com/zllovesuki/rtdn/cache"
	"github.com/zllovesuki/rtdn/db"
	"github.com/zllovesuki/rtdn/handler"
	"github.com/zllovesuki/rtdn/metrics"
	"github.com/zllovesuki/rtdn/purchase"
	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/subscription"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeVerifier struct {
	mu        sync.Mutex
	snapshots map[string]*purchase.Snapshot
	calls     int
}

func (f *fakeVerifier) Verify(ctx context.Context, subscriptionID, purchaseToken string) (*purchase.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snapshots[purchaseToken], nil
}

type processorFixture struct {
	db        *gorm.DB
	repo      *subscription.Manager
	verifier  *fakeVerifier
	processor *Processor
	pipeline  *Pipeline
}

func newProcessorFixture(t *testing.T) *processorFixture {
	logger := zap.NewNop()
	gdb, err := db.New(db.Options{
		Dialector: sqlite.Open(":memory:"),
		Logger:    logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if pool, err := gdb.DB(); err == nil {
			pool.Close()
		}
	})

	repo, err := subscription.NewManager(subscription.ManagerOptions{
		DB:     gdb,
		Logger: logger,
	})
	require.NoError(t, err)
	catalog, err := subscription.NewCatalog([]subscription.Plan{
		{
			ID:              "pro-monthly",
			GoogleProductID: "pro.monthly",
			Price:           decimal.NewFromInt(49),
			Currency:        "SEK",
		},
	})
	require.NoError(t, err)

	registry, err := handler.NewRegistry(handler.Options{
		Repository: repo,
		Catalog:    catalog,
		Producer:   &broker.MemoryProducer{},
		Logger:     logger,
	})
	require.NoError(t, err)

	collector, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	verifier := &fakeVerifier{
		snapshots: make(map[string]*purchase.Snapshot),
	}
	processor, err := NewProcessor(ProcessorOptions{
		Verifier: verifier,
		Registry: registry,
		Logger:   logger,
		Metrics:  collector,
	})
	require.NoError(t, err)

	decoder, err := NewDecoder(logger)
	require.NoError(t, err)
	guard, err := NewGuard(GuardOptions{
		Store:   cache.NewMemoryStore(),
		Logger:  logger,
		Metrics: collector,
	})
	require.NoError(t, err)
	pipeline, err := NewPipeline(PipelineOptions{
		Decoder:   decoder,
		Guard:     guard,
		Processor: processor,
	})
	require.NoError(t, err)

	return &processorFixture{
		db:        gdb,
		repo:      repo,
		verifier:  verifier,
		processor: processor,
		pipeline:  pipeline,
	}
}

func (f *processorFixture) verified(token, orderID, userID string) {
	state := purchase.PaymentReceived
	f.verifier.snapshots[token] = &purchase.Snapshot{
		StartTime:         time.Now().Add(-time.Hour).UTC(),
		ExpiryTime:        time.Now().AddDate(0, 1, 0).UTC(),
		AutoRenewing:      true,
		Currency:          "SEK",
		Price:             decimal.NewFromInt(49),
		CountryCode:       "SE",
		PaymentState:      &state,
		OrderID:           orderID,
		Acknowledgement:   purchase.AcknowledgementAcknowledged,
		ExternalAccountID: userID,
	}
}

func (f *processorFixture) envelope(t *testing.T, typ handler.NotificationType, token string) *Envelope {
	d, err := NewDecoder(zap.NewNop())
	require.NoError(t, err)
	env := d.Decode(pushBody(t, "m-1", subscriptionData(typ, token)))
	require.NotNil(t, env)
	return env
}

func (f *processorFixture) subscriptions(t *testing.T) int64 {
	var n int64
	require.NoError(t, f.db.Model(&subscription.Subscription{}).Count(&n).Error)
	return n
}

func TestNewProcessorValidation(t *testing.T) {
	_, err := NewProcessor(ProcessorOptions{Logger: zap.NewNop()})
	assert.Error(t, err)
}

func TestProcessTestNotification(t *testing.T) {
	f := newProcessorFixture(t)
	d, err := NewDecoder(zap.NewNop())
	require.NoError(t, err)

	env := d.Decode(pushBody(t, "m-1", map[string]interface{}{
		"testNotification": map[string]interface{}{"version": "1.0"},
	}))
	require.NotNil(t, env)

	res, err := f.processor.Process(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, response.SUCCESS, res)
	assert.Zero(t, f.verifier.calls)
}

func TestProcessInvalidSubscriptionNotification(t *testing.T) {
	f := newProcessorFixture(t)

	res, err := f.processor.Process(context.Background(), f.envelope(t, handler.TypePurchased, ""))
	require.NoError(t, err)
	assert.Equal(t, response.FAIL, res)
	assert.Zero(t, f.verifier.calls)
}

func TestProcessVerificationFailure(t *testing.T) {
	f := newProcessorFixture(t)

	res, err := f.processor.Process(context.Background(), f.envelope(t, handler.TypePurchased, "token-1"))
	require.NoError(t, err)
	assert.Equal(t, response.FAIL, res)
	assert.Equal(t, 1, f.verifier.calls)
	assert.Zero(t, f.subscriptions(t))
}

func TestProcessPurchased(t *testing.T) {
	f := newProcessorFixture(t)
	f.verified("token-1", "GPA.1", "user-1")

	res, err := f.processor.Process(context.Background(), f.envelope(t, handler.TypePurchased, "token-1"))
	require.NoError(t, err)
	assert.Equal(t, response.SUCCESS, res)
	assert.Equal(t, int64(1), f.subscriptions(t))
}

func TestProcessWarningBecomesFail(t *testing.T) {
	f := newProcessorFixture(t)
	f.verified("token-1", "GPA.1", "")

	res, err := f.processor.Process(context.Background(), f.envelope(t, handler.TypePurchased, "token-1"))
	require.NoError(t, err)
	assert.Equal(t, response.FAIL, res)
}

func TestProcessErrorBecomesFail(t *testing.T) {
	f := newProcessorFixture(t)
	f.verified("token-1", "GPA.1", "")

	res, err := f.processor.Process(context.Background(), f.envelope(t, handler.TypeInGracePeriod, "token-1"))
	require.NoError(t, err)
	assert.Equal(t, response.FAIL, res)
}

func TestProcessViolationPropagates(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	f.verified("token-1", "GPA.1", "")

	pm := &subscription.PaymentMethod{
		UserID:              "user-1",
		Method:              subscription.MethodGoogle,
		ExternalRecurringID: "token-1",
	}
	require.NoError(t, f.repo.CreatePaymentMethod(ctx, pm))
	require.NoError(t, f.repo.Create(ctx, &subscription.Subscription{
		UserID:          "user-1",
		PlanID:          "pro-monthly",
		Provider:        subscription.ProviderGoogle,
		Status:          subscription.StatusError,
		PaymentMethodID: pm.ID,
	}))

	res, err := f.processor.Process(ctx, f.envelope(t, handler.TypeRestarted, "token-1"))
	assert.Equal(t, response.FAIL, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, response.ErrSubscriptionCannotResubscribe("", ""))
}

func TestProcessMissingLinkedSubscriptionPropagates(t *testing.T) {
	f := newProcessorFixture(t)
	f.verified("token-2", "GPA.2", "user-1")
	f.verifier.snapshots["token-2"].LinkedPurchaseToken = "token-1"

	res, err := f.processor.Process(context.Background(), f.envelope(t, handler.TypePurchased, "token-2"))
	assert.Equal(t, response.FAIL, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, response.ErrLinkedSubscriptionNotFound(""))
	assert.Equal(t, int64(0), f.subscriptions(t))
}

func TestProcessUnexpectedErrorPropagates(t *testing.T) {
	f := newProcessorFixture(t)
	f.verified("token-1", "GPA.1", "user-1")

	pool, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, pool.Close())

	res, err := f.processor.Process(context.Background(), f.envelope(t, handler.TypeCanceled, "token-1"))
	assert.Equal(t, response.FAIL, res)
	require.Error(t, err)
	var rErr *response.Error
	assert.False(t, errors.As(err, &rErr))
}

func TestPipelineSuppressesRedelivery(t *testing.T) {
	f := newProcessorFixture(t)
	f.verified("token-1", "GPA.1", "user-1")
	body := pushBody(t, "m-1", subscriptionData(handler.TypePurchased, "token-1"))

	for i := 0; i < 2; i++ {
		res, err := f.pipeline.Handle(context.Background(), body)
		require.NoError(t, err)
		assert.Equal(t, response.SUCCESS, res)
	}
	assert.Equal(t, 1, f.verifier.calls)
	assert.Equal(t, int64(1), f.subscriptions(t))
}

func TestPipelineUndecodableBody(t *testing.T) {
	f := newProcessorFixture(t)

	res, err := f.pipeline.Handle(context.Background(), []byte("garbage"))
	require.NoError(t, err)
	assert.Equal(t, response.FAIL, res)
}
