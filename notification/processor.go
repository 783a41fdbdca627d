package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zllovesuki/rtdn/external"
	"github.com/zllovesuki/rtdn/handler"
	"github.com/zllovesuki/rtdn/metrics"
	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/spec"

	"github.com/go-playground/validator/v10"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

type ProcessorOptions struct {
	Verifier external.Verifier
	Registry *handler.Registry
	Logger   *zap.Logger
	Metrics  *metrics.Collector
}

// Processor verifies a decoded notification and dispatches it to its handler
type Processor struct {
	ProcessorOptions
}

func NewProcessor(option ProcessorOptions) (*Processor, error) {
	if option.Verifier == nil {
		return nil, fmt.Errorf("nil Verifier is invalid")
	}
	if option.Registry == nil {
		return nil, fmt.Errorf("nil Registry is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Processor{
		ProcessorOptions: option,
	}, nil
}

// Process returns FAIL when the notification may succeed on redelivery.
// A non-nil error means the failure is not transient and must be looked at
func (p *Processor) Process(ctx context.Context, env *Envelope) (response.Result, error) {
	logger := p.Logger.With(
		zap.String("MessageID", env.MessageID),
		zap.String("Kind", env.Kind().String()),
	)

	switch env.Kind() {
	case KindSubscription:
		return p.subscription(ctx, logger, env)
	case KindOneTimePurchase:
		logger.Info("One time purchase notification acknowledged")
		return response.SUCCESS, nil
	case KindTest:
		logger.Info("Test notification received",
			zap.String("PackageName", env.Notification.PackageName),
		)
		return response.SUCCESS, nil
	default:
		logger.Warn("Unknown notification payload, skipping")
		return response.SUCCESS, nil
	}
}

func (p *Processor) subscription(ctx context.Context, logger *zap.Logger, env *Envelope) (response.Result, error) {
	n := env.Notification.SubscriptionNotification
	if err := validate.Struct(n); err != nil {
		logger.Warn("Invalid subscription notification",
			zap.Error(err),
		)
		return response.FAIL, nil
	}
	typ := n.Type()
	logger = logger.With(
		zap.String("NotificationType", typ.String()),
		zap.String("PurchaseToken", n.PurchaseToken),
		zap.String("SubscriptionID", n.SubscriptionID),
	)

	verifyCtx, cancel := context.WithTimeout(ctx, spec.VerificationTimeout)
	snapshot, err := p.Verifier.Verify(verifyCtx, n.SubscriptionID, n.PurchaseToken)
	cancel()
	if err != nil || snapshot == nil {
		p.Metrics.VerificationFailure()
		logger.Warn("Purchase verification failed",
			zap.Error(err),
		)
		p.Metrics.Notification(typ.String(), response.FAIL.String())
		return response.FAIL, nil
	}
	logger.Debug("Purchase verified",
		zap.String("OrderID", snapshot.OrderID),
		zap.Time("ExpiryTime", snapshot.ExpiryTime),
		zap.Bool("AutoRenewing", snapshot.AutoRenewing),
		zap.String("LinkedPurchaseToken", snapshot.LinkedPurchaseToken),
	)

	start := time.Now()
	result, err := p.Registry.Get(typ).Handle(ctx, handler.Args{
		Type:           typ,
		MessageID:      env.MessageID,
		PurchaseToken:  n.PurchaseToken,
		SubscriptionID: n.SubscriptionID,
		Snapshot:       snapshot,
	})
	p.Metrics.Observe(typ.String(), time.Since(start))

	result, err = p.classify(logger, result, err)
	p.Metrics.Notification(typ.String(), result.String())
	return result, err
}

// classify maps a handler error onto the result reported to the delivery layer
func (p *Processor) classify(logger *zap.Logger, result response.Result, err error) (response.Result, error) {
	if err == nil {
		return result, nil
	}
	var rErr *response.Error
	if !errors.As(err, &rErr) {
		logger.Error("Unexpected error handling notification",
			zap.Error(err),
		)
		return response.FAIL, extErrors.Wrap(err, "Cannot handle notification")
	}
	logger = logger.With(zap.String("Code", rErr.Code))
	switch rErr.Level {
	case response.LevelWarning:
		logger.Warn("Notification not applied",
			zap.Error(err),
		)
		return response.FAIL, nil
	case response.LevelError:
		logger.Error("Notification not applied",
			zap.Error(err),
		)
		return response.FAIL, nil
	default:
		logger.Error("Notification violates subscription state",
			zap.Error(err),
		)
		return response.FAIL, err
	}
}
