package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/zllovesuki/rtdn/purchase"
	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/spec"
	"github.com/zllovesuki/rtdn/spec/broker"
	"github.com/zllovesuki/rtdn/subscription"

	"go.uber.org/zap"
)

// Args is everything a handler needs to act on one verified notification
type Args struct {
	Type           NotificationType
	MessageID      string
	PurchaseToken  string
	SubscriptionID string // Google product id of the subscription
	Snapshot       *purchase.Snapshot
}

// Handler applies one notification type to the local subscription state.
// A returned error carrying a *response.Error tells the caller how to report it
type Handler interface {
	Handle(ctx context.Context, args Args) (response.Result, error)
}

type Options struct {
	Repository subscription.Repository
	Catalog    *subscription.Catalog
	Producer   broker.Producer
	Logger     *zap.Logger
	Now        func() time.Time
}

func (o *Options) validate() error {
	if o.Repository == nil {
		return fmt.Errorf("nil Repository is invalid")
	}
	if o.Catalog == nil {
		return fmt.Errorf("nil Catalog is invalid")
	}
	if o.Producer == nil {
		return fmt.Errorf("nil Producer is invalid")
	}
	if o.Logger == nil {
		return fmt.Errorf("nil Logger is invalid")
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return nil
}

// base carries the shared dependencies and lookups of every handler
type base struct {
	Options
}

func (b *base) now() time.Time {
	return b.Now().UTC()
}

func (b *base) today() time.Time {
	return purchase.Date(b.now())
}

func (b *base) logger(args Args) *zap.Logger {
	fields := []zap.Field{
		zap.String("NotificationType", args.Type.String()),
		zap.String("MessageID", args.MessageID),
		zap.String("PurchaseToken", args.PurchaseToken),
	}
	if args.Snapshot != nil {
		fields = append(fields, zap.String("OrderID", args.Snapshot.OrderID))
	}
	return b.Logger.With(fields...)
}

func (b *base) plan(productID string) (subscription.Plan, error) {
	p, ok := b.Catalog.GetByGoogleProductID(productID)
	if !ok {
		return subscription.Plan{}, response.ErrSubscriptionPlanNotFound(productID)
	}
	return p, nil
}

// active returns the single live subscription of the token, or nil
func (b *base) active(ctx context.Context, repo subscription.Repository, token string) (*subscription.Subscription, error) {
	subs, err := repo.ListByToken(ctx, token, subscription.StatusActive, subscription.StatusGracePeriod)
	if err != nil {
		return nil, err
	}
	switch len(subs) {
	case 0:
		return nil, nil
	case 1:
		return &subs[0], nil
	default:
		return nil, response.ErrSubscriptionsMultipleActivePurchaseToken(token)
	}
}

// handleable returns the subscription notifications should act on, or SubscriptionNotFound
func (b *base) handleable(ctx context.Context, repo subscription.Repository, token string) (*subscription.Subscription, error) {
	sub, err := SubscriptionForToken(ctx, repo, token)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, response.ErrSubscriptionNotFound(token)
	}
	return sub, nil
}

// transition applies action to sub and persists it conditionally on the status it had before
func (b *base) transition(ctx context.Context, repo subscription.Repository, sub *subscription.Subscription, action func(s *subscription.Subscription)) error {
	expected := sub.Status
	action(sub)
	return repo.Transition(ctx, sub, expected)
}

// publish is fire and forget: a broker failure never fails the notification
func (b *base) publish(args Args, e spec.Event) {
	e.OccurredAt = b.now()
	if err := b.Producer.PublishEvent(&e); err != nil {
		b.logger(args).Error("Unable to publish subscription event",
			zap.String("EventType", string(e.Type)),
			zap.Error(err),
		)
	}
}

func eventFor(t spec.EventType, sub *subscription.Subscription, country string) spec.Event {
	return spec.Event{
		Type:           t,
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		PlanID:         sub.PlanID,
		Status:         string(sub.Status),
		Country:        country,
		ValidUntil:     sub.ValidUntil,
	}
}
