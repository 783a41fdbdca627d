package handler

import (
	"context"

	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/spec"
	"github.com/zllovesuki/rtdn/subscription"

	"go.uber.org/zap"
)

// GracePeriodHandler marks a failed renewal. Access continues until the grace period ends
type GracePeriodHandler struct {
	base
}

var _ Handler = &GracePeriodHandler{}

func (h *GracePeriodHandler) Handle(ctx context.Context, args Args) (response.Result, error) {
	sub, err := h.active(ctx, h.Repository, args.PurchaseToken)
	if err != nil {
		return response.FAIL, err
	}
	if sub == nil {
		return response.FAIL, response.ErrSubscriptionActiveNotFoundPurchaseToken(args.PurchaseToken)
	}

	until := args.Snapshot.ExpiryDate()
	err = h.transition(ctx, h.Repository, sub, func(s *subscription.Subscription) {
		subscription.EnterGracePeriod(s, until, subscription.ReasonGoogleGracePeriod)
	})
	if err != nil {
		return response.FAIL, err
	}

	h.logger(args).Info("Subscription entered grace period",
		zap.String("SubscriptionID", sub.ID),
		zap.Time("GracePeriodUntil", until),
	)
	h.publish(args, eventFor(spec.EventSubscriptionRenewalError, sub, args.Snapshot.CountryCode))
	return response.SUCCESS, nil
}
