package handler

import (
	"context"

	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/subscription"

	"go.uber.org/zap"
)

// SuspendHandler ends access at expiry for PAUSED and ON_HOLD. The two differ only by the recorded reason
type SuspendHandler struct {
	base
	reason subscription.ChangeReason
}

var _ Handler = &SuspendHandler{}

func (h *SuspendHandler) Handle(ctx context.Context, args Args) (response.Result, error) {
	sub, err := h.handleable(ctx, h.Repository, args.PurchaseToken)
	if err != nil {
		return response.FAIL, err
	}
	until := args.Snapshot.ExpiryDate()
	if sub.Status == subscription.StatusExpired && subscription.SameDay(sub.ValidUntil, until) {
		h.logger(args).Info("Subscription already expired",
			zap.String("SubscriptionID", sub.ID),
		)
		return response.SUCCESS, nil
	}
	if !subscription.CanExpire(sub) {
		return response.FAIL, response.ErrSubscriptionCannotExpire(sub.ID, string(sub.Status))
	}

	err = h.transition(ctx, h.Repository, sub, func(s *subscription.Subscription) {
		subscription.Expire(s, until, h.reason)
	})
	if err != nil {
		return response.FAIL, err
	}

	h.logger(args).Info("Subscription suspended",
		zap.String("SubscriptionID", sub.ID),
		zap.String("Reason", string(h.reason)),
		zap.Time("ValidUntil", until),
	)
	return response.SUCCESS, nil
}
