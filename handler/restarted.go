package handler

import (
	"context"

	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/subscription"

	"go.uber.org/zap"
)

// RestartedHandler reverts a scheduled cancellation the user took back
type RestartedHandler struct {
	base
}

var _ Handler = &RestartedHandler{}

func (h *RestartedHandler) Handle(ctx context.Context, args Args) (response.Result, error) {
	subs, err := h.Repository.ListByToken(ctx, args.PurchaseToken)
	if err != nil {
		return response.FAIL, err
	}
	if len(subs) == 0 {
		return response.FAIL, response.ErrSubscriptionNotFound(args.PurchaseToken)
	}
	// newest first, whatever the status
	sub := &subs[0]
	if !subscription.CanResubscribe(sub) {
		return response.FAIL, response.ErrSubscriptionCannotResubscribe(sub.ID, string(sub.Status))
	}

	err = h.transition(ctx, h.Repository, sub, func(s *subscription.Subscription) {
		subscription.Resubscribe(s, subscription.ReasonGoogleRestarted)
	})
	if err != nil {
		return response.FAIL, err
	}

	h.logger(args).Info("Subscription restarted",
		zap.String("SubscriptionID", sub.ID),
	)
	return response.SUCCESS, nil
}
