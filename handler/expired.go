package handler

import (
	"context"

	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/subscription"

	"go.uber.org/zap"
)

// ExpiredHandler ends the subscription. A new order on an expired subscription is still recorded
type ExpiredHandler struct {
	base
}

var _ Handler = &ExpiredHandler{}

func (h *ExpiredHandler) Handle(ctx context.Context, args Args) (response.Result, error) {
	logger := h.logger(args)

	sub, err := h.handleable(ctx, h.Repository, args.PurchaseToken)
	if err != nil {
		return response.FAIL, err
	}

	if sub.Status == subscription.StatusExpired {
		exists, err := PaymentExists(ctx, h.Repository, args.Snapshot.OrderID)
		if err != nil {
			return response.FAIL, err
		}
		if exists {
			logger.Info("Subscription already expired",
				zap.String("SubscriptionID", sub.ID),
			)
			return response.SUCCESS, nil
		}
		payment := newPayment(sub, args.Snapshot, subscription.CategoryRenewal)
		if err := h.Repository.CreatePayment(ctx, payment); err != nil {
			return response.FAIL, err
		}
		logger.Info("Payment recorded on expired subscription",
			zap.String("SubscriptionID", sub.ID),
			zap.String("PaymentID", payment.ID),
		)
		return response.SUCCESS, nil
	}

	if !subscription.CanExpire(sub) {
		return response.FAIL, response.ErrSubscriptionCannotExpire(sub.ID, string(sub.Status))
	}
	until := args.Snapshot.ExpiryDate()
	err = h.transition(ctx, h.Repository, sub, func(s *subscription.Subscription) {
		subscription.Expire(s, until, subscription.ReasonGoogleExpired)
	})
	if err != nil {
		return response.FAIL, err
	}

	logger.Info("Subscription expired",
		zap.String("SubscriptionID", sub.ID),
		zap.Time("ValidUntil", until),
	)
	return response.SUCCESS, nil
}
